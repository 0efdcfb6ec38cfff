package export

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/rpattn/projectanalysis/internal/domain"
)

const (
	// XLSXContentType is the media type of the workbooks produced here.
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	defaultSheet    = "data"
	defaultFirstRow = 2
)

// ErrSheetNotFound is returned when the template lacks the data sheet.
var ErrSheetNotFound = errors.New("template sheet not found")

// Workbook fills a spreadsheet template with records. Values are placed by
// position: the N-th value of a record goes to the N-th column, so the
// template's column layout has to follow the mapping's column order.
type Workbook struct {
	templatePath string
	sheet        string
	firstRow     int
}

type WorkbookOption func(*Workbook)

// WithSheet selects the sheet that receives the records.
func WithSheet(sheet string) WorkbookOption {
	return func(wb *Workbook) {
		if strings.TrimSpace(sheet) != "" {
			wb.sheet = sheet
		}
	}
}

// WithFirstRow sets the 1-based row of the first record.
func WithFirstRow(row int) WorkbookOption {
	return func(wb *Workbook) {
		if row > 0 {
			wb.firstRow = row
		}
	}
}

func NewWorkbook(templatePath string, opts ...WorkbookOption) *Workbook {
	wb := &Workbook{
		templatePath: templatePath,
		sheet:        defaultSheet,
		firstRow:     defaultFirstRow,
	}
	for _, opt := range opts {
		opt(wb)
	}
	return wb
}

// Write loads the template, fills it with the records of set and writes the
// resulting workbook to w. The template file itself is never modified.
func (wb *Workbook) Write(w io.Writer, set domain.RecordSet) (int64, error) {
	f, err := excelize.OpenFile(wb.templatePath)
	if err != nil {
		return 0, fmt.Errorf("open template %s: %w", wb.templatePath, err)
	}
	defer func() { _ = f.Close() }()

	idx, err := f.GetSheetIndex(wb.sheet)
	if err != nil {
		return 0, fmt.Errorf("look up sheet %s: %w", wb.sheet, err)
	}
	if idx < 0 {
		return 0, fmt.Errorf("%w: %s", ErrSheetNotFound, wb.sheet)
	}

	for i, record := range set.Records {
		cellName, err := excelize.CoordinatesToCellName(1, wb.firstRow+i)
		if err != nil {
			return 0, fmt.Errorf("row %d: %w", i, err)
		}
		values := make([]interface{}, len(record.Values()))
		for j, value := range record.Values() {
			values[j] = cellValue(value)
		}
		if err := f.SetSheetRow(wb.sheet, cellName, &values); err != nil {
			return 0, fmt.Errorf("write row %d: %w", i, err)
		}
	}

	n, err := f.WriteTo(w)
	if err != nil {
		return n, fmt.Errorf("write workbook: %w", err)
	}
	return n, nil
}

// NewTemplate builds a blank template with one sheet whose first row holds
// the column names.
func NewTemplate(sheet string, columns []string) (*excelize.File, error) {
	if strings.TrimSpace(sheet) == "" {
		sheet = defaultSheet
	}
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]interface{}, len(columns))
	for i, column := range columns {
		header[i] = column
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, style); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("style header: %w", err)
	}
	return f, nil
}

func cellValue(value domain.Value) interface{} {
	switch value.Kind() {
	case domain.KindNull:
		return nil
	case domain.KindScalar:
		if number, ok := value.Number(); ok {
			return number
		}
		if b, ok := value.Raw().(bool); ok {
			return b
		}
		return value.String()
	default:
		return value.String()
	}
}

package export

import (
	"fmt"
	"html/template"
	"io"

	"github.com/rpattn/projectanalysis/internal/domain"
	"github.com/rpattn/projectanalysis/internal/pivot"
)

const layoutTemplate = `{{define "top"}}<!DOCTYPE html>
<html lang="cs">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; margin: 1rem; }
table { border-collapse: collapse; font-size: .875rem; }
th, td { border: 1px solid #dee2e6; padding: .25rem .5rem; text-align: left; }
thead th { background: #f1f3f5; }
td.number { text-align: right; }
td.null { color: #adb5bd; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
{{end}}{{define "bottom"}}<p>{{.Summary}}</p>
</body>
</html>
{{end}}`

const recordsTemplate = `{{template "top" .}}<table class="dataframe">
<thead>
<tr>{{range .Header}}<th>{{.}}</th>{{end}}</tr>
</thead>
<tbody>
{{range .Rows}}<tr>{{range .}}<td{{if .Class}} class="{{.Class}}"{{end}}>{{.Text}}</td>{{end}}</tr>
{{end}}</tbody>
</table>
{{template "bottom" .}}`

const pivotTemplate = `{{template "top" .}}<table class="dataframe pivot">
<thead>
{{range .HeaderRows}}<tr><th>{{.Name}}</th>{{range .Labels}}<th>{{.}}</th>{{end}}</tr>
{{end}}<tr><th>{{.RowKey}}</th>{{range .Columns}}<th></th>{{end}}</tr>
</thead>
<tbody>
{{range .Rows}}<tr><th>{{.Label}}</th>{{range .Cells}}<td class="number">{{.}}</td>{{end}}</tr>
{{end}}</tbody>
</table>
{{template "bottom" .}}`

var pages = template.Must(template.Must(template.Must(
	template.New("layout").Parse(layoutTemplate)).
	New("records").Parse(recordsTemplate)).
	New("pivot").Parse(pivotTemplate))

type cell struct {
	Text  string
	Class string
}

type recordsPage struct {
	Title   string
	Summary string
	Header  []string
	Rows    [][]cell
}

type headerRow struct {
	Name   string
	Labels []string
}

type pivotRow struct {
	Label string
	Cells []int
}

type pivotPage struct {
	Title      string
	Summary    string
	RowKey     string
	HeaderRows []headerRow
	Columns    []pivot.Label
	Rows       []pivotRow
}

// WriteRecordsHTML renders the records as an HTML table whose columns follow
// the set's column order.
func WriteRecordsHTML(w io.Writer, title string, set domain.RecordSet) error {
	page := recordsPage{
		Title:   title,
		Summary: fmt.Sprintf("%d rows × %d columns", len(set.Records), len(set.Columns)),
		Header:  set.Columns,
		Rows:    make([][]cell, len(set.Records)),
	}
	for i, record := range set.Records {
		row := make([]cell, len(record.Values()))
		for j, value := range record.Values() {
			row[j] = htmlCell(value)
		}
		page.Rows[i] = row
	}
	return pages.ExecuteTemplate(w, "records", page)
}

// WritePivotHTML renders a pivot table with one header row per column key.
func WritePivotHTML(w io.Writer, title string, table *pivot.Table) error {
	page := pivotPage{
		Title:   title,
		Summary: fmt.Sprintf("%d rows × %d columns", len(table.Rows), len(table.Columns)),
		RowKey:  table.RowKey,
		Columns: table.Columns,
		Rows:    make([]pivotRow, len(table.Rows)),
	}
	for k, key := range table.ColumnKeys {
		row := headerRow{Name: key, Labels: make([]string, len(table.Columns))}
		for c, label := range table.Columns {
			row.Labels[c] = label[k].String()
		}
		page.HeaderRows = append(page.HeaderRows, row)
	}
	for r, label := range table.Rows {
		page.Rows[r] = pivotRow{Label: label.String(), Cells: table.Cells[r]}
	}
	return pages.ExecuteTemplate(w, "pivot", page)
}

func htmlCell(value domain.Value) cell {
	switch {
	case value.IsNull():
		return cell{Class: "null"}
	case isNumber(value):
		return cell{Text: value.String(), Class: "number"}
	default:
		return cell{Text: value.String()}
	}
}

func isNumber(value domain.Value) bool {
	_, ok := value.Number()
	return ok
}

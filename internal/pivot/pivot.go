// Package pivot aggregates flat records into a dense contingency table.
package pivot

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/rpattn/projectanalysis/internal/domain"
)

// ErrMissingColumn is returned when a requested key is not a column of the records.
var ErrMissingColumn = errors.New("missing column")

// Aggregate folds the value column of one (row, column) group into a cell.
type Aggregate func(values []domain.Value) int

// Count counts the records of a group.
func Count(values []domain.Value) int { return len(values) }

// CountNonNull counts the records of a group whose value column is not null.
func CountNonNull(values []domain.Value) int {
	n := 0
	for _, value := range values {
		if !value.IsNull() {
			n++
		}
	}
	return n
}

// Label is one value per column key.
type Label []domain.Value

func (l Label) key() string {
	parts := make([]string, len(l))
	for i, value := range l {
		parts[i] = value.Key()
	}
	return strings.Join(parts, "\x00")
}

func (l Label) String() string {
	parts := make([]string, len(l))
	for i, value := range l {
		parts[i] = value.String()
	}
	return strings.Join(parts, " / ")
}

// Table is a dense pivot table. Cells[r][c] belongs to Rows[r] and Columns[c];
// combinations without records hold 0.
type Table struct {
	RowKey     string
	ColumnKeys []string
	ValueKey   string
	Rows       []domain.Value
	Columns    []Label
	Cells      [][]int
}

// Cell returns the cell for the given row label and column label values.
func (t *Table) Cell(row domain.Value, column ...domain.Value) (int, bool) {
	r := slices.IndexFunc(t.Rows, func(v domain.Value) bool { return v.Key() == row.Key() })
	if r < 0 {
		return 0, false
	}
	wanted := Label(column).key()
	c := slices.IndexFunc(t.Columns, func(l Label) bool { return l.key() == wanted })
	if c < 0 {
		return 0, false
	}
	return t.Cells[r][c], true
}

type options struct {
	aggregate Aggregate
	observed  bool
	language  language.Tag
}

type Option func(*options)

// WithAggregate replaces the default Count aggregate.
func WithAggregate(fn Aggregate) Option {
	return func(o *options) {
		if fn != nil {
			o.aggregate = fn
		}
	}
}

// WithObservedOrder keeps labels in first-seen order instead of sorting them.
func WithObservedOrder() Option {
	return func(o *options) {
		o.observed = true
	}
}

// WithLanguage sets the collation used to sort labels.
func WithLanguage(tag language.Tag) Option {
	return func(o *options) {
		o.language = tag
	}
}

type group struct {
	row    int
	column int
}

// Pivot groups the records of set by rowKey and columnKeys and aggregates
// valueKey per group. Records with a null row or column key are left out.
// Labels are the distinct observed values, sorted by collation unless
// WithObservedOrder is given.
func Pivot(set domain.RecordSet, rowKey string, columnKeys []string, valueKey string, opts ...Option) (*Table, error) {
	o := options{aggregate: Count, language: language.Czech}
	for _, opt := range opts {
		opt(&o)
	}

	if len(columnKeys) == 0 {
		return nil, fmt.Errorf("%w: at least one column key is required", ErrMissingColumn)
	}
	for _, key := range append([]string{rowKey, valueKey}, columnKeys...) {
		if !set.HasColumn(key) {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, key)
		}
	}

	var (
		rows       []domain.Value
		columns    []Label
		rowIndex   = map[string]int{}
		colIndex   = map[string]int{}
		groups     = map[group][]domain.Value{}
		groupOrder []group
	)
	for _, record := range set.Records {
		row, _ := record.Get(rowKey)
		if row.IsNull() {
			continue
		}
		label := make(Label, len(columnKeys))
		skip := false
		for i, key := range columnKeys {
			label[i], _ = record.Get(key)
			if label[i].IsNull() {
				skip = true
				break
			}
		}
		if skip {
			continue
		}

		r, ok := rowIndex[row.Key()]
		if !ok {
			r = len(rows)
			rowIndex[row.Key()] = r
			rows = append(rows, row)
		}
		c, ok := colIndex[label.key()]
		if !ok {
			c = len(columns)
			colIndex[label.key()] = c
			columns = append(columns, label)
		}

		value, _ := record.Get(valueKey)
		g := group{row: r, column: c}
		if _, seen := groups[g]; !seen {
			groupOrder = append(groupOrder, g)
		}
		groups[g] = append(groups[g], value)
	}

	rowPos := identity(len(rows))
	colPos := identity(len(columns))
	if !o.observed {
		collator := collate.New(o.language, collate.Numeric)
		rowPos = sortedPositions(len(rows), func(a, b int) int {
			return compareValue(collator, rows[a], rows[b])
		})
		colPos = sortedPositions(len(columns), func(a, b int) int {
			return compareLabel(collator, columns[a], columns[b])
		})
	}

	table := &Table{
		RowKey:     rowKey,
		ColumnKeys: append([]string(nil), columnKeys...),
		ValueKey:   valueKey,
		Rows:       make([]domain.Value, len(rows)),
		Columns:    make([]Label, len(columns)),
		Cells:      make([][]int, len(rows)),
	}
	for r := range rows {
		table.Rows[rowPos[r]] = rows[r]
		table.Cells[rowPos[r]] = make([]int, len(columns))
	}
	for c := range columns {
		table.Columns[colPos[c]] = columns[c]
	}
	for _, g := range groupOrder {
		table.Cells[rowPos[g.row]][colPos[g.column]] = o.aggregate(groups[g])
	}
	return table, nil
}

func identity(n int) []int {
	positions := make([]int, n)
	for i := range positions {
		positions[i] = i
	}
	return positions
}

// sortedPositions returns, for each original index, its position after sorting.
func sortedPositions(n int, cmp func(a, b int) int) []int {
	order := identity(n)
	slices.SortStableFunc(order, cmp)
	positions := make([]int, n)
	for pos, original := range order {
		positions[original] = pos
	}
	return positions
}

func compareValue(collator *collate.Collator, a, b domain.Value) int {
	if c := collator.CompareString(a.String(), b.String()); c != 0 {
		return c
	}
	return strings.Compare(a.Key(), b.Key())
}

func compareLabel(collator *collate.Collator, a, b Label) int {
	for i := range a {
		if c := compareValue(collator, a[i], b[i]); c != 0 {
			return c
		}
	}
	return 0
}

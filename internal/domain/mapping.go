package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rpattn/projectanalysis/pkg/dotpath"
)

// ErrInvalidMapping is returned when a path mapping cannot be built.
var ErrInvalidMapping = errors.New("invalid path mapping")

// ColumnPath binds an output column to a dotted path in the tree.
type ColumnPath struct {
	Column string `json:"column"`
	Path   string `json:"path"`
}

// PathMapping is an ordered column → path mapping. Its order is the column
// order of every record flattened with it.
type PathMapping struct {
	entries []ColumnPath
	index   map[string]int
}

// NewPathMapping validates entries and keeps them in the given order.
func NewPathMapping(entries ...ColumnPath) (PathMapping, error) {
	mapping := PathMapping{
		entries: make([]ColumnPath, 0, len(entries)),
		index:   make(map[string]int, len(entries)),
	}
	for _, entry := range entries {
		column := strings.TrimSpace(entry.Column)
		if column == "" {
			return PathMapping{}, fmt.Errorf("%w: column name is required", ErrInvalidMapping)
		}
		if _, exists := mapping.index[column]; exists {
			return PathMapping{}, fmt.Errorf("%w: duplicate column %s", ErrInvalidMapping, column)
		}
		if err := dotpath.Validate(entry.Path); err != nil {
			return PathMapping{}, fmt.Errorf("%w: column %s: %v", ErrInvalidMapping, column, err)
		}
		mapping.index[column] = len(mapping.entries)
		mapping.entries = append(mapping.entries, ColumnPath{Column: column, Path: entry.Path})
	}
	return mapping, nil
}

// MustPathMapping is NewPathMapping for package-level mappings.
func MustPathMapping(entries ...ColumnPath) PathMapping {
	mapping, err := NewPathMapping(entries...)
	if err != nil {
		panic(err)
	}
	return mapping
}

func (m PathMapping) Len() int { return len(m.entries) }

// Entries returns a copy of the mapping in order.
func (m PathMapping) Entries() []ColumnPath {
	return append([]ColumnPath(nil), m.entries...)
}

// Columns returns the column names in order.
func (m PathMapping) Columns() []string {
	columns := make([]string, len(m.entries))
	for i, entry := range m.entries {
		columns[i] = entry.Column
	}
	return columns
}

// Path returns the path mapped to column.
func (m PathMapping) Path(column string) (string, bool) {
	i, ok := m.index[column]
	if !ok {
		return "", false
	}
	return m.entries[i].Path, true
}

package domain

import (
	"bytes"
	"encoding/json"
)

// Record is one flat row. Values line up with Columns; every record flattened
// with the same mapping has the same columns.
type Record struct {
	columns []string
	values  []Value
}

// NewRecord pairs columns with values. Missing trailing values are null.
func NewRecord(columns []string, values []Value) Record {
	if len(values) < len(columns) {
		padded := make([]Value, len(columns))
		copy(padded, values)
		values = padded
	}
	return Record{columns: columns, values: values[:len(columns)]}
}

func (r Record) Len() int { return len(r.columns) }

func (r Record) Columns() []string { return r.columns }

func (r Record) Values() []Value { return r.values }

// Get returns the value of column and whether the record has that column.
func (r Record) Get(column string) (Value, bool) {
	for i, name := range r.columns {
		if name == column {
			return r.values[i], true
		}
	}
	return Null, false
}

// MarshalJSON encodes the record as an object whose keys follow column order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, column := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(column)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := r.values[i].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// RecordSet is a materialized flatten result together with its column set, so
// that an empty result still knows which columns it would have had.
type RecordSet struct {
	Columns []string
	Records []Record
}

func (s RecordSet) Len() int { return len(s.Records) }

// HasColumn reports whether column is part of the set's columns.
func (s RecordSet) HasColumn(column string) bool {
	for _, name := range s.Columns {
		if name == column {
			return true
		}
	}
	return false
}

// MarshalJSON encodes the records as a JSON array; an empty set is [].
func (s RecordSet) MarshalJSON() ([]byte, error) {
	if len(s.Records) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(s.Records)
}

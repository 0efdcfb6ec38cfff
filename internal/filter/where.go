// Package filter parses the lenient JSON accepted for the where filter.
package filter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

var (
	// ErrMissingFilter is returned when no where filter was supplied.
	ErrMissingFilter = errors.New("where filter is required")
	// ErrMalformedFilter is returned when the where filter cannot be parsed.
	ErrMalformedFilter = errors.New("malformed where filter")
)

// unquotedKey matches either a complete string literal, which is kept as is,
// or a bare identifier directly after '{' or ',' and followed by ':'.
var unquotedKey = regexp.MustCompile(`"(?:[^"\\]|\\.)*"|([{,]\s*)([\p{L}_$][\p{L}\p{N}_$]*)(\s*:)`)

// QuoteKeys wraps unquoted object keys in double quotes so that
// `{valid: {_eq: true}}` becomes `{"valid": {"_eq": true}}`.
func QuoteKeys(raw string) string {
	matches := unquotedKey.FindAllStringSubmatchIndex(raw, -1)
	if len(matches) == 0 {
		return raw
	}
	var b strings.Builder
	b.Grow(len(raw) + 8)
	last := 0
	for _, m := range matches {
		if m[4] < 0 {
			continue
		}
		b.WriteString(raw[last:m[4]])
		b.WriteByte('"')
		b.WriteString(raw[m[4]:m[5]])
		b.WriteByte('"')
		last = m[5]
	}
	b.WriteString(raw[last:])
	return b.String()
}

// Parse repairs and decodes a where filter. The result must be a JSON object.
func Parse(raw string) (map[string]any, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, ErrMissingFilter
	}

	dec := json.NewDecoder(strings.NewReader(QuoteKeys(trimmed)))
	dec.UseNumber()
	var where map[string]any
	if err := dec.Decode(&where); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFilter, err)
	}
	if where == nil {
		return nil, fmt.Errorf("%w: filter must be an object", ErrMalformedFilter)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: unexpected data after filter", ErrMalformedFilter)
	}
	return where, nil
}

package dotpath

import (
	"fmt"
	"strings"
	"unicode"
)

// Separator delimits the segments of a path.
const Separator = "."

// Components splits a path into its segments.
// The empty path addresses the root and has no components.
func Components(path string) []string {
	if path == "" {
		return []string{}
	}
	return strings.Split(path, Separator)
}

// Validate rejects paths with empty segments or segments containing whitespace.
// The empty path is valid and addresses the root.
func Validate(path string) error {
	for i, component := range Components(path) {
		if component == "" {
			return fmt.Errorf("path %q: component %d is empty", path, i)
		}
		if strings.IndexFunc(component, unicode.IsSpace) >= 0 {
			return fmt.Errorf("path %q: component %d contains whitespace", path, i)
		}
	}
	return nil
}

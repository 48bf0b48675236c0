// Package utils holds small helpers with no domain knowledge.
package utils

import "strconv"

// AtoiDefault parses s as a base-10 integer, returning def when s is empty
// or malformed. Handlers use it for optional numeric query parameters, where
// a garbage value should behave like an absent one.
func AtoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

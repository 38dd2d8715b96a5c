// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import "strconv"

// AtoiDefault converts s with strconv.Atoi, returning def when s is empty or
// not a valid integer.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// LimitParam parses a "limit" style query value: def when absent or
// malformed, then clamped to [1, max].
func LimitParam(s string, def, max int) int {
	n := AtoiDefault(s, def)
	if n < 1 {
		return 1
	}
	if n > max {
		return max
	}
	return n
}

// Package utils holds small helpers shared by the transport layer.
package utils

import (
	"strconv"
	"strings"
)

// AtoiDefault parses s as a base-10 int after trimming spaces and returns
// def when s is empty or malformed.
func AtoiDefault(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

// TotalPages returns how many pages of size pageSize hold total items.
func TotalPages(total, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

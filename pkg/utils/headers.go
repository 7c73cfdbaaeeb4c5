package utils

import "strings"

// CleanHeaders normalizes CSV header cells: trims whitespace and a UTF-8 BOM
// on the first cell, and lowercases so feed columns match by name.
func CleanHeaders(headers []string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		out[i] = strings.ToLower(h)
	}
	return out
}

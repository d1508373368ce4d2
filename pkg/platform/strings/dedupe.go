// Package strings provides string helpers for operator-supplied configuration.
package strings

import (
	"strings"
)

// DedupeAndTrim removes duplicates and empty strings from a slice, trimming
// whitespace from each element. Order is preserved.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}

	return result
}

// SplitList splits a comma- or whitespace-separated list such as
// "123, 456 789" and returns its distinct non-empty elements in order.
//
// Example:
//
//	SplitList(" 123,456,,123 ")
//	// Returns: []string{"123", "456"}
func SplitList(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n'
	})
	if len(fields) == 0 {
		return nil
	}
	return DedupeAndTrim(fields)
}

// Unwrap strips any leading and trailing characters in cutset after trimming
// whitespace, e.g. Unwrap(` "<abc>" `, `"<>`) == "abc".
func Unwrap(s, cutset string) string {
	s = strings.TrimSpace(s)
	for {
		trimmed := strings.TrimSpace(strings.Trim(s, cutset))
		if trimmed == s {
			return s
		}
		s = trimmed
	}
}

// Package strings provides string manipulation utilities.
package strings

import (
	"strings"
)

// DedupeAndTrim removes duplicates and empty strings from a slice,
// trimming whitespace from each element. Order is preserved.
//
// Example:
//
//	DedupeAndTrim([]string{"  kafka-1:9092 ", "kafka-2:9092", "kafka-1:9092", ""})
//	// Returns: []string{"kafka-1:9092", "kafka-2:9092"}
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

// MultisetUnion returns base followed by every element of other that base
// does not already account for, counting repeats. Nothing from either side is
// discarded and the result is deterministic for a fixed base.
//
// Example:
//
//	MultisetUnion([]string{"H1", "H2"}, []string{"H1", "H3", "H1"})
//	// Returns: []string{"H1", "H2", "H3", "H1"}
func MultisetUnion[T ~string](base, other []T) []T {
	counts := make(map[T]int, len(base))
	for _, v := range base {
		counts[v]++
	}
	result := make([]T, 0, len(base)+len(other))
	result = append(result, base...)
	for _, v := range other {
		if counts[v] > 0 {
			counts[v]--
			continue
		}
		result = append(result, v)
	}
	return result
}

// NormalizeText lowercases and collapses whitespace so that cosmetically
// different free text hashes identically.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

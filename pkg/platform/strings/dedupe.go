// Package strings holds small normalization helpers for free-form values
// that arrive with inconsistent padding or casing from the source systems,
// such as contact emails and broker lists.
package strings

import (
	"strings"
)

// DedupeAndTrim removes empty strings and duplicates from values, trimming
// surrounding whitespace first. The first occurrence wins; input order is
// preserved.
func DedupeAndTrim(values []string) []string {
	return dedupe(values, strings.TrimSpace)
}

// DedupeAndTrimLower additionally lowercases each value, collapsing entries
// that differ only by case. Email aggregation uses this so Ada@example.org
// and ada@example.org count as one address.
func DedupeAndTrimLower(values []string) []string {
	return dedupe(values, func(v string) string {
		return strings.ToLower(strings.TrimSpace(v))
	})
}

func dedupe(values []string, normalize func(string) string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		normalized := normalize(v)
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		result = append(result, normalized)
	}

	return result
}

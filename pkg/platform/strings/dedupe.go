// Package strings parses list-valued settings such as broker addresses and
// OCR language hints.
package strings

import (
	"strings"
)

// SplitList splits raw on sep and returns the trimmed, non-empty elements
// in first-seen order with repeats removed.
func SplitList(raw, sep string) []string {
	return DedupeAndTrim(strings.Split(raw, sep))
}

// DedupeAndTrim trims each value and drops blanks and repeats. Order is
// preserved. A nil input yields nil.
func DedupeAndTrim(values []string) []string {
	return dedupe(values, strings.TrimSpace)
}

// DedupeAndTrimLower is DedupeAndTrim with case folding, for values such as
// language tags that compare case-insensitively.
func DedupeAndTrimLower(values []string) []string {
	return dedupe(values, func(v string) string {
		return strings.ToLower(strings.TrimSpace(v))
	})
}

func dedupe(values []string, normalize func(string) string) []string {
	if values == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = normalize(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

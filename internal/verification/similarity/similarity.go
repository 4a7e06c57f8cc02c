// Package similarity scores how closely two holder names agree.
package similarity

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/adrg/strutil/metrics"
)

// Scorer returns a similarity score in [0,100].
type Scorer func(a, b string) int

// indel counts a substitution as one deletion plus one insertion.
var indel = &metrics.Levenshtein{
	CaseSensitive: true,
	InsertCost:    1,
	DeleteCost:    1,
	ReplaceCost:   2,
}

// Levenshtein is the default Scorer: the Indel ratio
// (lenA + lenB - indel distance) / (lenA + lenB), case-insensitive, rounded
// half to even. Whitespace runs are collapsed before comparison.
func Levenshtein(a, b string) int {
	a, b = normalize(a), normalize(b)
	if a == "" && b == "" {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	ratio := float64(total-indel.Distance(a, b)) / float64(total)
	return int(math.RoundToEven(ratio * 100))
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

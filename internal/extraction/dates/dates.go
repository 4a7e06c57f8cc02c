// Package dates normalizes free-form certificate dates to ISO calendar form
// (YYYY-MM-DD).
//
// Accepted inputs, tried in this fixed order:
//
//  1. year-first numeric: 2024-01-15, 2024/1/5, 2024.01.15
//  2. day-first numeric:  15/01/2024, 01-02-2024 (= 1 February), 31.12.2023
//  3. month-first numeric, only when day-first is impossible: 12/25/2024
//  4. written months, full or abbreviated, either order: 15 January 2024,
//     Jan 15 2024, 15-Jan-2024, 15th day of January, 2024
//
// Numeric dates where both day-first and month-first are valid resolve
// day-first; there is no locale inference.
package dates

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ISOLayout is the canonical output layout.
const ISOLayout = "2006-01-02"

var (
	numericRe  = regexp.MustCompile(`^(\d{1,4})[/.\-](\d{1,2})[/.\-](\d{1,4})$`)
	isoRe      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	ordinalRe  = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)\b`)
	dayOfRe    = regexp.MustCompile(`(?i)\b(?:day\s+)?of\b`)
	abbrevDot  = regexp.MustCompile(`([A-Za-z]{3,9})\.`)
	septRe     = regexp.MustCompile(`(?i)\bsept\b`)
	yearRunRe  = regexp.MustCompile(`\d{4}`)
	spaceRunRe = regexp.MustCompile(`\s+`)
)

var writtenLayouts = []string{
	"2 January 2006",
	"2 Jan 2006",
	"January 2 2006",
	"Jan 2 2006",
	"2-January-2006",
	"2-Jan-2006",
	"January-2-2006",
	"Jan-2-2006",
	"2006 January 2",
	"2006 Jan 2",
}

// Result is a normalized date. Normalized is false when Value is the raw
// input kept as a best-effort value because it carries a 4-digit year but no
// known layout matched.
type Result struct {
	Value      string
	Normalized bool
}

// Normalize converts s to ISO form. ok is false when s is neither a known
// layout nor contains a 4-digit run.
func Normalize(s string) (Result, bool) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return Result{}, false
	}
	if iso, ok := parseNumeric(raw); ok {
		return Result{Value: iso, Normalized: true}, true
	}
	if iso, ok := parseWritten(raw); ok {
		return Result{Value: iso, Normalized: true}, true
	}
	if yearRunRe.MatchString(raw) {
		return Result{Value: raw, Normalized: false}, true
	}
	return Result{}, false
}

// IsISO reports whether s is already in canonical form.
func IsISO(s string) bool {
	if !isoRe.MatchString(s) {
		return false
	}
	_, err := time.Parse(ISOLayout, s)
	return err == nil
}

func parseNumeric(s string) (string, bool) {
	m := numericRe.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	a, b, c := m[1], m[2], m[3]
	switch {
	case len(a) == 4:
		return build(atoi(a), atoi(b), atoi(c))
	case len(c) == 4 && len(a) <= 2:
		year := atoi(c)
		if iso, ok := build(year, atoi(b), atoi(a)); ok {
			return iso, true
		}
		return build(year, atoi(a), atoi(b))
	}
	return "", false
}

func parseWritten(s string) (string, bool) {
	cleaned := ordinalRe.ReplaceAllString(s, "$1")
	cleaned = dayOfRe.ReplaceAllString(cleaned, " ")
	cleaned = strings.ReplaceAll(cleaned, ",", " ")
	cleaned = abbrevDot.ReplaceAllString(cleaned, "$1")
	cleaned = septRe.ReplaceAllString(cleaned, "Sep")
	cleaned = strings.TrimSpace(spaceRunRe.ReplaceAllString(cleaned, " "))
	cleaned = strings.Trim(cleaned, ".")

	for _, layout := range writtenLayouts {
		t, err := time.Parse(layout, cleaned)
		if err == nil {
			return t.Format(ISOLayout), true
		}
	}
	return "", false
}

// build validates the calendar day; time.Date would silently roll 30 Feb over.
func build(year, month, day int) (string, bool) {
	if year < 1000 || month < 1 || month > 12 || day < 1 || day > 31 {
		return "", false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return "", false
	}
	return t.Format(ISOLayout), true
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}

package extraction

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	hspaceRe    = regexp.MustCompile(`[\t\f\v \x{00A0}\x{1680}\x{2000}-\x{200A}\x{202F}\x{205F}\x{3000}]+`)
	blankRunRe  = regexp.MustCompile(`\n{3,}`)
	artifactRe  = regexp.MustCompile(`[^\p{L}\p{M}\p{N}\s]{2,}`)
	nameTokenRe = regexp.MustCompile(`^[\p{L}\p{M}][\p{L}\p{M}.'\-]*$`)
	serialRe    = regexp.MustCompile(`^[A-Z0-9][A-Z0-9/\-_.]*$`)
)

// prepare collapses horizontal whitespace runs and blank-line runs, trims
// every line and unifies line endings. It is idempotent.
func prepare(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(hspaceRe.ReplaceAllString(line, " "))
	}
	text = strings.Join(lines, "\n")
	text = blankRunRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func significantRunes(text string) int {
	n := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

func collapse(s string) string {
	return strings.TrimSpace(hspaceRe.ReplaceAllString(s, " "))
}

// cutTrailingLabel truncates a captured line at the next label on the same
// line so "Abebe Kebede ID: ET/1" yields "Abebe Kebede".
func cutTrailingLabel(v string) string {
	end := len(v)
	for _, re := range []*regexp.Regexp{knownLabelCut, genericLabelCut} {
		if loc := re.FindStringIndex(v); loc != nil && loc[0] < end {
			end = loc[0]
		}
	}
	return v[:end]
}

var sentenceStops = map[string]struct{}{
	"has": {}, "have": {}, "having": {}, "who": {}, "for": {}, "is": {},
	"was": {}, "successfully": {}, "with": {}, "on": {}, "from": {},
	"at": {}, "upon": {}, "awarded": {}, "conferred": {}, "granted": {},
	"dated": {}, "given": {}, "the": {}, "and": {}, "this": {}, "by": {},
}

// clipSentence drops the tail of a phrase captured from running prose,
// starting at the first connective word.
func clipSentence(v string) string {
	fields := strings.Fields(v)
	for i, f := range fields {
		if i == 0 {
			continue
		}
		if _, stop := sentenceStops[strings.ToLower(strings.Trim(f, ".,;:"))]; stop {
			return strings.Join(fields[:i], " ")
		}
	}
	return strings.Join(fields, " ")
}

func trimPunct(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || (unicode.IsPunct(r) && r != '\'' && r != ')')
	})
}

func acceptName(raw string) (string, bool) {
	v := artifactRe.ReplaceAllString(raw, " ")
	v = strings.TrimFunc(collapse(v), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsMark(r)
	})
	tokens := strings.Fields(v)
	if len(tokens) < 2 || len(tokens) > 5 {
		return "", false
	}
	for _, tok := range tokens {
		if !nameTokenRe.MatchString(tok) {
			return "", false
		}
	}
	v = strings.Join(tokens, " ")
	if n := utf8.RuneCountInString(v); n < 5 || n > 60 {
		return "", false
	}
	return v, true
}

func acceptSerial(raw string) (string, bool) {
	v := strings.ToUpper(strings.TrimRight(strings.TrimSpace(raw), ".,;:-_/"))
	if v == "" || len(v) > 64 || !serialRe.MatchString(v) {
		return "", false
	}
	if !strings.ContainsAny(v, "0123456789") && len(v) < 6 {
		return "", false
	}
	return v, true
}

func acceptText(min, max int) func(string) (string, bool) {
	return func(raw string) (string, bool) {
		v := trimPunct(collapse(raw))
		n := utf8.RuneCountInString(v)
		if n < min || n > max {
			return "", false
		}
		if strings.IndexFunc(v, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) < 0 {
			return "", false
		}
		return v, true
	}
}

package extraction

import (
	"regexp"
	"strings"

	"shebacred/internal/credential/models"
	"shebacred/internal/extraction/dates"
)

// Label vocabularies. Latin labels match case-insensitively; Ethiopic labels
// cover the common Amharic forms.
const (
	nameLabels = `full\s+name|name\s+of\s+(?:the\s+)?(?:student|holder|graduate|candidate|trainee)|` +
		`(?:student|holder|candidate|graduate|trainee)(?:'s)?\s+name|ሙሉ\s*ስም|የተማሪው?\s*ስም|የሰልጣኝ\s*ስም`
	strongSerialLabels = `serial\s*(?:no\b\.?|number|#)|certificate\s*(?:no\b\.?|number|id)|` +
		`credential\s*(?:id|no\b\.?|number)|registration\s*(?:no\b\.?|number)|reg\.?\s*no\b\.?|` +
		`student\s*(?:id|no\b\.?|number)|id\s*(?:no\b\.?|number)|roll\s*(?:no\b\.?|number)|` +
		`መለያ\s*ቁጥር|የምስክር\s*ወረቀት\s*ቁጥር|ተከታታይ\s*ቁጥር|የተማሪ\s*መታወቂያ`
	weakSerialLabels = `id|ቁጥር|መታወቂያ`
	titleLabels      = `certificate\s+title|program(?:me)?|course(?:\s+title)?|degree|qualification|` +
		`field\s+of\s+study|major|specialization|title|የትምህርት\s*(?:ዘርፍ|መስክ|ዓይነት)|ፕሮግራም|ዲግሪ|ኮርስ`
	dateLabels = `date\s+of\s+(?:issue|award|graduation|completion|conferral)|issue\s+date|` +
		`issued\s+(?:on|date)|date\s+issued|graduation\s+date|awarded\s+on|date|` +
		`የተሰጠበት\s*ቀን|የምረቃ\s*ቀን|ቀን`
	institutionLabels = `institution(?:\s+name)?|university|college|school|issued\s+by|` +
		`awarding\s+(?:body|institution)|ተቋም|ዩኒቨርሲቲ|ኮሌጅ`
	gradeLabels = `grade|cgpa|gpa|classification|class|result|ውጤት|ደረጃ`

	boundary    = `(?:^|[^\p{L}\p{N}])`
	sep         = `[\t ]*[:：፥፦፡\-][\t ]*`
	optSep      = `[\t ]*[:：፥፦፡#\-]?[\t ]*`
	lineValue   = `([^\n]+)`
	serialValue = `([A-Za-z0-9][A-Za-z0-9/\-_.]*)`

	// A bare date must not be a slice of a longer serial or digit run.
	dateStart = `(?:^|[^\p{L}\p{N}/\-])`
	dateEnd   = `(?:$|[^\p{L}\p{N}/\-])`

	month = `(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|` +
		`sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)`
	dateExpr = `\d{4}[/.\-]\d{1,2}[/.\-]\d{1,2}|\d{1,2}[/.\-]\d{1,2}[/.\-]\d{4}|` +
		`\d{1,2}(?:st|nd|rd|th)?\s+(?:day\s+of\s+)?` + month + `\.?,?\s+\d{4}|` +
		month + `\.?\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4}`

	instNoun = `(?:[Uu]niversity|UNIVERSITY|[Cc]ollege|COLLEGE|[Ii]nstitute|INSTITUTE|` +
		`[Aa]cademy|ACADEMY|[Pp]olytechnic|POLYTECHNIC)`
	instPhrase = `((?:[\p{Lu}][\p{L}\p{M}&'.\-]*\s+){0,5}` + instNoun +
		`(?:\s+(?:of|OF)\s+[\p{Lu}][\p{L}\p{M}\-]*(?:\s+[\p{Lu}][\p{L}\p{M}\-]*){0,3})?)`
)

var (
	knownLabelCut = regexp.MustCompile(`(?i)\s+(?:` + strings.Join([]string{
		nameLabels, strongSerialLabels, weakSerialLabels, titleLabels,
		dateLabels, institutionLabels, gradeLabels, `name|ስም`,
	}, "|") + `)` + `[\t ]*[:：፥፦]`)
	genericLabelCut = regexp.MustCompile(`\s+[\p{L}][\p{L}\p{M}]*\.?[\t ]*[:：፥፦]`)
)

// Tier ranks how a field value was found.
type Tier int

const (
	// TierLabel is an explicit "Label: value" line.
	TierLabel Tier = iota + 1
	// TierContextual is ceremonial certificate prose.
	TierContextual
	// TierStructural is layout shape alone.
	TierStructural
)

func (t Tier) String() string {
	switch t {
	case TierLabel:
		return "label"
	case TierContextual:
		return "contextual"
	case TierStructural:
		return "structural"
	default:
		return "unknown"
	}
}

type pattern struct {
	tier   Tier
	re     *regexp.Regexp
	cut    bool
	clip   bool
	reject func(string) bool
}

type cascade struct {
	key      string
	patterns []pattern
	accept   func(string) (string, bool)
}

func labelled(labels, separator, value string) *regexp.Regexp {
	return regexp.MustCompile(`(?im)` + boundary + `(?:` + labels + `)` + separator + value)
}

func buildCascades() []cascade {
	return []cascade{
		{
			key:    models.KeyFullName,
			accept: acceptName,
			patterns: []pattern{
				{tier: TierLabel, re: labelled(nameLabels, sep, lineValue), cut: true},
				{tier: TierLabel, re: regexp.MustCompile(`(?im)^[\t ]*(?:name|ስም)` + sep + lineValue), cut: true},
				{tier: TierContextual, clip: true, re: regexp.MustCompile(
					`(?i)(?:certify\s+that|certifies\s+that|presented\s+to|awarded\s+to|conferred\s+(?:up)?on|granted\s+to)\s+` +
						`(?:(?:mr|mrs|ms|miss|dr|ato|w/ro|wro|weizero)\.?\s+)?` +
						`([\p{L}\p{M}][\p{L}\p{M}.'\-]*(?:[ ][\p{L}\p{M}][\p{L}\p{M}.'\-]*){1,6})`)},
				{tier: TierContextual, re: regexp.MustCompile(
					`(?:^|\s)ለ(\p{Ethiopic}+(?:\s+\p{Ethiopic}+){1,3})\s+(?:ተሰጥቷል|ተሰጠ|የተሰጠ)`)},
				{tier: TierStructural, reject: headerWords, re: regexp.MustCompile(
					`(?m)^((?:[A-Z][A-Z'\-.]+)(?:[ ][A-Z][A-Z'\-.]+){1,4})$`)},
			},
		},
		{
			key:    models.KeySerialNumber,
			accept: acceptSerial,
			patterns: []pattern{
				{tier: TierLabel, re: labelled(strongSerialLabels, optSep, serialValue)},
				{tier: TierLabel, re: labelled(weakSerialLabels, sep, serialValue)},
				{tier: TierContextual, re: regexp.MustCompile(
					`(?i)(?:bearing|with|under)\s+(?:(?:serial|certificate|registration)\s+)?(?:number|no\b\.?)` +
						optSep + serialValue)},
				{tier: TierContextual, re: regexp.MustCompile(
					`(?im)(?:^|\s)(?:no\b\.?|№)` + optSep + `([A-Za-z0-9][A-Za-z0-9/\-_.]*\d[A-Za-z0-9/\-_.]*)`)},
				{tier: TierStructural, reject: looksLikeDate, re: regexp.MustCompile(
					`(?m)(?:^|\s)([A-Za-z]{1,6}[/\-][A-Za-z0-9]{1,8}(?:[/\-][A-Za-z0-9]{1,10})+)(?:\s|$)`)},
			},
		},
		{
			key:    models.KeyCertificateTitle,
			accept: acceptText(1, 100),
			patterns: []pattern{
				{tier: TierLabel, re: labelled(titleLabels, sep, lineValue), cut: true},
				{tier: TierContextual, clip: true, re: regexp.MustCompile(
					`(?i)((?:bachelor|master|doctor)(?:'s)?\s+of\s+[\p{L}][\p{L}\p{M}&'\- ]*)`)},
				{tier: TierContextual, clip: true, re: regexp.MustCompile(
					`(?i)((?:diploma|certificate|degree)\s+in\s+[\p{L}][\p{L}\p{M}&'\- ]*)`)},
				{tier: TierContextual, clip: true, re: regexp.MustCompile(
					`(?i)(?:completed|completion\s+of)\s+(?:the\s+)?(?:course|program(?:me)?|training)\s+(?:in\s+|on\s+|of\s+)?` +
						`([\p{L}][\p{L}\p{M}&'\- ]*)`)},
				{tier: TierStructural, re: regexp.MustCompile(
					`(?im)^((?:certificate|diploma)\s+of\s+[\p{L}][\p{L}\p{M}&'\- ]*)$`)},
				{tier: TierStructural, re: regexp.MustCompile(
					`(?im)^([\p{L}][\p{L}\p{M}&'\- ]{0,60}(?:certificate|diploma|degree|transcript|licen[cs]e))$`)},
			},
		},
		{
			key:    models.KeyIssuedDate,
			accept: acceptDate,
			patterns: []pattern{
				{tier: TierLabel, re: labelled(dateLabels, sep, lineValue), cut: true},
				{tier: TierContextual, re: regexp.MustCompile(
					`(?i)(?:given|issued|awarded|conferred|dated|graduated)\s+(?:on\s+|this\s+)?(?:the\s+)?(` + dateExpr + `)` + dateEnd)},
				{tier: TierStructural, re: regexp.MustCompile(`(?i)` + dateStart + `(` + dateExpr + `)` + dateEnd)},
			},
		},
		{
			key:    models.KeyInstitution,
			accept: acceptText(3, 120),
			patterns: []pattern{
				{tier: TierLabel, re: labelled(institutionLabels, sep, lineValue), cut: true},
				{tier: TierContextual, re: regexp.MustCompile(`(?:[Ff]rom|[Aa]t|[Bb]y)\s+(?:[Tt]he\s+)?` + instPhrase)},
				{tier: TierStructural, re: regexp.MustCompile(`(?m)^` + instPhrase)},
				{tier: TierStructural, re: regexp.MustCompile(`((?:\p{Ethiopic}+\s+){0,4}(?:ዩኒቨርሲቲ|ኮሌጅ))`)},
			},
		},
		{
			key:    models.KeyGrade,
			accept: acceptText(1, 40),
			patterns: []pattern{
				{tier: TierLabel, re: labelled(gradeLabels, sep, lineValue), cut: true},
				{tier: TierContextual, re: regexp.MustCompile(
					`(?i)with\s+((?:very\s+)?(?:great\s+)?distinction|(?:first|second|third)\s+class(?:\s+(?:upper|lower)\s+division)?` +
						`(?:\s+honou?rs)?|honou?rs|merit|credit)`)},
				{tier: TierContextual, re: regexp.MustCompile(`(?i)\bc?gpa\s+(?:of\s+)?([0-4](?:\.[0-9]{1,2})?)\b`)},
			},
		},
	}
}

func acceptDate(raw string) (string, bool) {
	r, ok := dates.Normalize(collapse(raw))
	if !ok {
		return "", false
	}
	return r.Value, true
}

func looksLikeDate(v string) bool {
	r, ok := dates.Normalize(v)
	return ok && r.Normalized
}

var headerVocabulary = map[string]struct{}{
	"CERTIFICATE": {}, "DIPLOMA": {}, "DEGREE": {}, "TRANSCRIPT": {}, "UNIVERSITY": {},
	"COLLEGE": {}, "INSTITUTE": {}, "ACADEMY": {}, "SCHOOL": {}, "BACHELOR": {},
	"MASTER": {}, "DOCTOR": {}, "REPUBLIC": {}, "MINISTRY": {}, "FEDERAL": {},
	"DEMOCRATIC": {}, "ETHIOPIA": {}, "EDUCATION": {}, "AWARD": {}, "COMPLETION": {},
	"ACHIEVEMENT": {}, "OF": {}, "THE": {}, "AND": {}, "IN": {}, "PARTICIPATION": {},
	"APPRECIATION": {}, "TRAINING": {}, "PROGRAM": {}, "PROGRAMME": {}, "HONOUR": {},
	"HONOR": {}, "SCIENCE": {}, "ARTS": {}, "REGISTRAR": {}, "OFFICE": {},
}

// headerWords rejects all-caps lines that read as certificate headings rather
// than a holder's name.
func headerWords(v string) bool {
	for _, w := range strings.Fields(v) {
		if _, ok := headerVocabulary[strings.Trim(w, ".'-")]; ok {
			return true
		}
	}
	return false
}

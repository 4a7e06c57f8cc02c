// Package extraction turns raw OCR text from a certificate into a bounded
// field mapping.
//
// Every field is resolved by an ordered cascade of patterns, strongest first:
// explicit labels, then ceremonial certificate prose, then layout shape. The
// first pattern whose captured value passes the field's sanity filter wins.
// All pattern sets are compiled once in New and never mutated, so an
// Extractor is safe for concurrent use.
package extraction

import (
	"errors"

	"shebacred/internal/credential/models"
	"shebacred/internal/extraction/dates"
)

// MinSignificantRunes is the smallest non-whitespace payload worth parsing.
const MinSignificantRunes = 10

var (
	// ErrInputTooShort means the text carries too little content to parse.
	ErrInputTooShort = errors.New("extraction: input too short")
	// ErrUnusable means no holder name was found, or neither a serial number
	// nor a certificate title accompanied it.
	ErrUnusable = errors.New("extraction: no usable fields")
)

// Extraction is a successful parse.
type Extraction struct {
	Fields models.Fields
	// Provenance records which tier produced each field.
	Provenance map[string]Tier
	// DateNormalized is false when issued_date holds the raw text because no
	// known date layout matched.
	DateNormalized bool
}

// Extractor parses certificate text.
type Extractor struct {
	cascades []cascade
}

// New compiles the pattern cascades.
func New() *Extractor {
	return &Extractor{cascades: buildCascades()}
}

// Extract parses text. It returns ErrInputTooShort or ErrUnusable instead of
// a partial mapping; callers never see fields from a failed parse.
func (e *Extractor) Extract(text string) (*Extraction, error) {
	prepared := prepare(text)
	if significantRunes(prepared) < MinSignificantRunes {
		return nil, ErrInputTooShort
	}

	fields := models.Fields{}
	provenance := map[string]Tier{}
	for _, c := range e.cascades {
		value, tier, ok := c.resolve(prepared)
		if !ok {
			continue
		}
		fields[c.key] = value
		provenance[c.key] = tier
	}

	if !usable(fields) {
		return nil, ErrUnusable
	}

	result := &Extraction{Fields: fields, Provenance: provenance}
	if d, ok := fields[models.KeyIssuedDate]; ok {
		result.DateNormalized = dates.IsISO(d)
	}
	return result, nil
}

func usable(fields models.Fields) bool {
	if fields[models.KeyFullName] == "" {
		return false
	}
	return fields[models.KeySerialNumber] != "" || fields[models.KeyCertificateTitle] != ""
}

func (c cascade) resolve(text string) (string, Tier, bool) {
	for _, p := range c.patterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			raw := m[1]
			if p.cut {
				raw = cutTrailingLabel(raw)
			}
			if p.clip {
				raw = clipSentence(raw)
			}
			value, ok := c.accept(raw)
			if !ok {
				continue
			}
			if p.reject != nil && p.reject(value) {
				continue
			}
			return value, p.tier, true
		}
	}
	return "", 0, false
}

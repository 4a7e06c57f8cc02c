package models

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"shebacred/internal/credential/canonical"
	id "shebacred/pkg/domain"
	dErrors "shebacred/pkg/domain-errors"
)

// Field keys produced by the extractor and used by registry records.
const (
	KeyFullName         = "full_name"
	KeyName             = "name"
	KeySerialNumber     = "serial_number"
	KeyCredentialID     = "credential_id"
	KeyCertificateTitle = "certificate_title"
	KeyIssuedDate       = "issued_date"
	KeyInstitution      = "institution"
	KeyGrade            = "grade"
)

const (
	maxFields     = 64
	maxKeyLength  = 64
	maxValueBytes = 1024
)

// Fields is a credential's structured field mapping.
type Fields map[string]string

// Clone returns an independent copy.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Fingerprint is the canonical digest of the mapping.
func (f Fields) Fingerprint() string {
	return canonical.Fingerprint(f)
}

// Identifier returns the normalized identifier value used for identifier
// lookups: serial_number, falling back to credential_id.
func (f Fields) Identifier() string {
	if v := NormalizeIdentifier(f[KeySerialNumber]); v != "" {
		return v
	}
	return NormalizeIdentifier(f[KeyCredentialID])
}

// Name returns the holder name: full_name, falling back to name.
func (f Fields) Name() string {
	if v := strings.TrimSpace(f[KeyFullName]); v != "" {
		return v
	}
	return strings.TrimSpace(f[KeyName])
}

// NormalizeIdentifier trims and uppercases an identifier for index equality.
func NormalizeIdentifier(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Validate checks the mapping is a storable credential body.
func (f Fields) Validate() error {
	if len(f) == 0 {
		return dErrors.New(dErrors.CodeValidation, "fields must not be empty")
	}
	if len(f) > maxFields {
		return dErrors.New(dErrors.CodeValidation, "too many fields")
	}
	for k, v := range f {
		if strings.TrimSpace(k) == "" || len(k) > maxKeyLength {
			return dErrors.New(dErrors.CodeValidation, "field keys must be 1-64 characters")
		}
		if !utf8.ValidString(k) || !utf8.ValidString(v) {
			return dErrors.New(dErrors.CodeValidation, "fields must be valid UTF-8")
		}
		if len(v) > maxValueBytes {
			return dErrors.New(dErrors.CodeValidation, "field "+k+" is too long")
		}
	}
	return nil
}

// FieldsFromJSON renders a decoded JSON object into Fields. Scalars become
// their JSON text (numbers verbatim, booleans as true/false, null as empty);
// nested objects and arrays are rejected.
func FieldsFromJSON(raw map[string]json.RawMessage) (Fields, error) {
	out := make(Fields, len(raw))
	for k, v := range raw {
		var decoded any
		dec := json.NewDecoder(strings.NewReader(string(v)))
		dec.UseNumber()
		if err := dec.Decode(&decoded); err != nil {
			return nil, dErrors.New(dErrors.CodeValidation, "field "+k+" is not valid JSON")
		}
		switch val := decoded.(type) {
		case string:
			out[k] = val
		case json.Number:
			out[k] = val.String()
		case bool:
			out[k] = strconv.FormatBool(val)
		case nil:
			out[k] = ""
		default:
			return nil, dErrors.New(dErrors.CodeValidation, "field "+k+" must be a scalar value")
		}
	}
	return out, nil
}

// Status is a trusted credential's lifecycle state.
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusRevoked Status = "REVOKED"
	StatusExpired Status = "EXPIRED"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusRevoked, StatusExpired:
		return true
	}
	return false
}

func (s Status) IsActive() bool { return s == StatusActive }

// ParseStatus accepts a status case-insensitively.
func ParseStatus(s string) (Status, error) {
	status := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "status must be one of ACTIVE, REVOKED, EXPIRED")
	}
	return status, nil
}

// TrustedCredential is a registry-owned record. Fingerprint is always the
// canonical digest of Fields; construct and mutate through the functions
// below so the two never drift.
type TrustedCredential struct {
	ID          id.CredentialID
	IssuerID    id.IssuerID
	Fields      Fields
	Fingerprint string
	Identifier  string
	Status      Status
	IssuedAt    time.Time
	UpdatedAt   time.Time
}

// NewTrustedCredential builds an ACTIVE record with a derived fingerprint.
func NewTrustedCredential(issuer id.IssuerID, fields Fields, now time.Time) (*TrustedCredential, error) {
	if issuer.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "issuer is required")
	}
	if err := fields.Validate(); err != nil {
		return nil, err
	}
	fields = fields.Clone()
	return &TrustedCredential{
		ID:          id.NewCredentialID(),
		IssuerID:    issuer,
		Fields:      fields,
		Fingerprint: fields.Fingerprint(),
		Identifier:  fields.Identifier(),
		Status:      StatusActive,
		IssuedAt:    now,
		UpdatedAt:   now,
	}, nil
}

// WithFields returns a copy carrying fields and a re-derived fingerprint.
func (c *TrustedCredential) WithFields(fields Fields, now time.Time) (*TrustedCredential, error) {
	if err := fields.Validate(); err != nil {
		return nil, err
	}
	out := *c
	out.Fields = fields.Clone()
	out.Fingerprint = out.Fields.Fingerprint()
	out.Identifier = out.Fields.Identifier()
	out.UpdatedAt = now
	return &out, nil
}

// WithStatus returns a copy in the given lifecycle state.
func (c *TrustedCredential) WithStatus(status Status, now time.Time) (*TrustedCredential, error) {
	if !status.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid status")
	}
	out := *c
	out.Fields = c.Fields.Clone()
	out.Status = status
	out.UpdatedAt = now
	return &out, nil
}

// Validate reports an invariant violation when the stored fingerprint no
// longer matches the fields.
func (c *TrustedCredential) Validate() error {
	if c.Fingerprint != c.Fields.Fingerprint() {
		return dErrors.New(dErrors.CodeInvariantViolation, "credential fingerprint does not match fields")
	}
	if c.Identifier != c.Fields.Identifier() {
		return dErrors.New(dErrors.CodeInvariantViolation, "credential identifier does not match fields")
	}
	return nil
}

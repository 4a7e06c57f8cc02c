package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shebacred/internal/credential/canonical"
	id "shebacred/pkg/domain"
	dErrors "shebacred/pkg/domain-errors"
)

var now = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func sampleFields() Fields {
	return Fields{
		KeyFullName:         "Abebe Kebede",
		KeySerialNumber:     "ET/24/00001",
		KeyCertificateTitle: "Computer Science",
	}
}

func TestNewTrustedCredential(t *testing.T) {
	t.Run("derives fingerprint and identifier", func(t *testing.T) {
		issuer := id.NewIssuerID()
		fields := sampleFields()

		cred, err := NewTrustedCredential(issuer, fields, now)
		require.NoError(t, err)
		assert.Equal(t, canonical.Fingerprint(fields), cred.Fingerprint)
		assert.Equal(t, "ET/24/00001", cred.Identifier)
		assert.Equal(t, StatusActive, cred.Status)
		assert.Equal(t, issuer, cred.IssuerID)
		assert.Equal(t, now, cred.IssuedAt)
		assert.False(t, cred.ID.IsNil())
		require.NoError(t, cred.Validate())
	})

	t.Run("copies caller fields", func(t *testing.T) {
		fields := sampleFields()
		cred, err := NewTrustedCredential(id.NewIssuerID(), fields, now)
		require.NoError(t, err)

		fields[KeyFullName] = "Someone Else"
		assert.Equal(t, "Abebe Kebede", cred.Fields[KeyFullName])
		require.NoError(t, cred.Validate())
	})

	t.Run("requires issuer", func(t *testing.T) {
		_, err := NewTrustedCredential(id.IssuerID{}, sampleFields(), now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects empty fields", func(t *testing.T) {
		_, err := NewTrustedCredential(id.NewIssuerID(), Fields{}, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects blank keys and oversized values", func(t *testing.T) {
		_, err := NewTrustedCredential(id.NewIssuerID(), Fields{" ": "x"}, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

		_, err = NewTrustedCredential(id.NewIssuerID(), Fields{"k": strings.Repeat("x", maxValueBytes+1)}, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestTrustedCredentialMutation(t *testing.T) {
	cred, err := NewTrustedCredential(id.NewIssuerID(), sampleFields(), now)
	require.NoError(t, err)
	later := now.Add(time.Hour)

	t.Run("with fields re-derives fingerprint", func(t *testing.T) {
		amended := sampleFields()
		amended[KeyGrade] = "Distinction"

		updated, err := cred.WithFields(amended, later)
		require.NoError(t, err)
		assert.NotEqual(t, cred.Fingerprint, updated.Fingerprint)
		assert.Equal(t, canonical.Fingerprint(amended), updated.Fingerprint)
		assert.Equal(t, cred.ID, updated.ID)
		assert.Equal(t, later, updated.UpdatedAt)
		require.NoError(t, updated.Validate())
		require.NoError(t, cred.Validate(), "original must be untouched")
	})

	t.Run("direct field mutation is detected", func(t *testing.T) {
		tampered := *cred
		tampered.Fields = cred.Fields.Clone()
		tampered.Fields[KeyFullName] = "Tampered"
		err := tampered.Validate()
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("with status keeps fingerprint", func(t *testing.T) {
		revoked, err := cred.WithStatus(StatusRevoked, later)
		require.NoError(t, err)
		assert.Equal(t, StatusRevoked, revoked.Status)
		assert.Equal(t, cred.Fingerprint, revoked.Fingerprint)
		assert.Equal(t, StatusActive, cred.Status)

		_, err = cred.WithStatus(Status("PAUSED"), later)
		assert.Error(t, err)
	})
}

func TestFieldsAccessors(t *testing.T) {
	tests := []struct {
		name       string
		fields     Fields
		identifier string
		holder     string
	}{
		{"serial number wins", Fields{KeySerialNumber: " et/24/1 ", KeyCredentialID: "OTHER", KeyFullName: "A B"}, "ET/24/1", "A B"},
		{"credential id fallback", Fields{KeyCredentialID: "cs-2024-7", KeyName: "Abebe Kebede"}, "CS-2024-7", "Abebe Kebede"},
		{"nothing", Fields{KeyCertificateTitle: "x"}, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.identifier, tt.fields.Identifier())
			assert.Equal(t, tt.holder, tt.fields.Name())
		})
	}
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" revoked ")
	require.NoError(t, err)
	assert.Equal(t, StatusRevoked, s)
	assert.False(t, s.IsActive())

	_, err = ParseStatus("deleted")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestFieldsFromJSON(t *testing.T) {
	t.Run("renders scalars", func(t *testing.T) {
		var raw map[string]json.RawMessage
		require.NoError(t, json.Unmarshal([]byte(`{"full_name":"Abebe","year":2024,"gpa":3.50,"honours":true,"note":null}`), &raw))

		fields, err := FieldsFromJSON(raw)
		require.NoError(t, err)
		assert.Equal(t, Fields{
			"full_name": "Abebe",
			"year":      "2024",
			"gpa":       "3.50",
			"honours":   "true",
			"note":      "",
		}, fields)
	})

	t.Run("rejects nested values", func(t *testing.T) {
		var raw map[string]json.RawMessage
		require.NoError(t, json.Unmarshal([]byte(`{"courses":["a","b"]}`), &raw))

		_, err := FieldsFromJSON(raw)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

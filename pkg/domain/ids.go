// Package domain holds typed identifiers shared across modules.
//
// Each identifier wraps a UUID in its own named type so a DocumentID can never
// be passed where a CredentialID is expected. Construct values with the Parse
// functions at trust boundaries (HTTP params, JWT claims) and with the New
// functions when minting.
package domain

import (
	"github.com/google/uuid"

	dErrors "shebacred/pkg/domain-errors"
)

type (
	// DocumentID identifies a user-submitted document (a verification claim).
	DocumentID uuid.UUID
	// CredentialID identifies a trusted registry record.
	CredentialID uuid.UUID
	// IssuerID identifies the institution that owns registry records.
	IssuerID uuid.UUID
	// PrincipalID identifies the authenticated caller.
	PrincipalID uuid.UUID
)

func NewDocumentID() DocumentID     { return DocumentID(uuid.New()) }
func NewCredentialID() CredentialID { return CredentialID(uuid.New()) }
func NewIssuerID() IssuerID         { return IssuerID(uuid.New()) }
func NewPrincipalID() PrincipalID   { return PrincipalID(uuid.New()) }

func (id DocumentID) String() string   { return uuid.UUID(id).String() }
func (id CredentialID) String() string { return uuid.UUID(id).String() }
func (id IssuerID) String() string     { return uuid.UUID(id).String() }
func (id PrincipalID) String() string  { return uuid.UUID(id).String() }

func (id DocumentID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id CredentialID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id IssuerID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id PrincipalID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }

func ParseDocumentID(s string) (DocumentID, error) {
	u, err := parseUUID(s, "document_id")
	return DocumentID(u), err
}

func ParseCredentialID(s string) (CredentialID, error) {
	u, err := parseUUID(s, "credential_id")
	return CredentialID(u), err
}

func ParseIssuerID(s string) (IssuerID, error) {
	u, err := parseUUID(s, "issuer_id")
	return IssuerID(u), err
}

func ParsePrincipalID(s string) (PrincipalID, error) {
	u, err := parseUUID(s, "principal_id")
	return PrincipalID(u), err
}

func parseUUID(s, field string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" must be a valid uuid")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" must not be nil")
	}
	return u, nil
}

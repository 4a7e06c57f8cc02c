package handler

import (
	"time"

	"shebacred/internal/credential/models"
)

// CredentialResponse is the issuer's view of a registry record.
type CredentialResponse struct {
	ID          string        `json:"id"`
	IssuerID    string        `json:"issuer_id"`
	Fields      models.Fields `json:"fields"`
	Fingerprint string        `json:"fingerprint"`
	Status      models.Status `json:"status"`
	IssuedAt    string        `json:"issued_at"`
	UpdatedAt   string        `json:"updated_at"`
}

type ListResponse struct {
	Credentials []CredentialResponse `json:"credentials"`
}

func toCredentialResponse(c *models.TrustedCredential) CredentialResponse {
	return CredentialResponse{
		ID:          c.ID.String(),
		IssuerID:    c.IssuerID.String(),
		Fields:      c.Fields,
		Fingerprint: c.Fingerprint,
		Status:      c.Status,
		IssuedAt:    c.IssuedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   c.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

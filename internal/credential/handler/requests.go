package handler

import (
	"encoding/json"

	"shebacred/internal/credential/models"
	dErrors "shebacred/pkg/domain-errors"
)

// FieldsRequest is the body of POST /issuer/credentials and
// PUT /issuer/credentials/{id}. Field values may be any JSON scalar.
type FieldsRequest struct {
	Fields map[string]json.RawMessage `json:"fields"`

	parsed models.Fields
}

func (r *FieldsRequest) Validate() error {
	if r == nil || len(r.Fields) == 0 {
		return dErrors.New(dErrors.CodeValidation, "fields must not be empty")
	}
	fields, err := models.FieldsFromJSON(r.Fields)
	if err != nil {
		return err
	}
	if err := fields.Validate(); err != nil {
		return err
	}
	r.parsed = fields
	return nil
}

func (r *FieldsRequest) ParsedFields() models.Fields {
	return r.parsed
}

// StatusRequest is the body of POST /issuer/credentials/{id}/status.
type StatusRequest struct {
	Status string `json:"status"`

	parsed models.Status
}

func (r *StatusRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	status, err := models.ParseStatus(r.Status)
	if err != nil {
		return err
	}
	r.parsed = status
	return nil
}

func (r *StatusRequest) ParsedStatus() models.Status {
	return r.parsed
}

package handler

import (
	"strings"

	id "shebacred/pkg/domain"
	dErrors "shebacred/pkg/domain-errors"
)

// maxTextBytes bounds one raw certificate text.
const maxTextBytes = 64 << 10

// SubmitRequest is the body of POST /documents and POST /documents/{id}/verify.
// Blank text is accepted and yields a PARSE_FAILED verdict; only an absent
// field is rejected.
type SubmitRequest struct {
	RawText *string `json:"raw_text"`
}

func (r *SubmitRequest) Validate() error {
	if r == nil || r.RawText == nil {
		return dErrors.New(dErrors.CodeValidation, "raw_text is required")
	}
	if len(*r.RawText) > maxTextBytes {
		return dErrors.New(dErrors.CodeValidation, "raw_text is too long")
	}
	return nil
}

func (r *SubmitRequest) Text() string {
	if r.RawText == nil {
		return ""
	}
	return *r.RawText
}

// BatchRequest is the body of POST /documents/batch.
type BatchRequest struct {
	Texts []string `json:"texts"`
}

func (r *BatchRequest) Validate() error {
	if r == nil || len(r.Texts) == 0 {
		return dErrors.New(dErrors.CodeValidation, "texts must not be empty")
	}
	for _, text := range r.Texts {
		if len(text) > maxTextBytes {
			return dErrors.New(dErrors.CodeValidation, "a text in the batch is too long")
		}
	}
	return nil
}

// ConfirmRequest is the body of POST /documents/{id}/confirm.
type ConfirmRequest struct {
	CandidateID string `json:"candidate_id"`

	parsedCandidateID id.CredentialID
}

func (r *ConfirmRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	candidate, err := id.ParseCredentialID(strings.TrimSpace(r.CandidateID))
	if err != nil {
		return err
	}
	r.parsedCandidateID = candidate
	return nil
}

func (r *ConfirmRequest) ParsedCandidateID() id.CredentialID {
	return r.parsedCandidateID
}

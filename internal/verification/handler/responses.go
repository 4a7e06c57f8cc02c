package handler

import (
	"shebacred/internal/verification/models"
	"shebacred/internal/verification/service"
)

// SubmissionResponse pairs a document with the verdict of its latest attempt.
type SubmissionResponse struct {
	DocumentID string                 `json:"document_id"`
	Verdict    models.VerdictResponse `json:"verdict"`
}

type BatchResponse struct {
	Results []SubmissionResponse `json:"results"`
}

func toSubmissionResponse(sub *service.Submission) SubmissionResponse {
	return SubmissionResponse{
		DocumentID: sub.Document.ID.String(),
		Verdict:    sub.Verdict.Response(),
	}
}

package models

import (
	"time"

	credmodels "shebacred/internal/credential/models"
	id "shebacred/pkg/domain"
)

// Outcome is the terminal state of one verification attempt.
type Outcome string

const (
	OutcomeVerified             Outcome = "VERIFIED"
	OutcomeConfirmationRequired Outcome = "CONFIRMATION_REQUIRED"
	OutcomeUnverified           Outcome = "UNVERIFIED"
	OutcomeParseFailed          Outcome = "PARSE_FAILED"
)

// Retryable reports whether new raw text may be submitted for the document.
func (o Outcome) Retryable() bool {
	return o == OutcomeUnverified || o == OutcomeParseFailed
}

// Reason explains an UNVERIFIED outcome.
type Reason string

const (
	ReasonNoIdentifier          Reason = "no_identifier"
	ReasonNoRecordForIdentifier Reason = "no_record_for_identifier"
	ReasonBelowThreshold        Reason = "below_threshold"
	ReasonRecordInactive        Reason = "record_inactive"

	// ReasonCandidateAbandoned is recorded on a document, never produced by
	// matching.
	ReasonCandidateAbandoned Reason = "candidate_abandoned"
)

// Verdict is the tagged result of one attempt. Only the fields of the
// outcome's variant are set:
//   - VERIFIED: TrustedFields, CredentialID
//   - CONFIRMATION_REQUIRED: CandidateFields, CandidateID, DocumentID, Score
//   - UNVERIFIED: Reason
//   - PARSE_FAILED: nothing
type Verdict struct {
	Outcome         Outcome
	TrustedFields   credmodels.Fields
	CredentialID    id.CredentialID
	CandidateFields credmodels.Fields
	CandidateID     id.CredentialID
	DocumentID      id.DocumentID
	Score           int
	Reason          Reason
}

// Verified reports ground truth: the trusted record's fields, never the
// extracted ones.
func Verified(cred *credmodels.TrustedCredential) Verdict {
	return Verdict{
		Outcome:       OutcomeVerified,
		TrustedFields: cred.Fields.Clone(),
		CredentialID:  cred.ID,
	}
}

func ConfirmationRequired(cred *credmodels.TrustedCredential, docID id.DocumentID, score int) Verdict {
	return Verdict{
		Outcome:         OutcomeConfirmationRequired,
		CandidateFields: cred.Fields.Clone(),
		CandidateID:     cred.ID,
		DocumentID:      docID,
		Score:           score,
	}
}

func Unverified(reason Reason) Verdict {
	return Verdict{Outcome: OutcomeUnverified, Reason: reason}
}

func ParseFailed() Verdict {
	return Verdict{Outcome: OutcomeParseFailed}
}

// VerdictResponse is the wire shape of a Verdict.
type VerdictResponse struct {
	Outcome         Outcome           `json:"outcome"`
	TrustedFields   credmodels.Fields `json:"trusted_fields,omitempty"`
	CandidateFields credmodels.Fields `json:"candidate_fields,omitempty"`
	CandidateID     string            `json:"candidate_id,omitempty"`
	DocumentID      string            `json:"document_id,omitempty"`
	SimilarityScore *int              `json:"similarity_score,omitempty"`
	Reason          Reason            `json:"reason,omitempty"`
}

func (v Verdict) Response() VerdictResponse {
	resp := VerdictResponse{Outcome: v.Outcome}
	switch v.Outcome {
	case OutcomeVerified:
		resp.TrustedFields = v.TrustedFields
	case OutcomeConfirmationRequired:
		score := v.Score
		resp.CandidateFields = v.CandidateFields
		resp.CandidateID = v.CandidateID.String()
		resp.DocumentID = v.DocumentID.String()
		resp.SimilarityScore = &score
	case OutcomeUnverified:
		resp.Reason = v.Reason
	}
	return resp
}

// Document is a user's verification claim. It outlives individual attempts:
// failed and unverified attempts leave it open for re-submission.
type Document struct {
	ID                   id.DocumentID
	OwnerID              id.PrincipalID
	ExtractedText        string
	LastOutcome          Outcome
	LastReason           Reason
	CandidateID          id.CredentialID
	CandidateScore       int
	VerifiedCredentialID id.CredentialID
	UploadedAt           time.Time
	UpdatedAt            time.Time
}

func NewDocument(owner id.PrincipalID, text string, now time.Time) *Document {
	return &Document{
		ID:            id.NewDocumentID(),
		OwnerID:       owner,
		ExtractedText: text,
		UploadedAt:    now,
		UpdatedAt:     now,
	}
}

// IsLinked reports whether the document is bound to a trusted record.
func (d *Document) IsLinked() bool { return !d.VerifiedCredentialID.IsNil() }

// HasPendingCandidate reports a surfaced candidate awaiting confirm or abandon.
func (d *Document) HasPendingCandidate() bool { return !d.CandidateID.IsNil() }

// Record applies an attempt's verdict. A VERIFIED verdict links the document;
// any other verdict replaces a previously surfaced candidate.
func (d *Document) Record(text string, v Verdict, now time.Time) {
	d.ExtractedText = text
	d.LastOutcome = v.Outcome
	d.LastReason = v.Reason
	d.CandidateID = id.CredentialID{}
	d.CandidateScore = 0
	switch v.Outcome {
	case OutcomeVerified:
		d.VerifiedCredentialID = v.CredentialID
	case OutcomeConfirmationRequired:
		d.CandidateID = v.CandidateID
		d.CandidateScore = v.Score
	}
	d.UpdatedAt = now
}

// Link binds the document to its confirmed candidate.
func (d *Document) Link(credID id.CredentialID, now time.Time) {
	d.VerifiedCredentialID = credID
	d.CandidateID = id.CredentialID{}
	d.CandidateScore = 0
	d.LastOutcome = OutcomeVerified
	d.LastReason = ""
	d.UpdatedAt = now
}

// Abandon discards a pending candidate; the document becomes retryable.
func (d *Document) Abandon(now time.Time) {
	d.CandidateID = id.CredentialID{}
	d.CandidateScore = 0
	d.LastOutcome = OutcomeUnverified
	d.LastReason = ReasonCandidateAbandoned
	d.UpdatedAt = now
}

// DocumentResponse is the owner's view of a document.
type DocumentResponse struct {
	ID                   string  `json:"id"`
	LastOutcome          Outcome `json:"last_outcome,omitempty"`
	LastReason           Reason  `json:"last_reason,omitempty"`
	CandidateID          string  `json:"candidate_id,omitempty"`
	VerifiedCredentialID string  `json:"verified_credential_id,omitempty"`
	UploadedAt           string  `json:"uploaded_at"`
	UpdatedAt            string  `json:"updated_at"`
}

func (d *Document) Response() DocumentResponse {
	resp := DocumentResponse{
		ID:          d.ID.String(),
		LastOutcome: d.LastOutcome,
		LastReason:  d.LastReason,
		UploadedAt:  d.UploadedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   d.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if d.HasPendingCandidate() {
		resp.CandidateID = d.CandidateID.String()
	}
	if d.IsLinked() {
		resp.VerifiedCredentialID = d.VerifiedCredentialID.String()
	}
	return resp
}

// PublicStatus is what a third party scanning a document's QR code sees. It
// carries no credential fields.
type PublicStatus struct {
	DocumentID       string            `json:"document_id"`
	Verified         bool              `json:"verified"`
	IssuerID         string            `json:"issuer_id,omitempty"`
	CredentialStatus credmodels.Status `json:"credential_status,omitempty"`
	VerifiedAt       string            `json:"verified_at,omitempty"`
}

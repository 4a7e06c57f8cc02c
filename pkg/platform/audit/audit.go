// Package audit defines the audit trail emitted by registry and verification
// flows. Events are transport-agnostic so sinks (memory, PostgreSQL, Kafka)
// can fan out without knowing the producing module.
package audit

import (
	"context"
	"time"

	id "shebacred/pkg/domain"
)

// EventCategory classifies audit events by retention and routing needs.
type EventCategory string

const (
	// CategoryCompliance covers registry mutations and confirmed links.
	// Emission is fail-closed: the operation fails if the event is lost.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers routine verification attempts.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions.
type Event struct {
	Category    EventCategory
	Timestamp   time.Time
	PrincipalID id.PrincipalID
	// Subject is the entity acted on (document or credential ID).
	Subject   string
	Action    string
	Decision  string
	Reason    string
	RequestID string
	// ActorID is the issuer when the action was taken on an issuer's behalf.
	ActorID string
}

type AuditEvent string

const (
	// Verification events
	EventDocumentSubmitted       AuditEvent = "document_submitted"
	EventDocumentVerified        AuditEvent = "document_verified"
	EventConfirmationRequired    AuditEvent = "confirmation_required"
	EventVerificationUnverified  AuditEvent = "verification_unverified"
	EventVerificationParseFailed AuditEvent = "verification_parse_failed"
	EventCandidateConfirmed      AuditEvent = "candidate_confirmed"
	EventCandidateAbandoned      AuditEvent = "candidate_abandoned"
	EventConfirmationRejected    AuditEvent = "confirmation_rejected"

	// Registry events
	EventCredentialIssued        AuditEvent = "credential_issued"
	EventCredentialAmended       AuditEvent = "credential_amended"
	EventCredentialStatusChanged AuditEvent = "credential_status_changed"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventDocumentVerified:        CategoryCompliance,
	EventCandidateConfirmed:      CategoryCompliance,
	EventCredentialIssued:        CategoryCompliance,
	EventCredentialAmended:       CategoryCompliance,
	EventCredentialStatusChanged: CategoryCompliance,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Lister is implemented by stores that can read back a principal's trail.
type Lister interface {
	ListByPrincipal(ctx context.Context, principal id.PrincipalID) ([]Event, error)
}

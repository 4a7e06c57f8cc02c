package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "shebacred/pkg/domain"
	audit "shebacred/pkg/platform/audit"
	txcontext "shebacred/pkg/platform/tx"
)

// Store implements audit.Store on the audit_events table. Appends join the
// transaction carried in ctx, so a compliance event commits or rolls back with
// the mutation it describes.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	var principal uuid.NullUUID
	if !event.PrincipalID.IsNil() {
		principal = uuid.NullUUID{UUID: uuid.UUID(event.PrincipalID), Valid: true}
	}
	category := event.Category
	if category == "" {
		category = audit.AuditEvent(event.Action).Category()
	}

	query := `
		INSERT INTO audit_events (
			id, category, occurred_at, principal_id, subject, action,
			decision, reason, request_id, actor_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, query,
		uuid.New(),
		string(category),
		event.Timestamp,
		principal,
		event.Subject,
		event.Action,
		event.Decision,
		event.Reason,
		event.RequestID,
		event.ActorID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *Store) ListByPrincipal(ctx context.Context, principal id.PrincipalID) ([]audit.Event, error) {
	query := `
		SELECT category, occurred_at, principal_id, subject, action,
			decision, reason, request_id, actor_id
		FROM audit_events
		WHERE principal_id = $1
		ORDER BY occurred_at ASC
	`
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, query, uuid.UUID(principal))
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			event    audit.Event
			category string
			pid      uuid.NullUUID
		)
		if err := rows.Scan(&category, &event.Timestamp, &pid, &event.Subject, &event.Action,
			&event.Decision, &event.Reason, &event.RequestID, &event.ActorID); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Category = audit.EventCategory(category)
		if pid.Valid {
			event.PrincipalID = id.PrincipalID(pid.UUID)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

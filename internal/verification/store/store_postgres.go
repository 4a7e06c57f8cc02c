package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"shebacred/internal/verification/models"
	id "shebacred/pkg/domain"
	"shebacred/pkg/platform/sentinel"
	txcontext "shebacred/pkg/platform/tx"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// PostgresStore persists documents. FindByIDForUpdate takes a row lock and
// must run inside a transaction carried in ctx.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const selectDocument = `
	SELECT id, owner_id, extracted_text, last_outcome, last_reason, candidate_id,
	       candidate_score, verified_credential_id, uploaded_at, updated_at
	FROM documents
	WHERE id = $1
`

func (s *PostgresStore) Create(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO documents (id, owner_id, extracted_text, last_outcome, last_reason, candidate_id,
		                       candidate_score, verified_credential_id, uploaded_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(doc.ID),
		uuid.UUID(doc.OwnerID),
		doc.ExtractedText,
		string(doc.LastOutcome),
		string(doc.LastReason),
		nullable(uuid.UUID(doc.CandidateID)),
		doc.CandidateScore,
		nullable(uuid.UUID(doc.VerifiedCredentialID)),
		doc.UploadedAt,
		doc.UpdatedAt,
	)
	if err != nil {
		if hasPgCode(err, pgUniqueViolation) {
			return sentinel.ErrConflict
		}
		if hasPgCode(err, pgForeignKeyViolation) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, docID id.DocumentID) (*models.Document, error) {
	row := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, selectDocument, uuid.UUID(docID))
	return scanDocument(row, "find document")
}

func (s *PostgresStore) FindByIDForUpdate(ctx context.Context, docID id.DocumentID) (*models.Document, error) {
	if _, ok := txcontext.From(ctx); !ok {
		return nil, errors.New("find document for update: no transaction in context")
	}
	row := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, selectDocument+` FOR UPDATE`, uuid.UUID(docID))
	return scanDocument(row, "lock document")
}

func (s *PostgresStore) Update(ctx context.Context, doc *models.Document) error {
	query := `
		UPDATE documents
		SET extracted_text = $2, last_outcome = $3, last_reason = $4, candidate_id = $5,
		    candidate_score = $6, verified_credential_id = $7, updated_at = $8
		WHERE id = $1
	`
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(doc.ID),
		doc.ExtractedText,
		string(doc.LastOutcome),
		string(doc.LastReason),
		nullable(uuid.UUID(doc.CandidateID)),
		doc.CandidateScore,
		nullable(uuid.UUID(doc.VerifiedCredentialID)),
		doc.UpdatedAt,
	)
	if err != nil {
		if hasPgCode(err, pgForeignKeyViolation) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("update document: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanDocument(row *sql.Row, op string) (*models.Document, error) {
	var (
		doc       models.Document
		docID     uuid.UUID
		ownerID   uuid.UUID
		outcome   string
		reason    string
		candidate uuid.NullUUID
		verified  uuid.NullUUID
	)
	err := row.Scan(&docID, &ownerID, &doc.ExtractedText, &outcome, &reason, &candidate,
		&doc.CandidateScore, &verified, &doc.UploadedAt, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	doc.ID = id.DocumentID(docID)
	doc.OwnerID = id.PrincipalID(ownerID)
	doc.LastOutcome = models.Outcome(outcome)
	doc.LastReason = models.Reason(reason)
	if candidate.Valid {
		doc.CandidateID = id.CredentialID(candidate.UUID)
	}
	if verified.Valid {
		doc.VerifiedCredentialID = id.CredentialID(verified.UUID)
	}
	return &doc, nil
}

func nullable(u uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: u, Valid: u != uuid.Nil}
}

func hasPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

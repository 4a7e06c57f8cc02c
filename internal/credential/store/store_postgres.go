package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"shebacred/internal/credential/models"
	id "shebacred/pkg/domain"
	"shebacred/pkg/platform/sentinel"
	txcontext "shebacred/pkg/platform/tx"
)

const pgUniqueViolation = "23505"

// PostgresStore persists trusted credentials in PostgreSQL. Queries join the
// transaction carried in ctx when one is active.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const selectCredential = `
	SELECT id, issuer_id, fields, fingerprint, identifier, status, issued_at, updated_at
	FROM trusted_credentials
`

func (s *PostgresStore) Save(ctx context.Context, cred *models.TrustedCredential) error {
	fields, err := json.Marshal(cred.Fields)
	if err != nil {
		return fmt.Errorf("marshal credential fields: %w", err)
	}
	query := `
		INSERT INTO trusted_credentials (id, issuer_id, fields, fingerprint, identifier, status, issued_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = txcontext.Exec(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(cred.ID),
		uuid.UUID(cred.IssuerID),
		fields,
		cred.Fingerprint,
		cred.Identifier,
		string(cred.Status),
		cred.IssuedAt,
		cred.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, cred *models.TrustedCredential) error {
	fields, err := json.Marshal(cred.Fields)
	if err != nil {
		return fmt.Errorf("marshal credential fields: %w", err)
	}
	query := `
		UPDATE trusted_credentials
		SET fields = $2, fingerprint = $3, identifier = $4, status = $5, updated_at = $6
		WHERE id = $1
	`
	res, err := txcontext.Exec(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(cred.ID),
		fields,
		cred.Fingerprint,
		cred.Identifier,
		string(cred.Status),
		cred.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("update credential: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update credential rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, credID id.CredentialID) (*models.TrustedCredential, error) {
	row := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, selectCredential+` WHERE id = $1`, uuid.UUID(credID))
	return scanOne(row, "find credential by id")
}

func (s *PostgresStore) FindByFingerprint(ctx context.Context, fingerprint string) (*models.TrustedCredential, error) {
	row := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, selectCredential+` WHERE fingerprint = $1`, fingerprint)
	return scanOne(row, "find credential by fingerprint")
}

func (s *PostgresStore) FindByIdentifier(ctx context.Context, identifier string) (*models.TrustedCredential, error) {
	identifier = models.NormalizeIdentifier(identifier)
	if identifier == "" {
		return nil, sentinel.ErrNotFound
	}
	row := txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		selectCredential+` WHERE identifier = $1 ORDER BY issued_at DESC, id DESC LIMIT 1`, identifier)
	return scanOne(row, "find credential by identifier")
}

func (s *PostgresStore) ListByIssuer(ctx context.Context, issuer id.IssuerID) ([]*models.TrustedCredential, error) {
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx,
		selectCredential+` WHERE issuer_id = $1 ORDER BY issued_at ASC, id ASC`, uuid.UUID(issuer))
	if err != nil {
		return nil, fmt.Errorf("list credentials by issuer: %w", err)
	}
	defer rows.Close()

	out := make([]*models.TrustedCredential, 0)
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("list credentials by issuer: %w", err)
		}
		out = append(out, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list credentials by issuer: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOne(row *sql.Row, op string) (*models.TrustedCredential, error) {
	cred, err := scanCredential(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return cred, nil
}

func scanCredential(row rowScanner) (*models.TrustedCredential, error) {
	var (
		cred     models.TrustedCredential
		credID   uuid.UUID
		issuerID uuid.UUID
		fields   []byte
		status   string
	)
	if err := row.Scan(&credID, &issuerID, &fields, &cred.Fingerprint, &cred.Identifier,
		&status, &cred.IssuedAt, &cred.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(fields, &cred.Fields); err != nil {
		return nil, fmt.Errorf("unmarshal credential fields: %w", err)
	}
	cred.ID = id.CredentialID(credID)
	cred.IssuerID = id.IssuerID(issuerID)
	cred.Status = models.Status(status)
	return &cred, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

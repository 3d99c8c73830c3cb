package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"citizen-services/auth-service/internal/token/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a refresh-token repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByHash returns the record whose token_hash matches, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, session_id, user_id, token_family, token_hash, used_at,
			revoked_at, expires_at, COALESCE(replaced_by::text, ''), created_at
		FROM refresh_tokens WHERE token_hash = $1`, tokenHash)

	var t domain.RefreshToken
	var usedAt, revokedAt sql.NullTime
	err := row.Scan(&t.ID, &t.SessionID, &t.UserID, &t.TokenFamily, &t.TokenHash,
		&usedAt, &revokedAt, &t.ExpiresAt, &t.ReplacedBy, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	t.UsedAt = nullTimeToPtr(usedAt)
	t.RevokedAt = nullTimeToPtr(revokedAt)
	return &t, nil
}

// Create persists the record. The record must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, t *domain.RefreshToken) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, session_id, user_id, token_family, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.SessionID, t.UserID, t.TokenFamily, t.TokenHash, t.ExpiresAt, t.CreatedAt)
	return err
}

// Consume sets used_at as a single conditional update. The WHERE clause is the
// concurrency guard: of two racing rotations exactly one sees a row affected,
// and a record revoked after the caller loaded it can no longer be consumed.
func (r *PostgresRepository) Consume(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET used_at = now()
		WHERE id = $1 AND used_at IS NULL AND revoked_at IS NULL`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SetReplacedBy back-links the consumed record to its successor.
func (r *PostgresRepository) SetReplacedBy(ctx context.Context, id, successorID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET replaced_by = $2 WHERE id = $1`, id, successorID)
	return err
}

// RevokeFamily marks every non-terminal record in the family revoked and
// revokes the family's sessions, in one transaction.
func (r *PostgresRepository) RevokeFamily(ctx context.Context, family, reason string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked_at = $2
		WHERE token_family = $1 AND revoked_at IS NULL AND used_at IS NULL`, family, now); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE sessions SET revoked_at = $2, revoked_reason = $3
		WHERE token_family = $1 AND revoked_at IS NULL`, family, now, reason); err != nil {
		return err
	}
	return tx.Commit()
}

func nullTimeToPtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	return &n.Time
}

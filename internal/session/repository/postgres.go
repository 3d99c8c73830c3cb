package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"citizen-services/auth-service/internal/session/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_family, ip_address, user_agent, created_at,
			expires_at, last_active_at, revoked_at, COALESCE(revoked_reason, '')
		FROM sessions WHERE id = $1`, id)

	var s domain.Session
	var lastActive, revokedAt sql.NullTime
	err := row.Scan(&s.ID, &s.UserID, &s.TokenFamily, &s.IPAddress, &s.UserAgent,
		&s.CreatedAt, &s.ExpiresAt, &lastActive, &revokedAt, &s.RevokedReason)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.LastActiveAt = nullTimeToPtr(lastActive)
	s.RevokedAt = nullTimeToPtr(revokedAt)
	return &s, nil
}

// Create persists the session. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, token_family, ip_address, user_agent, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.UserID, s.TokenFamily, s.IPAddress, s.UserAgent, s.CreatedAt, s.ExpiresAt)
	return err
}

// Revoke marks the session revoked with the given reason. Idempotent.
func (r *PostgresRepository) Revoke(ctx context.Context, id, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET revoked_at = now(), revoked_reason = $2
		WHERE id = $1 AND revoked_at IS NULL`, id, reason)
	return err
}

// RevokeAllByUser revokes every non-revoked session owned by the user.
func (r *PostgresRepository) RevokeAllByUser(ctx context.Context, userID, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET revoked_at = now(), revoked_reason = $2
		WHERE user_id = $1 AND revoked_at IS NULL`, userID, reason)
	return err
}

// UpdateLastActive sets the session's last-active timestamp.
func (r *PostgresRepository) UpdateLastActive(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET last_active_at = $2 WHERE id = $1`, id, at)
	return err
}

func nullTimeToPtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	return &n.Time
}

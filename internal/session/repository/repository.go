package repository

import (
	"context"
	"time"

	"citizen-services/auth-service/internal/session/domain"
)

// Repository defines persistence for sessions.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	// Revoke marks the session revoked with the given reason. Idempotent: an
	// already-revoked session keeps its original reason and timestamp.
	Revoke(ctx context.Context, id, reason string) error
	// RevokeAllByUser revokes every non-revoked session owned by the user.
	RevokeAllByUser(ctx context.Context, userID, reason string) error
	UpdateLastActive(ctx context.Context, id string, at time.Time) error
}

package repository

import (
	"context"

	"citizen-services/auth-service/internal/token/domain"
)

// Repository defines persistence for refresh-token records.
type Repository interface {
	// GetByHash returns the record whose token_hash matches, or nil if not found.
	GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)
	Create(ctx context.Context, t *domain.RefreshToken) error
	// Consume sets used_at on the record as a single conditional update that
	// succeeds only while used_at is still null. Returns true if this call won;
	// false means a concurrent rotation already consumed the record.
	Consume(ctx context.Context, id string) (bool, error)
	// SetReplacedBy back-links the consumed record to its successor.
	SetReplacedBy(ctx context.Context, id, successorID string) error
	// RevokeFamily marks every non-terminal record in the family revoked and
	// revokes the family's sessions with the given reason, in one transaction,
	// so a crash cannot leave the family half-revoked.
	RevokeFamily(ctx context.Context, family, reason string) error
}

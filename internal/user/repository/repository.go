package repository

import (
	"context"

	"citizen-services/auth-service/internal/user/domain"
)

// Repository defines persistence for users and their role assignments.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	// FindActiveByIdentifier returns the non-deleted user for the identifier, or
	// nil if not found. Soft-deleted rows are filtered here, at the call site,
	// rather than by an implicit global interceptor.
	FindActiveByIdentifier(ctx context.Context, identifier string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
	// RecordLogin sets last_login_at and zeroes the advisory failed-attempt counter.
	RecordLogin(ctx context.Context, id string) error
	IncrementFailedAttempts(ctx context.Context, id string) error
	// GetRoleNames returns the names of the roles assigned to the user.
	GetRoleNames(ctx context.Context, userID string) ([]string, error)
	// AssignRole links the user to the named role. The role must exist.
	AssignRole(ctx context.Context, userID, roleName string) error
}

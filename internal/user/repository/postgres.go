package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"citizen-services/auth-service/internal/user/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, identifier, identifier_type, COALESCE(phone, ''), COALESCE(email, ''),
	password_hash, date_of_birth, COALESCE(citizen_id::text, ''), status, failed_attempts,
	last_login_at, created_at, updated_at, deleted_at`

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// FindActiveByIdentifier returns the non-deleted user for the identifier, or nil if not found.
func (r *PostgresRepository) FindActiveByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE identifier = $1 AND deleted_at IS NULL`, identifier)
	return scanUser(row)
}

// GetByPhone returns the user for the phone number, or nil if not found.
func (r *PostgresRepository) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE phone = $1 AND deleted_at IS NULL`, phone)
	return scanUser(row)
}

// Create persists the user. The user must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	var phone, citizenID interface{}
	if u.Phone != "" {
		phone = u.Phone
	}
	if u.CitizenID != "" {
		citizenID = u.CitizenID
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, identifier, identifier_type, phone, email, password_hash,
			date_of_birth, citizen_id, status, failed_attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		u.ID, u.Identifier, u.IdentifierType, phone, u.Email, u.PasswordHash,
		u.DateOfBirth, citizenID, string(u.Status), u.FailedAttempts, u.CreatedAt, u.UpdatedAt)
	return err
}

// CreateWithRole persists the user and links it to the named role in one
// transaction, so a failed role insert never leaves an orphaned user row.
func (r *PostgresRepository) CreateWithRole(ctx context.Context, u *domain.User, roleName string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var phone, citizenID interface{}
	if u.Phone != "" {
		phone = u.Phone
	}
	if u.CitizenID != "" {
		citizenID = u.CitizenID
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (id, identifier, identifier_type, phone, email, password_hash,
			date_of_birth, citizen_id, status, failed_attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		u.ID, u.Identifier, u.IdentifierType, phone, u.Email, u.PasswordHash,
		u.DateOfBirth, citizenID, string(u.Status), u.FailedAttempts, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO user_roles (user_id, role_id)
		SELECT $1, id FROM roles WHERE name = $2`, u.ID, roleName)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.New("role does not exist: " + roleName)
	}
	return tx.Commit()
}

// UpdatePasswordHash updates the password hash for the user with the given id.
func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, id, passwordHash)
	return err
}

// RecordLogin sets last_login_at and zeroes the advisory failed-attempt counter.
func (r *PostgresRepository) RecordLogin(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET last_login_at = now(), failed_attempts = 0, updated_at = now() WHERE id = $1`, id)
	return err
}

// IncrementFailedAttempts bumps the advisory failed-attempt counter on the user row.
func (r *PostgresRepository) IncrementFailedAttempts(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET failed_attempts = failed_attempts + 1, updated_at = now() WHERE id = $1`, id)
	return err
}

// GetRoleNames returns the names of the roles assigned to the user.
func (r *PostgresRepository) GetRoleNames(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT r.name FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		ORDER BY r.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// AssignRole links the user to the named role. Returns an error if the role does not exist.
func (r *PostgresRepository) AssignRole(ctx context.Context, userID, roleName string) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO user_roles (user_id, role_id)
		SELECT $1, id FROM roles WHERE name = $2
		ON CONFLICT DO NOTHING`, userID, roleName)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Either the role does not exist or the assignment already did; look the
		// role up to distinguish.
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM roles WHERE name = $1)`, roleName).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return errors.New("role does not exist: " + roleName)
		}
	}
	return nil
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	var status string
	var lastLogin, deletedAt sql.NullTime
	err := row.Scan(&u.ID, &u.Identifier, &u.IdentifierType, &u.Phone, &u.Email,
		&u.PasswordHash, &u.DateOfBirth, &u.CitizenID, &status, &u.FailedAttempts,
		&lastLogin, &u.CreatedAt, &u.UpdatedAt, &deletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.Status = domain.Status(status)
	u.LastLoginAt = nullTimeToPtr(lastLogin)
	u.DeletedAt = nullTimeToPtr(deletedAt)
	return &u, nil
}

func nullTimeToPtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	return &n.Time
}

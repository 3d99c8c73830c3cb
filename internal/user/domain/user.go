package domain

import (
	"errors"
	"time"
)

// User is the core identity record: one row per registered citizen or staff
// account. Users are never hard-deleted; status moves to deactivated instead.
type User struct {
	ID             string
	Identifier     string // national ID or birth-registration number, unique
	IdentifierType string // "nid" or "birth_reg"
	Phone          string
	Email          string
	PasswordHash   string
	DateOfBirth    time.Time // secondary login factor, compared date-only in UTC
	CitizenID      string    // optional link to the citizen profile
	Status         Status
	// FailedAttempts is advisory; the authoritative counter lives in the
	// lockout guard's shared store.
	FailedAttempts int
	LastLoginAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time
}

// Status is the account lifecycle state.
type Status string

const (
	StatusActive              Status = "active"
	StatusPendingVerification Status = "pending_verification"
	StatusLocked              Status = "locked"
	StatusDeactivated         Status = "deactivated"
)

// Validate validates the user for persistence. Returns an error describing the
// first validation failure.
func (u *User) Validate() error {
	if u.Identifier == "" {
		return errors.New("identifier is required")
	}
	if u.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	if u.DateOfBirth.IsZero() {
		return errors.New("date of birth is required")
	}
	if u.Status == "" {
		u.Status = StatusPendingVerification
	}
	return nil
}

// DateOfBirthEqual compares the stored date of birth with the provided one,
// date-only in UTC, ignoring the time component of either value.
func (u *User) DateOfBirthEqual(dob time.Time) bool {
	a := u.DateOfBirth.UTC()
	b := dob.UTC()
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

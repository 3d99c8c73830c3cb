// Package audit emits security audit events to Kafka. Emission is
// best-effort and asynchronous; authentication flows never fail because the
// audit bus is down.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Audit actions recorded by the authentication flows.
const (
	ActionCitizenCreated  = "CITIZEN_CREATED"
	ActionLogin           = "LOGIN"
	ActionLoginFailed     = "LOGIN_FAILED"
	ActionAccountLocked   = "ACCOUNT_LOCKED"
	ActionTokenRefreshed  = "TOKEN_REFRESHED"
	ActionTokenReuse      = "TOKEN_REUSE_DETECTED"
	ActionLogout          = "LOGOUT"
	ActionPasswordChanged = "PASSWORD_CHANGED"
)

// Severity levels for audit events.
const (
	LevelInfo     = "INFO"
	LevelWarning  = "WARNING"
	LevelCritical = "CRITICAL"
)

// Event is a single audit record. UserID is empty for anonymous events such
// as failed logins against unknown identifiers.
type Event struct {
	ID         string            `json:"id"`
	Action     string            `json:"action"`
	Level      string            `json:"level"`
	UserID     string            `json:"userId,omitempty"`
	SessionID  string            `json:"sessionId,omitempty"`
	IPAddress  string            `json:"ipAddress,omitempty"`
	UserAgent  string            `json:"userAgent,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// NewEvent builds an Event with a fresh ID and the current time. Level
// defaults to INFO; callers overwrite it for warnings.
func NewEvent(action string) *Event {
	return &Event{
		ID:         uuid.NewString(),
		Action:     action,
		Level:      LevelInfo,
		OccurredAt: time.Now().UTC(),
	}
}

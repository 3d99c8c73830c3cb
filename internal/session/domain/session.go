package domain

import "time"

// Session represents one authenticated login. It is the unit of logout:
// revoking a session invalidates every refresh token in its family going
// forward. ExpiresAt is a hard ceiling independent of token expiry.
type Session struct {
	ID            string
	UserID        string
	TokenFamily   string
	IPAddress     string
	UserAgent     string
	CreatedAt     time.Time
	ExpiresAt     time.Time
	LastActiveAt  *time.Time
	RevokedAt     *time.Time
	RevokedReason string
}

// Revoked reports whether the session has been revoked.
func (s *Session) Revoked() bool {
	return s.RevokedAt != nil
}

// Expired reports whether the session's absolute expiry has passed at now.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Revocation reasons recorded on sessions.
const (
	ReasonUserLogout      = "user_logout"
	ReasonUserLogoutAll   = "user_logout_all"
	ReasonPasswordChanged = "password_changed"
	ReasonTokenReuse      = "token_reuse"
)

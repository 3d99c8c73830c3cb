package domain

import "time"

// RefreshToken is one row per issued refresh token. The raw token value is
// never persisted; TokenHash is its SHA-256. A record is consumable at most
// once: the instant UsedAt is set, any further exchange of the same token is a
// replay.
type RefreshToken struct {
	ID          string
	SessionID   string
	UserID      string
	TokenFamily string
	TokenHash   string
	UsedAt      *time.Time
	RevokedAt   *time.Time
	ExpiresAt   time.Time
	ReplacedBy  string // ID of the successor record, set when consumed
	CreatedAt   time.Time
}

// State is the lifecycle state of a refresh-token record. CONSUMED, REVOKED,
// and EXPIRED are terminal; EXPIRED is time-derived at use time, not stored.
type State string

const (
	StateActive   State = "ACTIVE"
	StateConsumed State = "CONSUMED"
	StateRevoked  State = "REVOKED"
	StateExpired  State = "EXPIRED"
)

// StateAt derives the record's state at the given instant. Consumption wins
// over revocation so a replayed-then-revoked token still reads as consumed.
func (t *RefreshToken) StateAt(now time.Time) State {
	if t.UsedAt != nil {
		return StateConsumed
	}
	if t.RevokedAt != nil {
		return StateRevoked
	}
	if now.After(t.ExpiresAt) {
		return StateExpired
	}
	return StateActive
}

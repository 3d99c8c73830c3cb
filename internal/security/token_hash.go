package security

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken returns a SHA-256 hash of the raw token string, hex-encoded.
// Refresh-token records and blocklist keys store this hash, never the raw value.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

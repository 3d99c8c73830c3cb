package security

import (
	"golang.org/x/crypto/bcrypt"
)

// DummyHash is a valid bcrypt hash of an unguessable random value. When a login
// identifier does not resolve to a user, the verifier compares the supplied
// password against this hash so elapsed time is indistinguishable from the
// "user exists, password wrong" case.
const DummyHash = "$2a$12$K0ByB.6YI2/OYrB4fQOYLe6Tv0datUVf6VZ/2Jzwm879BW5K1cHey"

// Hasher hashes and verifies passwords using bcrypt. Callers must not log or
// persist plaintext passwords.
type Hasher struct {
	Cost int
}

// NewHasher returns a Hasher with the given bcrypt cost (4–31). Cost 12 is a
// reasonable default for interactive login.
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{Cost: cost}
}

// Hash produces a bcrypt hash of password. Returns the hash as a string
// suitable for storage.
func (h *Hasher) Hash(password []byte) (string, error) {
	b, err := bcrypt.GenerateFromPassword(password, h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare verifies password against the stored hash. Returns nil if they match;
// returns an error (including bcrypt.ErrMismatchedHashAndPassword) if they do
// not or on invalid hash.
func (h *Hasher) Compare(hash string, password []byte) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), password)
}

// CompareDummy burns a bcrypt comparison against DummyHash and always reports a
// mismatch. Called on the user-not-found path to keep login timing uniform.
func (h *Hasher) CompareDummy(password []byte) error {
	_ = bcrypt.CompareHashAndPassword([]byte(DummyHash), password)
	return bcrypt.ErrMismatchedHashAndPassword
}

package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenInvalid is returned when a token is malformed, signed with the wrong
	// key or algorithm, carries the wrong issuer/audience, or has the wrong type marker.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is returned when a token is valid in every respect except expiry.
	ErrTokenExpired = errors.New("token expired")
)

// Token type markers embedded in claims so an access token is never accepted
// where a refresh token is expected and vice versa.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// AccessClaims holds JWT claims for the access token. Roles and permissions are
// resolved at issue time so protected requests need no storage round-trip.
type AccessClaims struct {
	jwt.RegisteredClaims
	SessionID   string   `json:"sessionId"`
	CitizenID   string   `json:"citizenId,omitempty"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	TokenType   string   `json:"type"`
}

// RefreshClaims holds JWT claims for the refresh token, including the token
// family used for rotation and replay detection.
type RefreshClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sessionId"`
	Family    string `json:"family"`
	TokenType string `json:"type"`
}

// TokenPair is the result of issuing an access/refresh pair.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	ExpiresIn        int64 // seconds until access token expiry
	RefreshExpiresIn int64 // seconds until refresh token expiry
}

// TokenIssuer signs and verifies access and refresh tokens with HS256 using
// distinct secrets and audiences per token kind. It performs no I/O; the
// rotation engine and the request middleware both depend on it.
type TokenIssuer struct {
	accessSecret    []byte
	refreshSecret   []byte
	issuer          string
	accessAudience  string
	refreshAudience string
	accessTTL       time.Duration
	refreshTTL      time.Duration
}

// NewTokenIssuer returns a TokenIssuer. accessSecret and refreshSecret must
// differ; audiences must differ. Callers validate both via config.
func NewTokenIssuer(accessSecret, refreshSecret []byte, issuer, accessAudience, refreshAudience string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		accessSecret:    accessSecret,
		refreshSecret:   refreshSecret,
		issuer:          issuer,
		accessAudience:  accessAudience,
		refreshAudience: refreshAudience,
		accessTTL:       accessTTL,
		refreshTTL:      refreshTTL,
	}
}

// AccessTTL returns the configured access token lifetime.
func (p *TokenIssuer) AccessTTL() time.Duration { return p.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (p *TokenIssuer) RefreshTTL() time.Duration { return p.refreshTTL }

// IssueAccess issues a short-lived access JWT. Returns the token string and its
// expiration time.
func (p *TokenIssuer) IssueAccess(userID, sessionID, citizenID string, roles, permissions []string) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(p.accessTTL)
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.accessAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SessionID:   sessionID,
		CitizenID:   citizenID,
		Roles:       roles,
		Permissions: permissions,
		TokenType:   TokenTypeAccess,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.accessSecret)
	return token, expiresAt, err
}

// IssueRefresh issues a long-lived refresh JWT bound to the session and token
// family. Returns the token string and its expiration time.
func (p *TokenIssuer) IssueRefresh(userID, sessionID, family string) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(p.refreshTTL)
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.refreshAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SessionID: sessionID,
		Family:    family,
		TokenType: TokenTypeRefresh,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.refreshSecret)
	return token, expiresAt, err
}

// IssuePair issues an access/refresh pair for the same user, session, and family.
func (p *TokenIssuer) IssuePair(userID, sessionID, citizenID, family string, roles, permissions []string) (*TokenPair, error) {
	access, _, err := p.IssueAccess(userID, sessionID, citizenID, roles, permissions)
	if err != nil {
		return nil, err
	}
	refresh, _, err := p.IssueRefresh(userID, sessionID, family)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		ExpiresIn:        int64(p.accessTTL / time.Second),
		RefreshExpiresIn: int64(p.refreshTTL / time.Second),
	}, nil
}

// VerifyAccess parses and validates an access token (signature, HS256-only
// algorithm, exp, iss, aud, type marker). Expiry alone returns ErrTokenExpired;
// every other mismatch returns ErrTokenInvalid.
func (p *TokenIssuer) VerifyAccess(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	err := p.verify(tokenString, claims, p.accessSecret, p.accessAudience)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != TokenTypeAccess {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// VerifyRefresh parses and validates a refresh token. Same contract as VerifyAccess.
func (p *TokenIssuer) VerifyRefresh(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	err := p.verify(tokenString, claims, p.refreshSecret, p.refreshAudience)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != TokenTypeRefresh {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func (p *TokenIssuer) verify(tokenString string, claims jwt.Claims, secret []byte, audience string) error {
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			return secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(audience),
	)
	if err != nil {
		// jwt/v5 joins validation errors; ErrTokenExpired only applies when
		// expiry is the sole defect. A token that is also malformed, badly
		// signed, or carries the wrong issuer/audience stays invalid.
		if errors.Is(err, jwt.ErrTokenExpired) &&
			!errors.Is(err, jwt.ErrTokenMalformed) &&
			!errors.Is(err, jwt.ErrTokenSignatureInvalid) &&
			!errors.Is(err, jwt.ErrTokenInvalidIssuer) &&
			!errors.Is(err, jwt.ErrTokenInvalidAudience) {
			return ErrTokenExpired
		}
		return ErrTokenInvalid
	}
	if !token.Valid {
		return ErrTokenInvalid
	}
	return nil
}

// Package middleware carries the request guards applied before protected
// handlers: bearer-token authentication, blocklist lookup, and RBAC checks.
package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"citizen-services/auth-service/internal/platform/rbac"
	"citizen-services/auth-service/internal/security"
	"citizen-services/auth-service/internal/server/respond"
)

const (
	claimsKey   = "authClaims"
	rawTokenKey = "authRawToken"
)

// TokenBlocklist is the revoked-token lookup consumed by Authenticate.
type TokenBlocklist interface {
	IsBlocked(ctx context.Context, tokenHash string) (bool, error)
}

// Authenticate verifies the bearer access token and rejects blocklisted
// tokens. The blocklist check fails closed: if the store cannot answer, the
// request is rejected rather than letting a possibly revoked token through.
func Authenticate(tokens *security.TokenIssuer, blocklist TokenBlocklist) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			respond.Error(c, http.StatusUnauthorized, respond.CodeUnauthorized, "Authentication required")
			return
		}

		claims, err := tokens.VerifyAccess(raw)
		if err != nil {
			if errors.Is(err, security.ErrTokenExpired) {
				respond.Error(c, http.StatusUnauthorized, respond.CodeTokenExpired, "Access token expired")
			} else {
				respond.Error(c, http.StatusUnauthorized, respond.CodeTokenInvalid, "Invalid access token")
			}
			return
		}

		blocked, err := blocklist.IsBlocked(c.Request.Context(), security.HashToken(raw))
		if err != nil {
			log.Printf("middleware: blocklist lookup failed, rejecting: %v", err)
			blocked = true
		}
		if blocked {
			respond.Error(c, http.StatusUnauthorized, respond.CodeTokenInvalid, "Invalid access token")
			return
		}

		c.Set(claimsKey, claims)
		c.Set(rawTokenKey, raw)
		c.Next()
	}
}

// RequireRole allows the request only when the token carries one of the
// allowed roles. Must run after Authenticate.
func RequireRole(allowed ...rbac.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetClaims(c)
		if !ok {
			respond.Error(c, http.StatusUnauthorized, respond.CodeUnauthorized, "Authentication required")
			return
		}
		if !rbac.HasRole(claims.Roles, allowed...) {
			respond.Error(c, http.StatusForbidden, respond.CodeForbidden, "Insufficient role")
			return
		}
		c.Next()
	}
}

// RequirePermission allows the request only when the token grants every
// required permission. Must run after Authenticate.
func RequirePermission(required ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetClaims(c)
		if !ok {
			respond.Error(c, http.StatusUnauthorized, respond.CodeUnauthorized, "Authentication required")
			return
		}
		if !rbac.HasPermission(claims.Permissions, required...) {
			respond.Error(c, http.StatusForbidden, respond.CodeForbidden, "Insufficient permissions")
			return
		}
		c.Next()
	}
}

// GetClaims returns the verified access claims set by Authenticate.
func GetClaims(c *gin.Context) (*security.AccessClaims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*security.AccessClaims)
	return claims, ok
}

// GetRawToken returns the raw bearer token set by Authenticate. Logout uses
// it to blocklist the token it arrived with.
func GetRawToken(c *gin.Context) (string, bool) {
	v, ok := c.Get(rawTokenKey)
	if !ok {
		return "", false
	}
	raw, ok := v.(string)
	return raw, ok
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

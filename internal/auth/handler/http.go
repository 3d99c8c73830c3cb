// Package handler exposes the authentication endpoints over HTTP. Handlers
// are thin: bind and validate the request, call the service, map sentinel
// errors to status codes.
package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"citizen-services/auth-service/internal/auth/service"
	"citizen-services/auth-service/internal/security"
	"citizen-services/auth-service/internal/server/middleware"
	"citizen-services/auth-service/internal/server/respond"
	userdomain "citizen-services/auth-service/internal/user/domain"
)

const (
	refreshCookieName = "refresh_token"
	refreshCookiePath = "/api/v1/auth/refresh"
)

// AuthService is the service surface the HTTP layer depends on.
type AuthService interface {
	Register(ctx context.Context, in service.RegisterInput) (*userdomain.User, error)
	Login(ctx context.Context, in service.LoginInput) (*service.LoginResult, error)
	Refresh(ctx context.Context, rawRefreshToken, ipAddress string) (*service.LoginResult, error)
	Logout(ctx context.Context, userID, sessionID, rawAccessToken string, all bool) error
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword, ipAddress string) error
}

// AuthHandler serves /api/v1/auth.
type AuthHandler struct {
	svc          AuthService
	cookieSecure bool
}

// NewAuthHandler returns an AuthHandler. cookieSecure controls the Secure
// attribute on the refresh cookie; disable it only for local development over
// plain HTTP.
func NewAuthHandler(svc AuthService, cookieSecure bool) *AuthHandler {
	return &AuthHandler{svc: svc, cookieSecure: cookieSecure}
}

// RegisterRoutes mounts the auth endpoints on the given group. authn must be
// the Authenticate middleware; protected routes run behind it.
func (h *AuthHandler) RegisterRoutes(g *gin.RouterGroup, authn gin.HandlerFunc) {
	g.POST("/register", h.Register)
	g.POST("/login", h.Login)
	g.POST("/refresh", h.Refresh)
	g.POST("/logout", authn, h.Logout)
	g.POST("/change-password", authn, h.ChangePassword)
	g.GET("/me", authn, h.Me)
}

type registerReq struct {
	Identifier     string `json:"identifier" binding:"required"`
	IdentifierType string `json:"identifierType" binding:"required"`
	Phone          string `json:"phone"`
	Email          string `json:"email"`
	Password       string `json:"password" binding:"required"`
	DateOfBirth    string `json:"dateOfBirth" binding:"required"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidationError, "Invalid request body")
		return
	}
	dob, err := time.Parse("2006-01-02", req.DateOfBirth)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidationError, "Date of birth must be YYYY-MM-DD")
		return
	}
	user, err := h.svc.Register(c.Request.Context(), service.RegisterInput{
		Identifier:     req.Identifier,
		IdentifierType: req.IdentifierType,
		Phone:          req.Phone,
		Email:          req.Email,
		Password:       req.Password,
		DateOfBirth:    dob,
		IPAddress:      c.ClientIP(),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond.Created(c, gin.H{"userId": user.ID})
}

type loginReq struct {
	Identifier  string `json:"identifier" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DateOfBirth string `json:"dateOfBirth" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidationError, "Invalid request body")
		return
	}
	dob, err := time.Parse("2006-01-02", req.DateOfBirth)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidationError, "Date of birth must be YYYY-MM-DD")
		return
	}
	res, err := h.svc.Login(c.Request.Context(), service.LoginInput{
		Identifier:  req.Identifier,
		Password:    req.Password,
		DateOfBirth: dob,
		IPAddress:   c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.setRefreshCookie(c, res.Pair)
	respond.Success(c, gin.H{
		"accessToken": res.Pair.AccessToken,
		"expiresIn":   res.Pair.ExpiresIn,
		"tokenType":   "Bearer",
	})
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	// Browsers send the httpOnly cookie; non-browser clients fall back to
	// the request body.
	raw, err := c.Cookie(refreshCookieName)
	if err != nil || raw == "" {
		var req refreshReq
		if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
			respond.Error(c, http.StatusUnauthorized, respond.CodeTokenInvalid, "Refresh token required")
			return
		}
		raw = req.RefreshToken
	}
	res, err := h.svc.Refresh(c.Request.Context(), raw, c.ClientIP())
	if err != nil {
		h.clearRefreshCookie(c)
		h.writeError(c, err)
		return
	}
	h.setRefreshCookie(c, res.Pair)
	respond.Success(c, gin.H{
		"accessToken": res.Pair.AccessToken,
		"expiresIn":   res.Pair.ExpiresIn,
		"tokenType":   "Bearer",
	})
}

type logoutReq struct {
	RevokeAll bool `json:"revokeAll"`
}

func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		respond.Error(c, http.StatusUnauthorized, respond.CodeUnauthorized, "Not authenticated")
		return
	}
	raw, _ := middleware.GetRawToken(c)

	var req logoutReq
	_ = c.ShouldBindJSON(&req) // body is optional

	if err := h.svc.Logout(c.Request.Context(), claims.Subject, claims.SessionID, raw, req.RevokeAll); err != nil {
		h.writeError(c, err)
		return
	}
	h.clearRefreshCookie(c)
	respond.Success(c, nil)
}

type changePasswordReq struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		respond.Error(c, http.StatusUnauthorized, respond.CodeUnauthorized, "Not authenticated")
		return
	}
	var req changePasswordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidationError, "Invalid request body")
		return
	}
	if err := h.svc.ChangePassword(c.Request.Context(), claims.Subject, req.CurrentPassword, req.NewPassword, c.ClientIP()); err != nil {
		h.writeError(c, err)
		return
	}
	h.clearRefreshCookie(c)
	respond.Success(c, nil)
}

func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		respond.Error(c, http.StatusUnauthorized, respond.CodeUnauthorized, "Not authenticated")
		return
	}
	respond.Success(c, gin.H{
		"userId":      claims.Subject,
		"citizenId":   claims.CitizenID,
		"roles":       claims.Roles,
		"permissions": claims.Permissions,
		"sessionId":   claims.SessionID,
	})
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, pair *security.TokenPair) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookieName, pair.RefreshToken, int(pair.RefreshExpiresIn), refreshCookiePath, "", h.cookieSecure, true)
}

func (h *AuthHandler) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookieName, "", -1, refreshCookiePath, "", h.cookieSecure, true)
}

// writeError maps service sentinel errors to HTTP responses. Anything
// unrecognized is an infrastructure failure: log the detail, answer generic.
func (h *AuthHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		respond.Error(c, http.StatusUnauthorized, respond.CodeInvalidCredentials, "Invalid credentials")
	case errors.Is(err, service.ErrAccountLocked):
		respond.Error(c, http.StatusTooManyRequests, respond.CodeAccountLocked, "Account temporarily locked due to too many failed login attempts. Try again later.")
	case errors.Is(err, service.ErrAccountInactive):
		respond.Error(c, http.StatusUnauthorized, respond.CodeAccountInactive, "Account is not active")
	case errors.Is(err, service.ErrTokenReuseDetected):
		respond.Error(c, http.StatusUnauthorized, respond.CodeTokenReuse, "Token reuse detected. All sessions invalidated.")
	case errors.Is(err, security.ErrTokenExpired):
		respond.Error(c, http.StatusUnauthorized, respond.CodeTokenExpired, "Session expired. Please login again.")
	case errors.Is(err, security.ErrTokenInvalid):
		respond.Error(c, http.StatusUnauthorized, respond.CodeTokenInvalid, "Invalid token")
	case errors.Is(err, service.ErrIdentifierTaken), errors.Is(err, service.ErrPhoneTaken):
		respond.Error(c, http.StatusConflict, respond.CodeAlreadyExists, "An account with these details already exists")
	case errors.Is(err, service.ErrValidation):
		respond.Error(c, http.StatusBadRequest, respond.CodeValidationError, err.Error())
	default:
		log.Printf("auth handler: %v", err)
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternalError, "Internal server error")
	}
}

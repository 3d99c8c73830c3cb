// Package respond defines the JSON envelope shared by every HTTP endpoint.
package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error codes surfaced to clients. Messages stay generic so responses never
// help enumerate accounts.
const (
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeAccountLocked      = "ACCOUNT_LOCKED"
	CodeAccountInactive    = "ACCOUNT_INACTIVE"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeTokenInvalid       = "TOKEN_INVALID"
	CodeTokenReuse         = "TOKEN_REUSE_DETECTED"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeValidationError    = "VALIDATION_ERROR"
	CodeAlreadyExists      = "ALREADY_EXISTS"
	CodeInternalError      = "INTERNAL_ERROR"
)

// Success writes a 200 envelope with the given payload.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

// Created writes a 201 envelope with the given payload.
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": data})
}

// Error writes an error envelope and aborts the request.
func Error(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   gin.H{"code": code, "message": message},
	})
}

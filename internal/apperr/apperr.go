// Package apperr defines the typed failures the auth and entitlement core
// returns. Handlers map codes to HTTP statuses; services never return bare
// strings for user-facing failures.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeAuthRequired        Code = "AUTH_REQUIRED"
	CodeTokenInvalid        Code = "TOKEN_INVALID"
	CodeTokenExpired        Code = "TOKEN_EXPIRED"
	CodeTokenRevoked        Code = "TOKEN_REVOKED"
	CodeTokenReuse          Code = "TOKEN_REUSE"
	CodeInvalidRefresh      Code = "INVALID_REFRESH_TOKEN"
	CodeRefreshExpired      Code = "REFRESH_TOKEN_EXPIRED"
	CodeForbidden           Code = "FORBIDDEN"
	CodeNotFound            Code = "NOT_FOUND"
	CodeAccountInactive     Code = "ACCOUNT_INACTIVE"
	CodeServiceUnavailable  Code = "SERVICE_UNAVAILABLE"
	CodeInvalidCredentials  Code = "INVALID_CREDENTIALS"
	CodeAlreadyExists       Code = "ALREADY_EXISTS"
	CodeValidation          Code = "VALIDATION_ERROR"
)

type Error struct {
	Code    Code
	Message string
	wrapped error
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.wrapped }

// Is matches on code so callers can compare against the exported sentinels.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, wrapped: err}
}

var (
	ErrAuthRequired       = New(CodeAuthRequired, "authentication required")
	ErrTokenInvalid       = New(CodeTokenInvalid, "invalid token")
	ErrTokenExpired       = New(CodeTokenExpired, "token expired")
	ErrTokenRevoked       = New(CodeTokenRevoked, "token revoked")
	ErrTokenReuse         = New(CodeTokenReuse, "refresh token reuse detected")
	ErrInvalidRefresh     = New(CodeInvalidRefresh, "invalid refresh token")
	ErrRefreshExpired     = New(CodeRefreshExpired, "refresh token expired")
	ErrForbidden          = New(CodeForbidden, "insufficient permissions")
	ErrNotFound           = New(CodeNotFound, "not found")
	ErrAccountInactive    = New(CodeAccountInactive, "account is not active")
	ErrServiceUnavailable = New(CodeServiceUnavailable, "service unavailable")
	ErrInvalidCredentials = New(CodeInvalidCredentials, "invalid email or password")
	ErrAlreadyExists      = New(CodeAlreadyExists, "already exists")
)

// HTTPStatus maps a code to the status the transport layer responds with.
func HTTPStatus(code Code) int {
	switch code {
	case CodeAuthRequired, CodeTokenInvalid, CodeTokenExpired, CodeTokenRevoked,
		CodeTokenReuse, CodeInvalidRefresh, CodeRefreshExpired, CodeInvalidCredentials:
		return http.StatusUnauthorized
	case CodeForbidden, CodeAccountInactive:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists:
		return http.StatusConflict
	case CodeValidation:
		return http.StatusBadRequest
	case CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf extracts the stable code from any error in the chain, defaulting to
// SERVICE_UNAVAILABLE for unclassified dependency failures.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeServiceUnavailable
}

package goSession

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/goSession/jwt"
)

var (
	// ErrTokenInvalid is the umbrella for tokens that cannot be trusted.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenMalformed is returned for tokens that do not parse or carry the
	// wrong shape for their class. It wraps ErrTokenInvalid.
	ErrTokenMalformed = fmt.Errorf("%w: malformed", ErrTokenInvalid)
	// ErrTokenSignatureInvalid is returned when no configured key verifies the
	// token. It wraps ErrTokenInvalid.
	ErrTokenSignatureInvalid = fmt.Errorf("%w: signature invalid", ErrTokenInvalid)
	// ErrTokenExpired is returned for authentic tokens past their expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenTypeMismatch is returned when an authentic token of one class is
	// presented where the other class is required.
	ErrTokenTypeMismatch = errors.New("token type mismatch")
	// ErrRefreshReuse is returned when a verified refresh token no longer
	// matches an active record. Every session of the subject has been revoked.
	ErrRefreshReuse = errors.New("refresh token reuse detected")
	// ErrCredentialNotFound is reserved for login collaborators that look up
	// primary credentials before calling Issue.
	ErrCredentialNotFound = errors.New("credential not found")
	// ErrStorageUnavailable is returned whenever the session repository
	// failed. Operations fail closed.
	ErrStorageUnavailable = errors.New("session storage unavailable")
	// ErrSessionNotFound is returned by Logout and RevokeSession when nothing
	// matched and Security.LogoutMismatchIsError is set.
	ErrSessionNotFound = errors.New("session not found")
	// ErrRefreshRateLimited is returned when the refresh throttle denies a call.
	ErrRefreshRateLimited = errors.New("refresh rate limited")
	// ErrEngineNotReady is returned by methods on a nil or unbuilt Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrInvalidRequest is returned for missing required arguments.
	ErrInvalidRequest = errors.New("invalid request")
)

// Public machine-readable codes returned by [ErrorCode].
const (
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeTokenInvalid       = "TOKEN_INVALID"
	CodeTokenTypeMismatch  = "TOKEN_TYPE_MISMATCH"
	CodeRateLimited        = "RATE_LIMITED"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeSessionNotFound    = "SESSION_NOT_FOUND"
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeInternal           = "INTERNAL"
)

// ErrorCode maps an engine error to its public code. Reuse is reported as
// TOKEN_INVALID so callers cannot tell a replayed token from a forged one.
// A nil error yields "".
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrStorageUnavailable):
		return CodeServiceUnavailable
	case errors.Is(err, ErrTokenExpired):
		return CodeTokenExpired
	case errors.Is(err, ErrTokenTypeMismatch):
		return CodeTokenTypeMismatch
	case errors.Is(err, ErrTokenInvalid), errors.Is(err, ErrRefreshReuse):
		return CodeTokenInvalid
	case errors.Is(err, ErrRefreshRateLimited):
		return CodeRateLimited
	case errors.Is(err, ErrSessionNotFound):
		return CodeSessionNotFound
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrCredentialNotFound):
		return CodeInvalidRequest
	case errors.Is(err, ErrEngineNotReady):
		return CodeServiceUnavailable
	default:
		return CodeInternal
	}
}

// tokenError maps codec errors onto root sentinels, keeping the cause.
func tokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenTypeMismatch):
		return fmt.Errorf("%w: %v", ErrTokenTypeMismatch, err)
	case errors.Is(err, jwt.ErrSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrTokenSignatureInvalid, err)
	default:
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
}

// storageError wraps repository failures in ErrStorageUnavailable.
func storageError(err error) error {
	if errors.Is(err, ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}

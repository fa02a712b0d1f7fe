package jwt

import "errors"

var (
	// ErrMalformed is returned when a token cannot be parsed into the claims
	// shape expected for its class.
	ErrMalformed = errors.New("token malformed")
	// ErrSignatureInvalid is returned when no configured key verifies the token.
	ErrSignatureInvalid = errors.New("token signature invalid")
	// ErrExpired is returned when now >= exp (after leeway).
	ErrExpired = errors.New("token expired")
	// ErrTokenTypeMismatch is returned when a correctly signed token of one
	// class is presented where the other class is expected.
	ErrTokenTypeMismatch = errors.New("token class mismatch")

	ErrUnknownClass = errors.New("unknown token class")
	ErrInvalidTTL   = errors.New("ttl must be > 0")
	ErrNoSigningKey = errors.New("no signing key configured for token class")
)

package flows

import (
	"errors"

	"github.com/MrEthical07/goSession/jwt"
)

// AuthenticateFailureKind classifies access-token verification failures.
type AuthenticateFailureKind int

const (
	AuthenticateFailureNone AuthenticateFailureKind = iota
	AuthenticateFailureExpired
	AuthenticateFailureTypeMismatch
	AuthenticateFailureMalformed
	AuthenticateFailureSignature
)

// AuthenticateResult returns verified access claims or a classified failure.
type AuthenticateResult struct {
	Failure AuthenticateFailureKind
	Err     error
	Claims  *jwt.Claims
}

// AuthenticateDeps captures per-request verification dependencies. The flow
// never reaches the repository.
type AuthenticateDeps struct {
	VerifyAccess func(string) (*jwt.Claims, error)
}

func RunAuthenticate(accessToken string, deps AuthenticateDeps) AuthenticateResult {
	claims, err := deps.VerifyAccess(accessToken)
	if err == nil {
		return AuthenticateResult{Claims: claims}
	}

	res := AuthenticateResult{Err: err}
	switch {
	case errors.Is(err, jwt.ErrExpired):
		res.Failure = AuthenticateFailureExpired
	case errors.Is(err, jwt.ErrTokenTypeMismatch):
		res.Failure = AuthenticateFailureTypeMismatch
	case errors.Is(err, jwt.ErrSignatureInvalid):
		res.Failure = AuthenticateFailureSignature
	default:
		res.Failure = AuthenticateFailureMalformed
	}
	return res
}

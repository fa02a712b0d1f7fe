package flows

import (
	"time"

	"github.com/MrEthical07/goSession/internal"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
)

// Deps groups flow dependency sets. Root engine builds this once and delegates
// request methods to the matching flow implementation.
type Deps struct {
	Issue        IssueDeps
	Refresh      RefreshDeps
	Authenticate AuthenticateDeps
	Logout       LogoutDeps
}

// CredentialDeps is the secret handling shared by every flow that reads or
// writes credential records.
type CredentialDeps struct {
	VerifyRefresh func(string) (*jwt.Claims, error)
	ParseSecret   func(string) (internal.RefreshSecret, error)
	Digest        func(internal.RefreshSecret) [32]byte
	Repository    session.Repository
}

// presentedDigest verifies a refresh token and returns its claims together
// with the digest of its secret.
func (d CredentialDeps) presentedDigest(token string) (*jwt.Claims, [32]byte, error) {
	claims, err := d.VerifyRefresh(token)
	if err != nil {
		return nil, [32]byte{}, err
	}
	secret, err := d.ParseSecret(claims.Secret)
	if err != nil {
		return nil, [32]byte{}, err
	}
	return claims, d.Digest(secret), nil
}

// matchRecord compares digest against every candidate in constant time. All
// candidates are compared even after a hit.
func matchRecord(candidates []session.Record, digest [32]byte) (session.Record, bool) {
	var (
		found session.Record
		ok    bool
	)
	for _, rec := range candidates {
		if internal.DigestEqual(rec.CredentialDigest, digest) && !ok {
			found = rec
			ok = true
		}
	}
	return found, ok
}

func nowFrom(now func() time.Time) time.Time {
	if now == nil {
		return time.Now()
	}
	return now()
}

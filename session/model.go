package session

import (
	"fmt"
	"time"
)

// Record is one issued refresh-token credential.
type Record struct {
	ID               string
	UserID           string
	CredentialDigest [32]byte
	CreatedAt        time.Time
	ExpiresAt        time.Time
	// RevokedAt is nil while the record has not been consumed or revoked.
	RevokedAt     *time.Time
	DeviceInfo    string
	ClientAddress string
}

// Active reports whether the record is unrevoked and unexpired at now.
func (r Record) Active(now time.Time) bool {
	return r.RevokedAt == nil && now.Before(r.ExpiresAt)
}

func (r Record) validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidRecord)
	}
	if r.UserID == "" {
		return fmt.Errorf("%w: empty user id", ErrInvalidRecord)
	}
	if !r.ExpiresAt.After(r.CreatedAt) {
		return fmt.Errorf("%w: expires_at must be after created_at", ErrInvalidRecord)
	}
	if r.RevokedAt != nil {
		return fmt.Errorf("%w: new record must be active", ErrInvalidRecord)
	}
	return nil
}

func (r Record) clone() Record {
	out := r
	if r.RevokedAt != nil {
		t := *r.RevokedAt
		out.RevokedAt = &t
	}
	return out
}

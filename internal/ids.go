package internal

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewRecordID returns a ULID for a session credential record. ULIDs sort by
// creation time, which keeps per-user listings ordered.
func NewRecordID(now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

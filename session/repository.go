package session

import (
	"context"
	"errors"
	"sort"
	"time"
)

var (
	// ErrStorageUnavailable wraps every backend failure.
	ErrStorageUnavailable = errors.New("session storage unavailable")
	// ErrRecordExists is returned by Create when the ID is already taken.
	ErrRecordExists = errors.New("session record already exists")
	// ErrInvalidRecord is returned by Create for incomplete records.
	ErrInvalidRecord = errors.New("invalid session record")
)

// Repository stores credential records. Implementations must be safe for
// concurrent callers, including concurrent callers for the same user.
type Repository interface {
	// Create inserts a new active record.
	Create(ctx context.Context, rec Record) error
	// ListActive returns the user's active records ordered by CreatedAt.
	ListActive(ctx context.Context, userID string) ([]Record, error)
	// TryConsume atomically moves one record from active to revoked. It
	// returns true for exactly one caller per record and false when the
	// record is unknown, already revoked or expired.
	TryConsume(ctx context.Context, recordID string) (bool, error)
	// RevokeAll revokes every unrevoked record of the user and returns how
	// many of them were active. Already revoked records are left untouched.
	RevokeAll(ctx context.Context, userID string) (int, error)
	// Revoke revokes one record and reports whether it changed.
	Revoke(ctx context.Context, recordID string) (bool, error)
}

// ReplayTracker is implemented by backends that can count reuse anomalies.
type ReplayTracker interface {
	TrackReplay(ctx context.Context, userID string, window time.Duration) (int64, error)
}

// Pinger is implemented by backends with a cheap availability probe.
type Pinger interface {
	Ping(ctx context.Context) (time.Duration, error)
}

// Option configures a store.
type Option func(*options)

type options struct {
	now       func() time.Time
	prefix    string
	retention time.Duration
}

func defaultOptions() options {
	return options{
		now:       time.Now,
		prefix:    "gs",
		retention: 30 * 24 * time.Hour,
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithClock overrides the time source used for expiry decisions and
// revocation timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithPrefix sets the Redis key namespace.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.prefix = prefix
		}
	}
}

// WithRetention sets how long Redis keeps a record after its expiry so
// revoked credentials stay visible for audit.
func WithRetention(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.retention = d
		}
	}
}

func sortByCreated(recs []Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].ID < recs[j].ID
		}
		return recs[i].CreatedAt.Before(recs[j].CreatedAt)
	})
}

package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.UnixMilli(1_700_000_000_000)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var recordSeq atomic.Uint64

func newRecord(t *testing.T, clock *testClock, userID string, ttl time.Duration) Record {
	t.Helper()
	var digest [32]byte
	if _, err := rand.Read(digest[:]); err != nil {
		t.Fatalf("rand: %v", err)
	}
	now := clock.Now()
	return Record{
		ID:               fmt.Sprintf("rec-%s-%06d", userID, recordSeq.Add(1)),
		UserID:           userID,
		CredentialDigest: digest,
		CreatedAt:        now,
		ExpiresAt:        now.Add(ttl),
		DeviceInfo:       "test-agent/1.0",
		ClientAddress:    "10.0.0.1",
	}
}

func mustCreate(t *testing.T, repo Repository, rec Record) {
	t.Helper()
	if err := repo.Create(context.Background(), rec); err != nil {
		t.Fatalf("Create(%s): %v", rec.ID, err)
	}
}

func activeIDs(t *testing.T, repo Repository, userID string) []string {
	t.Helper()
	recs, err := repo.ListActive(context.Background(), userID)
	if err != nil {
		t.Fatalf("ListActive(%s): %v", userID, err)
	}
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	return ids
}

// runRepositoryConformance checks the behavior every backend must share.
// newRepo must return an empty repository driven by clock.
func runRepositoryConformance(t *testing.T, newRepo func(t *testing.T, clock *testClock) Repository) {
	t.Run("CreateAndListOrdered", func(t *testing.T) {
		clock := newTestClock()
		repo := newRepo(t, clock)
		user := uniqueUser("list")

		first := newRecord(t, clock, user, time.Hour)
		clock.Advance(time.Second)
		second := newRecord(t, clock, user, time.Hour)
		// insert out of order
		mustCreate(t, repo, second)
		mustCreate(t, repo, first)
		mustCreate(t, repo, newRecord(t, clock, uniqueUser("other"), time.Hour))

		recs, err := repo.ListActive(context.Background(), user)
		if err != nil {
			t.Fatalf("ListActive: %v", err)
		}
		if len(recs) != 2 || recs[0].ID != first.ID || recs[1].ID != second.ID {
			t.Fatalf("expected [%s %s], got %+v", first.ID, second.ID, recs)
		}
		if recs[0].CredentialDigest != first.CredentialDigest {
			t.Fatal("expected digest to round-trip")
		}
		if recs[0].DeviceInfo != first.DeviceInfo || recs[0].ClientAddress != first.ClientAddress {
			t.Fatalf("expected device info to round-trip, got %+v", recs[0])
		}
		if !recs[0].ExpiresAt.Equal(first.ExpiresAt) {
			t.Fatalf("expected expires_at %v, got %v", first.ExpiresAt, recs[0].ExpiresAt)
		}
	})

	t.Run("CreateRejectsDuplicateAndInvalid", func(t *testing.T) {
		clock := newTestClock()
		repo := newRepo(t, clock)
		rec := newRecord(t, clock, uniqueUser("dup"), time.Hour)
		mustCreate(t, repo, rec)

		if err := repo.Create(context.Background(), rec); !errors.Is(err, ErrRecordExists) {
			t.Fatalf("expected ErrRecordExists, got %v", err)
		}

		bad := newRecord(t, clock, uniqueUser("bad"), time.Hour)
		bad.ExpiresAt = bad.CreatedAt
		if err := repo.Create(context.Background(), bad); !errors.Is(err, ErrInvalidRecord) {
			t.Fatalf("expected ErrInvalidRecord, got %v", err)
		}
	})

	t.Run("ListActiveExcludesRevokedAndExpired", func(t *testing.T) {
		clock := newTestClock()
		repo := newRepo(t, clock)
		user := uniqueUser("filter")

		short := newRecord(t, clock, user, time.Minute)
		long := newRecord(t, clock, user, time.Hour)
		revoked := newRecord(t, clock, user, time.Hour)
		for _, r := range []Record{short, long, revoked} {
			mustCreate(t, repo, r)
		}
		if ok, err := repo.Revoke(context.Background(), revoked.ID); err != nil || !ok {
			t.Fatalf("Revoke: ok=%v err=%v", ok, err)
		}

		clock.Advance(time.Minute)
		ids := activeIDs(t, repo, user)
		if len(ids) != 1 || ids[0] != long.ID {
			t.Fatalf("expected only %s active, got %v", long.ID, ids)
		}
	})

	t.Run("TryConsumeSucceedsOnce", func(t *testing.T) {
		clock := newTestClock()
		repo := newRepo(t, clock)
		rec := newRecord(t, clock, uniqueUser("consume"), time.Hour)
		mustCreate(t, repo, rec)

		ok, err := repo.TryConsume(context.Background(), rec.ID)
		if err != nil || !ok {
			t.Fatalf("first TryConsume: ok=%v err=%v", ok, err)
		}
		ok, err = repo.TryConsume(context.Background(), rec.ID)
		if err != nil || ok {
			t.Fatalf("second TryConsume: ok=%v err=%v", ok, err)
		}
		if ids := activeIDs(t, repo, rec.UserID); len(ids) != 0 {
			t.Fatalf("expected no active records, got %v", ids)
		}
	})

	t.Run("TryConsumeConcurrentExactlyOneWinner", func(t *testing.T) {
		clock := newTestClock()
		repo := newRepo(t, clock)
		rec := newRecord(t, clock, uniqueUser("race"), time.Hour)
		mustCreate(t, repo, rec)

		const workers = 32
		var (
			wg    sync.WaitGroup
			wins  atomic.Int32
			start = make(chan struct{})
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				ok, err := repo.TryConsume(context.Background(), rec.ID)
				if err != nil {
					t.Errorf("TryConsume: %v", err)
					return
				}
				if ok {
					wins.Add(1)
				}
			}()
		}
		close(start)
		wg.Wait()

		if got := wins.Load(); got != 1 {
			t.Fatalf("expected exactly one winner, got %d", got)
		}
	})

	t.Run("TryConsumeExpiredAndUnknown", func(t *testing.T) {
		clock := newTestClock()
		repo := newRepo(t, clock)
		rec := newRecord(t, clock, uniqueUser("expired"), time.Minute)
		mustCreate(t, repo, rec)

		clock.Advance(time.Minute)
		if ok, err := repo.TryConsume(context.Background(), rec.ID); err != nil || ok {
			t.Fatalf("expired TryConsume: ok=%v err=%v", ok, err)
		}
		if ok, err := repo.TryConsume(context.Background(), "missing-record"); err != nil || ok {
			t.Fatalf("unknown TryConsume: ok=%v err=%v", ok, err)
		}
	})

	t.Run("RevokeAllIsolatesUsersAndIsIdempotent", func(t *testing.T) {
		clock := newTestClock()
		repo := newRepo(t, clock)
		user := uniqueUser("all")
		other := uniqueUser("bystander")

		a := newRecord(t, clock, user, time.Hour)
		b := newRecord(t, clock, user, time.Hour)
		c := newRecord(t, clock, other, time.Hour)
		for _, r := range []Record{a, b, c} {
			mustCreate(t, repo, r)
		}
		if ok, _ := repo.TryConsume(context.Background(), a.ID); !ok {
			t.Fatal("expected TryConsume to succeed")
		}

		n, err := repo.RevokeAll(context.Background(), user)
		if err != nil {
			t.Fatalf("RevokeAll: %v", err)
		}
		if n != 1 {
			t.Fatalf("expected 1 record revoked, got %d", n)
		}
		if ids := activeIDs(t, repo, user); len(ids) != 0 {
			t.Fatalf("expected no active records for user, got %v", ids)
		}
		if ids := activeIDs(t, repo, other); len(ids) != 1 {
			t.Fatalf("expected bystander session untouched, got %v", ids)
		}

		n, err = repo.RevokeAll(context.Background(), user)
		if err != nil || n != 0 {
			t.Fatalf("second RevokeAll: n=%d err=%v", n, err)
		}
		if ok, _ := repo.TryConsume(context.Background(), b.ID); ok {
			t.Fatal("revoked record must never be consumable again")
		}
	})

	t.Run("RevokeAllCountsOnlyActive", func(t *testing.T) {
		clock := newTestClock()
		repo := newRepo(t, clock)
		user := uniqueUser("count")

		expired := newRecord(t, clock, user, time.Minute)
		live := newRecord(t, clock, user, time.Hour)
		mustCreate(t, repo, expired)
		mustCreate(t, repo, live)

		clock.Advance(2 * time.Minute)
		n, err := repo.RevokeAll(context.Background(), user)
		if err != nil || n != 1 {
			t.Fatalf("RevokeAll: n=%d err=%v, want 1", n, err)
		}
		if n, err := repo.RevokeAll(context.Background(), user); err != nil || n != 0 {
			t.Fatalf("second RevokeAll: n=%d err=%v", n, err)
		}
	})

	t.Run("RevokeIsIdempotent", func(t *testing.T) {
		clock := newTestClock()
		repo := newRepo(t, clock)
		rec := newRecord(t, clock, uniqueUser("revoke"), time.Hour)
		mustCreate(t, repo, rec)

		if ok, err := repo.Revoke(context.Background(), rec.ID); err != nil || !ok {
			t.Fatalf("first Revoke: ok=%v err=%v", ok, err)
		}
		if ok, err := repo.Revoke(context.Background(), rec.ID); err != nil || ok {
			t.Fatalf("second Revoke: ok=%v err=%v", ok, err)
		}
		if ok, err := repo.Revoke(context.Background(), "missing-record"); err != nil || ok {
			t.Fatalf("unknown Revoke: ok=%v err=%v", ok, err)
		}
	})
}

var userSeq atomic.Uint64

func uniqueUser(prefix string) string {
	return fmt.Sprintf("%s-%d-%d", prefix, time.Now().UnixNano(), userSeq.Add(1))
}

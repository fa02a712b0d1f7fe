package session

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory. A single mutex serializes all
// writes, which makes TryConsume trivially atomic.
type MemoryStore struct {
	mu      sync.Mutex
	now     func() time.Time
	records map[string]*Record
	byUser  map[string][]string
	replays map[string]int64
}

// NewMemoryStore returns an empty [MemoryStore]. Only WithClock is honored.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := applyOptions(opts)
	return &MemoryStore{
		now:     o.now,
		records: make(map[string]*Record),
		byUser:  make(map[string][]string),
		replays: make(map[string]int64),
	}
}

func (s *MemoryStore) Create(ctx context.Context, rec Record) error {
	if err := rec.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.ID]; ok {
		return fmt.Errorf("%w: %s", ErrRecordExists, rec.ID)
	}
	stored := rec.clone()
	s.records[rec.ID] = &stored
	s.byUser[rec.UserID] = append(s.byUser[rec.UserID], rec.ID)
	return nil
}

func (s *MemoryStore) ListActive(ctx context.Context, userID string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	out := make([]Record, 0, len(s.byUser[userID]))
	for _, id := range s.byUser[userID] {
		rec := s.records[id]
		if rec != nil && rec.Active(now) {
			out = append(out, rec.clone())
		}
	}
	sortByCreated(out)
	return out, nil
}

func (s *MemoryStore) TryConsume(ctx context.Context, recordID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec := s.records[recordID]
	if rec == nil || !rec.Active(now) {
		return false, nil
	}
	rec.RevokedAt = &now
	return true, nil
}

func (s *MemoryStore) RevokeAll(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	revoked := 0
	for _, id := range s.byUser[userID] {
		rec := s.records[id]
		if rec == nil || rec.RevokedAt != nil {
			continue
		}
		if rec.Active(now) {
			revoked++
		}
		t := now
		rec.RevokedAt = &t
	}
	return revoked, nil
}

func (s *MemoryStore) Revoke(ctx context.Context, recordID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.records[recordID]
	if rec == nil || rec.RevokedAt != nil {
		return false, nil
	}
	now := s.now()
	rec.RevokedAt = &now
	return true, nil
}

// TrackReplay counts reuse anomalies per user. The window is ignored.
func (s *MemoryStore) TrackReplay(ctx context.Context, userID string, _ time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.replays[userID]++
	return s.replays[userID], nil
}

// Get returns a record by ID regardless of state. Intended for tests and
// audit tooling.
func (s *MemoryStore) Get(recordID string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.records[recordID]
	if rec == nil {
		return Record{}, false
	}
	return rec.clone(), true
}

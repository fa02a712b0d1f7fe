package goSession

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goSession/session"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1_700_000_000, 0)}
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

func testConfig(t testing.TB) Config {
	t.Helper()
	accessPub, accessPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate access key: %v", err)
	}
	refreshPub, refreshPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate refresh key: %v", err)
	}

	cfg := DefaultConfig()
	cfg.JWT.AccessTTL = 15 * time.Minute
	cfg.JWT.RefreshTTL = 24 * time.Hour
	cfg.JWT.AccessPrivateKey = accessPriv
	cfg.JWT.AccessPublicKey = accessPub
	cfg.JWT.RefreshPrivateKey = refreshPriv
	cfg.JWT.RefreshPublicKey = refreshPub
	cfg.JWT.Issuer = "gosession-test"
	cfg.Metrics.Enabled = true
	return cfg
}

func newTestRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

type memoryEngine struct {
	*Engine
	store *session.MemoryStore
	clock *testClock
}

func newMemoryEngine(t testing.TB, mutate func(*Config)) memoryEngine {
	t.Helper()
	clock := newTestClock()
	cfg := testConfig(t)
	if mutate != nil {
		mutate(&cfg)
	}
	store := session.NewMemoryStore(session.WithClock(clock.Now))
	engine, err := New().
		WithConfig(cfg).
		WithRepository(store).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)
	return memoryEngine{Engine: engine, store: store, clock: clock}
}

type redisEngine struct {
	*Engine
	mr    *miniredis.Miniredis
	rdb   *redis.Client
	clock *testClock
}

func newRedisEngine(t testing.TB, mutate func(*Config)) redisEngine {
	t.Helper()
	clock := newTestClock()
	mr, rdb := newTestRedis(t)
	cfg := testConfig(t)
	if mutate != nil {
		mutate(&cfg)
	}
	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)
	return redisEngine{Engine: engine, mr: mr, rdb: rdb, clock: clock}
}

func mustIssue(t testing.TB, e *Engine, userID string) *IssueResult {
	t.Helper()
	res, err := e.Issue(context.Background(), IssueRequest{UserID: userID, Role: "member"})
	if err != nil {
		t.Fatalf("Issue(%s): %v", userID, err)
	}
	return res
}

func mustRefresh(t testing.TB, e *Engine, token string) *TokenPair {
	t.Helper()
	pair, err := e.Refresh(context.Background(), token)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	return pair
}

func activeCount(t testing.TB, e *Engine, userID string) int {
	t.Helper()
	sessions, err := e.ActiveSessions(context.Background(), userID)
	if err != nil {
		t.Fatalf("ActiveSessions(%s): %v", userID, err)
	}
	return len(sessions)
}

// failingRepo wraps a repository and fails selected operations.
type failingRepo struct {
	session.Repository
	failList      bool
	failConsume   bool
	failCreate    bool
	failRevokeAll bool
	failRevoke    bool
	consumeFalse  bool

	mu           sync.Mutex
	revokeAllCtx []context.Context
}

func (r *failingRepo) Create(ctx context.Context, rec session.Record) error {
	if r.failCreate {
		return session.ErrStorageUnavailable
	}
	return r.Repository.Create(ctx, rec)
}

func (r *failingRepo) ListActive(ctx context.Context, userID string) ([]session.Record, error) {
	if r.failList {
		return nil, session.ErrStorageUnavailable
	}
	return r.Repository.ListActive(ctx, userID)
}

func (r *failingRepo) TryConsume(ctx context.Context, id string) (bool, error) {
	if r.failConsume {
		return false, session.ErrStorageUnavailable
	}
	if r.consumeFalse {
		return false, nil
	}
	return r.Repository.TryConsume(ctx, id)
}

func (r *failingRepo) RevokeAll(ctx context.Context, userID string) (int, error) {
	r.mu.Lock()
	r.revokeAllCtx = append(r.revokeAllCtx, ctx)
	r.mu.Unlock()
	if r.failRevokeAll {
		return 0, session.ErrStorageUnavailable
	}
	return r.Repository.RevokeAll(ctx, userID)
}

func (r *failingRepo) Revoke(ctx context.Context, id string) (bool, error) {
	if r.failRevoke {
		return false, session.ErrStorageUnavailable
	}
	return r.Repository.Revoke(ctx, id)
}

func newFailingEngine(t testing.TB, mutate func(*Config)) (*Engine, *failingRepo, *testClock) {
	t.Helper()
	clock := newTestClock()
	cfg := testConfig(t)
	if mutate != nil {
		mutate(&cfg)
	}
	repo := &failingRepo{Repository: session.NewMemoryStore(session.WithClock(clock.Now))}
	engine, err := New().
		WithConfig(cfg).
		WithRepository(repo).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine, repo, clock
}

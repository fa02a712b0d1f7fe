package goSession

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLogoutIsIdempotent(t *testing.T) {
	e := newMemoryEngine(t, nil)
	a := mustIssue(t, e.Engine, "alice")
	mustIssue(t, e.Engine, "alice")

	if err := e.Logout(context.Background(), "alice", a.RefreshToken); err != nil {
		t.Fatalf("first Logout: %v", err)
	}
	if n := activeCount(t, e.Engine, "alice"); n != 1 {
		t.Fatalf("expected only the matching session revoked, got %d active", n)
	}
	if err := e.Logout(context.Background(), "alice", a.RefreshToken); err != nil {
		t.Fatalf("second Logout must be a no-op, got %v", err)
	}
	if n := activeCount(t, e.Engine, "alice"); n != 1 {
		t.Fatalf("second logout changed state, got %d active", n)
	}
	if _, err := e.Refresh(context.Background(), a.RefreshToken); !errors.Is(err, ErrRefreshReuse) {
		t.Fatalf("logged out token must not refresh, got %v", err)
	}
}

func TestLogoutEmptyTokenRevokesAll(t *testing.T) {
	e := newMemoryEngine(t, nil)
	mustIssue(t, e.Engine, "alice")
	mustIssue(t, e.Engine, "alice")
	mustIssue(t, e.Engine, "bob")

	if err := e.Logout(context.Background(), "alice", ""); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if n := activeCount(t, e.Engine, "alice"); n != 0 {
		t.Fatalf("expected all of alice's sessions revoked, got %d", n)
	}
	if n := activeCount(t, e.Engine, "bob"); n != 1 {
		t.Fatalf("expected bob untouched, got %d", n)
	}
	if got := e.MetricsSnapshot().Counters[MetricSessionRevoked]; got != 2 {
		t.Fatalf("expected two revoked sessions counted, got %d", got)
	}
}

func TestLogoutOtherUsersTokenIsNoop(t *testing.T) {
	e := newMemoryEngine(t, nil)
	bob := mustIssue(t, e.Engine, "bob")

	if err := e.Logout(context.Background(), "alice", bob.RefreshToken); err != nil {
		t.Fatalf("expected silent no-op, got %v", err)
	}
	if n := activeCount(t, e.Engine, "bob"); n != 1 {
		t.Fatalf("bob's session must survive, got %d", n)
	}
}

func TestLogoutMismatchIsError(t *testing.T) {
	e := newMemoryEngine(t, func(cfg *Config) {
		cfg.Security.LogoutMismatchIsError = true
	})
	a := mustIssue(t, e.Engine, "alice")

	if err := e.Logout(context.Background(), "alice", "garbage"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for garbage, got %v", err)
	}
	if err := e.Logout(context.Background(), "alice", a.RefreshToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	err := e.Logout(context.Background(), "alice", a.RefreshToken)
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on repeat, got %v", err)
	}
	if ErrorCode(err) != CodeSessionNotFound {
		t.Fatalf("expected %s, got %s", CodeSessionNotFound, ErrorCode(err))
	}
}

func TestLogoutStorageFailure(t *testing.T) {
	e, repo, _ := newFailingEngine(t, nil)
	a := mustIssue(t, e, "alice")

	repo.failList = true
	if err := e.Logout(context.Background(), "alice", a.RefreshToken); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	repo.failList = false
	repo.failRevokeAll = true
	if err := e.LogoutAll(context.Background(), "alice"); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestLogoutAllThenRefreshFails(t *testing.T) {
	e := newRedisEngine(t, nil)
	a := mustIssue(t, e.Engine, "alice")
	b := mustIssue(t, e.Engine, "alice")

	if err := e.LogoutAll(context.Background(), "alice"); err != nil {
		t.Fatalf("LogoutAll: %v", err)
	}
	if err := e.LogoutAll(context.Background(), "alice"); err != nil {
		t.Fatalf("second LogoutAll: %v", err)
	}
	for _, tok := range []string{a.RefreshToken, b.RefreshToken} {
		if _, err := e.Refresh(context.Background(), tok); !errors.Is(err, ErrRefreshReuse) {
			t.Fatalf("expected ErrRefreshReuse after LogoutAll, got %v", err)
		}
	}
}

func TestRevokeSessionOwnership(t *testing.T) {
	e := newMemoryEngine(t, func(cfg *Config) {
		cfg.Security.LogoutMismatchIsError = true
	})
	alice := mustIssue(t, e.Engine, "alice")
	bob := mustIssue(t, e.Engine, "bob")

	if err := e.RevokeSession(context.Background(), "alice", bob.SessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for foreign session, got %v", err)
	}
	if n := activeCount(t, e.Engine, "bob"); n != 1 {
		t.Fatalf("bob's session must survive, got %d", n)
	}

	if err := e.RevokeSession(context.Background(), "alice", alice.SessionID); err != nil {
		t.Fatalf("RevokeSession: %v", err)
	}
	if n := activeCount(t, e.Engine, "alice"); n != 0 {
		t.Fatalf("expected alice's session revoked, got %d", n)
	}
}

func TestActiveSessionsListsOldestFirst(t *testing.T) {
	e := newMemoryEngine(t, nil)
	first := mustIssue(t, e.Engine, "alice")
	e.clock.Advance(time.Second)
	second := mustIssue(t, e.Engine, "alice")

	sessions, err := e.ActiveSessions(context.Background(), "alice")
	if err != nil {
		t.Fatalf("ActiveSessions: %v", err)
	}
	if len(sessions) != 2 || sessions[0].ID != first.SessionID || sessions[1].ID != second.SessionID {
		t.Fatalf("unexpected sessions %+v", sessions)
	}
}

func TestEngineArgumentValidation(t *testing.T) {
	e := newMemoryEngine(t, nil)
	ctx := context.Background()

	if _, err := e.Issue(ctx, IssueRequest{}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("Issue: expected ErrInvalidRequest, got %v", err)
	}
	if err := e.Logout(ctx, "", "x"); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("Logout: expected ErrInvalidRequest, got %v", err)
	}
	if err := e.LogoutAll(ctx, " "); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("LogoutAll: expected ErrInvalidRequest, got %v", err)
	}
	if err := e.RevokeSession(ctx, "alice", ""); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("RevokeSession: expected ErrInvalidRequest, got %v", err)
	}

	var nilEngine *Engine
	if _, err := nilEngine.Refresh(ctx, "x"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("nil engine: expected ErrEngineNotReady, got %v", err)
	}
}

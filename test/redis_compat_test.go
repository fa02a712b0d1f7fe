//go:build integration
// +build integration

package test

import (
	"context"
	"errors"
	"testing"

	goSession "github.com/MrEthical07/goSession"
)

// TestRedisCompat_LoginRefreshReplay runs the full rotation lifecycle
// against every available backend.
func TestRedisCompat_LoginRefreshReplay(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			rdb, cleanup := mode.setup(t)
			defer cleanup()

			engine := newIntegrationEngine(t, rdb, func(cfg *goSession.Config) {
				cfg.Security.EnableReplayTracking = true
			})
			ctx := context.Background()

			laptop := mustIssue(t, engine, "user1")
			phone := mustIssue(t, engine, "user1")
			bystander := mustIssue(t, engine, "user2")

			rotated, err := engine.Refresh(ctx, laptop.RefreshToken)
			if err != nil {
				t.Fatalf("Refresh: %v", err)
			}
			if _, err := engine.Authenticate(ctx, rotated.AccessToken); err != nil {
				t.Fatalf("Authenticate rotated access: %v", err)
			}

			if _, err := engine.Refresh(ctx, laptop.RefreshToken); !errors.Is(err, goSession.ErrRefreshReuse) {
				t.Fatalf("expected ErrRefreshReuse on replay, got %v", err)
			}
			for name, token := range map[string]string{"rotated": rotated.RefreshToken, "phone": phone.RefreshToken} {
				if _, err := engine.Refresh(ctx, token); !errors.Is(err, goSession.ErrRefreshReuse) {
					t.Fatalf("expected %s session revoked by remediation, got %v", name, err)
				}
			}

			if _, err := engine.Refresh(ctx, bystander.RefreshToken); err != nil {
				t.Fatalf("bystander Refresh: %v", err)
			}
		})
	}
}

// TestRedisCompat_LogoutAndList checks logout and session listing against
// every available backend.
func TestRedisCompat_LogoutAndList(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			rdb, cleanup := mode.setup(t)
			defer cleanup()

			engine := newIntegrationEngine(t, rdb, nil)
			ctx := context.Background()

			first := mustIssue(t, engine, "user3")
			second := mustIssue(t, engine, "user3")

			sessions, err := engine.ActiveSessions(ctx, "user3")
			if err != nil {
				t.Fatalf("ActiveSessions: %v", err)
			}
			if len(sessions) != 2 {
				t.Fatalf("expected 2 sessions, got %d", len(sessions))
			}

			if err := engine.Logout(ctx, "user3", first.RefreshToken); err != nil {
				t.Fatalf("Logout: %v", err)
			}
			if err := engine.Logout(ctx, "user3", first.RefreshToken); err != nil {
				t.Fatalf("second Logout: %v", err)
			}

			sessions, err = engine.ActiveSessions(ctx, "user3")
			if err != nil {
				t.Fatalf("ActiveSessions: %v", err)
			}
			if len(sessions) != 1 || sessions[0].ID != second.SessionID {
				t.Fatalf("expected only %s active, got %+v", second.SessionID, sessions)
			}
		})
	}
}

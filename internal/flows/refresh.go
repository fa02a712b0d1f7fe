package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goSession/session"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureVerify
	RefreshFailureRateLimited
	RefreshFailureThrottleUnavailable
	RefreshFailureList
	RefreshFailureReuse
	RefreshFailureConsume
	RefreshFailureResolveClaims
	RefreshFailureIssue
)

// ReuseCause tells which check detected reuse.
type ReuseCause string

const (
	ReuseNoMatch      ReuseCause = "no_match"
	ReuseConsumeRaced ReuseCause = "consume_lost"
)

// RefreshResult carries either the rotated pair or failure metadata.
type RefreshResult struct {
	Failure RefreshFailureKind
	Err     error
	UserID  string

	// Set on the reuse path.
	Cause          ReuseCause
	Revoked        int
	RemediationErr error
	ReplayCount    int64

	// Set once a record has been consumed.
	ConsumedID string
	Issue      IssueResult
}

type RefreshRateLimiter interface {
	CheckRefresh(ctx context.Context, subject string) error
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Credentials CredentialDeps
	Issue       IssueDeps

	RateLimiter    RefreshRateLimiter
	ErrRateLimited error

	// ReplayTracker is nil when replay tracking is off.
	ReplayTracker session.ReplayTracker
	ReplayWindow  time.Duration

	// ResolveClaims re-derives access claims for the subject. Nil carries the
	// role forward from the refresh token.
	ResolveClaims func(ctx context.Context, userID string) (string, map[string]string, error)
	// Device returns caller metadata for the new record. Empty values fall
	// back to the consumed record.
	Device func(ctx context.Context) (string, string)

	Warn func(string, ...any)
}

// RunRefresh verifies, matches, consumes and reissues. Every path that finds
// the presented credential unusable after a successful verify revokes all of
// the subject's sessions.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	claims, digest, err := deps.Credentials.presentedDigest(refreshToken)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureVerify, Err: err}
	}
	userID := claims.Subject

	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.CheckRefresh(ctx, userID); err != nil {
			kind := RefreshFailureThrottleUnavailable
			if deps.ErrRateLimited != nil && errors.Is(err, deps.ErrRateLimited) {
				kind = RefreshFailureRateLimited
			}
			return RefreshResult{Failure: kind, Err: err, UserID: userID}
		}
	}

	repo := deps.Credentials.Repository
	candidates, err := repo.ListActive(ctx, userID)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureList, Err: err, UserID: userID}
	}

	matched, ok := matchRecord(candidates, digest)
	if !ok {
		return remediateReuse(ctx, userID, ReuseNoMatch, deps)
	}

	consumed, err := repo.TryConsume(ctx, matched.ID)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureConsume, Err: err, UserID: userID}
	}
	if !consumed {
		return remediateReuse(ctx, userID, ReuseConsumeRaced, deps)
	}

	role, app := claims.Role, map[string]string(nil)
	if deps.ResolveClaims != nil {
		role, app, err = deps.ResolveClaims(ctx, userID)
		if err != nil {
			return RefreshResult{
				Failure:    RefreshFailureResolveClaims,
				Err:        err,
				UserID:     userID,
				ConsumedID: matched.ID,
			}
		}
	}

	grant := Grant{
		UserID:        userID,
		Role:          role,
		App:           app,
		DeviceInfo:    matched.DeviceInfo,
		ClientAddress: matched.ClientAddress,
	}
	if deps.Device != nil {
		device, addr := deps.Device(ctx)
		if device != "" {
			grant.DeviceInfo = device
		}
		if addr != "" {
			grant.ClientAddress = addr
		}
	}

	issued := RunIssue(ctx, grant, deps.Issue)
	if issued.Failure != IssueFailureNone {
		return RefreshResult{
			Failure:    RefreshFailureIssue,
			Err:        issued.Err,
			UserID:     userID,
			ConsumedID: matched.ID,
			Issue:      issued,
		}
	}

	return RefreshResult{
		Failure:    RefreshFailureNone,
		UserID:     userID,
		ConsumedID: matched.ID,
		Issue:      issued,
	}
}

// remediateReuse revokes every session of the subject. It runs detached from
// ctx cancellation so a disconnecting caller cannot stop it.
func remediateReuse(ctx context.Context, userID string, cause ReuseCause, deps RefreshDeps) RefreshResult {
	rctx := context.WithoutCancel(ctx)
	res := RefreshResult{
		Failure: RefreshFailureReuse,
		UserID:  userID,
		Cause:   cause,
	}

	n, err := deps.Credentials.Repository.RevokeAll(rctx, userID)
	res.Revoked = n
	if err != nil {
		res.RemediationErr = err
		if deps.Warn != nil {
			deps.Warn("goSession: reuse remediation failed", "user_id", userID, "error", err)
		}
	}

	if deps.ReplayTracker != nil {
		count, err := deps.ReplayTracker.TrackReplay(rctx, userID, deps.ReplayWindow)
		if err != nil {
			if deps.Warn != nil {
				deps.Warn("goSession: replay anomaly tracking failed", "user_id", userID, "error", err)
			}
		} else {
			res.ReplayCount = count
		}
	}
	return res
}

package goSession

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MrEthical07/goSession/internal/flows"
)

// Refresh rotates a refresh token. On success the presented credential is
// consumed and a new pair is returned. A verified token that no longer maps
// to an active record revokes every session of its subject and returns
// [ErrRefreshReuse].
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (pair *TokenPair, err error) {
	if e == nil || e.repo == nil {
		return nil, ErrEngineNotReady
	}
	if refreshToken == "" {
		return nil, ErrTokenMalformed
	}

	start := time.Now()
	defer e.observe(MetricRefreshLatency, start)

	ctx, span := e.startSpan(ctx, "goSession.Refresh")
	defer func() { endSpan(span, err) }()

	res := flows.RunRefresh(ctx, refreshToken, e.flows.Refresh)
	if res.UserID != "" {
		span.SetAttributes(attribute.String("user.id", res.UserID))
	}

	if res.Failure != flows.RefreshFailureNone {
		return nil, e.refreshFailed(ctx, res)
	}

	e.metricInc(MetricRefreshSuccess)
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, res.UserID, res.Issue.Record.ID, nil, func() map[string]string {
		return map[string]string{"consumed_session_id": res.ConsumedID}
	})

	return &TokenPair{
		AccessToken:  res.Issue.AccessToken,
		RefreshToken: res.Issue.RefreshToken,
		ExpiresIn:    e.config.JWT.AccessTTL,
	}, nil
}

func (e *Engine) refreshFailed(ctx context.Context, res flows.RefreshResult) error {
	switch res.Failure {
	case flows.RefreshFailureVerify:
		err := tokenError(res.Err)
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", err, nil)
		return err

	case flows.RefreshFailureRateLimited:
		e.metricInc(MetricRefreshRateLimited)
		e.emitAudit(ctx, auditEventRefreshRateLimited, false, res.UserID, "", ErrRefreshRateLimited, nil)
		return ErrRefreshRateLimited

	case flows.RefreshFailureReuse:
		return e.reuseDetected(ctx, res)

	case flows.RefreshFailureResolveClaims:
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, res.UserID, res.ConsumedID, res.Err, nil)
		return res.Err

	default:
		// Throttle, list, consume and reissue failures all fail closed.
		err := storageError(res.Err)
		e.metricInc(MetricRefreshFailure)
		e.metricInc(MetricStorageUnavailable)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, res.UserID, res.ConsumedID, err, nil)
		return err
	}
}

func (e *Engine) reuseDetected(ctx context.Context, res flows.RefreshResult) error {
	e.metricInc(MetricRefreshReuseDetected)
	if res.Cause == flows.ReuseConsumeRaced {
		e.metricInc(MetricConsumeConflict)
	}
	if res.ReplayCount > 1 {
		e.metricInc(MetricReplayThresholdExceeded)
	}
	e.metricAdd(MetricSessionRevoked, res.Revoked)

	err := ErrRefreshReuse
	if res.RemediationErr != nil {
		e.metricInc(MetricStorageUnavailable)
		err = errors.Join(ErrRefreshReuse, storageError(res.RemediationErr))
	}

	e.emitAudit(ctx, auditEventRefreshReuseDetected, false, res.UserID, "", err, func() map[string]string {
		md := map[string]string{
			"cause":   string(res.Cause),
			"revoked": strconv.Itoa(res.Revoked),
		}
		if res.ReplayCount > 0 {
			md["replay_count"] = strconv.FormatInt(res.ReplayCount, 10)
		}
		return md
	})
	return err
}

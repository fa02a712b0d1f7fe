package goSession

import (
	"context"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MrEthical07/goSession/internal/flows"
)

// Logout revokes the session holding refreshToken. An empty token revokes
// every session of userID. A token that does not verify, belongs to another
// user or matches nothing is a no-op unless Security.LogoutMismatchIsError
// is set. Calling Logout twice with the same token is safe.
func (e *Engine) Logout(ctx context.Context, userID, refreshToken string) (err error) {
	if e == nil || e.repo == nil {
		return ErrEngineNotReady
	}
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidRequest
	}

	ctx, span := e.startSpan(ctx, "goSession.Logout", attribute.String("user.id", userID))
	defer func() { endSpan(span, err) }()

	res := flows.RunLogout(ctx, userID, refreshToken, e.flows.Logout)
	return e.logoutDone(ctx, userID, res)
}

// LogoutAll revokes every session of userID.
func (e *Engine) LogoutAll(ctx context.Context, userID string) (err error) {
	if e == nil || e.repo == nil {
		return ErrEngineNotReady
	}
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidRequest
	}

	ctx, span := e.startSpan(ctx, "goSession.LogoutAll", attribute.String("user.id", userID))
	defer func() { endSpan(span, err) }()

	res := flows.RunLogoutAll(ctx, userID, e.flows.Logout)
	return e.logoutDone(ctx, userID, res)
}

// RevokeSession revokes one of userID's active sessions by ID. Records of
// other users are never touched.
func (e *Engine) RevokeSession(ctx context.Context, userID, sessionID string) (err error) {
	if e == nil || e.repo == nil {
		return ErrEngineNotReady
	}
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(sessionID) == "" {
		return ErrInvalidRequest
	}

	ctx, span := e.startSpan(ctx, "goSession.RevokeSession",
		attribute.String("user.id", userID),
		attribute.String("session.id", sessionID),
	)
	defer func() { endSpan(span, err) }()

	res := flows.RunRevokeSession(ctx, userID, sessionID, e.flows.Logout)
	if res.Failure == flows.LogoutFailureNone {
		e.metricAdd(MetricSessionRevoked, res.Revoked)
		e.emitAudit(ctx, auditEventSessionRevoked, true, userID, sessionID, nil, nil)
		return nil
	}
	return e.logoutDone(ctx, userID, res)
}

// ActiveSessions lists userID's active sessions, oldest first.
func (e *Engine) ActiveSessions(ctx context.Context, userID string) ([]SessionInfo, error) {
	if e == nil || e.repo == nil {
		return nil, ErrEngineNotReady
	}
	if strings.TrimSpace(userID) == "" {
		return nil, ErrInvalidRequest
	}

	recs, err := e.repo.ListActive(ctx, userID)
	if err != nil {
		e.metricInc(MetricStorageUnavailable)
		return nil, storageError(err)
	}

	out := make([]SessionInfo, len(recs))
	for i, rec := range recs {
		out[i] = SessionInfo{
			ID:            rec.ID,
			CreatedAt:     rec.CreatedAt,
			ExpiresAt:     rec.ExpiresAt,
			DeviceInfo:    rec.DeviceInfo,
			ClientAddress: rec.ClientAddress,
		}
	}
	return out, nil
}

func (e *Engine) logoutDone(ctx context.Context, userID string, res flows.LogoutResult) error {
	switch res.Failure {
	case flows.LogoutFailureStorage:
		err := storageError(res.Err)
		e.metricInc(MetricStorageUnavailable)
		e.emitAudit(ctx, logoutEvent(res), false, userID, res.RecordID, err, nil)
		return err

	case flows.LogoutFailureNoMatch:
		e.metricInc(MetricLogoutNoMatch)
		if e.config.Security.LogoutMismatchIsError {
			e.emitAudit(ctx, logoutEvent(res), false, userID, res.RecordID, ErrSessionNotFound, nil)
			return ErrSessionNotFound
		}
		return nil
	}

	if res.All {
		e.metricInc(MetricLogoutAll)
	} else {
		e.metricInc(MetricLogout)
	}
	e.metricAdd(MetricSessionRevoked, res.Revoked)
	e.emitAudit(ctx, logoutEvent(res), true, userID, res.RecordID, nil, func() map[string]string {
		return map[string]string{"revoked": strconv.Itoa(res.Revoked)}
	})
	return nil
}

func logoutEvent(res flows.LogoutResult) string {
	if res.All {
		return auditEventLogoutAll
	}
	return auditEventLogoutSession
}

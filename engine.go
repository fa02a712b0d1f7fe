package goSession

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrEthical07/goSession/internal"
	internalaudit "github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/internal/flows"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Engine issues, rotates, verifies and revokes sessions. It is safe for
// concurrent use; all mutable session state lives in the repository.
type Engine struct {
	config         Config
	repo           session.Repository
	jwtManager     *jwt.Manager
	digester       *internal.Digester
	rateLimiter    *rate.Limiter
	replayTracker  session.ReplayTracker
	audit          *internalaudit.Dispatcher
	metrics        *Metrics
	logger         *slog.Logger
	tracer         trace.Tracer
	claimsResolver ClaimsResolver
	now            func() time.Time
	flows          flows.Deps
}

// Close flushes and stops the audit dispatcher. It never closes the
// repository or Redis client.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were dropped because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Metrics exposes the live counter set for exporters.
func (e *Engine) Metrics() *Metrics {
	if e == nil {
		return nil
	}
	return e.metrics
}

// Ping probes the repository when it supports it.
func (e *Engine) Ping(ctx context.Context) (time.Duration, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}
	p, ok := e.repo.(session.Pinger)
	if !ok {
		return 0, nil
	}
	d, err := p.Ping(ctx)
	if err != nil {
		return d, storageError(err)
	}
	return d, nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricAdd(id MetricID, n int) {
	if e == nil || e.metrics == nil || n <= 0 {
		return
	}
	e.metrics.Add(id, uint64(n))
}

func (e *Engine) observe(id MetricID, start time.Time) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, time.Since(start))
}

func (e *Engine) warn(msg string, args ...any) {
	if e == nil || e.logger == nil {
		return
	}
	e.logger.Warn(msg, args...)
}

func (e *Engine) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, ErrorCode(err))
	}
	span.End()
}

func (e *Engine) buildFlowDeps() flows.Deps {
	credentials := flows.CredentialDeps{
		VerifyRefresh: func(token string) (*jwt.Claims, error) {
			return e.jwtManager.Verify(token, jwt.ClassRefresh)
		},
		ParseSecret: internal.ParseRefreshSecret,
		Digest:      e.digester.Digest,
		Repository:  e.repo,
	}

	issue := flows.IssueDeps{
		Now:         e.now,
		RefreshTTL:  e.config.JWT.RefreshTTL,
		NewSecret:   internal.NewRefreshSecret,
		Digest:      e.digester.Digest,
		NewRecordID: internal.NewRecordID,
		IssueAccess: func(userID, role string, app map[string]string) (string, error) {
			return e.jwtManager.Issue(jwt.Claims{
				Class:            jwt.ClassAccess,
				Role:             role,
				App:              app,
				RegisteredClaims: registered(userID),
			}, e.config.JWT.AccessTTL)
		},
		IssueRefresh: func(userID, role, secret string) (string, error) {
			return e.jwtManager.Issue(jwt.Claims{
				Class:            jwt.ClassRefresh,
				Role:             role,
				Secret:           secret,
				RegisteredClaims: registered(userID),
			}, e.config.JWT.RefreshTTL)
		},
		Repository: e.repo,
	}

	refresh := flows.RefreshDeps{
		Credentials:    credentials,
		Issue:          issue,
		ErrRateLimited: rate.ErrRateLimited,
		ReplayTracker:  e.replayTracker,
		ReplayWindow:   e.config.Security.ReplayWindow,
		Device:         deviceFromContext,
		Warn:           e.warn,
	}
	if e.rateLimiter != nil {
		refresh.RateLimiter = e.rateLimiter
	}
	if e.claimsResolver != nil {
		resolver := e.claimsResolver
		refresh.ResolveClaims = func(ctx context.Context, userID string) (string, map[string]string, error) {
			return resolver(ctx, userID)
		}
	}

	return flows.Deps{
		Issue:   issue,
		Refresh: refresh,
		Authenticate: flows.AuthenticateDeps{
			VerifyAccess: func(token string) (*jwt.Claims, error) {
				return e.jwtManager.Verify(token, jwt.ClassAccess)
			},
		},
		Logout: flows.LogoutDeps{
			Credentials: credentials,
		},
	}
}

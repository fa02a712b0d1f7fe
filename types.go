package goSession

import (
	"context"
	"io"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/goSession/internal/audit"
	internalmetrics "github.com/MrEthical07/goSession/internal/metrics"
)

// IssueRequest describes a freshly authenticated principal. The external
// login collaborator fills it after checking primary credentials.
type IssueRequest struct {
	UserID string
	Role   string
	// App carries application claims copied into the access token.
	App           map[string]string
	DeviceInfo    string
	ClientAddress string
}

// IssueResult is returned by [Engine.Issue].
type IssueResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
	SessionID    string
}

// TokenPair is returned by [Engine.Refresh].
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// Identity is the request-scoped result of [Engine.Authenticate]. It is
// derived from access-token claims only.
type Identity struct {
	Subject   string
	Role      string
	App       map[string]string
	IssuedAt  time.Time
	ExpiresAt time.Time
	// Claims is the raw registered-claim view for downstream policy checks.
	Claims map[string]any
}

// SessionInfo describes one active credential record. It never exposes the
// digest.
type SessionInfo struct {
	ID            string
	CreatedAt     time.Time
	ExpiresAt     time.Time
	DeviceInfo    string
	ClientAddress string
}

// ClaimsResolver re-derives access-token claims for a subject during
// refresh. Returning an error aborts the refresh after the old record was
// consumed.
type ClaimsResolver func(ctx context.Context, userID string) (role string, app map[string]string, err error)

type AuditEvent = internalaudit.Event

type AuditSink = internalaudit.Sink

type NoOpSink = internalaudit.NoOpSink

type ChannelSink = internalaudit.ChannelSink

type JSONWriterSink = internalaudit.JSONWriterSink

type SlogSink = internalaudit.SlogSink

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	return internalaudit.NewSlogSink(logger)
}

type MetricID = internalmetrics.MetricID

const (
	MetricIssueSuccess             = internalmetrics.MetricIssueSuccess
	MetricIssueFailure             = internalmetrics.MetricIssueFailure
	MetricRefreshSuccess           = internalmetrics.MetricRefreshSuccess
	MetricRefreshFailure           = internalmetrics.MetricRefreshFailure
	MetricRefreshReuseDetected     = internalmetrics.MetricRefreshReuseDetected
	MetricRefreshRateLimited       = internalmetrics.MetricRefreshRateLimited
	MetricReplayThresholdExceeded  = internalmetrics.MetricReplayThresholdExceeded
	MetricConsumeConflict          = internalmetrics.MetricConsumeConflict
	MetricSessionCreated           = internalmetrics.MetricSessionCreated
	MetricSessionRevoked           = internalmetrics.MetricSessionRevoked
	MetricLogout                   = internalmetrics.MetricLogout
	MetricLogoutNoMatch            = internalmetrics.MetricLogoutNoMatch
	MetricLogoutAll                = internalmetrics.MetricLogoutAll
	MetricAuthenticateSuccess      = internalmetrics.MetricAuthenticateSuccess
	MetricAuthenticateFailure      = internalmetrics.MetricAuthenticateFailure
	MetricAuthenticateExpired      = internalmetrics.MetricAuthenticateExpired
	MetricAuthenticateTypeMismatch = internalmetrics.MetricAuthenticateTypeMismatch
	MetricStorageUnavailable       = internalmetrics.MetricStorageUnavailable
	MetricAuthenticateLatency      = internalmetrics.MetricAuthenticateLatency
	MetricRefreshLatency           = internalmetrics.MetricRefreshLatency
)

type Metrics = internalmetrics.Metrics

type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a metrics set from cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:                 cfg.Enabled,
		EnableLatencyHistograms: cfg.EnableLatencyHistograms,
	})
}

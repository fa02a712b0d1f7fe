package sinks

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync/atomic"

	natspkg "github.com/nats-io/nats.go"

	goSession "github.com/MrEthical07/goSession"
)

// DefaultSubjectPrefix is used when NATSConfig.SubjectPrefix is empty.
const DefaultSubjectPrefix = "gosession.audit"

// Publisher is the subset of *nats.Conn the sink needs.
type Publisher interface {
	PublishMsg(msg *natspkg.Msg) error
}

type NATSConfig struct {
	// SubjectPrefix is joined with the event type, e.g.
	// gosession.audit.refresh_reuse_detected.
	SubjectPrefix string
	Logger        *slog.Logger
}

// NATSSink publishes each audit event as a JSON message. The event ID is
// sent as the Nats-Msg-Id header so JetStream can deduplicate redeliveries.
// Publish failures are logged and counted; they never reach the engine.
type NATSSink struct {
	pub    Publisher
	prefix string
	logger *slog.Logger
	failed atomic.Uint64
}

func NewNATSSink(pub Publisher, cfg NATSConfig) *NATSSink {
	prefix := strings.TrimSuffix(cfg.SubjectPrefix, ".")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSSink{pub: pub, prefix: prefix, logger: logger}
}

// Connect dials url and returns a sink over the new connection. The caller
// closes the connection.
func Connect(url string, cfg NATSConfig, opts ...natspkg.Option) (*NATSSink, *natspkg.Conn, error) {
	nc, err := natspkg.Connect(url, opts...)
	if err != nil {
		return nil, nil, err
	}
	return NewNATSSink(nc, cfg), nc, nil
}

func (s *NATSSink) Emit(ctx context.Context, event goSession.AuditEvent) {
	if s == nil || s.pub == nil {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		s.fail(ctx, event, err)
		return
	}

	msg := natspkg.NewMsg(s.Subject(event.EventType))
	msg.Data = data
	if event.ID != "" {
		msg.Header.Set(natspkg.MsgIdHdr, event.ID)
	}
	if err := s.pub.PublishMsg(msg); err != nil {
		s.fail(ctx, event, err)
	}
}

// Subject returns the subject an event type is published on.
func (s *NATSSink) Subject(eventType string) string {
	if eventType == "" {
		eventType = "unknown"
	}
	return s.prefix + "." + eventType
}

// Failed reports how many events could not be published.
func (s *NATSSink) Failed() uint64 {
	if s == nil {
		return 0
	}
	return s.failed.Load()
}

func (s *NATSSink) fail(ctx context.Context, event goSession.AuditEvent, err error) {
	s.failed.Add(1)
	s.logger.WarnContext(ctx, "goSession: audit publish failed",
		"event_type", event.EventType,
		"event_id", event.ID,
		"error", err,
	)
}

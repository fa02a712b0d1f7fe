package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	natspkg "github.com/nats-io/nats.go"

	goSession "github.com/MrEthical07/goSession"
)

type fakePublisher struct {
	mu   sync.Mutex
	msgs []*natspkg.Msg
	err  error
}

func (p *fakePublisher) PublishMsg(msg *natspkg.Msg) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func TestNATSSinkPublishesJSON(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewNATSSink(pub, NATSConfig{SubjectPrefix: "auth.audit."})

	event := goSession.AuditEvent{
		ID:        "evt-1",
		Timestamp: time.Unix(1_700_000_000, 0).UTC(),
		EventType: "refresh_reuse_detected",
		UserID:    "alice",
		Error:     "refresh_reuse",
		Metadata:  map[string]string{"revoked": "2"},
	}
	sink.Emit(context.Background(), event)

	if len(pub.msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(pub.msgs))
	}
	msg := pub.msgs[0]
	if msg.Subject != "auth.audit.refresh_reuse_detected" {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}
	if got := msg.Header.Get(natspkg.MsgIdHdr); got != "evt-1" {
		t.Fatalf("expected msg id header evt-1, got %q", got)
	}

	var decoded goSession.AuditEvent
	if err := json.Unmarshal(msg.Data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.UserID != "alice" || decoded.Metadata["revoked"] != "2" {
		t.Fatalf("unexpected payload %+v", decoded)
	}
}

func TestNATSSinkDefaultsSubject(t *testing.T) {
	sink := NewNATSSink(&fakePublisher{}, NATSConfig{})
	if got := sink.Subject(""); got != "gosession.audit.unknown" {
		t.Fatalf("unexpected subject %q", got)
	}
}

func TestNATSSinkCountsFailures(t *testing.T) {
	var logs bytes.Buffer
	pub := &fakePublisher{err: errors.New("nats: connection closed")}
	sink := NewNATSSink(pub, NATSConfig{Logger: slog.New(slog.NewTextHandler(&logs, nil))})

	sink.Emit(context.Background(), goSession.AuditEvent{ID: "evt-2", EventType: "logout_all"})
	if sink.Failed() != 1 {
		t.Fatalf("expected one failure, got %d", sink.Failed())
	}
	if !bytes.Contains(logs.Bytes(), []byte("audit publish failed")) {
		t.Fatalf("expected warning log, got %q", logs.String())
	}
}

func TestNATSSinkWithEngine(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewNATSSink(pub, NATSConfig{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})

	engine := newAuditEngine(t, sink)
	if _, err := engine.Issue(context.Background(), goSession.IssueRequest{UserID: "alice"}); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	engine.Close()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.msgs) != 1 || pub.msgs[0].Subject != "gosession.audit.issue_success" {
		t.Fatalf("unexpected messages %+v", pub.msgs)
	}
	if pub.msgs[0].Header.Get(natspkg.MsgIdHdr) == "" {
		t.Fatal("expected dispatcher-assigned event id")
	}
}

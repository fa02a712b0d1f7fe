package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// Dispatcher relays session lifecycle events (issue, refresh, reuse, logout,
// revocation) to a single sink on a background goroutine so the request path
// never waits on sink I/O.
//
// With DropIfFull a full queue drops the event and counts it, except for the
// critical event types given to [NewDispatcher]. Those always wait for queue
// space, bounded by the caller's context, because they are the only record of
// a replayed refresh token.
type Dispatcher struct {
	cfg      Config
	sink     Sink
	critical map[string]struct{}

	queue   chan Event
	stop    chan struct{}
	stopped sync.WaitGroup
	closing atomic.Bool
	once    sync.Once

	dropped   atomic.Uint64
	delivered atomic.Uint64
}

// NewDispatcher starts a dispatcher delivering to sink. It returns nil when
// cfg.Enabled is false; every method is safe on a nil Dispatcher.
func NewDispatcher(cfg Config, sink Sink, critical ...string) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:      cfg,
		sink:     sink,
		critical: make(map[string]struct{}, len(critical)),
		queue:    make(chan Event, cfg.BufferSize),
		stop:     make(chan struct{}),
	}
	for _, eventType := range critical {
		d.critical[eventType] = struct{}{}
	}

	d.stopped.Add(1)
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer d.stopped.Done()

	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		case <-d.stop:
			d.drain()
			return
		}
	}
}

// drain flushes whatever is still queued once Close has been called.
func (d *Dispatcher) drain() {
	for {
		select {
		case event := <-d.queue:
			d.deliver(event)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(event Event) {
	d.sink.Emit(context.Background(), event)
	d.delivered.Add(1)
}

// Emit queues event for the sink. A missing ID or timestamp is filled in
// here so every delivered event can be correlated.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closing.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event.ID == "" {
		event.ID = NewEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if d.cfg.DropIfFull && !d.isCritical(event.EventType) {
		select {
		case d.queue <- event:
		case <-d.stop:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	case <-d.stop:
	}
}

func (d *Dispatcher) isCritical(eventType string) bool {
	_, ok := d.critical[eventType]
	return ok
}

// Close stops accepting events, delivers everything already queued and
// waits for the sink to finish.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		d.closing.Store(true)
		close(d.stop)
		d.stopped.Wait()
	})
}

// Dropped reports events lost to a full queue or a cancelled context.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Delivered reports events handed to the sink.
func (d *Dispatcher) Delivered() uint64 {
	if d == nil {
		return 0
	}
	return d.delivered.Load()
}

// Package publisher provides the fire-and-forget entry point to the audit
// trail. Emission never blocks the caller: events flow through a bounded
// buffer, and when the buffer is full the event is dropped and counted
// rather than applying backpressure to the request path.
package publisher

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	audit "rollcall/pkg/platform/audit"
)

// Publisher fans audit events out to the configured store. In sync mode
// (no buffer) Append runs inline, which unit tests rely on; production
// wiring uses WithAsyncBuffer.
type Publisher struct {
	store  audit.Store
	logger *slog.Logger

	inbox   chan audit.Event
	done    chan struct{}
	wg      sync.WaitGroup
	dropped atomic.Int64

	closeOnce sync.Once
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithAsyncBuffer enables asynchronous emission through a buffer of the
// given capacity.
func WithAsyncBuffer(capacity int) Option {
	return func(p *Publisher) {
		if capacity > 0 {
			p.inbox = make(chan audit.Event, capacity)
		}
	}
}

// WithLogger sets the logger used for drop and persistence warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// NewPublisher constructs a publisher over the given store.
func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, done: make(chan struct{})}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records an audit event. Events without an actor are skipped
// silently: an unauthenticated caller never reaches an audited operation,
// so a missing actor means an internal code path that must not log.
// Emit never returns a persistence error to the caller; audit is
// best-effort by contract.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.StaffID.IsNil() {
		return nil
	}

	if p.inbox == nil {
		if err := p.store.Append(ctx, event); err != nil {
			p.warn(ctx, "audit append failed", "action", string(event.Action), "error", err)
		}
		return nil
	}

	select {
	case p.inbox <- event:
	default:
		p.dropped.Add(1)
		p.warn(ctx, "audit buffer full, event dropped",
			"action", string(event.Action),
			"dropped_total", p.dropped.Load(),
		)
	}
	return nil
}

// Dropped returns how many events were discarded due to a full buffer.
func (p *Publisher) Dropped() int64 {
	return p.dropped.Load()
}

// Close stops the background drain after flushing buffered events.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		close(p.done)
		if p.inbox != nil {
			p.wg.Wait()
		}
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	ctx := context.Background()
	for {
		select {
		case event := <-p.inbox:
			p.append(ctx, event)
		case <-p.done:
			// Flush whatever is buffered before exiting.
			for {
				select {
				case event := <-p.inbox:
					p.append(ctx, event)
				default:
					return
				}
			}
		}
	}
}

func (p *Publisher) append(ctx context.Context, event audit.Event) {
	if err := p.store.Append(ctx, event); err != nil {
		p.warn(ctx, "audit append failed", "action", string(event.Action), "error", err)
	}
}

func (p *Publisher) warn(ctx context.Context, msg string, args ...any) {
	if p.logger != nil {
		p.logger.WarnContext(ctx, msg, args...)
	}
}

// Package publisher emits audit events either synchronously or through a
// bounded in-process buffer drained by a background goroutine.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	id "shebacred/pkg/domain"
	audit "shebacred/pkg/platform/audit"
)

// ErrBufferFull is returned by Emit in async mode when the buffer is saturated.
var ErrBufferFull = errors.New("audit buffer full")

// Publisher writes audit events to a Store.
type Publisher struct {
	store  audit.Store
	logger *slog.Logger

	buffer chan audit.Event
	wg     sync.WaitGroup
	once   sync.Once
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithAsyncBuffer switches the publisher to async mode with a buffer of size n.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.buffer = make(chan audit.Event, n)
		}
	}
}

// WithLogger sets a logger for background persistence failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// NewPublisher builds a publisher over store. Without WithAsyncBuffer every
// Emit writes synchronously.
func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records an event. A zero timestamp is set to now and the category is
// derived from the action.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.Category = audit.AuditEvent(event.Action).Category()

	if p.buffer == nil {
		return p.store.Append(ctx, event)
	}

	select {
	case p.buffer <- event:
		return nil
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return ErrBufferFull
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.buffer {
		if err := p.store.Append(context.Background(), event); err != nil && p.logger != nil {
			p.logger.Error("failed to persist audit event",
				"action", event.Action,
				"subject", event.Subject,
				"error", err,
			)
		}
	}
}

// List returns a principal's events when the store supports reads.
func (p *Publisher) List(ctx context.Context, principal id.PrincipalID) ([]audit.Event, error) {
	lister, ok := p.store.(audit.Lister)
	if !ok {
		return nil, errors.New("audit store does not support listing")
	}
	return lister.ListByPrincipal(ctx, principal)
}

// Close drains buffered events. It is safe to call more than once.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.buffer != nil {
			close(p.buffer)
			p.wg.Wait()
		}
	})
}

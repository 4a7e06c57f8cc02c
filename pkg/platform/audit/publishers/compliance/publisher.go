// Package compliance provides a fail-closed audit publisher.
//
// Registry mutations and confirmed document links must leave a trail: Emit
// writes synchronously and returns an error when persistence fails, and the
// calling operation must fail with it.
package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	audit "shebacred/pkg/platform/audit"
)

// Publisher emits compliance events with fail-closed semantics.
type Publisher struct {
	store  audit.Store
	logger *slog.Logger
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// New creates a compliance publisher.
func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit synchronously writes a compliance event. The caller MUST fail its
// operation when an error is returned.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Action == "" {
		return fmt.Errorf("compliance event requires Action")
	}
	if event.Subject == "" {
		return fmt.Errorf("compliance event requires Subject")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.Category = audit.CategoryCompliance

	if err := p.store.Append(ctx, event); err != nil {
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "CRITICAL: compliance audit failed",
				"action", event.Action,
				"subject", event.Subject,
				"error", err,
			)
		}
		return fmt.Errorf("compliance audit persistence failed: %w", err)
	}
	return nil
}

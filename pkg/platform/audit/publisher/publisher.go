// Package publisher validates, enriches and synchronously persists audit
// events. Emit blocks until the store accepts the event and returns the
// store's error otherwise; whether that fails the calling operation is the
// caller's decision.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	audit "kuruma/pkg/platform/audit"
	"kuruma/pkg/requestcontext"
)

// Publisher writes audit events to a single store.
type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// New creates a publisher backed by store.
func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit validates, enriches and synchronously persists an event.
// Category is always derived from the action; Timestamp and RequestID are
// filled from the request context when empty.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	start := time.Now()

	if event.AccountID.IsNil() {
		return fmt.Errorf("audit event requires AccountID")
	}
	if event.Action == "" {
		return fmt.Errorf("audit event requires Action")
	}

	event.Category = audit.AuditEvent(event.Action).Category()
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}

	if err := p.store.Append(ctx, event); err != nil {
		p.metrics.IncPersistFailures()
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "audit persistence failed",
				"action", event.Action,
				"account_id", event.AccountID,
				"error", err,
			)
		}
		return fmt.Errorf("audit persistence failed: %w", err)
	}

	p.metrics.ObservePersistDuration(time.Since(start))
	p.metrics.IncEventsEmitted(string(event.Category))
	return nil
}

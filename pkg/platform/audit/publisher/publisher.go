// Package publisher stamps, logs and stores audit events.
package publisher

import (
	"context"
	"io"
	"log/slog"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	audit "tfc/pkg/platform/audit"
	"tfc/pkg/requestcontext"
)

// Publisher fills in id, timestamp, category and request metadata, writes a
// structured log line and appends the event to the store.
type Publisher struct {
	store  audit.Store
	logger *slog.Logger

	entropyMu sync.Mutex
	entropy   io.Reader
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets the logger used for the audit trail.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// NewPublisher creates a publisher writing to store.
func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:   store,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		entropy: ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit records event. Store failures are logged and returned; callers on the
// login path treat them as non-fatal.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.ID == "" {
		event.ID = p.newID(event.Timestamp)
	}
	event.Category = event.Action.Category()
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.IP == "" {
		event.IP = requestcontext.ClientIP(ctx)
	}

	level := slog.LevelInfo
	if event.Category == audit.CategorySecurity {
		level = slog.LevelWarn
	}
	p.logger.Log(ctx, level, "audit",
		"audit_id", event.ID,
		"category", string(event.Category),
		"action", string(event.Action),
		"user_id", event.UserID,
		"telegram_id", event.TelegramID,
		"role", event.Role,
		"flow", event.Flow,
		"reason", event.Reason,
		"ip", event.IP,
		"device", event.Device,
		"request_id", event.RequestID,
	)

	if err := p.store.Append(ctx, event); err != nil {
		p.logger.ErrorContext(ctx, "audit store append failed",
			"action", string(event.Action),
			"error", err,
			"request_id", event.RequestID,
		)
		return err
	}
	return nil
}

// Recent returns the newest events first.
func (p *Publisher) Recent(ctx context.Context, limit int) ([]audit.Event, error) {
	return p.store.Recent(ctx, limit)
}

func (p *Publisher) newID(t time.Time) string {
	p.entropyMu.Lock()
	defer p.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), p.entropy).String()
}

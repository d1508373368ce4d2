package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"tfc/internal/platform/metrics"
	"tfc/pkg/platform/audit"
	"tfc/pkg/platform/httputil"
	"tfc/pkg/requestcontext"
)

// ReasonRateLimited is the envelope reason for 429 responses.
const ReasonRateLimited = "rate_limited"

// RateLimiter decides whether a client IP may proceed.
type RateLimiter interface {
	Check(ctx context.Context, ip string) (*Result, error)
}

// AuditPublisher records rejected requests.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Middleware struct {
	limiter  RateLimiter
	logger   *slog.Logger
	metrics  *metrics.Metrics
	auditor  AuditPublisher
	disabled bool
}

type Option func(*Middleware)

// WithDisabled disables rate limiting entirely.
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func WithMetrics(mtr *metrics.Metrics) Option {
	return func(m *Middleware) { m.metrics = mtr }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(m *Middleware) { m.auditor = p }
}

func New(limiter RateLimiter, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		limiter: limiter,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// RateLimit limits requests per client IP. It must run after the client
// metadata middleware. Limiter errors fail open.
func (m *Middleware) RateLimit() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)

			result, err := m.limiter.Check(ctx, ip)
			if err != nil {
				m.logger.ErrorContext(ctx, "failed to check IP rate limit", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))

			if !result.Allowed {
				m.reject(ctx, w, r, result)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m *Middleware) reject(ctx context.Context, w http.ResponseWriter, r *http.Request, result *Result) {
	m.logger.WarnContext(ctx, "login rate limit exceeded",
		"path", r.URL.Path,
		"request_id", requestcontext.RequestID(ctx),
	)
	if m.metrics != nil {
		m.metrics.IncrementRateLimited()
	}
	if m.auditor != nil {
		_ = m.auditor.Emit(ctx, audit.Event{Action: audit.EventRateLimitExceeded, Reason: ReasonRateLimited})
	}
	retry := int(result.RetryAfter.Round(time.Second) / time.Second)
	if retry < 1 {
		retry = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	httputil.WriteReason(w, http.StatusTooManyRequests, ReasonRateLimited)
}

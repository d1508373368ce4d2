package middleware

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Result is the outcome of one limiter check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// IPLimiter is an in-process token bucket per client IP. Idle buckets are
// evicted lazily on access, so no background goroutine is needed.
type IPLimiter struct {
	mu            sync.Mutex
	buckets       map[string]*bucket
	limit         rate.Limit
	perMinute     int
	burst         int
	idleTTL       time.Duration
	sweepInterval time.Duration
	lastSweep     time.Time
	now           func() time.Time
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// LimiterOption configures an IPLimiter.
type LimiterOption func(*IPLimiter)

// WithLimiterClock pins the limiter's clock for tests.
func WithLimiterClock(now func() time.Time) LimiterOption {
	return func(l *IPLimiter) { l.now = now }
}

// WithIdleTTL sets how long an unused bucket survives.
func WithIdleTTL(ttl time.Duration) LimiterOption {
	return func(l *IPLimiter) {
		if ttl > 0 {
			l.idleTTL = ttl
		}
	}
}

// NewIPLimiter allows perMinute requests per IP with the given burst.
func NewIPLimiter(perMinute, burst int, opts ...LimiterOption) *IPLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	if burst <= 0 {
		burst = 1
	}
	l := &IPLimiter{
		buckets:       make(map[string]*bucket),
		limit:         rate.Limit(float64(perMinute) / 60),
		perMinute:     perMinute,
		burst:         burst,
		idleTTL:       10 * time.Minute,
		sweepInterval: time.Minute,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check consumes one token for ip.
func (l *IPLimiter) Check(_ context.Context, ip string) (*Result, error) {
	if ip == "" {
		ip = "unknown"
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweepLocked(now)
	b, ok := l.buckets[ip]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[ip] = b
	}
	b.lastSeen = now

	res := &Result{Limit: l.perMinute}
	if b.lim.AllowN(now, 1) {
		res.Allowed = true
		res.Remaining = int(math.Max(0, math.Floor(b.lim.TokensAt(now))))
		return res, nil
	}
	r := b.lim.ReserveN(now, 1)
	res.RetryAfter = r.DelayFrom(now)
	r.CancelAt(now)
	return res, nil
}

// Len returns the number of tracked IPs.
func (l *IPLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *IPLimiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < l.sweepInterval {
		return
	}
	l.lastSweep = now
	for ip, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.idleTTL {
			delete(l.buckets, ip)
		}
	}
}

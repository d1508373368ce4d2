// Package requesttime pins a single "now" for the lifetime of a request so that
// freshness checks, token issue times and audit timestamps agree.
package requesttime

import (
	"net/http"
	"time"

	"tfc/pkg/requestcontext"
)

// Middleware captures time.Now at the start of each request.
func Middleware(next http.Handler) http.Handler {
	return WithClock(time.Now)(next)
}

// WithClock is Middleware with an injectable clock.
func WithClock(now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTime(r.Context(), now())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

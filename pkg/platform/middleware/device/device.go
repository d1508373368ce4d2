// Package device attaches a human-readable device label to the request context.
package device

import (
	"context"
	"net/http"
)

type contextKeyDeviceLabel struct{}

// GetDeviceLabel returns the label set by Middleware, or "".
func GetDeviceLabel(ctx context.Context) string {
	if label, ok := ctx.Value(contextKeyDeviceLabel{}).(string); ok {
		return label
	}
	return ""
}

// WithDeviceLabel injects a device label into a context.
// Useful for service unit tests that don't run the full HTTP middleware chain.
func WithDeviceLabel(ctx context.Context, label string) context.Context {
	return context.WithValue(ctx, contextKeyDeviceLabel{}, label)
}

// Middleware labels each request using parse on its User-Agent header.
func Middleware(parse func(userAgent string) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithDeviceLabel(r.Context(), parse(r.UserAgent()))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

package testutil

import (
	"context"
	"net/http"

	authmw "tfc/pkg/platform/middleware/auth"
)

// WithClaims adds session claims to the request context.
// This simulates what the session middleware does for authenticated requests.
func WithClaims(req *http.Request, claims *authmw.SessionClaims) *http.Request {
	return req.WithContext(authmw.WithClaims(req.Context(), claims))
}

// WithSession builds minimal claims for userID, role and Telegram id.
func WithSession(req *http.Request, userID, role, telegramID string) *http.Request {
	return WithClaims(req, &authmw.SessionClaims{
		UserID:     userID,
		Role:       role,
		TelegramID: telegramID,
	})
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}

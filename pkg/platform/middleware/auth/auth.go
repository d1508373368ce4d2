package auth

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"tfc/pkg/platform/httputil"
	request "tfc/pkg/platform/middleware/request"
	"tfc/pkg/requestcontext"
)

const (
	// CookieName carries the session token.
	CookieName = "tfc_session"
	// CookieMaxAge matches the session token lifetime.
	CookieMaxAge = 30 * 24 * time.Hour

	ReasonNoSession  = "no_session"
	ReasonBadSession = "bad_session"
)

// SessionValidator validates a raw session token.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (*SessionClaims, error)
}

// SessionClaims is the guard's view of a validated session.
type SessionClaims struct {
	UserID     string    `json:"user_id"`
	Role       string    `json:"role"`
	TelegramID string    `json:"telegram_id"`
	Username   string    `json:"username,omitempty"`
	FirstName  string    `json:"first_name,omitempty"`
	LastName   string    `json:"last_name,omitempty"`
	PhotoURL   string    `json:"photo_url,omitempty"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type contextKeyClaims struct{}

// ContextKeyClaims is exported for tests that build contexts by hand.
var ContextKeyClaims = contextKeyClaims{}

// GetClaims returns the validated session, or nil when the request is unauthenticated.
func GetClaims(ctx context.Context) *SessionClaims {
	claims, _ := ctx.Value(ContextKeyClaims).(*SessionClaims)
	return claims
}

// WithClaims stores claims in ctx and mirrors the subject into requestcontext.
func WithClaims(ctx context.Context, claims *SessionClaims) context.Context {
	ctx = context.WithValue(ctx, ContextKeyClaims, claims)
	userID, _ := uuid.Parse(claims.UserID)
	telegramID, _ := strconv.ParseInt(claims.TelegramID, 10, 64)
	return requestcontext.WithSession(ctx, userID, claims.Role, telegramID)
}

// Options controls cookie security and where browsers are sent.
type Options struct {
	Secure      bool
	LoginPath   string
	MiniAppPath string
	// OnReject, if set, observes every rejection reason (metrics).
	OnReject func(reason string)
}

func (o Options) withDefaults() Options {
	if o.LoginPath == "" {
		o.LoginPath = "/login"
	}
	if o.MiniAppPath == "" {
		o.MiniAppPath = "/tma"
	}
	return o
}

// SetSessionCookie writes the session cookie.
func SetSessionCookie(w http.ResponseWriter, token string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(CookieMaxAge / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie immediately.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// IsAPIRequest reports whether the path expects JSON rather than a redirect.
func IsAPIRequest(r *http.Request) bool {
	return r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/")
}

// RequireSession rejects requests without a valid session cookie. Browsers are
// redirected to a login surface; API callers get a JSON 401. An invalid
// cookie is also cleared so the client stops sending it.
func RequireSession(validator SessionValidator, logger *slog.Logger, opts Options) func(http.Handler) http.Handler {
	opts = opts.withDefaults()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := request.GetRequestID(ctx)

			cookie, err := r.Cookie(CookieName)
			if err != nil || cookie.Value == "" {
				logger.InfoContext(ctx, "unauthenticated request - no session",
					"path", r.URL.Path,
					"request_id", requestID,
				)
				unauthenticated(w, r, opts, ReasonNoSession)
				return
			}

			claims, err := validator.ValidateSession(ctx, cookie.Value)
			if err != nil {
				logger.WarnContext(ctx, "unauthenticated request - invalid session",
					"error", err,
					"path", r.URL.Path,
					"request_id", requestID,
				)
				ClearSessionCookie(w, opts.Secure)
				unauthenticated(w, r, opts, ReasonBadSession)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(ctx, claims)))
		})
	}
}

func unauthenticated(w http.ResponseWriter, r *http.Request, opts Options, reason string) {
	if opts.OnReject != nil {
		opts.OnReject(reason)
	}
	if IsAPIRequest(r) {
		httputil.WriteReason(w, http.StatusUnauthorized, reason)
		return
	}
	target := opts.LoginPath
	if r.URL.Path == opts.MiniAppPath || strings.HasPrefix(r.URL.Path, opts.MiniAppPath+"/") {
		target = opts.MiniAppPath
	}
	http.Redirect(w, r, target+"?e="+url.QueryEscape(reason), http.StatusFound)
}

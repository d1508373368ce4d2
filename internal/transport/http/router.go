// Package httptransport assembles the chi router: middleware chain, public
// login endpoints and session-guarded groups.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tfc/internal/auth/device"
	"tfc/internal/auth/handler"
	"tfc/internal/auth/models"
	"tfc/internal/platform/metrics"
	ratelimit "tfc/internal/ratelimit/middleware"
	dErrors "tfc/pkg/domain-errors"
	"tfc/pkg/platform/httputil"
	"tfc/pkg/platform/middleware/admin"
	authmw "tfc/pkg/platform/middleware/auth"
	devicemw "tfc/pkg/platform/middleware/device"
	"tfc/pkg/platform/middleware/metadata"
	request "tfc/pkg/platform/middleware/request"
	"tfc/pkg/platform/middleware/requesttime"
)

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Dependencies is everything the router wires together.
type Dependencies struct {
	Logger    *slog.Logger
	Auth      *handler.Handler
	Sessions  authmw.SessionValidator // nil when SESSION_SECRET is missing
	RateLimit *ratelimit.Middleware
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer
	Secure    bool
	Health    map[string]HealthCheck

	// TrustedProxies are the peers whose X-Forwarded-For / X-Real-IP
	// headers are believed when resolving the client IP.
	TrustedProxies []netip.Prefix
}

// NewRouter builds the full HTTP surface.
func NewRouter(d Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata(d.TrustedProxies))
	r.Use(devicemw.Middleware(device.ParseUserAgent))
	r.Use(request.Logger(d.Logger))

	r.Get("/healthz", healthHandler(d.Health))
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	// Entry surfaces the guard redirects to; they echo the rejection reason.
	r.Get("/login", entryPage("login"))
	r.Get("/tma", entryPage("tma"))

	r.Group(func(r chi.Router) {
		if d.RateLimit != nil {
			r.Use(d.RateLimit.RateLimit())
		}
		d.Auth.RegisterPublic(r)
	})

	sessions := d.Sessions
	if sessions == nil {
		sessions = unconfiguredSessions{}
	}
	guardOpts := authmw.Options{Secure: d.Secure}
	if d.Metrics != nil {
		guardOpts.OnReject = d.Metrics.IncrementSessionRejected
	}

	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireSession(sessions, d.Logger, guardOpts))
		d.Auth.RegisterSession(r)
		r.Get("/me", landingPage)
		r.Get("/tma/*", landingPage)

		r.Group(func(r chi.Router) {
			r.Use(admin.RequireRole(string(models.RoleAdmin), d.Logger))
			d.Auth.RegisterAdmin(r)
			r.Get("/admin", landingPage)
			r.Get("/admin/*", landingPage)
		})
	})

	return r
}

type landingResponse struct {
	OK      bool                  `json:"ok"`
	Path    string                `json:"path"`
	Session *authmw.SessionClaims `json:"session"`
}

// landingPage stands in for the UI behind the guard.
func landingPage(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, landingResponse{
		OK:      true,
		Path:    r.URL.Path,
		Session: authmw.GetClaims(r.Context()),
	})
}

type entryResponse struct {
	OK    bool   `json:"ok"`
	Page  string `json:"page"`
	Error string `json:"error,omitempty"`
}

func entryPage(page string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, entryResponse{OK: true, Page: page, Error: r.URL.Query().Get("e")})
	}
}

type healthResponse struct {
	OK     bool              `json:"ok"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{OK: true}
		if len(checks) > 0 {
			resp.Checks = make(map[string]string, len(checks))
		}
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				resp.OK = false
				resp.Checks[name] = "down"
				continue
			}
			resp.Checks[name] = "up"
		}
		status := http.StatusOK
		if !resp.OK {
			status = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, status, resp)
	}
}

// unconfiguredSessions rejects every cookie when no session secret is set,
// so the guard clears it and sends the client back to login.
type unconfiguredSessions struct{}

func (unconfiguredSessions) ValidateSession(context.Context, string) (*authmw.SessionClaims, error) {
	return nil, dErrors.New(dErrors.CodeMisconfigured, "missing SESSION_SECRET")
}

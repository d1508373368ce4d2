package test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tfc/internal/auth/handler"
	"tfc/internal/auth/service"
	userStore "tfc/internal/auth/store/user"
	httptransport "tfc/internal/transport/http"
	"tfc/pkg/platform/audit/publisher"
	auditmemory "tfc/pkg/platform/audit/store/memory"
	"tfc/pkg/testutil"
)

// TestRouterScaffold checks every route is mounted on an unconfigured server
// and that the missing secrets surface per request instead of at startup.
func TestRouterScaffold(t *testing.T) {
	testutil.Given(t, "a router with no bot token or session secret", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		auditLog := publisher.NewPublisher(auditmemory.NewRingStore(10), publisher.WithLogger(logger))
		svc := service.New(userStore.New(), nil, nil, service.Config{}, service.WithLogger(logger))
		router := httptransport.NewRouter(httptransport.Dependencies{
			Logger: logger,
			Auth:   handler.New(svc, auditLog, logger, handler.Options{}),
		})

		cases := []struct {
			method string
			path   string
			body   string
			want   int
		}{
			{http.MethodGet, "/healthz", "", http.StatusOK},
			{http.MethodGet, "/login", "", http.StatusOK},
			{http.MethodGet, "/tma", "", http.StatusOK},
			{http.MethodGet, "/api/tg/login?id=1&auth_date=1&hash=00", "", http.StatusInternalServerError},
			{http.MethodGet, "/api/auth/telegram?id=1&auth_date=1&hash=00", "", http.StatusInternalServerError},
			{http.MethodPost, "/api/tma/session", `{"initData":"auth_date=1&hash=00"}`, http.StatusInternalServerError},
			{http.MethodGet, "/api/auth/logout", "", http.StatusFound},
			{http.MethodGet, "/api/me", "", http.StatusUnauthorized},
			{http.MethodGet, "/api/admin/audit", "", http.StatusUnauthorized},
			{http.MethodGet, "/me", "", http.StatusFound},
			{http.MethodGet, "/tma/home", "", http.StatusFound},
			{http.MethodGet, "/admin", "", http.StatusFound},
			{http.MethodGet, "/does-not-exist", "", http.StatusNotFound},
		}

		for _, tc := range cases {
			testutil.When(t, "calling "+tc.method+" "+tc.path, func(t *testing.T) {
				var body io.Reader
				if tc.body != "" {
					body = strings.NewReader(tc.body)
				}
				req := httptest.NewRequest(tc.method, tc.path, body)
				if tc.body != "" {
					req.Header.Set("Content-Type", "application/json")
				}
				rec := httptest.NewRecorder()

				router.ServeHTTP(rec, req)

				testutil.Then(t, "it should respond with the expected status", func(t *testing.T) {
					if rec.Code != tc.want {
						t.Fatalf("expected status %d, got %d (%s)", tc.want, rec.Code, rec.Body.String())
					}
				})
			})
		}
	})
}

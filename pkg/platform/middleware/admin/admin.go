package admin

import (
	"log/slog"
	"net/http"

	"tfc/pkg/platform/httputil"
	authmw "tfc/pkg/platform/middleware/auth"
	request "tfc/pkg/platform/middleware/request"
)

// ReasonForbidden is reported when the session lacks the required role.
const ReasonForbidden = "forbidden"

// RequireRole admits only sessions whose role equals role. It must run after
// authmw.RequireSession.
func RequireRole(role string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			claims := authmw.GetClaims(ctx)
			if claims == nil || claims.Role != role {
				actual := ""
				if claims != nil {
					actual = claims.Role
				}
				logger.WarnContext(ctx, "role check failed",
					"required_role", role,
					"role", actual,
					"path", r.URL.Path,
					"request_id", request.GetRequestID(ctx),
				)
				if authmw.IsAPIRequest(r) {
					httputil.WriteReason(w, http.StatusForbidden, ReasonForbidden)
					return
				}
				http.Redirect(w, r, "/login?e="+ReasonForbidden, http.StatusFound)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

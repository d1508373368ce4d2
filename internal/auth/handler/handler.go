// Package handler exposes the Telegram login flows over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"tfc/internal/auth/models"
	"tfc/internal/auth/service"
	"tfc/internal/telegram"
	dErrors "tfc/pkg/domain-errors"
	"tfc/pkg/platform/audit"
	"tfc/pkg/platform/httputil"
	authmw "tfc/pkg/platform/middleware/auth"
	request "tfc/pkg/platform/middleware/request"
)

// Landing paths after a successful browser login.
const (
	AdminLanding = "/admin"
	UserLanding  = "/tma/home"
)

const (
	maxInitDataBody   = 64 << 10
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// Service is the login surface the handler needs.
type Service interface {
	LoginWidget(ctx context.Context, payload telegram.Payload) (*service.LoginResult, error)
	LoginMiniApp(ctx context.Context, initData string) (*service.LoginResult, error)
	DevLogin(ctx context.Context) (*service.LoginResult, error)
}

// AuditLog records logouts and serves the admin audit view.
type AuditLog interface {
	Emit(ctx context.Context, event audit.Event) error
	Recent(ctx context.Context, limit int) ([]audit.Event, error)
}

// Options carries environment switches.
type Options struct {
	// SecureCookies is true in production.
	SecureCookies bool
	// DevLogin enables ?dev=true on the widget endpoint.
	DevLogin bool
	// Sessions, when set, identifies the subject of a logout for the audit trail.
	Sessions authmw.SessionValidator
}

// Handler handles login, logout and session introspection endpoints.
type Handler struct {
	logger *slog.Logger
	auth   Service
	audit  AuditLog
	opts   Options
}

// New creates a Handler.
func New(auth Service, auditLog AuditLog, logger *slog.Logger, opts Options) *Handler {
	return &Handler{logger: logger, auth: auth, audit: auditLog, opts: opts}
}

// RegisterPublic mounts the unauthenticated login endpoints.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/api/tg/login", h.HandleWidgetLogin)
	r.Get("/api/auth/telegram", h.HandleWidgetLogin)
	r.Post("/api/tma/session", h.HandleMiniAppSession)
	r.Get("/api/auth/logout", h.HandleLogout)
}

// RegisterSession mounts endpoints that need any valid session.
func (h *Handler) RegisterSession(r chi.Router) {
	r.Get("/api/me", h.HandleMe)
}

// RegisterAdmin mounts admin-only endpoints.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/api/admin/audit", h.HandleAudit)
}

// HandleWidgetLogin verifies the Login Widget redirect and sets the session cookie.
func (h *Handler) HandleWidgetLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	var (
		res *service.LoginResult
		err error
	)
	if h.opts.DevLogin && query.Get("dev") == "true" {
		res, err = h.auth.DevLogin(ctx)
	} else {
		// Only Telegram's widget fields take part in the hash.
		res, err = h.auth.LoginWidget(ctx, telegram.PayloadFromQuery(query))
	}
	if err != nil {
		h.fail(ctx, w, err)
		return
	}

	authmw.SetSessionCookie(w, res.Token, h.opts.SecureCookies)
	http.Redirect(w, r, landing(res.User.Role), http.StatusFound)
}

type miniAppRequest struct {
	InitData string `json:"initData"`
}

type miniAppResponse struct {
	OK        bool   `json:"ok"`
	Role      string `json:"role"`
	AppUserID string `json:"appUserId"`
}

// HandleMiniAppSession exchanges Mini-App initData for a session cookie.
func (h *Handler) HandleMiniAppSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req miniAppRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxInitDataBody)).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid mini app session request",
			"request_id", request.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	res, err := h.auth.LoginMiniApp(ctx, req.InitData)
	if err != nil {
		h.fail(ctx, w, err)
		return
	}

	authmw.SetSessionCookie(w, res.Token, h.opts.SecureCookies)
	httputil.WriteJSON(w, http.StatusOK, miniAppResponse{
		OK:        true,
		Role:      string(res.User.Role),
		AppUserID: appUserID(res),
	})
}

// HandleLogout clears the session cookie. Sessions are stateless, so there is
// nothing to revoke server side.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	event := audit.Event{Action: audit.EventLogout}
	if claims := h.logoutSubject(r); claims != nil {
		event.UserID = claims.UserID
		event.Role = claims.Role
		if id, err := strconv.ParseInt(claims.TelegramID, 10, 64); err == nil {
			event.TelegramID = id
		}
	}
	authmw.ClearSessionCookie(w, h.opts.SecureCookies)
	if h.audit != nil {
		_ = h.audit.Emit(ctx, event)
	}
	http.Redirect(w, r, "/login", http.StatusFound)
}

// logoutSubject returns the claims of a still-valid session cookie, or nil.
func (h *Handler) logoutSubject(r *http.Request) *authmw.SessionClaims {
	if h.opts.Sessions == nil {
		return nil
	}
	cookie, err := r.Cookie(authmw.CookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	claims, err := h.opts.Sessions.ValidateSession(r.Context(), cookie.Value)
	if err != nil {
		return nil
	}
	return claims
}

type meResponse struct {
	OK      bool                  `json:"ok"`
	Session *authmw.SessionClaims `json:"session"`
}

// HandleMe returns the current session claims.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	claims := authmw.GetClaims(r.Context())
	if claims == nil {
		h.logger.ErrorContext(r.Context(), "claims missing from context despite session middleware",
			"request_id", request.GetRequestID(r.Context()),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, meResponse{OK: true, Session: claims})
}

type auditResponse struct {
	OK     bool          `json:"ok"`
	Events []audit.Event `json:"events"`
}

// HandleAudit lists recent login events, newest first.
func (h *Handler) HandleAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := defaultAuditLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid limit"))
			return
		}
		limit = min(n, maxAuditLimit)
	}

	events, err := h.audit.Recent(ctx, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to read audit events",
			"request_id", request.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read audit events"))
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	httputil.WriteJSON(w, http.StatusOK, auditResponse{OK: true, Events: events})
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, err error) {
	if !dErrors.HasCode(err, dErrors.CodeBadRequest) && !dErrors.HasCode(err, dErrors.CodeUnauthorized) {
		h.logger.ErrorContext(ctx, "login failed",
			"request_id", request.GetRequestID(ctx),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}

func landing(role models.Role) string {
	if role == models.RoleAdmin {
		return AdminLanding
	}
	return UserLanding
}

func appUserID(res *service.LoginResult) string {
	if res.Flow == service.FlowDev {
		return service.DevUserID
	}
	return res.User.ID.String()
}

// Package service turns a signed Telegram payload into a local user and a
// session token. Transport concerns stay in the handler package.
package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"tfc/internal/auth/device"
	"tfc/internal/auth/models"
	jwttoken "tfc/internal/jwt_token"
	"tfc/internal/platform/metrics"
	"tfc/internal/telegram"
	"tfc/pkg/platform/audit"
	devicemw "tfc/pkg/platform/middleware/device"
	"tfc/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks UserStore,IdentityVerifier,SessionIssuer,AuditPublisher

// UserStore is the persistence contract for local users.
type UserStore interface {
	FindByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	// Update must never lower a stored admin role and leaves the persisted
	// role in user.Role.
	Update(ctx context.Context, user *models.User) error
}

// IdentityVerifier checks Telegram signatures for both login flows.
type IdentityVerifier interface {
	VerifyWidget(ctx context.Context, payload telegram.Payload) (*telegram.Identity, error)
	VerifyInitData(ctx context.Context, initData string) (*telegram.Identity, error)
}

// SessionIssuer signs session tokens.
type SessionIssuer interface {
	Issue(ctx context.Context, sub jwttoken.Subject) (string, time.Time, error)
}

// AuditPublisher records login events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Login flows, used in metrics labels, audit events and spans.
const (
	FlowWidget  = "widget"
	FlowMiniApp = "mini_app"
	FlowDev     = "dev"
)

// Config is the static login policy.
type Config struct {
	AdminTelegramIDs []int64
	// DevLoginEnabled allows DevLogin; main enables it outside production only.
	DevLoginEnabled bool
}

// LoginResult is what a successful login hands back to transport.
type LoginResult struct {
	User      *models.User
	Flow      string
	Token     string
	ExpiresAt time.Time
}

// Service orchestrates verify, reconcile and issue. A nil verifier or issuer
// means the matching secret is not configured.
type Service struct {
	verifier   IdentityVerifier
	issuer     SessionIssuer
	reconciler *Reconciler
	devLogin   bool

	logger  *slog.Logger
	metrics *metrics.Metrics
	auditor AuditPublisher
	tracer  trace.Tracer
}

// Option configures optional collaborators.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) { s.auditor = p }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// New wires a Service. verifier and issuer may be nil; logins then fail
// with a misconfiguration error naming the missing secret.
func New(users UserStore, verifier IdentityVerifier, issuer SessionIssuer, cfg Config, opts ...Option) *Service {
	s := &Service{
		verifier: verifier,
		issuer:   issuer,
		devLogin: cfg.DevLoginEnabled,
		logger:   slog.Default(),
		tracer:   otel.Tracer("tfc/internal/auth/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.reconciler = NewReconciler(users, cfg.AdminTelegramIDs,
		WithReconcileLogger(s.logger),
		WithChangeHook(s.onUserChange),
	)
	return s
}

// Reconciler exposes the identity reconciler, e.g. for startup promotion.
func (s *Service) Reconciler() *Reconciler {
	return s.reconciler
}

func (s *Service) onUserChange(ctx context.Context, change Change, user models.User) {
	action := audit.EventUserCreated
	if change == ChangePromoted {
		action = audit.EventRolePromoted
	}
	if s.metrics != nil {
		switch change {
		case ChangeCreated:
			s.metrics.IncrementUsersCreated()
		case ChangePromoted:
			s.metrics.AddRolePromotions(1)
		}
	}
	s.emit(ctx, audit.Event{
		Action:     action,
		UserID:     user.ID.String(),
		TelegramID: user.TelegramID,
		Role:       string(user.Role),
	})
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if event.Device == "" {
		event.Device = devicemw.GetDeviceLabel(ctx)
	}
	if event.Device == "" {
		event.Device = device.ParseUserAgent(requestcontext.UserAgent(ctx))
	}
	// Emit already logs store failures; a broken audit store never blocks login.
	_ = s.auditor.Emit(ctx, event)
}

package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"tfc/internal/auth/models"
	jwttoken "tfc/internal/jwt_token"
	"tfc/internal/telegram"
	dErrors "tfc/pkg/domain-errors"
	"tfc/pkg/platform/audit"
)

// Dev session identity. The id is Telegram's service account, never a real user.
const (
	DevUserID     = "dev-admin-id"
	DevTelegramID = int64(777000)
)

// Configuration failures name the missing variable.
const (
	ReasonMissingBotToken      = "missing TELEGRAM_BOT_TOKEN"
	ReasonMissingSessionSecret = "missing SESSION_SECRET"
	ReasonMissingInitData      = "missing_init_data"
	ReasonDevLoginDisabled     = "dev_login_disabled"
	ReasonInvalidPayload       = "invalid_telegram_payload"
)

// LoginWidget verifies a Login Widget payload and issues a session.
func (s *Service) LoginWidget(ctx context.Context, payload telegram.Payload) (*LoginResult, error) {
	return s.login(ctx, FlowWidget, func(ctx context.Context) (*telegram.Identity, error) {
		return s.verifier.VerifyWidget(ctx, payload)
	})
}

// LoginMiniApp verifies Mini-App initData and issues a session.
func (s *Service) LoginMiniApp(ctx context.Context, initData string) (*LoginResult, error) {
	if initData == "" {
		s.recordFailure(ctx, FlowMiniApp, ReasonMissingInitData)
		return nil, dErrors.New(dErrors.CodeBadRequest, ReasonMissingInitData)
	}
	return s.login(ctx, FlowMiniApp, func(ctx context.Context) (*telegram.Identity, error) {
		return s.verifier.VerifyInitData(ctx, initData)
	})
}

// DevLogin issues an admin session without Telegram. Only wired outside production.
func (s *Service) DevLogin(ctx context.Context) (*LoginResult, error) {
	if !s.devLogin {
		return nil, dErrors.New(dErrors.CodeForbidden, ReasonDevLoginDisabled)
	}
	if s.issuer == nil {
		return nil, s.misconfigured(ctx, FlowDev, ReasonMissingSessionSecret)
	}

	user := &models.User{
		TelegramID:       DevTelegramID,
		TelegramUsername: "dev_admin",
		FullName:         "Dev Admin",
		Role:             models.RoleAdmin,
	}
	token, expiresAt, err := s.issuer.Issue(ctx, jwttoken.Subject{
		UserID: DevUserID,
		Role:   string(models.RoleAdmin),
		Telegram: jwttoken.TelegramClaims{
			ID:        strconv.FormatInt(DevTelegramID, 10),
			Username:  "dev_admin",
			FirstName: "Dev",
			LastName:  "Admin",
		},
	})
	if err != nil {
		return nil, err
	}
	s.logger.WarnContext(ctx, "dev login issued admin session")
	s.emit(ctx, audit.Event{
		Action:     audit.EventDevLogin,
		UserID:     DevUserID,
		TelegramID: DevTelegramID,
		Role:       string(models.RoleAdmin),
		Flow:       FlowDev,
	})
	return &LoginResult{User: user, Flow: FlowDev, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *Service) login(ctx context.Context, flow string, verify func(context.Context) (*telegram.Identity, error)) (*LoginResult, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "auth.login")
	defer span.End()
	span.SetAttributes(attribute.String("tfc.flow", flow))
	if s.metrics != nil {
		defer s.metrics.ObserveLogin(flow, start)
	}

	if s.verifier == nil {
		err := s.misconfigured(ctx, flow, ReasonMissingBotToken)
		span.SetStatus(codes.Error, ReasonMissingBotToken)
		return nil, err
	}
	if s.issuer == nil {
		err := s.misconfigured(ctx, flow, ReasonMissingSessionSecret)
		span.SetStatus(codes.Error, ReasonMissingSessionSecret)
		return nil, err
	}

	identity, err := verify(ctx)
	if err != nil {
		reason := string(telegram.KindOf(err))
		if reason == "" {
			reason = ReasonInvalidPayload
		}
		s.recordFailure(ctx, flow, reason)
		span.SetStatus(codes.Error, reason)
		return nil, verifyError(err)
	}
	span.SetAttributes(attribute.Int64("tfc.telegram_id", identity.ID))

	user, err := s.reconciler.Reconcile(ctx, identity)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reconcile failed")
		s.emit(ctx, audit.Event{
			Action:     audit.EventLoginFailed,
			TelegramID: identity.ID,
			Flow:       flow,
			Reason:     "reconcile_failed",
		})
		return nil, err
	}

	token, expiresAt, err := s.issuer.Issue(ctx, jwttoken.Subject{
		UserID: user.ID.String(),
		Role:   string(user.Role),
		Telegram: jwttoken.TelegramClaims{
			ID:        strconv.FormatInt(identity.ID, 10),
			Username:  identity.Username,
			FirstName: identity.FirstName,
			LastName:  identity.LastName,
			PhotoURL:  identity.PhotoURL,
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "issue failed")
		s.logger.ErrorContext(ctx, "session issue failed", "user_id", user.ID.String(), "error", err)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementLogin(flow, string(user.Role))
	}
	s.logger.InfoContext(ctx, "login succeeded",
		"flow", flow,
		"user_id", user.ID.String(),
		"telegram_id", user.TelegramID,
		"role", string(user.Role),
	)
	s.emit(ctx, audit.Event{
		Action:     audit.EventLoginSucceeded,
		UserID:     user.ID.String(),
		TelegramID: user.TelegramID,
		Role:       string(user.Role),
		Flow:       flow,
	})
	return &LoginResult{User: user, Flow: flow, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *Service) misconfigured(ctx context.Context, flow, reason string) error {
	s.logger.ErrorContext(ctx, "login unavailable: server misconfigured", "flow", flow, "reason", reason)
	return dErrors.New(dErrors.CodeMisconfigured, reason)
}

// recordFailure logs the rejection reason only, never the payload or hash.
func (s *Service) recordFailure(ctx context.Context, flow, reason string) {
	if s.metrics != nil {
		s.metrics.IncrementVerifyFailure(flow, reason)
	}
	s.logger.WarnContext(ctx, "telegram login rejected", "flow", flow, "reason", reason)
	s.emit(ctx, audit.Event{
		Action: audit.EventLoginFailed,
		Flow:   flow,
		Reason: reason,
	})
}

// verifyError maps a verification failure to a domain error. Signature and
// freshness failures are 401; structurally broken payloads are 400.
func verifyError(err error) error {
	kind := telegram.KindOf(err)
	switch kind {
	case telegram.KindHashMismatch, telegram.KindExpired, telegram.KindMissingHash:
		return dErrors.Wrap(err, dErrors.CodeUnauthorized, string(kind))
	case telegram.KindMissingAuthDate, telegram.KindMissingID, telegram.KindMalformedUser:
		return dErrors.Wrap(err, dErrors.CodeBadRequest, string(kind))
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return de
	}
	return dErrors.Wrap(err, dErrors.CodeUnauthorized, ReasonInvalidPayload)
}

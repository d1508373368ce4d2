package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/mock/gomock"

	"tfc/internal/auth/models"
	"tfc/internal/auth/service/mocks"
	userStore "tfc/internal/auth/store/user"
	jwttoken "tfc/internal/jwt_token"
	"tfc/internal/platform/metrics"
	"tfc/internal/telegram"
	dErrors "tfc/pkg/domain-errors"
	"tfc/pkg/platform/audit"
	"tfc/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctrl         *gomock.Controller
	ctx          context.Context
	now          time.Time
	store        *userStore.InMemoryUserStore
	mockVerifier *mocks.MockIdentityVerifier
	mockIssuer   *mocks.MockSessionIssuer
	mockAudit    *mocks.MockAuditPublisher
	metrics      *metrics.Metrics
	service      *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.store = userStore.New()
	s.mockVerifier = mocks.NewMockIdentityVerifier(s.ctrl)
	s.mockIssuer = mocks.NewMockSessionIssuer(s.ctrl)
	s.mockAudit = mocks.NewMockAuditPublisher(s.ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.service = s.newService(s.mockVerifier, s.mockIssuer, Config{AdminTelegramIDs: []int64{1001}, DevLoginEnabled: true})
}

func (s *ServiceSuite) newService(v IdentityVerifier, iss SessionIssuer, cfg Config) *Service {
	return New(s.store, v, iss, cfg,
		WithMetrics(s.metrics),
		WithAuditPublisher(s.mockAudit),
		WithTracer(noop.NewTracerProvider().Tracer("test")),
	)
}

func (s *ServiceSuite) expectAudit(actions ...audit.AuditEvent) *[]audit.Event {
	var got []audit.Event
	s.mockAudit.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e audit.Event) error {
		got = append(got, e)
		return nil
	}).Times(len(actions))
	return &got
}

func actionsOf(events []audit.Event) []audit.AuditEvent {
	out := make([]audit.AuditEvent, 0, len(events))
	for _, e := range events {
		out = append(out, e.Action)
	}
	return out
}

func (s *ServiceSuite) TestLoginWidget() {
	payload := telegram.Payload{"id": "42", "hash": "abc"}

	s.Run("new user gets a user session", func() {
		s.mockVerifier.EXPECT().VerifyWidget(gomock.Any(), payload).Return(identity(42), nil)
		s.mockIssuer.EXPECT().Issue(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, sub jwttoken.Subject) (string, time.Time, error) {
				s.Equal(models.UserIDForTelegram(42).String(), sub.UserID)
				s.Equal("user", sub.Role)
				s.Equal("42", sub.Telegram.ID)
				s.Equal("Ann", sub.Telegram.FirstName)
				return "signed", s.now.Add(jwttoken.SessionTTL), nil
			})
		events := s.expectAudit(audit.EventUserCreated, audit.EventLoginSucceeded)

		res, err := s.service.LoginWidget(s.ctx, payload)
		s.Require().NoError(err)
		s.Equal("signed", res.Token)
		s.Equal(FlowWidget, res.Flow)
		s.Equal(models.RoleUser, res.User.Role)
		s.Equal(s.now.Add(jwttoken.SessionTTL), res.ExpiresAt)
		s.Equal([]audit.AuditEvent{audit.EventUserCreated, audit.EventLoginSucceeded}, actionsOf(*events))
		s.Equal(FlowWidget, (*events)[1].Flow)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.LoginsTotal.WithLabelValues(FlowWidget, "user")))
		s.Equal(1.0, testutil.ToFloat64(s.metrics.UsersCreated))
	})

	s.Run("allow-listed user gets an admin session", func() {
		s.mockVerifier.EXPECT().VerifyWidget(gomock.Any(), gomock.Any()).Return(identity(1001), nil)
		s.mockIssuer.EXPECT().Issue(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, sub jwttoken.Subject) (string, time.Time, error) {
				s.Equal("admin", sub.Role)
				return "signed", s.now, nil
			})
		s.expectAudit(audit.EventUserCreated, audit.EventLoginSucceeded)

		res, err := s.service.LoginWidget(s.ctx, payload)
		s.Require().NoError(err)
		s.Equal(models.RoleAdmin, res.User.Role)
	})
}

func (s *ServiceSuite) TestVerificationFailuresNeverIssue() {
	tests := []struct {
		name   string
		err    error
		code   dErrors.Code
		reason string
	}{
		{"hash mismatch", telegram.ErrHashMismatch, dErrors.CodeUnauthorized, "hash_mismatch"},
		{"expired", telegram.ErrExpired, dErrors.CodeUnauthorized, "expired"},
		{"missing hash", telegram.ErrMissingHash, dErrors.CodeUnauthorized, "missing_hash"},
		{"missing auth_date", telegram.ErrMissingAuthDate, dErrors.CodeBadRequest, "missing_auth_date"},
		{"missing id", telegram.ErrMissingID, dErrors.CodeBadRequest, "missing_id"},
		{"malformed user", telegram.ErrMalformedUser, dErrors.CodeBadRequest, "malformed_user"},
		{"unknown", errors.New("boom"), dErrors.CodeUnauthorized, ReasonInvalidPayload},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.mockVerifier.EXPECT().VerifyWidget(gomock.Any(), gomock.Any()).Return(nil, tt.err)
			events := s.expectAudit(audit.EventLoginFailed)
			// No Issue expectation: any call fails the test.

			res, err := s.service.LoginWidget(s.ctx, telegram.Payload{})
			s.Nil(res)
			s.True(dErrors.HasCode(err, tt.code))
			de, ok := dErrors.As(err)
			s.Require().True(ok)
			s.Equal(tt.reason, de.Message)
			s.Equal(tt.reason, (*events)[0].Reason)
		})
	}
	s.Equal(0, s.store.Count())
	s.Equal(1.0, testutil.ToFloat64(s.metrics.VerifyFailures.WithLabelValues(FlowWidget, "hash_mismatch")))
}

func (s *ServiceSuite) TestLoginMiniApp() {
	s.Run("success", func() {
		s.mockVerifier.EXPECT().VerifyInitData(gomock.Any(), "query_id=1&hash=x").Return(identity(42), nil)
		s.mockIssuer.EXPECT().Issue(gomock.Any(), gomock.Any()).Return("signed", s.now, nil)
		s.expectAudit(audit.EventUserCreated, audit.EventLoginSucceeded)

		res, err := s.service.LoginMiniApp(s.ctx, "query_id=1&hash=x")
		s.Require().NoError(err)
		s.Equal(FlowMiniApp, res.Flow)
		s.Equal(models.UserIDForTelegram(42), res.User.ID)
	})

	s.Run("same person through both flows is one user", func() {
		s.mockVerifier.EXPECT().VerifyWidget(gomock.Any(), gomock.Any()).Return(identity(42), nil)
		s.mockIssuer.EXPECT().Issue(gomock.Any(), gomock.Any()).Return("signed", s.now, nil)
		s.expectAudit(audit.EventLoginSucceeded)

		res, err := s.service.LoginWidget(s.ctx, telegram.Payload{})
		s.Require().NoError(err)
		s.Equal(models.UserIDForTelegram(42), res.User.ID)
		s.Equal(1, s.store.Count())
	})

	s.Run("empty initData is a bad request", func() {
		s.expectAudit(audit.EventLoginFailed)

		_, err := s.service.LoginMiniApp(s.ctx, "")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func (s *ServiceSuite) TestMisconfiguration() {
	s.Run("missing bot token", func() {
		svc := s.newService(nil, s.mockIssuer, Config{})
		_, err := svc.LoginWidget(s.ctx, telegram.Payload{"id": "1"})
		s.True(dErrors.HasCode(err, dErrors.CodeMisconfigured))
		s.Contains(err.Error(), "TELEGRAM_BOT_TOKEN")
	})

	s.Run("missing session secret", func() {
		svc := s.newService(s.mockVerifier, nil, Config{})
		_, err := svc.LoginMiniApp(s.ctx, "hash=x")
		s.True(dErrors.HasCode(err, dErrors.CodeMisconfigured))
		s.Contains(err.Error(), "SESSION_SECRET")
	})

	s.Equal(0, s.store.Count())
}

func (s *ServiceSuite) TestReconcileFailureIssuesNothing() {
	ctrl := gomock.NewController(s.T())
	users := mocks.NewMockUserStore(ctrl)
	users.EXPECT().FindByTelegramID(gomock.Any(), int64(42)).Return(nil, errors.New("db down"))
	s.mockVerifier.EXPECT().VerifyWidget(gomock.Any(), gomock.Any()).Return(identity(42), nil)
	s.expectAudit(audit.EventLoginFailed)

	svc := New(users, s.mockVerifier, s.mockIssuer, Config{}, WithAuditPublisher(s.mockAudit))
	_, err := svc.LoginWidget(s.ctx, telegram.Payload{})
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *ServiceSuite) TestAuditFailureDoesNotBlockLogin() {
	s.mockVerifier.EXPECT().VerifyWidget(gomock.Any(), gomock.Any()).Return(identity(42), nil)
	s.mockIssuer.EXPECT().Issue(gomock.Any(), gomock.Any()).Return("signed", s.now, nil)
	s.mockAudit.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("audit down")).Times(2)

	res, err := s.service.LoginWidget(s.ctx, telegram.Payload{})
	s.Require().NoError(err)
	s.Equal("signed", res.Token)
}

func (s *ServiceSuite) TestDevLogin() {
	s.Run("issues admin session", func() {
		s.mockIssuer.EXPECT().Issue(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, sub jwttoken.Subject) (string, time.Time, error) {
				s.Equal(DevUserID, sub.UserID)
				s.Equal("admin", sub.Role)
				s.Equal("777000", sub.Telegram.ID)
				return "dev-token", s.now, nil
			})
		events := s.expectAudit(audit.EventDevLogin)

		res, err := s.service.DevLogin(s.ctx)
		s.Require().NoError(err)
		s.Equal(models.RoleAdmin, res.User.Role)
		s.Equal(FlowDev, (*events)[0].Flow)
		s.Equal(0, s.store.Count(), "dev login stores nothing")
	})

	s.Run("disabled in production", func() {
		svc := s.newService(s.mockVerifier, s.mockIssuer, Config{DevLoginEnabled: false})
		_, err := svc.DevLogin(s.ctx)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("missing session secret", func() {
		svc := s.newService(s.mockVerifier, nil, Config{DevLoginEnabled: true})
		_, err := svc.DevLogin(s.ctx)
		s.True(dErrors.HasCode(err, dErrors.CodeMisconfigured))
	})
}

func (s *ServiceSuite) TestDeviceLabelFromUserAgent() {
	ctx := requestcontext.WithClientMetadata(s.ctx, "203.0.113.9",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	s.mockVerifier.EXPECT().VerifyWidget(gomock.Any(), gomock.Any()).Return(nil, telegram.ErrHashMismatch)
	events := s.expectAudit(audit.EventLoginFailed)

	_, _ = s.service.LoginWidget(ctx, telegram.Payload{})
	s.Contains((*events)[0].Device, "Chrome")
}

func (s *ServiceSuite) TestPromoteAllowList() {
	_, err := s.store.FindByTelegramID(s.ctx, 1001)
	s.Require().Error(err)
	s.Require().NoError(s.store.Create(s.ctx, &models.User{ID: models.UserIDForTelegram(1001), TelegramID: 1001, Role: models.RoleUser}))
	s.Require().NoError(s.store.Create(s.ctx, &models.User{ID: models.UserIDForTelegram(5), TelegramID: 5, Role: models.RoleUser}))

	n, err := s.service.PromoteAllowList(s.ctx, s.store)
	s.Require().NoError(err)
	s.Equal(1, n)

	u, err := s.store.FindByTelegramID(s.ctx, 1001)
	s.Require().NoError(err)
	s.Equal(models.RoleAdmin, u.Role)
	u, err = s.store.FindByTelegramID(s.ctx, 5)
	s.Require().NoError(err)
	s.Equal(models.RoleUser, u.Role)
}

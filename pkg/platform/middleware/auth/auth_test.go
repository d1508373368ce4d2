package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"tfc/pkg/requestcontext"
)

type stubValidator struct {
	claims *SessionClaims
	err    error
	tokens []string
}

func (v *stubValidator) ValidateSession(_ context.Context, token string) (*SessionClaims, error) {
	v.tokens = append(v.tokens, token)
	return v.claims, v.err
}

type RequireSessionSuite struct {
	suite.Suite
	validator *stubValidator
	handler   http.Handler
	reached   *SessionClaims
}

func TestRequireSessionSuite(t *testing.T) {
	suite.Run(t, new(RequireSessionSuite))
}

func (s *RequireSessionSuite) SetupTest() {
	s.validator = &stubValidator{}
	s.reached = nil
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.reached = GetClaims(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	s.handler = RequireSession(s.validator, logger, Options{Secure: true})(next)
}

func (s *RequireSessionSuite) serve(path string, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *RequireSessionSuite) decodeReason(rec *httptest.ResponseRecorder) string {
	var body struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&body))
	s.False(body.OK)
	return body.Error
}

func (s *RequireSessionSuite) TestMissingCookie() {
	s.Run("mini app path redirects to mini app entry", func() {
		rec := s.serve("/tma/home", "")
		s.Equal(http.StatusFound, rec.Code)
		s.Equal("/tma?e=no_session", rec.Header().Get("Location"))
		s.Nil(s.reached)
	})

	s.Run("other browser path redirects to login", func() {
		rec := s.serve("/admin", "")
		s.Equal(http.StatusFound, rec.Code)
		s.Equal("/login?e=no_session", rec.Header().Get("Location"))
	})

	s.Run("api path returns json 401", func() {
		rec := s.serve("/api/me", "")
		s.Equal(http.StatusUnauthorized, rec.Code)
		s.Equal("no_session", s.decodeReason(rec))
		s.Empty(s.validator.tokens)
	})
}

func (s *RequireSessionSuite) TestInvalidSession() {
	s.validator.err = errors.New("bad signature")

	s.Run("browser redirect clears cookie", func() {
		rec := s.serve("/tma/home", "forged")
		s.Equal(http.StatusFound, rec.Code)
		s.Equal("/tma?e=bad_session", rec.Header().Get("Location"))
		s.assertCleared(rec)
	})

	s.Run("api returns 401 and clears cookie", func() {
		rec := s.serve("/api/me", "forged")
		s.Equal(http.StatusUnauthorized, rec.Code)
		s.Equal("bad_session", s.decodeReason(rec))
		s.assertCleared(rec)
		s.Nil(s.reached)
	})
}

func (s *RequireSessionSuite) TestOnRejectObservesReasons() {
	var reasons []string
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.validator.err = errors.New("expired")
	handler := RequireSession(s.validator, logger, Options{OnReject: func(reason string) {
		reasons = append(reasons, reason)
	}})(http.NotFoundHandler())

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/me", nil))
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "stale"})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	s.Equal([]string{ReasonNoSession, ReasonBadSession}, reasons)
}

func (s *RequireSessionSuite) assertCleared(rec *httptest.ResponseRecorder) {
	cookies := rec.Result().Cookies()
	s.Require().Len(cookies, 1)
	s.Equal(CookieName, cookies[0].Name)
	s.Equal(-1, cookies[0].MaxAge)
	s.Empty(cookies[0].Value)
}

func (s *RequireSessionSuite) TestValidSession() {
	userID := uuid.New()
	s.validator.claims = &SessionClaims{UserID: userID.String(), Role: "user", TelegramID: "555"}

	var ctxUser uuid.UUID
	var ctxTelegram int64
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := RequireSession(s.validator, logger, Options{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxUser = requestcontext.UserID(r.Context())
		ctxTelegram = requestcontext.TelegramID(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "good"})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	s.Equal(userID, ctxUser)
	s.Equal(int64(555), ctxTelegram)
	s.Equal([]string{"good"}, s.validator.tokens)

	rec := s.serve("/tma/home", "good")
	s.Equal(http.StatusOK, rec.Code)
	s.Require().NotNil(s.reached)
	s.Equal("user", s.reached.Role)
}

func TestSessionCookieAttributes(t *testing.T) {
	rec := httptest.NewRecorder()
	SetSessionCookie(rec, "tok", true)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, CookieName, c.Name)
	assert.Equal(t, "tok", c.Value)
	assert.Equal(t, "/", c.Path)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, int((30 * 24 * time.Hour).Seconds()), c.MaxAge)

	rec = httptest.NewRecorder()
	SetSessionCookie(rec, "tok", false)
	assert.False(t, rec.Result().Cookies()[0].Secure)
}

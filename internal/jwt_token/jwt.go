// Package jwttoken issues and validates the stateless tfc_session token.
package jwttoken

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"

	dErrors "tfc/pkg/domain-errors"
	"tfc/pkg/requestcontext"
)

const (
	// TokenType is carried in the typ claim so other HS256 tokens signed
	// with a related secret are never accepted as sessions.
	TokenType = "tfc_session"
	Issuer    = "tfc"

	// SessionTTL is fixed; there is no refresh or revocation.
	SessionTTL = 30 * 24 * time.Hour

	keyDerivationInfo = "tfc_session"
	signingKeyLen     = 32
)

// ErrMissingSecret is returned when no session secret is configured.
var ErrMissingSecret = errors.New("session secret is empty")

// TelegramClaims mirrors the Telegram profile at login time.
type TelegramClaims struct {
	ID        string `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	PhotoURL  string `json:"photo_url,omitempty"`
}

// SessionClaims is the payload of a session token. Subject is the local user id.
type SessionClaims struct {
	Type     string         `json:"typ"`
	Role     string         `json:"role"`
	Telegram TelegramClaims `json:"tg"`
	jwt.RegisteredClaims
}

// Subject describes who a session is issued for.
type Subject struct {
	UserID   string
	Role     string
	Telegram TelegramClaims
}

// Service signs and validates session tokens.
type Service struct {
	signingKey []byte
	now        func(ctx context.Context) time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock pins the service's notion of now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = func(context.Context) time.Time { return now() }
	}
}

// NewService derives the HS256 signing key from secret with HKDF-SHA256.
func NewService(secret string, opts ...Option) (*Service, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	key, err := deriveSigningKey(secret)
	if err != nil {
		return nil, err
	}
	s := &Service{signingKey: key, now: requestcontext.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func deriveSigningKey(secret string) ([]byte, error) {
	key := make([]byte, signingKeyLen)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyDerivationInfo)), key); err != nil {
		return nil, fmt.Errorf("derive session signing key: %w", err)
	}
	return key, nil
}

// Issue signs a session for sub and returns the token with its expiry.
func (s *Service) Issue(ctx context.Context, sub Subject) (string, time.Time, error) {
	if sub.UserID == "" || sub.Telegram.ID == "" {
		return "", time.Time{}, dErrors.New(dErrors.CodeInternal, "session subject incomplete")
	}
	issuedAt := s.now(ctx).Truncate(time.Second)
	expiresAt := issuedAt.Add(SessionTTL)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		Type:     TokenType,
		Role:     sub.Role,
		Telegram: sub.Telegram,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub.UserID,
			Issuer:    Issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, dErrors.Wrap(err, dErrors.CodeInternal, "sign session")
	}
	return signed, expiresAt, nil
}

// VerifySession validates signature, algorithm, expiry, issuer and token type.
func (s *Service) VerifySession(ctx context.Context, tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrTokenUnverifiable
			}
			return s.signingKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return s.now(ctx) }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "session expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid session")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid session")
	}
	if claims.Type != TokenType || claims.Subject == "" || claims.Telegram.ID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid session claims")
	}
	return claims, nil
}

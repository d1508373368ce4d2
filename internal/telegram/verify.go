// Package telegram verifies Telegram Login Widget and Mini-App initData payloads.
package telegram

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	tfcstrings "tfc/pkg/platform/strings"
	"tfc/pkg/requestcontext"
)

// DefaultMaxAuthAge is the freshness window for auth_date.
const DefaultMaxAuthAge = 24 * time.Hour

const webAppDataKey = "WebAppData"

// botTokenWrapping are the characters operators tend to paste around a token.
const botTokenWrapping = "<>\"'`"

// Verifier checks payload signatures against a single bot token.
type Verifier struct {
	botToken string
	maxAge   time.Duration
	now      func(ctx context.Context) time.Time
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithMaxAge overrides DefaultMaxAuthAge. Non-positive values are ignored.
func WithMaxAge(d time.Duration) Option {
	return func(v *Verifier) {
		if d > 0 {
			v.maxAge = d
		}
	}
}

// WithClock pins the verifier's notion of now.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		v.now = func(context.Context) time.Time { return now() }
	}
}

// SanitizeBotToken trims whitespace and strips wrapping quote or angle characters.
func SanitizeBotToken(token string) string {
	return tfcstrings.Unwrap(token, botTokenWrapping)
}

// NewVerifier sanitizes botToken and returns ErrEmptyBotToken if nothing remains.
func NewVerifier(botToken string, opts ...Option) (*Verifier, error) {
	token := SanitizeBotToken(botToken)
	if token == "" {
		return nil, ErrEmptyBotToken
	}
	v := &Verifier{
		botToken: token,
		maxAge:   DefaultMaxAuthAge,
		now:      requestcontext.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// MaxAge reports the configured freshness window.
func (v *Verifier) MaxAge() time.Duration { return v.maxAge }

// VerifyWidget authenticates a Login Widget payload. Every field other than
// hash is covered by the signature.
func (v *Verifier) VerifyWidget(ctx context.Context, p Payload) (*Identity, error) {
	authDate, err := v.check(ctx, p, widgetSecret(v.botToken))
	if err != nil {
		return nil, err
	}

	id, err := parseID(p[fieldID])
	if err != nil {
		return nil, err
	}
	return &Identity{
		ID:        id,
		Username:  p["username"],
		FirstName: p["first_name"],
		LastName:  p["last_name"],
		PhotoURL:  p["photo_url"],
		AuthDate:  authDate,
	}, nil
}

// VerifyInitData authenticates a Mini-App initData string. Only fields Telegram
// itself signs are considered.
func (v *Verifier) VerifyInitData(ctx context.Context, initData string) (*Identity, error) {
	raw, err := ParseInitData(initData)
	if err != nil {
		return nil, reject(KindMalformedUser, err)
	}
	hash, ok := raw[fieldHash]
	p := restrictToInitDataKeys(raw)
	if ok {
		p[fieldHash] = hash
	}

	authDate, err := v.check(ctx, p, webAppSecret(v.botToken))
	if err != nil {
		return nil, err
	}

	userJSON, ok := p[fieldUser]
	if !ok {
		return nil, reject(KindMissingID, errors.New("user field absent"))
	}
	var u webAppUser
	if err := json.Unmarshal([]byte(userJSON), &u); err != nil {
		return nil, reject(KindMalformedUser, err)
	}
	id, err := parseID(u.ID.String())
	if err != nil {
		return nil, err
	}
	return &Identity{
		ID:        id,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		PhotoURL:  u.PhotoURL,
		AuthDate:  authDate,
	}, nil
}

type webAppUser struct {
	ID        json.Number `json:"id"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Username  string      `json:"username"`
	PhotoURL  string      `json:"photo_url"`
}

// check validates the hash and freshness and returns auth_date.
func (v *Verifier) check(ctx context.Context, p Payload, secret []byte) (time.Time, error) {
	supplied, ok := p[fieldHash]
	if !ok || supplied == "" {
		return time.Time{}, ErrMissingHash
	}

	expected := computeHash(secret, DataCheckString(p))
	if !hmac.Equal([]byte(expected), []byte(supplied)) {
		return time.Time{}, ErrHashMismatch
	}

	secs, err := strconv.ParseInt(strings.TrimSpace(p[fieldAuthDate]), 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}, ErrMissingAuthDate
	}
	authDate := time.Unix(secs, 0).UTC()
	if v.now(ctx).Sub(authDate) > v.maxAge {
		return time.Time{}, ErrExpired
	}
	return authDate, nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrMissingID
	}
	return id, nil
}

func formatID(id int64) string { return strconv.FormatInt(id, 10) }

func widgetSecret(botToken string) []byte {
	sum := sha256.Sum256([]byte(botToken))
	return sum[:]
}

func webAppSecret(botToken string) []byte {
	mac := hmac.New(sha256.New, []byte(webAppDataKey))
	mac.Write([]byte(botToken))
	return mac.Sum(nil)
}

func computeHash(secret []byte, dataCheckString string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(dataCheckString))
	return hex.EncodeToString(mac.Sum(nil))
}

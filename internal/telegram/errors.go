package telegram

import "errors"

// Kind classifies why a Telegram payload was rejected.
type Kind string

const (
	KindMissingHash     Kind = "missing_hash"
	KindMissingAuthDate Kind = "missing_auth_date"
	KindMissingID       Kind = "missing_id"
	KindHashMismatch    Kind = "hash_mismatch"
	KindExpired         Kind = "expired"
	KindMalformedUser   Kind = "malformed_user"
)

// VerifyError is returned for every rejected payload.
type VerifyError struct {
	Kind Kind
	Err  error
}

// Sentinels for errors.Is; the Kind is what matters.
var (
	ErrMissingHash     = &VerifyError{Kind: KindMissingHash}
	ErrMissingAuthDate = &VerifyError{Kind: KindMissingAuthDate}
	ErrMissingID       = &VerifyError{Kind: KindMissingID}
	ErrHashMismatch    = &VerifyError{Kind: KindHashMismatch}
	ErrExpired         = &VerifyError{Kind: KindExpired}
	ErrMalformedUser   = &VerifyError{Kind: KindMalformedUser}
)

// ErrEmptyBotToken is returned by NewVerifier when no usable token remains after sanitizing.
var ErrEmptyBotToken = errors.New("telegram: bot token is empty")

func (e *VerifyError) Error() string {
	if e.Err != nil {
		return "telegram: " + string(e.Kind) + ": " + e.Err.Error()
	}
	return "telegram: " + string(e.Kind)
}

func (e *VerifyError) Unwrap() error { return e.Err }

// Is matches any VerifyError of the same Kind.
func (e *VerifyError) Is(target error) bool {
	var t *VerifyError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf extracts the rejection kind, or "" if err is not a VerifyError.
func KindOf(err error) Kind {
	var ve *VerifyError
	if errors.As(err, &ve) {
		return ve.Kind
	}
	return ""
}

func reject(kind Kind, err error) error {
	return &VerifyError{Kind: kind, Err: err}
}

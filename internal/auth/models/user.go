package models

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Role is the authorization level carried in a session.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User is the local account bound to exactly one Telegram id.
type User struct {
	ID               uuid.UUID `json:"id"`
	TelegramID       int64     `json:"telegram_id"`
	TelegramUsername string    `json:"telegram_username,omitempty"`
	FullName         string    `json:"full_name"`
	PhotoURL         string    `json:"photo_url,omitempty"`
	Role             Role      `json:"role"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	LastLoginAt      time.Time `json:"last_login_at"`
}

// UserIDForTelegram derives the stable local id for a Telegram account, so
// concurrent first logins of the same person converge on one row.
func UserIDForTelegram(telegramID int64) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("tg:"+strconv.FormatInt(telegramID, 10)))
}

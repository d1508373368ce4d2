package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"tfc/internal/auth/models"
	"tfc/pkg/platform/sentinel"
)

const pgErrUniqueViolation = "23505"

// Schema creates the users table. telegram_id is unique so concurrent first
// logins of the same account cannot create two rows.
const Schema = `
CREATE TABLE IF NOT EXISTS app_users (
	id                UUID PRIMARY KEY,
	telegram_id       BIGINT NOT NULL UNIQUE,
	telegram_username TEXT,
	full_name         TEXT NOT NULL,
	photo_url         TEXT,
	role              TEXT NOT NULL CHECK (role IN ('admin', 'user')),
	created_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL,
	last_login_at     TIMESTAMPTZ NOT NULL
)`

// PostgresStore persists users via database/sql. It works with both the
// lib/pq and the pgx stdlib drivers.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed user store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies Schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate app_users: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	query := `
		SELECT id, telegram_id, telegram_username, full_name, photo_url, role,
			created_at, updated_at, last_login_at
		FROM app_users
		WHERE telegram_id = $1
	`
	var (
		u        models.User
		username sql.NullString
		photo    sql.NullString
		role     string
	)
	err := s.db.QueryRowContext(ctx, query, telegramID).Scan(
		&u.ID, &u.TelegramID, &username, &u.FullName, &photo, &role,
		&u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find user by telegram id: %w", err)
	}
	u.TelegramUsername = username.String
	u.PhotoURL = photo.String
	u.Role = models.Role(role)
	return &u, nil
}

// Create inserts u. A row that already exists for the Telegram id (or the
// derived primary key) is reported as sentinel.ErrConflict.
func (s *PostgresStore) Create(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO app_users (id, telegram_id, telegram_username, full_name, photo_url, role,
			created_at, updated_at, last_login_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT DO NOTHING
		RETURNING id
	`
	var inserted string
	err := s.db.QueryRowContext(ctx, query,
		u.ID.String(), u.TelegramID, nullIfEmpty(u.TelegramUsername), u.FullName, nullIfEmpty(u.PhotoURL),
		string(u.Role), u.CreatedAt, u.UpdatedAt, u.LastLoginAt,
	).Scan(&inserted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Update refreshes profile fields. The stored role is only ever raised: an
// admin row stays admin whatever role u carries, and u.Role is set to the
// role that was persisted.
func (s *PostgresStore) Update(ctx context.Context, u *models.User) error {
	query := `
		UPDATE app_users SET
			telegram_username = $2,
			full_name = $3,
			photo_url = $4,
			role = CASE WHEN $5::text = 'admin' THEN 'admin' ELSE app_users.role END,
			updated_at = $6,
			last_login_at = $7
		WHERE telegram_id = $1
		RETURNING role
	`
	var role string
	err := s.db.QueryRowContext(ctx, query,
		u.TelegramID, nullIfEmpty(u.TelegramUsername), u.FullName, nullIfEmpty(u.PhotoURL),
		string(u.Role), u.UpdatedAt, u.LastLoginAt,
	).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	u.Role = models.Role(role)
	return nil
}

// PromoteTelegramIDs sets role admin for every listed account that is not already admin.
func (s *PostgresStore) PromoteTelegramIDs(ctx context.Context, telegramIDs []int64, at time.Time) (int, error) {
	if len(telegramIDs) == 0 {
		return 0, nil
	}
	query := `
		UPDATE app_users SET role = 'admin', updated_at = $2
		WHERE telegram_id = ANY($1) AND role <> 'admin'
	`
	res, err := s.db.ExecContext(ctx, query, pq.Array(telegramIDs), at)
	if err != nil {
		return 0, fmt.Errorf("promote users: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("promote users rows affected: %w", err)
	}
	return int(n), nil
}

// isUniqueViolation recognizes 23505 from either driver.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgErrUniqueViolation
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrUniqueViolation
	}
	return false
}

func nullIfEmpty(s string) sql.NullString {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

package user

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/suite"

	"tfc/internal/auth/models"
	"tfc/pkg/platform/sentinel"
)

type PostgresStoreUnitSuite struct {
	suite.Suite
	db    *sql.DB
	mock  sqlmock.Sqlmock
	store *PostgresStore
}

func TestPostgresStoreUnitSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreUnitSuite))
}

func (s *PostgresStoreUnitSuite) SetupTest() {
	db, mock, err := sqlmock.New()
	s.Require().NoError(err)
	s.db = db
	s.mock = mock
	s.store = NewPostgres(db)
}

func (s *PostgresStoreUnitSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
	_ = s.db.Close()
}

var userColumns = []string{
	"id", "telegram_id", "telegram_username", "full_name", "photo_url", "role",
	"created_at", "updated_at", "last_login_at",
}

func (s *PostgresStoreUnitSuite) TestFindByTelegramID() {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	id := models.UserIDForTelegram(77)

	s.Run("maps row including null columns", func() {
		s.mock.ExpectQuery(regexp.QuoteMeta("FROM app_users")).
			WithArgs(int64(77)).
			WillReturnRows(sqlmock.NewRows(userColumns).
				AddRow(id.String(), int64(77), nil, "Ali Valiyev", nil, "admin", now, now, now))

		u, err := s.store.FindByTelegramID(ctx, 77)
		s.Require().NoError(err)
		s.Equal(id, u.ID)
		s.Equal(int64(77), u.TelegramID)
		s.Empty(u.TelegramUsername)
		s.Empty(u.PhotoURL)
		s.Equal(models.RoleAdmin, u.Role)
	})

	s.Run("no rows is ErrNotFound", func() {
		s.mock.ExpectQuery(regexp.QuoteMeta("FROM app_users")).
			WithArgs(int64(78)).
			WillReturnError(sql.ErrNoRows)

		_, err := s.store.FindByTelegramID(ctx, 78)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("driver failure is wrapped", func() {
		s.mock.ExpectQuery(regexp.QuoteMeta("FROM app_users")).
			WithArgs(int64(79)).
			WillReturnError(errors.New("connection reset"))

		_, err := s.store.FindByTelegramID(ctx, 79)
		s.Require().Error(err)
		s.NotErrorIs(err, sentinel.ErrNotFound)
		s.Contains(err.Error(), "connection reset")
	})
}

func (s *PostgresStoreUnitSuite) TestCreate() {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	u := &models.User{
		ID: models.UserIDForTelegram(5), TelegramID: 5, TelegramUsername: "five",
		FullName: "Five", Role: models.RoleUser, CreatedAt: now, UpdatedAt: now, LastLoginAt: now,
	}

	s.Run("inserted", func() {
		s.mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO app_users")).
			WithArgs(u.ID.String(), int64(5), sqlmock.AnyArg(), "Five", sqlmock.AnyArg(), "user", now, now, now).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(u.ID.String()))

		s.NoError(s.store.Create(ctx, u))
	})

	s.Run("on conflict do nothing returns no row", func() {
		s.mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT DO NOTHING")).
			WillReturnError(sql.ErrNoRows)

		s.ErrorIs(s.store.Create(ctx, u), sentinel.ErrConflict)
	})

	s.Run("lib/pq unique violation", func() {
		s.mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO app_users")).
			WillReturnError(&pq.Error{Code: "23505"})

		s.ErrorIs(s.store.Create(ctx, u), sentinel.ErrConflict)
	})

	s.Run("pgx unique violation", func() {
		s.mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO app_users")).
			WillReturnError(&pgconn.PgError{Code: "23505"})

		s.ErrorIs(s.store.Create(ctx, u), sentinel.ErrConflict)
	})

	s.Run("other failures are not conflicts", func() {
		s.mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO app_users")).
			WillReturnError(&pq.Error{Code: "23514"})

		err := s.store.Create(ctx, u)
		s.Require().Error(err)
		s.NotErrorIs(err, sentinel.ErrConflict)
	})
}

func (s *PostgresStoreUnitSuite) TestUpdate() {
	ctx := context.Background()

	s.Run("updated", func() {
		u := &models.User{TelegramID: 9, FullName: "Nine", Role: models.RoleAdmin}
		s.mock.ExpectQuery(regexp.QuoteMeta("UPDATE app_users SET")).
			WithArgs(int64(9), sqlmock.AnyArg(), "Nine", sqlmock.AnyArg(), "admin", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("admin"))

		s.NoError(s.store.Update(ctx, u))
		s.Equal(models.RoleAdmin, u.Role)
	})

	s.Run("role is only ever raised", func() {
		s.mock.ExpectQuery(regexp.QuoteMeta("role = CASE WHEN $5::text = 'admin' THEN 'admin' ELSE app_users.role END")).
			WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("user"))

		s.NoError(s.store.Update(ctx, &models.User{TelegramID: 9, Role: models.RoleUser}))
	})

	s.Run("stale user copy picks up a concurrent promotion", func() {
		u := &models.User{TelegramID: 9, FullName: "Nine", Role: models.RoleUser}
		s.mock.ExpectQuery(regexp.QuoteMeta("UPDATE app_users SET")).
			WithArgs(int64(9), sqlmock.AnyArg(), "Nine", sqlmock.AnyArg(), "user", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("admin"))

		s.NoError(s.store.Update(ctx, u))
		s.Equal(models.RoleAdmin, u.Role)
	})

	s.Run("no row is ErrNotFound", func() {
		s.mock.ExpectQuery(regexp.QuoteMeta("UPDATE app_users SET")).
			WillReturnRows(sqlmock.NewRows([]string{"role"}))

		s.ErrorIs(s.store.Update(ctx, &models.User{TelegramID: 9}), sentinel.ErrNotFound)
	})
}

func (s *PostgresStoreUnitSuite) TestPromoteTelegramIDs() {
	ctx := context.Background()
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	s.Run("empty list skips the query", func() {
		n, err := s.store.PromoteTelegramIDs(ctx, nil, at)
		s.NoError(err)
		s.Zero(n)
	})

	s.Run("promotes with array parameter", func() {
		s.mock.ExpectExec(regexp.QuoteMeta("WHERE telegram_id = ANY($1) AND role <> 'admin'")).
			WithArgs(pq.Array([]int64{1, 2}), at).
			WillReturnResult(sqlmock.NewResult(0, 2))

		n, err := s.store.PromoteTelegramIDs(ctx, []int64{1, 2}, at)
		s.Require().NoError(err)
		s.Equal(2, n)
	})
}

func (s *PostgresStoreUnitSuite) TestMigrate() {
	s.mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS app_users")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	s.NoError(s.store.Migrate(context.Background()))
}

package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"tfc/internal/auth/models"
	"tfc/pkg/platform/sentinel"
)

const userKeyPrefix = "tfc:user:tg:"

// RedisStore keeps one JSON record per Telegram id. Create uses SETNX so
// only the first writer wins.
type RedisStore struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed user store.
func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func userKey(telegramID int64) string {
	return userKeyPrefix + strconv.FormatInt(telegramID, 10)
}

func (s *RedisStore) FindByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	raw, err := s.client.Get(ctx, userKey(telegramID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	var u models.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &u, nil
}

func (s *RedisStore) Create(ctx context.Context, u *models.User) error {
	raw, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	ok, err := s.client.SetNX(ctx, userKey(u.TelegramID), raw, 0).Result()
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	if !ok {
		return sentinel.ErrConflict
	}
	return nil
}

// maxUpdateAttempts bounds optimistic retries when concurrent logins touch
// the same record.
const maxUpdateAttempts = 32

// Update rewrites an existing record under WATCH so a concurrent writer
// cannot resurrect a stale copy. A stored admin role is never lowered and
// u.Role reflects what was written.
func (s *RedisStore) Update(ctx context.Context, u *models.User) error {
	key := userKey(u.TelegramID)
	var written models.User
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return sentinel.ErrNotFound
		}
		if err != nil {
			return err
		}
		var existing models.User
		if err := json.Unmarshal(raw, &existing); err != nil {
			return fmt.Errorf("decode user: %w", err)
		}
		next := *u
		next.ID = existing.ID
		next.CreatedAt = existing.CreatedAt
		if existing.Role == models.RoleAdmin {
			next.Role = models.RoleAdmin
		}
		encoded, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode user: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			return nil
		})
		if err == nil {
			written = next
		}
		return err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		switch {
		case err == nil:
			u.Role = written.Role
			return nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, sentinel.ErrNotFound):
			return err
		default:
			return fmt.Errorf("update user: %w", err)
		}
	}
	return fmt.Errorf("update user: %w", redis.TxFailedErr)
}

func (s *RedisStore) PromoteTelegramIDs(ctx context.Context, telegramIDs []int64, at time.Time) (int, error) {
	promoted := 0
	for _, id := range telegramIDs {
		u, err := s.FindByTelegramID(ctx, id)
		if errors.Is(err, sentinel.ErrNotFound) {
			continue
		}
		if err != nil {
			return promoted, err
		}
		if u.Role == models.RoleAdmin {
			continue
		}
		u.Role = models.RoleAdmin
		u.UpdatedAt = at
		if err := s.Update(ctx, u); err != nil {
			return promoted, err
		}
		promoted++
	}
	return promoted, nil
}

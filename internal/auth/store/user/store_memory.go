// Package user persists local user records keyed by Telegram id.
package user

import (
	"context"
	"sync"
	"time"

	"tfc/internal/auth/models"
	"tfc/pkg/platform/sentinel"
)

// InMemoryUserStore keeps users in a map guarded by a mutex. The mutex makes
// find-then-create atomic per call, so duplicates surface as ErrConflict.
type InMemoryUserStore struct {
	mu    sync.RWMutex
	users map[int64]models.User
}

// New constructs an empty in-memory store.
func New() *InMemoryUserStore {
	return &InMemoryUserStore{users: make(map[int64]models.User)}
}

func (s *InMemoryUserStore) FindByTelegramID(_ context.Context, telegramID int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[telegramID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &u, nil
}

func (s *InMemoryUserStore) Create(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[u.TelegramID]; exists {
		return sentinel.ErrConflict
	}
	s.users[u.TelegramID] = *u
	return nil
}

// Update keeps id, created_at and an existing admin role; u.Role reflects the
// stored role afterwards.
func (s *InMemoryUserStore) Update(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.users[u.TelegramID]
	if !ok {
		return sentinel.ErrNotFound
	}
	next := *u
	next.ID = existing.ID
	next.CreatedAt = existing.CreatedAt
	if existing.Role == models.RoleAdmin {
		next.Role = models.RoleAdmin
	}
	s.users[u.TelegramID] = next
	u.Role = next.Role
	return nil
}

func (s *InMemoryUserStore) PromoteTelegramIDs(_ context.Context, telegramIDs []int64, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	promoted := 0
	for _, id := range telegramIDs {
		u, ok := s.users[id]
		if !ok || u.Role == models.RoleAdmin {
			continue
		}
		u.Role = models.RoleAdmin
		u.UpdatedAt = at
		s.users[id] = u
		promoted++
	}
	return promoted, nil
}

// Count returns the number of stored users.
func (s *InMemoryUserStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

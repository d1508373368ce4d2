package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"golang.org/x/sync/singleflight"

	"tfc/internal/auth/models"
	"tfc/internal/telegram"
	dErrors "tfc/pkg/domain-errors"
	"tfc/pkg/platform/sentinel"
	"tfc/pkg/requestcontext"
)

// Change reports what a reconciliation did to the stored user.
type Change int

const (
	ChangeNone Change = iota
	ChangeCreated
	ChangePromoted
)

// ChangeHook observes creations and promotions. It runs once per actual
// change, not once per collapsed caller.
type ChangeHook func(ctx context.Context, change Change, user models.User)

// Reconciler maps a verified Telegram identity to exactly one local user.
type Reconciler struct {
	users  UserStore
	admins map[int64]struct{}
	group  singleflight.Group
	logger *slog.Logger
	hook   ChangeHook
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

func WithReconcileLogger(logger *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) { r.logger = logger }
}

func WithChangeHook(hook ChangeHook) ReconcilerOption {
	return func(r *Reconciler) { r.hook = hook }
}

// NewReconciler builds a Reconciler with the admin allow-list.
func NewReconciler(users UserStore, adminTelegramIDs []int64, opts ...ReconcilerOption) *Reconciler {
	admins := make(map[int64]struct{}, len(adminTelegramIDs))
	for _, id := range adminTelegramIDs {
		admins[id] = struct{}{}
	}
	r := &Reconciler{users: users, admins: admins, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IsAdmin reports whether telegramID is on the allow-list.
func (r *Reconciler) IsAdmin(telegramID int64) bool {
	_, ok := r.admins[telegramID]
	return ok
}

// AdminTelegramIDs returns the allow-list in no particular order.
func (r *Reconciler) AdminTelegramIDs() []int64 {
	ids := make([]int64, 0, len(r.admins))
	for id := range r.admins {
		ids = append(ids, id)
	}
	return ids
}

// Reconcile finds or creates the user for identity, refreshes its profile
// and applies allow-list promotion. Concurrent calls for the same Telegram
// id share one store round trip and observe the same user.
func (r *Reconciler) Reconcile(ctx context.Context, identity *telegram.Identity) (*models.User, error) {
	if identity == nil || identity.ID <= 0 {
		return nil, dErrors.New(dErrors.CodeInternal, "reconcile without verified identity")
	}

	key := strconv.FormatInt(identity.ID, 10)
	// The flight outlives any single caller, so one cancelled request must
	// not fail the others waiting on it.
	flightCtx := context.WithoutCancel(ctx)
	v, err, _ := r.group.Do(key, func() (any, error) {
		return r.reconcile(flightCtx, identity)
	})
	if err != nil {
		return nil, err
	}
	user := *v.(*models.User)
	return &user, nil
}

func (r *Reconciler) reconcile(ctx context.Context, identity *telegram.Identity) (*models.User, error) {
	now := requestcontext.Now(ctx)

	existing, err := r.users.FindByTelegramID(ctx, identity.ID)
	switch {
	case err == nil:
		return r.refresh(ctx, existing, identity)
	case !errors.Is(err, sentinel.ErrNotFound):
		r.logger.ErrorContext(ctx, "user lookup failed", "telegram_id", identity.ID, "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}

	role := models.RoleUser
	if r.IsAdmin(identity.ID) {
		role = models.RoleAdmin
	}
	user := &models.User{
		ID:               models.UserIDForTelegram(identity.ID),
		TelegramID:       identity.ID,
		TelegramUsername: identity.Username,
		FullName:         identity.FullName(),
		PhotoURL:         identity.PhotoURL,
		Role:             role,
		CreatedAt:        now,
		UpdatedAt:        now,
		LastLoginAt:      now,
	}

	err = r.users.Create(ctx, user)
	if err == nil {
		r.notify(ctx, ChangeCreated, *user)
		return user, nil
	}
	if !errors.Is(err, sentinel.ErrConflict) {
		r.logger.ErrorContext(ctx, "user create failed", "telegram_id", identity.ID, "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
	}

	// Another instance created the row first; re-read once and continue as a returning user.
	existing, err = r.users.FindByTelegramID(ctx, identity.ID)
	if err != nil {
		r.logger.ErrorContext(ctx, "user re-read after conflict failed", "telegram_id", identity.ID, "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user after conflict")
	}
	return r.refresh(ctx, existing, identity)
}

func (r *Reconciler) refresh(ctx context.Context, user *models.User, identity *telegram.Identity) (*models.User, error) {
	now := requestcontext.Now(ctx)

	promoted := false
	if r.IsAdmin(identity.ID) && user.Role != models.RoleAdmin {
		user.Role = models.RoleAdmin
		promoted = true
	}
	user.TelegramUsername = identity.Username
	user.FullName = identity.FullName()
	user.PhotoURL = identity.PhotoURL
	user.LastLoginAt = now
	user.UpdatedAt = now

	if err := r.users.Update(ctx, user); err != nil {
		r.logger.ErrorContext(ctx, "user update failed", "telegram_id", identity.ID, "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update user")
	}
	if promoted {
		r.notify(ctx, ChangePromoted, *user)
	}
	return user, nil
}

func (r *Reconciler) notify(ctx context.Context, change Change, user models.User) {
	if r.hook != nil {
		r.hook(ctx, change, user)
	}
}

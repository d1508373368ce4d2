package service

import (
	"context"
	"time"

	dErrors "tfc/pkg/domain-errors"
	"tfc/pkg/requestcontext"
)

// Promoter bulk-promotes existing users; every user store implements it.
type Promoter interface {
	PromoteTelegramIDs(ctx context.Context, telegramIDs []int64, at time.Time) (int, error)
}

// PromoteAllowList raises already-stored allow-listed users to admin so an
// operator adding an id does not have to wait for that user's next login.
func (s *Service) PromoteAllowList(ctx context.Context, store Promoter) (int, error) {
	ids := s.reconciler.AdminTelegramIDs()
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := store.PromoteTelegramIDs(ctx, ids, requestcontext.Now(ctx))
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to promote allow-listed users")
	}
	if s.metrics != nil {
		s.metrics.AddRolePromotions(n)
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "promoted allow-listed users", "count", n)
	}
	return n, nil
}

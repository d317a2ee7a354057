package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type TokenSweeper interface {
	ClearExpiredTokens(ctx context.Context, now int64) (int64, error)
}

// TokenCleanupJob clears verification and reset tokens whose expiry has
// passed. Expired tokens are already rejected on use; this only keeps the
// table tidy.
type TokenCleanupJob struct {
	users TokenSweeper
	now   func() time.Time
}

func NewTokenCleanupJob(users TokenSweeper) *TokenCleanupJob {
	return &TokenCleanupJob{users: users, now: time.Now}
}

func (j *TokenCleanupJob) Name() string {
	return "token_cleanup"
}

func (j *TokenCleanupJob) Run(ctx context.Context) error {
	if j.users == nil {
		return nil
	}
	cleared, err := j.users.ClearExpiredTokens(ctx, j.now().Unix())
	if err != nil {
		return err
	}
	if cleared > 0 {
		logutil.GetLogger(ctx).Info("expired tokens cleared", zap.Int64("count", cleared))
	}
	return nil
}

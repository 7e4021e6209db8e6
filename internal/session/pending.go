package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/example/lexiday/internal/cache"
	"github.com/example/lexiday/pkg/models"
)

// maxDeletionAttempts bounds how often a stuck step is retried before it is
// left for an operator
const maxDeletionAttempts = 24

// pendingDeletion is the cache record of teardown steps still to be done
type pendingDeletion struct {
	Steps    []string  `json:"steps"`
	Attempts int       `json:"attempts"`
	FailedAt time.Time `json:"failed_at"`
}

func (c *Coordinator) savePending(ctx context.Context, userID string, p pendingDeletion) {
	if c.cache == nil {
		c.log.Error("account deletion left incomplete",
			zap.String("user_id", userID),
			zap.Strings("steps", p.Steps))
		return
	}
	if err := c.cache.SetJSON(ctx, cache.DeletionPrefix+userID, p, 0); err != nil {
		c.log.Error("failed to record pending account deletion",
			zap.String("user_id", userID),
			zap.Strings("steps", p.Steps),
			zap.Error(err))
	}
}

// RetryPendingDeletions re-runs the teardown steps that failed for earlier
// deletions. It returns how many users were fully cleaned up.
func (c *Coordinator) RetryPendingDeletions(ctx context.Context) (int, error) {
	if c.cache == nil {
		return 0, nil
	}
	entries, err := c.cache.Scan(ctx, cache.DeletionPrefix)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending deletions: %w", err)
	}

	var errs error
	done := 0
	for userID, raw := range entries {
		key := cache.DeletionPrefix + userID
		var p pendingDeletion
		if err := json.Unmarshal([]byte(raw), &p); err != nil || len(p.Steps) == 0 {
			c.log.Warn("dropping unreadable pending deletion", zap.String("user_id", userID))
			errs = multierr.Append(errs, c.cache.Delete(ctx, key))
			continue
		}

		sess := &models.Session{UserID: userID, Location: c.defaultLoc}
		report := c.RunDeletion(ctx, sess, c.StepsNamed(p.Steps...))
		remaining := retryable(report.Failed())
		if len(remaining) == 0 {
			errs = multierr.Append(errs, c.cache.Delete(ctx, key))
			done++
			continue
		}

		p.Steps = remaining
		p.Attempts++
		p.FailedAt = c.clock.Now()
		if p.Attempts >= maxDeletionAttempts {
			c.log.Error("giving up on account deletion steps",
				zap.String("user_id", userID),
				zap.Strings("steps", remaining),
				zap.Int("attempts", p.Attempts))
			errs = multierr.Append(errs, c.cache.Delete(ctx, key))
			continue
		}
		c.savePending(ctx, userID, p)
	}
	return done, errs
}

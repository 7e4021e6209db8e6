package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/example/lexiday/internal/cache"
	"github.com/example/lexiday/pkg/models"
)

// Deletion step names, in run order
const (
	StepBackup   = "backup"
	StepLedger   = "ledger"
	StepProgress = "progress"
	StepProfile  = "profile"
	StepAccount  = "account"
	StepSession  = "session"
	StepCache    = "cache"
	StepGuest    = "guest"
)

// Step statuses
const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

var errSkipped = errors.New("step skipped")

// Step is one unit of account teardown
type Step struct {
	Name string
	Run  func(ctx context.Context, sess *models.Session, report *DeletionReport) error
}

// StepResult records how one step went
type StepResult struct {
	Name     string        `json:"name"`
	Status   string        `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// DeletionReport is the aggregated outcome of an account deletion.
// Completed is always true once the pipeline ran; Err joins every step failure.
type DeletionReport struct {
	UserID     string       `json:"user_id"`
	Steps      []StepResult `json:"steps"`
	BackupPath string       `json:"backup_path,omitempty"`
	Completed  bool         `json:"completed"`
	Err        error        `json:"-"`
}

// Failed returns the names of the steps that failed
func (r *DeletionReport) Failed() []string {
	var names []string
	for _, s := range r.Steps {
		if s.Status == StatusFailed {
			names = append(names, s.Name)
		}
	}
	return names
}

// DeletionSteps returns the teardown pipeline in order
func (c *Coordinator) DeletionSteps() []Step {
	return []Step{
		{Name: StepBackup, Run: c.stepBackup},
		{Name: StepLedger, Run: func(ctx context.Context, sess *models.Session, _ *DeletionReport) error {
			_, err := c.ledger.Clear(ctx, sess)
			return err
		}},
		{Name: StepProgress, Run: func(ctx context.Context, sess *models.Session, _ *DeletionReport) error {
			return c.progress.Delete(ctx, sess)
		}},
		{Name: StepProfile, Run: func(ctx context.Context, sess *models.Session, _ *DeletionReport) error {
			return c.profiles.Delete(ctx, sess)
		}},
		{Name: StepAccount, Run: func(ctx context.Context, sess *models.Session, _ *DeletionReport) error {
			return c.identity.DeleteAccount(ctx, sess.UserID)
		}},
		{Name: StepSession, Run: func(ctx context.Context, sess *models.Session, _ *DeletionReport) error {
			if sess.Token == "" {
				return errSkipped
			}
			return c.identity.SignOut(ctx, sess.Token)
		}},
		{Name: StepCache, Run: c.stepCache},
		{Name: StepGuest, Run: func(ctx context.Context, sess *models.Session, _ *DeletionReport) error {
			if c.Current().ID() == sess.UserID {
				c.toGuest()
			}
			return nil
		}},
	}
}

func (c *Coordinator) stepBackup(ctx context.Context, sess *models.Session, report *DeletionReport) error {
	if c.backup == nil {
		return errSkipped
	}
	words := c.ledger.GetAll(ctx, sess)
	if words.IsDegraded() {
		return fmt.Errorf("failed to read words for backup: %w", words.Err)
	}
	path, err := c.backup.Backup(ctx, sess.UserID, words.Value)
	if err != nil {
		return err
	}
	report.BackupPath = path
	return nil
}

func (c *Coordinator) stepCache(ctx context.Context, sess *models.Session, _ *DeletionReport) error {
	if c.cache == nil {
		return errSkipped
	}
	_, err := c.cache.ClearValue(ctx, cache.SessionPrefix, sess.UserID)
	return err
}

// DeleteAccount tears down everything belonging to the session's user. Every
// step runs even when earlier ones fail; failures are logged and collected in
// the report, and the coordinator always ends in guest mode for that user.
// Failed steps get one immediate retry. Steps still failing after that are
// recorded and picked up by RetryPendingDeletions.
func (c *Coordinator) DeleteAccount(ctx context.Context, sess *models.Session) *DeletionReport {
	report := c.RunDeletion(ctx, sess, c.DeletionSteps())
	if retry := retryable(report.Failed()); len(retry) > 0 {
		c.log.Info("retrying account deletion steps",
			zap.String("user_id", sess.UserID),
			zap.Strings("steps", retry))
		report.merge(c.RunDeletion(ctx, sess, c.StepsNamed(retry...)))
	}
	if pending := retryable(report.Failed()); len(pending) > 0 {
		c.savePending(ctx, sess.UserID, pendingDeletion{Steps: pending, Attempts: 1, FailedAt: c.clock.Now()})
	}
	return report
}

// retryable drops the steps that cannot be repeated usefully. A backup taken
// after the words are gone would be empty, so it only goes again when the
// ledger step failed too.
func retryable(failed []string) []string {
	ledgerFailed := false
	for _, name := range failed {
		if name == StepLedger {
			ledgerFailed = true
		}
	}
	var out []string
	for _, name := range failed {
		switch {
		case name == StepGuest:
		case name == StepBackup && !ledgerFailed:
		default:
			out = append(out, name)
		}
	}
	return out
}

// merge folds the results of a retry into r, replacing steps by name
func (r *DeletionReport) merge(retry *DeletionReport) {
	byName := make(map[string]StepResult, len(retry.Steps))
	for _, s := range retry.Steps {
		byName[s.Name] = s
	}
	r.Err = nil
	for i, s := range r.Steps {
		if again, ok := byName[s.Name]; ok {
			again.Duration += s.Duration
			r.Steps[i] = again
			s = again
		}
		if s.Status == StatusFailed {
			r.Err = multierr.Append(r.Err, fmt.Errorf("%s: %s", s.Name, s.Error))
		}
	}
	if retry.BackupPath != "" {
		r.BackupPath = retry.BackupPath
	}
}

// RunDeletion runs the given steps in order. It is also used to retry the
// steps a previous report lists as failed.
func (c *Coordinator) RunDeletion(ctx context.Context, sess *models.Session, steps []Step) *DeletionReport {
	report := &DeletionReport{UserID: sess.ID()}
	if sess.IsGuest() {
		report.Completed = true
		return report
	}

	for _, step := range steps {
		start := time.Now()
		err := c.runStep(ctx, step, sess, report)
		res := StepResult{Name: step.Name, Status: StatusOK, Duration: time.Since(start)}

		switch {
		case errors.Is(err, errSkipped):
			res.Status = StatusSkipped
		case err != nil:
			res.Status = StatusFailed
			res.Error = err.Error()
			report.Err = multierr.Append(report.Err, fmt.Errorf("%s: %w", step.Name, err))
			c.log.Warn("account deletion step failed",
				zap.String("user_id", sess.UserID),
				zap.String("op", "session.delete."+step.Name),
				zap.Error(err))
		default:
			c.log.Debug("account deletion step done", zap.String("user_id", sess.UserID), zap.String("step", step.Name))
		}
		c.metrics.DeletionSteps.WithLabelValues(step.Name, res.Status).Inc()
		report.Steps = append(report.Steps, res)
	}

	report.Completed = true
	c.log.Info("account deleted",
		zap.String("user_id", sess.UserID),
		zap.Strings("failed_steps", report.Failed()))
	return report
}

// runStep keeps a panicking step from aborting the rest of the teardown
func (c *Coordinator) runStep(ctx context.Context, step Step, sess *models.Session, report *DeletionReport) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return step.Run(ctx, sess, report)
}

// StepsNamed filters the pipeline down to the named steps, keeping pipeline order
func (c *Coordinator) StepsNamed(names ...string) []Step {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []Step
	for _, s := range c.DeletionSteps() {
		if want[s.Name] {
			out = append(out, s)
		}
	}
	return out
}

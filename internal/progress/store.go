// Package progress owns the per-user streak and word-count record.
package progress

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/example/lexiday/internal/metrics"
	"github.com/example/lexiday/internal/streak"
	"github.com/example/lexiday/pkg/logger"
	"github.com/example/lexiday/pkg/models"
)

// Repository is the persistence the store needs
type Repository interface {
	Get(ctx context.Context, userID string) (*models.UserProgress, error)
	CreateIfAbsent(ctx context.Context, p *models.UserProgress, now time.Time) (models.InsertOutcome, error)
	Upsert(ctx context.Context, p *models.UserProgress, now time.Time) error
	UpdateStreak(ctx context.Context, userID string, streak int, week models.WeekGrid, now time.Time) error
	Delete(ctx context.Context, userID string) error
}

// StatsSink mirrors the progress counters somewhere else, such as the profile
type StatsSink interface {
	SyncStats(ctx context.Context, sess *models.Session, totalWords, currentStreak int) bool
}

// Store implements the streak state machine on top of a Repository
type Store struct {
	repo    Repository
	sink    StatsSink
	clock   streak.Clock
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewStore creates a progress store
func NewStore(repo Repository, clock streak.Clock, log *zap.Logger) *Store {
	if clock == nil {
		clock = streak.SystemClock{}
	}
	return &Store{
		repo:    repo,
		clock:   clock,
		log:     logger.OrNop(log),
		metrics: metrics.New(),
	}
}

// MirrorTo makes streak corrections found on read also reach sink. Call it
// while wiring, before the store is shared.
func (s *Store) MirrorTo(sink StatsSink) {
	s.sink = sink
}

func (s *Store) zeroed(sess *models.Session, now time.Time) models.UserProgress {
	p := models.NewUserProgress(sess.ID())
	p.WeeklyProgress = streak.NewWeekGrid(now, sess.Loc())
	return *p
}

// GetProgress returns the user's progress as of now. A streak whose last day
// is older than yesterday reads as zero and the correction is written back
// when possible. Read failures return a zeroed record marked degraded.
func (s *Store) GetProgress(ctx context.Context, sess *models.Session) models.Result[models.UserProgress] {
	now := s.clock.Now()
	if sess.IsGuest() {
		return models.Guest(s.zeroed(sess, now))
	}

	stored, err := s.repo.Get(ctx, sess.UserID)
	if err != nil {
		s.log.Warn("failed to read progress, using defaults",
			zap.String("user_id", sess.UserID),
			zap.String("op", "progress.get"),
			zap.Error(err))
		s.metrics.StoreDegraded.WithLabelValues("progress.get").Inc()
		return models.Degraded(s.zeroed(sess, now), err)
	}
	if stored == nil {
		return models.OK(s.zeroed(sess, now))
	}

	loc := sess.Loc()
	current := *stored
	current.CurrentStreak = streak.EffectiveStreak(lastDate(stored), stored.CurrentStreak, now, loc)
	current.WeeklyProgress = streak.RefreshWeekGrid(stored.WeeklyProgress, now, loc)

	if current.CurrentStreak != stored.CurrentStreak || current.WeeklyProgress.WeekStart() != stored.WeeklyProgress.WeekStart() {
		// best effort: the corrected value is returned whether or not it lands
		if err := s.repo.UpdateStreak(ctx, sess.UserID, current.CurrentStreak, current.WeeklyProgress, now); err != nil {
			s.log.Warn("failed to persist streak correction",
				zap.String("user_id", sess.UserID),
				zap.String("op", "progress.correct"),
				zap.Error(err))
			s.metrics.StoreDegraded.WithLabelValues("progress.correct").Inc()
		} else if current.CurrentStreak != stored.CurrentStreak {
			s.log.Info("streak expired",
				zap.String("user_id", sess.UserID),
				zap.Int("previous", stored.CurrentStreak))
			if s.sink != nil {
				s.sink.SyncStats(ctx, sess, current.WordsLearned, current.CurrentStreak)
			}
		}
	}
	return models.OK(current)
}

// UpdateAfterLearning applies one completed lesson: the streak transition,
// one more word and today's mark on the weekly grid. It returns false when
// the record could not be read or written.
func (s *Store) UpdateAfterLearning(ctx context.Context, sess *models.Session) (models.UserProgress, bool) {
	now := s.clock.Now()
	if sess.IsGuest() {
		return s.zeroed(sess, now), false
	}

	stored, err := s.repo.Get(ctx, sess.UserID)
	if err != nil {
		s.log.Warn("failed to read progress before update",
			zap.String("user_id", sess.UserID),
			zap.String("op", "progress.update"),
			zap.Error(err))
		s.metrics.StoreDegraded.WithLabelValues("progress.update").Inc()
		return s.zeroed(sess, now), false
	}
	if stored == nil {
		stored = models.NewUserProgress(sess.UserID)
	}

	loc := sess.Loc()
	next := *stored
	next.CurrentStreak = streak.NextStreak(lastDate(stored), stored.CurrentStreak, now, loc)
	next.WordsLearned = stored.WordsLearned + 1
	today := streak.DateOf(now, loc)
	next.LastLearningDate = &today
	next.WeeklyProgress = streak.MarkCompleted(stored.WeeklyProgress, now, loc)

	if err := s.repo.Upsert(ctx, &next, now); err != nil {
		s.log.Warn("failed to save progress",
			zap.String("user_id", sess.UserID),
			zap.String("op", "progress.update"),
			zap.Error(err))
		s.metrics.StoreDegraded.WithLabelValues("progress.update").Inc()
		return next, false
	}

	s.log.Info("progress updated",
		zap.String("user_id", sess.UserID),
		zap.Int("words_learned", next.WordsLearned),
		zap.Int("streak", next.CurrentStreak))
	return next, true
}

// Init creates a zeroed record for a user who has none. An existing record
// is left untouched and reported as InsertAlreadyExisted.
func (s *Store) Init(ctx context.Context, sess *models.Session) (models.InsertOutcome, error) {
	if sess.IsGuest() {
		return models.InsertFailed, nil
	}
	now := s.clock.Now()
	p := s.zeroed(sess, now)
	return s.repo.CreateIfAbsent(ctx, &p, now)
}

// Delete removes the user's record
func (s *Store) Delete(ctx context.Context, sess *models.Session) error {
	if sess.IsGuest() {
		return nil
	}
	return s.repo.Delete(ctx, sess.UserID)
}

func lastDate(p *models.UserProgress) string {
	if p.LastLearningDate == nil {
		return ""
	}
	return *p.LastLearningDate
}

package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/example/lexiday/internal/ledger"
	"github.com/example/lexiday/internal/profile"
	"github.com/example/lexiday/internal/streak"
	"github.com/example/lexiday/pkg/logger"
	"github.com/example/lexiday/pkg/models"
)

// Notifier delivers a reminder to a chat
type Notifier interface {
	SendReminder(chatID int64, name string, streak int) error
}

// Profiles lists users that opted into reminders
type Profiles interface {
	ListReminderTargets(ctx context.Context) ([]models.UserProfile, error)
}

// Gate answers whether a user may still learn today
type Gate interface {
	CanLearnToday(ctx context.Context, sess *models.Session) models.Result[ledger.GateStatus]
}

// Progress reads the learning counters, applying any streak expiry
type Progress interface {
	GetProgress(ctx context.Context, sess *models.Session) models.Result[models.UserProgress]
}

// Task is a housekeeping job run on the maintenance interval
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Deps wires a Scheduler. Notifier may be nil, which turns reminders off
// while still running maintenance.
type Deps struct {
	Profiles            Profiles
	Gate                Gate
	Progress            Progress
	Notifier            Notifier
	Maintenance         []Task
	MaintenanceInterval time.Duration
	Clock               streak.Clock
	DefaultLocation     *time.Location
	Logger              *zap.Logger
}

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	scheduler  *gocron.Scheduler
	profiles   Profiles
	gate       Gate
	progress   Progress
	notifier   Notifier
	tasks      []Task
	interval   time.Duration
	clock      streak.Clock
	defaultLoc *time.Location
	log        *zap.Logger
}

// New creates a new scheduler instance
func New(deps Deps) *Scheduler {
	if deps.Clock == nil {
		deps.Clock = streak.SystemClock{}
	}
	if deps.DefaultLocation == nil {
		deps.DefaultLocation = time.UTC
	}
	if deps.MaintenanceInterval <= 0 {
		deps.MaintenanceInterval = 15 * time.Minute
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler:  s,
		profiles:   deps.Profiles,
		gate:       deps.Gate,
		progress:   deps.Progress,
		notifier:   deps.Notifier,
		tasks:      deps.Maintenance,
		interval:   deps.MaintenanceInterval,
		clock:      deps.Clock,
		defaultLoc: deps.DefaultLocation,
		log:        logger.OrNop(deps.Logger),
	}
}

// Start schedules the reminder check at the top of every hour and the
// maintenance tasks on their interval
func (s *Scheduler) Start() error {
	if s.notifier != nil {
		_, err := s.scheduler.Cron("0 * * * *").Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			if _, err := s.CheckAndSendReminders(ctx); err != nil {
				s.log.Error("reminder run failed", zap.Error(err))
			}
		})
		if err != nil {
			return fmt.Errorf("failed to schedule reminders: %w", err)
		}
	}
	if len(s.tasks) > 0 {
		_, err := s.scheduler.Every(s.interval).Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			s.RunMaintenance(ctx)
		})
		if err != nil {
			return fmt.Errorf("failed to schedule maintenance: %w", err)
		}
	}
	s.scheduler.StartAsync()
	return nil
}

// RunMaintenance runs every task once. A failing task does not stop the
// others; the number of failures is returned.
func (s *Scheduler) RunMaintenance(ctx context.Context) int {
	failed := 0
	for _, task := range s.tasks {
		if err := task.Run(ctx); err != nil {
			failed++
			s.log.Warn("maintenance task failed", zap.String("task", task.Name), zap.Error(err))
		}
	}
	return failed
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// CheckAndSendReminders messages every opted-in user whose local hour matches
// their reminder hour and who has not learned a word today. It returns the
// number of reminders sent.
func (s *Scheduler) CheckAndSendReminders(ctx context.Context) (int, error) {
	if s.notifier == nil {
		return 0, nil
	}
	targets, err := s.profiles.ListReminderTargets(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load reminder targets: %w", err)
	}

	now := s.clock.Now()
	sent := 0
	for _, p := range targets {
		loc := profile.Location(p, s.defaultLoc)
		if now.In(loc).Hour() != p.ReminderHour {
			continue
		}

		sess := &models.Session{UserID: p.UserID, Location: loc}
		gate := s.gate.CanLearnToday(ctx, sess)
		if gate.IsDegraded() {
			// An unknown gate state should not nag a user who may already be done.
			continue
		}
		if !gate.Value.CanLearn {
			continue
		}

		if err := s.notifier.SendReminder(p.TelegramChatID, p.FullName, s.currentStreak(ctx, sess)); err != nil {
			s.log.Warn("failed to send reminder",
				zap.String("user_id", p.UserID),
				zap.Int64("chat_id", p.TelegramChatID),
				zap.Error(err))
			continue
		}
		sent++
	}

	s.log.Info("reminders sent", zap.Int("count", sent), zap.Int("targets", len(targets)))
	return sent, nil
}

// currentStreak reads the streak from progress, which expires a lapsed streak
// on read. The profile copy can lag behind it, so it is not used. An unknown
// streak is reported as none.
func (s *Scheduler) currentStreak(ctx context.Context, sess *models.Session) int {
	if s.progress == nil {
		return 0
	}
	res := s.progress.GetProgress(ctx, sess)
	if res.Status != models.StatusOK {
		return 0
	}
	return res.Value.CurrentStreak
}

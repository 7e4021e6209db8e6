// Package profile owns user-level metadata used to personalize lessons.
package profile

import (
	"context"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/example/lexiday/internal/common/errors"
	"github.com/example/lexiday/internal/common/validation"
	"github.com/example/lexiday/internal/metrics"
	"github.com/example/lexiday/internal/streak"
	"github.com/example/lexiday/pkg/logger"
	"github.com/example/lexiday/pkg/models"
)

// Repository is the persistence the store needs
type Repository interface {
	Get(ctx context.Context, userID string) (*models.UserProfile, error)
	CreateIfAbsent(ctx context.Context, p *models.UserProfile, now time.Time) (models.InsertOutcome, error)
	Replace(ctx context.Context, p *models.UserProfile, now time.Time) error
	UpdateStats(ctx context.Context, userID string, totalWords, streak int, now time.Time) error
	Delete(ctx context.Context, userID string) error
}

// Seed carries what is known about a user when their profile is first created
type Seed struct {
	FullName string
	Email    string
	Level    models.Level
	Goals    []string
	Timezone string
}

// SettingsUpdate is a partial profile change. Nil fields are left alone.
type SettingsUpdate struct {
	FullName         *string  `json:"full_name" validate:"omitempty,min=1,max=100"`
	Level            *string  `json:"level" validate:"omitempty,oneof=Beginner Intermediate Advanced"`
	LearningGoals    []string `json:"learning_goals" validate:"omitempty,max=10,dive,min=1,max=40"`
	Timezone         *string  `json:"timezone" validate:"omitempty,min=1"`
	RemindersEnabled *bool    `json:"reminders_enabled"`
	ReminderHour     *int     `json:"reminder_hour" validate:"omitempty,min=0,max=23"`
	TelegramChatID   *int64   `json:"telegram_chat_id"`
}

// Store reads and writes profiles for the session's user
type Store struct {
	repo    Repository
	clock   streak.Clock
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewStore creates a profile store
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

// Guest is the profile shown when nobody is signed in
func Guest() models.UserProfile {
	return *models.DefaultProfile("", "Guest", "")
}

// Get returns the session user's profile. Guests, missing profiles and failed
// reads all get the guest default; the status tells them apart.
func (s *Store) Get(ctx context.Context, sess *models.Session) models.Result[models.UserProfile] {
	if sess.IsGuest() {
		return models.Guest(Guest())
	}
	p, err := s.repo.Get(ctx, sess.UserID)
	if err != nil {
		s.log.Warn("failed to read profile, using defaults",
			zap.String("user_id", sess.UserID),
			zap.String("op", "profile.get"),
			zap.Error(err))
		s.metrics.StoreDegraded.WithLabelValues("profile.get").Inc()
		return models.Degraded(Guest(), err)
	}
	if p == nil {
		return models.Degraded(Guest(), apperrors.NotFound("profile"))
	}
	return models.OK(*p)
}

// Exists reports whether the user already has a profile
func (s *Store) Exists(ctx context.Context, sess *models.Session) (bool, error) {
	if sess.IsGuest() {
		return false, nil
	}
	p, err := s.repo.Get(ctx, sess.UserID)
	if err != nil {
		return false, err
	}
	return p != nil, nil
}

// Init creates the default profile unless one exists
func (s *Store) Init(ctx context.Context, sess *models.Session, seed Seed) (models.InsertOutcome, error) {
	if sess.IsGuest() {
		return models.InsertFailed, nil
	}
	p := fromSeed(sess.UserID, seed)
	return s.repo.CreateIfAbsent(ctx, p, s.clock.Now())
}

// Reset puts an existing profile back to first-run defaults, creating it when missing.
func (s *Store) Reset(ctx context.Context, sess *models.Session, seed Seed) error {
	if sess.IsGuest() {
		return nil
	}
	now := s.clock.Now()
	p := fromSeed(sess.UserID, seed)
	outcome, err := s.repo.CreateIfAbsent(ctx, p, now)
	if err != nil {
		return err
	}
	if outcome == models.InsertCreated {
		return nil
	}
	return s.repo.Replace(ctx, p, now)
}

// UpdateSettings validates and applies a partial update
func (s *Store) UpdateSettings(ctx context.Context, sess *models.Session, upd SettingsUpdate) (models.UserProfile, error) {
	if sess.IsGuest() {
		return Guest(), apperrors.Unauthorized("sign in to change settings")
	}
	if errs := validation.Validate(upd); len(errs) > 0 {
		return models.UserProfile{}, apperrors.Validation("invalid profile settings", validation.Summary(errs))
	}
	if upd.Timezone != nil {
		if _, err := time.LoadLocation(*upd.Timezone); err != nil {
			return models.UserProfile{}, apperrors.Validation("invalid profile settings", "timezone: unknown location")
		}
	}

	p, err := s.repo.Get(ctx, sess.UserID)
	if err != nil {
		return models.UserProfile{}, apperrors.Internal("failed to load profile", err.Error())
	}
	if p == nil {
		return models.UserProfile{}, apperrors.NotFound("profile")
	}

	if upd.FullName != nil {
		p.FullName = *upd.FullName
	}
	if upd.Level != nil {
		p.Level = models.ParseLevel(*upd.Level)
	}
	if upd.LearningGoals != nil {
		p.LearningGoals = models.NewGoalSet(upd.LearningGoals...)
	}
	if upd.Timezone != nil {
		p.Timezone = *upd.Timezone
	}
	if upd.RemindersEnabled != nil {
		p.RemindersEnabled = *upd.RemindersEnabled
	}
	if upd.ReminderHour != nil {
		p.ReminderHour = *upd.ReminderHour
	}
	if upd.TelegramChatID != nil {
		p.TelegramChatID = *upd.TelegramChatID
	}

	if err := s.repo.Replace(ctx, p, s.clock.Now()); err != nil {
		s.log.Warn("failed to save profile settings",
			zap.String("user_id", sess.UserID),
			zap.String("op", "profile.update"),
			zap.Error(err))
		return models.UserProfile{}, apperrors.Internal("failed to save profile", err.Error())
	}
	return *p, nil
}

// SyncStats mirrors the progress counters into the profile. Failures are
// logged and reported as false.
func (s *Store) SyncStats(ctx context.Context, sess *models.Session, totalWords, currentStreak int) bool {
	if sess.IsGuest() {
		return false
	}
	if err := s.repo.UpdateStats(ctx, sess.UserID, totalWords, currentStreak, s.clock.Now()); err != nil {
		s.log.Warn("failed to sync profile stats",
			zap.String("user_id", sess.UserID),
			zap.String("op", "profile.sync"),
			zap.Error(err))
		s.metrics.StoreDegraded.WithLabelValues("profile.sync").Inc()
		return false
	}
	return true
}

// Delete removes the user's profile
func (s *Store) Delete(ctx context.Context, sess *models.Session) error {
	if sess.IsGuest() {
		return nil
	}
	return s.repo.Delete(ctx, sess.UserID)
}

// Location resolves the profile's timezone, falling back to def
func Location(p models.UserProfile, def *time.Location) *time.Location {
	if def == nil {
		def = time.UTC
	}
	if p.Timezone == "" {
		return def
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return def
	}
	return loc
}

func fromSeed(userID string, seed Seed) *models.UserProfile {
	p := models.DefaultProfile(userID, seed.FullName, seed.Email)
	if seed.Level.Valid() {
		p.Level = seed.Level
	}
	p.LearningGoals = models.NewGoalSet(seed.Goals...)
	if seed.Timezone != "" {
		p.Timezone = seed.Timezone
	}
	return p
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/lexiday/pkg/models"
)

const profileColumns = `user_id, full_name, username, email, level, learning_goals, total_words, current_streak,
	is_new_user, timezone, reminders_enabled, reminder_hour, telegram_chat_id, created_at, updated_at`

// ProfileRepository handles database operations for user profiles
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository creates a new repository instance
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Get returns a profile by user id, or nil when there is none
func (r *ProfileRepository) Get(ctx context.Context, userID string) (*models.UserProfile, error) {
	var profile models.UserProfile
	query := r.db.Rebind("SELECT " + profileColumns + " FROM user_profiles WHERE user_id = ?")
	err := r.db.GetContext(ctx, &profile, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user profile: %w", err)
	}
	return &profile, nil
}

// CreateIfAbsent inserts a profile unless one already exists for the user
func (r *ProfileRepository) CreateIfAbsent(ctx context.Context, p *models.UserProfile, now time.Time) (models.InsertOutcome, error) {
	query := r.db.Rebind(`
		INSERT INTO user_profiles (` + profileColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO NOTHING
	`)
	res, err := r.db.ExecContext(ctx, query, r.args(p, now, now)...)
	if err != nil {
		return models.InsertFailed, fmt.Errorf("failed to create user profile: %w", err)
	}
	o, err := outcome(res)
	if err == nil && o == models.InsertCreated {
		p.CreatedAt = now.UTC()
		p.UpdatedAt = now.UTC()
	}
	return o, err
}

// Replace overwrites every column of an existing profile, keeping created_at
func (r *ProfileRepository) Replace(ctx context.Context, p *models.UserProfile, now time.Time) error {
	query := r.db.Rebind(`
		UPDATE user_profiles SET
			full_name = ?,
			username = ?,
			email = ?,
			level = ?,
			learning_goals = ?,
			total_words = ?,
			current_streak = ?,
			is_new_user = ?,
			timezone = ?,
			reminders_enabled = ?,
			reminder_hour = ?,
			telegram_chat_id = ?,
			updated_at = ?
		WHERE user_id = ?
	`)
	res, err := r.db.ExecContext(ctx, query,
		p.FullName,
		p.Username,
		p.Email,
		p.Level,
		p.LearningGoals,
		p.TotalWords,
		p.CurrentStreak,
		p.IsNewUser,
		p.Timezone,
		p.RemindersEnabled,
		p.ReminderHour,
		p.TelegramChatID,
		now.UTC(),
		p.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user profile: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user profile %s not found", p.UserID)
	}
	p.UpdatedAt = now.UTC()
	return nil
}

// UpdateStats mirrors the progress counters into the profile
func (r *ProfileRepository) UpdateStats(ctx context.Context, userID string, totalWords, streak int, now time.Time) error {
	query := r.db.Rebind(`
		UPDATE user_profiles SET
			total_words = ?,
			current_streak = ?,
			is_new_user = ?,
			updated_at = ?
		WHERE user_id = ?
	`)
	_, err := r.db.ExecContext(ctx, query, totalWords, streak, false, now.UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to update profile stats: %w", err)
	}
	return nil
}

// ListReminderTargets returns profiles that opted into Telegram reminders
func (r *ProfileRepository) ListReminderTargets(ctx context.Context) ([]models.UserProfile, error) {
	profiles := []models.UserProfile{}
	query := r.db.Rebind("SELECT " + profileColumns + " FROM user_profiles WHERE reminders_enabled = ? AND telegram_chat_id <> 0")
	if err := r.db.SelectContext(ctx, &profiles, query, true); err != nil {
		return nil, fmt.Errorf("failed to list reminder targets: %w", err)
	}
	return profiles, nil
}

// Delete removes a user's profile
func (r *ProfileRepository) Delete(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM user_profiles WHERE user_id = ?"), userID)
	if err != nil {
		return fmt.Errorf("failed to delete user profile: %w", err)
	}
	return nil
}

func (r *ProfileRepository) args(p *models.UserProfile, createdAt, updatedAt time.Time) []interface{} {
	return []interface{}{
		p.UserID,
		p.FullName,
		p.Username,
		p.Email,
		p.Level,
		p.LearningGoals,
		p.TotalWords,
		p.CurrentStreak,
		p.IsNewUser,
		p.Timezone,
		p.RemindersEnabled,
		p.ReminderHour,
		p.TelegramChatID,
		createdAt.UTC(),
		updatedAt.UTC(),
	}
}

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

// ProgressRepository handles database operations for user progress
type ProgressRepository struct {
	db *sqlx.DB
}

// NewProgressRepository creates a new repository instance
func NewProgressRepository(db *sqlx.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// Get returns the progress record for a user, or nil when there is none
func (r *ProgressRepository) Get(ctx context.Context, userID string) (*models.UserProgress, error) {
	var progress models.UserProgress
	query := r.db.Rebind(`
		SELECT user_id, words_learned, current_streak, last_learning_date, weekly_progress, created_at, updated_at
		FROM user_progress
		WHERE user_id = ?
	`)
	err := r.db.GetContext(ctx, &progress, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user progress: %w", err)
	}
	return &progress, nil
}

// CreateIfAbsent inserts a zeroed record unless one already exists
func (r *ProgressRepository) CreateIfAbsent(ctx context.Context, progress *models.UserProgress, now time.Time) (models.InsertOutcome, error) {
	query := r.db.Rebind(`
		INSERT INTO user_progress (
			user_id, words_learned, current_streak, last_learning_date, weekly_progress, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO NOTHING
	`)
	res, err := r.db.ExecContext(ctx, query,
		progress.UserID,
		progress.WordsLearned,
		progress.CurrentStreak,
		progress.LastLearningDate,
		progress.WeeklyProgress,
		now.UTC(),
		now.UTC(),
	)
	if err != nil {
		return models.InsertFailed, fmt.Errorf("failed to create user progress: %w", err)
	}
	return outcome(res)
}

// Upsert writes the full progress record
func (r *ProgressRepository) Upsert(ctx context.Context, progress *models.UserProgress, now time.Time) error {
	query := r.db.Rebind(`
		INSERT INTO user_progress (
			user_id, words_learned, current_streak, last_learning_date, weekly_progress, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			words_learned = excluded.words_learned,
			current_streak = excluded.current_streak,
			last_learning_date = excluded.last_learning_date,
			weekly_progress = excluded.weekly_progress,
			updated_at = excluded.updated_at
	`)
	_, err := r.db.ExecContext(ctx, query,
		progress.UserID,
		progress.WordsLearned,
		progress.CurrentStreak,
		progress.LastLearningDate,
		progress.WeeklyProgress,
		now.UTC(),
		now.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user progress: %w", err)
	}
	progress.UpdatedAt = now.UTC()
	return nil
}

// UpdateStreak rewrites only the streak and the weekly grid
func (r *ProgressRepository) UpdateStreak(ctx context.Context, userID string, streak int, week models.WeekGrid, now time.Time) error {
	query := r.db.Rebind(`
		UPDATE user_progress SET
			current_streak = ?,
			weekly_progress = ?,
			updated_at = ?
		WHERE user_id = ?
	`)
	_, err := r.db.ExecContext(ctx, query, streak, week, now.UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to update streak: %w", err)
	}
	return nil
}

// Delete removes a user's progress record
func (r *ProgressRepository) Delete(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM user_progress WHERE user_id = ?"), userID)
	if err != nil {
		return fmt.Errorf("failed to delete user progress: %w", err)
	}
	return nil
}

// outcome maps the affected row count of an ON CONFLICT DO NOTHING insert
func outcome(res sql.Result) (models.InsertOutcome, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return models.InsertFailed, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return models.InsertAlreadyExisted, nil
	}
	return models.InsertCreated, nil
}

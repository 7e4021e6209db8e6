package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/example/lexiday/pkg/models"
)

// LearnedWordRepository handles database operations for learned words
type LearnedWordRepository struct {
	db *sqlx.DB
}

// NewLearnedWordRepository creates a new repository instance
func NewLearnedWordRepository(db *sqlx.DB) *LearnedWordRepository {
	return &LearnedWordRepository{db: db}
}

// InsertIfAbsent records a learned word. A second insert for the same
// (user, word) pair reports InsertAlreadyExisted and writes nothing.
func (r *LearnedWordRepository) InsertIfAbsent(ctx context.Context, word *models.LearnedWord) (models.InsertOutcome, error) {
	word.Word = strings.ToLower(strings.TrimSpace(word.Word))
	query := r.db.Rebind(`
		INSERT INTO learned_words (user_id, word, meaning, emoji, learned_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, word) DO NOTHING
	`)
	res, err := r.db.ExecContext(ctx, query,
		word.UserID,
		word.Word,
		word.Meaning,
		word.Emoji,
		word.LearnedDate,
		word.CreatedAt.UTC(),
	)
	if err != nil {
		return models.InsertFailed, fmt.Errorf("failed to insert learned word: %w", err)
	}
	return outcome(res)
}

// ListByUser returns all words of a user, newest first
func (r *LearnedWordRepository) ListByUser(ctx context.Context, userID string) ([]models.LearnedWord, error) {
	words := []models.LearnedWord{}
	query := r.db.Rebind(`
		SELECT id, user_id, word, meaning, emoji, learned_date, created_at
		FROM learned_words
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
	`)
	if err := r.db.SelectContext(ctx, &words, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list learned words: %w", err)
	}
	return words, nil
}

// DeleteByUser removes every learned word of a user
func (r *LearnedWordRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM learned_words WHERE user_id = ?"), userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete learned words: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

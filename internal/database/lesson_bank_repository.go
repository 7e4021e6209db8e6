package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/lexiday/pkg/models"
)

// LessonBankRepository handles database operations for the offline lesson bank
type LessonBankRepository struct {
	db *sqlx.DB
}

// NewLessonBankRepository creates a new repository instance
func NewLessonBankRepository(db *sqlx.DB) *LessonBankRepository {
	return &LessonBankRepository{db: db}
}

// Upsert creates or updates a bank entry keyed by its word.
// It reports whether a new row was created.
func (r *LessonBankRepository) Upsert(ctx context.Context, e *models.BankEntry, now time.Time) (bool, error) {
	e.Word = strings.ToLower(strings.TrimSpace(e.Word))
	if !e.Level.Valid() {
		e.Level = models.LevelBeginner
	}

	var existing int
	err := r.db.GetContext(ctx, &existing, r.db.Rebind("SELECT COUNT(*) FROM lesson_bank WHERE word = ?"), e.Word)
	if err != nil {
		return false, fmt.Errorf("failed to check lesson bank: %w", err)
	}

	query := r.db.Rebind(`
		INSERT INTO lesson_bank (word, definition, story, emoji, level, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (word) DO UPDATE SET
			definition = excluded.definition,
			story = excluded.story,
			emoji = excluded.emoji,
			level = excluded.level
	`)
	if _, err := r.db.ExecContext(ctx, query, e.Word, e.Definition, e.Story, e.Emoji, e.Level, now.UTC()); err != nil {
		return false, fmt.Errorf("failed to upsert lesson bank entry: %w", err)
	}
	return existing == 0, nil
}

// RandomExcluding picks a random entry of the given level whose word is not in exclude.
// It returns nil when nothing matches.
func (r *LessonBankRepository) RandomExcluding(ctx context.Context, level models.Level, exclude []string) (*models.BankEntry, error) {
	var (
		query string
		args  []interface{}
		err   error
	)
	if len(exclude) == 0 {
		query = "SELECT id, word, definition, story, emoji, level, created_at FROM lesson_bank WHERE level = ? ORDER BY RANDOM() LIMIT 1"
		args = []interface{}{level}
	} else {
		lowered := make([]string, len(exclude))
		for i, w := range exclude {
			lowered[i] = strings.ToLower(strings.TrimSpace(w))
		}
		query, args, err = sqlx.In(
			"SELECT id, word, definition, story, emoji, level, created_at FROM lesson_bank WHERE level = ? AND word NOT IN (?) ORDER BY RANDOM() LIMIT 1",
			level, lowered,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to build lesson bank query: %w", err)
		}
	}

	var entry models.BankEntry
	err = r.db.GetContext(ctx, &entry, r.db.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pick lesson bank entry: %w", err)
	}
	return &entry, nil
}

// Count returns the number of bank entries
func (r *LessonBankRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM lesson_bank"); err != nil {
		return 0, fmt.Errorf("failed to count lesson bank: %w", err)
	}
	return n, nil
}

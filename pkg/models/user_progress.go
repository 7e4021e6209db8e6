package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// UserProgress is the per-user streak and word-count record
type UserProgress struct {
	UserID           string    `json:"user_id" db:"user_id"`
	WordsLearned     int       `json:"words_learned" db:"words_learned"`
	CurrentStreak    int       `json:"current_streak" db:"current_streak"`
	LastLearningDate *string   `json:"last_learning_date" db:"last_learning_date"` // YYYY-MM-DD, local calendar date
	WeeklyProgress   WeekGrid  `json:"weekly_progress" db:"weekly_progress"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// NewUserProgress returns a zeroed progress record for a user
func NewUserProgress(userID string) *UserProgress {
	return &UserProgress{
		UserID:         userID,
		WeeklyProgress: WeekGrid{},
	}
}

// WeekDay is one cell of the rolling weekly completion grid
type WeekDay struct {
	Day       string `json:"day"`  // Mon, Tue, ...
	Date      string `json:"date"` // day of month, e.g. "18"
	ISODate   string `json:"iso_date"`
	Completed bool   `json:"completed"`
	IsToday   bool   `json:"is_today"`
}

// WeekGrid holds the seven days of the current calendar week, Monday first.
// It is stored as a JSON text column.
type WeekGrid []WeekDay

// Value implements driver.Valuer
func (w WeekGrid) Value() (driver.Value, error) {
	if w == nil {
		return "[]", nil
	}
	b, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal weekly progress: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (w *WeekGrid) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*w = WeekGrid{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported weekly progress type %T", src)
	}
	if len(raw) == 0 {
		*w = WeekGrid{}
		return nil
	}
	return json.Unmarshal(raw, w)
}

// WeekStart returns the ISO date of the grid's first day, or "" for an empty grid
func (w WeekGrid) WeekStart() string {
	if len(w) == 0 {
		return ""
	}
	return w[0].ISODate
}

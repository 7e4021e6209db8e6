package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Level is the learner's placement level
type Level string

const (
	LevelBeginner     Level = "Beginner"
	LevelIntermediate Level = "Intermediate"
	LevelAdvanced     Level = "Advanced"
)

// Valid reports whether l is one of the known levels
func (l Level) Valid() bool {
	switch l {
	case LevelBeginner, LevelIntermediate, LevelAdvanced:
		return true
	}
	return false
}

// ParseLevel parses a level name case-insensitively, defaulting to Beginner
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "intermediate":
		return LevelIntermediate
	case "advanced":
		return LevelAdvanced
	default:
		return LevelBeginner
	}
}

// UserProfile holds user-level metadata used to personalize lessons
type UserProfile struct {
	UserID           string    `json:"user_id" db:"user_id"`
	FullName         string    `json:"full_name" db:"full_name"`
	Username         string    `json:"username" db:"username"`
	Email            string    `json:"email" db:"email"`
	Level            Level     `json:"level" db:"level"`
	LearningGoals    GoalSet   `json:"learning_goals" db:"learning_goals"`
	TotalWords       int       `json:"total_words" db:"total_words"`
	CurrentStreak    int       `json:"current_streak" db:"current_streak"`
	IsNewUser        bool      `json:"is_new_user" db:"is_new_user"`
	Timezone         string    `json:"timezone" db:"timezone"`
	RemindersEnabled bool      `json:"reminders_enabled" db:"reminders_enabled"`
	ReminderHour     int       `json:"reminder_hour" db:"reminder_hour"`
	TelegramChatID   int64     `json:"telegram_chat_id,omitempty" db:"telegram_chat_id"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// DefaultProfile returns the profile created on first sign-in
func DefaultProfile(userID, fullName, email string) *UserProfile {
	username := email
	if i := strings.Index(email, "@"); i > 0 {
		username = email[:i]
	}
	return &UserProfile{
		UserID:        userID,
		FullName:      fullName,
		Username:      username,
		Email:         email,
		Level:         LevelBeginner,
		LearningGoals: GoalSet{},
		IsNewUser:     true,
		Timezone:      "UTC",
		ReminderHour:  9,
	}
}

// GoalSet is a set of learning goal ids stored as a sorted JSON array
type GoalSet []string

// NewGoalSet trims, drops empties and de-duplicates goal ids
func NewGoalSet(goals ...string) GoalSet {
	seen := make(map[string]bool, len(goals))
	set := make(GoalSet, 0, len(goals))
	for _, g := range goals {
		g = strings.ToLower(strings.TrimSpace(g))
		if g == "" || seen[g] {
			continue
		}
		seen[g] = true
		set = append(set, g)
	}
	sort.Strings(set)
	return set
}

// Value implements driver.Valuer
func (g GoalSet) Value() (driver.Value, error) {
	if g == nil {
		return "[]", nil
	}
	b, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal learning goals: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner
func (g *GoalSet) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*g = GoalSet{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported learning goals type %T", src)
	}
	if len(raw) == 0 {
		*g = GoalSet{}
		return nil
	}
	return json.Unmarshal(raw, g)
}

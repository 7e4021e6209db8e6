package models

import "time"

// LearnedWord is a word a user has completed all four lesson steps for
type LearnedWord struct {
	ID          int64     `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	Word        string    `json:"word" db:"word"` // normalized lowercase
	Meaning     string    `json:"meaning" db:"meaning"`
	Emoji       string    `json:"emoji" db:"emoji"`
	LearnedDate string    `json:"learned_date" db:"learned_date"` // YYYY-MM-DD, local calendar date
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// InsertOutcome is the result of an idempotent insert
type InsertOutcome int

const (
	// InsertFailed means the write did not land
	InsertFailed InsertOutcome = iota
	// InsertCreated means a new record was written
	InsertCreated
	// InsertAlreadyExisted means an identical key was already present
	InsertAlreadyExisted
)

func (o InsertOutcome) String() string {
	switch o {
	case InsertCreated:
		return "created"
	case InsertAlreadyExisted:
		return "already_existed"
	default:
		return "failed"
	}
}

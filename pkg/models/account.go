package models

import "time"

// Account is an identity-provider record
type Account struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	FullName     string    `json:"full_name" db:"full_name"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// BankEntry is an offline lesson used when the generator is unavailable
type BankEntry struct {
	ID         int64     `json:"id" db:"id"`
	Word       string    `json:"word" db:"word"`
	Definition string    `json:"definition" db:"definition"`
	Story      string    `json:"story" db:"story"`
	Emoji      string    `json:"emoji" db:"emoji"`
	Level      Level     `json:"level" db:"level"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Payload converts the entry into a raw lesson payload with no steps
func (b *BankEntry) Payload() *LessonPayload {
	return &LessonPayload{
		TargetWord: b.Word,
		Definition: b.Definition,
		Story:      b.Story,
		Emoji:      b.Emoji,
	}
}

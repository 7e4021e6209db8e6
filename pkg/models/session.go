package models

import "time"

// Session binds store operations to one user. A nil Session or one with an
// empty UserID is guest mode. Sessions are replaced on auth changes, never mutated.
type Session struct {
	UserID    string         `json:"user_id"`
	Email     string         `json:"email,omitempty"`
	Token     string         `json:"-"`
	Location  *time.Location `json:"-"`
	StartedAt time.Time      `json:"started_at"`
}

// GuestSession returns a session with no persistent user
func GuestSession(loc *time.Location) *Session {
	return &Session{Location: loc}
}

// IsGuest reports whether the session has no persistent user id
func (s *Session) IsGuest() bool {
	return s == nil || s.UserID == ""
}

// ID returns the user id, "" for guests
func (s *Session) ID() string {
	if s == nil {
		return ""
	}
	return s.UserID
}

// Loc returns the session's calendar location, UTC when unset
func (s *Session) Loc() *time.Location {
	if s == nil || s.Location == nil {
		return time.UTC
	}
	return s.Location
}

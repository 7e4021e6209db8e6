package streak

import "time"

// Clock supplies the current instant
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

// Now returns time.Now()
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant. Used by tests and tools.
type FixedClock struct {
	T time.Time
}

// Now returns the fixed instant
func (c FixedClock) Now() time.Time { return c.T }

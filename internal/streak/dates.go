// Package streak holds the pure calendar arithmetic behind daily limits and
// learning streaks. Nothing in here touches storage.
package streak

import (
	"fmt"
	"time"
)

// DateLayout is the storage format of calendar dates
const DateLayout = "2006-01-02"

// DateOf returns the calendar date of t in loc
func DateOf(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DateLayout)
}

// StartOfDay returns local midnight of the day containing t
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// NextMidnight returns the first instant of the local day after t
func NextMidnight(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, loc)
}

// CountdownToMidnight returns how long until the next local midnight
func CountdownToMidnight(t time.Time, loc *time.Location) time.Duration {
	return NextMidnight(t, loc).Sub(t)
}

// Yesterday returns the calendar date of the day before t
func Yesterday(t time.Time, loc *time.Location) string {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day()-1, 12, 0, 0, 0, loc).Format(DateLayout)
}

// IsToday reports whether date is the local calendar day of now
func IsToday(date string, now time.Time, loc *time.Location) bool {
	return date != "" && date == DateOf(now, loc)
}

// IsYesterday reports whether date is the local calendar day before now
func IsYesterday(date string, now time.Time, loc *time.Location) bool {
	return date != "" && date == Yesterday(now, loc)
}

// SameDay reports whether a and b fall on the same local calendar day
func SameDay(a, b time.Time, loc *time.Location) bool {
	return DateOf(a, loc) == DateOf(b, loc)
}

// FormatCountdown renders a countdown as HH:MM:SS
func FormatCountdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs%3600/60, secs%60)
}

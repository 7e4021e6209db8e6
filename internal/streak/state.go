package streak

import "time"

// NextStreak is the transition applied when a lesson is completed.
//
//	no previous date         -> 1
//	last date is today       -> unchanged
//	last date is yesterday   -> current + 1
//	anything else            -> 1
func NextStreak(lastDate string, current int, now time.Time, loc *time.Location) int {
	switch {
	case lastDate == "":
		return 1
	case IsToday(lastDate, now, loc):
		if current < 1 {
			return 1
		}
		return current
	case IsYesterday(lastDate, now, loc):
		return current + 1
	default:
		return 1
	}
}

// EffectiveStreak is the streak as it should be read at now: a stored streak
// survives only while its last date is today or yesterday.
func EffectiveStreak(lastDate string, stored int, now time.Time, loc *time.Location) int {
	if stored <= 0 {
		return 0
	}
	if IsToday(lastDate, now, loc) || IsYesterday(lastDate, now, loc) {
		return stored
	}
	return 0
}

// AlreadyCountedToday reports whether a completion today would leave the streak unchanged
func AlreadyCountedToday(lastDate string, now time.Time, loc *time.Location) bool {
	return IsToday(lastDate, now, loc)
}

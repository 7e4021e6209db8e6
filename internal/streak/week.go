package streak

import (
	"time"

	"github.com/example/lexiday/pkg/models"
)

// WeekStart returns local midnight of the Monday of t's week
func WeekStart(t time.Time, loc *time.Location) time.Time {
	day := StartOfDay(t, loc)
	offset := (int(day.Weekday()) + 6) % 7
	return time.Date(day.Year(), day.Month(), day.Day()-offset, 0, 0, 0, 0, loc)
}

// NewWeekGrid builds the Monday..Sunday grid for now's week with nothing completed
func NewWeekGrid(now time.Time, loc *time.Location) models.WeekGrid {
	start := WeekStart(now, loc)
	today := DateOf(now, loc)
	grid := make(models.WeekGrid, 7)
	for i := range grid {
		d := time.Date(start.Year(), start.Month(), start.Day()+i, 12, 0, 0, 0, loc)
		iso := d.Format(DateLayout)
		grid[i] = models.WeekDay{
			Day:     d.Format("Mon"),
			Date:    d.Format("2"),
			ISODate: iso,
			IsToday: iso == today,
		}
	}
	return grid
}

// RefreshWeekGrid returns a grid for now's week. Completion marks are kept
// when the stored grid belongs to the same week; otherwise a fresh grid is built.
// The input is never modified.
func RefreshWeekGrid(stored models.WeekGrid, now time.Time, loc *time.Location) models.WeekGrid {
	grid := NewWeekGrid(now, loc)
	if stored.WeekStart() != grid.WeekStart() {
		return grid
	}
	done := make(map[string]bool, len(stored))
	for _, d := range stored {
		if d.Completed {
			done[d.ISODate] = true
		}
	}
	for i := range grid {
		grid[i].Completed = done[grid[i].ISODate]
	}
	return grid
}

// MarkCompleted returns a refreshed grid with now's day marked completed
func MarkCompleted(stored models.WeekGrid, now time.Time, loc *time.Location) models.WeekGrid {
	grid := RefreshWeekGrid(stored, now, loc)
	today := DateOf(now, loc)
	for i := range grid {
		if grid[i].ISODate == today {
			grid[i].Completed = true
		}
	}
	return grid
}

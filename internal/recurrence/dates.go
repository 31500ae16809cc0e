package recurrence

import (
	"time"

	"github.com/jinzhu/now"
)

const dateLayout = "2006-01-02"

// Weeks start on Monday. All date math happens in the location of the reference instant.
var calendar = &now.Config{WeekStartDay: time.Monday}

func startOfDay(t time.Time) time.Time {
	return calendar.With(t).BeginningOfDay()
}

func weekStart(t time.Time) time.Time {
	return calendar.With(t).BeginningOfWeek()
}

// weekEndDay is the Sunday that closes t's week, at midnight.
func weekEndDay(t time.Time) time.Time {
	return startOfDay(calendar.With(t).EndOfWeek())
}

func addDays(t time.Time, days int) time.Time {
	return t.AddDate(0, 0, days)
}

// daysBetween counts calendar days from from's date to to's date in to's location.
func daysBetween(from, to time.Time) int {
	fy, fm, fd := from.In(to.Location()).Date()
	ty, tm, td := to.Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

func sameDay(a, b time.Time) bool {
	return daysBetween(a, b) == 0
}

func sameWeek(a, b time.Time) bool {
	return weekStart(a.In(b.Location())).Equal(weekStart(b))
}

// atClockOf returns day's calendar date at clock's time of day.
func atClockOf(day, clock time.Time) time.Time {
	c := clock.In(day.Location())
	y, m, d := day.Date()
	return time.Date(y, m, d, c.Hour(), c.Minute(), c.Second(), c.Nanosecond(), day.Location())
}

// clampToToday moves next onto today when it falls on or before today.
func clampToToday(next, today time.Time) time.Time {
	if daysBetween(next, today) >= 0 {
		return atClockOf(today, next)
	}
	return next
}

// DaysLeftInWeek counts today plus the remaining days up to and including Sunday.
func DaysLeftInWeek(today time.Time) int {
	if today.Weekday() == time.Sunday {
		return 1
	}
	return 8 - int(today.Weekday())
}

package model

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock hour and minute. The zero value is "not set".
type TimeOfDay struct {
	Hour   int
	Minute int
	Valid  bool
}

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay{Hour: hour, Minute: minute, Valid: true}
}

// ClockOf returns the time-of-day component of t.
func ClockOf(t time.Time) TimeOfDay {
	return NewTimeOfDay(t.Hour(), t.Minute())
}

// ParseTimeOfDay parses an HH:MM string.
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 {
		return TimeOfDay{}, fmt.Errorf("invalid time %q, expected HH:MM", raw)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q", raw)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q", raw)
	}
	return NewTimeOfDay(hour, minute), nil
}

func (c TimeOfDay) String() string {
	if !c.Valid {
		return ""
	}
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// On places the time of day on the calendar date of day, in day's location.
func (c TimeOfDay) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, c.Hour, c.Minute, 0, 0, day.Location())
}

func (c TimeOfDay) Value() (driver.Value, error) {
	if !c.Valid {
		return nil, nil
	}
	return c.String(), nil
}

func (c *TimeOfDay) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*c = TimeOfDay{}
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("scan time of day: unsupported type %T", src)
	}
	if raw == "" {
		*c = TimeOfDay{}
		return nil
	}
	parsed, err := ParseTimeOfDay(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

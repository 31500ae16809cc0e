package recurrence

import (
	"fmt"
	"slices"
	"time"

	"github.com/samber/lo"

	"routine-planner/internal/model"
)

// Schedule is the initial state of a freshly created repeating task.
type Schedule struct {
	DueDate time.Time
	Rule    model.RepetitionRule
}

// NewSchedule builds the rule and first due date for a repeating task starting at taskStart.
// When dueTime is not set the time of day of taskStart is used.
func NewSchedule(mode model.RecurrenceMode, taskStart time.Time, dueTime model.TimeOfDay) (Schedule, error) {
	if err := ValidateMode(mode); err != nil {
		return Schedule{}, err
	}
	if !dueTime.Valid {
		dueTime = model.ClockOf(taskStart)
	}

	today := startOfDay(taskStart)
	switch m := mode.(type) {
	case model.Interval:
		return Schedule{
			DueDate: dueTime.On(today),
			Rule:    model.RepetitionRule{Mode: m, StartDate: today},
		}, nil
	case model.TimesPerWeek:
		return Schedule{
			DueDate: dueTime.On(today),
			Rule:    model.RepetitionRule{Mode: m, StartDate: weekStart(today)},
		}, nil
	case model.DaysOfWeek:
		days := normalizeDays(m.Days)
		weekday := today.Weekday()
		offset := int(days[0]) + 7 - int(weekday)
		if next, ok := lo.Find(days, func(d time.Weekday) bool { return d >= weekday }); ok {
			offset = int(next) - int(weekday)
		}
		// The anchor follows the first configured weekday, not the current week.
		first := addDays(today, int(days[0])-int(weekday))
		return Schedule{
			DueDate: dueTime.On(addDays(today, offset)),
			Rule:    model.RepetitionRule{Mode: model.DaysOfWeek{Days: days}, StartDate: weekStart(first)},
		}, nil
	}
	return Schedule{}, fmt.Errorf("%w: unsupported mode %T", ErrConfiguration, mode)
}

// ValidateMode checks the payload of a recurrence mode.
func ValidateMode(mode model.RecurrenceMode) error {
	switch m := mode.(type) {
	case nil:
		return fmt.Errorf("%w: no recurrence mode given", ErrConfiguration)
	case model.Interval:
		if m.Days <= 0 {
			return fmt.Errorf("%w: interval must be a positive number of days", ErrConfiguration)
		}
	case model.DaysOfWeek:
		if len(m.Days) == 0 {
			return fmt.Errorf("%w: at least one weekday is required", ErrConfiguration)
		}
		for _, d := range m.Days {
			if d < time.Sunday || d > time.Saturday {
				return fmt.Errorf("%w: weekday %d out of range 0-6", ErrConfiguration, d)
			}
		}
	case model.TimesPerWeek:
		if m.Count <= 0 || m.Count > 7 {
			return fmt.Errorf("%w: times per week must be between 1 and 7", ErrConfiguration)
		}
	}
	return nil
}

func normalizeDays(days []time.Weekday) []time.Weekday {
	out := lo.Uniq(days)
	slices.Sort(out)
	return out
}

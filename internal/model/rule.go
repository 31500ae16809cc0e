package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRule is returned when a stored rule has zero or several recurrence modes.
var ErrInvalidRule = errors.New("invalid repetition rule")

// ModeKind names a recurrence mode.
type ModeKind string

const (
	ModeInterval     ModeKind = "interval"
	ModeDaysOfWeek   ModeKind = "daysOfWeek"
	ModeTimesPerWeek ModeKind = "timesPerWeek"
)

// RecurrenceMode is implemented only by Interval, DaysOfWeek and TimesPerWeek.
type RecurrenceMode interface {
	Kind() ModeKind
	isRecurrenceMode()
}

// Interval repeats every Days days counted from the rule's start date.
type Interval struct {
	Days int
}

// DaysOfWeek repeats on the listed weekdays.
type DaysOfWeek struct {
	Days []time.Weekday
}

// TimesPerWeek asks for Count completions on any days of a Monday-based week.
type TimesPerWeek struct {
	Count int
}

func (Interval) Kind() ModeKind     { return ModeInterval }
func (DaysOfWeek) Kind() ModeKind   { return ModeDaysOfWeek }
func (TimesPerWeek) Kind() ModeKind { return ModeTimesPerWeek }

func (Interval) isRecurrenceMode()     {}
func (DaysOfWeek) isRecurrenceMode()   {}
func (TimesPerWeek) isRecurrenceMode() {}

// RepetitionRule holds the recurrence mode and the per-period state of a repeating task.
// A rule with a nil Mode means the task has no rule.
type RepetitionRule struct {
	Mode                      RecurrenceMode
	StartDate                 time.Time
	Completions               int
	CompletedAt               []time.Time
	LastInstanceCompletedDate *time.Time
}

func (r RepetitionRule) IsZero() bool {
	return r.Mode == nil
}

func (r RepetitionRule) Kind() ModeKind {
	if r.Mode == nil {
		return ""
	}
	return r.Mode.Kind()
}

// Capacity is the number of completions that close a week; zero for interval rules.
func (r RepetitionRule) Capacity() int {
	switch m := r.Mode.(type) {
	case DaysOfWeek:
		return len(m.Days)
	case TimesPerWeek:
		return m.Count
	default:
		return 0
	}
}

// Clone returns a copy that shares no slices or pointers with r.
func (r RepetitionRule) Clone() RepetitionRule {
	out := r
	if m, ok := r.Mode.(DaysOfWeek); ok {
		out.Mode = DaysOfWeek{Days: append([]time.Weekday(nil), m.Days...)}
	}
	if r.CompletedAt != nil {
		out.CompletedAt = append([]time.Time(nil), r.CompletedAt...)
	}
	if r.LastInstanceCompletedDate != nil {
		last := *r.LastInstanceCompletedDate
		out.LastInstanceCompletedDate = &last
	}
	return out
}

type ruleDocument struct {
	Interval                  *int        `json:"interval,omitempty"`
	DaysOfWeek                []int       `json:"daysOfWeek,omitempty"`
	TimesPerWeek              *int        `json:"timesPerWeek,omitempty"`
	StartDate                 time.Time   `json:"startDate"`
	Completions               int         `json:"completions"`
	CompletedAt               []time.Time `json:"completedAt,omitempty"`
	LastInstanceCompletedDate *time.Time  `json:"lastInstanceCompletedDate,omitempty"`
}

func (r RepetitionRule) MarshalJSON() ([]byte, error) {
	doc := ruleDocument{
		StartDate:                 r.StartDate,
		Completions:               r.Completions,
		CompletedAt:               r.CompletedAt,
		LastInstanceCompletedDate: r.LastInstanceCompletedDate,
	}
	switch m := r.Mode.(type) {
	case Interval:
		days := m.Days
		doc.Interval = &days
	case DaysOfWeek:
		doc.DaysOfWeek = make([]int, 0, len(m.Days))
		for _, d := range m.Days {
			doc.DaysOfWeek = append(doc.DaysOfWeek, int(d))
		}
	case TimesPerWeek:
		count := m.Count
		doc.TimesPerWeek = &count
	case nil:
		return []byte("null"), nil
	}
	return json.Marshal(doc)
}

func (r *RepetitionRule) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = RepetitionRule{}
		return nil
	}
	var doc ruleDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode repetition rule: %w", err)
	}

	var modes []RecurrenceMode
	if doc.Interval != nil {
		modes = append(modes, Interval{Days: *doc.Interval})
	}
	if len(doc.DaysOfWeek) > 0 {
		days := make([]time.Weekday, 0, len(doc.DaysOfWeek))
		for _, d := range doc.DaysOfWeek {
			days = append(days, time.Weekday(d))
		}
		modes = append(modes, DaysOfWeek{Days: days})
	}
	if doc.TimesPerWeek != nil {
		modes = append(modes, TimesPerWeek{Count: *doc.TimesPerWeek})
	}
	if len(modes) != 1 {
		return fmt.Errorf("%w: %d recurrence modes set", ErrInvalidRule, len(modes))
	}

	*r = RepetitionRule{
		Mode:                      modes[0],
		StartDate:                 doc.StartDate,
		Completions:               doc.Completions,
		CompletedAt:               doc.CompletedAt,
		LastInstanceCompletedDate: doc.LastInstanceCompletedDate,
	}
	return nil
}

// Value stores the rule as a JSON document; a zero rule is stored as NULL.
func (r RepetitionRule) Value() (driver.Value, error) {
	if r.IsZero() {
		return nil, nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (r *RepetitionRule) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*r = RepetitionRule{}
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("scan repetition rule: unsupported type %T", src)
	}
	if len(data) == 0 {
		*r = RepetitionRule{}
		return nil
	}
	return r.UnmarshalJSON(data)
}

package bot

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"routine-planner/internal/model"
)

type repeatKind int

const (
	repeatNone repeatKind = iota
	repeatInterval
	repeatWeekdays
	repeatTimesPerWeek
)

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tues": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// parseRepeatKind maps a keyboard answer to the recurrence kind. ok is false for
// unknown answers.
func parseRepeatKind(text string) (repeatKind, bool) {
	switch strings.TrimSpace(strings.ToLower(text)) {
	case strings.ToLower(btnOneOff), "one-off", "once", "no":
		return repeatNone, true
	case strings.ToLower(btnEveryNDays), "interval", "every n days":
		return repeatInterval, true
	case strings.ToLower(btnWeekdays), "weekdays", "days":
		return repeatWeekdays, true
	case strings.ToLower(btnTimesPerWeek), "times", "n times a week":
		return repeatTimesPerWeek, true
	default:
		return repeatNone, false
	}
}

// parseRepeatValue turns the user's answer into a recurrence mode of the given kind.
func parseRepeatValue(kind repeatKind, text string) (model.RecurrenceMode, error) {
	switch kind {
	case repeatInterval:
		days, err := strconv.Atoi(strings.TrimSpace(text))
		if err != nil {
			return nil, fmt.Errorf("send the number of days, for example 3")
		}
		return model.Interval{Days: days}, nil
	case repeatWeekdays:
		days, err := parseWeekdays(text)
		if err != nil {
			return nil, err
		}
		return model.DaysOfWeek{Days: days}, nil
	case repeatTimesPerWeek:
		count, err := strconv.Atoi(strings.TrimSpace(text))
		if err != nil {
			return nil, fmt.Errorf("send how many times a week, from 1 to 7")
		}
		return model.TimesPerWeek{Count: count}, nil
	default:
		return nil, fmt.Errorf("no recurrence selected")
	}
}

// parseWeekdays accepts names ("mon wed fri", "Monday, Thursday") or ISO numbers
// where 1 is Monday and 7 is Sunday.
func parseWeekdays(text string) ([]time.Weekday, error) {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return r == ',' || r == ' ' || r == ';' || r == '/'
	})
	if len(fields) == 0 {
		return nil, fmt.Errorf("list at least one weekday, for example: mon, thu")
	}

	days := make([]time.Weekday, 0, len(fields))
	for _, field := range fields {
		if day, ok := weekdayNames[field]; ok {
			days = append(days, day)
			continue
		}
		n, err := strconv.Atoi(field)
		if err != nil || n < 1 || n > 7 {
			return nil, fmt.Errorf("unknown weekday %q", field)
		}
		days = append(days, time.Weekday(n%7))
	}
	days = lo.Uniq(days)
	slices.Sort(days)
	return days, nil
}

// parseDeadline reads "2006-01-02" or "2006-01-02 15:04" in loc. A bare date means the
// end of that day.
func parseDeadline(text string, loc *time.Location) (time.Time, error) {
	text = strings.TrimSpace(text)
	if t, err := time.ParseInLocation("2006-01-02 15:04", text, loc); err == nil {
		return t, nil
	}
	day, err := time.ParseInLocation("2006-01-02", text, loc)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 0, 0, loc), nil
}

func parseTaskID(data, prefix string) (uint, error) {
	raw := strings.TrimPrefix(data, prefix)
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(value), nil
}

func isSkipInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == "-" || value == strings.ToLower(btnSkip) || value == "skip"
}

func isConfirmInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnConfirm) || value == "confirm" || value == "yes"
}

func isCancelInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancel) || value == "cancel" || value == "no"
}

func isCancelDialogInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancelDialog) || value == "stop"
}

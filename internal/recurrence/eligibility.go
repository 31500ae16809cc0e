package recurrence

import (
	"fmt"
	"time"

	"github.com/samber/lo"

	"routine-planner/internal/model"
)

// Eligibility tells whether a repeating task may be completed at a given instant.
type Eligibility struct {
	CanCompleteNow bool
	IsDueToday     bool
	SameWeek       bool
	// Reason explains a refusal in user-facing words; empty when CanCompleteNow.
	Reason string
}

// Evaluate decides whether today's occurrence of task is due and completable at now.
// It has no side effects and never fails: broken rules are simply not eligible.
func Evaluate(task model.Task, now time.Time) Eligibility {
	rule := task.Rule
	if !task.IsRepeating || rule.IsZero() {
		return Eligibility{Reason: "Not a repeating task"}
	}

	scheduled, reason := scheduledOn(rule, now)
	result := Eligibility{
		IsDueToday: scheduled,
		SameWeek:   sameWeek(rule.StartDate, now),
	}

	if rule.StartDate.After(now) {
		result.Reason = fmt.Sprintf("Starts on %s", rule.StartDate.In(now.Location()).Format(dateLayout))
		return result
	}

	if completedOn(task, now) {
		result.IsDueToday = true
		result.Reason = "Already completed today"
		return result
	}

	if !scheduled {
		result.Reason = reason
		return result
	}

	// The window runs from the start time to the end of the day, not to the due time.
	if task.StartTime.Valid && now.Before(task.StartTime.On(now)) {
		result.Reason = fmt.Sprintf("Available from %s", task.StartTime)
		return result
	}

	result.CanCompleteNow = true
	return result
}

func scheduledOn(rule model.RepetitionRule, now time.Time) (bool, string) {
	switch m := rule.Mode.(type) {
	case model.TimesPerWeek:
		if m.Count <= 0 {
			return false, "Invalid weekly target"
		}
		if !sameWeek(rule.StartDate, now) {
			return false, "Waiting for this week's rollover"
		}
		if rule.Completions >= m.Count {
			return false, fmt.Sprintf("Weekly target reached (%d/%d)", rule.Completions, m.Count)
		}
		return true, ""
	case model.DaysOfWeek:
		if len(m.Days) == 0 {
			return false, "No weekdays configured"
		}
		if lo.Contains(m.Days, now.Weekday()) {
			return true, ""
		}
		return false, fmt.Sprintf("Next due on %s", nextWeekday(m.Days, now.Weekday()))
	case model.Interval:
		if m.Days <= 0 {
			return false, "Invalid interval"
		}
		since := daysBetween(rule.StartDate, now)
		if since < 0 {
			return false, fmt.Sprintf("Next due in %s", plural(-since, "day"))
		}
		if rest := since % m.Days; rest != 0 {
			return false, fmt.Sprintf("Next due in %s", plural(m.Days-rest, "day"))
		}
		return true, ""
	}
	return false, "Unknown recurrence mode"
}

func completedOn(task model.Task, now time.Time) bool {
	if task.CompletedAt != nil && sameDay(*task.CompletedAt, now) {
		return true
	}
	last := task.Rule.LastInstanceCompletedDate
	return last != nil && sameDay(*last, now)
}

func nextWeekday(days []time.Weekday, today time.Weekday) time.Weekday {
	best := days[0]
	bestGap := 8
	for _, d := range days {
		gap := (int(d) - int(today) + 7) % 7
		if gap == 0 {
			gap = 7
		}
		if gap < bestGap {
			best, bestGap = d, gap
		}
	}
	return best
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

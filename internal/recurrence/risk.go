package recurrence

import (
	"time"

	"routine-planner/internal/model"
)

// IsAtRisk reports whether task is unlikely to meet its target for the current period.
// Weekly targets are at risk when more completions remain than days are left in the
// week; everything else is at risk once it is due today or overdue and still open.
func IsAtRisk(task model.Task, now time.Time) bool {
	if m, ok := task.Rule.Mode.(model.TimesPerWeek); ok && task.IsRepeating {
		remaining := m.Count - task.Rule.Completions
		return remaining > DaysLeftInWeek(now)
	}
	if task.DueDate.IsZero() {
		return false
	}
	return daysBetween(task.DueDate, now) >= 0 && task.Status != model.StatusCompleted
}

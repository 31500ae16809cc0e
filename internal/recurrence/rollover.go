package recurrence

import (
	"time"

	"github.com/samber/lo"

	"routine-planner/internal/model"
)

// Rollover computes the changes that bring a repeating task up to date for today.
// The second result is false when the task is already current. Running it again on
// the result for the same day yields no changes.
func Rollover(task model.Task, today time.Time) (model.TaskPatch, bool) {
	if !task.IsRepeating || task.Rule.IsZero() {
		return model.TaskPatch{}, false
	}

	var patch model.TaskPatch
	switch m := task.Rule.Mode.(type) {
	case model.Interval:
		patch = rolloverInterval(task, m, today)
	case model.DaysOfWeek, model.TimesPerWeek:
		patch = rolloverWeekly(task, today)
	}

	after := task
	patch.Apply(&after)
	if risk := IsAtRisk(after, today); risk != task.Risk {
		patch.Risk = &risk
	}
	return patch, !patch.IsEmpty()
}

// rolloverInterval reopens a completed task once its interval has elapsed, or moves a
// missed due date to the next cycle boundary. The first matching branch wins.
func rolloverInterval(task model.Task, mode model.Interval, today time.Time) model.TaskPatch {
	if mode.Days <= 0 {
		return model.TaskPatch{}
	}

	if task.Status == model.StatusCompleted && task.CompletedAt != nil &&
		daysBetween(*task.CompletedAt, today) >= mode.Days {
		completedDay := startOfDay(task.CompletedAt.In(today.Location()))
		next := clampToToday(atClockOf(addDays(completedDay, mode.Days), task.DueDate), today)
		return model.TaskPatch{
			Status:  lo.ToPtr(model.StatusPending),
			DueDate: &next,
		}
	}

	if daysBetween(task.DueDate, today) > 0 && task.Status != model.StatusCompleted {
		since := daysBetween(task.Rule.StartDate, today)
		if since < 0 {
			return model.TaskPatch{}
		}
		cycles := since / mode.Days
		boundary := addDays(startOfDay(task.Rule.StartDate.In(today.Location())), cycles*mode.Days)
		if daysBetween(boundary, today) > 0 {
			boundary = addDays(boundary, mode.Days)
		}
		next := clampToToday(atClockOf(boundary, task.DueDate), today)
		if next.Equal(task.DueDate) {
			return model.TaskPatch{}
		}
		return model.TaskPatch{DueDate: &next}
	}

	return model.TaskPatch{}
}

// rolloverWeekly starts a fresh period once the anchor week has ended. Idle weeks
// collapse into a single reset; no history is back-filled. A passed due date inside
// a running anchor week only moves the due date: counters reset at week boundaries
// and nowhere else, so completions made earlier this week survive.
func rolloverWeekly(task model.Task, today time.Time) model.TaskPatch {
	monday := weekStart(today)
	sunday := atClockOf(weekEndDay(today), task.DueDate)
	anchorEnded := weekStart(task.Rule.StartDate.In(today.Location())).Before(monday)

	if daysBetween(task.DueDate, today) > 0 {
		if !anchorEnded {
			// The period is still running; only the due date moves to its end.
			return model.TaskPatch{DueDate: &sunday}
		}
		return resetWeek(task, monday, sunday)
	}
	if anchorEnded {
		return resetWeek(task, monday, sunday)
	}
	return model.TaskPatch{}
}

func resetWeek(task model.Task, monday, sunday time.Time) model.TaskPatch {
	rule := task.Rule.Clone()
	rule.Completions = 0
	rule.StartDate = monday
	return model.TaskPatch{
		Status:  lo.ToPtr(model.StatusPending),
		DueDate: &sunday,
		Rule:    &rule,
	}
}

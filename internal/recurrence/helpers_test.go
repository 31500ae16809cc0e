package recurrence

import (
	"testing"
	"time"

	"routine-planner/internal/model"
)

// 2024-01-01 is a Monday.
func at(month time.Month, day, hour, minute int) time.Time {
	return time.Date(2024, month, day, hour, minute, 0, 0, time.UTC)
}

func repeating(t *testing.T, mode model.RecurrenceMode, created time.Time, due model.TimeOfDay) model.Task {
	t.Helper()
	schedule, err := NewSchedule(mode, created, due)
	if err != nil {
		t.Fatalf("NewSchedule: %v", err)
	}
	return model.Task{
		ID:          1,
		UserID:      1,
		Title:       "routine",
		IsRepeating: true,
		Status:      model.StatusPending,
		DueDate:     schedule.DueDate,
		Rule:        schedule.Rule,
	}
}

func applied(task model.Task, patch model.TaskPatch) model.Task {
	patch.Apply(&task)
	return task
}

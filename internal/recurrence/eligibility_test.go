package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"routine-planner/internal/model"
)

func TestEvaluate(t *testing.T) {
	nine := model.NewTimeOfDay(9, 0)
	monday := at(time.January, 1, 8, 0)
	completedMonday := at(time.January, 1, 7, 30)

	tests := []struct {
		name     string
		task     func(t *testing.T) model.Task
		now      time.Time
		expected Eligibility
	}{
		{
			name: "One-off task",
			task: func(t *testing.T) model.Task {
				return model.Task{Status: model.StatusPending, DueDate: monday}
			},
			now:      monday,
			expected: Eligibility{Reason: "Not a repeating task"},
		},
		{
			name: "Repeating task without rule",
			task: func(t *testing.T) model.Task {
				return model.Task{IsRepeating: true}
			},
			now:      monday,
			expected: Eligibility{Reason: "Not a repeating task"},
		},
		{
			name: "Rule starts in the future",
			task: func(t *testing.T) model.Task {
				return repeating(t, model.Interval{Days: 2}, at(time.January, 5, 8, 0), nine)
			},
			now:      monday,
			expected: Eligibility{SameWeek: true, Reason: "Starts on 2024-01-05"},
		},
		{
			name: "Completed earlier today",
			task: func(t *testing.T) model.Task {
				task := repeating(t, model.Interval{Days: 1}, monday, nine)
				task.CompletedAt = &completedMonday
				return task
			},
			now:      at(time.January, 1, 12, 0),
			expected: Eligibility{IsDueToday: true, SameWeek: true, Reason: "Already completed today"},
		},
		{
			name: "Weekly instance completed earlier today",
			task: func(t *testing.T) model.Task {
				task := repeating(t, model.TimesPerWeek{Count: 4}, monday, nine)
				task.Rule.Completions = 1
				task.Rule.LastInstanceCompletedDate = &completedMonday
				return task
			},
			now:      at(time.January, 1, 12, 0),
			expected: Eligibility{IsDueToday: true, SameWeek: true, Reason: "Already completed today"},
		},
		{
			name: "Interval cycle day",
			task: func(t *testing.T) model.Task {
				return repeating(t, model.Interval{Days: 3}, monday, nine)
			},
			now:      at(time.January, 7, 23, 0),
			expected: Eligibility{CanCompleteNow: true, IsDueToday: true, SameWeek: true},
		},
		{
			name: "Interval off day",
			task: func(t *testing.T) model.Task {
				return repeating(t, model.Interval{Days: 3}, monday, nine)
			},
			now:      at(time.January, 8, 10, 0),
			expected: Eligibility{Reason: "Next due in 2 days"},
		},
		{
			name: "Times per week below target",
			task: func(t *testing.T) model.Task {
				task := repeating(t, model.TimesPerWeek{Count: 2}, monday, nine)
				task.Rule.Completions = 1
				return task
			},
			now:      at(time.January, 4, 10, 0),
			expected: Eligibility{CanCompleteNow: true, IsDueToday: true, SameWeek: true},
		},
		{
			name: "Times per week target reached",
			task: func(t *testing.T) model.Task {
				task := repeating(t, model.TimesPerWeek{Count: 2}, monday, nine)
				task.Rule.Completions = 2
				return task
			},
			now:      at(time.January, 4, 10, 0),
			expected: Eligibility{SameWeek: true, Reason: "Weekly target reached (2/2)"},
		},
		{
			name: "Times per week anchor from last week",
			task: func(t *testing.T) model.Task {
				return repeating(t, model.TimesPerWeek{Count: 2}, monday, nine)
			},
			now:      at(time.January, 9, 10, 0),
			expected: Eligibility{Reason: "Waiting for this week's rollover"},
		},
		{
			name: "Days of week off day",
			task: func(t *testing.T) model.Task {
				return repeating(t, model.DaysOfWeek{Days: []time.Weekday{time.Monday, time.Thursday}}, monday, nine)
			},
			now:      at(time.January, 2, 10, 0),
			expected: Eligibility{SameWeek: true, Reason: "Next due on Thursday"},
		},
		{
			name: "Before the start-time window",
			task: func(t *testing.T) model.Task {
				task := repeating(t, model.DaysOfWeek{Days: []time.Weekday{time.Tuesday}}, monday, nine)
				task.StartTime = model.NewTimeOfDay(14, 0)
				return task
			},
			now:      at(time.January, 2, 13, 59),
			expected: Eligibility{IsDueToday: true, SameWeek: true, Reason: "Available from 14:00"},
		},
		{
			name: "Window stays open past the due time",
			task: func(t *testing.T) model.Task {
				task := repeating(t, model.DaysOfWeek{Days: []time.Weekday{time.Tuesday}}, monday, nine)
				task.StartTime = model.NewTimeOfDay(14, 0)
				return task
			},
			now:      at(time.January, 2, 23, 30),
			expected: Eligibility{CanCompleteNow: true, IsDueToday: true, SameWeek: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Evaluate(tt.task(t), tt.now))
		})
	}
}

func TestEvaluateDaysOfWeekDueTodayIgnoresAnchor(t *testing.T) {
	days := []time.Weekday{time.Sunday, time.Wednesday, time.Saturday}
	anchors := []time.Time{at(time.January, 1, 0, 0), at(time.January, 15, 0, 0), at(time.February, 26, 0, 0)}

	for _, anchor := range anchors {
		task := model.Task{
			IsRepeating: true,
			Status:      model.StatusPending,
			Rule:        model.RepetitionRule{Mode: model.DaysOfWeek{Days: days}, StartDate: anchor},
		}
		for offset := 0; offset < 14; offset++ {
			now := at(time.January, 22, 12, 0).AddDate(0, 0, offset)
			expected := now.Weekday() == time.Sunday || now.Weekday() == time.Wednesday || now.Weekday() == time.Saturday
			assert.Equal(t, expected, Evaluate(task, now).IsDueToday, "anchor %s now %s", anchor.Format(dateLayout), now.Format(dateLayout))
		}
	}
}

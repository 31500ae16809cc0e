package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routine-planner/internal/model"
)

func TestCompleteIntervalOnDueDay(t *testing.T) {
	task := repeating(t, model.Interval{Days: 3}, at(time.January, 1, 8, 0), model.NewTimeOfDay(9, 0))
	completedAt := at(time.January, 4, 18, 15)

	completion, err := CompleteInterval(task, completedAt)
	require.NoError(t, err)
	assert.Equal(t, "Next due in 3 days", completion.Message)

	done := applied(task, completion.Patch)
	assert.Equal(t, model.StatusCompleted, done.Status)
	assert.Equal(t, at(time.January, 7, 9, 0), done.DueDate)
	assert.Equal(t, 3, daysBetween(completedAt, done.DueDate))
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, completedAt, *done.CompletedAt)
	require.NotNil(t, done.Rule.LastInstanceCompletedDate)
	assert.Equal(t, completedAt, *done.Rule.LastInstanceCompletedDate)
	assert.Equal(t, []time.Time{completedAt}, done.Rule.CompletedAt)
	assert.False(t, done.Risk)
	assert.Empty(t, task.Rule.CompletedAt, "the input task must not be mutated")
}

func TestCompleteIntervalOnOffDay(t *testing.T) {
	task := repeating(t, model.Interval{Days: 3}, at(time.January, 1, 8, 0), model.NewTimeOfDay(9, 0))

	_, err := CompleteInterval(task, at(time.January, 2, 10, 0))
	require.ErrorIs(t, err, ErrNotDue)

	var notDue *NotDueError
	require.ErrorAs(t, err, &notDue)
	assert.Equal(t, "Next due in 2 days", notDue.Reason)
}

func TestCompleteValidation(t *testing.T) {
	interval := repeating(t, model.Interval{Days: 2}, at(time.January, 1, 8, 0), model.NewTimeOfDay(9, 0))
	oneOff := model.Task{Status: model.StatusPending, DueDate: at(time.January, 1, 9, 0)}
	ruleless := model.Task{IsRepeating: true, Status: model.StatusPending}
	now := at(time.January, 1, 10, 0)

	tests := []struct {
		name     string
		complete func(model.Task, time.Time) (Completion, error)
		task     model.Task
		expected error
	}{
		{name: "Interval on one-off task", complete: CompleteInterval, task: oneOff, expected: ErrNotRepeating},
		{name: "Weekly on task without rule", complete: CompleteTimesPerWeek, task: ruleless, expected: ErrNoRepetitionRule},
		{name: "Days of week on interval task", complete: CompleteDaysOfWeek, task: interval, expected: ErrModeMismatch},
		{name: "Times per week on interval task", complete: CompleteTimesPerWeek, task: interval, expected: ErrModeMismatch},
		{name: "Dispatch on one-off task", complete: Complete, task: oneOff, expected: ErrNotRepeating},
		{name: "Dispatch on task without rule", complete: Complete, task: ruleless, expected: ErrNoRepetitionRule},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.complete(tt.task, now)
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestCompleteTimesPerWeekScenario(t *testing.T) {
	task := repeating(t, model.TimesPerWeek{Count: 3}, at(time.January, 1, 7, 0), model.NewTimeOfDay(21, 0))

	steps := []struct {
		at      time.Time
		message string
		status  model.TaskStatus
	}{
		{at: at(time.January, 1, 10, 0), message: "1/3 times this week", status: model.StatusPending},
		{at: at(time.January, 3, 10, 0), message: "2/3 times this week", status: model.StatusPending},
		{at: at(time.January, 5, 10, 0), message: "3/3 times this week", status: model.StatusCompleted},
	}
	for _, step := range steps {
		completion, err := Complete(task, step.at)
		require.NoError(t, err)
		assert.Equal(t, step.message, completion.Message)
		task = applied(task, completion.Patch)
		assert.Equal(t, step.status, task.Status)
	}

	assert.Equal(t, 3, task.Rule.Completions)
	_, err := CompleteTimesPerWeek(task, at(time.January, 6, 10, 0))
	assert.ErrorIs(t, err, ErrNotDue)
}

func TestCompleteTimesPerWeekNeverExceedsTarget(t *testing.T) {
	task := repeating(t, model.TimesPerWeek{Count: 4}, at(time.January, 1, 7, 0), model.NewTimeOfDay(21, 0))

	for offset := 0; offset < 7; offset++ {
		for _, hour := range []int{8, 12, 20} {
			now := at(time.January, 1+offset, hour, 0)
			completion, err := CompleteTimesPerWeek(task, now)
			if err != nil {
				assert.ErrorIs(t, err, ErrNotDue)
				continue
			}
			task = applied(task, completion.Patch)
			assert.LessOrEqual(t, task.Rule.Completions, 4)
		}
	}
	assert.Equal(t, 4, task.Rule.Completions)
	assert.Equal(t, model.StatusCompleted, task.Status)
}

func TestCompleteDaysOfWeek(t *testing.T) {
	days := []time.Weekday{time.Monday, time.Wednesday}
	task := repeating(t, model.DaysOfWeek{Days: days}, at(time.January, 1, 7, 0), model.NewTimeOfDay(18, 0))

	completion, err := CompleteDaysOfWeek(task, at(time.January, 1, 9, 0))
	require.NoError(t, err)
	assert.Equal(t, "1/2 days this week", completion.Message)
	task = applied(task, completion.Patch)
	assert.Equal(t, model.StatusPending, task.Status)
	assert.Nil(t, task.CompletedAt)

	_, err = CompleteDaysOfWeek(task, at(time.January, 2, 9, 0))
	assert.ErrorIs(t, err, ErrNotDue, "Tuesday is not scheduled")

	completion, err = CompleteDaysOfWeek(task, at(time.January, 3, 9, 0))
	require.NoError(t, err)
	assert.Equal(t, "2/2 days this week", completion.Message)
	task = applied(task, completion.Patch)
	assert.Equal(t, model.StatusCompleted, task.Status)
	assert.Equal(t, 2, task.Rule.Completions)
}

func TestCompleteDaysOfWeekReanchorsStaleWeek(t *testing.T) {
	task := repeating(t, model.DaysOfWeek{Days: []time.Weekday{time.Monday, time.Friday}}, at(time.January, 1, 7, 0), model.NewTimeOfDay(18, 0))
	task.Rule.Completions = 2
	task.Status = model.StatusCompleted
	lastWeek := at(time.January, 5, 9, 0)
	task.CompletedAt = &lastWeek

	completion, err := CompleteDaysOfWeek(task, at(time.January, 8, 9, 0))
	require.NoError(t, err)

	task = applied(task, completion.Patch)
	assert.Equal(t, at(time.January, 8, 0, 0), task.Rule.StartDate)
	assert.Equal(t, 1, task.Rule.Completions)
	assert.Equal(t, model.StatusPending, task.Status)
	assert.Equal(t, "1/2 days this week", completion.Message)
}

func TestCompletionRecomputesRisk(t *testing.T) {
	task := repeating(t, model.TimesPerWeek{Count: 5}, at(time.January, 1, 7, 0), model.NewTimeOfDay(21, 0))
	task.Rule.Completions = 1
	task.Risk = true

	// Friday: three days left, four completions remaining before this one.
	completion, err := CompleteTimesPerWeek(task, at(time.January, 5, 9, 0))
	require.NoError(t, err)
	require.NotNil(t, completion.Patch.Risk)
	assert.False(t, *completion.Patch.Risk)
}

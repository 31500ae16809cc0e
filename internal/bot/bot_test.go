package bot

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routine-planner/internal/model"
	"routine-planner/internal/service"
)

func TestParseWeekdays(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []time.Weekday
		wantErr  bool
	}{
		{name: "Short names", input: "mon, wed fri", expected: []time.Weekday{time.Monday, time.Wednesday, time.Friday}},
		{name: "Full names unordered", input: "Sunday; Tuesday", expected: []time.Weekday{time.Sunday, time.Tuesday}},
		{name: "ISO numbers", input: "1 7", expected: []time.Weekday{time.Sunday, time.Monday}},
		{name: "Duplicates", input: "thu,thursday,4", expected: []time.Weekday{time.Thursday}},
		{name: "Unknown", input: "mon, funday", wantErr: true},
		{name: "Out of range", input: "8", wantErr: true},
		{name: "Empty", input: "  ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			days, err := parseWeekdays(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, days)
		})
	}
}

func TestParseRepeat(t *testing.T) {
	kind, ok := parseRepeatKind(btnTimesPerWeek)
	require.True(t, ok)
	assert.Equal(t, repeatTimesPerWeek, kind)

	_, ok = parseRepeatKind("monthly")
	assert.False(t, ok)

	mode, err := parseRepeatValue(repeatInterval, " 3 ")
	require.NoError(t, err)
	assert.Equal(t, model.Interval{Days: 3}, mode)

	mode, err = parseRepeatValue(repeatWeekdays, "sat")
	require.NoError(t, err)
	assert.Equal(t, model.DaysOfWeek{Days: []time.Weekday{time.Saturday}}, mode)

	_, err = parseRepeatValue(repeatTimesPerWeek, "often")
	assert.Error(t, err)
}

func TestParseDeadline(t *testing.T) {
	day, err := parseDeadline("2024-01-05", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.January, 5, 23, 59, 0, 0, time.UTC), day)

	withTime, err := parseDeadline("2024-01-05 18:30", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.January, 5, 18, 30, 0, 0, time.UTC), withTime)

	_, err = parseDeadline("05.01.2024", time.UTC)
	assert.Error(t, err)
}

func TestInputHelpers(t *testing.T) {
	assert.True(t, isSkipInput(" skip "))
	assert.True(t, isSkipInput(btnSkip))
	assert.True(t, isConfirmInput(btnConfirm))
	assert.True(t, isCancelInput("Cancel"))
	assert.True(t, isCancelDialogInput(btnCancelDialog))
	assert.False(t, isConfirmInput("maybe"))

	id, err := parseTaskID("complete:42", cbCompletePrefix)
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)
	_, err = parseTaskID("complete:x", cbCompletePrefix)
	assert.Error(t, err)
}

func TestShortTitle(t *testing.T) {
	assert.Equal(t, "Walk", shortTitle(" walk ", 10))
	assert.Equal(t, "Stretchin…", shortTitle("stretching routine", 10))
	assert.Equal(t, "Two lines", shortTitle("two\nlines", 20))
}

func TestRenderTaskList(t *testing.T) {
	now := time.Date(2024, time.January, 3, 10, 0, 0, 0, time.UTC)
	health := uint(7)
	done := now.Add(-time.Hour)
	tasks := []model.Task{
		{
			ID: 1, Title: "gym", IsRepeating: true, Status: model.StatusPending, CategoryID: &health,
			DueDate: time.Date(2024, time.January, 7, 21, 0, 0, 0, time.UTC),
			Rule:    model.RepetitionRule{Mode: model.TimesPerWeek{Count: 3}, StartDate: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)},
		},
		{ID: 2, Title: "call <bank>", Status: model.StatusPending, DueDate: time.Date(2024, time.January, 4, 12, 0, 0, 0, time.UTC)},
		{ID: 3, Title: "archived", Status: model.StatusCompleted, CompletedAt: &done},
	}

	text, buttons := renderTaskList(tasks, map[uint]string{health: "Health"}, now)

	assert.Contains(t, text, "🩺 Health")
	assert.Contains(t, text, "🟢 <b>#1</b> Gym")
	assert.Contains(t, text, "3 times a week (0/3 done)")
	assert.Contains(t, text, "⏳ <b>#2</b> Call &lt;bank&gt;")
	assert.NotContains(t, text, "Archived")
	assert.Less(t, strings.Index(text, "Health"), strings.Index(text, noCategory), "named categories come first")
	require.Len(t, buttons, 2)
	assert.Equal(t, "complete:1", *buttons[0][0].CallbackData)
	assert.Equal(t, "delete:2", *buttons[1][1].CallbackData)

	empty, none := renderTaskList(nil, nil, now)
	assert.Contains(t, empty, "/newtask")
	assert.Nil(t, none)
}

func TestCompletionText(t *testing.T) {
	routine := &model.Task{Title: "gym", IsRepeating: true}
	assert.Equal(t, "♻️ «Gym» done. 1/3 times this week",
		completionText(service.CompletionResult{Success: true, Message: "1/3 times this week", Task: routine}))
	assert.Equal(t, "✅ «Bank» done.",
		completionText(service.CompletionResult{Success: true, Message: "Done", Task: &model.Task{Title: "bank"}}))
	assert.Equal(t, "🚫 Next due on Friday",
		completionText(service.CompletionResult{Message: "Next due on Friday"}))
}

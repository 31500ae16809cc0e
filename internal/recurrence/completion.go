package recurrence

import (
	"fmt"
	"time"

	"github.com/samber/lo"

	"routine-planner/internal/model"
)

// Completion is the outcome of a valid completion: the changes to persist and a
// message for the user.
type Completion struct {
	Patch   model.TaskPatch
	Message string
}

// Complete dispatches to the completion operation matching the task's mode.
func Complete(task model.Task, at time.Time) (Completion, error) {
	if !task.IsRepeating {
		return Completion{}, ErrNotRepeating
	}
	switch task.Rule.Mode.(type) {
	case model.Interval:
		return CompleteInterval(task, at)
	case model.DaysOfWeek:
		return CompleteDaysOfWeek(task, at)
	case model.TimesPerWeek:
		return CompleteTimesPerWeek(task, at)
	}
	return Completion{}, ErrNoRepetitionRule
}

// CompleteInterval closes the current occurrence and moves the due date one interval
// past the completion date. The task stays completed until the rollover reopens it.
func CompleteInterval(task model.Task, at time.Time) (Completion, error) {
	mode, err := modeOf[model.Interval](task)
	if err != nil {
		return Completion{}, err
	}
	if err := ensureDue(task, at); err != nil {
		return Completion{}, err
	}

	rule := task.Rule.Clone()
	completedAt := at
	rule.LastInstanceCompletedDate = &completedAt
	rule.CompletedAt = append(rule.CompletedAt, completedAt)

	next := atClockOf(addDays(startOfDay(at), mode.Days), task.DueDate)
	patch := model.TaskPatch{
		Status:      lo.ToPtr(model.StatusCompleted),
		DueDate:     &next,
		CompletedAt: &completedAt,
		Rule:        &rule,
	}
	return finish(task, patch, at, fmt.Sprintf("Next due in %s", plural(mode.Days, "day")))
}

// CompleteDaysOfWeek counts one scheduled weekday; the week is completed once every
// configured weekday is done.
func CompleteDaysOfWeek(task model.Task, at time.Time) (Completion, error) {
	mode, err := modeOf[model.DaysOfWeek](task)
	if err != nil {
		return Completion{}, err
	}
	if err := ensureDue(task, at); err != nil {
		return Completion{}, err
	}
	return completeWeekly(task, at, len(mode.Days), "days")
}

// CompleteTimesPerWeek counts one completion towards the weekly target.
func CompleteTimesPerWeek(task model.Task, at time.Time) (Completion, error) {
	mode, err := modeOf[model.TimesPerWeek](task)
	if err != nil {
		return Completion{}, err
	}
	if err := ensureDue(task, at); err != nil {
		return Completion{}, err
	}
	return completeWeekly(task, at, mode.Count, "times")
}

func completeWeekly(task model.Task, at time.Time, target int, unit string) (Completion, error) {
	rule := task.Rule.Clone()
	if !sameWeek(rule.StartDate, at) {
		rule.StartDate = weekStart(at)
		rule.Completions = 0
	}
	if rule.Completions >= target {
		return Completion{}, &NotDueError{Reason: fmt.Sprintf("Weekly target reached (%d/%d)", rule.Completions, target)}
	}

	completedAt := at
	rule.Completions++
	rule.CompletedAt = append(rule.CompletedAt, completedAt)
	rule.LastInstanceCompletedDate = &completedAt

	patch := model.TaskPatch{
		Status: lo.ToPtr(model.StatusPending),
		Rule:   &rule,
	}
	if rule.Completions >= target {
		patch.Status = lo.ToPtr(model.StatusCompleted)
		patch.CompletedAt = &completedAt
	}
	return finish(task, patch, at, fmt.Sprintf("%d/%d %s this week", rule.Completions, target, unit))
}

func modeOf[M model.RecurrenceMode](task model.Task) (M, error) {
	var zero M
	if !task.IsRepeating {
		return zero, ErrNotRepeating
	}
	if task.Rule.IsZero() {
		return zero, ErrNoRepetitionRule
	}
	mode, ok := task.Rule.Mode.(M)
	if !ok {
		return zero, fmt.Errorf("%w: task repeats by %s, not %s", ErrModeMismatch, task.Rule.Kind(), zero.Kind())
	}
	return mode, nil
}

func ensureDue(task model.Task, at time.Time) error {
	if e := Evaluate(task, at); !e.CanCompleteNow {
		return &NotDueError{Reason: e.Reason}
	}
	return nil
}

// finish stamps the risk flag derived from the post-completion state.
func finish(task model.Task, patch model.TaskPatch, at time.Time, message string) (Completion, error) {
	after := task
	patch.Apply(&after)
	patch.Risk = lo.ToPtr(IsAtRisk(after, at))
	return Completion{Patch: patch, Message: message}, nil
}

package recurrence

import "errors"

var (
	// ErrConfiguration is returned when a repeating task is created without a valid mode.
	ErrConfiguration = errors.New("invalid recurrence configuration")

	// ErrNotRepeating is returned when a one-off task reaches a recurrence operation.
	ErrNotRepeating = errors.New("task is not repeating")

	// ErrNoRepetitionRule is returned when a repeating task has lost its rule.
	ErrNoRepetitionRule = errors.New("task has no repetition rule")

	// ErrModeMismatch is returned when the completion operation does not match the rule's mode.
	ErrModeMismatch = errors.New("recurrence mode mismatch")

	// ErrNotDue is returned when a task cannot be completed at the given instant.
	ErrNotDue = errors.New("task is not due")
)

// NotDueError carries the user-facing reason a completion was refused.
type NotDueError struct {
	Reason string
}

func (e *NotDueError) Error() string {
	return ErrNotDue.Error() + ": " + e.Reason
}

func (e *NotDueError) Is(target error) bool {
	return target == ErrNotDue
}

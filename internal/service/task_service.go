package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"routine-planner/internal/model"
	"routine-planner/internal/recurrence"
	"routine-planner/internal/repository"
)

var (
	// ErrAlreadyCompleted is returned when a one-off task is completed twice.
	ErrAlreadyCompleted = errors.New("task is already completed")

	// ErrRepeatingPostpone is returned when a repeating task is postponed.
	ErrRepeatingPostpone = errors.New("repeating tasks follow their rule and cannot be postponed")
)

// saveAttempts bounds the re-read loop after a lost compare-and-swap.
const saveAttempts = 2

// TaskInput represents data required to create a task.
type TaskInput struct {
	Title       string
	Description string
	Category    string
	Points      int
	// DueDate is used by one-off tasks only.
	DueDate *time.Time
	// Repeat selects the recurrence mode; nil creates a one-off task.
	Repeat    model.RecurrenceMode
	StartsOn  time.Time
	DueTime   model.TimeOfDay
	StartTime model.TimeOfDay
}

// CompletionResult is what UI actions render after a completion attempt.
type CompletionResult struct {
	Success bool
	Message string
	Err     error
	Task    *model.Task
}

// TaskService wraps task-related business logic.
type TaskService struct {
	taskRepo     *repository.TaskRepository
	categoryRepo *repository.CategoryRepository
	log          *zap.Logger
}

func NewTaskService(taskRepo *repository.TaskRepository, categoryRepo *repository.CategoryRepository, log *zap.Logger) *TaskService {
	return &TaskService{taskRepo: taskRepo, categoryRepo: categoryRepo, log: log.Named("tasks")}
}

// CreateTask stores a one-off task or, when input.Repeat is set, a repeating task whose
// rule and first due date come from the recurrence factory.
func (s *TaskService) CreateTask(ctx context.Context, user *model.User, input TaskInput, now time.Time) (*model.Task, error) {
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return nil, fmt.Errorf("title is required")
	}

	var categoryID *uint
	if input.Category != "" {
		category, err := s.categoryRepo.GetOrCreate(ctx, user.ID, input.Category)
		if err != nil {
			return nil, err
		}
		if category != nil {
			categoryID = &category.ID
		}
	}

	task := model.Task{
		UserID:      user.ID,
		CategoryID:  categoryID,
		Title:       input.Title,
		Description: strings.TrimSpace(input.Description),
		Status:      model.StatusPending,
		StartTime:   input.StartTime,
		Points:      input.Points,
	}

	if input.Repeat != nil {
		startsOn := input.StartsOn
		if startsOn.IsZero() {
			startsOn = now
		}
		schedule, err := recurrence.NewSchedule(input.Repeat, startsOn, input.DueTime)
		if err != nil {
			return nil, err
		}
		task.IsRepeating = true
		task.DueDate = schedule.DueDate
		task.Rule = schedule.Rule
	} else if input.DueDate != nil {
		task.DueDate = *input.DueDate
	}
	task.Risk = recurrence.IsAtRisk(task, now)

	if err := s.taskRepo.Create(ctx, &task); err != nil {
		return nil, err
	}
	s.log.Info("task created",
		zap.Uint("task_id", task.ID),
		zap.Uint("user_id", user.ID),
		zap.Bool("repeating", task.IsRepeating),
		zap.String("mode", string(task.Rule.Kind())),
	)
	return &task, nil
}

func (s *TaskService) ListActive(ctx context.Context, user *model.User) ([]model.Task, error) {
	return s.taskRepo.ListActive(ctx, user.ID)
}

func (s *TaskService) GetTask(ctx context.Context, user *model.User, taskID uint) (*model.Task, error) {
	return s.taskRepo.FindByID(ctx, user.ID, taskID)
}

// Eligibility evaluates whether the task can be completed at now.
func (s *TaskService) Eligibility(ctx context.Context, user *model.User, taskID uint, now time.Time) (*model.Task, recurrence.Eligibility, error) {
	task, err := s.taskRepo.FindByID(ctx, user.ID, taskID)
	if err != nil {
		return nil, recurrence.Eligibility{}, err
	}
	return task, recurrence.Evaluate(*task, now), nil
}

// CompleteTask marks a task as done at the given instant. Repeating tasks go through
// the recurrence rules; failures are reported in the result rather than returned.
func (s *TaskService) CompleteTask(ctx context.Context, user *model.User, taskID uint, at time.Time) CompletionResult {
	var lastErr error
	for attempt := 0; attempt < saveAttempts; attempt++ {
		task, err := s.taskRepo.FindByID(ctx, user.ID, taskID)
		if err != nil {
			return failed(nil, err)
		}

		patch, message, err := s.completionPatch(*task, at)
		if err != nil {
			s.log.Debug("completion refused", zap.Uint("task_id", taskID), zap.Error(err))
			return failed(task, err)
		}

		err = s.taskRepo.SaveTask(ctx, task, patch)
		switch {
		case err == nil:
			s.log.Info("task completed",
				zap.Uint("task_id", task.ID),
				zap.Uint("user_id", user.ID),
				zap.String("status", string(task.Status)),
				zap.String("message", message),
			)
			return CompletionResult{Success: true, Message: message, Task: task}
		case errors.Is(err, repository.ErrConcurrentUpdate):
			// Someone else wrote the task; re-read so the rules see their change.
			lastErr = err
			continue
		default:
			return failed(task, err)
		}
	}
	return failed(nil, lastErr)
}

func (s *TaskService) completionPatch(task model.Task, at time.Time) (model.TaskPatch, string, error) {
	if task.IsRepeating {
		completion, err := recurrence.Complete(task, at)
		if err != nil {
			return model.TaskPatch{}, "", err
		}
		return completion.Patch, completion.Message, nil
	}

	if task.IsCompleted() {
		return model.TaskPatch{}, "", ErrAlreadyCompleted
	}
	completedAt := at
	return model.TaskPatch{
		Status:      lo.ToPtr(model.StatusCompleted),
		CompletedAt: &completedAt,
		Risk:        lo.ToPtr(false),
	}, "Done", nil
}

// PostponeTask moves a one-off task to a new due date and marks it delayed.
func (s *TaskService) PostponeTask(ctx context.Context, user *model.User, taskID uint, dueDate, now time.Time) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, user.ID, taskID)
	if err != nil {
		return nil, err
	}
	if task.IsRepeating {
		return nil, ErrRepeatingPostpone
	}
	if task.IsCompleted() {
		return nil, ErrAlreadyCompleted
	}

	after := *task
	patch := model.TaskPatch{
		Status:     lo.ToPtr(model.StatusDelayed),
		DueDate:    &dueDate,
		DelayCount: lo.ToPtr(task.DelayCount + 1),
	}
	patch.Apply(&after)
	patch.Risk = lo.ToPtr(recurrence.IsAtRisk(after, now))

	if err := s.taskRepo.SaveTask(ctx, task, patch); err != nil {
		return nil, err
	}
	return task, nil
}

// DeleteTask removes a task completely (for both one-time and repeating tasks).
func (s *TaskService) DeleteTask(ctx context.Context, user *model.User, taskID uint) error {
	return s.taskRepo.Delete(ctx, user.ID, taskID)
}

func failed(task *model.Task, err error) CompletionResult {
	return CompletionResult{Message: UserMessage(err), Err: err, Task: task}
}

// UserMessage turns an error from the task flow into a short sentence for the user.
func UserMessage(err error) string {
	var notDue *recurrence.NotDueError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &notDue):
		return notDue.Reason
	case errors.Is(err, gorm.ErrRecordNotFound):
		return "Task not found"
	case errors.Is(err, repository.ErrConcurrentUpdate):
		return "The task was changed at the same time, try again"
	case errors.Is(err, ErrAlreadyCompleted):
		return "Task is already completed"
	case errors.Is(err, recurrence.ErrNotRepeating):
		return "This task does not repeat"
	case errors.Is(err, recurrence.ErrNoRepetitionRule):
		return "This task has lost its repetition rule"
	case errors.Is(err, recurrence.ErrModeMismatch):
		return "This task repeats in a different way"
	case errors.Is(err, repository.ErrPersistence):
		return "Could not save the task, try again later"
	default:
		return err.Error()
	}
}

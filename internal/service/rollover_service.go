package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"routine-planner/internal/model"
	"routine-planner/internal/recurrence"
)

// DefaultLoginDebounce suppresses rollovers for logins closer together than this,
// even across midnight.
const DefaultLoginDebounce = 5 * time.Minute

// TaskStore is the task persistence the rollover needs.
type TaskStore interface {
	LoadRepeatingTasksForUser(ctx context.Context, userID uint) ([]model.Task, error)
	BatchUpdate(ctx context.Context, userID uint, updates []model.TaskUpdate) error
}

// LoginStore keeps the per-user rollover stamp.
type LoginStore interface {
	FindByID(ctx context.Context, userID uint) (*model.User, error)
	TouchLogin(ctx context.Context, userID uint, at time.Time) error
}

// RolloverReport summarises one rollover attempt.
type RolloverReport struct {
	RunID   string
	Skipped bool
	Scanned int
	Updated int
}

// RolloverService normalises stale repeating tasks once per user per day, on the
// first login of that day.
type RolloverService struct {
	tasks    TaskStore
	users    LoginStore
	debounce time.Duration
	log      *zap.Logger
}

func NewRolloverService(tasks TaskStore, users LoginStore, debounce time.Duration, log *zap.Logger) *RolloverService {
	if debounce <= 0 {
		debounce = DefaultLoginDebounce
	}
	return &RolloverService{tasks: tasks, users: users, debounce: debounce, log: log.Named("rollover")}
}

// HandleLogin runs the rollover unless it already ran today or within the debounce
// window. The stamp is only written after a successful run, so a failed batch is
// retried on the next login.
func (s *RolloverService) HandleLogin(ctx context.Context, userID uint, now time.Time) (RolloverReport, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return RolloverReport{}, err
	}
	if !s.shouldRun(user.LastLoginAt, now) {
		return RolloverReport{Skipped: true}, nil
	}

	report, err := s.Run(ctx, userID, now)
	if err != nil {
		return report, err
	}
	if err := s.users.TouchLogin(ctx, userID, now); err != nil {
		return report, err
	}
	return report, nil
}

// Run rolls over every repeating task of the user for today and commits the changes
// in one batch. Nothing is written when the batch fails, including when a task was
// completed after it was loaded; the next login retries.
func (s *RolloverService) Run(ctx context.Context, userID uint, today time.Time) (RolloverReport, error) {
	report := RolloverReport{RunID: uuid.NewString()}
	log := s.log.With(zap.String("run_id", report.RunID), zap.Uint("user_id", userID))

	tasks, err := s.tasks.LoadRepeatingTasksForUser(ctx, userID)
	if err != nil {
		log.Error("load tasks", zap.Error(err))
		return report, fmt.Errorf("rollover user %d: %w", userID, err)
	}
	report.Scanned = len(tasks)

	var updates []model.TaskUpdate
	for _, task := range tasks {
		patch, changed := recurrence.Rollover(task, today)
		if !changed {
			continue
		}
		updates = append(updates, model.TaskUpdate{TaskID: task.ID, Version: task.Version, Patch: patch})
		log.Debug("task rolled over", zap.Uint("task_id", task.ID), zap.String("mode", string(task.Rule.Kind())))
	}

	if err := s.tasks.BatchUpdate(ctx, userID, updates); err != nil {
		log.Error("batch update aborted", zap.Int("updates", len(updates)), zap.Error(err))
		return report, fmt.Errorf("rollover user %d: %w", userID, err)
	}
	report.Updated = len(updates)

	log.Info("rollover finished", zap.Int("scanned", report.Scanned), zap.Int("updated", report.Updated))
	return report, nil
}

func (s *RolloverService) shouldRun(last *time.Time, now time.Time) bool {
	if last == nil {
		return true
	}
	if gap := now.Sub(*last); gap >= 0 && gap < s.debounce {
		return false
	}
	ly, lm, ld := last.In(now.Location()).Date()
	ny, nm, nd := now.Date()
	return ly != ny || lm != nm || ld != nd
}

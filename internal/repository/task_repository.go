package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"routine-planner/internal/model"
)

// TaskRepository handles CRUD for tasks and the batch writes of the rollover.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return wrap("create task", err)
	}
	return nil
}

// ListActive returns repeating tasks and one-off tasks that are not completed yet.
func (r *TaskRepository) ListActive(ctx context.Context, userID uint) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Where("user_id = ? AND (is_repeating = ? OR status <> ?)", userID, true, model.StatusCompleted).
		Order("due_date ASC, id ASC").
		Find(&tasks).Error; err != nil {
		return nil, wrap("list tasks", err)
	}
	return tasks, nil
}

func (r *TaskRepository) LoadRepeatingTasksForUser(ctx context.Context, userID uint) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).Where("user_id = ? AND is_repeating = ?", userID, true).
		Order("id ASC").
		Find(&tasks).Error; err != nil {
		return nil, wrap("load repeating tasks", err)
	}
	return tasks, nil
}

// GetTask loads a task by ID without scoping it to a user. Surfaces use FindByID;
// this is the unscoped lookup for tooling and tests.
func (r *TaskRepository) GetTask(ctx context.Context, taskID uint) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).First(&task, taskID).Error; err != nil {
		return nil, wrap("get task", err)
	}
	return &task, nil
}

func (r *TaskRepository) FindByID(ctx context.Context, userID, taskID uint) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, taskID).First(&task).Error; err != nil {
		return nil, wrap("find task", err)
	}
	return &task, nil
}

// SaveTask writes patch if task still has the version it was read with, then applies
// the patch to task. A lost race yields ErrConcurrentUpdate and leaves task untouched.
func (r *TaskRepository) SaveTask(ctx context.Context, task *model.Task, patch model.TaskPatch) error {
	if patch.IsEmpty() {
		return nil
	}
	cols := patch.Columns()
	cols["version"] = gorm.Expr("version + ?", 1)

	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND version = ?", task.ID, task.Version).
		Updates(cols)
	if res.Error != nil {
		return wrap("save task", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("save task %d: %w", task.ID, ErrConcurrentUpdate)
	}

	patch.Apply(task)
	task.Version++
	return nil
}

// BatchUpdate writes all updates for one user in a single transaction. Each update is
// checked against its Version; one stale task aborts the whole batch with
// ErrConcurrentUpdate.
func (r *TaskRepository) BatchUpdate(ctx context.Context, userID uint, updates []model.TaskUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range updates {
			if u.Patch.IsEmpty() {
				continue
			}
			cols := u.Patch.Columns()
			cols["version"] = gorm.Expr("version + ?", 1)
			res := tx.Model(&model.Task{}).
				Where("id = ? AND user_id = ? AND version = ?", u.TaskID, userID, u.Version).
				Updates(cols)
			if res.Error != nil {
				return fmt.Errorf("task %d: %w", u.TaskID, res.Error)
			}
			if res.RowsAffected == 0 {
				return missedUpdate(tx, userID, u.TaskID)
			}
		}
		return nil
	})
	if err != nil {
		return wrap("batch update", err)
	}
	return nil
}

// missedUpdate tells a task that belongs to someone else (or is gone) from one that
// changed after it was loaded.
func missedUpdate(tx *gorm.DB, userID, taskID uint) error {
	var count int64
	if err := tx.Model(&model.Task{}).Where("id = ? AND user_id = ?", taskID, userID).Count(&count).Error; err != nil {
		return fmt.Errorf("task %d: %w", taskID, err)
	}
	if count == 0 {
		return fmt.Errorf("task %d: %w", taskID, gorm.ErrRecordNotFound)
	}
	return fmt.Errorf("task %d: %w", taskID, ErrConcurrentUpdate)
}

// Delete removes a task for the given user, regardless of it being repeating or not.
func (r *TaskRepository) Delete(ctx context.Context, userID, taskID uint) error {
	res := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, taskID).Delete(&model.Task{})
	if res.Error != nil {
		return wrap("delete task", res.Error)
	}
	if res.RowsAffected == 0 {
		return wrap("delete task", gorm.ErrRecordNotFound)
	}
	return nil
}

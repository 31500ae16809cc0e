package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"routine-planner/internal/model"
	"routine-planner/internal/recurrence"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := NewDB(fmt.Sprintf("file:%s?mode=memory&cache=shared", name), zap.NewNop())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func seedTask(t *testing.T, repo *TaskRepository, task model.Task) model.Task {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), &task))
	return task
}

func weeklyTask(userID uint) model.Task {
	return model.Task{
		UserID:      userID,
		Title:       "run",
		IsRepeating: true,
		Status:      model.StatusPending,
		DueDate:     time.Date(2024, time.January, 7, 21, 0, 0, 0, time.UTC),
		StartTime:   model.NewTimeOfDay(6, 30),
		Rule: model.RepetitionRule{
			Mode:      model.TimesPerWeek{Count: 3},
			StartDate: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

func TestTaskRepositoryRoundTripsRule(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(newTestDB(t))
	created := seedTask(t, repo, weeklyTask(1))

	loaded, err := repo.FindByID(ctx, 1, created.ID)
	require.NoError(t, err)

	assert.Equal(t, model.TimesPerWeek{Count: 3}, loaded.Rule.Mode)
	assert.WithinDuration(t, created.Rule.StartDate, loaded.Rule.StartDate, 0)
	assert.WithinDuration(t, created.DueDate, loaded.DueDate, 0)
	assert.Equal(t, model.NewTimeOfDay(6, 30), loaded.StartTime)
	assert.Equal(t, model.StatusPending, loaded.Status)

	_, err = repo.FindByID(ctx, 2, created.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.ErrorIs(t, err, ErrPersistence)
}

func TestTaskRepositoryLoadRepeatingTasksForUser(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(newTestDB(t))
	seedTask(t, repo, weeklyTask(1))
	seedTask(t, repo, weeklyTask(2))
	seedTask(t, repo, model.Task{UserID: 1, Title: "call mom", Status: model.StatusPending, DueDate: time.Now()})
	seedTask(t, repo, model.Task{UserID: 1, Title: "done", Status: model.StatusCompleted, DueDate: time.Now()})

	repeatingTasks, err := repo.LoadRepeatingTasksForUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, repeatingTasks, 1)
	assert.True(t, repeatingTasks[0].IsRepeating)

	active, err := repo.ListActive(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestTaskRepositorySaveTaskCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(newTestDB(t))
	created := seedTask(t, repo, weeklyTask(1))

	first, err := repo.GetTask(ctx, created.ID)
	require.NoError(t, err)
	second, err := repo.GetTask(ctx, created.ID)
	require.NoError(t, err)

	rule := first.Rule.Clone()
	rule.Completions = 1
	require.NoError(t, repo.SaveTask(ctx, first, model.TaskPatch{Rule: &rule}))
	assert.Equal(t, 1, first.Version)
	assert.Equal(t, 1, first.Rule.Completions)

	err = repo.SaveTask(ctx, second, model.TaskPatch{Rule: &rule})
	assert.ErrorIs(t, err, ErrConcurrentUpdate)

	stored, err := repo.GetTask(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Rule.Completions)
	assert.Equal(t, 1, stored.Version)
}

func TestTaskRepositoryBatchUpdateIsAtomic(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(newTestDB(t))
	task := seedTask(t, repo, weeklyTask(1))
	foreign := seedTask(t, repo, weeklyTask(2))

	risk := true
	err := repo.BatchUpdate(ctx, 1, []model.TaskUpdate{
		{TaskID: task.ID, Patch: model.TaskPatch{Risk: &risk}},
		{TaskID: foreign.ID, Patch: model.TaskPatch{Risk: &risk}},
	})
	require.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	stored, err := repo.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.False(t, stored.Risk, "the whole batch is rolled back")

	require.NoError(t, repo.BatchUpdate(ctx, 1, []model.TaskUpdate{{TaskID: task.ID, Patch: model.TaskPatch{Risk: &risk}}}))
	stored, err = repo.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, stored.Risk)
	assert.Equal(t, 1, stored.Version)
}

func TestTaskRepositoryBatchUpdateKeepsConcurrentCompletion(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(newTestDB(t))
	created := seedTask(t, repo, model.Task{
		UserID:      1,
		Title:       "swim",
		IsRepeating: true,
		Status:      model.StatusPending,
		DueDate:     time.Date(2024, time.January, 1, 20, 0, 0, 0, time.UTC),
		Rule: model.RepetitionRule{
			Mode:      model.DaysOfWeek{Days: []time.Weekday{time.Monday, time.Wednesday}},
			StartDate: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		},
	})
	monday := time.Date(2024, time.January, 8, 8, 0, 0, 0, time.UTC)

	loaded, err := repo.LoadRepeatingTasksForUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	patch, changed := recurrence.Rollover(loaded[0], monday)
	require.True(t, changed)

	current, err := repo.FindByID(ctx, 1, created.ID)
	require.NoError(t, err)
	completion, err := recurrence.Complete(*current, monday.Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, repo.SaveTask(ctx, current, completion.Patch))

	err = repo.BatchUpdate(ctx, 1, []model.TaskUpdate{{TaskID: created.ID, Version: loaded[0].Version, Patch: patch}})
	assert.ErrorIs(t, err, ErrConcurrentUpdate)
	assert.ErrorIs(t, err, ErrPersistence)

	stored, err := repo.GetTask(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Rule.Completions)
	assert.NotNil(t, stored.Rule.LastInstanceCompletedDate)
	assert.Equal(t, 1, stored.Version)

	retry, changed := recurrence.Rollover(*stored, monday)
	require.True(t, changed)
	require.Nil(t, retry.Rule, "the completion already re-anchored this week")
	require.NoError(t, repo.BatchUpdate(ctx, 1, []model.TaskUpdate{{TaskID: created.ID, Version: stored.Version, Patch: retry}}))
	stored, err = repo.GetTask(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Rule.Completions, "a fresh rollover keeps this week's completion")
}

func TestTaskRepositoryDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(newTestDB(t))
	task := seedTask(t, repo, weeklyTask(1))

	assert.ErrorIs(t, repo.Delete(ctx, 2, task.ID), gorm.ErrRecordNotFound)
	require.NoError(t, repo.Delete(ctx, 1, task.ID))
	_, err := repo.GetTask(ctx, task.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t))

	user, err := repo.UpsertFromTelegram(ctx, 42, "Ann", "", "ann")
	require.NoError(t, err)
	again, err := repo.UpsertFromTelegram(ctx, 42, "Anna", "", "ann")
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)

	loginAt := time.Date(2024, time.January, 2, 8, 0, 0, 0, time.UTC)
	require.NoError(t, repo.TouchLogin(ctx, user.ID, loginAt))

	stored, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Anna", stored.FirstName)
	require.NotNil(t, stored.LastLoginAt)
	assert.WithinDuration(t, loginAt, *stored.LastLoginAt, 0)
}

func TestCategoryRepositoryGetOrCreate(t *testing.T) {
	ctx := context.Background()
	repo := NewCategoryRepository(newTestDB(t))

	none, err := repo.GetOrCreate(ctx, 1, "  ")
	require.NoError(t, err)
	assert.Nil(t, none)

	first, err := repo.GetOrCreate(ctx, 1, "Health")
	require.NoError(t, err)
	second, err := repo.GetOrCreate(ctx, 1, " Health ")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	categories, err := repo.ListByUser(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, categories, 1)
}

package service

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"routine-planner/internal/model"
	"routine-planner/internal/repository"
)

type fixture struct {
	tasks      *repository.TaskRepository
	categories *repository.CategoryRepository
	users      *repository.UserRepository
	user       *model.User
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := repository.NewDB(fmt.Sprintf("file:%s?mode=memory&cache=shared", name), zap.NewNop())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	f := fixture{
		tasks:      repository.NewTaskRepository(db),
		categories: repository.NewCategoryRepository(db),
		users:      repository.NewUserRepository(db),
		user:       &model.User{TelegramID: 42, FirstName: "Ada"},
	}
	require.NoError(t, f.users.Create(t.Context(), f.user))
	return f
}

// 2024-01-01 is a Monday.
func at(month time.Month, day, hour, minute int) time.Time {
	return time.Date(2024, month, day, hour, minute, 0, 0, time.UTC)
}

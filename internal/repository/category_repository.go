package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"routine-planner/internal/model"
)

// CategoryRepository manages task categories.
type CategoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// GetOrCreate returns the user's category with the given name; an empty name yields nil.
func (r *CategoryRepository) GetOrCreate(ctx context.Context, userID uint, name string) (*model.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	var category model.Category
	if err := r.db.WithContext(ctx).
		Where(model.Category{UserID: userID, Name: name}).
		FirstOrCreate(&category).Error; err != nil {
		return nil, wrap("get or create category", err)
	}
	return &category, nil
}

func (r *CategoryRepository) ListByUser(ctx context.Context, userID uint) ([]model.Category, error) {
	var categories []model.Category
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("name ASC").Find(&categories).Error; err != nil {
		return nil, wrap("list categories", err)
	}
	return categories, nil
}

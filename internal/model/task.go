package model

import "time"

// TaskStatus is the lifecycle state of a task or of the current period of a repeating task.
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusCompleted TaskStatus = "completed"
	StatusDelayed   TaskStatus = "delayed"
)

// Task represents a single item in the planner. Repeating tasks carry a Rule.
type Task struct {
	ID          uint  `gorm:"primaryKey"`
	UserID      uint  `gorm:"index"`
	CategoryID  *uint `gorm:"index"`
	Title       string
	Description string
	DueDate     time.Time  `gorm:"index"`
	StartTime   TimeOfDay  `gorm:"type:text"`
	Status      TaskStatus `gorm:"type:text;index"`
	CompletedAt *time.Time
	IsRepeating bool           `gorm:"default:false;index"`
	Rule        RepetitionRule `gorm:"column:repetition_rule;type:text"`
	DelayCount  int
	Risk        bool
	Points      int
	// Version is bumped on every single-task save and guards against lost updates.
	Version   int `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (t Task) IsCompleted() bool {
	return t.Status == StatusCompleted
}

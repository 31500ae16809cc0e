package model

import "time"

// User stores Telegram user metadata.
type User struct {
	ID         uint  `gorm:"primaryKey"`
	TelegramID int64 `gorm:"index"`
	FirstName  string
	LastName   string
	Username   string
	// LastLoginAt is stamped when a login ran the rollover.
	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

package model

import "time"

// User is a Telegram chat that receives alerts and summary reports.
type User struct {
	ID         uint  `gorm:"primaryKey"`
	TelegramID int64 `gorm:"uniqueIndex"`
	ChatID     int64
	FirstName  string
	LastName   string
	Username   string
	Subscribed bool `gorm:"default:true"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

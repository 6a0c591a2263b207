package models

import "time"

// Setting stores process-wide configuration values like the search price
type Setting struct {
	Key       string    `gorm:"primaryKey"` // Setting key name
	Value     string    // Setting value
	CreatedAt time.Time
	UpdatedAt time.Time
}

package models

import "time"

// Account is one caller's entitlement record. The ID is the numeric caller
// identity assigned by the messaging platform and never changes.
type Account struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	Handle      string    `json:"handle"`
	DisplayName string    `json:"display_name"`
	Credits     int64     `json:"credits"`
	ExpiresAt   time.Time `json:"expires_at"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

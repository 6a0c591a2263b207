package models

import "time"

// SearchLog is one completed, charged search. Rows are append-only: written
// once when a charge commits and never updated or deleted.
type SearchLog struct {
	ID             string    `gorm:"primaryKey" json:"id"` // UUID
	AccountID      int64     `gorm:"index" json:"account_id"`
	SearchTerm     string    `json:"search_term"`
	ResultCount    int       `json:"result_count"`
	CreditsCharged int64     `json:"credits_charged"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

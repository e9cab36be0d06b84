package models

import "time"

// AutomationLog records one automation run attempt for one user. Entries are
// write-once; the store prunes old entries past the retention window.
type AutomationLog struct {
	ID           int64     `db:"id" json:"id"`
	UserID       string    `db:"user_id" json:"user_id"`
	RunAt        time.Time `db:"run_at" json:"run_at"`
	Outcome      string    `db:"outcome" json:"outcome"` // success, skipped, failed
	ItemsCreated int       `db:"items_created" json:"items_created"`
	ErrorMessage string    `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

const (
	AutomationOutcomeSuccess = "success"
	AutomationOutcomeSkipped = "skipped"
	AutomationOutcomeFailed  = "failed"
)

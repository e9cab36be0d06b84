package models

import "time"

type User struct {
	ID                    string     `db:"id" json:"id"`
	Email                 string     `db:"email" json:"email"`
	FirstName             string     `db:"first_name" json:"first_name"`
	LastName              string     `db:"last_name" json:"last_name"`
	Username              string     `db:"username" json:"username"`
	ProfilePicture        string     `db:"profile_picture" json:"profile_picture"`
	Occupation            string     `db:"occupation" json:"occupation"`
	AutomationEnabled     bool       `db:"automation_enabled" json:"automation_enabled"`
	AutomationFrequency   string     `db:"automation_frequency" json:"automation_frequency"` // daily, weekly
	AutomationAutoPublish bool       `db:"automation_auto_publish" json:"automation_auto_publish"`
	LastAutoRunAt         *time.Time `db:"last_auto_run_at" json:"last_auto_run_at,omitempty"`
	OpenAIKeyEncrypted    string     `db:"openai_key_encrypted" json:"-"`
	OpenAIKeyLast4        string     `db:"openai_key_last4" json:"openai_key_last4,omitempty"`
	OpenAIKeySetAt        *time.Time `db:"openai_key_set_at" json:"openai_key_set_at,omitempty"`
	LinkedInConnected     bool       `db:"linkedin_connected" json:"linkedin_connected"`
	LinkedInCheckedAt     *time.Time `db:"linkedin_checked_at" json:"linkedin_checked_at,omitempty"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`
}

const (
	FrequencyDaily  = "daily"
	FrequencyWeekly = "weekly"
)

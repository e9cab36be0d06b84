package transfer

import "time"

type AutomationSettings struct {
	Enabled     bool       `json:"enabled"`
	Occupation  string     `json:"occupation"`
	Frequency   string     `json:"frequency"`
	AutoPublish bool       `json:"auto_publish"`
	LastRunAt   *time.Time `json:"last_run_at,omitempty"`
}

type AutomationPatch struct {
	Enabled       *bool   `json:"enabled"`
	Frequency     *string `json:"frequency"`
	Occupation    *string `json:"occupation"`
	AutoPublish   *bool   `json:"auto_publish"`
	ResetSchedule bool    `json:"reset_schedule"`
}

type AutomationRunError struct {
	UserID string `json:"user_id"`
	Error  string `json:"error"`
}

type AutomationRunSummary struct {
	UsersProcessed int                  `json:"users_processed"`
	PostsCreated   int                  `json:"posts_created"`
	Errors         []AutomationRunError `json:"errors"`
}

type UserSync struct {
	Email          string `json:"email"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profile_picture"`
}

type OpenAIKey struct {
	OpenAIAPIKey string `json:"openai_api_key"`
}

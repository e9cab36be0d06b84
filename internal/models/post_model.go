package models

import "time"

type Post struct {
	ID                  int64      `db:"id" json:"id"`
	OwnerID             string     `db:"owner_id" json:"owner_id"`
	Topic               string     `db:"topic" json:"topic"`
	Content             string     `db:"content" json:"content"`
	Status              string     `db:"status" json:"status"` // draft, scheduled, publishing, published, failed
	ScheduledFor        *time.Time `db:"scheduled_for" json:"scheduled_for,omitempty"`
	ScheduledVisibility string     `db:"scheduled_visibility" json:"scheduled_visibility"`
	PublishAttempts     int        `db:"publish_attempts" json:"publish_attempts"`
	LastPublishError    *string    `db:"last_publish_error" json:"last_publish_error,omitempty"`
	PlatformPostID      *string    `db:"platform_post_id" json:"platform_post_id,omitempty"`
	ImageURL            *string    `db:"image_url" json:"image_url,omitempty"`
	ImageStoragePath    *string    `db:"image_storage_path" json:"image_storage_path,omitempty"`
	ImageBase64         *string    `db:"image_base64" json:"image_base64,omitempty"`
	ImageMimeType       *string    `db:"image_mime_type" json:"image_mime_type,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
	PublishedAt         *time.Time `db:"published_at" json:"published_at,omitempty"`
}

const (
	PostStatusDraft      = "draft"
	PostStatusScheduled  = "scheduled"
	PostStatusPublishing = "publishing"
	PostStatusPublished  = "published"
	PostStatusFailed     = "failed"
)

const (
	VisibilityPublic      = "PUBLIC"
	VisibilityConnections = "CONNECTIONS"
)

// NormalizeVisibility maps arbitrary input onto the two visibilities the
// platform accepts, defaulting to PUBLIC.
func NormalizeVisibility(v string) string {
	switch v {
	case VisibilityConnections, "connections":
		return VisibilityConnections
	default:
		return VisibilityPublic
	}
}

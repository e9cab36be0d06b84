package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Geotechcompany/synovora/internal/models"
)

// ErrConditionalUnsupported is returned by UpdateIfStatus on backends that
// cannot perform atomic guarded writes (the file fallback). Callers must check
// ConditionalUpdates before relying on claims.
var ErrConditionalUnsupported = errors.New("store does not support conditional updates")

type PostFilter struct {
	OwnerID string
	Status  string
}

// PostPatch is a partial update. Nil fields are left untouched; the Clear*
// flags null a column out. BumpAttempts increments publish_attempts in the
// same statement so claims stay atomic.
type PostPatch struct {
	Topic                 *string
	Content               *string
	Status                *string
	ScheduledFor          *time.Time
	ClearScheduledFor     bool
	ScheduledVisibility   *string
	LastPublishError      *string
	ClearLastPublishError bool
	PlatformPostID        *string
	PublishedAt           *time.Time
	ImageURL              *string
	ImageStoragePath      *string
	ImageBase64           *string
	ImageMimeType         *string
	BumpAttempts          bool
}

type PostRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	List(ctx context.Context, filter PostFilter) ([]*models.Post, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Post, error)
	Create(ctx context.Context, post *models.Post) (int64, error)
	Update(ctx context.Context, id int64, patch PostPatch) (*models.Post, error)
	Remove(ctx context.Context, id int64) error

	// ConditionalUpdates reports whether UpdateIfStatus is available. The
	// scheduler treats a false value as "scheduling unsupported" and idles.
	ConditionalUpdates() bool

	// UpdateIfStatus applies patch only when the row still has the expected
	// status, returning the number of rows affected. Zero means another actor
	// already moved the row on.
	UpdateIfStatus(ctx context.Context, id int64, expectedStatus string, patch PostPatch) (int64, error)
}

const postColumns = `id, owner_id, topic, content, status, scheduled_for, scheduled_visibility,
	publish_attempts, last_publish_error, platform_post_id, image_url, image_storage_path,
	image_base64, image_mime_type, created_at, updated_at, published_at`

func scanPost(row interface{ Scan(...any) error }) (*models.Post, error) {
	var post models.Post
	err := row.Scan(&post.ID, &post.OwnerID, &post.Topic, &post.Content, &post.Status,
		&post.ScheduledFor, &post.ScheduledVisibility, &post.PublishAttempts,
		&post.LastPublishError, &post.PlatformPostID, &post.ImageURL, &post.ImageStoragePath,
		&post.ImageBase64, &post.ImageMimeType, &post.CreatedAt, &post.UpdatedAt, &post.PublishedAt)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) (int64, error) {
	query := `
		INSERT INTO posts (owner_id, topic, content, status, scheduled_for, scheduled_visibility,
			image_url, image_storage_path, image_base64, image_mime_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		RETURNING id
	`

	now := time.Now().UTC()
	var id int64
	err := r.db.QueryRowContext(ctx, query, post.OwnerID, post.Topic, post.Content, post.Status,
		post.ScheduledFor, post.ScheduledVisibility, post.ImageURL, post.ImageStoragePath,
		post.ImageBase64, post.ImageMimeType, now).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := fmt.Sprintf(`SELECT %s FROM posts WHERE id = $1`, postColumns)
	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

func (r *postRepository) List(ctx context.Context, filter PostFilter) ([]*models.Post, error) {
	query := fmt.Sprintf(`SELECT %s FROM posts`, postColumns)
	var conds []string
	var args []any
	if filter.OwnerID != "" {
		args = append(args, filter.OwnerID)
		conds = append(conds, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func (r *postRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Post, error) {
	query := fmt.Sprintf(`SELECT %s FROM posts
		WHERE status = $1 AND scheduled_for <= $2
		ORDER BY scheduled_for ASC
		LIMIT $3`, postColumns)

	rows, err := r.db.QueryContext(ctx, query, models.PostStatusScheduled, now, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func (r *postRepository) patchAssignments(patch PostPatch) ([]string, []any) {
	var sets []string
	var args []any

	add := func(col string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if patch.Topic != nil {
		add("topic", *patch.Topic)
	}
	if patch.Content != nil {
		add("content", *patch.Content)
	}
	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.ScheduledFor != nil {
		add("scheduled_for", *patch.ScheduledFor)
	} else if patch.ClearScheduledFor {
		sets = append(sets, "scheduled_for = NULL")
	}
	if patch.ScheduledVisibility != nil {
		add("scheduled_visibility", *patch.ScheduledVisibility)
	}
	if patch.LastPublishError != nil {
		add("last_publish_error", *patch.LastPublishError)
	} else if patch.ClearLastPublishError {
		sets = append(sets, "last_publish_error = NULL")
	}
	if patch.PlatformPostID != nil {
		add("platform_post_id", *patch.PlatformPostID)
	}
	if patch.PublishedAt != nil {
		add("published_at", *patch.PublishedAt)
	}
	if patch.ImageURL != nil {
		add("image_url", *patch.ImageURL)
	}
	if patch.ImageStoragePath != nil {
		add("image_storage_path", *patch.ImageStoragePath)
	}
	if patch.ImageBase64 != nil {
		add("image_base64", *patch.ImageBase64)
	}
	if patch.ImageMimeType != nil {
		add("image_mime_type", *patch.ImageMimeType)
	}
	if patch.BumpAttempts {
		sets = append(sets, "publish_attempts = publish_attempts + 1")
	}

	add("updated_at", time.Now().UTC())
	return sets, args
}

func (r *postRepository) Update(ctx context.Context, id int64, patch PostPatch) (*models.Post, error) {
	sets, args := r.patchAssignments(patch)
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE posts SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

func (r *postRepository) ConditionalUpdates() bool {
	return true
}

func (r *postRepository) UpdateIfStatus(ctx context.Context, id int64, expectedStatus string, patch PostPatch) (int64, error) {
	sets, args := r.patchAssignments(patch)
	args = append(args, id)
	idPos := len(args)
	args = append(args, expectedStatus)
	query := fmt.Sprintf(`UPDATE posts SET %s WHERE id = $%d AND status = $%d`,
		strings.Join(sets, ", "), idPos, len(args))

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return res.RowsAffected()
}

func (r *postRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM posts WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)

	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

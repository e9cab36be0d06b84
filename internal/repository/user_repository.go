package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/Geotechcompany/synovora/internal/models"
)

// UserPatch is a partial update applied by Upsert. Nil fields keep the
// stored value.
type UserPatch struct {
	Email             *string
	FirstName         *string
	LastName          *string
	Username          *string
	ProfilePicture    *string
	Occupation        *string
	AutomationEnabled *bool
	Frequency         *string
	AutoPublish       *bool
	OpenAIKeyEnc      *string
	OpenAIKeyLast4    *string
	OpenAIKeySetAt    *time.Time
	LinkedInConnected *bool
	LinkedInCheckedAt *time.Time
}

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	Upsert(ctx context.Context, id string, patch UserPatch) (*models.User, error)
	// ListAutomationEnabled returns users with automation switched on and a
	// non-empty occupation, oldest last run first.
	ListAutomationEnabled(ctx context.Context) ([]*models.User, error)
	SetLastAutoRun(ctx context.Context, id string, at time.Time) error
	ClearLastAutoRun(ctx context.Context, id string) error
}

const userColumns = `id, email, first_name, last_name, username, profile_picture, occupation,
	automation_enabled, automation_frequency, automation_auto_publish, last_auto_run_at,
	openai_key_encrypted, openai_key_last4, openai_key_set_at,
	linkedin_connected, linkedin_checked_at, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Email, &user.FirstName, &user.LastName, &user.Username,
		&user.ProfilePicture, &user.Occupation, &user.AutomationEnabled, &user.AutomationFrequency,
		&user.AutomationAutoPublish, &user.LastAutoRunAt, &user.OpenAIKeyEncrypted,
		&user.OpenAIKeyLast4, &user.OpenAIKeySetAt, &user.LinkedInConnected,
		&user.LinkedInCheckedAt, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return user, nil
}

func mergeUser(user *models.User, patch UserPatch) {
	if patch.Email != nil {
		user.Email = *patch.Email
	}
	if patch.FirstName != nil {
		user.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		user.LastName = *patch.LastName
	}
	if patch.Username != nil {
		user.Username = *patch.Username
	}
	if patch.ProfilePicture != nil {
		user.ProfilePicture = *patch.ProfilePicture
	}
	if patch.Occupation != nil {
		user.Occupation = *patch.Occupation
	}
	if patch.AutomationEnabled != nil {
		user.AutomationEnabled = *patch.AutomationEnabled
	}
	if patch.Frequency != nil {
		user.AutomationFrequency = *patch.Frequency
	}
	if patch.AutoPublish != nil {
		user.AutomationAutoPublish = *patch.AutoPublish
	}
	if patch.OpenAIKeyEnc != nil {
		user.OpenAIKeyEncrypted = *patch.OpenAIKeyEnc
	}
	if patch.OpenAIKeyLast4 != nil {
		user.OpenAIKeyLast4 = *patch.OpenAIKeyLast4
	}
	if patch.OpenAIKeySetAt != nil {
		user.OpenAIKeySetAt = patch.OpenAIKeySetAt
	}
	if patch.LinkedInConnected != nil {
		user.LinkedInConnected = *patch.LinkedInConnected
	}
	if patch.LinkedInCheckedAt != nil {
		user.LinkedInCheckedAt = patch.LinkedInCheckedAt
	}
}

func (r *userRepository) Upsert(ctx context.Context, id string, patch UserPatch) (*models.User, error) {
	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := existing
	if user == nil {
		user = &models.User{
			ID:                  id,
			AutomationFrequency: models.FrequencyDaily,
			CreatedAt:           now,
		}
	}
	mergeUser(user, patch)
	user.UpdatedAt = now

	query := `
		INSERT INTO users (id, email, first_name, last_name, username, profile_picture, occupation,
			automation_enabled, automation_frequency, automation_auto_publish, last_auto_run_at,
			openai_key_encrypted, openai_key_last4, openai_key_set_at,
			linkedin_connected, linkedin_checked_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			username = EXCLUDED.username,
			profile_picture = EXCLUDED.profile_picture,
			occupation = EXCLUDED.occupation,
			automation_enabled = EXCLUDED.automation_enabled,
			automation_frequency = EXCLUDED.automation_frequency,
			automation_auto_publish = EXCLUDED.automation_auto_publish,
			last_auto_run_at = EXCLUDED.last_auto_run_at,
			openai_key_encrypted = EXCLUDED.openai_key_encrypted,
			openai_key_last4 = EXCLUDED.openai_key_last4,
			openai_key_set_at = EXCLUDED.openai_key_set_at,
			linkedin_connected = EXCLUDED.linkedin_connected,
			linkedin_checked_at = EXCLUDED.linkedin_checked_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query, user.ID, user.Email, user.FirstName, user.LastName,
		user.Username, user.ProfilePicture, user.Occupation, user.AutomationEnabled,
		user.AutomationFrequency, user.AutomationAutoPublish, user.LastAutoRunAt,
		user.OpenAIKeyEncrypted, user.OpenAIKeyLast4, user.OpenAIKeySetAt,
		user.LinkedInConnected, user.LinkedInCheckedAt, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return user, nil
}

func (r *userRepository) ListAutomationEnabled(ctx context.Context) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE automation_enabled = TRUE AND occupation <> ''
		ORDER BY last_auto_run_at ASC NULLS FIRST`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *userRepository) SetLastAutoRun(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE users SET last_auto_run_at = $1, updated_at = $2 WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, at, time.Now().UTC(), id)
	if err != nil {
		slog.Info(err.Error())
	}
	return err
}

func (r *userRepository) ClearLastAutoRun(ctx context.Context, id string) error {
	query := `UPDATE users SET last_auto_run_at = NULL, updated_at = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		slog.Info(err.Error())
	}
	return err
}

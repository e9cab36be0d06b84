package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/Geotechcompany/synovora/internal/models"
)

type AutomationLogRepository interface {
	Append(ctx context.Context, entry *models.AutomationLog) (int64, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.AutomationLog, error)
	// Prune keeps the most recent `keep` entries for a user and drops the rest.
	Prune(ctx context.Context, userID string, keep int) error
}

type automationLogRepository struct {
	db *sql.DB
}

func NewAutomationLogRepository(db *sql.DB) AutomationLogRepository {
	return &automationLogRepository{db: db}
}

func (r *automationLogRepository) Append(ctx context.Context, entry *models.AutomationLog) (int64, error) {
	query := `
		INSERT INTO automation_logs (user_id, run_at, outcome, items_created, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, entry.UserID, entry.RunAt, entry.Outcome,
		entry.ItemsCreated, entry.ErrorMessage, time.Now().UTC()).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return id, nil
}

func (r *automationLogRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.AutomationLog, error) {
	query := `
		SELECT id, user_id, run_at, outcome, items_created, error_message, created_at
		FROM automation_logs
		WHERE user_id = $1
		ORDER BY run_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var entries []*models.AutomationLog
	for rows.Next() {
		var entry models.AutomationLog
		err := rows.Scan(&entry.ID, &entry.UserID, &entry.RunAt, &entry.Outcome,
			&entry.ItemsCreated, &entry.ErrorMessage, &entry.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

func (r *automationLogRepository) Prune(ctx context.Context, userID string, keep int) error {
	query := `
		DELETE FROM automation_logs
		WHERE user_id = $1 AND id NOT IN (
			SELECT id FROM automation_logs
			WHERE user_id = $1
			ORDER BY run_at DESC
			LIMIT $2
		)
	`

	_, err := r.db.ExecContext(ctx, query, userID, keep)
	if err != nil {
		slog.Info(err.Error())
	}
	return err
}

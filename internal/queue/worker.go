package queue

import (
	"context"
	"encoding/json"
	"log"

	"github.com/hibiken/asynq"
)

func (j *Queue) HandleAutomationRunTask(ctx context.Context, task *asynq.Task) error {
	var payload AutomationRunPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	if payload.UserID != "" {
		return j.automation.RunForUser(ctx, payload.UserID)
	}

	summary, err := j.automation.RunOnce(ctx)
	if err != nil {
		return err
	}

	log.Printf("Automation run finished: processed=%d created=%d errors=%d",
		summary.UsersProcessed, summary.PostsCreated, len(summary.Errors))
	return nil
}

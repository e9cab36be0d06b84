package job

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/Geotechcompany/synovora/internal/queue"
	"github.com/Geotechcompany/synovora/internal/service"
)

// AutomationJob is the cron-side trigger: it enqueues an automation run so
// the actual generation work happens on the asynq worker. Without Redis it
// falls back to running inline.
type AutomationJob struct {
	client     *asynq.Client
	automation service.AutomationService
}

func NewAutomationJob(client *asynq.Client, automation service.AutomationService) *AutomationJob {
	return &AutomationJob{client: client, automation: automation}
}

func (c *AutomationJob) Trigger() {
	if c.client != nil {
		err := queue.EnqueueAutomationRun(c.client, queue.AutomationRunPayload{})
		if err == nil {
			return
		}
		slog.Info("automation enqueue failed, running inline", "error", err.Error())
	}

	if _, err := c.automation.RunOnce(context.Background()); err != nil {
		slog.Info(err.Error())
	}
}

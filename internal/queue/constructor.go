package queue

import (
	"github.com/Geotechcompany/synovora/internal/service"
)

type Queue struct {
	automation service.AutomationService
}

func NewQueue(automation service.AutomationService) *Queue {
	return &Queue{automation: automation}
}

const TaskTypeAutomationRun = "automation:run"

// AutomationRunPayload targets one user when UserID is set, otherwise the
// whole due set.
type AutomationRunPayload struct {
	UserID string `json:"user_id,omitempty"`
}

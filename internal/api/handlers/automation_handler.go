package handlers

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"

	"github.com/Geotechcompany/synovora/internal/models"
	"github.com/Geotechcompany/synovora/internal/queue"
	"github.com/Geotechcompany/synovora/internal/service"
	"github.com/Geotechcompany/synovora/internal/transfer"
)

type AutomationHandler struct {
	s           service.AutomationService
	AsynqClient *asynq.Client
}

func NewAutomationHandler(service service.AutomationService, asynqClient *asynq.Client) *AutomationHandler {
	return &AutomationHandler{s: service, AsynqClient: asynqClient}
}

func (h *AutomationHandler) GetSettings(c *fiber.Ctx) error {
	userID := GetUserID(c)

	settings, err := h.s.Settings(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to load automation settings",
		})
	}
	return c.Status(fiber.StatusOK).JSON(settings)
}

func (h *AutomationHandler) UpdateSettings(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var patch transfer.AutomationPatch
	if err := c.BodyParser(&patch); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	settings, err := h.s.UpdateSettings(c.Context(), userID, &patch)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.Status(fiber.StatusOK).JSON(settings)
}

func (h *AutomationHandler) ListLogs(c *fiber.Ctx) error {
	userID := GetUserID(c)
	limit := c.QueryInt("limit", 0)

	logs, err := h.s.Logs(c.Context(), userID, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to list automation logs",
		})
	}
	if logs == nil {
		logs = []*models.AutomationLog{}
	}
	return c.Status(fiber.StatusOK).JSON(logs)
}

// RunNow triggers an automation run for the caller. The work is handed to the
// queue so the request returns immediately.
func (h *AutomationHandler) RunNow(c *fiber.Ctx) error {
	userID := GetUserID(c)

	if h.AsynqClient != nil {
		err := queue.EnqueueAutomationRun(h.AsynqClient, queue.AutomationRunPayload{UserID: userID})
		if err == nil {
			return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
				"message": "Automation run queued",
			})
		}
		slog.Info("automation enqueue failed, running in background", "error", err.Error())
	}

	go func() {
		if err := h.s.RunForUser(context.Background(), userID); err != nil {
			slog.Info("automation run failed", "user_id", userID, "error", err.Error())
		}
	}()

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "Automation run started",
	})
}

// RunAll is the cron-facing trigger: it kicks off a run over every due user
// and returns immediately.
func (h *AutomationHandler) RunAll(c *fiber.Ctx) error {
	if h.AsynqClient != nil {
		err := queue.EnqueueAutomationRun(h.AsynqClient, queue.AutomationRunPayload{})
		if err == nil {
			return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
				"message": "Automation run queued",
			})
		}
		slog.Info("automation enqueue failed, running in background", "error", err.Error())
	}

	go func() {
		if _, err := h.s.RunOnce(context.Background()); err != nil {
			slog.Info("automation run failed", "error", err.Error())
		}
	}()

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "Automation run started",
	})
}

package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Geotechcompany/synovora/internal/service"
	"github.com/Geotechcompany/synovora/internal/transfer"
)

type UserHandler struct {
	s service.UserService
}

func NewUserHandler(service service.UserService) *UserHandler {
	return &UserHandler{s: service}
}

func (h *UserHandler) GetUserInfo(c *fiber.Ctx) error {
	userID := GetUserID(c)

	user, err := h.s.UserInfo(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.Status(fiber.StatusOK).JSON(user)
}

// SyncUser upserts the caller's profile fields from the identity provider.
func (h *UserHandler) SyncUser(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var us transfer.UserSync
	if err := c.BodyParser(&us); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	user, err := h.s.Sync(c.Context(), userID, &us)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.Status(fiber.StatusOK).JSON(user)
}

func (h *UserHandler) SetOpenAIKey(c *fiber.Ctx) error {
	userID := GetUserID(c)

	var body transfer.OpenAIKey
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse request body",
		})
	}

	user, err := h.s.SetOpenAIKey(c.Context(), userID, body.OpenAIAPIKey)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":  "API key stored",
		"key_hint": user.OpenAIKeyLast4,
	})
}

func (h *UserHandler) RemoveOpenAIKey(c *fiber.Ctx) error {
	userID := GetUserID(c)

	if _, err := h.s.ClearOpenAIKey(c.Context(), userID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "API key removed",
	})
}

func (h *UserHandler) LinkedInStatus(c *fiber.Ctx) error {
	userID := GetUserID(c)

	connected, err := h.s.RefreshLinkedInStatus(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"connected": connected,
	})
}

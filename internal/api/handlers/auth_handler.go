package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	config "github.com/Geotechcompany/synovora/configs"
	"github.com/Geotechcompany/synovora/internal/service"
	"github.com/Geotechcompany/synovora/pkg/utils"
)

const oauthStateCookie = "li_oauth_state"

type AuthHandler struct {
	cfg      *config.Config
	linkedin *service.LinkedInService
	users    service.UserService
}

func NewAuthHandler(cfg *config.Config, linkedin *service.LinkedInService, users service.UserService) *AuthHandler {
	return &AuthHandler{cfg: cfg, linkedin: linkedin, users: users}
}

func randomState() string {
	buf := make([]byte, 16)
	rand.Read(buf)
	return hex.EncodeToString(buf)
}

// LinkedInAuthURL hands the authorization URL to the frontend instead of
// redirecting, for clients that open the consent screen themselves.
func (h *AuthHandler) LinkedInAuthURL(c *fiber.Ctx) error {
	state := randomState()

	c.Cookie(&fiber.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		HTTPOnly: true,
		Path:     "/",
		Expires:  time.Now().Add(10 * time.Minute),
	})

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"url": h.linkedin.AuthURL(state),
	})
}

// LinkedInConnect starts the member authorization flow.
func (h *AuthHandler) LinkedInConnect(c *fiber.Ctx) error {
	state := randomState()

	c.Cookie(&fiber.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		HTTPOnly: true,
		Path:     "/",
		Expires:  time.Now().Add(10 * time.Minute),
	})

	return c.Redirect(h.linkedin.AuthURL(state))
}

func (h *AuthHandler) LinkedInCallback(c *fiber.Ctx) error {
	code := c.Query("code")
	state := c.Query("state")

	if code == "" || state == "" || state != c.Cookies(oauthStateCookie) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid authorization response",
		})
	}

	c.Cookie(&fiber.Cookie{
		Name:   oauthStateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if err := h.linkedin.ExchangeCode(c.Context(), code); err != nil {
		slog.Info(err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "LinkedIn authorization failed",
		})
	}

	// Mark connection status for the logged-in user, when there is one.
	if userID := GetUserID(c); userID != "" {
		if _, err := h.users.RefreshLinkedInStatus(c.Context(), userID); err != nil {
			slog.Info(err.Error())
		}
	}

	return c.Redirect(h.cfg.FrontendURL, fiber.StatusTemporaryRedirect)
}

// Session issues a signed token for an externally authenticated identity.
// The frontend handles primary login and calls this with its user id.
func (h *AuthHandler) Session(c *fiber.Ctx) error {
	var body struct {
		UserID string `json:"user_id"`
	}
	if err := c.BodyParser(&body); err != nil || body.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id is required",
		})
	}

	token, err := utils.GenerateToken(h.cfg.SecretKey, body.UserID, 24*time.Hour)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "something went wrong",
		})
	}

	c.Cookie(&fiber.Cookie{
		Name:     h.cfg.CookieName,
		Value:    token,
		HTTPOnly: true,
		Secure:   false,
		SameSite: fiber.CookieSameSiteNoneMode,
		Path:     "/",
		Expires:  time.Now().Add(24 * time.Hour),
	})

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"token": token})
}

package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/textor-gateway/internal/provider"
	"github.com/codebuildervaibhav/textor-gateway/internal/types"
)

// AuthHandler proxies credential exchange to the auth service. The
// browser keeps the returned token under its own storage keys.
type AuthHandler struct {
	client *provider.Client
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(client *provider.Client) *AuthHandler {
	return &AuthHandler{client: client}
}

// Handle exchanges a username/password for a session.
func (h *AuthHandler) Handle(c *fiber.Ctx) error {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil || body.Username == "" || body.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Username and password are required",
			"code":  "ERR_CREDENTIALS",
		})
	}

	session, err := h.client.Login(c.UserContext(), body.Username, body.Password)
	if err != nil {
		var serverErr *types.ServerError
		if errors.As(err, &serverErr) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": serverErr.Error(),
				"code":  "ERR_LOGIN",
			})
		}
		return respondError(c, err)
	}

	return c.JSON(session)
}

package chat

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medilens/portal/internal/apperror"
	"github.com/medilens/portal/internal/plugins/auth"
)

// Handler handles HTTP requests for the chat plugin.
type Handler struct {
	service ChatService
}

// NewHandler creates a new chat handler.
func NewHandler(service ChatService) *Handler {
	return &Handler{service: service}
}

// Contexts handles GET /api/contexts.
func (h *Handler) Contexts(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.Contexts())
}

// Start handles POST /api/conversations.
func (h *Handler) Start(c echo.Context) error {
	var req StartRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("Invalid request body")
	}

	view, err := h.service.Start(c.Request().Context(), auth.GetUserID(c), req.Context)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, view)
}

// List handles GET /api/conversations.
func (h *Handler) List(c echo.Context) error {
	conversations, err := h.service.List(c.Request().Context(), auth.GetUserID(c))
	if err != nil {
		return err
	}
	if conversations == nil {
		conversations = []Conversation{}
	}
	return c.JSON(http.StatusOK, conversations)
}

// Get handles GET /api/conversations/:id.
func (h *Handler) Get(c echo.Context) error {
	view, err := h.service.Get(c.Request().Context(), auth.GetUserID(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

// Send handles POST /api/conversations/:id/messages.
func (h *Handler) Send(c echo.Context) error {
	var req SendRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("Invalid request body")
	}

	view, err := h.service.Send(c.Request().Context(), auth.GetUserID(c), c.Param("id"), req.Content)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, view)
}

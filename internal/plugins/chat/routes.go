package chat

import (
	"github.com/labstack/echo/v4"

	"github.com/medilens/portal/internal/plugins/auth"
)

// RegisterRoutes wires the chat plugin's routes. Every route requires an
// authenticated session.
func RegisterRoutes(e *echo.Echo, h *Handler, authService auth.AuthService) {
	g := e.Group("/api", auth.RequireAuth(authService))

	g.GET("/contexts", h.Contexts)
	g.POST("/conversations", h.Start)
	g.GET("/conversations", h.List)
	g.GET("/conversations/:id", h.Get)
	g.POST("/conversations/:id/messages", h.Send)
}

package auth

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medilens/portal/internal/middleware"
)

// RegisterRoutes sets up all auth-related routes on the given Echo
// instance. The submission routes are public (no session required); the
// RequireAuth middleware is exported separately for other plugins to use
// on their route groups.
//
// POST endpoints are rate-limited to slow down brute-force and credential
// stuffing: 10 attempts per IP per minute for login, 5 for signup and
// reset.
func RegisterRoutes(e *echo.Echo, h *Handler, service AuthService) {
	// Public routes -- no auth required.
	e.POST("/api/login", h.Login, middleware.RateLimit(10, time.Minute))
	e.POST("/api/register", h.Register, middleware.RateLimit(5, time.Minute))
	e.POST("/api/reset-password", h.Reset, middleware.RateLimit(5, time.Minute))

	// Logout clears whatever session the cookie names.
	e.POST("/api/logout", h.Logout)

	// Session restore for the single-page client.
	e.GET("/api/session", h.Me, RequireAuth(service))
}

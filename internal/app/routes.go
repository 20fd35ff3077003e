package app

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medilens/portal/internal/plugins/auth"
	"github.com/medilens/portal/internal/plugins/chat"
)

// RegisterRoutes sets up all application routes. It constructs each
// plugin's repository/service/handler stack and delegates to the plugin's
// route registration function.
//
// This is the single place where all routes are aggregated. When a new
// plugin is added, its routes are registered here.
func (a *App) RegisterRoutes() {
	e := a.Echo

	// Health check endpoint for container health monitoring. Verifies the
	// backing stores are actually reachable.
	e.GET("/healthz", a.healthz)

	// --- Plugin Routes ---

	// auth plugin (public: login, register, reset, logout).
	userRepo := auth.NewUserRepository(a.DB)
	authService := auth.NewAuthService(userRepo, a.Redis, a.Config.Auth.SessionTTL)
	authHandler := auth.NewHandler(authService, a.Config.Auth.SessionTTL)
	auth.RegisterRoutes(e, authHandler, authService)

	// chat plugin (session required on every route).
	convRepo := chat.NewConversationRepository(a.DB)
	generator := chat.NewCannedGenerator(a.Config.Assistant)
	chatService := chat.NewChatService(convRepo, generator)
	chatHandler := chat.NewHandler(chatService)
	chat.RegisterRoutes(e, chatHandler, authService)
}

// healthz reports whether the portal and its backing stores are up.
func (a *App) healthz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	if err := a.DB.PingContext(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "degraded", "database": "unreachable",
		})
	}
	if err := a.Redis.Ping(ctx).Err(); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "degraded", "redis": "unreachable",
		})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

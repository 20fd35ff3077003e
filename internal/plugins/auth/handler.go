package auth

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medilens/portal/internal/apperror"
)

// sessionCookieName is the HTTP cookie used to store the session token.
const sessionCookieName = "medilens_session"

// Handler handles HTTP requests for authentication (login, signup, reset,
// logout). Handlers are thin: they bind the request, drive a submission
// Flow, and render the outcome as JSON. No business logic lives here.
type Handler struct {
	service    AuthService
	sessionTTL time.Duration
}

// NewHandler creates a new auth handler with the given service.
func NewHandler(service AuthService, sessionTTL time.Duration) *Handler {
	return &Handler{service: service, sessionTTL: sessionTTL}
}

// flowResponse is the JSON shape of a resolved submission. The *_after_ms
// fields carry the display pacing the client honors before acting on the
// result (spinner-to-dashboard handoff, reset-to-login revert).
type flowResponse struct {
	Message      string       `json:"message"`
	User         *sessionUser `json:"user,omitempty"`
	HandoffAfter int64        `json:"handoff_after_ms,omitempty"`
	RevertAfter  int64        `json:"revert_after_ms,omitempty"`
}

// sessionUser is the {email, name} pair emitted to the surrounding
// application on successful login or signup.
type sessionUser struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Login processes the login form submission (POST /api/login).
func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	flow := NewFlow(h.service)
	flow.SetField(FieldEmail, req.Email)
	flow.SetField(FieldPassword, req.Password)

	out, err := flow.Submit(c.Request().Context())
	if err != nil {
		return err
	}

	setSessionCookie(c, out.Token, h.sessionTTL)
	return c.JSON(http.StatusOK, resolvedResponse(out))
}

// Register processes the signup form submission (POST /api/register).
func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	flow := NewFlow(h.service)
	flow.SwitchMode(ModeSignup)
	flow.SetField(FieldName, req.Name)
	flow.SetField(FieldEmail, req.Email)
	flow.SetField(FieldPassword, req.Password)
	flow.SetField(FieldConfirm, req.ConfirmPassword)

	out, err := flow.Submit(c.Request().Context())
	if err != nil {
		return err
	}

	setSessionCookie(c, out.Token, h.sessionTTL)
	return c.JSON(http.StatusCreated, resolvedResponse(out))
}

// Reset processes the password reset submission (POST /api/reset-password).
func (h *Handler) Reset(c echo.Context) error {
	var req ResetRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	flow := NewFlow(h.service)
	flow.SwitchMode(ModeReset)
	flow.SetField(FieldEmail, req.Email)
	flow.SetField(FieldPassword, req.Password)
	flow.SetField(FieldConfirm, req.ConfirmPassword)

	out, err := flow.Submit(c.Request().Context())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resolvedResponse(out))
}

// Logout destroys the current session (POST /api/logout). Always succeeds
// from the client's point of view; a missing session is already logged out.
func (h *Handler) Logout(c echo.Context) error {
	if token := getSessionToken(c); token != "" {
		if err := h.service.DestroySession(c.Request().Context(), token); err != nil {
			return err
		}
	}
	clearSessionCookie(c)
	return c.JSON(http.StatusOK, map[string]string{"message": "logged out"})
}

// Me returns the authenticated session's {email, name} (GET /api/session).
// The client calls this on startup to restore a logged-in state.
func (h *Handler) Me(c echo.Context) error {
	session := GetSession(c)
	if session == nil {
		return apperror.NewUnauthorized("authentication required")
	}
	return c.JSON(http.StatusOK, sessionUser{
		Email: session.Email,
		Name:  session.Name,
	})
}

// resolvedResponse converts a successful flow outcome into the wire shape.
func resolvedResponse(out Outcome) flowResponse {
	resp := flowResponse{
		Message:      out.State.Message,
		HandoffAfter: out.State.HandoffAfter.Milliseconds(),
		RevertAfter:  out.State.RevertAfter.Milliseconds(),
	}
	if out.User != nil {
		resp.User = &sessionUser{Email: out.User.Email, Name: out.User.DisplayName}
	}
	return resp
}

// --- Cookie helpers ---

// setSessionCookie stores the session token in an HttpOnly cookie.
func setSessionCookie(c echo.Context, token string, ttl time.Duration) {
	c.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.Scheme() == "https",
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie expires the session cookie immediately.
func clearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// getSessionToken reads the session token from the request cookie.
func getSessionToken(c echo.Context) string {
	cookie, err := c.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

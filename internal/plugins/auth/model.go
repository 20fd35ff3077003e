// Package auth handles user accounts, the login/signup/reset submission
// flow, and session management for the MediLens portal. It provides
// registration, login, password reset, logout, and session validation via
// random tokens stored in Redis.
package auth

import (
	"time"
)

// User is one record in the account directory. This is the domain model
// used throughout the application. Database scanning and JSON marshaling
// use this struct directly.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	DisplayName  string     `json:"name"`
	PasswordHash string     `json:"-"` // Never expose in JSON responses.
	CreatedAt    time.Time  `json:"created_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// --- Request DTOs (bound from HTTP requests) ---

// RegisterRequest holds the data submitted by the signup form.
type RegisterRequest struct {
	Name            string `json:"name" form:"name"`
	Email           string `json:"email" form:"email"`
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword"`
}

// LoginRequest holds the data submitted by the login form.
type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// ResetRequest holds the data submitted by the password reset form.
// Password carries the new credential.
type ResetRequest struct {
	Email           string `json:"email" form:"email"`
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword"`
}

// --- Service Input DTOs (passed from flow/handler to service) ---

// RegisterInput is the validated input for creating a new account.
type RegisterInput struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
}

// LoginInput is the input for authenticating a user.
type LoginInput struct {
	Email    string
	Password string
}

// ResetInput is the input for replacing an account's credential.
type ResetInput struct {
	Email           string
	Password        string
	ConfirmPassword string
}

// --- Session ---

// Session is the authenticated-session record handed off to the rest of
// the application after a successful login or signup. The session token is
// the Redis key suffix, and this struct is the value (JSON-encoded).
type Session struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

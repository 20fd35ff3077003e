package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/medilens/portal/internal/apperror"
)

// sessionKeyPrefix is the Redis key prefix for session data.
const sessionKeyPrefix = "session:"

// sessionTokenBytes is the number of random bytes in a session token.
// 32 bytes = 256 bits of entropy, hex-encoded to 64 characters.
const sessionTokenBytes = 32

// invalidCredentialsMessage is the single message for every login failure
// past field validation. It deliberately does not distinguish an unknown
// email from a wrong password, so the login form cannot be used to probe
// which addresses have accounts. The reset form stays looser and names
// the missing account; only login hides the distinction.
const invalidCredentialsMessage = "Invalid username or password"

// emailRe accepts the usual local@domain.tld shape: no whitespace, no
// second @, at least one dot in the domain.
var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// AuthService defines the business logic contract for authentication.
// The submission flow and handlers call these methods -- they never touch
// the repository directly.
type AuthService interface {
	// Register validates the signup input, creates the account, and opens
	// a session. Returns the session token and the new account.
	Register(ctx context.Context, input RegisterInput) (string, *User, error)

	// Login authenticates by email and password and opens a session.
	Login(ctx context.Context, input LoginInput) (string, *User, error)

	// ResetPassword replaces an existing account's credential.
	ResetPassword(ctx context.Context, input ResetInput) error

	ValidateSession(ctx context.Context, token string) (*Session, error)
	DestroySession(ctx context.Context, token string) error
}

// authService implements AuthService with bcrypt hashing and Redis sessions.
type authService struct {
	repo       UserRepository
	redis      *redis.Client
	sessionTTL time.Duration
}

// NewAuthService creates a new auth service with the given dependencies.
func NewAuthService(repo UserRepository, rdb *redis.Client, sessionTTL time.Duration) AuthService {
	return &authService{
		repo:       repo,
		redis:      rdb,
		sessionTTL: sessionTTL,
	}
}

// Register creates a new account. Validation runs in a fixed order and the
// first failing rule wins: name, email shape, password policy, confirmation,
// then duplicate check. On success the user is logged in immediately.
func (s *authService) Register(ctx context.Context, input RegisterInput) (string, *User, error) {
	name := strings.TrimSpace(input.Name)
	email := normalizeEmail(input.Email)

	if len(name) < 2 {
		return "", nil, apperror.NewValidation("Name must be at least 2 characters long")
	}
	if !emailRe.MatchString(email) {
		return "", nil, apperror.NewValidation("Please enter a valid email address")
	}
	if msg := checkPasswordPolicy(input.Password); msg != "" {
		return "", nil, apperror.NewValidation(msg)
	}
	if input.Password != input.ConfirmPassword {
		return "", nil, apperror.NewValidation("Passwords do not match")
	}

	// Check for duplicates before doing expensive hashing. The unique
	// index on users.email closes the remaining race in Create.
	exists, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		return "", nil, apperror.NewInternal(fmt.Errorf("checking email: %w", err))
	}
	if exists {
		return "", nil, apperror.NewConflict("An account with this email already exists")
	}

	hash, err := hashPassword(input.Password)
	if err != nil {
		return "", nil, apperror.NewInternal(fmt.Errorf("hashing password: %w", err))
	}

	user := &User{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  name,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return "", nil, appErr
		}
		return "", nil, apperror.NewInternal(fmt.Errorf("creating user: %w", err))
	}

	token, err := s.createSession(ctx, user)
	if err != nil {
		return "", nil, apperror.NewInternal(fmt.Errorf("creating session: %w", err))
	}

	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return token, user, nil
}

// Login authenticates a user by email and password. On success it creates
// a new session in Redis and returns the session token for the cookie.
func (s *authService) Login(ctx context.Context, input LoginInput) (string, *User, error) {
	email := normalizeEmail(input.Email)

	if !emailRe.MatchString(email) {
		return "", nil, apperror.NewValidation("Please enter a valid email address")
	}
	if input.Password == "" {
		return "", nil, apperror.NewValidation("Please enter your password")
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		// Don't reveal whether the email exists -- use the generic message.
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Code == 404 {
			return "", nil, apperror.NewUnauthorized(invalidCredentialsMessage)
		}
		return "", nil, apperror.NewInternal(fmt.Errorf("finding user: %w", err))
	}

	if !verifyPassword(input.Password, user.PasswordHash) {
		return "", nil, apperror.NewUnauthorized(invalidCredentialsMessage)
	}

	token, err := s.createSession(ctx, user)
	if err != nil {
		return "", nil, apperror.NewInternal(fmt.Errorf("creating session: %w", err))
	}

	// Update the user's last login timestamp (fire-and-forget, non-critical).
	if err := s.repo.UpdateLastLogin(ctx, user.ID); err != nil {
		slog.Warn("failed to update last login",
			slog.String("user_id", user.ID),
			slog.Any("error", err),
		)
	}

	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return token, user, nil
}

// ResetPassword replaces the credential of an existing account. Unlike
// login, a missing account is reported outright: the reset form says
// which check failed.
func (s *authService) ResetPassword(ctx context.Context, input ResetInput) error {
	email := normalizeEmail(input.Email)

	if !emailRe.MatchString(email) {
		return apperror.NewValidation("Please enter a valid email address")
	}

	if _, err := s.repo.FindByEmail(ctx, email); err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Code == 404 {
			return apperror.NewNotFound("No account found with this email address")
		}
		return apperror.NewInternal(fmt.Errorf("finding user: %w", err))
	}

	if msg := checkPasswordPolicy(input.Password); msg != "" {
		return apperror.NewValidation(msg)
	}
	if input.Password != input.ConfirmPassword {
		return apperror.NewValidation("Passwords do not match")
	}

	hash, err := hashPassword(input.Password)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("hashing password: %w", err))
	}

	if err := s.repo.UpdateCredential(ctx, email, hash); err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		return apperror.NewInternal(fmt.Errorf("updating credential: %w", err))
	}

	slog.Info("password reset", slog.String("email", email))

	return nil
}

// ValidateSession looks up a session token in Redis and returns the
// session data if it exists and hasn't expired.
func (s *authService) ValidateSession(ctx context.Context, token string) (*Session, error) {
	key := sessionKeyPrefix + token

	data, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, apperror.NewUnauthorized("session expired or invalid")
	}
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("reading session from redis: %w", err))
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("unmarshaling session: %w", err))
	}

	return &session, nil
}

// DestroySession removes a session from Redis, effectively logging the
// user out.
func (s *authService) DestroySession(ctx context.Context, token string) error {
	key := sessionKeyPrefix + token

	if err := s.redis.Del(ctx, key).Err(); err != nil {
		return apperror.NewInternal(fmt.Errorf("deleting session from redis: %w", err))
	}

	return nil
}

// createSession generates a random session token, stores the session data
// in Redis with the configured TTL, and returns the token.
func (s *authService) createSession(ctx context.Context, user *User) (string, error) {
	token, err := generateSessionToken()
	if err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}

	session := Session{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.DisplayName,
		CreatedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(session)
	if err != nil {
		return "", fmt.Errorf("marshaling session: %w", err)
	}

	key := sessionKeyPrefix + token
	if err := s.redis.Set(ctx, key, data, s.sessionTTL).Err(); err != nil {
		return "", fmt.Errorf("storing session in redis: %w", err)
	}

	return token, nil
}

// --- Validation helpers ---

// normalizeEmail is the single definition of email identity: trimmed and
// lowercased. Every read and write of the directory goes through it.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// checkPasswordPolicy returns the message of the first unmet rule, or ""
// if the password satisfies all of them. The rule order is fixed so the
// user always sees the same complaint for the same password.
func checkPasswordPolicy(password string) string {
	if len(password) < 6 {
		return "Password must be at least 6 characters long"
	}
	var hasLower, hasUpper, hasDigit bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
	}
	if !hasLower {
		return "Password must contain at least one lowercase letter"
	}
	if !hasUpper {
		return "Password must contain at least one uppercase letter"
	}
	if !hasDigit {
		return "Password must contain at least one number"
	}
	return ""
}

// --- Password hashing (bcrypt) ---

// hashPassword creates a bcrypt hash of the given password. Credentials
// are only ever stored hashed; the cleartext never leaves the request.
func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// verifyPassword checks a plaintext password against a stored bcrypt hash.
func verifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// --- Helpers ---

// generateSessionToken creates a cryptographically random hex-encoded token.
func generateSessionToken() (string, error) {
	b := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// userMessage extracts the client-safe message from a service error.
// Non-AppError values get a generic message so internals never leak into
// a flow resolution.
func userMessage(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "An unexpected error occurred. Please try again."
}

package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/medilens/portal/internal/apperror"
)

// --- Mock Repository ---

// mockUserRepo implements UserRepository for testing.
type mockUserRepo struct {
	createFn           func(ctx context.Context, user *User) error
	findByEmailFn      func(ctx context.Context, email string) (*User, error)
	emailExistsFn      func(ctx context.Context, email string) (bool, error)
	updateCredentialFn func(ctx context.Context, email, passwordHash string) error
	updateLastLoginFn  func(ctx context.Context, id string) error
}

func (m *mockUserRepo) Create(ctx context.Context, user *User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, apperror.NewNotFound("account not found")
}

func (m *mockUserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	if m.emailExistsFn != nil {
		return m.emailExistsFn(ctx, email)
	}
	return false, nil
}

func (m *mockUserRepo) UpdateCredential(ctx context.Context, email, passwordHash string) error {
	if m.updateCredentialFn != nil {
		return m.updateCredentialFn(ctx, email, passwordHash)
	}
	return nil
}

func (m *mockUserRepo) UpdateLastLogin(ctx context.Context, id string) error {
	if m.updateLastLoginFn != nil {
		return m.updateLastLoginFn(ctx, id)
	}
	return nil
}

// --- Test Helpers ---

// newTestAuthService creates an authService with a mock repo and a
// miniredis-backed client for the session paths.
func newTestAuthService(t *testing.T, repo *mockUserRepo) *authService {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return &authService{
		repo:       repo,
		redis:      rdb,
		sessionTTL: 24 * time.Hour,
	}
}

// assertAppError checks that err is an *apperror.AppError with the expected code.
func assertAppError(t *testing.T, err error, expectedCode int) *apperror.AppError {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %d, got nil", expectedCode)
	}
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperror.AppError, got %T: %v", err, err)
	}
	if appErr.Code != expectedCode {
		t.Errorf("expected status %d, got %d (message: %s)", expectedCode, appErr.Code, appErr.Message)
	}
	return appErr
}

// mustHash hashes a password or fails the test.
func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := hashPassword(password)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	return hash
}

// --- Register Tests ---

func TestRegister_Success(t *testing.T) {
	repo := &mockUserRepo{
		createFn: func(ctx context.Context, user *User) error {
			if user.Email != "alice@example.com" {
				t.Errorf("expected normalized email alice@example.com, got %s", user.Email)
			}
			if user.DisplayName != "Alice" {
				t.Errorf("expected display name Alice, got %s", user.DisplayName)
			}
			if user.PasswordHash == "" || user.PasswordHash == "Secret1" {
				t.Error("expected password to be stored hashed")
			}
			return nil
		},
	}

	svc := newTestAuthService(t, repo)
	token, user, err := svc.Register(context.Background(), RegisterInput{
		Name:            "  Alice  ",
		Email:           "Alice@Example.com",
		Password:        "Secret1",
		ConfirmPassword: "Secret1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user == nil || user.ID == "" {
		t.Fatal("expected user with generated ID")
	}
	if len(token) != sessionTokenBytes*2 {
		t.Errorf("expected %d-char session token, got %d", sessionTokenBytes*2, len(token))
	}

	// The session should be immediately valid: signup logs the user in.
	session, err := svc.ValidateSession(context.Background(), token)
	if err != nil {
		t.Fatalf("validating fresh session: %v", err)
	}
	if session.Email != "alice@example.com" || session.Name != "Alice" {
		t.Errorf("session handoff carries %q/%q, want alice@example.com/Alice", session.Email, session.Name)
	}
}

func TestRegister_ValidationOrder(t *testing.T) {
	// The first failing rule wins; later rules must not mask it.
	tests := []struct {
		name    string
		input   RegisterInput
		wantMsg string
	}{
		{
			name:    "short name",
			input:   RegisterInput{Name: "A", Email: "bad", Password: "x", ConfirmPassword: "y"},
			wantMsg: "Name must be at least 2 characters long",
		},
		{
			name:    "invalid email",
			input:   RegisterInput{Name: "Alice", Email: "not-an-email", Password: "x", ConfirmPassword: "y"},
			wantMsg: "Please enter a valid email address",
		},
		{
			name:    "weak password before mismatch",
			input:   RegisterInput{Name: "Alice", Email: "a@b.co", Password: "short", ConfirmPassword: "different"},
			wantMsg: "Password must be at least 6 characters long",
		},
		{
			name:    "mismatched confirmation",
			input:   RegisterInput{Name: "Alice", Email: "a@b.co", Password: "Secret1", ConfirmPassword: "Secret2"},
			wantMsg: "Passwords do not match",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestAuthService(t, &mockUserRepo{})
			_, _, err := svc.Register(context.Background(), tt.input)
			appErr := assertAppError(t, err, 422)
			if appErr.Message != tt.wantMsg {
				t.Errorf("expected %q, got %q", tt.wantMsg, appErr.Message)
			}
		})
	}
}

func TestRegister_PasswordPolicy(t *testing.T) {
	tests := []struct {
		password string
		wantMsg  string
	}{
		{"Ab1", "Password must be at least 6 characters long"},
		{"ABCDE1", "Password must contain at least one lowercase letter"},
		{"abcde1", "Password must contain at least one uppercase letter"},
		{"Abcdef", "Password must contain at least one number"},
		{"Abcde1", ""},
	}

	for _, tt := range tests {
		got := checkPasswordPolicy(tt.password)
		if got != tt.wantMsg {
			t.Errorf("checkPasswordPolicy(%q) = %q, want %q", tt.password, got, tt.wantMsg)
		}
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	created := false
	repo := &mockUserRepo{
		emailExistsFn: func(ctx context.Context, email string) (bool, error) {
			return true, nil
		},
		createFn: func(ctx context.Context, user *User) error {
			created = true
			return nil
		},
	}

	svc := newTestAuthService(t, repo)
	_, _, err := svc.Register(context.Background(), RegisterInput{
		Name:            "Alice",
		Email:           "Taken@Example.com",
		Password:        "Secret1",
		ConfirmPassword: "Secret1",
	})
	assertAppError(t, err, 409)
	if created {
		t.Error("directory must not grow on a duplicate registration")
	}
}

func TestRegister_EmailCheckError(t *testing.T) {
	repo := &mockUserRepo{
		emailExistsFn: func(ctx context.Context, email string) (bool, error) {
			return false, errors.New("db connection lost")
		},
	}

	svc := newTestAuthService(t, repo)
	_, _, err := svc.Register(context.Background(), RegisterInput{
		Name:            "Alice",
		Email:           "a@b.co",
		Password:        "Secret1",
		ConfirmPassword: "Secret1",
	})
	assertAppError(t, err, 500)
}

// --- Login Tests ---

func TestLogin_Success(t *testing.T) {
	hash := mustHash(t, "Secret1")
	lastLoginUpdated := false
	repo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*User, error) {
			if email != "bob@example.com" {
				t.Errorf("lookup must use the normalized email, got %s", email)
			}
			return &User{ID: "u1", Email: "bob@example.com", DisplayName: "Bob", PasswordHash: hash}, nil
		},
		updateLastLoginFn: func(ctx context.Context, id string) error {
			lastLoginUpdated = true
			return nil
		},
	}

	svc := newTestAuthService(t, repo)
	token, user, err := svc.Login(context.Background(), LoginInput{
		Email:    " Bob@Example.COM ",
		Password: "Secret1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.DisplayName != "Bob" {
		t.Errorf("expected Bob, got %s", user.DisplayName)
	}
	if token == "" {
		t.Error("expected session token")
	}
	if !lastLoginUpdated {
		t.Error("expected last login timestamp update")
	}
}

func TestLogin_GenericFailureMessage(t *testing.T) {
	// Wrong password and unknown email must be indistinguishable.
	hash := mustHash(t, "Secret1")

	knownRepo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*User, error) {
			return &User{ID: "u1", Email: "bob@example.com", PasswordHash: hash}, nil
		},
	}
	svc := newTestAuthService(t, knownRepo)
	_, _, wrongPassErr := svc.Login(context.Background(), LoginInput{
		Email:    "bob@example.com",
		Password: "WrongPass1",
	})
	wrongPass := assertAppError(t, wrongPassErr, 401)

	svc = newTestAuthService(t, &mockUserRepo{}) // FindByEmail defaults to not found.
	_, _, unknownErr := svc.Login(context.Background(), LoginInput{
		Email:    "nobody@example.com",
		Password: "WrongPass1",
	})
	unknown := assertAppError(t, unknownErr, 401)

	if wrongPass.Message != unknown.Message {
		t.Errorf("failure messages differ: %q vs %q (account enumeration leak)", wrongPass.Message, unknown.Message)
	}
	if wrongPass.Message != "Invalid username or password" {
		t.Errorf("unexpected failure message: %q", wrongPass.Message)
	}
}

func TestLogin_FieldValidation(t *testing.T) {
	svc := newTestAuthService(t, &mockUserRepo{})

	_, _, err := svc.Login(context.Background(), LoginInput{Email: "not-an-email", Password: "x"})
	appErr := assertAppError(t, err, 422)
	if appErr.Message != "Please enter a valid email address" {
		t.Errorf("unexpected message: %q", appErr.Message)
	}

	_, _, err = svc.Login(context.Background(), LoginInput{Email: "a@b.co", Password: ""})
	appErr = assertAppError(t, err, 422)
	if appErr.Message != "Please enter your password" {
		t.Errorf("unexpected message: %q", appErr.Message)
	}
}

// --- Reset Tests ---

func TestResetPassword_UnknownEmail(t *testing.T) {
	svc := newTestAuthService(t, &mockUserRepo{})
	err := svc.ResetPassword(context.Background(), ResetInput{
		Email:           "nobody@example.com",
		Password:        "Secret1",
		ConfirmPassword: "Secret1",
	})
	appErr := assertAppError(t, err, 404)
	if appErr.Message != "No account found with this email address" {
		t.Errorf("unexpected message: %q", appErr.Message)
	}
}

func TestResetPassword_RoundTrip(t *testing.T) {
	// After a reset the old credential must stop working and the new one
	// must log in.
	stored := &User{
		ID:           "u1",
		Email:        "bob@example.com",
		DisplayName:  "Bob",
		PasswordHash: mustHash(t, "OldPass1"),
	}
	repo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*User, error) {
			u := *stored
			return &u, nil
		},
		updateCredentialFn: func(ctx context.Context, email, passwordHash string) error {
			if email != "bob@example.com" {
				t.Errorf("update must use the normalized email, got %s", email)
			}
			stored.PasswordHash = passwordHash
			return nil
		},
	}

	svc := newTestAuthService(t, repo)
	if err := svc.ResetPassword(context.Background(), ResetInput{
		Email:           "Bob@Example.com",
		Password:        "NewPass1",
		ConfirmPassword: "NewPass1",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, _, err := svc.Login(context.Background(), LoginInput{Email: "bob@example.com", Password: "OldPass1"})
	assertAppError(t, err, 401)

	if _, _, err := svc.Login(context.Background(), LoginInput{Email: "bob@example.com", Password: "NewPass1"}); err != nil {
		t.Fatalf("login with new password failed: %v", err)
	}
}

func TestResetPassword_PolicyAndConfirmation(t *testing.T) {
	repo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*User, error) {
			return &User{ID: "u1", Email: email}, nil
		},
	}
	svc := newTestAuthService(t, repo)

	err := svc.ResetPassword(context.Background(), ResetInput{
		Email:           "bob@example.com",
		Password:        "nocaps1",
		ConfirmPassword: "nocaps1",
	})
	appErr := assertAppError(t, err, 422)
	if appErr.Message != "Password must contain at least one uppercase letter" {
		t.Errorf("unexpected message: %q", appErr.Message)
	}

	err = svc.ResetPassword(context.Background(), ResetInput{
		Email:           "bob@example.com",
		Password:        "NewPass1",
		ConfirmPassword: "NewPass2",
	})
	appErr = assertAppError(t, err, 422)
	if appErr.Message != "Passwords do not match" {
		t.Errorf("unexpected message: %q", appErr.Message)
	}
}

// --- Session Tests ---

func TestSessionLifecycle(t *testing.T) {
	hash := mustHash(t, "Secret1")
	repo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*User, error) {
			return &User{ID: "u1", Email: "bob@example.com", DisplayName: "Bob", PasswordHash: hash}, nil
		},
	}
	svc := newTestAuthService(t, repo)

	token, _, err := svc.Login(context.Background(), LoginInput{Email: "bob@example.com", Password: "Secret1"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	session, err := svc.ValidateSession(context.Background(), token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if session.UserID != "u1" || session.Email != "bob@example.com" || session.Name != "Bob" {
		t.Errorf("unexpected session: %+v", session)
	}

	if err := svc.DestroySession(context.Background(), token); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	_, err = svc.ValidateSession(context.Background(), token)
	assertAppError(t, err, 401)
}

func TestValidateSession_UnknownToken(t *testing.T) {
	svc := newTestAuthService(t, &mockUserRepo{})
	_, err := svc.ValidateSession(context.Background(), "deadbeef")
	assertAppError(t, err, 401)
}

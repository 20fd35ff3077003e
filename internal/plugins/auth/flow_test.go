package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/medilens/portal/internal/apperror"
)

// stubAuthService implements AuthService with function fields.
type stubAuthService struct {
	registerFn func(ctx context.Context, input RegisterInput) (string, *User, error)
	loginFn    func(ctx context.Context, input LoginInput) (string, *User, error)
	resetFn    func(ctx context.Context, input ResetInput) error
}

func (s *stubAuthService) Register(ctx context.Context, input RegisterInput) (string, *User, error) {
	if s.registerFn != nil {
		return s.registerFn(ctx, input)
	}
	return "", nil, errors.New("unexpected Register call")
}

func (s *stubAuthService) Login(ctx context.Context, input LoginInput) (string, *User, error) {
	if s.loginFn != nil {
		return s.loginFn(ctx, input)
	}
	return "", nil, errors.New("unexpected Login call")
}

func (s *stubAuthService) ResetPassword(ctx context.Context, input ResetInput) error {
	if s.resetFn != nil {
		return s.resetFn(ctx, input)
	}
	return errors.New("unexpected ResetPassword call")
}

func (s *stubAuthService) ValidateSession(ctx context.Context, token string) (*Session, error) {
	return nil, errors.New("unexpected ValidateSession call")
}

func (s *stubAuthService) DestroySession(ctx context.Context, token string) error {
	return errors.New("unexpected DestroySession call")
}

func TestFlow_InitialState(t *testing.T) {
	f := NewFlow(&stubAuthService{})
	state := f.State()
	if state.Mode != ModeLogin {
		t.Errorf("expected login mode, got %s", state.Mode)
	}
	if state.Phase != PhaseIdle {
		t.Errorf("expected idle phase, got %d", state.Phase)
	}
	if len(state.Fields) != 0 {
		t.Errorf("expected empty fields, got %v", state.Fields)
	}
}

func TestFlow_SwitchModeClearsFieldsAndStatus(t *testing.T) {
	f := NewFlow(&stubAuthService{})
	if err := f.SetField(FieldEmail, "a@b.co"); err != nil {
		t.Fatalf("set field: %v", err)
	}
	if err := f.SetField(FieldPassword, "Secret1"); err != nil {
		t.Fatalf("set field: %v", err)
	}

	if err := f.SwitchMode(ModeSignup); err != nil {
		t.Fatalf("switch mode: %v", err)
	}
	state := f.State()
	if state.Mode != ModeSignup {
		t.Errorf("expected signup mode, got %s", state.Mode)
	}
	if len(state.Fields) != 0 {
		t.Errorf("mode switch must clear fields, got %v", state.Fields)
	}
	if state.Phase != PhaseIdle || state.Message != "" {
		t.Errorf("mode switch must clear status, got phase %d message %q", state.Phase, state.Message)
	}
}

func TestFlow_SubmitLoginSuccess(t *testing.T) {
	svc := &stubAuthService{
		loginFn: func(ctx context.Context, input LoginInput) (string, *User, error) {
			if input.Email != "bob@example.com" || input.Password != "Secret1" {
				t.Errorf("unexpected input: %+v", input)
			}
			return "tok123", &User{ID: "u1", DisplayName: "Bob"}, nil
		},
	}
	f := NewFlow(svc)
	f.SetField(FieldEmail, "bob@example.com")
	f.SetField(FieldPassword, "Secret1")

	out, err := f.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if out.Token != "tok123" || out.User == nil || out.User.ID != "u1" {
		t.Errorf("unexpected outcome: %+v", out)
	}
	if out.State.Phase != PhaseSuccess {
		t.Errorf("expected success phase, got %d", out.State.Phase)
	}
	if out.State.Message != "Login successful! Welcome back." {
		t.Errorf("unexpected message: %q", out.State.Message)
	}
	if out.State.HandoffAfter != time.Second {
		t.Errorf("expected 1s handoff pause, got %s", out.State.HandoffAfter)
	}
	if out.State.RevertAfter != 0 {
		t.Errorf("login must not set a revert pause, got %s", out.State.RevertAfter)
	}
}

func TestFlow_SubmitSignupSuccess(t *testing.T) {
	svc := &stubAuthService{
		registerFn: func(ctx context.Context, input RegisterInput) (string, *User, error) {
			return "tok456", &User{ID: "u2"}, nil
		},
	}
	f := NewFlow(svc)
	f.SwitchMode(ModeSignup)

	out, err := f.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if out.State.Message != "Account created successfully! You are now logged in." {
		t.Errorf("unexpected message: %q", out.State.Message)
	}
	if out.State.HandoffAfter != 1500*time.Millisecond {
		t.Errorf("expected 1.5s handoff pause, got %s", out.State.HandoffAfter)
	}
}

func TestFlow_SubmitFailureKeepsFormEditable(t *testing.T) {
	svc := &stubAuthService{
		loginFn: func(ctx context.Context, input LoginInput) (string, *User, error) {
			return "", nil, apperror.NewUnauthorized("Invalid username or password")
		},
	}
	f := NewFlow(svc)
	f.SetField(FieldEmail, "bob@example.com")
	f.SetField(FieldPassword, "wrong")

	out, err := f.Submit(context.Background())
	assertAppError(t, err, 401)
	if out.State.Phase != PhaseFailure {
		t.Errorf("expected failure phase, got %d", out.State.Phase)
	}
	if out.State.Message != "Invalid username or password" {
		t.Errorf("unexpected message: %q", out.State.Message)
	}
	// The form stays editable after a failure.
	if got := out.State.Fields[FieldEmail]; got != "bob@example.com" {
		t.Errorf("failure must retain fields, got %q", got)
	}
	if err := f.SetField(FieldPassword, "Secret1"); err != nil {
		t.Errorf("expected editable form after failure: %v", err)
	}
}

func TestFlow_RejectsEventsWhileSubmitting(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	svc := &stubAuthService{
		loginFn: func(ctx context.Context, input LoginInput) (string, *User, error) {
			close(started)
			<-release
			return "tok", &User{ID: "u1"}, nil
		},
	}
	f := NewFlow(svc)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := f.Submit(context.Background()); err != nil {
			t.Errorf("submit: %v", err)
		}
	}()
	<-started

	if err := f.SwitchMode(ModeSignup); !errors.Is(err, ErrSubmitInFlight) {
		t.Errorf("expected ErrSubmitInFlight for mode switch, got %v", err)
	}
	if err := f.SetField(FieldEmail, "x@y.co"); !errors.Is(err, ErrSubmitInFlight) {
		t.Errorf("expected ErrSubmitInFlight for field edit, got %v", err)
	}
	if _, err := f.Submit(context.Background()); !errors.Is(err, ErrSubmitInFlight) {
		t.Errorf("expected ErrSubmitInFlight for second submission, got %v", err)
	}

	close(release)
	<-done
	if f.State().Phase != PhaseSuccess {
		t.Errorf("expected success after release, got %d", f.State().Phase)
	}
}

func TestFlow_ResetRevert(t *testing.T) {
	svc := &stubAuthService{
		resetFn: func(ctx context.Context, input ResetInput) error { return nil },
	}
	f := NewFlow(svc)
	f.SwitchMode(ModeReset)
	f.SetField(FieldEmail, "bob@example.com")

	out, err := f.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if out.State.Message != "Password reset successfully! You can now log in with your new password." {
		t.Errorf("unexpected message: %q", out.State.Message)
	}
	if out.State.RevertAfter != 2*time.Second {
		t.Errorf("expected 2s revert pause, got %s", out.State.RevertAfter)
	}
	if out.State.HandoffAfter != 0 {
		t.Errorf("reset must not hand off a session, got pause %s", out.State.HandoffAfter)
	}

	if err := f.Revert(); err != nil {
		t.Fatalf("revert: %v", err)
	}
	state := f.State()
	if state.Mode != ModeLogin || state.Phase != PhaseIdle || state.Message != "" {
		t.Errorf("revert must restore the initial login form, got %+v", state)
	}
}

func TestFlow_RevertOnlyFromResetSuccess(t *testing.T) {
	f := NewFlow(&stubAuthService{})
	if err := f.Revert(); !errors.Is(err, errBadTransition) {
		t.Errorf("expected errBadTransition from idle login, got %v", err)
	}

	f.SwitchMode(ModeReset)
	if err := f.Revert(); !errors.Is(err, errBadTransition) {
		t.Errorf("expected errBadTransition before a successful reset, got %v", err)
	}
}

func TestApply_ResolveRequiresSubmitting(t *testing.T) {
	state := NewFlowState()
	if _, err := apply(state, Resolve{OK: true}); !errors.Is(err, errBadTransition) {
		t.Errorf("expected errBadTransition, got %v", err)
	}
}

func TestApply_IsPure(t *testing.T) {
	state := NewFlowState()
	state.Fields[FieldEmail] = "a@b.co"

	next, err := apply(state, SetField{Name: FieldEmail, Value: "c@d.co"})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if state.Fields[FieldEmail] != "a@b.co" {
		t.Error("apply mutated its input state")
	}
	if next.Fields[FieldEmail] != "c@d.co" {
		t.Errorf("expected updated field in successor, got %q", next.Fields[FieldEmail])
	}
}

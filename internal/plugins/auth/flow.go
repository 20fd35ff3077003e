package auth

import (
	"context"
	"errors"
	"sync"
	"time"
)

// The submission flow is an explicit state machine: a pure transition
// function over FlowState plus a thin imperative shell (Flow) that invokes
// the service for side effects. Every auth submission in the portal runs
// through a Flow, so the guards here (one submission in flight at a time,
// no mode switch mid-submission) hold everywhere by construction.

// Mode selects which form the flow is driving.
type Mode string

const (
	ModeLogin  Mode = "login"
	ModeSignup Mode = "signup"
	ModeReset  Mode = "reset"
)

// Phase is the operation status of the current mode.
type Phase int

const (
	// PhaseIdle means the form is editable and nothing is in flight.
	PhaseIdle Phase = iota

	// PhaseSubmitting means a submission is in flight. Mode switches and
	// further submissions are rejected until it resolves.
	PhaseSubmitting

	// PhaseSuccess means the last submission resolved successfully.
	PhaseSuccess

	// PhaseFailure means the last submission failed; the form stays
	// editable and the user may resubmit.
	PhaseFailure
)

// Field names one input of the current form.
type Field string

const (
	FieldName     Field = "name"
	FieldEmail    Field = "email"
	FieldPassword Field = "password"
	FieldConfirm  Field = "confirmPassword"
)

// Display pacing after a resolved submission. Clients hold the success
// message on screen for this long before acting on it; the server never
// sleeps on the auth path.
const (
	// handoffDelayLogin is how long a client shows "Login successful!"
	// before switching to the authenticated view.
	handoffDelayLogin = 1 * time.Second

	// handoffDelaySignup is the same pause after account creation.
	handoffDelaySignup = 1500 * time.Millisecond

	// revertDelayReset is how long the reset-success message stays up
	// before the flow reverts to the login form.
	revertDelayReset = 2 * time.Second
)

// ErrSubmitInFlight is returned for any event that would interrupt a
// submission in progress.
var ErrSubmitInFlight = errors.New("auth: a submission is already in flight")

// errBadTransition covers events that are meaningless in the current
// phase, such as resolving a flow that was never begun.
var errBadTransition = errors.New("auth: event not valid in current phase")

// FlowState is the complete observable state of a submission flow.
type FlowState struct {
	Mode   Mode
	Phase  Phase
	Fields map[Field]string

	// Message is the success or failure text of the last resolution.
	Message string

	// HandoffAfter is nonzero after a successful login/signup: the pause
	// before the client acts on the authenticated session.
	HandoffAfter time.Duration

	// RevertAfter is nonzero after a successful reset: the pause before
	// the flow returns to the login form.
	RevertAfter time.Duration
}

// NewFlowState returns the initial state: the login form, idle, empty.
func NewFlowState() FlowState {
	return FlowState{
		Mode:   ModeLogin,
		Phase:  PhaseIdle,
		Fields: map[Field]string{},
	}
}

// --- Events ---

// Event is a flow input. The concrete types below are the full set.
type Event interface{ isFlowEvent() }

// SwitchMode changes the active form, clearing fields and status.
type SwitchMode struct{ To Mode }

// SetField records one form input.
type SetField struct {
	Name  Field
	Value string
}

// Begin marks the start of a submission.
type Begin struct{}

// Resolve marks the end of a submission.
type Resolve struct {
	OK      bool
	Message string
}

// Revert returns a reset-success flow to the login form. Fired by the
// client once RevertAfter has elapsed.
type Revert struct{}

func (SwitchMode) isFlowEvent() {}
func (SetField) isFlowEvent()   {}
func (Begin) isFlowEvent()      {}
func (Resolve) isFlowEvent()    {}
func (Revert) isFlowEvent()     {}

// apply is the pure transition function. It never mutates s; it returns
// the successor state or an error leaving the state unchanged.
func apply(s FlowState, ev Event) (FlowState, error) {
	switch e := ev.(type) {
	case SwitchMode:
		if s.Phase == PhaseSubmitting {
			return s, ErrSubmitInFlight
		}
		next := NewFlowState()
		next.Mode = e.To
		return next, nil

	case SetField:
		if s.Phase == PhaseSubmitting {
			return s, ErrSubmitInFlight
		}
		next := cloneState(s)
		next.Fields[e.Name] = e.Value
		return next, nil

	case Begin:
		if s.Phase == PhaseSubmitting {
			return s, ErrSubmitInFlight
		}
		next := cloneState(s)
		next.Phase = PhaseSubmitting
		next.Message = ""
		next.HandoffAfter = 0
		next.RevertAfter = 0
		return next, nil

	case Resolve:
		if s.Phase != PhaseSubmitting {
			return s, errBadTransition
		}
		next := cloneState(s)
		next.Message = e.Message
		if !e.OK {
			next.Phase = PhaseFailure
			return next, nil
		}
		next.Phase = PhaseSuccess
		switch s.Mode {
		case ModeLogin:
			next.HandoffAfter = handoffDelayLogin
		case ModeSignup:
			next.HandoffAfter = handoffDelaySignup
		case ModeReset:
			next.RevertAfter = revertDelayReset
		}
		return next, nil

	case Revert:
		if s.Mode != ModeReset || s.Phase != PhaseSuccess {
			return s, errBadTransition
		}
		return NewFlowState(), nil

	default:
		return s, errBadTransition
	}
}

// cloneState copies s including its field map, so apply stays pure.
func cloneState(s FlowState) FlowState {
	fields := make(map[Field]string, len(s.Fields))
	for k, v := range s.Fields {
		fields[k] = v
	}
	s.Fields = fields
	return s
}

// --- Imperative shell ---

// Outcome is the result of a completed submission.
type Outcome struct {
	// State is the resolved flow state (success or failure, with message
	// and display pacing).
	State FlowState

	// Token is the session token on login/signup success, empty otherwise.
	Token string

	// User is the authenticated or registered account on success.
	User *User
}

// Flow drives submissions through the state machine. It is safe for
// concurrent use; the Submitting phase guarantees at most one submission
// is in flight per Flow.
type Flow struct {
	mu      sync.Mutex
	state   FlowState
	service AuthService
}

// NewFlow creates a flow starting at the login form.
func NewFlow(service AuthService) *Flow {
	return &Flow{
		state:   NewFlowState(),
		service: service,
	}
}

// State returns a snapshot of the current flow state.
func (f *Flow) State() FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneState(f.state)
}

// SwitchMode changes the active form. Fails with ErrSubmitInFlight while
// a submission is running.
func (f *Flow) SwitchMode(to Mode) error {
	return f.dispatch(SwitchMode{To: to})
}

// SetField records one form input. Fails while a submission is running.
func (f *Flow) SetField(name Field, value string) error {
	return f.dispatch(SetField{Name: name, Value: value})
}

// Revert returns a reset-success flow to the login form.
func (f *Flow) Revert() error {
	return f.dispatch(Revert{})
}

func (f *Flow) dispatch(ev Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	next, err := apply(f.state, ev)
	if err != nil {
		return err
	}
	f.state = next
	return nil
}

// Submit runs the current mode's operation against the service and
// resolves the flow exactly once. The service call happens outside the
// lock; the Submitting phase keeps concurrent submissions out.
func (f *Flow) Submit(ctx context.Context) (Outcome, error) {
	f.mu.Lock()
	begun, err := apply(f.state, Begin{})
	if err != nil {
		f.mu.Unlock()
		return Outcome{}, err
	}
	f.state = begun
	fields := cloneState(begun).Fields
	mode := begun.Mode
	f.mu.Unlock()

	token, user, svcErr := f.run(ctx, mode, fields)

	res := Resolve{OK: svcErr == nil}
	if svcErr != nil {
		res.Message = userMessage(svcErr)
	} else {
		res.Message = successMessage(mode)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	resolved, err := apply(f.state, res)
	if err != nil {
		return Outcome{}, err
	}
	f.state = resolved

	if svcErr != nil {
		return Outcome{State: cloneState(resolved)}, svcErr
	}
	return Outcome{State: cloneState(resolved), Token: token, User: user}, nil
}

// run performs the mode-specific service call.
func (f *Flow) run(ctx context.Context, mode Mode, fields map[Field]string) (string, *User, error) {
	switch mode {
	case ModeSignup:
		return f.service.Register(ctx, RegisterInput{
			Name:            fields[FieldName],
			Email:           fields[FieldEmail],
			Password:        fields[FieldPassword],
			ConfirmPassword: fields[FieldConfirm],
		})

	case ModeLogin:
		return f.service.Login(ctx, LoginInput{
			Email:    fields[FieldEmail],
			Password: fields[FieldPassword],
		})

	case ModeReset:
		err := f.service.ResetPassword(ctx, ResetInput{
			Email:           fields[FieldEmail],
			Password:        fields[FieldPassword],
			ConfirmPassword: fields[FieldConfirm],
		})
		return "", nil, err

	default:
		return "", nil, errBadTransition
	}
}

// successMessage is the banner text shown after each mode resolves.
func successMessage(mode Mode) string {
	switch mode {
	case ModeSignup:
		return "Account created successfully! You are now logged in."
	case ModeReset:
		return "Password reset successfully! You can now log in with your new password."
	default:
		return "Login successful! Welcome back."
	}
}

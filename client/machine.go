package client

import (
	"context"
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"

	identity "github.com/fixcampus/go-identity"
)

// ErrOperationInFlight is returned when an auth operation starts while
// another is still running. Operations are strictly serialized; the caller
// should wait and retry rather than queue.
var ErrOperationInFlight = goerrors.New("another auth operation is in progress", goerrors.CategoryConflict).
	WithTextCode("OPERATION_IN_FLIGHT").
	WithCode(goerrors.CodeConflict)

// ErrNoPendingRegistration means CompleteRegistration or ResendCode was
// called without a prior BeginRegistration in this process.
var ErrNoPendingRegistration = goerrors.New("no registration in progress", goerrors.CategoryConflict).
	WithTextCode("NO_PENDING_REGISTRATION").
	WithCode(goerrors.CodeConflict)

// MachineOption customizes machine construction.
type MachineOption func(*Machine)

// WithMachineLogger overrides the logger.
func WithMachineLogger(logger identity.Logger) MachineOption {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMachineClock injects a custom clock (useful for tests).
func WithMachineClock(clock func() time.Time) MachineOption {
	return func(m *Machine) {
		if clock != nil {
			m.now = clock
		}
	}
}

// Machine drives the device's auth lifecycle. All mutating operations are
// serialized through a busy latch: a second operation started while one is
// in flight fails fast with ErrOperationInFlight instead of interleaving.
//
// The exposed State is a value snapshot; readers never observe a half
// applied transition.
type Machine struct {
	api    *APIClient
	store  *SessionStore
	logger identity.Logger
	now    func() time.Time

	busy  chan struct{}
	state atomicState
}

// NewMachine wires the machine to the API client and session store.
func NewMachine(api *APIClient, store *SessionStore, opts ...MachineOption) *Machine {
	m := &Machine{
		api:    api,
		store:  store,
		logger: identity.DefaultLogger(),
		now:    time.Now,
		busy:   make(chan struct{}, 1),
	}

	m.state.set(anonymousState())

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

// Current returns the latest state snapshot. Safe from any goroutine.
func (m *Machine) Current() State {
	return m.state.get()
}

// Initialize restores a persisted session, if any. It makes no network
// call: a stored token is trusted until the first authenticated request
// rejects it, so startup works offline.
func (m *Machine) Initialize(ctx context.Context) (State, error) {
	if err := m.begin(); err != nil {
		return m.Current(), err
	}
	defer m.end()

	session, err := m.store.Load()
	if err != nil {
		m.logger.Warn("failed to load stored session: %s", err)
		m.state.set(anonymousState())
		return m.Current(), nil
	}

	if session == nil {
		m.state.set(anonymousState())
		return m.Current(), nil
	}

	m.state.set(authenticatedState(session.Token, session.Principal))
	return m.Current(), nil
}

// Login authenticates a credential pair and persists the session. Shape
// problems are caught locally and never reach the network.
func (m *Machine) Login(ctx context.Context, email, password string) (State, error) {
	if err := identity.ValidateEmail(email); err != nil {
		return m.Current(), goerrors.New("invalid email address", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}
	if password == "" {
		return m.Current(), goerrors.New("password cannot be blank", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	if err := m.begin(); err != nil {
		return m.Current(), err
	}
	defer m.end()

	prev := m.state.get()
	m.state.set(State{Phase: PhaseAuthenticating})

	result, err := m.api.Login(ctx, email, password)
	if err != nil {
		m.state.set(prev)
		return m.Current(), err
	}

	return m.adoptSession(result)
}

// BeginRegistration validates nothing locally beyond what the server
// checks; it asks for an OTP and parks the form data in memory until the
// code arrives.
func (m *Machine) BeginRegistration(ctx context.Context, msg identity.RegisterUserMessage, confirmPassword string) (State, error) {
	if err := m.begin(); err != nil {
		return m.Current(), err
	}
	defer m.end()

	if _, err := m.api.SendOTP(ctx, msg, confirmPassword); err != nil {
		return m.Current(), err
	}

	pending := msg
	m.state.set(State{
		Phase:   PhaseAuthenticating,
		Pending: &pending,
	})

	return m.Current(), nil
}

// ResendCode re-requests the OTP for the in-memory pending registration.
func (m *Machine) ResendCode(ctx context.Context) (State, error) {
	if err := m.begin(); err != nil {
		return m.Current(), err
	}
	defer m.end()

	state := m.state.get()
	if state.Pending == nil {
		return state, ErrNoPendingRegistration
	}

	if _, err := m.api.ResendOTP(ctx, state.Pending.Email, state.Pending.Name); err != nil {
		return m.Current(), err
	}

	return m.Current(), nil
}

// CompleteRegistration submits the code; on success the account exists,
// the session is adopted, and the pending form data is dropped.
func (m *Machine) CompleteRegistration(ctx context.Context, code string) (State, error) {
	if err := m.begin(); err != nil {
		return m.Current(), err
	}
	defer m.end()

	state := m.state.get()
	if state.Pending == nil {
		return state, ErrNoPendingRegistration
	}

	result, err := m.api.VerifyOTP(ctx, *state.Pending, code)
	if err != nil {
		// wrong or expired codes keep the registration window open
		return m.Current(), err
	}

	return m.adoptSession(result)
}

// CancelRegistration drops the pending form data and returns to anonymous.
func (m *Machine) CancelRegistration() (State, error) {
	if err := m.begin(); err != nil {
		return m.Current(), err
	}
	defer m.end()

	m.state.set(anonymousState())
	return m.Current(), nil
}

// UpdateProfile applies a partial profile edit. The state shows Updating
// during the call; on failure the previous principal is restored intact.
func (m *Machine) UpdateProfile(ctx context.Context, patch identity.ProfilePatch) (State, error) {
	if err := m.begin(); err != nil {
		return m.Current(), err
	}
	defer m.end()

	prev := m.state.get()
	if !prev.IsAuthenticated() {
		return prev, identity.ErrUnableToFindSession
	}

	m.state.set(State{
		Phase:     PhaseUpdating,
		Token:     prev.Token,
		Principal: prev.Principal,
	})

	user, err := m.api.UpdateProfile(ctx, prev.Token, patch)
	if err != nil {
		if m.sessionRejected(err) {
			return m.forceLogout()
		}
		m.state.set(prev)
		return m.Current(), err
	}

	return m.adoptSession(&AuthResult{Token: prev.Token, Principal: user})
}

// Refresh re-fetches the principal behind the stored token. A rejected
// token logs the device out.
func (m *Machine) Refresh(ctx context.Context) (State, error) {
	if err := m.begin(); err != nil {
		return m.Current(), err
	}
	defer m.end()

	prev := m.state.get()
	if !prev.IsAuthenticated() {
		return prev, identity.ErrUnableToFindSession
	}

	user, err := m.api.Me(ctx, prev.Token)
	if err != nil {
		if m.sessionRejected(err) {
			return m.forceLogout()
		}
		return m.Current(), err
	}

	return m.adoptSession(&AuthResult{Token: prev.Token, Principal: user})
}

// Logout clears the persisted session and returns to anonymous. It is
// local only; the token simply stops being used and ages out server-side.
func (m *Machine) Logout(ctx context.Context) (State, error) {
	if err := m.begin(); err != nil {
		return m.Current(), err
	}
	defer m.end()

	return m.forceLogout()
}

func (m *Machine) adoptSession(result *AuthResult) (State, error) {
	state := authenticatedState(result.Token, result.Principal)

	if err := m.store.Save(StoredSession{
		Token:     result.Token,
		Principal: result.Principal,
		SavedAt:   m.now(),
	}); err != nil {
		// the in-memory session still works, it just won't survive restart
		m.logger.Warn("failed to persist session: %s", err)
	}

	m.state.set(state)
	return state, nil
}

func (m *Machine) forceLogout() (State, error) {
	if err := m.store.Clear(); err != nil {
		m.logger.Warn("failed to clear stored session: %s", err)
	}

	m.state.set(anonymousState())
	return m.Current(), nil
}

// sessionRejected reports whether the server refused the stored token.
func (m *Machine) sessionRejected(err error) bool {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Code == http.StatusUnauthorized
	}
	return false
}

func (m *Machine) begin() error {
	select {
	case m.busy <- struct{}{}:
		return nil
	default:
		return ErrOperationInFlight
	}
}

func (m *Machine) end() {
	<-m.busy
}

package client

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	identity "github.com/fixcampus/go-identity"
)

// fakeServer mimics the identity server's wire shape for machine tests.
type fakeServer struct {
	mu        sync.Mutex
	srv       *httptest.Server
	password  string
	principal *identity.User
	codes     map[string]string
	tokens    map[string]*identity.User
	reject401 bool
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()

	f := &fakeServer{
		password: "Sup3rsecret",
		principal: &identity.User{
			ID:     uuid.New(),
			Name:   "Ana Lima",
			Email:  "ana@campus.edu",
			Role:   identity.RoleStudent,
			Status: identity.UserStatusActive,
		},
		codes:  map[string]string{},
		tokens: map[string]*identity.User{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", f.login)
	mux.HandleFunc("/auth/send-otp", f.sendOTP)
	mux.HandleFunc("/auth/resend-otp", f.sendOTP)
	mux.HandleFunc("/auth/verify-otp", f.verifyOTP)
	mux.HandleFunc("/auth/me", f.me)
	mux.HandleFunc("/auth/profile", f.profile)

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)

	return f
}

func (f *fakeServer) write(w http.ResponseWriter, status int, success bool, textCode string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"success":   success,
		"text_code": textCode,
		"data":      data,
	})
}

func (f *fakeServer) login(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	defer f.mu.Unlock()

	if body["email"] != f.principal.Email || body["password"] != f.password {
		f.write(w, http.StatusUnauthorized, false, identity.TextCodeInvalidCredentials, nil)
		return
	}

	token := uuid.NewString()
	f.tokens[token] = f.principal
	f.write(w, http.StatusOK, true, "", map[string]any{"token": token, "user": f.principal})
}

func (f *fakeServer) sendOTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	json.NewDecoder(r.Body).Decode(&body)

	email, _ := body["email"].(string)

	f.mu.Lock()
	f.codes[email] = "424242"
	f.mu.Unlock()

	f.write(w, http.StatusAccepted, true, "", map[string]any{
		"email":      email,
		"expires_at": time.Now().Add(10 * time.Minute),
	})
}

func (f *fakeServer) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	json.NewDecoder(r.Body).Decode(&body)

	email, _ := body["email"].(string)
	code, _ := body["code"].(string)

	f.mu.Lock()
	defer f.mu.Unlock()

	want, ok := f.codes[email]
	if !ok {
		f.write(w, http.StatusBadRequest, false, identity.TextCodeChallengeNotFound, nil)
		return
	}
	if code != want {
		f.write(w, http.StatusBadRequest, false, identity.TextCodeChallengeMismatch, nil)
		return
	}

	delete(f.codes, email)

	name, _ := body["name"].(string)
	user := &identity.User{
		ID:     uuid.New(),
		Name:   name,
		Email:  email,
		Role:   identity.RoleStudent,
		Status: identity.UserStatusActive,
	}

	token := uuid.NewString()
	f.tokens[token] = user
	f.write(w, http.StatusCreated, true, "", map[string]any{"token": token, "user": user})
}

func (f *fakeServer) authed(r *http.Request) *identity.User {
	header := r.Header.Get("Authorization")
	if len(header) < 8 {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reject401 {
		return nil
	}
	return f.tokens[header[len("Bearer "):]]
}

func (f *fakeServer) me(w http.ResponseWriter, r *http.Request) {
	user := f.authed(r)
	if user == nil {
		f.write(w, http.StatusUnauthorized, false, identity.TextCodeTokenExpired, nil)
		return
	}
	f.write(w, http.StatusOK, true, "", map[string]any{"user": user})
}

func (f *fakeServer) profile(w http.ResponseWriter, r *http.Request) {
	user := f.authed(r)
	if user == nil {
		f.write(w, http.StatusUnauthorized, false, identity.TextCodeTokenExpired, nil)
		return
	}

	var patch identity.ProfilePatch
	json.NewDecoder(r.Body).Decode(&patch)

	updated := *user
	if patch.Department != nil {
		updated.Department = *patch.Department
	}
	if patch.Name != nil {
		updated.Name = *patch.Name
	}

	f.write(w, http.StatusOK, true, "", map[string]any{"user": &updated})
}

func newTestMachine(t *testing.T, f *fakeServer) *Machine {
	t.Helper()

	store, err := NewSessionStore(t.TempDir())
	require.NoError(t, err)

	return NewMachine(NewAPIClient(f.srv.URL), store)
}

func TestMachineLogin(t *testing.T) {
	f := newFakeServer(t)
	m := newTestMachine(t, f)

	state, err := m.Login(context.Background(), "ana@campus.edu", "Sup3rsecret")
	require.NoError(t, err)

	assert.Equal(t, PhaseAuthenticated, state.Phase)
	assert.True(t, state.IsAuthenticated())
	assert.NotEmpty(t, state.Token)
	assert.Equal(t, "ana@campus.edu", state.Principal.Email)
}

func TestMachineLogin_WrongPassword(t *testing.T) {
	f := newFakeServer(t)
	m := newTestMachine(t, f)

	state, err := m.Login(context.Background(), "ana@campus.edu", "nope")
	require.Error(t, err)

	assert.Equal(t, PhaseAnonymous, state.Phase)
	assert.False(t, state.IsAuthenticated())
}

func TestMachineLogin_MalformedEmailNeverHitsNetwork(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	store, err := NewSessionStore(t.TempDir())
	require.NoError(t, err)
	m := NewMachine(NewAPIClient(srv.URL), store)

	state, err := m.Login(context.Background(), "not-an-email", "Sup3rsecret")
	require.Error(t, err)
	assert.Equal(t, PhaseAnonymous, state.Phase)

	_, err = m.Login(context.Background(), "ana@campus.edu", "")
	require.Error(t, err)

	assert.Zero(t, hits)
}

func TestMachineRegistrationFlow(t *testing.T) {
	f := newFakeServer(t)
	m := newTestMachine(t, f)

	msg := identity.RegisterUserMessage{
		Name:     "Novo Aluno",
		Email:    "novo@campus.edu",
		Password: "Sup3rsecret",
		Role:     "student",
	}

	state, err := m.BeginRegistration(context.Background(), msg, "Sup3rsecret")
	require.NoError(t, err)
	assert.Equal(t, PhaseAuthenticating, state.Phase)
	assert.False(t, state.IsAuthenticated())
	require.NotNil(t, state.Pending)

	state, err = m.CompleteRegistration(context.Background(), "424242")
	require.NoError(t, err)
	assert.Equal(t, PhaseAuthenticated, state.Phase)
	assert.True(t, state.IsAuthenticated())
	assert.Nil(t, state.Pending)
	assert.Equal(t, "novo@campus.edu", state.Principal.Email)
}

func TestMachineCompleteRegistration_WrongCodeKeepsWindowOpen(t *testing.T) {
	f := newFakeServer(t)
	m := newTestMachine(t, f)

	msg := identity.RegisterUserMessage{
		Name:     "Novo Aluno",
		Email:    "novo@campus.edu",
		Password: "Sup3rsecret",
		Role:     "student",
	}

	_, err := m.BeginRegistration(context.Background(), msg, "Sup3rsecret")
	require.NoError(t, err)

	state, err := m.CompleteRegistration(context.Background(), "000000")
	require.Error(t, err)
	assert.Equal(t, PhaseAuthenticating, state.Phase)
	require.NotNil(t, state.Pending)

	// correct code still works afterwards
	state, err = m.CompleteRegistration(context.Background(), "424242")
	require.NoError(t, err)
	assert.True(t, state.IsAuthenticated())
}

func TestMachineCompleteRegistration_NoPending(t *testing.T) {
	f := newFakeServer(t)
	m := newTestMachine(t, f)

	_, err := m.CompleteRegistration(context.Background(), "424242")
	assert.ErrorIs(t, err, ErrNoPendingRegistration)
}

func TestMachineInitialize_RestoresWithoutNetwork(t *testing.T) {
	f := newFakeServer(t)

	dir := t.TempDir()
	store, err := NewSessionStore(dir)
	require.NoError(t, err)

	m := NewMachine(NewAPIClient(f.srv.URL), store)
	_, err = m.Login(context.Background(), "ana@campus.edu", "Sup3rsecret")
	require.NoError(t, err)

	// the server goes away; a fresh machine must still restore the session
	f.srv.Close()

	store2, err := NewSessionStore(dir)
	require.NoError(t, err)

	m2 := NewMachine(NewAPIClient(f.srv.URL), store2)
	state, err := m2.Initialize(context.Background())
	require.NoError(t, err)

	assert.True(t, state.IsAuthenticated())
	assert.Equal(t, "ana@campus.edu", state.Principal.Email)
}

func TestMachineRefresh_RejectedTokenLogsOut(t *testing.T) {
	f := newFakeServer(t)
	m := newTestMachine(t, f)

	_, err := m.Login(context.Background(), "ana@campus.edu", "Sup3rsecret")
	require.NoError(t, err)

	f.mu.Lock()
	f.reject401 = true
	f.mu.Unlock()

	state, err := m.Refresh(context.Background())
	require.NoError(t, err)
	assert.False(t, state.IsAuthenticated())
	assert.Equal(t, PhaseAnonymous, state.Phase)

	// the stored session is gone too
	loaded, err := m.store.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestMachineUpdateProfile(t *testing.T) {
	f := newFakeServer(t)
	m := newTestMachine(t, f)

	_, err := m.Login(context.Background(), "ana@campus.edu", "Sup3rsecret")
	require.NoError(t, err)

	dept := "Engineering"
	state, err := m.UpdateProfile(context.Background(), identity.ProfilePatch{Department: &dept})
	require.NoError(t, err)

	assert.Equal(t, PhaseAuthenticated, state.Phase)
	assert.Equal(t, "Engineering", state.Principal.Department)
}

func TestMachineUpdateProfile_NotAuthenticated(t *testing.T) {
	f := newFakeServer(t)
	m := newTestMachine(t, f)

	dept := "Engineering"
	_, err := m.UpdateProfile(context.Background(), identity.ProfilePatch{Department: &dept})
	assert.Error(t, err)
}

func TestMachineLogout(t *testing.T) {
	f := newFakeServer(t)
	m := newTestMachine(t, f)

	_, err := m.Login(context.Background(), "ana@campus.edu", "Sup3rsecret")
	require.NoError(t, err)

	state, err := m.Logout(context.Background())
	require.NoError(t, err)
	assert.False(t, state.IsAuthenticated())

	loaded, err := m.store.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestMachineSerializesOperations(t *testing.T) {
	f := newFakeServer(t)
	m := newTestMachine(t, f)

	// hold the latch as an in-flight operation would
	require.NoError(t, m.begin())

	_, err := m.Login(context.Background(), "ana@campus.edu", "Sup3rsecret")
	assert.ErrorIs(t, err, ErrOperationInFlight)

	m.end()

	_, err = m.Login(context.Background(), "ana@campus.edu", "Sup3rsecret")
	assert.NoError(t, err)
}

// TestMachineAuthInvariant hammers the machine with random operation
// sequences and checks that IsAuthenticated always agrees with the
// presence of a principal, and that Authenticated/Updating phases always
// carry a token.
func TestMachineAuthInvariant(t *testing.T) {
	f := newFakeServer(t)
	m := newTestMachine(t, f)

	rng := rand.New(rand.NewSource(7))
	ctx := context.Background()
	dept := "Engineering"

	checkState := func(s State) {
		t.Helper()
		assert.Equal(t, s.Principal != nil, s.IsAuthenticated())
		if s.Phase == PhaseAuthenticated || s.Phase == PhaseUpdating {
			assert.NotNil(t, s.Principal)
			assert.NotEmpty(t, s.Token)
		}
		if s.Phase == PhaseAnonymous {
			assert.Nil(t, s.Principal)
		}
	}

	for i := 0; i < 200; i++ {
		switch rng.Intn(8) {
		case 0:
			m.Login(ctx, "ana@campus.edu", "Sup3rsecret")
		case 1:
			m.Login(ctx, "ana@campus.edu", "wrong")
		case 2:
			m.BeginRegistration(ctx, identity.RegisterUserMessage{
				Name: "Novo", Email: "novo@campus.edu", Password: "Sup3rsecret", Role: "student",
			}, "Sup3rsecret")
		case 3:
			m.CompleteRegistration(ctx, "424242")
		case 4:
			m.CompleteRegistration(ctx, "000000")
		case 5:
			m.UpdateProfile(ctx, identity.ProfilePatch{Department: &dept})
		case 6:
			m.Logout(ctx)
		case 7:
			m.Initialize(ctx)
		}

		checkState(m.Current())
	}
}

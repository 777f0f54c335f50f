// Package client is the device-side counterpart to the identity server.
// It owns the auth state machine, the persisted session, and the HTTP
// calls that move between states.
package client

import (
	identity "github.com/fixcampus/go-identity"
)

// Phase is the coarse auth lifecycle position.
type Phase string

const (
	// PhaseAnonymous means no principal and no token.
	PhaseAnonymous Phase = "anonymous"
	// PhaseAuthenticating covers login and the OTP registration window.
	PhaseAuthenticating Phase = "authenticating"
	// PhaseAuthenticated means a principal and token are held.
	PhaseAuthenticated Phase = "authenticated"
	// PhaseUpdating is authenticated with a profile write in flight.
	PhaseUpdating Phase = "updating"
)

// State is an immutable snapshot of the machine. Mutating methods on the
// machine swap the whole snapshot, so callers can hold one without locks.
type State struct {
	Phase     Phase
	Token     string
	Principal *identity.User

	// Pending holds registration form data between the send-otp and
	// verify-otp steps. It lives in memory only and never reaches the
	// session file.
	Pending *identity.RegisterUserMessage
}

// IsAuthenticated reports whether a principal is held. It is true exactly
// when Principal is non-nil; phases Authenticated and Updating imply it.
func (s State) IsAuthenticated() bool {
	return s.Principal != nil
}

// Role returns the principal's role, or empty when anonymous.
func (s State) Role() identity.Role {
	if s.Principal == nil {
		return ""
	}
	return s.Principal.Role
}

func anonymousState() State {
	return State{Phase: PhaseAnonymous}
}

func authenticatedState(token string, principal *identity.User) State {
	return State{
		Phase:     PhaseAuthenticated,
		Token:     token,
		Principal: principal,
	}
}

package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidTransition = "INVALID_STATUS_TRANSITION"
	TextCodeTerminalStatus    = "TERMINAL_STATUS"
)

// ErrInvalidTransition is returned when a requested status change is not allowed.
var ErrInvalidTransition = goerrors.New("invalid account status transition", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// ErrTerminalStatus is returned when attempting to move away from a disabled account.
var ErrTerminalStatus = goerrors.New("account status is terminal", goerrors.CategoryConflict).
	WithTextCode(TextCodeTerminalStatus).
	WithCode(goerrors.CodeConflict)

// statusTransitions lists the allowed moves. Disabled is terminal.
var statusTransitions = map[UserStatus][]UserStatus{
	UserStatusPending:   {UserStatusActive, UserStatusDisabled},
	UserStatusActive:    {UserStatusSuspended, UserStatusDisabled},
	UserStatusSuspended: {UserStatusActive, UserStatusDisabled},
	UserStatusDisabled:  {},
}

// CanTransition reports whether moving from one status to another is allowed.
// A no-op transition (same status) is always allowed.
func CanTransition(from, to UserStatus) bool {
	if from == to {
		return true
	}
	for _, allowed := range statusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// UserLifecycle applies account status transitions, persisting the result and
// publishing an activity event for each change. Suspending an account blocks
// login on the next attempt; already issued tokens stay valid until expiry.
type UserLifecycle struct {
	users        Users
	now          func() time.Time
	logger       Logger
	activitySink ActivitySink
}

// UserLifecycleOption customizes lifecycle construction.
type UserLifecycleOption func(*UserLifecycle)

// WithLifecycleClock injects a custom clock (useful for tests).
func WithLifecycleClock(clock func() time.Time) UserLifecycleOption {
	return func(l *UserLifecycle) {
		if clock != nil {
			l.now = clock
		}
	}
}

// WithLifecycleLogger overrides the default logger.
func WithLifecycleLogger(logger Logger) UserLifecycleOption {
	return func(l *UserLifecycle) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithLifecycleActivitySink sets the sink used to publish status events.
func WithLifecycleActivitySink(sink ActivitySink) UserLifecycleOption {
	return func(l *UserLifecycle) {
		l.activitySink = normalizeActivitySink(sink)
	}
}

// NewUserLifecycle returns a lifecycle manager backed by the given user store.
func NewUserLifecycle(users Users, opts ...UserLifecycleOption) *UserLifecycle {
	l := &UserLifecycle{
		users:        users,
		now:          time.Now,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}

	return l
}

// Transition moves the account to the target status. The reason is recorded
// in the activity event, not on the user row.
func (l *UserLifecycle) Transition(ctx context.Context, actor ActorRef, user *User, target UserStatus, reason string) (*User, error) {
	if user == nil {
		return nil, ErrIdentityNotFound
	}

	user.EnsureStatus()
	from := user.Status

	if from == target {
		return user, nil
	}

	if from == UserStatusDisabled {
		return nil, ErrTerminalStatus
	}

	if !CanTransition(from, target) {
		return nil, goerrors.New("invalid account status transition", ErrInvalidTransition.Category).
			WithTextCode(ErrInvalidTransition.TextCode).
			WithCode(ErrInvalidTransition.Code).
			WithMetadata(map[string]any{"from": from, "to": target})
	}

	updated, err := l.users.UpdateStatus(ctx, user.ID, target)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist status transition")
	}

	l.recordTransition(ctx, actor, updated, from, target, reason)

	return updated, nil
}

// Suspend blocks the account from logging in until reinstated.
func (l *UserLifecycle) Suspend(ctx context.Context, actor ActorRef, user *User, reason string) (*User, error) {
	return l.Transition(ctx, actor, user, UserStatusSuspended, reason)
}

// Reinstate returns a suspended account to active.
func (l *UserLifecycle) Reinstate(ctx context.Context, actor ActorRef, user *User, reason string) (*User, error) {
	return l.Transition(ctx, actor, user, UserStatusActive, reason)
}

// Disable permanently retires the account.
func (l *UserLifecycle) Disable(ctx context.Context, actor ActorRef, user *User, reason string) (*User, error) {
	return l.Transition(ctx, actor, user, UserStatusDisabled, reason)
}

func (l *UserLifecycle) recordTransition(ctx context.Context, actor ActorRef, user *User, from, to UserStatus, reason string) {
	metadata := map[string]any{
		"from_status": from,
		"to_status":   to,
	}
	if reason != "" {
		metadata["reason"] = reason
	}

	event := ActivityEvent{
		EventType:  ActivityEventStatusChanged,
		Actor:      actor,
		UserID:     user.ID.String(),
		Metadata:   metadata,
		OccurredAt: l.now(),
	}

	sink := normalizeActivitySink(l.activitySink)
	if err := sink.Record(ctx, event); err != nil {
		l.logger.Warn("lifecycle activity sink error: %v", err)
	}
}

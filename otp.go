package identity

import (
	"context"
	"crypto/rand"
	"math/big"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// CodeSender delivers a verification code to the given address. The mailer
// package provides production implementations.
type CodeSender interface {
	Deliver(ctx context.Context, email, name, code string, expiresAt time.Time) error
}

// CodeSenderFunc adapts a function to the CodeSender interface.
type CodeSenderFunc func(ctx context.Context, email, name, code string, expiresAt time.Time) error

// Deliver implements CodeSender.
func (f CodeSenderFunc) Deliver(ctx context.Context, email, name, code string, expiresAt time.Time) error {
	if f == nil {
		return nil
	}
	return f(ctx, email, name, code, expiresAt)
}

// ChallengeTTL is how long an issued code stays valid.
var ChallengeTTL = 10 * time.Minute

// MaxChallengeAttempts caps verification attempts before the challenge is
// dropped and the caller must request a new code. Policy knob, not part of
// the wire contract.
var MaxChallengeAttempts = 5

// ChallengeManager gates registration completion on proof of email ownership.
// It owns issuance, expiry, the resend policy, and single-use consumption.
type ChallengeManager struct {
	store        ChallengeStore
	sender       CodeSender
	ttl          time.Duration
	maxAttempts  int
	now          func() time.Time
	logger       Logger
	activitySink ActivitySink
}

// ChallengeManagerOption customizes manager construction.
type ChallengeManagerOption func(*ChallengeManager)

// WithChallengeClock injects a custom clock (useful for tests).
func WithChallengeClock(clock func() time.Time) ChallengeManagerOption {
	return func(m *ChallengeManager) {
		if clock != nil {
			m.now = clock
		}
	}
}

// WithChallengeTTL overrides the default code lifetime.
func WithChallengeTTL(ttl time.Duration) ChallengeManagerOption {
	return func(m *ChallengeManager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithChallengeMaxAttempts overrides the attempt cap.
func WithChallengeMaxAttempts(max int) ChallengeManagerOption {
	return func(m *ChallengeManager) {
		if max > 0 {
			m.maxAttempts = max
		}
	}
}

// WithChallengeLogger overrides the default logger.
func WithChallengeLogger(logger Logger) ChallengeManagerOption {
	return func(m *ChallengeManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithChallengeActivitySink sets the sink used to publish challenge events.
func WithChallengeActivitySink(sink ActivitySink) ChallengeManagerOption {
	return func(m *ChallengeManager) {
		m.activitySink = normalizeActivitySink(sink)
	}
}

// NewChallengeManager returns a manager backed by the given store and sender.
func NewChallengeManager(store ChallengeStore, sender CodeSender, opts ...ChallengeManagerOption) *ChallengeManager {
	m := &ChallengeManager{
		store:        store,
		sender:       sender,
		ttl:          ChallengeTTL,
		maxAttempts:  MaxChallengeAttempts,
		now:          time.Now,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

// Issue generates a fresh 6-digit code for the email, replacing any prior
// live challenge for that address, and dispatches it through the sender.
// When delivery fails the challenge is still considered issued: the returned
// challenge is valid and the caller may retry delivery via Resend. The error
// in that case is ErrDeliveryFailed.
func (m *ChallengeManager) Issue(ctx context.Context, email, name string) (*Challenge, error) {
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid email for challenge")
	}

	code, err := generateCode()
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate verification code")
	}

	now := m.now()
	challenge := &Challenge{
		ID:        uuid.New(),
		Email:     email,
		Name:      name,
		Code:      code,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.ttl),
	}

	// Put supersedes any prior challenge for this email: single-flight,
	// no two live challenges coexist.
	if err := m.store.Put(ctx, challenge); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist challenge")
	}

	m.recordActivity(ctx, ActivityEventChallengeIssued, email, map[string]any{
		"expires_at": challenge.ExpiresAt,
	})

	if err := m.sender.Deliver(ctx, email, name, code, challenge.ExpiresAt); err != nil {
		m.logger.Error("challenge delivery failed for %s: %v", email, err)
		return challenge, goerrors.Wrap(err, ErrDeliveryFailed.Category, ErrDeliveryFailed.Message).
			WithTextCode(ErrDeliveryFailed.TextCode).
			WithCode(ErrDeliveryFailed.Code)
	}

	return challenge, nil
}

// Resend is equivalent to re-issuing: the old challenge is invalidated, a new
// code and expiry are generated, and delivery is re-attempted. Cooldown
// between resends is advisory client state, not enforced here.
func (m *ChallengeManager) Resend(ctx context.Context, email, name string) (*Challenge, error) {
	return m.Issue(ctx, email, name)
}

// Verify checks the submitted code against the live challenge for the email.
// A successful verification consumes the challenge: a second call with the
// same code reports ErrChallengeNotFound. Expired challenges are deleted as a
// side effect. A mismatch increments the attempt counter; once the cap is
// reached the challenge is dropped, forcing a re-issue.
func (m *ChallengeManager) Verify(ctx context.Context, email, code string) (*Challenge, error) {
	email = NormalizeEmail(email)

	challenge, err := m.store.Get(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrChallengeNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load challenge")
	}

	if challenge == nil || challenge.Consumed {
		return nil, ErrChallengeNotFound
	}

	now := m.now()
	if challenge.Expired(now) {
		if err := m.store.Delete(ctx, email); err != nil {
			m.logger.Warn("failed to delete expired challenge for %s: %v", email, err)
		}
		m.recordActivity(ctx, ActivityEventChallengeFailed, email, map[string]any{"reason": "expired"})
		return nil, ErrChallengeExpired
	}

	if challenge.Code != code {
		challenge.Attempts++
		if challenge.Attempts >= m.maxAttempts {
			if err := m.store.Delete(ctx, email); err != nil {
				m.logger.Warn("failed to drop challenge after attempt cap for %s: %v", email, err)
			}
		} else if err := m.store.Update(ctx, challenge); err != nil {
			m.logger.Warn("failed to track challenge attempt for %s: %v", email, err)
		}
		m.recordActivity(ctx, ActivityEventChallengeFailed, email, map[string]any{
			"reason":   "mismatch",
			"attempts": challenge.Attempts,
		})
		return nil, ErrChallengeMismatch
	}

	// single-use: consumed transitions false -> true exactly once
	challenge.Consumed = true
	if err := m.store.Delete(ctx, email); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume challenge")
	}

	m.recordActivity(ctx, ActivityEventChallengeVerified, email, nil)

	return challenge, nil
}

func (m *ChallengeManager) recordActivity(ctx context.Context, eventType ActivityEventType, email string, metadata map[string]any) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["email"] = email

	event := ActivityEvent{
		EventType:  eventType,
		Actor:      ActorRef{Type: "system"},
		Metadata:   metadata,
		OccurredAt: m.now(),
	}

	sink := normalizeActivitySink(m.activitySink)
	if err := sink.Record(ctx, event); err != nil {
		m.logger.Warn("challenge activity sink error: %v", err)
	}
}

// NormalizeEmail lowercases and trims the address; emails are unique
// case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// generateCode returns a uniformly random 6-digit numeric code, leading
// zeros preserved.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}

	code := n.String()
	for len(code) < 6 {
		code = "0" + code
	}

	return code, nil
}

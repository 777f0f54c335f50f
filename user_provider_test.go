package identity_test

import (
	"context"
	"testing"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	identity "github.com/fixcampus/go-identity"
)

type trackerStub struct {
	user       *identity.User
	attempted  int
	successful int
}

func (s *trackerStub) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*identity.User, error) {
	if s.user == nil || (s.user.Email != identifier && s.user.ID.String() != identifier) {
		return nil, repository.NewRecordNotFound()
	}
	return s.user, nil
}

func (s *trackerStub) TrackAttemptedLogin(ctx context.Context, user *identity.User) error {
	s.attempted++
	user.LoginAttempts++
	now := time.Now()
	user.LoginAttemptAt = &now
	return nil
}

func (s *trackerStub) TrackSucccessfulLogin(ctx context.Context, user *identity.User) error {
	s.successful++
	user.LoginAttempts = 0
	user.LoginAttemptAt = nil
	return nil
}

func trackedUser(t *testing.T, password string) *identity.User {
	t.Helper()

	hash, err := identity.HashPassword(password)
	require.NoError(t, err)

	user := testUser(identity.RoleStudent)
	user.PasswordHash = hash
	return user
}

func TestVerifyIdentity(t *testing.T) {
	store := &trackerStub{user: trackedUser(t, "Sup3rSecret")}
	provider := identity.NewUserProvider(store)

	found, err := provider.VerifyIdentity(context.Background(), "ada@campus.edu", "Sup3rSecret")
	require.NoError(t, err)

	assert.Equal(t, store.user.ID.String(), found.ID())
	assert.Equal(t, "ada@campus.edu", found.Email())
	assert.Equal(t, identity.RoleStudent, found.Role())
	assert.Equal(t, 1, store.successful)
	assert.Zero(t, store.attempted)
}

func TestVerifyIdentityUnknownUser(t *testing.T) {
	provider := identity.NewUserProvider(&trackerStub{})

	// unknown accounts collapse into the generic credential error
	_, err := provider.VerifyIdentity(context.Background(), "nobody@campus.edu", "whatever")
	require.Error(t, err)
	assert.True(t, identity.IsCredentialError(err))
}

func TestVerifyIdentityWrongPassword(t *testing.T) {
	store := &trackerStub{user: trackedUser(t, "Sup3rSecret")}
	provider := identity.NewUserProvider(store)

	_, err := provider.VerifyIdentity(context.Background(), "ada@campus.edu", "wrong")
	require.Error(t, err)
	assert.True(t, identity.IsCredentialError(err))
	assert.Equal(t, 1, store.attempted)
	assert.Equal(t, 1, store.user.LoginAttempts)
}

func TestVerifyIdentityCooldown(t *testing.T) {
	user := trackedUser(t, "Sup3rSecret")
	user.LoginAttempts = identity.MaxLoginAttempts + 1
	now := time.Now()
	user.LoginAttemptAt = &now

	provider := identity.NewUserProvider(&trackerStub{user: user})

	_, err := provider.VerifyIdentity(context.Background(), "ada@campus.edu", "Sup3rSecret")
	require.Error(t, err)
	assert.ErrorContains(t, err, "too many login attempts")
}

func TestVerifyIdentityCooldownExpires(t *testing.T) {
	user := trackedUser(t, "Sup3rSecret")
	user.LoginAttempts = identity.MaxLoginAttempts + 1
	stale := time.Now().Add(-48 * time.Hour)
	user.LoginAttemptAt = &stale

	provider := identity.NewUserProvider(&trackerStub{user: user})

	// the attempt counter resets once the cooldown window has passed
	_, err := provider.VerifyIdentity(context.Background(), "ada@campus.edu", "Sup3rSecret")
	require.NoError(t, err)
}

func TestVerifyIdentityInactiveAccount(t *testing.T) {
	user := trackedUser(t, "Sup3rSecret")
	user.Status = identity.UserStatusSuspended

	provider := identity.NewUserProvider(&trackerStub{user: user})

	_, err := provider.VerifyIdentity(context.Background(), "ada@campus.edu", "Sup3rSecret")
	require.Error(t, err)
	assert.ErrorContains(t, err, "not active")
}

func TestVerifyIdentityInvalidRole(t *testing.T) {
	user := trackedUser(t, "Sup3rSecret")
	user.Role = "janitor"

	provider := identity.NewUserProvider(&trackerStub{user: user})

	_, err := provider.VerifyIdentity(context.Background(), "ada@campus.edu", "Sup3rSecret")
	require.Error(t, err)
	assert.ErrorContains(t, err, "invalid role")
}

func TestFindIdentityByIdentifier(t *testing.T) {
	store := &trackerStub{user: trackedUser(t, "Sup3rSecret")}
	provider := identity.NewUserProvider(store)

	found, err := provider.FindIdentityByIdentifier(context.Background(), store.user.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "ada@campus.edu", found.Email())
	assert.Equal(t, "Physics", found.Department())
}

func TestFindIdentityByIdentifierUnknown(t *testing.T) {
	provider := identity.NewUserProvider(&trackerStub{})

	_, err := provider.FindIdentityByIdentifier(context.Background(), "nobody@campus.edu")
	assert.ErrorIs(t, err, identity.ErrIdentityNotFound)
}

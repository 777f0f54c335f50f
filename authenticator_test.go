package identity_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	identity "github.com/fixcampus/go-identity"
)

type testAuthConfig struct{}

func (testAuthConfig) GetSigningKey() string   { return "test-signing-key-0123456789abcdef" }
func (testAuthConfig) GetContextKey() string   { return "user" }
func (testAuthConfig) GetTokenExpiration() int { return 1 }
func (testAuthConfig) GetIssuer() string       { return "fixcampus-identity" }
func (testAuthConfig) GetAudience() []string   { return []string{"fixcampus"} }

type stubProvider struct {
	verify func(ctx context.Context, identifier, password string) (identity.Identity, error)
	find   func(ctx context.Context, identifier string) (identity.Identity, error)
}

func (s *stubProvider) VerifyIdentity(ctx context.Context, identifier, password string) (identity.Identity, error) {
	return s.verify(ctx, identifier, password)
}

func (s *stubProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (identity.Identity, error) {
	return s.find(ctx, identifier)
}

func TestLoginIssuesToken(t *testing.T) {
	user := testUser(identity.RoleStudent)
	provider := &stubProvider{
		verify: func(ctx context.Context, identifier, password string) (identity.Identity, error) {
			assert.Equal(t, "ada@campus.edu", identifier)
			assert.Equal(t, "Sup3rSecret", password)
			return identity.NewIdentityFromUser(user), nil
		},
	}

	auther := identity.NewAuthenticator(provider, testAuthConfig{})

	token, err := auther.Login(context.Background(), "ada@campus.edu", "Sup3rSecret")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := auther.TokenService().Validate(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.UserID())
	assert.Equal(t, identity.RoleStudent, claims.Role())
}

func TestLoginCredentialFailure(t *testing.T) {
	provider := &stubProvider{
		verify: func(ctx context.Context, identifier, password string) (identity.Identity, error) {
			return nil, identity.ErrMismatchedHashAndPassword
		},
	}

	auther := identity.NewAuthenticator(provider, testAuthConfig{})

	_, err := auther.Login(context.Background(), "ada@campus.edu", "wrong")
	require.Error(t, err)
	assert.True(t, identity.IsCredentialError(err))
}

func TestLoginNilIdentity(t *testing.T) {
	provider := &stubProvider{
		verify: func(ctx context.Context, identifier, password string) (identity.Identity, error) {
			return nil, nil
		},
	}

	auther := identity.NewAuthenticator(provider, testAuthConfig{})

	_, err := auther.Login(context.Background(), "ada@campus.edu", "whatever")
	require.Error(t, err)
	assert.True(t, identity.IsCredentialError(err))
}

func TestLoginBlocksInactiveAccount(t *testing.T) {
	user := testUser(identity.RoleStudent)
	user.Status = identity.UserStatusSuspended

	provider := &stubProvider{
		verify: func(ctx context.Context, identifier, password string) (identity.Identity, error) {
			return identity.NewIdentityFromUser(user), nil
		},
	}

	auther := identity.NewAuthenticator(provider, testAuthConfig{})

	_, err := auther.Login(context.Background(), "ada@campus.edu", "Sup3rSecret")
	require.Error(t, err)
	assert.ErrorContains(t, err, "not active")
}

func TestLoginActivityEvents(t *testing.T) {
	var events []identity.ActivityEvent
	sink := identity.ActivitySinkFunc(func(ctx context.Context, event identity.ActivityEvent) error {
		events = append(events, event)
		return nil
	})

	user := testUser(identity.RoleFaculty)
	provider := &stubProvider{
		verify: func(ctx context.Context, identifier, password string) (identity.Identity, error) {
			if password == "Sup3rSecret" {
				return identity.NewIdentityFromUser(user), nil
			}
			return nil, identity.ErrMismatchedHashAndPassword
		},
	}

	auther := identity.NewAuthenticator(provider, testAuthConfig{}).WithActivitySink(sink)

	_, err := auther.Login(context.Background(), "ada@campus.edu", "Sup3rSecret")
	require.NoError(t, err)

	_, err = auther.Login(context.Background(), "ada@campus.edu", "nope")
	require.Error(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, identity.ActivityEventLoginSuccess, events[0].EventType)
	assert.Equal(t, user.ID.String(), events[0].UserID)
	assert.Equal(t, identity.ActivityEventLoginFailure, events[1].EventType)
}

func TestIssueToken(t *testing.T) {
	auther := identity.NewAuthenticator(&stubProvider{}, testAuthConfig{})
	user := testUser(identity.RoleAuthority)

	token, err := auther.IssueToken(identity.NewIdentityFromUser(user))
	require.NoError(t, err)

	claims, err := auther.TokenService().Validate(token)
	require.NoError(t, err)
	assert.Equal(t, identity.RoleAuthority, claims.Role())
}

func TestSessionFromToken(t *testing.T) {
	auther := identity.NewAuthenticator(&stubProvider{}, testAuthConfig{})
	user := testUser(identity.RoleFaculty)

	token, err := auther.IssueToken(identity.NewIdentityFromUser(user))
	require.NoError(t, err)

	session, err := auther.SessionFromToken(token)
	require.NoError(t, err)

	assert.Equal(t, user.ID.String(), session.GetUserID())
	assert.Equal(t, identity.RoleFaculty, session.GetRole())

	uid, err := session.GetUserUUID()
	require.NoError(t, err)
	assert.Equal(t, user.ID, uid)
}

func TestSessionFromTokenRejectsGarbage(t *testing.T) {
	auther := identity.NewAuthenticator(&stubProvider{}, testAuthConfig{})

	_, err := auther.SessionFromToken("not-a-token")
	require.Error(t, err)
	assert.True(t, identity.IsMalformedError(err))
}

func TestIdentityFromSession(t *testing.T) {
	user := testUser(identity.RoleStudent)
	provider := &stubProvider{
		find: func(ctx context.Context, identifier string) (identity.Identity, error) {
			assert.Equal(t, user.ID.String(), identifier)
			return identity.NewIdentityFromUser(user), nil
		},
	}

	auther := identity.NewAuthenticator(provider, testAuthConfig{})

	session := &identity.SessionObject{UserID: user.ID.String(), UserRole: user.Role}
	found, err := auther.IdentityFromSession(context.Background(), session)
	require.NoError(t, err)
	assert.Equal(t, user.Email, found.Email())
}

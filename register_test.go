package identity_test

import (
	"context"
	"database/sql"
	"testing"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	identity "github.com/fixcampus/go-identity"
)

// registrarUsers stubs the two Users methods registration touches.
type registrarUsers struct {
	identity.Users

	existing *identity.User
	created  *identity.User
}

func (s *registrarUsers) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*identity.User, error) {
	if s.existing != nil && s.existing.Email == identifier {
		return s.existing, nil
	}
	return nil, repository.NewRecordNotFound()
}

func (s *registrarUsers) CreateTx(ctx context.Context, tx bun.IDB, record *identity.User, criteria ...repository.InsertCriteria) (*identity.User, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	s.created = record
	return record, nil
}

type registrarRepo struct {
	identity.RepositoryManager

	users *registrarUsers
}

func (r *registrarRepo) Users() identity.Users { return r.users }

func (r *registrarRepo) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

func registrationMessage() identity.RegisterUserMessage {
	return identity.RegisterUserMessage{
		Name:       "Ada Okafor",
		Email:      "Ada@Campus.EDU",
		Password:   "Sup3rSecret",
		Role:       identity.RoleStudent,
		Department: "Physics",
	}
}

func TestRegisterUser(t *testing.T) {
	repo := &registrarRepo{users: &registrarUsers{}}
	registrar := identity.NewRegistrar(repo)

	user, err := registrar.RegisterUser(context.Background(), registrationMessage())
	require.NoError(t, err)
	require.NotNil(t, user)

	assert.Equal(t, "ada@campus.edu", user.Email)
	assert.Equal(t, "Ada Okafor", user.Name)
	assert.Equal(t, identity.RoleStudent, user.Role)
	assert.Equal(t, "Physics", user.Department)

	// registration completes only after the challenge, the account is live
	assert.Equal(t, identity.UserStatusActive, user.Status)
	assert.True(t, user.EmailValidated)

	// the secret is stored hashed, never verbatim
	assert.NotEqual(t, "Sup3rSecret", user.PasswordHash)
	assert.NoError(t, identity.ComparePasswordAndHash("Sup3rSecret", user.PasswordHash))
}

func TestRegisterUserEmailTaken(t *testing.T) {
	existing := testUser(identity.RoleStudent)
	existing.Email = "ada@campus.edu"

	repo := &registrarRepo{users: &registrarUsers{existing: existing}}
	registrar := identity.NewRegistrar(repo)

	_, err := registrar.RegisterUser(context.Background(), registrationMessage())
	require.Error(t, err)
	assert.ErrorContains(t, err, "already exists")
}

func TestRegisterUserEmptyPassword(t *testing.T) {
	repo := &registrarRepo{users: &registrarUsers{}}
	registrar := identity.NewRegistrar(repo)

	msg := registrationMessage()
	msg.Password = ""

	_, err := registrar.RegisterUser(context.Background(), msg)
	require.Error(t, err)
}

func TestRegisterUserCancelledContext(t *testing.T) {
	repo := &registrarRepo{users: &registrarUsers{}}
	registrar := identity.NewRegistrar(repo)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := registrar.RegisterUser(ctx, registrationMessage())
	require.Error(t, err)
}

func TestRegisterUserHashidID(t *testing.T) {
	repo := &registrarRepo{users: &registrarUsers{}}
	registrar := identity.NewRegistrar(repo)

	msg := registrationMessage()
	msg.UseHashid = true

	first, err := registrar.RegisterUser(context.Background(), msg)
	require.NoError(t, err)

	second, err := registrar.RegisterUser(context.Background(), msg)
	require.NoError(t, err)

	// hashid derivation makes the ID a pure function of the email
	assert.Equal(t, first.ID, second.ID)
	assert.NotEqual(t, uuid.Nil, first.ID)
}

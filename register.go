package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

// RegisterUserMessage carries the registration form data. It is held by the
// caller across the OTP step and only executed once the challenge is
// verified; nothing is persisted before that.
type RegisterUserMessage struct {
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	Password   string   `json:"password"`
	Role       string   `json:"role"`
	Department string   `json:"department"`
	Categories []string `json:"categories,omitempty"`
	UseHashid  bool     `json:"-"`
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// Registrar creates verified principals.
type Registrar struct {
	repo RepositoryManager
}

var _ AccountRegistrerer = (*Registrar)(nil)

// NewRegistrar builds a Registrar on top of the repository manager.
func NewRegistrar(repo RepositoryManager) *Registrar {
	return &Registrar{repo: repo}
}

// RegisterUser hashes the secret and creates the principal in a transaction.
// Registration completion implies email ownership was proven, so the account
// lands active with the email marked verified.
func (h *Registrar) RegisterUser(ctx context.Context, event RegisterUserMessage) (*User, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *Registrar) execute(ctx context.Context, event RegisterUserMessage) (*User, error) {
	user := &User{}
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		email := NormalizeEmail(event.Email)

		if _, err := h.repo.Users().GetByIdentifierTx(ctx, tx, email); err == nil {
			return ErrEmailTaken
		} else if !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check for existing account")
		}

		user.PasswordHash = hash
		user.Email = email
		user.Name = event.Name
		user.Role = Role(event.Role)
		user.Department = event.Department
		user.Categories = event.Categories
		user.Status = UserStatusActive
		user.EmailValidated = true
		if event.UseHashid {
			if id, err := hashid.NewUUID(email); err == nil {
				user.ID = id
			}
		}

		if user, err = h.repo.Users().CreateTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}

		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	return user, nil
}

package identity

import (
	"context"
	"database/sql"
	"errors"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Challenges is the bun-backed ChallengeStore. The unique index on email
// makes Put a replace: issuing a new challenge supersedes the prior one.
// The store methods are keyed by email, shadowing the embedded repository's
// criteria-based accessors.
type Challenges interface {
	ChallengeStore
}

type challenges struct {
	repository.Repository[*Challenge]
	db *bun.DB
}

var _ Challenges = (*challenges)(nil)

// NewChallengesRepository builds the SQL challenge store.
func NewChallengesRepository(db *bun.DB) Challenges {
	repo := repository.NewRepository[*Challenge](db, repository.ModelHandlers[*Challenge]{
		NewRecord: func() *Challenge { return &Challenge{} },
		GetID: func(c *Challenge) uuid.UUID {
			if c == nil {
				return uuid.Nil
			}
			return c.ID
		},
		SetID: func(c *Challenge, id uuid.UUID) {
			if c != nil {
				c.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &challenges{
		Repository: repo,
		db:         db,
	}
}

func (r *challenges) Put(ctx context.Context, challenge *Challenge) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*Challenge)(nil)).
			Where("?TableAlias.email = ?", challenge.Email).
			Exec(ctx); err != nil {
			return err
		}

		_, err := tx.NewInsert().Model(challenge).Exec(ctx)
		return err
	})
}

func (r *challenges) Get(ctx context.Context, email string) (*Challenge, error) {
	record := &Challenge{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", email).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"email": email})
		}
		return nil, err
	}

	return record, nil
}

func (r *challenges) Update(ctx context.Context, challenge *Challenge) error {
	_, err := r.db.NewUpdate().
		Model(challenge).
		WherePK().
		Exec(ctx)
	return err
}

func (r *challenges) Delete(ctx context.Context, email string) error {
	_, err := r.db.NewDelete().
		Model((*Challenge)(nil)).
		Where("?TableAlias.email = ?", email).
		Exec(ctx)
	return err
}

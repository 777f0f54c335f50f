package identity

import (
	"context"
	"encoding/json"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/redis/go-redis/v9"
)

const redisChallengePrefix = "identity:otp:"

// RedisChallengeStore keeps challenges in Redis with a TTL matching the code
// expiry, so lapsed challenges vanish without a sweeper.
type RedisChallengeStore struct {
	client *redis.Client
	now    func() time.Time
}

var _ ChallengeStore = (*RedisChallengeStore)(nil)

// NewRedisChallengeStore wraps an existing redis client.
func NewRedisChallengeStore(client *redis.Client) *RedisChallengeStore {
	return &RedisChallengeStore{
		client: client,
		now:    time.Now,
	}
}

func (s *RedisChallengeStore) key(email string) string {
	return redisChallengePrefix + email
}

// redisChallenge carries the code explicitly; the model hides it from JSON
// so API responses can never echo it.
type redisChallenge struct {
	Challenge
	Code string `json:"code"`
}

func encodeChallenge(challenge *Challenge) ([]byte, error) {
	return json.Marshal(redisChallenge{Challenge: *challenge, Code: challenge.Code})
}

func decodeChallenge(payload []byte) (*Challenge, error) {
	envelope := &redisChallenge{}
	if err := json.Unmarshal(payload, envelope); err != nil {
		return nil, err
	}
	challenge := envelope.Challenge
	challenge.Code = envelope.Code
	return &challenge, nil
}

func (s *RedisChallengeStore) Put(ctx context.Context, challenge *Challenge) error {
	payload, err := encodeChallenge(challenge)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode challenge")
	}

	ttl := challenge.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		ttl = time.Second
	}

	// SET overwrites any prior value, giving us replace semantics for free.
	if err := s.client.Set(ctx, s.key(challenge.Email), payload, ttl).Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store challenge")
	}

	return nil
}

func (s *RedisChallengeStore) Get(ctx context.Context, email string) (*Challenge, error) {
	payload, err := s.client.Get(ctx, s.key(email)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"email": email})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load challenge")
	}

	challenge, err := decodeChallenge(payload)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode challenge")
	}

	return challenge, nil
}

func (s *RedisChallengeStore) Update(ctx context.Context, challenge *Challenge) error {
	payload, err := encodeChallenge(challenge)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode challenge")
	}

	// keep the original expiry; KEEPTTL preserves the remaining window
	if err := s.client.Set(ctx, s.key(challenge.Email), payload, redis.KeepTTL).Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update challenge")
	}

	return nil
}

func (s *RedisChallengeStore) Delete(ctx context.Context, email string) error {
	if err := s.client.Del(ctx, s.key(email)).Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete challenge")
	}
	return nil
}

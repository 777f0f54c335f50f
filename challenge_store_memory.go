package identity

import (
	"context"
	"sync"

	"github.com/goliatone/go-repository-bun"
)

// MemoryChallengeStore is a thread-safe in-memory ChallengeStore, used in
// tests and single-process development setups.
type MemoryChallengeStore struct {
	mu         sync.RWMutex
	challenges map[string]*Challenge
}

var _ ChallengeStore = (*MemoryChallengeStore)(nil)

// NewMemoryChallengeStore creates an empty in-memory store.
func NewMemoryChallengeStore() *MemoryChallengeStore {
	return &MemoryChallengeStore{
		challenges: make(map[string]*Challenge),
	}
}

func (s *MemoryChallengeStore) Put(ctx context.Context, challenge *Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cloned := *challenge
	s.challenges[challenge.Email] = &cloned
	return nil
}

func (s *MemoryChallengeStore) Get(ctx context.Context, email string) (*Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	challenge, ok := s.challenges[email]
	if !ok {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{"email": email})
	}

	cloned := *challenge
	return &cloned, nil
}

func (s *MemoryChallengeStore) Update(ctx context.Context, challenge *Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.challenges[challenge.Email]; !ok {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"email": challenge.Email})
	}

	cloned := *challenge
	s.challenges[challenge.Email] = &cloned
	return nil
}

func (s *MemoryChallengeStore) Delete(ctx context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.challenges, email)
	return nil
}

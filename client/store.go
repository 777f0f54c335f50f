package client

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"

	identity "github.com/fixcampus/go-identity"
)

// DefaultSessionDir is where session files land unless overridden.
const DefaultSessionDir = ".config/fixcampus"

const sessionFileName = "session.json"

// StoredSession is the persisted shape: the token and the principal are
// written together so a restart can restore the full snapshot without a
// network call. Pending registration data is deliberately absent.
type StoredSession struct {
	Token     string         `json:"token"`
	Principal *identity.User `json:"principal"`
	SavedAt   time.Time      `json:"saved_at"`
}

// SessionStore persists the session to a single JSON file. Files are
// written with 0600 and swapped in atomically via temp file and rename, so
// a crash mid-write never leaves a torn session behind.
type SessionStore struct {
	mu  sync.Mutex
	dir string
}

// NewSessionStore creates the storage directory if needed. An empty dir
// defaults to ~/.config/fixcampus.
func NewSessionStore(dir string) (*SessionStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve home directory")
		}
		dir = filepath.Join(home, DefaultSessionDir)
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create session directory")
	}

	return &SessionStore{dir: dir}, nil
}

// Save writes the session atomically.
func (s *SessionStore) Save(session StoredSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session.SavedAt.IsZero() {
		session.SavedAt = time.Now()
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to marshal session")
	}

	path := filepath.Join(s.dir, sessionFileName)
	tmp, err := os.CreateTemp(s.dir, sessionFileName+".tmp-*")
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create session temp file")
	}

	tmpPath := tmp.Name()
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to restrict session file permissions")
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to write session file")
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to close session file")
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to swap session file")
	}

	return nil
}

// Load reads the persisted session. A missing file is not an error; it
// returns (nil, nil) meaning no session.
func (s *SessionStore) Load() (*StoredSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, sessionFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read session file")
	}

	session := &StoredSession{}
	if err := json.Unmarshal(data, session); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode session file")
	}

	if session.Token == "" || session.Principal == nil {
		return nil, nil
	}

	return session, nil
}

// Clear removes the session file. Clearing an absent session is a no-op.
func (s *SessionStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(filepath.Join(s.dir, sessionFileName))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to remove session file")
	}
	return nil
}

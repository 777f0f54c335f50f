package client

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	identity "github.com/fixcampus/go-identity"
)

func testPrincipal() *identity.User {
	return &identity.User{
		ID:     uuid.New(),
		Name:   "Ana Lima",
		Email:  "ana@campus.edu",
		Role:   identity.RoleStudent,
		Status: identity.UserStatusActive,
	}
}

func TestSessionStoreRoundTrip(t *testing.T) {
	store, err := NewSessionStore(t.TempDir())
	require.NoError(t, err)

	principal := testPrincipal()
	require.NoError(t, store.Save(StoredSession{
		Token:     "test-token",
		Principal: principal,
	}))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, "test-token", loaded.Token)
	assert.Equal(t, principal.Email, loaded.Principal.Email)
	assert.Equal(t, principal.Role, loaded.Principal.Role)
	assert.False(t, loaded.SavedAt.IsZero())
}

func TestSessionStoreLoad_NoFile(t *testing.T) {
	store, err := NewSessionStore(t.TempDir())
	require.NoError(t, err)

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestSessionStoreSave_Overwrites(t *testing.T) {
	store, err := NewSessionStore(t.TempDir())
	require.NoError(t, err)

	first := testPrincipal()
	require.NoError(t, store.Save(StoredSession{Token: "first", Principal: first}))

	second := testPrincipal()
	second.Email = "other@campus.edu"
	require.NoError(t, store.Save(StoredSession{Token: "second", Principal: second}))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "second", loaded.Token)
	assert.Equal(t, "other@campus.edu", loaded.Principal.Email)
}

func TestSessionStoreClear(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSessionStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save(StoredSession{Token: "tok", Principal: testPrincipal()}))
	require.NoError(t, store.Clear())

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)

	// clearing twice is fine
	require.NoError(t, store.Clear())
}

func TestSessionStoreFilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not meaningful on windows")
	}

	dir := t.TempDir()
	store, err := NewSessionStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save(StoredSession{Token: "tok", Principal: testPrincipal()}))

	info, err := os.Stat(filepath.Join(dir, sessionFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestSessionStoreLoad_TornFileRejected(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSessionStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, sessionFileName), []byte("{not json"), 0600))

	_, err = store.Load()
	assert.Error(t, err)
}

func TestSessionStoreLoad_TokenWithoutPrincipal(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSessionStore(dir)
	require.NoError(t, err)

	// a partial session is treated as no session, never a half-auth state
	raw := []byte(`{"token":"tok","saved_at":"` + time.Now().Format(time.RFC3339) + `"}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, sessionFileName), raw, 0600))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

package session

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/QuantPilot/internal/models"
)

func openStore(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(path)
	require.NoError(t, err)
	return s
}

func TestLoginPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	s := openStore(t, path)
	assert.False(t, s.IsAuthenticated())
	assert.Nil(t, s.User())

	user := models.UserInfo{ID: "u1", Username: "trader", PermissionLevel: 1}
	require.NoError(t, s.Login("tok-123", user))
	assert.True(t, s.IsAuthenticated())
	require.NoError(t, s.Close())

	s = openStore(t, path)
	defer s.Close()
	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, "tok-123", s.Token())
	require.NotNil(t, s.User())
	assert.Equal(t, user, *s.User())
}

func TestTeardownClearsAllKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	s := openStore(t, path)
	defer s.Close()

	require.NoError(t, s.Login("tok", models.UserInfo{ID: "u1"}))
	for _, k := range Keys() {
		_, ok := s.Persisted(k)
		assert.True(t, ok, k)
	}

	require.NoError(t, s.Teardown())
	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, s.Token())
	assert.Nil(t, s.User())
	for _, k := range Keys() {
		_, ok := s.Persisted(k)
		assert.False(t, ok, k)
	}
}

func TestLoginRequiresToken(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "session.db"))
	defer s.Close()
	assert.Error(t, s.Login(" ", models.UserInfo{}))
	assert.False(t, s.HasToken())
}

func TestUserIsACopy(t *testing.T) {
	s := openStore(t, filepath.Join(t.TempDir(), "session.db"))
	defer s.Close()
	require.NoError(t, s.Login("tok", models.UserInfo{Username: "a"}))

	u := s.User()
	u.Username = "mutated"
	assert.Equal(t, "a", s.User().Username)

	require.NoError(t, s.SetUser(models.UserInfo{Username: "b", PermissionLevel: 9}))
	assert.Equal(t, 9, s.User().PermissionLevel)
	assert.Equal(t, "tok", s.Token())
}

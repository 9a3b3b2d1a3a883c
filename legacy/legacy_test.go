package legacy

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stephnangue/tokenvault/credential"
	"github.com/stephnangue/tokenvault/logger"
)

func testRT(home, env, client string) credential.RefreshToken {
	return credential.RefreshToken{
		HomeAccountID: home,
		Environment:   env,
		ClientID:      client,
		Secret:        "rt-secret-" + client,
	}
}

func TestBridgeRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := NewJSONBridge(&InMemoryBlob{}, logger.NewNop())

	rt := testRT("uid.utid", "login.example.com", "client-a")
	require.NoError(t, b.WriteRefreshToken(ctx, rt))

	got, ok, err := b.RefreshToken(ctx, "client-a", "uid.utid", nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rt.Secret, got.Secret)

	// wrong client, wrong account, wrong environment all miss
	_, ok, err = b.RefreshToken(ctx, "client-b", "uid.utid", nil)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = b.RefreshToken(ctx, "client-a", "other.utid", nil)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = b.RefreshToken(ctx, "client-a", "uid.utid", []string{"login.other.example"})
	require.NoError(t, err)
	assert.False(t, ok)

	users, err := b.AllUsers(ctx, nil)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "uid.utid", users[0].HomeAccountID)
}

func TestBridgeDropsFamilyID(t *testing.T) {
	ctx := context.Background()
	b := NewJSONBridge(&InMemoryBlob{}, logger.NewNop())

	rt := testRT("uid.utid", "login.example.com", "client-a")
	rt.FamilyID = "1"
	require.NoError(t, b.WriteRefreshToken(ctx, rt))

	got, ok, err := b.RefreshToken(ctx, "client-a", "uid.utid", nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, got.FamilyID)
}

func TestBridgeRemoveUser(t *testing.T) {
	ctx := context.Background()
	b := NewJSONBridge(&InMemoryBlob{}, logger.NewNop())

	require.NoError(t, b.WriteRefreshToken(ctx, testRT("uid.utid", "login.example.com", "client-a")))
	require.NoError(t, b.WriteRefreshToken(ctx, testRT("uid.utid", "login.example.com", "client-b")))
	require.NoError(t, b.WriteRefreshToken(ctx, testRT("other.utid", "login.example.com", "client-a")))

	require.NoError(t, b.RemoveUser(ctx, "uid.utid"))

	// both clients' tokens for the user are gone
	_, ok, err := b.RefreshToken(ctx, "client-a", "uid.utid", nil)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = b.RefreshToken(ctx, "client-b", "uid.utid", nil)
	require.NoError(t, err)
	assert.False(t, ok)

	// the other user survives
	_, ok, err = b.RefreshToken(ctx, "client-a", "other.utid", nil)
	require.NoError(t, err)
	assert.True(t, ok)

	// removing again is a no-op
	require.NoError(t, b.RemoveUser(ctx, "uid.utid"))
}

func TestBridgeSkipsIncompleteToken(t *testing.T) {
	ctx := context.Background()
	b := NewJSONBridge(&InMemoryBlob{}, logger.NewNop())

	require.NoError(t, b.WriteRefreshToken(ctx, credential.RefreshToken{ClientID: "client-a", Secret: "x"}))

	users, err := b.AllUsers(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestBridgeEnvironmentFilter(t *testing.T) {
	ctx := context.Background()
	b := NewJSONBridge(&InMemoryBlob{}, logger.NewNop())

	require.NoError(t, b.WriteRefreshToken(ctx, testRT("uid.utid", "login.example.com", "client-a")))
	require.NoError(t, b.WriteRefreshToken(ctx, testRT("uid2.utid", "login.sovereign.example", "client-a")))

	users, err := b.AllUsers(ctx, []string{"login.example.com"})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "uid.utid", users[0].HomeAccountID)
}

func TestFileBlob(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "legacy.json")
	b := NewJSONBridge(&FileBlob{Path: path}, logger.NewNop())

	require.NoError(t, b.WriteRefreshToken(ctx, testRT("uid.utid", "login.example.com", "client-a")))

	// a fresh bridge over the same file sees the state
	b2 := NewJSONBridge(&FileBlob{Path: path}, logger.NewNop())
	_, ok, err := b2.RefreshToken(ctx, "client-a", "uid.utid", nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFileBlobMissingFile(t *testing.T) {
	b := &FileBlob{Path: filepath.Join(t.TempDir(), "absent.json")}
	data, err := b.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestUserAccountConversion(t *testing.T) {
	u := User{HomeAccountID: "uid.utid", Environment: "login.example.com", Username: "user@example.com", Realm: "utid"}
	a := u.Account()
	assert.Equal(t, "uid.utid", a.HomeAccountID)
	assert.Equal(t, "user@example.com", a.PreferredUsername)
	assert.Equal(t, "utid", a.Realm)
}

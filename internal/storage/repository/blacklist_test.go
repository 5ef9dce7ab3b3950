package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/user-management/internal/models"
)

func TestStorage_Blacklist(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	factory := NewTestDataFactory(storage)

	id := factory.CreateUser(t, models.User{Email: "ann@example.com"})
	other := factory.CreateUser(t, models.User{Email: "bob@example.com"})

	ok, err := storage.IsBlacklisted(ctx, id, "tok")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, storage.AddToBlacklist(ctx, id, "tok"))
	require.NoError(t, storage.AddToBlacklist(ctx, id, "tok"), "repeated revoke is a no-op")

	ok, err = storage.IsBlacklisted(ctx, id, "tok")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = storage.IsBlacklisted(ctx, other, "tok")
	require.NoError(t, err)
	assert.False(t, ok, "entries are scoped to the user")

	ok, err = storage.IsBlacklisted(ctx, "not-a-uuid", "tok")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStorage_Blacklist_Expiry(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	ctx := context.Background()
	factory := NewTestDataFactory(storage)

	id := factory.CreateUser(t, models.User{Email: "ann@example.com"})
	factory.BlacklistAt(t, id, "old", time.Now().Add(-models.BlacklistTTL-time.Hour))
	factory.BlacklistAt(t, id, "recent", time.Now().Add(-time.Hour))

	ok, err := storage.IsBlacklisted(ctx, id, "old")
	require.NoError(t, err)
	assert.False(t, ok, "entries older than the TTL are ignored")

	n, err := storage.PurgeBlacklist(ctx, time.Now().Add(-models.BlacklistTTL))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ok, err = storage.IsBlacklisted(ctx, id, "recent")
	require.NoError(t, err)
	assert.True(t, ok)
}

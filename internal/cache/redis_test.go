package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/user-management/internal/config"
	"github.com/magabrotheeeer/user-management/internal/models"
)

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := config.RedisConnection{RedisAddress: mr.Addr()}

	cache, err := InitServer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache, mr
}

func TestSetAndGet(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	expected := models.User{ID: "1", Email: "a@b.co", Role: models.RoleUser, Name: "Alice", PasswordHash: "secret"}
	require.NoError(t, cache.Set(ctx, UserKey("1"), expected, time.Minute))

	var actual models.User
	found, err := cache.Get(ctx, UserKey("1"), &actual)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Alice", actual.Name)
	assert.Equal(t, models.RoleUser, actual.Role)
	assert.Empty(t, actual.PasswordHash, "password hash must never reach the cache")
}

func TestGetNotFound(t *testing.T) {
	cache, _ := setupTestCache(t)

	var out models.User
	found, err := cache.Get(context.Background(), "no_such_key", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInvalidate(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "key", "value", time.Minute))
	require.NoError(t, cache.Invalidate(ctx, "key"))

	var out string
	found, err := cache.Get(ctx, "key", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestExpiration(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "key", "value", time.Minute))
	mr.FastForward(2 * time.Minute)

	var out string
	found, err := cache.Get(ctx, "key", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetInvalidJSON(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Db.Set(ctx, "bad", []byte("not-json"), time.Minute).Err())

	var out models.User
	found, err := cache.Get(ctx, "bad", &out)
	assert.Error(t, err)
	assert.False(t, found)
}

func TestInitServer_Unavailable(t *testing.T) {
	_, err := InitServer(context.Background(), config.RedisConnection{
		RedisAddress:     "127.0.0.1:1",
		RedisDialTimeout: 100 * time.Millisecond,
	})
	assert.Error(t, err)
}

func TestUserKey(t *testing.T) {
	assert.Equal(t, "user:abc", UserKey("abc"))
}

func TestPing(t *testing.T) {
	cache, mr := setupTestCache(t)

	require.NoError(t, cache.Ping(context.Background()))

	mr.Close()
	assert.Error(t, cache.Ping(context.Background()))
}

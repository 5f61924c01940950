package storage

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusmarket/storefront/internal/domain"
)

// setupTestRedis creates a miniredis server and returns a RedisStore instance
func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis, func()) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	store := NewRedisStore(client, "storefront")

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return store, mr, cleanup
}

func TestRedisGet_Success(t *testing.T) {
	store, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	lines := []domain.CartLine{
		{ProductID: "p1", Quantity: 2, PriceAtAdd: decimal.NewFromInt(500)},
		{ProductID: "p2", Quantity: 1, PriceAtAdd: decimal.NewFromInt(80)},
	}
	raw, _ := json.Marshal(lines)
	mr.Set("storefront:"+KeyCart, string(raw))

	var got []domain.CartLine
	err := GetJSON(context.Background(), store, KeyCart, &got)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "p1", got[0].ProductID)
}

func TestRedisGet_NotFound(t *testing.T) {
	store, _, cleanup := setupTestRedis(t)
	defer cleanup()

	data, err := store.Get(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, data)
}

func TestRedisGet_InvalidJSON(t *testing.T) {
	store, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	require.NoError(t, mr.Set("storefront:"+KeyUser, `{"_id":`))

	var id domain.Identity
	err := GetJSON(context.Background(), store, KeyUser, &id)
	require.ErrorContains(t, err, "unmarshal user failed")
}

func TestRedisSet_NoExpiry(t *testing.T) {
	store, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	err := SetJSON(context.Background(), store, KeyToken, "abc.def.ghi")
	require.NoError(t, err)

	stored, err := mr.Get("storefront:" + KeyToken)
	require.NoError(t, err)
	assert.Equal(t, `"abc.def.ghi"`, stored)
	assert.Zero(t, mr.TTL("storefront:"+KeyToken))
}

func TestRedisDelete(t *testing.T) {
	store, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	mr.Set("storefront:"+KeyCart, "[]")
	assert.True(t, mr.Exists("storefront:"+KeyCart))

	require.NoError(t, store.Delete(context.Background(), KeyCart))
	assert.False(t, mr.Exists("storefront:"+KeyCart))

	// Deleting a missing key should not error
	assert.NoError(t, store.Delete(context.Background(), KeyCart))
}

func TestRedisKey_Format(t *testing.T) {
	assert.Equal(t, "storefront:token", NewRedisStore(nil, "storefront").key("token"))
	assert.Equal(t, "token", NewRedisStore(nil, "").key("token"))
}

func TestNewRedisStoreWithConfig_PingFails(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisStoreWithConfig(context.Background(), RedisConfig{Addr: addr})
	require.ErrorContains(t, err, "redis ping failed")
}

package catalog

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and returns a RedisCache instance
func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis, func()) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cache := NewRedisCache(client, time.Minute)

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return cache, mr, cleanup
}

func TestRedisCache_Get_Success(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	payload, _ := json.Marshal(DefaultProducts())
	require.NoError(t, mr.Set(productsCacheKey, string(payload)))

	products, err := cache.Get(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 3)
	assert.Equal(t, "prod_1", products[0].ID)
}

func TestRedisCache_Get_CacheMiss(t *testing.T) {
	cache, _, cleanup := setupTestRedis(t)
	defer cleanup()

	products, err := cache.Get(context.Background())
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Nil(t, products)
}

func TestRedisCache_Get_InvalidJSON(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	require.NoError(t, mr.Set(productsCacheKey, `[{"id":`))

	_, err := cache.Get(context.Background())
	require.ErrorContains(t, err, "unmarshal products failed")
}

func TestRedisCache_Set_AppliesTTL(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	require.NoError(t, cache.Set(context.Background(), DefaultProducts()))

	assert.True(t, mr.Exists(productsCacheKey))
	ttl := mr.TTL(productsCacheKey)
	assert.GreaterOrEqual(t, ttl, time.Minute)
	assert.Less(t, ttl, 6*time.Minute)

	mr.FastForward(10 * time.Minute)
	assert.False(t, mr.Exists(productsCacheKey))
}

func TestRedisCache_Delete(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	require.NoError(t, cache.Set(context.Background(), DefaultProducts()))
	require.NoError(t, cache.Delete(context.Background()))
	assert.False(t, mr.Exists(productsCacheKey))
}

func TestRedisCache_ServerDown(t *testing.T) {
	cache, mr, cleanup := setupTestRedis(t)
	defer cleanup()
	mr.Close()

	_, err := cache.Get(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
	assert.ErrorContains(t, err, "redis get failed")
}

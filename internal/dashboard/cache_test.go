package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), mr
}

func TestCacheFetchJSONPopulatesAndServes(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	loads := 0
	loader := func(ctx context.Context) (any, error) {
		loads++
		return map[string]int{"total": 7}, nil
	}

	key, err := cache.BuildKey(ctx, "dashboard", "stats")
	require.NoError(t, err)

	var first map[string]int
	require.NoError(t, cache.FetchJSON(ctx, key, &first, loader))
	require.Equal(t, 7, first["total"])
	require.Equal(t, 1, loads)

	// Second fetch hits the cache, the loader stays at one call.
	var second map[string]int
	require.NoError(t, cache.FetchJSON(ctx, key, &second, loader))
	require.Equal(t, 7, second["total"])
	require.Equal(t, 1, loads)
}

func TestCacheBumpInvalidates(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	before, err := cache.BuildKey(ctx, "dashboard", "stats")
	require.NoError(t, err)

	require.NoError(t, cache.Bump(ctx))

	after, err := cache.BuildKey(ctx, "dashboard", "stats")
	require.NoError(t, err)
	require.NotEqual(t, before, after)
}

func TestCacheTTLExpiry(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	loads := 0
	loader := func(ctx context.Context) (any, error) {
		loads++
		return loads, nil
	}

	key, err := cache.BuildKey(ctx, "dashboard", "stats")
	require.NoError(t, err)

	var v int
	require.NoError(t, cache.FetchJSON(ctx, key, &v, loader))
	require.Equal(t, 1, v)

	mr.FastForward(2 * time.Minute)

	require.NoError(t, cache.FetchJSON(ctx, key, &v, loader))
	require.Equal(t, 2, v)
	require.Equal(t, 2, loads)
}

func TestCacheNilClientFallsThrough(t *testing.T) {
	var cache *Cache
	ctx := context.Background()

	var v int
	err := cache.FetchJSON(ctx, "any", &v, func(ctx context.Context) (any, error) {
		return 42, nil
	})
	require.NoError(t, err)
	require.Equal(t, 42, v)

	err = cache.FetchJSON(ctx, "any", &v, nil)
	require.Error(t, err)
}

package feed

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisCache(t *testing.T, ttl time.Duration) (*RedisRelationCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisRelationCache(client, ttl), mr
}

func sampleSets() RelationSets {
	return RelationSets{
		ViewerID:               1,
		Following:              NewIDSet(2, 3),
		FollowersOfFollowings:  NewIDSet(4),
		Followers:              NewIDSet(5),
		FollowingsOfFollowings: NewIDSet(6, 7),
		Nearby:                 NewIDSet(8),
	}
}

func TestRedisRelationCacheRoundTrip(t *testing.T) {
	cache, mr := newRedisCache(t, time.Minute)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, sampleSets()))
	assert.True(t, mr.Exists("feed:relations:1"))

	got, ok, err := cache.Get(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleSets(), got)
}

func TestRedisRelationCacheExpires(t *testing.T) {
	cache, mr := newRedisCache(t, time.Minute)
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, sampleSets()))

	mr.FastForward(2 * time.Minute)

	_, ok, err := cache.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisRelationCacheInvalidate(t *testing.T) {
	cache, mr := newRedisCache(t, time.Minute)
	ctx := context.Background()
	sets := sampleSets()
	require.NoError(t, cache.Set(ctx, sets))
	sets.ViewerID = 2
	require.NoError(t, cache.Set(ctx, sets))

	require.NoError(t, cache.Invalidate(ctx, 1, 2))
	assert.False(t, mr.Exists("feed:relations:1"))
	assert.False(t, mr.Exists("feed:relations:2"))
}

func TestMemoryRelationCacheHonoursTTL(t *testing.T) {
	now := baseNow
	cache := NewMemoryRelationCache(time.Minute, func() time.Time { return now })
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, sampleSets()))

	_, ok, _ := cache.Get(ctx, 1)
	assert.True(t, ok)

	now = now.Add(time.Minute)
	_, ok, _ = cache.Get(ctx, 1)
	assert.False(t, ok)
}

func TestIDSetJSONIsSorted(t *testing.T) {
	data, err := NewIDSet(9, 1, 5).MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `[1,5,9]`, string(data))
}

package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RelationCache stores computed relation sets for a short time.
type RelationCache interface {
	Get(ctx context.Context, viewerID int) (RelationSets, bool, error)
	Set(ctx context.Context, sets RelationSets) error
	Invalidate(ctx context.Context, viewerIDs ...int) error
}

func relationsKey(viewerID int) string {
	return fmt.Sprintf("feed:relations:%d", viewerID)
}

// RedisRelationCache keeps relation sets as JSON values with a TTL.
type RedisRelationCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRelationCache constructs a RedisRelationCache.
func NewRedisRelationCache(client *redis.Client, ttl time.Duration) *RedisRelationCache {
	return &RedisRelationCache{client: client, ttl: ttl}
}

func (c *RedisRelationCache) Get(ctx context.Context, viewerID int) (RelationSets, bool, error) {
	data, err := c.client.Get(ctx, relationsKey(viewerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return RelationSets{}, false, nil
	}
	if err != nil {
		return RelationSets{}, false, err
	}
	var sets RelationSets
	if err := json.Unmarshal(data, &sets); err != nil {
		return RelationSets{}, false, err
	}
	return sets, true, nil
}

func (c *RedisRelationCache) Set(ctx context.Context, sets RelationSets) error {
	payload, err := json.Marshal(sets)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, relationsKey(sets.ViewerID), payload, c.ttl).Err()
}

func (c *RedisRelationCache) Invalidate(ctx context.Context, viewerIDs ...int) error {
	if len(viewerIDs) == 0 {
		return nil
	}
	keys := make([]string, len(viewerIDs))
	for i, id := range viewerIDs {
		keys[i] = relationsKey(id)
	}
	return c.client.Del(ctx, keys...).Err()
}

// MemoryRelationCache is the single-instance fallback used when Redis is not configured.
type MemoryRelationCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	clock   func() time.Time
	entries map[int]memoryEntry
}

type memoryEntry struct {
	sets      RelationSets
	expiresAt time.Time
}

// NewMemoryRelationCache constructs a MemoryRelationCache. A nil clock uses time.Now.
func NewMemoryRelationCache(ttl time.Duration, clock func() time.Time) *MemoryRelationCache {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryRelationCache{ttl: ttl, clock: clock, entries: make(map[int]memoryEntry)}
}

func (c *MemoryRelationCache) Get(_ context.Context, viewerID int) (RelationSets, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[viewerID]
	if !ok {
		return RelationSets{}, false, nil
	}
	if !c.clock().Before(entry.expiresAt) {
		delete(c.entries, viewerID)
		return RelationSets{}, false, nil
	}
	return entry.sets, true, nil
}

func (c *MemoryRelationCache) Set(_ context.Context, sets RelationSets) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[sets.ViewerID] = memoryEntry{sets: sets, expiresAt: c.clock().Add(c.ttl)}
	return nil
}

func (c *MemoryRelationCache) Invalidate(_ context.Context, viewerIDs ...int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range viewerIDs {
		delete(c.entries, id)
	}
	return nil
}

package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/radmetrics/platform/pkg/filter"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func unreachableClient() *redis.Client {
	// Nothing listens here; every command fails immediately.
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
}

// A failed version read must bypass the cache entirely, not default the
// version: a snapshot cached before an invalidation would otherwise be
// served stale.
func TestCacheVersionReadFailureBypassesCache(t *testing.T) {
	c := NewCache(unreachableClient(), time.Minute)
	ctx := context.Background()

	key := c.Key(ctx, "u1", filter.Filter{}, 15)
	assert.Empty(t, key)

	snapshot, ok := c.Get(ctx, key)
	assert.False(t, ok)
	assert.Nil(t, snapshot)

	// Put on an empty key is a no-op and must not reach redis.
	c.Put(ctx, key, &Snapshot{Cases: 1})
}

package metrics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/radmetrics/platform/pkg/common/logger"
	"github.com/radmetrics/platform/pkg/filter"
	"github.com/redis/go-redis/v9"
)

// Cache holds computed snapshots in redis, keyed by user, filter and goal.
// Invalidation bumps a per-user version rather than scanning for keys, so
// stale entries simply age out under the TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Key derives the cache key for one request. An empty key means the cache
// must be skipped for this request: a transient error on the version read
// cannot be defaulted, or a snapshot cached before an invalidation could
// be served stale.
func (c *Cache) Key(ctx context.Context, userID string, f filter.Filter, goal float64) string {
	version, err := c.client.Get(ctx, versionKey(userID)).Result()
	if err == redis.Nil {
		version = "0"
	} else if err != nil {
		logger.Log.WithError(err).WithField("user_id", userID).Warn("metrics cache version read failed, bypassing cache")
		return ""
	}

	payload, _ := json.Marshal(struct {
		Filter filter.Filter `json:"filter"`
		Goal   float64       `json:"goal"`
	}{Filter: f, Goal: goal})
	digest := sha256.Sum256(payload)

	return fmt.Sprintf("metrics:%s:%s:%s", userID, version, hex.EncodeToString(digest[:8]))
}

func (c *Cache) Get(ctx context.Context, key string) (*Snapshot, bool) {
	if key == "" {
		return nil, false
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Log.WithError(err).Warn("metrics cache read failed")
		}
		return nil, false
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		logger.Log.WithError(err).WithField("key", key).Warn("discarding undecodable cached snapshot")
		return nil, false
	}
	return &snapshot, true
}

func (c *Cache) Put(ctx context.Context, key string, snapshot *Snapshot) {
	if key == "" || snapshot == nil {
		return
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		logger.Log.WithError(err).Warn("failed to marshal snapshot for cache")
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		logger.Log.WithError(err).Warn("metrics cache write failed")
	}
}

// Invalidate makes all cached snapshots for the user unreachable. Called
// after imports, reclassification and deletes.
func (c *Cache) Invalidate(ctx context.Context, userID string) {
	if err := c.client.Incr(ctx, versionKey(userID)).Err(); err != nil {
		logger.Log.WithError(err).WithField("user_id", userID).Warn("metrics cache invalidation failed")
	}
}

func versionKey(userID string) string {
	return fmt.Sprintf("metrics:ver:%s", userID)
}

package consistency

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/gatehouse-fm/gatehouse/internal/rolegraph"
)

const snapshotKey = "gatehouse:graph:snapshot"

// GraphLoader produces a fresh graph from the catalog.
type GraphLoader func(ctx context.Context) (*rolegraph.Graph, error)

// SnapshotCache keeps the serialized role graph in Redis so concurrent sweeps
// and per-account checks hit Postgres once per TTL window. Loads are
// deduplicated with singleflight.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
	load   GraphLoader
	group  singleflight.Group
}

// NewSnapshotCache builds a cache. A nil client degrades to direct loads,
// which keeps offline tools and tests working without Redis.
func NewSnapshotCache(client *redis.Client, ttl time.Duration, load GraphLoader) *SnapshotCache {
	return &SnapshotCache{client: client, ttl: ttl, load: load}
}

// Snapshot returns the current graph, from cache when fresh.
func (c *SnapshotCache) Snapshot(ctx context.Context) (*rolegraph.Graph, error) {
	if c.client == nil {
		return c.load(ctx)
	}

	if data, err := c.client.Get(ctx, snapshotKey).Bytes(); err == nil {
		var roles []rolegraph.Role
		if err := json.Unmarshal(data, &roles); err == nil {
			return rolegraph.NewGraph(roles), nil
		}
		// Corrupt payload: fall through and rebuild.
	} else if !errors.Is(err, redis.Nil) {
		return nil, err
	}

	v, err, _ := c.group.Do(snapshotKey, func() (any, error) {
		graph, err := c.load(ctx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(graph.RoleList())
		if err != nil {
			return nil, err
		}
		if err := c.client.Set(ctx, snapshotKey, data, c.ttl).Err(); err != nil {
			return nil, err
		}
		return graph, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*rolegraph.Graph), nil
}

// InvalidateSnapshot drops the cached graph. Called after catalog mutations.
func (c *SnapshotCache) InvalidateSnapshot(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, snapshotKey).Err()
}

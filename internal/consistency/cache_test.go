package consistency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-fm/gatehouse/internal/rolegraph"
)

func snapshotFixture(loads *int) GraphLoader {
	return func(ctx context.Context) (*rolegraph.Graph, error) {
		*loads++
		return rolegraph.NewGraph([]rolegraph.Role{
			{Key: "portal", Partition: "portal"},
			{Key: "tenant", Implies: []string{"portal"}},
		}), nil
	}
}

func TestSnapshotCacheLoadsOncePerTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	loads := 0
	cache := NewSnapshotCache(client, time.Minute, snapshotFixture(&loads))

	for i := 0; i < 3; i++ {
		graph, err := cache.Snapshot(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, graph.Len())
	}
	assert.Equal(t, 1, loads)
}

func TestSnapshotCacheInvalidate(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	loads := 0
	cache := NewSnapshotCache(client, time.Minute, snapshotFixture(&loads))

	_, err := cache.Snapshot(context.Background())
	require.NoError(t, err)
	require.NoError(t, cache.InvalidateSnapshot(context.Background()))
	_, err = cache.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, loads)
}

func TestSnapshotCacheSurvivesCorruptPayload(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	loads := 0
	cache := NewSnapshotCache(client, time.Minute, snapshotFixture(&loads))

	require.NoError(t, mr.Set("gatehouse:graph:snapshot", "not json"))

	graph, err := cache.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, graph.Len())
	assert.Equal(t, 1, loads)
}

func TestSnapshotCacheWithoutRedis(t *testing.T) {
	loads := 0
	cache := NewSnapshotCache(nil, time.Minute, snapshotFixture(&loads))

	for i := 0; i < 2; i++ {
		graph, err := cache.Snapshot(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, graph.Len())
	}
	assert.Equal(t, 2, loads)
	assert.NoError(t, cache.InvalidateSnapshot(context.Background()))
}

package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/withObsrvr/obsrvr-quantum-backend/internal/results"
	"github.com/withObsrvr/obsrvr-quantum-backend/internal/storage"
)

func sampleResult(t *testing.T) results.Result {
	t.Helper()
	shots, err := results.Decode(map[string][]string{"c": {"01", "11"}})
	require.NoError(t, err)
	return results.Result{Shots: shots}
}

func TestSeedDistinguishesKnownFromReady(t *testing.T) {
	c := New()
	ctx := context.Background()
	key := Key{JobID: "j1", PostProcess: "null"}

	_, known := c.Lookup(ctx, key)
	assert.False(t, known)

	c.Seed(key)
	e, known := c.Lookup(ctx, key)
	assert.True(t, known)
	assert.False(t, e.Ready())

	require.NoError(t, c.Put(ctx, key, sampleResult(t)))
	e, known = c.Lookup(ctx, key)
	assert.True(t, known)
	require.True(t, e.Ready())
	assert.Equal(t, 2, len(e.Result.Shots.Rows))

	c.Seed(key)
	e, _ = c.Lookup(ctx, key)
	assert.True(t, e.Ready(), "seeding must not clear a populated entry")
}

func TestWriteThroughSurvivesNewCache(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewMemStore(ctx)
	require.NoError(t, err)
	defer store.Close()
	codec, err := storage.NewCodec()
	require.NoError(t, err)
	defer codec.Close()

	key := Key{JobID: "j2", PostProcess: `{"name":"post"}`}
	first := New(WithStore(store, codec, "qb"))
	require.NoError(t, first.Put(ctx, key, sampleResult(t)))

	second := New(WithStore(store, codec, "qb"))
	e, known := second.Lookup(ctx, key)
	assert.True(t, known)
	require.True(t, e.Ready())
	assert.True(t, e.Result.Shots.Equal(sampleResult(t).Shots))
	assert.JSONEq(t, `{"name":"post"}`, string(e.Result.PostProcess))
	assert.Equal(t, 1, second.Len())
}

func TestLookupMissInStore(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewMemStore(ctx)
	require.NoError(t, err)
	defer store.Close()
	codec, err := storage.NewCodec()
	require.NoError(t, err)
	defer codec.Close()

	c := New(WithStore(store, codec, "qb"))
	c.Seed(Key{JobID: "j3"})
	e, known := c.Lookup(ctx, Key{JobID: "j3"})
	assert.True(t, known)
	assert.False(t, e.Ready())
}

package store

import (
	"context"
	"testing"
	"time"

	"procurement-api/internal/apperr"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingStore counts Get calls that reach the inner store.
type countingStore struct {
	*Memory
	gets int
}

func (c *countingStore) Get(ctx context.Context, collection, id string) (Record, error) {
	c.gets++
	return c.Memory.Get(ctx, collection, id)
}

func newCached(t *testing.T) (*Cached, *countingStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	inner := &countingStore{Memory: NewMemory()}
	return NewCached(inner, client, time.Minute), inner, mr
}

func TestCachedReadThrough(t *testing.T) {
	ctx := context.Background()
	c, inner, mr := newCached(t)
	inner.Seed(Vendors, Record{"id": "v1", "name": "Acme"})

	rec, err := c.Get(ctx, Vendors, "v1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", rec["name"])
	assert.Equal(t, 1, inner.gets)
	assert.True(t, mr.Exists("procurement:vendors:v1"))

	rec, err = c.Get(ctx, Vendors, "v1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", rec["name"])
	assert.Equal(t, 1, inner.gets, "second read is served from redis")

	mr.FastForward(2 * time.Minute)
	_, err = c.Get(ctx, Vendors, "v1")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.gets, "expired entries are refetched")
}

func TestCachedWritesRefreshAndEvict(t *testing.T) {
	ctx := context.Background()
	c, inner, mr := newCached(t)

	created, err := c.Create(ctx, Vendors, Record{"name": "Acme"})
	require.NoError(t, err)
	id := created.ID()

	_, err = c.Update(ctx, Vendors, id, Record{"name": "Acme Corp"})
	require.NoError(t, err)
	rec, err := c.Get(ctx, Vendors, id)
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", rec["name"])
	assert.Equal(t, 0, inner.gets)

	require.NoError(t, c.Delete(ctx, Vendors, id))
	assert.False(t, mr.Exists("procurement:vendors:"+id))
	_, err = c.Get(ctx, Vendors, id)
	assert.True(t, apperr.IsNotFound(err))
}

func TestCachedFallsBackWhenRedisDown(t *testing.T) {
	ctx := context.Background()
	c, inner, mr := newCached(t)
	inner.Seed(Vendors, Record{"id": "v1", "name": "Acme"})
	mr.Close()

	rec, err := c.Get(ctx, Vendors, "v1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", rec["name"])
	assert.Error(t, c.Ping(ctx))
}

func TestCachedGetMany(t *testing.T) {
	ctx := context.Background()
	c, inner, mr := newCached(t)
	inner.Seed(Vendors, Record{"id": "v1", "name": "Acme"}, Record{"id": "v2", "name": "Northwind"})

	_, err := c.Get(ctx, Vendors, "v1")
	require.NoError(t, err)
	require.Equal(t, 1, inner.gets)

	recs, err := c.GetMany(ctx, Vendors, []string{"v2", "missing", "v1", "v2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"v2", "v1"}, ids(recs))
	assert.Equal(t, 3, inner.gets, "only v2 and missing reach the inner store")
	assert.True(t, mr.Exists("procurement:vendors:v2"))

	mr.Close()
	recs, err = c.GetMany(ctx, Vendors, []string{"v1"})
	require.NoError(t, err, "redis failures fall back to the inner store")
	assert.Equal(t, []string{"v1"}, ids(recs))
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cached is a read-through Redis cache in front of another Store. Only
// single-record reads are cached; writes refresh or evict the entry. Cache
// failures never fail a request, the inner store is authoritative.
type Cached struct {
	Store
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewCached(inner Store, client *redis.Client, ttl time.Duration) *Cached {
	return &Cached{Store: inner, client: client, ttl: ttl, prefix: "procurement:"}
}

// NewRedisClient parses a redis:// URL into a client.
func NewRedisClient(rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}

func (c *Cached) key(collection, id string) string {
	return c.prefix + collection + ":" + id
}

func (c *Cached) Get(ctx context.Context, collection, id string) (Record, error) {
	raw, err := c.client.Get(ctx, c.key(collection, id)).Bytes()
	if err == nil {
		var rec Record
		if json.Unmarshal(raw, &rec) == nil {
			return rec, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return c.Store.Get(ctx, collection, id)
	}

	rec, err := c.Store.Get(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	c.put(ctx, collection, rec)
	return rec, nil
}

// GetMany serves cached ids from one MGET and reads the rest from the
// inner store, caching them on the way out.
func (c *Cached) GetMany(ctx context.Context, collection string, ids []string) ([]Record, error) {
	if len(ids) == 0 {
		return []Record{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.key(collection, id)
	}
	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return GetMany(ctx, c.Store, collection, ids)
	}

	found := make(map[string]Record, len(ids))
	var missing []string
	for i, v := range vals {
		var rec Record
		if raw, ok := v.(string); ok && json.Unmarshal([]byte(raw), &rec) == nil {
			found[ids[i]] = rec
			continue
		}
		missing = append(missing, ids[i])
	}
	if len(missing) > 0 {
		recs, err := GetMany(ctx, c.Store, collection, missing)
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			c.put(ctx, collection, rec)
			found[rec.ID()] = rec
		}
	}

	out := make([]Record, 0, len(found))
	for _, id := range ids {
		if rec, ok := found[id]; ok {
			out = append(out, rec)
			delete(found, id)
		}
	}
	return out, nil
}

func (c *Cached) Create(ctx context.Context, collection string, rec Record) (Record, error) {
	out, err := c.Store.Create(ctx, collection, rec)
	if err != nil {
		return nil, err
	}
	c.put(ctx, collection, out)
	return out, nil
}

func (c *Cached) Update(ctx context.Context, collection, id string, rec Record) (Record, error) {
	out, err := c.Store.Update(ctx, collection, id, rec)
	if err != nil {
		c.client.Del(ctx, c.key(collection, id))
		return nil, err
	}
	c.put(ctx, collection, out)
	return out, nil
}

func (c *Cached) Delete(ctx context.Context, collection, id string) error {
	err := c.Store.Delete(ctx, collection, id)
	c.client.Del(ctx, c.key(collection, id))
	return err
}

func (c *Cached) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return err
	}
	return c.Store.Ping(ctx)
}

func (c *Cached) put(ctx context.Context, collection string, rec Record) {
	b, err := json.Marshal(rec)
	if err != nil {
		return
	}
	c.client.Set(ctx, c.key(collection, rec.ID()), b, c.ttl)
}

package store

import (
	"context"
	"time"
)

// Observer receives the outcome of every store operation.
type Observer func(backend, op string, err error, elapsed time.Duration)

// Instrumented reports each operation of the wrapped Store to an Observer.
type Instrumented struct {
	inner   Store
	backend string
	observe Observer
}

func NewInstrumented(inner Store, backend string, observe Observer) *Instrumented {
	return &Instrumented{inner: inner, backend: backend, observe: observe}
}

func (i *Instrumented) record(op string, start time.Time, err error) {
	if i.observe != nil {
		i.observe(i.backend, op, err, time.Since(start))
	}
}

func (i *Instrumented) List(ctx context.Context, collection string, q Query) (recs []Record, total int, err error) {
	defer func(start time.Time) { i.record("list", start, err) }(time.Now())
	return i.inner.List(ctx, collection, q)
}

func (i *Instrumented) Get(ctx context.Context, collection, id string) (rec Record, err error) {
	defer func(start time.Time) { i.record("get", start, err) }(time.Now())
	return i.inner.Get(ctx, collection, id)
}

func (i *Instrumented) Create(ctx context.Context, collection string, rec Record) (out Record, err error) {
	defer func(start time.Time) { i.record("create", start, err) }(time.Now())
	return i.inner.Create(ctx, collection, rec)
}

func (i *Instrumented) Update(ctx context.Context, collection, id string, rec Record) (out Record, err error) {
	defer func(start time.Time) { i.record("update", start, err) }(time.Now())
	return i.inner.Update(ctx, collection, id, rec)
}

func (i *Instrumented) Delete(ctx context.Context, collection, id string) (err error) {
	defer func(start time.Time) { i.record("delete", start, err) }(time.Now())
	return i.inner.Delete(ctx, collection, id)
}

func (i *Instrumented) Ping(ctx context.Context) (err error) {
	defer func(start time.Time) { i.record("ping", start, err) }(time.Now())
	return i.inner.Ping(ctx)
}

// GetMany forwards to the inner store's batch read, or to per-id reads.
func (i *Instrumented) GetMany(ctx context.Context, collection string, ids []string) (recs []Record, err error) {
	defer func(start time.Time) { i.record("get_many", start, err) }(time.Now())
	return GetMany(ctx, i.inner, collection, ids)
}

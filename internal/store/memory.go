package store

import (
	"context"
	"sync"
	"time"

	"procurement-api/internal/apperr"
)

// Memory is an in-process store. It backs DEMO_MODE and the unit tests.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]Record
	now         func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]map[string]Record),
		now:         time.Now,
	}
}

// Seed inserts records as-is, keeping their ids and timestamps.
func (m *Memory) Seed(collection string, records ...Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll := m.collection(collection)
	for _, rec := range records {
		rec = rec.Clone()
		if rec.ID() == "" {
			rec = stamp(rec, m.now())
		}
		coll[rec.ID()] = rec
	}
}

func (m *Memory) collection(name string) map[string]Record {
	coll, ok := m.collections[name]
	if !ok {
		coll = make(map[string]Record)
		m.collections[name] = coll
	}
	return coll
}

func (m *Memory) List(_ context.Context, collection string, q Query) ([]Record, int, error) {
	m.mu.RLock()
	coll := m.collections[collection]
	all := make([]Record, 0, len(coll))
	for _, rec := range coll {
		all = append(all, rec.Clone())
	}
	m.mu.RUnlock()

	page, total := Apply(all, q)
	return page, total, nil
}

func (m *Memory) Get(_ context.Context, collection, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.collections[collection][id]
	if !ok {
		return nil, apperr.NotFound(singular(collection), id)
	}
	return rec.Clone(), nil
}

func (m *Memory) Create(_ context.Context, collection string, rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := stamp(rec, m.now())
	coll := m.collection(collection)
	if _, exists := coll[out.ID()]; exists {
		return nil, apperr.Conflict("%s %q already exists", singular(collection), out.ID())
	}
	coll[out.ID()] = out
	return out.Clone(), nil
}

func (m *Memory) Update(_ context.Context, collection, id string, rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll := m.collection(collection)
	prev, ok := coll[id]
	if !ok {
		return nil, apperr.NotFound(singular(collection), id)
	}
	out := restamp(prev, rec, id, m.now())
	coll[id] = out
	return out.Clone(), nil
}

func (m *Memory) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll := m.collection(collection)
	if _, ok := coll[id]; !ok {
		return apperr.NotFound(singular(collection), id)
	}
	delete(coll, id)
	return nil
}

func (m *Memory) Ping(context.Context) error { return nil }

// singular turns a collection name into an entity name for error messages.
func singular(collection string) string {
	switch collection {
	case Vendors:
		return "vendor"
	case Tenders:
		return "tender"
	case PurchaseOrders:
		return "purchase order"
	case Users:
		return "user"
	}
	return "record"
}

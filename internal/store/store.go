// Package store is the JSON document layer behind the repositories. A Store
// holds named collections of records; backends are the in-process demo
// dataset, the external CRUD data service and a Postgres table.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"procurement-api/internal/apperr"

	"github.com/google/uuid"
)

// Collection names.
const (
	Vendors        = "vendors"
	Tenders        = "tenders"
	PurchaseOrders = "purchase-orders"
	Users          = "users"
)

// Record is one JSON document.
type Record map[string]any

// ID returns the record's "id" field as a string.
func (r Record) ID() string {
	switch v := r["id"].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = cloneValue(vv)
		}
		return m
	case Record:
		return t.Clone()
	case []any:
		s := make([]any, len(t))
		for i, vv := range t {
			s[i] = cloneValue(vv)
		}
		return s
	default:
		return v
	}
}

// Query narrows a List call.
type Query struct {
	// Filters match a field (dot paths allowed) by string equality. Array
	// fields match when any element equals the value.
	Filters map[string]string
	// Search is a case-insensitive substring matched against SearchFields.
	Search       string
	SearchFields []string
	// Sort is a comma separated field list, "-" prefix for descending.
	Sort   string
	Limit  int
	Offset int
}

// Store is a collection oriented document store.
type Store interface {
	List(ctx context.Context, collection string, q Query) ([]Record, int, error)
	Get(ctx context.Context, collection, id string) (Record, error)
	Create(ctx context.Context, collection string, rec Record) (Record, error)
	Update(ctx context.Context, collection, id string, rec Record) (Record, error)
	Delete(ctx context.Context, collection, id string) error
	Ping(ctx context.Context) error
}

// BatchGetter is implemented by backends that fetch several records in one call.
type BatchGetter interface {
	GetMany(ctx context.Context, collection string, ids []string) ([]Record, error)
}

// GetMany returns the records with the given ids in request order. Missing
// ids are skipped. Backends implementing BatchGetter are asked once, others
// once per id.
func GetMany(ctx context.Context, s Store, collection string, ids []string) ([]Record, error) {
	if len(ids) == 0 {
		return []Record{}, nil
	}
	byID := make(map[string]Record, len(ids))
	if bg, ok := s.(BatchGetter); ok {
		recs, err := bg.GetMany(ctx, collection, ids)
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			byID[rec.ID()] = rec
		}
	} else {
		for _, id := range ids {
			if _, seen := byID[id]; seen {
				continue
			}
			rec, err := s.Get(ctx, collection, id)
			if apperr.IsNotFound(err) {
				continue
			}
			if err != nil {
				return nil, err
			}
			byID[id] = rec
		}
	}
	out := make([]Record, 0, len(byID))
	for _, id := range ids {
		if rec, ok := byID[id]; ok {
			out = append(out, rec)
			delete(byID, id)
		}
	}
	return out, nil
}

// stamp fills id and timestamps on a record about to be created.
func stamp(rec Record, now time.Time) Record {
	out := rec.Clone()
	if out == nil {
		out = Record{}
	}
	if out.ID() == "" {
		out["id"] = uuid.NewString()
	}
	ts := now.UTC().Format(time.RFC3339Nano)
	if v, ok := out["created_at"].(string); !ok || v == "" || v == zeroTime {
		out["created_at"] = ts
	}
	out["updated_at"] = ts
	return out
}

// restamp prepares an update: id and created_at are preserved from prev.
func restamp(prev, rec Record, id string, now time.Time) Record {
	out := rec.Clone()
	if out == nil {
		out = Record{}
	}
	out["id"] = id
	if created, ok := prev["created_at"]; ok {
		out["created_at"] = created
	}
	out["updated_at"] = now.UTC().Format(time.RFC3339Nano)
	return out
}

const zeroTime = "0001-01-01T00:00:00Z"

// Encode converts a typed value into a Record via its JSON form.
func Encode(v any) (Record, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Decode converts a Record into a typed value via its JSON form.
func Decode(rec Record, v any) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// Lookup resolves a dot separated path inside a record.
func Lookup(rec map[string]any, path string) (any, bool) {
	var cur any = rec
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case Record:
		return t, true
	}
	return nil, false
}

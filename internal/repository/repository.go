// Package repository maps store collections onto the domain models.
package repository

import (
	"context"
	"fmt"
	"strings"

	"procurement-api/internal/apperr"
	"procurement-api/internal/models"
	"procurement-api/internal/store"
)

// pageSize is used when a caller needs every matching record.
const pageSize = 200

// Repository is a typed view of one store collection.
type Repository[T any] struct {
	store        store.Store
	collection   string
	searchFields []string
}

func newRepository[T any](s store.Store, collection string, searchFields ...string) *Repository[T] {
	return &Repository[T]{store: s, collection: collection, searchFields: searchFields}
}

// List returns one page of matches and the total match count.
func (r *Repository[T]) List(ctx context.Context, q store.Query) ([]T, int, error) {
	if q.Search != "" && len(q.SearchFields) == 0 {
		q.SearchFields = r.searchFields
	}
	recs, total, err := r.store.List(ctx, r.collection, q)
	if err != nil {
		return nil, 0, err
	}
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		v, err := r.decode(rec)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *v)
	}
	return out, total, nil
}

// All pages through every record matching q. Limit and Offset are ignored.
func (r *Repository[T]) All(ctx context.Context, q store.Query) ([]T, error) {
	var out []T
	q.Limit = pageSize
	for q.Offset = 0; ; q.Offset += pageSize {
		page, total, err := r.List(ctx, q)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < pageSize || len(out) >= total {
			return out, nil
		}
	}
}

func (r *Repository[T]) Get(ctx context.Context, id string) (*T, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.Validation("id is required")
	}
	rec, err := r.store.Get(ctx, r.collection, id)
	if err != nil {
		return nil, err
	}
	return r.decode(rec)
}

// Create stores v and returns it as persisted, with id and timestamps set.
func (r *Repository[T]) Create(ctx context.Context, v *T) (*T, error) {
	rec, err := store.Encode(v)
	if err != nil {
		return nil, apperr.Internal(err, "encode %s", r.collection)
	}
	if rec.ID() == "" {
		delete(rec, "id")
	}
	out, err := r.store.Create(ctx, r.collection, rec)
	if err != nil {
		return nil, err
	}
	return r.decode(out)
}

// Update replaces the record with id by v.
func (r *Repository[T]) Update(ctx context.Context, id string, v *T) (*T, error) {
	rec, err := store.Encode(v)
	if err != nil {
		return nil, apperr.Internal(err, "encode %s", r.collection)
	}
	out, err := r.store.Update(ctx, r.collection, id, rec)
	if err != nil {
		return nil, err
	}
	return r.decode(out)
}

func (r *Repository[T]) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, r.collection, id)
}

func (r *Repository[T]) decode(rec store.Record) (*T, error) {
	var v T
	if err := store.Decode(rec, &v); err != nil {
		return nil, apperr.Internal(fmt.Errorf("decode %s %s: %w", r.collection, rec.ID(), err), "stored %s is malformed", r.collection)
	}
	return &v, nil
}

// findOne returns the first record whose field equals value, or nil.
func (r *Repository[T]) findOne(ctx context.Context, field, value string) (*T, error) {
	page, _, err := r.List(ctx, store.Query{Filters: map[string]string{field: value}, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(page) == 0 {
		return nil, nil
	}
	return &page[0], nil
}

type VendorRepository struct {
	*Repository[models.Vendor]
}

func NewVendorRepository(s store.Store) *VendorRepository {
	return &VendorRepository{newRepository[models.Vendor](s, store.Vendors, "name", "code", "email", "contact_person")}
}

// FindByEmail returns nil when no vendor uses email.
func (r *VendorRepository) FindByEmail(ctx context.Context, email string) (*models.Vendor, error) {
	return r.findOne(ctx, "email", strings.TrimSpace(email))
}

type TenderRepository struct {
	*Repository[models.Tender]
}

func NewTenderRepository(s store.Store) *TenderRepository {
	return &TenderRepository{newRepository[models.Tender](s, store.Tenders, "title", "tender_number", "category")}
}

type PurchaseOrderRepository struct {
	*Repository[models.PurchaseOrder]
}

func NewPurchaseOrderRepository(s store.Store) *PurchaseOrderRepository {
	return &PurchaseOrderRepository{newRepository[models.PurchaseOrder](s, store.PurchaseOrders, "po_number", "vendor_name")}
}

// ListByVendor returns every purchase order placed with vendorID.
func (r *PurchaseOrderRepository) ListByVendor(ctx context.Context, vendorID string) ([]models.PurchaseOrder, error) {
	return r.All(ctx, store.Query{Filters: map[string]string{"vendor_id": vendorID}})
}

type UserRepository struct {
	*Repository[models.User]
}

func NewUserRepository(s store.Store) *UserRepository {
	return &UserRepository{newRepository[models.User](s, store.Users, "email")}
}

// FindByEmail returns nil when no user has email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "email", strings.ToLower(strings.TrimSpace(email)))
}

package repository

import (
	"context"
	"fmt"
	"testing"

	"procurement-api/internal/apperr"
	"procurement-api/internal/models"
	"procurement-api/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVendorRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewVendorRepository(store.NewMemory())

	created, err := repo.Create(ctx, &models.Vendor{
		Name:       "Acme Industrial",
		Email:      "sales@acme.example",
		Categories: []string{"equipment"},
		Status:     models.VendorPending,
		Rating:     decimal.RequireFromString("4.5"),
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.True(t, created.Rating.Equal(decimal.RequireFromString("4.5")))

	created.Status = models.VendorActive
	updated, err := repo.Update(ctx, created.ID, created)
	require.NoError(t, err)
	assert.Equal(t, models.VendorActive, updated.Status)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)

	found, err := repo.FindByEmail(ctx, " SALES@acme.example ")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)

	missing, err := repo.FindByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, repo.Delete(ctx, created.ID))
	_, err = repo.Get(ctx, created.ID)
	assert.True(t, apperr.IsNotFound(err))
}

func TestRepositoryGetRequiresID(t *testing.T) {
	_, err := NewTenderRepository(store.NewMemory()).Get(context.Background(), " ")
	assert.True(t, apperr.IsValidation(err))
}

func TestRepositoryListUsesDefaultSearchFields(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	mem.Seed(store.PurchaseOrders,
		store.Record{"id": "a", "po_number": "PO-2026-000001", "vendor_name": "Acme"},
		store.Record{"id": "b", "po_number": "PO-2026-000002", "vendor_name": "Northwind"},
	)
	repo := NewPurchaseOrderRepository(mem)

	page, total, err := repo.List(ctx, store.Query{Search: "north"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "b", page[0].ID)
}

func TestRepositoryAllPagesThroughEverything(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	for i := 0; i < pageSize*2+5; i++ {
		mem.Seed(store.PurchaseOrders, store.Record{
			"id":        fmt.Sprintf("po-%04d", i),
			"vendor_id": "v1",
			"status":    "draft",
		})
	}
	mem.Seed(store.PurchaseOrders, store.Record{"id": "other", "vendor_id": "v2"})

	all, err := NewPurchaseOrderRepository(mem).ListByVendor(ctx, "v1")
	require.NoError(t, err)
	assert.Len(t, all, pageSize*2+5)
}

func TestDemoDatasetDecodes(t *testing.T) {
	ctx := context.Background()
	mem, err := store.NewDemo()
	require.NoError(t, err)

	tenders, err := NewTenderRepository(mem).All(ctx, store.Query{})
	require.NoError(t, err)
	require.NotEmpty(t, tenders)

	closed, err := NewTenderRepository(mem).Get(ctx, "tnd-0003")
	require.NoError(t, err)
	assert.Equal(t, models.TenderClosed, closed.Status)
	assert.Len(t, closed.Quotations, 2)

	users := NewUserRepository(mem)
	admin, err := users.FindByEmail(ctx, "admin@procurement.example")
	require.NoError(t, err)
	require.NotNil(t, admin)
	assert.True(t, admin.HasRole(models.RoleProcurementAdmin))
	assert.NotEmpty(t, admin.PasswordHash)
}

package service

import (
	"context"
	"math/rand"
	"strings"
	"testing"
	"time"

	"procurement-api/internal/apperr"
	"procurement-api/internal/models"
	"procurement-api/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

type harness struct {
	*Services
	mem         *store.Memory
	transitions []string
	now         time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mem, err := store.NewDemo()
	require.NoError(t, err)
	h := &harness{mem: mem, now: testNow}
	h.Services = New(mem, Options{
		Now: func() time.Time { return h.now },
		Observer: func(entity, from, to string) {
			h.transitions = append(h.transitions, entity+":"+from+"->"+to)
		},
	})
	return h
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, d(want).Equal(got), "want %s, got %s", want, got.String())
}

func assertTransitionError(t *testing.T, err error, current, expected string) {
	t.Helper()
	require.Error(t, err)
	ae := apperr.From(err)
	assert.Equal(t, apperr.CodeInvalidStatus, ae.Code)
	assert.Equal(t, 409, ae.Status)
	assert.Equal(t, current, ae.Details["current_status"])
	assert.Equal(t, expected, ae.Details["expected_status"])
}

func TestComputeTotals(t *testing.T) {
	qty := []decimal.Decimal{d("3"), d("1.5")}
	price := []decimal.Decimal{d("19.99"), d("0.33")}
	got := make([]decimal.Decimal, 2)

	totals := ComputeTotals(2, models.DefaultTaxRate,
		func(i int) (decimal.Decimal, decimal.Decimal) { return qty[i], price[i] },
		func(i int, total decimal.Decimal) { got[i] = total })

	assertDecimal(t, "59.97", got[0])
	assertDecimal(t, "0.50", got[1])
	assertDecimal(t, "60.47", totals.Subtotal)
	assertDecimal(t, "5.44", totals.Tax)
	assertDecimal(t, "65.91", totals.Total)
}

func TestComputeTotalsMatchesTaxedSum(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for run := 0; run < 500; run++ {
		n := 1 + rng.Intn(6)
		qty := make([]decimal.Decimal, n)
		price := make([]decimal.Decimal, n)
		for i := range qty {
			qty[i] = decimal.New(int64(1+rng.Intn(5000)), -int32(rng.Intn(3)))
			price[i] = decimal.New(int64(rng.Intn(1_000_000)), -2)
		}
		lineSum := decimal.Zero
		totals := ComputeTotals(n, models.DefaultTaxRate,
			func(i int) (decimal.Decimal, decimal.Decimal) { return qty[i], price[i] },
			func(_ int, total decimal.Decimal) { lineSum = lineSum.Add(total) })

		want := lineSum.Mul(d("1.09")).Round(2)
		require.True(t, want.Equal(totals.Total), "run %d: want %s got %s", run, want, totals.Total)
		require.True(t, totals.Subtotal.Add(totals.Tax).Equal(totals.Total))
	}
}

func TestDocumentNumbers(t *testing.T) {
	assert.Regexp(t, `^VND-[0-9A-F]{6}$`, vendorCode())
	assert.Regexp(t, `^TND-2026-[0-9A-F]{6}$`, tenderNumber(testNow))
	assert.Regexp(t, `^PO-2026-[0-9A-F]{6}$`, poNumber(testNow))
}

func TestTransitionTables(t *testing.T) {
	assert.True(t, purchaseOrderTransitions.allows(models.POPendingApproval, models.PODraft))
	assert.False(t, purchaseOrderTransitions.allows(models.POAcknowledged, models.POCancelled))
	assert.Equal(t, []string{"approved", "draft", "pending_approval"}, purchaseOrderTransitions.sources(models.POCancelled))
	assert.Empty(t, vendorTransitions[models.VendorBlacklisted], "blacklisted is terminal")
	assert.Equal(t, []string{"draft", "published"}, tenderTransitions.sources(models.TenderCancelled))
}

func TestOnTime(t *testing.T) {
	expected := time.Date(2026, 11, 15, 0, 0, 0, 0, time.UTC)
	assert.True(t, onTime(expected.Add(23*time.Hour), &expected))
	assert.False(t, onTime(expected.Add(24*time.Hour), &expected))
	assert.True(t, onTime(expected.AddDate(1, 0, 0), nil))
}

func vendorInput(email string) *models.VendorInput {
	return &models.VendorInput{
		Name:       "Harbor Tools",
		Email:      email,
		Phone:      "+1-555-0199",
		Categories: []string{"equipment", " "},
	}
}

func TestVendorCreate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	v, err := h.Vendors.Create(ctx, vendorInput("  Quotes@Harbor.example "))
	require.NoError(t, err)
	assert.Equal(t, models.VendorPending, v.Status)
	assert.True(t, strings.HasPrefix(v.Code, "VND-"))
	assert.Equal(t, "quotes@harbor.example", v.Email)
	assert.Equal(t, []string{"equipment"}, v.Categories)

	_, err = h.Vendors.Create(ctx, vendorInput("SALES@acme-industrial.example"))
	assert.True(t, apperr.IsConflict(err))

	_, err = h.Vendors.Create(ctx, &models.VendorInput{Name: "X"})
	assert.True(t, apperr.IsValidation(err))
}

func TestVendorCheckEmail(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	err := h.Vendors.CheckEmail(ctx, " Sales@Acme-Industrial.example ")
	assert.True(t, apperr.IsConflict(err))
	assert.NoError(t, h.Vendors.CheckEmail(ctx, "new@harbor.example"))

	_, total, err := h.Vendors.List(ctx, store.Query{})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
}

func TestVendorUpdateKeepsStatusAndPerformance(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	in := vendorInput("sales@acme-industrial.example")
	in.Name = "Acme Industrial Supplies Ltd"
	v, err := h.Vendors.Update(ctx, "vnd-0001", in)
	require.NoError(t, err)
	assert.Equal(t, "Acme Industrial Supplies Ltd", v.Name)
	assert.Equal(t, models.VendorActive, v.Status)
	assert.Equal(t, "VND-100001", v.Code)
	assert.Equal(t, 40, v.Performance.TotalOrders)

	_, err = h.Vendors.Update(ctx, "vnd-0002", vendorInput("sales@acme-industrial.example"))
	assert.True(t, apperr.IsConflict(err), "email belongs to another vendor")
}

func TestVendorStatusLifecycle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	v, err := h.Vendors.ChangeStatus(ctx, "vnd-0003", &models.VendorStatusChange{Status: models.VendorActive})
	require.NoError(t, err)
	assert.Equal(t, models.VendorActive, v.Status)

	_, err = h.Vendors.ChangeStatus(ctx, "vnd-0003", &models.VendorStatusChange{Status: models.VendorBlacklisted, Reason: "fraud"})
	require.NoError(t, err)

	_, err = h.Vendors.ChangeStatus(ctx, "vnd-0003", &models.VendorStatusChange{Status: models.VendorActive})
	assertTransitionError(t, err, "blacklisted", "inactive|pending")

	_, err = h.Vendors.ChangeStatus(ctx, "vnd-0001", &models.VendorStatusChange{Status: "retired"})
	assert.True(t, apperr.IsValidation(err))

	assert.Equal(t, []string{"vendor:pending->active", "vendor:active->blacklisted"}, h.transitions)
}

func TestVendorDeleteRefusesOpenOrders(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	err := h.Vendors.Delete(ctx, "vnd-0001")
	require.True(t, apperr.IsConflict(err))
	assert.Equal(t, "1", apperr.From(err).Details["open_purchase_orders"])

	require.NoError(t, h.Vendors.Delete(ctx, "vnd-0003"))
	_, err = h.Vendors.Get(ctx, "vnd-0003")
	assert.True(t, apperr.IsNotFound(err))
}

func TestVendorStats(t *testing.T) {
	stats, err := newHarness(t).Vendors.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 3, stats.ByStatus[models.VendorActive])
	assert.Equal(t, 1, stats.ByStatus[models.VendorPending])
	assert.Positive(t, stats.ByCategory["equipment"])
}

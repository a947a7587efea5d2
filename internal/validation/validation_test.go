package validation

import (
	"testing"
	"time"

	"procurement-api/internal/apperr"
	"procurement-api/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func details(t *testing.T, err error) map[string]string {
	t.Helper()
	require.Error(t, err)
	require.True(t, apperr.IsValidation(err), "expected validation error, got %v", err)
	return apperr.From(err).Details
}

func validVendor() *models.VendorInput {
	return &models.VendorInput{
		Name:       "Acme Industrial",
		Email:      "sales@acme.example",
		Phone:      "+1 555 0100",
		Categories: []string{"equipment"},
		Rating:     d("4"),
	}
}

func TestVendor(t *testing.T) {
	require.NoError(t, Vendor(validVendor()))

	t.Run("incomplete submission reports every field", func(t *testing.T) {
		got := details(t, Vendor(&models.VendorInput{Email: "not-an-email"}))
		assert.Equal(t, "is required", got["name"])
		assert.Equal(t, "must be a valid email address", got["email"])
		assert.Equal(t, "is required", got["phone"])
		assert.Contains(t, got, "categories")
	})

	t.Run("rating range", func(t *testing.T) {
		in := validVendor()
		in.Rating = d("5.5")
		assert.Contains(t, details(t, Vendor(in)), "rating")
	})

	t.Run("nested certification fields", func(t *testing.T) {
		in := validVendor()
		in.Certifications = []models.Certification{{}}
		assert.Equal(t, "is required", details(t, Vendor(in))["certifications[0].name"])
	})

	t.Run("certification dates", func(t *testing.T) {
		issued := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		expires := issued.AddDate(-1, 0, 0)
		in := validVendor()
		in.Certifications = []models.Certification{{Name: "ISO 9001", IssuedAt: &issued, ExpiresAt: &expires}}
		assert.Contains(t, details(t, Vendor(in)), "certifications[0].expires_at")
	})
}

func validTender() *models.TenderInput {
	return &models.TenderInput{
		Title:    "Office furniture",
		Category: "furniture",
		Items: []models.TenderItem{
			{Name: "Desk", Unit: "pcs", Quantity: d("10"), EstimatedUnitPrice: d("250")},
		},
		EvaluationCriteria: []models.EvaluationCriterion{
			{Name: "Price", Weight: d("60"), Type: models.CriterionPrice},
			{Name: "Quality", Weight: d("40"), Type: models.CriterionQuality},
		},
		SubmissionDeadline: time.Now().Add(24 * time.Hour),
	}
}

func TestTender(t *testing.T) {
	require.NoError(t, Tender(validTender()))

	tests := []struct {
		name   string
		mutate func(*models.TenderInput)
		field  string
	}{
		{"weights below 100", func(in *models.TenderInput) { in.EvaluationCriteria[1].Weight = d("39.99") }, "evaluation_criteria"},
		{"weights above 100", func(in *models.TenderInput) { in.EvaluationCriteria[0].Weight = d("61") }, "evaluation_criteria"},
		{"zero quantity", func(in *models.TenderInput) { in.Items[0].Quantity = decimal.Zero }, "items[0].quantity"},
		{"negative price", func(in *models.TenderInput) { in.Items[0].EstimatedUnitPrice = d("-1") }, "items[0].estimated_unit_price"},
		{"duplicate criterion", func(in *models.TenderInput) { in.EvaluationCriteria[1].Name = "price" }, "evaluation_criteria[1].name"},
		{"no items", func(in *models.TenderInput) { in.Items = nil }, "items"},
		{"unknown criterion type", func(in *models.TenderInput) { in.EvaluationCriteria[0].Type = "luck" }, "evaluation_criteria[0].type"},
		{"missing deadline", func(in *models.TenderInput) { in.SubmissionDeadline = time.Time{} }, "submission_deadline"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validTender()
			tt.mutate(in)
			assert.Contains(t, details(t, Tender(in)), tt.field)
		})
	}
}

func TestCriteriaWeightsDecimalExact(t *testing.T) {
	criteria := []models.EvaluationCriterion{
		{Name: "a", Weight: d("33.33")},
		{Name: "b", Weight: d("33.33")},
		{Name: "c", Weight: d("33.34")},
	}
	assert.NoError(t, CriteriaWeights(criteria))
	assert.Error(t, CriteriaWeights(nil))
}

func TestQuotation(t *testing.T) {
	in := &models.QuotationInput{
		VendorID:     "vnd-0001",
		Items:        []models.QuotationItem{{TenderItemID: "ti-1", Quantity: d("1"), UnitPrice: d("10")}},
		DeliveryDays: 5,
		Scores:       map[string]decimal.Decimal{"ec-1": d("80")},
	}
	require.NoError(t, Quotation(in))

	in.Scores["ec-1"] = d("101")
	assert.Contains(t, details(t, Quotation(in)), "scores.ec-1")

	got := details(t, Quotation(&models.QuotationInput{}))
	assert.Contains(t, got, "vendor_id")
	assert.Contains(t, got, "delivery_days")
}

func TestPurchaseOrder(t *testing.T) {
	in := &models.PurchaseOrderInput{
		VendorID: "vnd-0001",
		Currency: "USD",
		Items:    []models.POItem{{Name: "Desk", Quantity: d("2"), UnitPrice: d("100")}},
	}
	require.NoError(t, PurchaseOrder(in))

	in.Items[0].Quantity = d("-2")
	assert.Contains(t, details(t, PurchaseOrder(in)), "items[0].quantity")

	in.Items[0].Quantity = d("2")
	in.Currency = "DOLLARS"
	assert.Equal(t, "must be exactly 3 characters", details(t, PurchaseOrder(in))["currency"])
}

package service

import (
	"context"
	"testing"
	"time"

	"procurement-api/internal/apperr"
	"procurement-api/internal/models"
	"procurement-api/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tenderInput() *models.TenderInput {
	return &models.TenderInput{
		Title:    "Forklift batteries",
		Category: "equipment",
		Items: []models.TenderItem{
			{Name: "48V traction battery", Unit: "pcs", Quantity: d("6"), EstimatedUnitPrice: d("2100.50")},
		},
		EvaluationCriteria: []models.EvaluationCriterion{
			{Name: "Price", Weight: d("70")},
			{Name: "Delivery lead time", Weight: d("30")},
		},
		SubmissionDeadline: testNow.AddDate(0, 1, 0),
	}
}

func TestTenderCreateDerivesFields(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	tender, err := h.Tenders.Create(ctx, tenderInput(), "usr-buyer")
	require.NoError(t, err)
	assert.Equal(t, models.TenderDraft, tender.Status)
	assert.Regexp(t, `^TND-2026-`, tender.TenderNumber)
	assert.Equal(t, "usr-buyer", tender.CreatedBy)
	assertDecimal(t, "12603.00", tender.EstimatedValue)
	require.Len(t, tender.Items, 1)
	assert.NotEmpty(t, tender.Items[0].ID)
	assert.Equal(t, models.CriterionPrice, tender.EvaluationCriteria[0].Type)
	assert.Equal(t, models.CriterionDelivery, tender.EvaluationCriteria[1].Type)

	bad := tenderInput()
	bad.EvaluationCriteria[0].Weight = d("50")
	_, err = h.Tenders.Create(ctx, bad, "usr-buyer")
	require.True(t, apperr.IsValidation(err))
	assert.Contains(t, apperr.From(err).Details["evaluation_criteria"], "weights must total 100")
}

func TestTenderEditOnlyInDraft(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	updated, err := h.Tenders.Update(ctx, "tnd-0001", tenderInput())
	require.NoError(t, err)
	assert.Equal(t, "Forklift batteries", updated.Title)
	assert.Equal(t, "TND-2026-000001", updated.TenderNumber)

	_, err = h.Tenders.Update(ctx, "tnd-0002", tenderInput())
	assertTransitionError(t, err, "published", "draft")

	err = h.Tenders.Delete(ctx, "tnd-0003")
	assertTransitionError(t, err, "closed", "draft")

	require.NoError(t, h.Tenders.Delete(ctx, "tnd-0001"))
}

func TestTenderPublishRules(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	published, err := h.Tenders.Publish(ctx, "tnd-0001")
	require.NoError(t, err)
	assert.Equal(t, models.TenderPublished, published.Status)
	require.NotNil(t, published.PublishedAt)
	assert.True(t, testNow.Equal(*published.PublishedAt))

	_, err = h.Tenders.Publish(ctx, "tnd-0001")
	assertTransitionError(t, err, "published", "draft")

	h.mem.Seed(store.Tenders, store.Record{
		"id":     "tnd-bad",
		"status": "draft",
		"items":  []any{map[string]any{"id": "x", "name": "x", "quantity": "1", "unit": "pcs"}},
		"evaluation_criteria": []any{
			map[string]any{"id": "c1", "name": "Price", "weight": "60"},
			map[string]any{"id": "c2", "name": "Quality", "weight": "30"},
		},
		"submission_deadline": "2026-01-01T00:00:00Z",
	})
	_, err = h.Tenders.Publish(ctx, "tnd-bad")
	require.True(t, apperr.IsValidation(err))
	details := apperr.From(err).Details
	assert.Contains(t, details, "evaluation_criteria")
	assert.Contains(t, details, "submission_deadline")

	assert.Equal(t, []string{"tender:draft->published"}, h.transitions)
}

func TestTenderCloseAndCancel(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	closed, err := h.Tenders.Close(ctx, "tnd-0002")
	require.NoError(t, err)
	assert.Equal(t, models.TenderClosed, closed.Status)

	_, err = h.Tenders.Cancel(ctx, "tnd-0002", &models.ReasonInput{})
	assertTransitionError(t, err, "closed", "draft|published")

	cancelled, err := h.Tenders.Cancel(ctx, "tnd-0001", &models.ReasonInput{Reason: " budget cut "})
	require.NoError(t, err)
	assert.Equal(t, models.TenderCancelled, cancelled.Status)
	assert.Equal(t, "budget cut", cancelled.CancellationReason)
}

func quotationInput(vendorID string) *models.QuotationInput {
	return &models.QuotationInput{
		VendorID:     vendorID,
		Items:        []models.QuotationItem{{TenderItemID: "ti-0003", Quantity: d("200"), UnitPrice: d("90.00")}},
		DeliveryDays: 10,
		ValidityDays: 30,
		Scores:       map[string]decimal.Decimal{"ec-0004": d("80")},
	}
}

func TestSubmitQuotation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	q, err := h.Tenders.SubmitQuotation(ctx, "tnd-0002", quotationInput("vnd-0002"))
	require.NoError(t, err)
	assert.Equal(t, models.QuotationSubmitted, q.Status)
	assert.Equal(t, "Northwind Logistics", q.VendorName)
	assert.Equal(t, "Steel plate 10mm", q.Items[0].Name)
	assertDecimal(t, "18000.00", q.Subtotal)
	assertDecimal(t, "1620.00", q.Tax)
	assertDecimal(t, "19620.00", q.Total)

	quotes, err := h.Tenders.ListQuotations(ctx, "tnd-0002")
	require.NoError(t, err)
	assert.Len(t, quotes, 2)

	t.Run("one quotation per vendor", func(t *testing.T) {
		_, err := h.Tenders.SubmitQuotation(ctx, "tnd-0002", quotationInput("vnd-0001"))
		assert.Equal(t, apperr.CodeConflict, apperr.From(err).Code)
	})

	t.Run("vendor must be active", func(t *testing.T) {
		_, err := h.Tenders.SubmitQuotation(ctx, "tnd-0002", quotationInput("vnd-0003"))
		require.True(t, apperr.IsValidation(err))
		assert.Contains(t, apperr.From(err).Details["vendor_id"], "must be active")
	})

	t.Run("unknown vendor", func(t *testing.T) {
		_, err := h.Tenders.SubmitQuotation(ctx, "tnd-0002", quotationInput("vnd-9999"))
		assert.True(t, apperr.IsNotFound(err))
	})

	t.Run("items must belong to the tender", func(t *testing.T) {
		in := quotationInput("vnd-0004")
		in.Items[0].TenderItemID = "ti-0001"
		_, err := h.Tenders.SubmitQuotation(ctx, "tnd-0002", in)
		require.True(t, apperr.IsValidation(err))
		assert.Contains(t, apperr.From(err).Details, "items[0].tender_item_id")
	})

	t.Run("tender must be published", func(t *testing.T) {
		_, err := h.Tenders.SubmitQuotation(ctx, "tnd-0001", quotationInput("vnd-0004"))
		assertTransitionError(t, err, "draft", "published")
	})

	t.Run("deadline passed", func(t *testing.T) {
		h.now = time.Date(2027, 7, 1, 0, 0, 0, 0, time.UTC)
		defer func() { h.now = testNow }()
		_, err := h.Tenders.SubmitQuotation(ctx, "tnd-0002", quotationInput("vnd-0004"))
		assert.Equal(t, apperr.CodeConflict, apperr.From(err).Code)
	})
}

func TestSubmitQuotationInvitedOnly(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.mem.Seed(store.Tenders, store.Record{
		"id":                  "tnd-inv",
		"status":              "published",
		"items":               []any{map[string]any{"id": "ti-0003", "name": "Steel", "quantity": "1", "unit": "pcs"}},
		"evaluation_criteria": []any{map[string]any{"id": "ec-0004", "name": "Quality", "weight": "100"}},
		"invited_vendor_ids":  []any{"vnd-0002"},
		"submission_deadline": "2027-01-01T00:00:00Z",
	})

	_, err := h.Tenders.SubmitQuotation(ctx, "tnd-inv", quotationInput("vnd-0004"))
	assert.Equal(t, 403, apperr.StatusOf(err))

	_, err = h.Tenders.SubmitQuotation(ctx, "tnd-inv", quotationInput("vnd-0002"))
	assert.NoError(t, err)
}

func TestEvaluateDemoTender(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	eval, err := h.Tenders.Evaluate(ctx, "tnd-0003")
	require.NoError(t, err)
	require.Len(t, eval.Ranking, 2)

	first, second := eval.Ranking[0], eval.Ranking[1]
	assert.Equal(t, "qt-0002", first.QuotationID)
	assert.Equal(t, 1, first.Rank)
	assertDecimal(t, "97.00", first.WeightedScore)
	assert.Equal(t, "qt-0003", second.QuotationID)
	assertDecimal(t, "87.50", second.WeightedScore)
	assertDecimal(t, "95", second.Breakdown[0].Score)
	assert.Equal(t, "qt-0002", eval.Recommended)

	_, err = h.Tenders.Evaluate(ctx, "tnd-0002")
	assertTransitionError(t, err, "published", "awarded|closed")
}

func TestEvaluateScoringAndTieBreaks(t *testing.T) {
	early := testNow.Add(-2 * time.Hour)
	late := testNow.Add(-time.Hour)
	tender := &models.Tender{
		ID:     "t",
		Status: models.TenderClosed,
		EvaluationCriteria: []models.EvaluationCriterion{
			{ID: "p", Name: "Price", Weight: d("40"), Type: models.CriterionPrice},
			{ID: "dl", Name: "Delivery", Weight: d("40"), Type: models.CriterionDelivery},
			{ID: "q", Name: "Quality", Weight: d("20"), Type: models.CriterionQuality},
		},
		Quotations: []models.Quotation{
			{ID: "a", Total: d("1000"), DeliveryDays: 10, SubmittedAt: late},
			{ID: "b", Total: d("2000"), DeliveryDays: 5, SubmittedAt: early, Scores: map[string]decimal.Decimal{"q": d("100")}},
			{ID: "c", Total: d("1000"), DeliveryDays: 10, SubmittedAt: early},
		},
	}

	eval := Evaluate(tender)
	ids := []string{}
	for _, r := range eval.Ranking {
		ids = append(ids, r.QuotationID)
	}
	// a and c both score 40 + 20 + 0 = 60; b scores 20 + 40 + 20 = 80.
	assert.Equal(t, []string{"b", "c", "a"}, ids)
	assertDecimal(t, "80", eval.Ranking[0].WeightedScore)
	assertDecimal(t, "60", eval.Ranking[1].WeightedScore)
	assert.Equal(t, 3, eval.Ranking[2].Rank)

	assert.Empty(t, Evaluate(&models.Tender{ID: "empty"}).Ranking)
}

func TestAwardAndCreatePurchaseOrder(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.Tenders.Award(ctx, "tnd-0003", &models.AwardInput{QuotationID: "qt-missing"})
	assert.True(t, apperr.IsNotFound(err))

	_, err = h.Tenders.CreatePurchaseOrder(ctx, "tnd-0003", "usr-buyer")
	assertTransitionError(t, err, "closed", "awarded")

	awarded, err := h.Tenders.Award(ctx, "tnd-0003", &models.AwardInput{QuotationID: "qt-0003"})
	require.NoError(t, err)
	assert.Equal(t, models.TenderAwarded, awarded.Status)
	assert.Equal(t, "vnd-0001", awarded.AwardedVendorID)
	winner, _ := awarded.Quotation("qt-0003")
	loser, _ := awarded.Quotation("qt-0002")
	assert.Equal(t, models.QuotationAccepted, winner.Status)
	assert.Equal(t, models.QuotationRejected, loser.Status)
	assertDecimal(t, "87.50", winner.WeightedScore)

	_, err = h.Tenders.Award(ctx, "tnd-0003", &models.AwardInput{QuotationID: "qt-0002"})
	assertTransitionError(t, err, "awarded", "closed")

	po, err := h.Tenders.CreatePurchaseOrder(ctx, "tnd-0003", "usr-buyer")
	require.NoError(t, err)
	assert.Equal(t, models.PODraft, po.Status)
	assert.Equal(t, "vnd-0001", po.VendorID)
	assert.Equal(t, "tnd-0003", po.TenderID)
	assert.Equal(t, "qt-0003", po.QuotationID)
	assertDecimal(t, "10000.00", po.Subtotal)
	assertDecimal(t, "10900.00", po.Total)

	reloaded, err := h.Tenders.Get(ctx, "tnd-0003")
	require.NoError(t, err)
	assert.Equal(t, po.ID, reloaded.PurchaseOrderID)

	_, err = h.Tenders.CreatePurchaseOrder(ctx, "tnd-0003", "usr-buyer")
	assert.Equal(t, apperr.CodeConflict, apperr.From(err).Code)

	assert.Equal(t, []string{"tender:closed->awarded"}, h.transitions)
}

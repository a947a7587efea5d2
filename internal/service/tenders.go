package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"procurement-api/internal/apperr"
	"procurement-api/internal/logging"
	"procurement-api/internal/models"
	"procurement-api/internal/repository"
	"procurement-api/internal/store"
	"procurement-api/internal/validation"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type TenderService struct {
	base
	tenders *repository.TenderRepository
	vendors *VendorService
	orders  *PurchaseOrderService
	taxRate decimal.Decimal
}

func (s *TenderService) List(ctx context.Context, q store.Query) ([]models.Tender, int, error) {
	return s.tenders.List(ctx, q)
}

func (s *TenderService) Get(ctx context.Context, id string) (*models.Tender, error) {
	return s.tenders.Get(ctx, id)
}

// Create stores a new draft tender.
func (s *TenderService) Create(ctx context.Context, in *models.TenderInput, createdBy string) (*models.Tender, error) {
	if err := validation.Tender(in); err != nil {
		return nil, err
	}
	t := &models.Tender{
		TenderNumber: tenderNumber(s.now()),
		Status:       models.TenderDraft,
		Quotations:   []models.Quotation{},
		CreatedBy:    createdBy,
	}
	applyTenderInput(t, in)

	created, err := s.tenders.Create(ctx, t)
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info("tender created",
		zap.String("tender_id", created.ID), zap.String("tender_number", created.TenderNumber))
	return created, nil
}

// Update edits a draft tender.
func (s *TenderService) Update(ctx context.Context, id string, in *models.TenderInput) (*models.Tender, error) {
	t, err := s.tenders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != models.TenderDraft {
		return nil, apperr.InvalidTransition("tender", "edit", string(t.Status), string(models.TenderDraft))
	}
	if err := validation.Tender(in); err != nil {
		return nil, err
	}
	applyTenderInput(t, in)
	return s.tenders.Update(ctx, id, t)
}

// Delete removes a draft tender.
func (s *TenderService) Delete(ctx context.Context, id string) error {
	t, err := s.tenders.Get(ctx, id)
	if err != nil {
		return err
	}
	if t.Status != models.TenderDraft {
		return apperr.InvalidTransition("tender", "delete", string(t.Status), string(models.TenderDraft))
	}
	if err := s.tenders.Delete(ctx, id); err != nil {
		return err
	}
	logging.FromContext(ctx).Info("tender deleted", zap.String("tender_id", id))
	return nil
}

// Publish opens a draft tender for quotations. The deadline must lie in the
// future and the criteria weights must total 100.
func (s *TenderService) Publish(ctx context.Context, id string) (*models.Tender, error) {
	t, err := s.tenders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guard(tenderTransitions, "tender", "publish", t.Status, models.TenderPublished); err != nil {
		return nil, err
	}
	problems := map[string]string{}
	if !t.SubmissionDeadline.After(s.now()) {
		problems["submission_deadline"] = "must be in the future"
	}
	if len(t.Items) == 0 {
		problems["items"] = "at least one item is required"
	}
	if err := validation.CriteriaWeights(t.EvaluationCriteria); err != nil {
		for k, v := range apperr.From(err).Details {
			problems[k] = v
		}
	}
	if len(problems) > 0 {
		return nil, apperr.ValidationFields(problems)
	}
	t.PublishedAt = s.timestamp()
	return s.move(ctx, t, models.TenderPublished)
}

// Close stops accepting quotations.
func (s *TenderService) Close(ctx context.Context, id string) (*models.Tender, error) {
	t, err := s.tenders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guard(tenderTransitions, "tender", "close", t.Status, models.TenderClosed); err != nil {
		return nil, err
	}
	t.ClosedAt = s.timestamp()
	return s.move(ctx, t, models.TenderClosed)
}

// Cancel abandons a draft or published tender.
func (s *TenderService) Cancel(ctx context.Context, id string, in *models.ReasonInput) (*models.Tender, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	t, err := s.tenders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guard(tenderTransitions, "tender", "cancel", t.Status, models.TenderCancelled); err != nil {
		return nil, err
	}
	t.CancelledAt = s.timestamp()
	t.CancellationReason = strings.TrimSpace(in.Reason)
	return s.move(ctx, t, models.TenderCancelled)
}

// SubmitQuotation records a vendor's offer on a published tender.
func (s *TenderService) SubmitQuotation(ctx context.Context, tenderID string, in *models.QuotationInput) (*models.Quotation, error) {
	if err := validation.Quotation(in); err != nil {
		return nil, err
	}
	t, err := s.tenders.Get(ctx, tenderID)
	if err != nil {
		return nil, err
	}
	if t.Status != models.TenderPublished {
		return nil, apperr.InvalidTransition("tender", "accept quotations for", string(t.Status), string(models.TenderPublished))
	}
	now := s.now()
	if !now.Before(t.SubmissionDeadline) {
		return nil, apperr.Conflict("submission deadline for tender %q has passed", t.ID).
			WithDetail("submission_deadline", t.SubmissionDeadline.UTC().Format(time.RFC3339))
	}
	vendor, err := s.vendors.RequireActive(ctx, in.VendorID)
	if err != nil {
		return nil, err
	}
	if !t.IsInvited(vendor.ID) {
		return nil, apperr.Forbidden("vendor %q is not invited to tender %q", vendor.ID, t.ID)
	}
	for _, q := range t.Quotations {
		if q.VendorID == vendor.ID {
			return nil, apperr.Conflict("vendor %q already submitted quotation %q", vendor.ID, q.ID)
		}
	}

	q, err := s.priceQuotation(t, in)
	if err != nil {
		return nil, err
	}
	q.ID = uuid.NewString()
	q.TenderID = t.ID
	q.VendorID = vendor.ID
	q.VendorName = vendor.Name
	q.Status = models.QuotationSubmitted
	q.SubmittedAt = now.UTC()

	t.Quotations = append(t.Quotations, *q)
	if _, err := s.tenders.Update(ctx, t.ID, t); err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info("quotation submitted",
		zap.String("tender_id", t.ID), zap.String("quotation_id", q.ID),
		zap.String("vendor_id", vendor.ID), zap.String("total", q.Total.StringFixed(2)))
	return q, nil
}

// priceQuotation resolves quotation lines against the tender items and computes totals.
func (s *TenderService) priceQuotation(t *models.Tender, in *models.QuotationInput) (*models.Quotation, error) {
	items := make(map[string]models.TenderItem, len(t.Items))
	for _, it := range t.Items {
		items[it.ID] = it
	}
	criteria := make(map[string]bool, len(t.EvaluationCriteria))
	for _, c := range t.EvaluationCriteria {
		criteria[c.ID] = true
	}

	problems := map[string]string{}
	lines := make([]models.QuotationItem, len(in.Items))
	seen := map[string]bool{}
	for i, line := range in.Items {
		ti, ok := items[line.TenderItemID]
		if !ok {
			problems[fmt.Sprintf("items[%d].tender_item_id", i)] = "does not reference an item of this tender"
			continue
		}
		if seen[ti.ID] {
			problems[fmt.Sprintf("items[%d].tender_item_id", i)] = "is quoted more than once"
		}
		seen[ti.ID] = true
		line.Name = ti.Name
		line.Unit = ti.Unit
		lines[i] = line
	}
	for id := range in.Scores {
		if !criteria[id] {
			problems["scores."+id] = "does not reference a criterion of this tender"
		}
	}
	if len(problems) > 0 {
		return nil, apperr.ValidationFields(problems)
	}

	totals := ComputeTotals(len(lines), s.taxRate,
		func(i int) (decimal.Decimal, decimal.Decimal) { return lines[i].Quantity, lines[i].UnitPrice },
		func(i int, total decimal.Decimal) { lines[i].Total = total })

	return &models.Quotation{
		Items:        lines,
		Subtotal:     totals.Subtotal,
		Tax:          totals.Tax,
		Total:        totals.Total,
		DeliveryDays: in.DeliveryDays,
		ValidityDays: in.ValidityDays,
		Notes:        strings.TrimSpace(in.Notes),
		Scores:       in.Scores,
	}, nil
}

func (s *TenderService) ListQuotations(ctx context.Context, tenderID string) ([]models.Quotation, error) {
	t, err := s.tenders.Get(ctx, tenderID)
	if err != nil {
		return nil, err
	}
	if t.Quotations == nil {
		return []models.Quotation{}, nil
	}
	return t.Quotations, nil
}

// Evaluate ranks the quotations of a closed or awarded tender.
func (s *TenderService) Evaluate(ctx context.Context, id string) (*models.TenderEvaluation, error) {
	t, err := s.tenders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != models.TenderClosed && t.Status != models.TenderAwarded {
		return nil, apperr.InvalidTransition("tender", "evaluate", string(t.Status),
			string(models.TenderAwarded), string(models.TenderClosed))
	}
	return Evaluate(t), nil
}

// Award picks the winning quotation of a closed tender. The winner is
// accepted, every other quotation rejected, and all scores are stored.
func (s *TenderService) Award(ctx context.Context, id string, in *models.AwardInput) (*models.Tender, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	t, err := s.tenders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guard(tenderTransitions, "tender", "award", t.Status, models.TenderAwarded); err != nil {
		return nil, err
	}
	winner, ok := t.Quotation(in.QuotationID)
	if !ok {
		return nil, apperr.NotFound("quotation", in.QuotationID)
	}

	scores := map[string]decimal.Decimal{}
	for _, r := range Evaluate(t).Ranking {
		scores[r.QuotationID] = r.WeightedScore
	}
	for i := range t.Quotations {
		q := &t.Quotations[i]
		q.WeightedScore = scores[q.ID]
		if q.ID == winner.ID {
			q.Status = models.QuotationAccepted
		} else {
			q.Status = models.QuotationRejected
		}
	}
	t.AwardedQuotationID = winner.ID
	t.AwardedVendorID = winner.VendorID
	t.AwardedAt = s.timestamp()

	awarded, err := s.move(ctx, t, models.TenderAwarded)
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info("tender awarded",
		zap.String("tender_id", id), zap.String("quotation_id", winner.ID), zap.String("vendor_id", winner.VendorID))
	return awarded, nil
}

// CreatePurchaseOrder turns the winning quotation of an awarded tender into
// a draft purchase order. Each tender yields at most one order.
func (s *TenderService) CreatePurchaseOrder(ctx context.Context, id, createdBy string) (*models.PurchaseOrder, error) {
	t, err := s.tenders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != models.TenderAwarded {
		return nil, apperr.InvalidTransition("tender", "create a purchase order for", string(t.Status), string(models.TenderAwarded))
	}
	if t.PurchaseOrderID != "" {
		return nil, apperr.Conflict("tender %q already has purchase order %q", t.ID, t.PurchaseOrderID)
	}
	winner, ok := t.Quotation(t.AwardedQuotationID)
	if !ok {
		return nil, apperr.NotFound("quotation", t.AwardedQuotationID)
	}

	po, err := s.orders.CreateFromQuotation(ctx, t, winner, createdBy)
	if err != nil {
		return nil, err
	}
	t.PurchaseOrderID = po.ID
	if _, err := s.tenders.Update(ctx, t.ID, t); err != nil {
		return nil, err
	}
	return po, nil
}

func (s *TenderService) move(ctx context.Context, t *models.Tender, to models.TenderStatus) (*models.Tender, error) {
	from := t.Status
	t.Status = to
	updated, err := s.tenders.Update(ctx, t.ID, t)
	if err != nil {
		return nil, err
	}
	s.transitioned("tender", string(from), string(to))
	logging.FromContext(ctx).Info("tender status changed",
		zap.String("tender_id", t.ID), zap.String("from", string(from)), zap.String("to", string(to)))
	return updated, nil
}

// applyTenderInput copies the editable fields, assigning ids to new items
// and criteria and deriving the estimated value.
func applyTenderInput(t *models.Tender, in *models.TenderInput) {
	t.Title = strings.TrimSpace(in.Title)
	t.Description = strings.TrimSpace(in.Description)
	t.Category = strings.TrimSpace(in.Category)
	t.InvitedVendorIDs = in.InvitedVendorIDs
	t.SubmissionDeadline = in.SubmissionDeadline.UTC()

	t.Items = make([]models.TenderItem, len(in.Items))
	estimated := decimal.Zero
	for i, it := range in.Items {
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		estimated = estimated.Add(it.Quantity.Mul(it.EstimatedUnitPrice))
		t.Items[i] = it
	}
	t.EstimatedValue = money(estimated)

	t.EvaluationCriteria = make([]models.EvaluationCriterion, len(in.EvaluationCriteria))
	for i, c := range in.EvaluationCriteria {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		c.Type = criterionType(c)
		t.EvaluationCriteria[i] = c
	}
}

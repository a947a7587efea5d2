package service

import (
	"context"
	"strings"

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

const defaultCurrency = "USD"

// summaryOrder fixes the row order of Summary.
var summaryOrder = []models.PurchaseOrderStatus{
	models.PODraft,
	models.POPendingApproval,
	models.POApproved,
	models.POAcknowledged,
	models.POInProgress,
	models.POCompleted,
	models.POCancelled,
}

type PurchaseOrderService struct {
	base
	orders  *repository.PurchaseOrderRepository
	vendors *VendorService
	taxRate decimal.Decimal
}

func (s *PurchaseOrderService) List(ctx context.Context, q store.Query) ([]models.PurchaseOrder, int, error) {
	return s.orders.List(ctx, q)
}

func (s *PurchaseOrderService) Get(ctx context.Context, id string) (*models.PurchaseOrder, error) {
	return s.orders.Get(ctx, id)
}

// Create stores a draft purchase order for an active vendor. Totals are
// always computed here; any totals in the input are ignored.
func (s *PurchaseOrderService) Create(ctx context.Context, in *models.PurchaseOrderInput, createdBy string) (*models.PurchaseOrder, error) {
	if err := validation.PurchaseOrder(in); err != nil {
		return nil, err
	}
	vendor, err := s.vendors.RequireActive(ctx, in.VendorID)
	if err != nil {
		return nil, err
	}
	po := &models.PurchaseOrder{
		PONumber:    poNumber(s.now()),
		Status:      models.PODraft,
		TenderID:    in.TenderID,
		QuotationID: in.QuotationID,
		CreatedBy:   createdBy,
	}
	s.apply(po, in, vendor)
	return s.create(ctx, po)
}

// CreateFromQuotation builds a draft order from an awarded quotation.
func (s *PurchaseOrderService) CreateFromQuotation(ctx context.Context, t *models.Tender, q *models.Quotation, createdBy string) (*models.PurchaseOrder, error) {
	vendor, err := s.vendors.RequireActive(ctx, q.VendorID)
	if err != nil {
		return nil, err
	}
	descriptions := make(map[string]string, len(t.Items))
	for _, it := range t.Items {
		descriptions[it.ID] = it.Description
	}
	in := &models.PurchaseOrderInput{
		VendorID:     vendor.ID,
		TenderID:     t.ID,
		QuotationID:  q.ID,
		PaymentTerms: vendor.PaymentTerms,
		Notes:        "Created from tender " + t.TenderNumber,
	}
	for _, line := range q.Items {
		in.Items = append(in.Items, models.POItem{
			Name:        line.Name,
			Description: descriptions[line.TenderItemID],
			Quantity:    line.Quantity,
			Unit:        line.Unit,
			UnitPrice:   line.UnitPrice,
		})
	}
	po := &models.PurchaseOrder{
		PONumber:    poNumber(s.now()),
		Status:      models.PODraft,
		TenderID:    t.ID,
		QuotationID: q.ID,
		CreatedBy:   createdBy,
	}
	s.apply(po, in, vendor)
	return s.create(ctx, po)
}

func (s *PurchaseOrderService) create(ctx context.Context, po *models.PurchaseOrder) (*models.PurchaseOrder, error) {
	created, err := s.orders.Create(ctx, po)
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info("purchase order created",
		zap.String("po_id", created.ID), zap.String("po_number", created.PONumber),
		zap.String("vendor_id", created.VendorID), zap.String("total", created.Total.StringFixed(2)))
	return created, nil
}

// Update edits a draft order and recomputes its totals.
func (s *PurchaseOrderService) Update(ctx context.Context, id string, in *models.PurchaseOrderInput) (*models.PurchaseOrder, error) {
	po, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if po.Status != models.PODraft {
		return nil, apperr.InvalidTransition("purchase order", "edit", string(po.Status), string(models.PODraft))
	}
	if err := validation.PurchaseOrder(in); err != nil {
		return nil, err
	}
	vendor, err := s.vendors.RequireActive(ctx, in.VendorID)
	if err != nil {
		return nil, err
	}
	s.apply(po, in, vendor)
	return s.orders.Update(ctx, id, po)
}

// Delete removes a draft or cancelled order.
func (s *PurchaseOrderService) Delete(ctx context.Context, id string) error {
	po, err := s.orders.Get(ctx, id)
	if err != nil {
		return err
	}
	if po.Status != models.PODraft && po.Status != models.POCancelled {
		return apperr.InvalidTransition("purchase order", "delete", string(po.Status),
			string(models.POCancelled), string(models.PODraft))
	}
	if err := s.orders.Delete(ctx, id); err != nil {
		return err
	}
	logging.FromContext(ctx).Info("purchase order deleted", zap.String("po_id", id))
	return nil
}

// Submit sends a draft for approval.
func (s *PurchaseOrderService) Submit(ctx context.Context, id string) (*models.PurchaseOrder, error) {
	return s.transition(ctx, id, "submit", models.POPendingApproval, func(po *models.PurchaseOrder) {
		po.SubmittedAt = s.timestamp()
	})
}

// Approve records the approver of an order pending approval.
func (s *PurchaseOrderService) Approve(ctx context.Context, id, approver string) (*models.PurchaseOrder, error) {
	return s.transition(ctx, id, "approve", models.POApproved, func(po *models.PurchaseOrder) {
		po.ApprovedBy = approver
		po.ApprovedAt = s.timestamp()
		po.RejectionReason = ""
	})
}

// Reject returns an order pending approval to draft. A reason is required.
func (s *PurchaseOrderService) Reject(ctx context.Context, id string, in *models.ReasonInput) (*models.PurchaseOrder, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, apperr.ValidationFields(map[string]string{"reason": "is required"})
	}
	return s.transition(ctx, id, "reject", models.PODraft, func(po *models.PurchaseOrder) {
		po.RejectionReason = reason
		po.SubmittedAt = nil
	})
}

func (s *PurchaseOrderService) Acknowledge(ctx context.Context, id string) (*models.PurchaseOrder, error) {
	return s.transition(ctx, id, "acknowledge", models.POAcknowledged, func(po *models.PurchaseOrder) {
		po.AcknowledgedAt = s.timestamp()
	})
}

func (s *PurchaseOrderService) Start(ctx context.Context, id string) (*models.PurchaseOrder, error) {
	return s.transition(ctx, id, "start", models.POInProgress, func(po *models.PurchaseOrder) {
		po.StartedAt = s.timestamp()
	})
}

// Complete closes an order in progress and updates the vendor's performance.
// A failed performance update is logged; the completion stands.
func (s *PurchaseOrderService) Complete(ctx context.Context, id string) (*models.PurchaseOrder, error) {
	po, err := s.transition(ctx, id, "complete", models.POCompleted, func(po *models.PurchaseOrder) {
		po.CompletedAt = s.timestamp()
	})
	if err != nil {
		return nil, err
	}
	if _, err := s.vendors.RecordCompletion(ctx, po); err != nil {
		logging.FromContext(ctx).Warn("vendor performance update failed",
			zap.String("po_id", po.ID), zap.String("vendor_id", po.VendorID), zap.Error(err))
	}
	return po, nil
}

// Cancel stops an order that has not been acknowledged yet.
func (s *PurchaseOrderService) Cancel(ctx context.Context, id string, in *models.ReasonInput) (*models.PurchaseOrder, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	return s.transition(ctx, id, "cancel", models.POCancelled, func(po *models.PurchaseOrder) {
		po.CancelledAt = s.timestamp()
		po.CancellationReason = strings.TrimSpace(in.Reason)
	})
}

// Summary counts orders and sums their value per status.
func (s *PurchaseOrderService) Summary(ctx context.Context) (*models.POSummary, error) {
	all, err := s.orders.All(ctx, store.Query{})
	if err != nil {
		return nil, err
	}
	rows := make(map[models.PurchaseOrderStatus]*models.POStatusSummary, len(summaryOrder))
	for _, st := range summaryOrder {
		rows[st] = &models.POStatusSummary{Status: st, Value: decimal.Zero}
	}
	sum := &models.POSummary{TotalOrders: len(all), TotalValue: decimal.Zero, OpenValue: decimal.Zero}
	for _, po := range all {
		row, ok := rows[po.Status]
		if !ok {
			row = &models.POStatusSummary{Status: po.Status, Value: decimal.Zero}
			rows[po.Status] = row
		}
		row.Count++
		row.Value = row.Value.Add(po.Total)
		sum.TotalValue = sum.TotalValue.Add(po.Total)
		if po.Status.Open() {
			sum.OpenValue = sum.OpenValue.Add(po.Total)
		}
	}
	for _, st := range summaryOrder {
		sum.ByStatus = append(sum.ByStatus, *rows[st])
	}
	return sum, nil
}

// transition loads the order, guards the move to target, applies mutate and saves.
func (s *PurchaseOrderService) transition(ctx context.Context, id, action string, target models.PurchaseOrderStatus, mutate func(*models.PurchaseOrder)) (*models.PurchaseOrder, error) {
	po, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	from := po.Status
	if err := guard(purchaseOrderTransitions, "purchase order", action, from, target); err != nil {
		return nil, err
	}
	po.Status = target
	mutate(po)
	updated, err := s.orders.Update(ctx, id, po)
	if err != nil {
		return nil, err
	}
	s.transitioned("purchase_order", string(from), string(target))
	logging.FromContext(ctx).Info("purchase order status changed",
		zap.String("po_id", id), zap.String("from", string(from)), zap.String("to", string(target)))
	return updated, nil
}

// apply copies the editable fields and recomputes totals at the configured tax rate.
func (s *PurchaseOrderService) apply(po *models.PurchaseOrder, in *models.PurchaseOrderInput, vendor *models.Vendor) {
	po.VendorID = vendor.ID
	po.VendorName = vendor.Name
	po.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	if po.Currency == "" {
		po.Currency = defaultCurrency
	}
	po.DeliveryAddress = in.DeliveryAddress
	po.ExpectedDeliveryDate = in.ExpectedDeliveryDate
	po.PaymentTerms = strings.TrimSpace(in.PaymentTerms)
	po.Notes = strings.TrimSpace(in.Notes)

	po.Items = make([]models.POItem, len(in.Items))
	for i, it := range in.Items {
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		po.Items[i] = it
	}
	totals := ComputeTotals(len(po.Items), s.taxRate,
		func(i int) (decimal.Decimal, decimal.Decimal) { return po.Items[i].Quantity, po.Items[i].UnitPrice },
		func(i int, total decimal.Decimal) { po.Items[i].Total = total })
	po.TaxRate = s.taxRate
	po.Subtotal = totals.Subtotal
	po.Tax = totals.Tax
	po.Total = totals.Total
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultTaxRate is the flat tax applied to purchase orders and quotations.
var DefaultTaxRate = decimal.RequireFromString("0.09")

type PurchaseOrderStatus string

const (
	PODraft           PurchaseOrderStatus = "draft"
	POPendingApproval PurchaseOrderStatus = "pending_approval"
	POApproved        PurchaseOrderStatus = "approved"
	POAcknowledged    PurchaseOrderStatus = "acknowledged"
	POInProgress      PurchaseOrderStatus = "in_progress"
	POCompleted       PurchaseOrderStatus = "completed"
	POCancelled       PurchaseOrderStatus = "cancelled"
)

// Open reports whether the order still commits the vendor to work.
func (s PurchaseOrderStatus) Open() bool {
	return s != POCompleted && s != POCancelled
}

type POItem struct {
	ID          string          `json:"id"`
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
}

type PurchaseOrder struct {
	ID                   string              `json:"id"`
	PONumber             string              `json:"po_number"`
	VendorID             string              `json:"vendor_id"`
	VendorName           string              `json:"vendor_name"`
	TenderID             string              `json:"tender_id,omitempty"`
	QuotationID          string              `json:"quotation_id,omitempty"`
	Items                []POItem            `json:"items"`
	Subtotal             decimal.Decimal     `json:"subtotal"`
	TaxRate              decimal.Decimal     `json:"tax_rate"`
	Tax                  decimal.Decimal     `json:"tax"`
	Total                decimal.Decimal     `json:"total"`
	Currency             string              `json:"currency"`
	Status               PurchaseOrderStatus `json:"status"`
	DeliveryAddress      Address             `json:"delivery_address"`
	ExpectedDeliveryDate *time.Time          `json:"expected_delivery_date,omitempty"`
	PaymentTerms         string              `json:"payment_terms,omitempty"`
	Notes                string              `json:"notes,omitempty"`
	SubmittedAt          *time.Time          `json:"submitted_at,omitempty"`
	ApprovedBy           string              `json:"approved_by,omitempty"`
	ApprovedAt           *time.Time          `json:"approved_at,omitempty"`
	RejectionReason      string              `json:"rejection_reason,omitempty"`
	AcknowledgedAt       *time.Time          `json:"acknowledged_at,omitempty"`
	StartedAt            *time.Time          `json:"started_at,omitempty"`
	CompletedAt          *time.Time          `json:"completed_at,omitempty"`
	CancelledAt          *time.Time          `json:"cancelled_at,omitempty"`
	CancellationReason   string              `json:"cancellation_reason,omitempty"`
	CreatedBy            string              `json:"created_by,omitempty"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`
}

// PurchaseOrderInput is the body of purchase order create and update requests.
type PurchaseOrderInput struct {
	VendorID             string     `json:"vendor_id" validate:"required"`
	TenderID             string     `json:"tender_id"`
	QuotationID          string     `json:"quotation_id"`
	Items                []POItem   `json:"items" validate:"required,min=1,dive"`
	Currency             string     `json:"currency" validate:"omitempty,len=3"`
	DeliveryAddress      Address    `json:"delivery_address"`
	ExpectedDeliveryDate *time.Time `json:"expected_delivery_date"`
	PaymentTerms         string     `json:"payment_terms"`
	Notes                string     `json:"notes" validate:"max=2000"`
}

// ReasonInput carries the reason for reject and cancel actions.
type ReasonInput struct {
	Reason string `json:"reason" validate:"max=1000"`
}

// POStatusSummary is one row of GET /purchase-orders/summary.
type POStatusSummary struct {
	Status PurchaseOrderStatus `json:"status"`
	Count  int                 `json:"count"`
	Value  decimal.Decimal     `json:"value"`
}

type POSummary struct {
	TotalOrders int               `json:"total_orders"`
	TotalValue  decimal.Decimal   `json:"total_value"`
	OpenValue   decimal.Decimal   `json:"open_value"`
	ByStatus    []POStatusSummary `json:"by_status"`
}

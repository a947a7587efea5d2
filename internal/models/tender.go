package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TenderStatus string

const (
	TenderDraft     TenderStatus = "draft"
	TenderPublished TenderStatus = "published"
	TenderClosed    TenderStatus = "closed"
	TenderAwarded   TenderStatus = "awarded"
	TenderCancelled TenderStatus = "cancelled"
)

// CriterionType selects how a criterion is scored during evaluation.
type CriterionType string

const (
	CriterionPrice     CriterionType = "price"
	CriterionQuality   CriterionType = "quality"
	CriterionDelivery  CriterionType = "delivery"
	CriterionTechnical CriterionType = "technical"
	CriterionOther     CriterionType = "other"
)

type TenderItem struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name" validate:"required"`
	Description        string          `json:"description,omitempty"`
	Quantity           decimal.Decimal `json:"quantity"`
	Unit               string          `json:"unit" validate:"required"`
	EstimatedUnitPrice decimal.Decimal `json:"estimated_unit_price"`
	Specifications     string          `json:"specifications,omitempty"`
}

type EvaluationCriterion struct {
	ID     string          `json:"id"`
	Name   string          `json:"name" validate:"required"`
	Weight decimal.Decimal `json:"weight"`
	Type   CriterionType   `json:"type" validate:"omitempty,oneof=price quality delivery technical other"`
}

type Tender struct {
	ID                 string                `json:"id"`
	TenderNumber       string                `json:"tender_number"`
	Title              string                `json:"title"`
	Description        string                `json:"description,omitempty"`
	Category           string                `json:"category"`
	Status             TenderStatus          `json:"status"`
	Items              []TenderItem          `json:"items"`
	EvaluationCriteria []EvaluationCriterion `json:"evaluation_criteria"`
	Quotations         []Quotation           `json:"quotations"`
	InvitedVendorIDs   []string              `json:"invited_vendor_ids,omitempty"`
	EstimatedValue     decimal.Decimal       `json:"estimated_value"`
	SubmissionDeadline time.Time             `json:"submission_deadline"`
	PublishedAt        *time.Time            `json:"published_at,omitempty"`
	ClosedAt           *time.Time            `json:"closed_at,omitempty"`
	AwardedAt          *time.Time            `json:"awarded_at,omitempty"`
	CancelledAt        *time.Time            `json:"cancelled_at,omitempty"`
	CancellationReason string                `json:"cancellation_reason,omitempty"`
	AwardedQuotationID string                `json:"awarded_quotation_id,omitempty"`
	AwardedVendorID    string                `json:"awarded_vendor_id,omitempty"`
	PurchaseOrderID    string                `json:"purchase_order_id,omitempty"`
	CreatedBy          string                `json:"created_by,omitempty"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

// Quotation finds a quotation on the tender by id.
func (t *Tender) Quotation(id string) (*Quotation, bool) {
	for i := range t.Quotations {
		if t.Quotations[i].ID == id {
			return &t.Quotations[i], true
		}
	}
	return nil, false
}

// IsInvited reports whether vendorID may quote. Open tenders accept everyone.
func (t *Tender) IsInvited(vendorID string) bool {
	if len(t.InvitedVendorIDs) == 0 {
		return true
	}
	for _, id := range t.InvitedVendorIDs {
		if id == vendorID {
			return true
		}
	}
	return false
}

// TenderInput is the body of tender create and update requests.
type TenderInput struct {
	Title              string                `json:"title" validate:"required,min=3,max=200"`
	Description        string                `json:"description" validate:"max=5000"`
	Category           string                `json:"category" validate:"required"`
	Items              []TenderItem          `json:"items" validate:"required,min=1,dive"`
	EvaluationCriteria []EvaluationCriterion `json:"evaluation_criteria" validate:"required,min=1,dive"`
	InvitedVendorIDs   []string              `json:"invited_vendor_ids"`
	SubmissionDeadline time.Time             `json:"submission_deadline" validate:"required"`
}

type QuotationStatus string

const (
	QuotationSubmitted   QuotationStatus = "submitted"
	QuotationShortlisted QuotationStatus = "shortlisted"
	QuotationAccepted    QuotationStatus = "accepted"
	QuotationRejected    QuotationStatus = "rejected"
)

type QuotationItem struct {
	TenderItemID string          `json:"tender_item_id" validate:"required"`
	Name         string          `json:"name,omitempty"`
	Unit         string          `json:"unit,omitempty"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Total        decimal.Decimal `json:"total"`
}

type Quotation struct {
	ID            string                     `json:"id"`
	TenderID      string                     `json:"tender_id"`
	VendorID      string                     `json:"vendor_id"`
	VendorName    string                     `json:"vendor_name"`
	Items         []QuotationItem            `json:"items"`
	Subtotal      decimal.Decimal            `json:"subtotal"`
	Tax           decimal.Decimal            `json:"tax"`
	Total         decimal.Decimal            `json:"total"`
	DeliveryDays  int                        `json:"delivery_days"`
	ValidityDays  int                        `json:"validity_days"`
	Notes         string                     `json:"notes,omitempty"`
	Scores        map[string]decimal.Decimal `json:"scores,omitempty"`
	WeightedScore decimal.Decimal            `json:"weighted_score"`
	Status        QuotationStatus            `json:"status"`
	SubmittedAt   time.Time                  `json:"submitted_at"`
}

// QuotationInput is the body of POST /tenders/{id}/quotations.
type QuotationInput struct {
	VendorID     string                     `json:"vendor_id" validate:"required"`
	Items        []QuotationItem            `json:"items" validate:"required,min=1,dive"`
	DeliveryDays int                        `json:"delivery_days" validate:"required,min=1"`
	ValidityDays int                        `json:"validity_days" validate:"min=0"`
	Notes        string                     `json:"notes" validate:"max=2000"`
	Scores       map[string]decimal.Decimal `json:"scores"`
}

// AwardInput is the body of POST /tenders/{id}/award.
type AwardInput struct {
	QuotationID string `json:"quotation_id" validate:"required"`
}

// CriterionScore is one criterion's contribution to a quotation's score.
type CriterionScore struct {
	CriterionID string          `json:"criterion_id"`
	Name        string          `json:"name"`
	Weight      decimal.Decimal `json:"weight"`
	Score       decimal.Decimal `json:"score"`
	Weighted    decimal.Decimal `json:"weighted"`
}

// RankedQuotation is a quotation's position in a tender evaluation.
type RankedQuotation struct {
	Rank          int              `json:"rank"`
	QuotationID   string           `json:"quotation_id"`
	VendorID      string           `json:"vendor_id"`
	VendorName    string           `json:"vendor_name"`
	Total         decimal.Decimal  `json:"total"`
	DeliveryDays  int              `json:"delivery_days"`
	WeightedScore decimal.Decimal  `json:"weighted_score"`
	Breakdown     []CriterionScore `json:"breakdown"`
}

type TenderEvaluation struct {
	TenderID    string            `json:"tender_id"`
	Status      TenderStatus      `json:"status"`
	Ranking     []RankedQuotation `json:"ranking"`
	Recommended string            `json:"recommended_quotation_id,omitempty"`
}

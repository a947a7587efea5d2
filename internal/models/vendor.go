package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// VendorStatus is the lifecycle status of a vendor.
type VendorStatus string

const (
	VendorPending     VendorStatus = "pending"
	VendorActive      VendorStatus = "active"
	VendorInactive    VendorStatus = "inactive"
	VendorBlacklisted VendorStatus = "blacklisted"
)

type Address struct {
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// Performance aggregates a vendor's delivery history.
type Performance struct {
	OnTimeDeliveryRate decimal.Decimal `json:"on_time_delivery_rate"`
	QualityScore       decimal.Decimal `json:"quality_score"`
	ResponseTimeHours  decimal.Decimal `json:"response_time_hours"`
	TotalOrders        int             `json:"total_orders"`
	OnTimeOrders       int             `json:"on_time_orders"`
	TotalValue         decimal.Decimal `json:"total_value"`
}

type Certification struct {
	Name      string     `json:"name" validate:"required"`
	Issuer    string     `json:"issuer,omitempty"`
	Number    string     `json:"number,omitempty"`
	IssuedAt  *time.Time `json:"issued_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the certification has lapsed at t.
func (c Certification) Expired(t time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(t)
}

type Vendor struct {
	ID             string          `json:"id"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Email          string          `json:"email"`
	Phone          string          `json:"phone"`
	Address        Address         `json:"address"`
	ContactPerson  string          `json:"contact_person,omitempty"`
	TaxID          string          `json:"tax_id,omitempty"`
	Website        string          `json:"website,omitempty"`
	Categories     []string        `json:"categories"`
	Status         VendorStatus    `json:"status"`
	StatusReason   string          `json:"status_reason,omitempty"`
	Rating         decimal.Decimal `json:"rating"`
	Performance    Performance     `json:"performance"`
	Certifications []Certification `json:"certifications"`
	PaymentTerms   string          `json:"payment_terms,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// VendorInput is the body of vendor create and update requests.
type VendorInput struct {
	Code           string          `json:"code" validate:"omitempty,max=32"`
	Name           string          `json:"name" validate:"required,min=2,max=200"`
	Email          string          `json:"email" validate:"required,email"`
	Phone          string          `json:"phone" validate:"required,min=5,max=32"`
	Address        Address         `json:"address"`
	ContactPerson  string          `json:"contact_person" validate:"max=200"`
	TaxID          string          `json:"tax_id" validate:"max=64"`
	Website        string          `json:"website" validate:"omitempty,url"`
	Categories     []string        `json:"categories" validate:"required,min=1,dive,required"`
	Rating         decimal.Decimal `json:"rating"`
	Certifications []Certification `json:"certifications" validate:"dive"`
	PaymentTerms   string          `json:"payment_terms"`
	Notes          string          `json:"notes"`
}

// VendorStatusChange is the body of POST /vendors/{id}/status.
type VendorStatusChange struct {
	Status VendorStatus `json:"status" validate:"required,oneof=pending active inactive blacklisted"`
	Reason string       `json:"reason"`
}

// VendorStats summarises the vendor base.
type VendorStats struct {
	Total        int                  `json:"total"`
	ByStatus     map[VendorStatus]int `json:"by_status"`
	ByCategory   map[string]int       `json:"by_category"`
	AverageScore decimal.Decimal      `json:"average_rating"`
}

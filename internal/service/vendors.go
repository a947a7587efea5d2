package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"procurement-api/internal/apperr"
	"procurement-api/internal/logging"
	"procurement-api/internal/models"
	"procurement-api/internal/repository"
	"procurement-api/internal/store"
	"procurement-api/internal/validation"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type VendorService struct {
	base
	vendors *repository.VendorRepository
	orders  *repository.PurchaseOrderRepository
}

func (s *VendorService) List(ctx context.Context, q store.Query) ([]models.Vendor, int, error) {
	return s.vendors.List(ctx, q)
}

func (s *VendorService) Get(ctx context.Context, id string) (*models.Vendor, error) {
	return s.vendors.Get(ctx, id)
}

// Create registers a vendor in pending status.
func (s *VendorService) Create(ctx context.Context, in *models.VendorInput) (*models.Vendor, error) {
	normalizeVendorInput(in)
	if err := validation.Vendor(in); err != nil {
		return nil, err
	}
	if err := s.ensureUniqueEmail(ctx, in.Email, ""); err != nil {
		return nil, err
	}

	v := &models.Vendor{Status: models.VendorPending, Code: in.Code}
	if v.Code == "" {
		v.Code = vendorCode()
	}
	applyVendorInput(v, in)

	created, err := s.vendors.Create(ctx, v)
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info("vendor created",
		zap.String("vendor_id", created.ID), zap.String("code", created.Code))
	return created, nil
}

// Update replaces the editable fields. Status, code and performance are kept.
func (s *VendorService) Update(ctx context.Context, id string, in *models.VendorInput) (*models.Vendor, error) {
	current, err := s.vendors.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	normalizeVendorInput(in)
	if err := validation.Vendor(in); err != nil {
		return nil, err
	}
	if err := s.ensureUniqueEmail(ctx, in.Email, id); err != nil {
		return nil, err
	}
	applyVendorInput(current, in)
	if in.Code != "" {
		current.Code = in.Code
	}
	return s.vendors.Update(ctx, id, current)
}

// Delete removes a vendor that has no open purchase orders.
func (s *VendorService) Delete(ctx context.Context, id string) error {
	if _, err := s.vendors.Get(ctx, id); err != nil {
		return err
	}
	orders, err := s.orders.ListByVendor(ctx, id)
	if err != nil {
		return err
	}
	open := 0
	for _, po := range orders {
		if po.Status.Open() {
			open++
		}
	}
	if open > 0 {
		return apperr.Conflict("vendor %q has %d open purchase order(s)", id, open).
			WithDetail("open_purchase_orders", strconv.Itoa(open))
	}
	if err := s.vendors.Delete(ctx, id); err != nil {
		return err
	}
	logging.FromContext(ctx).Info("vendor deleted", zap.String("vendor_id", id))
	return nil
}

// ChangeStatus moves a vendor along its lifecycle. Blacklisted is terminal.
func (s *VendorService) ChangeStatus(ctx context.Context, id string, change *models.VendorStatusChange) (*models.Vendor, error) {
	if err := validation.Struct(change); err != nil {
		return nil, err
	}
	v, err := s.vendors.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	from := v.Status
	if err := guard(vendorTransitions, "vendor", vendorAction(change.Status), from, change.Status); err != nil {
		return nil, err
	}
	v.Status = change.Status
	v.StatusReason = strings.TrimSpace(change.Reason)
	updated, err := s.vendors.Update(ctx, id, v)
	if err != nil {
		return nil, err
	}
	s.transitioned("vendor", string(from), string(change.Status))
	logging.FromContext(ctx).Info("vendor status changed",
		zap.String("vendor_id", id), zap.String("from", string(from)), zap.String("to", string(change.Status)))
	return updated, nil
}

func vendorAction(to models.VendorStatus) string {
	switch to {
	case models.VendorActive:
		return "activate"
	case models.VendorInactive:
		return "deactivate"
	case models.VendorBlacklisted:
		return "blacklist"
	}
	return "reset"
}

// RequireActive returns the vendor when it exists and may take new business.
func (s *VendorService) RequireActive(ctx context.Context, id string) (*models.Vendor, error) {
	v, err := s.vendors.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.Status != models.VendorActive {
		return nil, apperr.ValidationFields(map[string]string{
			"vendor_id": "vendor " + id + " is " + string(v.Status) + ", must be active",
		})
	}
	return v, nil
}

// Stats counts vendors per status and category and averages their rating.
func (s *VendorService) Stats(ctx context.Context) (*models.VendorStats, error) {
	all, err := s.vendors.All(ctx, store.Query{})
	if err != nil {
		return nil, err
	}
	stats := &models.VendorStats{
		Total:        len(all),
		ByStatus:     map[models.VendorStatus]int{},
		ByCategory:   map[string]int{},
		AverageScore: decimal.Zero,
	}
	sum := decimal.Zero
	for _, v := range all {
		stats.ByStatus[v.Status]++
		for _, c := range v.Categories {
			stats.ByCategory[c]++
		}
		sum = sum.Add(v.Rating)
	}
	if len(all) > 0 {
		stats.AverageScore = sum.Div(decimal.NewFromInt(int64(len(all)))).Round(2)
	}
	return stats, nil
}

// RecordCompletion folds a completed purchase order into the vendor's
// performance figures. An order with no expected delivery date counts as on time.
func (s *VendorService) RecordCompletion(ctx context.Context, po *models.PurchaseOrder) (*models.Vendor, error) {
	v, err := s.vendors.Get(ctx, po.VendorID)
	if err != nil {
		return nil, err
	}
	completed := s.now()
	if po.CompletedAt != nil {
		completed = *po.CompletedAt
	}

	perf := &v.Performance
	perf.TotalOrders++
	perf.TotalValue = money(perf.TotalValue.Add(po.Total))
	if onTime(completed, po.ExpectedDeliveryDate) {
		perf.OnTimeOrders++
	}
	perf.OnTimeDeliveryRate = decimal.NewFromInt(int64(perf.OnTimeOrders)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(perf.TotalOrders))).
		Round(2)
	return s.vendors.Update(ctx, v.ID, v)
}

// onTime compares calendar days: delivery any time on the expected day is on time.
func onTime(completed time.Time, expected *time.Time) bool {
	if expected == nil {
		return true
	}
	y, m, d := expected.UTC().Date()
	deadline := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	return completed.UTC().Before(deadline)
}

// CheckEmail returns a Conflict when a vendor already uses email. It writes nothing.
func (s *VendorService) CheckEmail(ctx context.Context, email string) error {
	return s.ensureUniqueEmail(ctx, strings.ToLower(strings.TrimSpace(email)), "")
}

func (s *VendorService) ensureUniqueEmail(ctx context.Context, email, exceptID string) error {
	existing, err := s.vendors.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != exceptID {
		return apperr.Conflict("a vendor with email %q already exists", email).
			WithDetail("email", "already in use by vendor "+existing.ID)
	}
	return nil
}

func normalizeVendorInput(in *models.VendorInput) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	cats := in.Categories[:0]
	for _, c := range in.Categories {
		if c = strings.TrimSpace(c); c != "" {
			cats = append(cats, c)
		}
	}
	in.Categories = cats
}

func applyVendorInput(v *models.Vendor, in *models.VendorInput) {
	v.Name = in.Name
	v.Email = in.Email
	v.Phone = in.Phone
	v.Address = in.Address
	v.ContactPerson = in.ContactPerson
	v.TaxID = in.TaxID
	v.Website = in.Website
	v.Categories = in.Categories
	v.Rating = in.Rating
	v.Certifications = in.Certifications
	v.PaymentTerms = in.PaymentTerms
	v.Notes = in.Notes
}

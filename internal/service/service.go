// Package service holds the procurement business rules: validation, status
// guards, totals and scoring. Handlers call services; services call the
// repositories.
package service

import (
	"strings"
	"time"

	"procurement-api/internal/models"
	"procurement-api/internal/repository"
	"procurement-api/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransitionObserver is told about every status change a service commits.
type TransitionObserver func(entity, from, to string)

type Options struct {
	// TaxRate applies to purchase orders and quotations; nil means
	// models.DefaultTaxRate. A zero rate is honoured.
	TaxRate  *decimal.Decimal
	Now      func() time.Time
	Observer TransitionObserver
}

// Services bundles the domain services sharing one store.
type Services struct {
	Vendors        *VendorService
	Tenders        *TenderService
	PurchaseOrders *PurchaseOrderService
	Users          *repository.UserRepository
}

func New(s store.Store, opts Options) *Services {
	taxRate := models.DefaultTaxRate
	if opts.TaxRate != nil {
		taxRate = *opts.TaxRate
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	b := base{now: opts.Now, observe: opts.Observer}

	vendorRepo := repository.NewVendorRepository(s)
	tenderRepo := repository.NewTenderRepository(s)
	orderRepo := repository.NewPurchaseOrderRepository(s)

	vendors := &VendorService{base: b, vendors: vendorRepo, orders: orderRepo}
	orders := &PurchaseOrderService{base: b, orders: orderRepo, vendors: vendors, taxRate: taxRate}
	tenders := &TenderService{base: b, tenders: tenderRepo, vendors: vendors, orders: orders, taxRate: taxRate}

	return &Services{
		Vendors:        vendors,
		Tenders:        tenders,
		PurchaseOrders: orders,
		Users:          repository.NewUserRepository(s),
	}
}

// base carries what every service shares.
type base struct {
	now     func() time.Time
	observe TransitionObserver
}

func (b base) transitioned(entity, from, to string) {
	if b.observe != nil && from != to {
		b.observe(entity, from, to)
	}
}

func (b base) timestamp() *time.Time {
	t := b.now().UTC()
	return &t
}

// suffix returns six upper-case hex characters for document numbers.
func suffix() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
}

func vendorCode() string { return "VND-" + suffix() }

func tenderNumber(now time.Time) string {
	return "TND-" + now.UTC().Format("2006") + "-" + suffix()
}

func poNumber(now time.Time) string {
	return "PO-" + now.UTC().Format("2006") + "-" + suffix()
}

// money rounds half away from zero to cents.
func money(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// Totals is the derived money summary of a priced item list.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// ComputeTotals rounds each line to cents, sums them and adds tax on the
// subtotal. line supplies the quantity and unit price of item i; set, if
// non-nil, receives its rounded total.
func ComputeTotals(n int, rate decimal.Decimal, line func(i int) (qty, price decimal.Decimal), set func(i int, total decimal.Decimal)) Totals {
	subtotal := decimal.Zero
	for i := 0; i < n; i++ {
		qty, price := line(i)
		total := money(qty.Mul(price))
		if set != nil {
			set(i, total)
		}
		subtotal = subtotal.Add(total)
	}
	subtotal = money(subtotal)
	tax := money(subtotal.Mul(rate))
	return Totals{Subtotal: subtotal, Tax: tax, Total: subtotal.Add(tax)}
}

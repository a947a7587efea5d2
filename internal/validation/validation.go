// Package validation checks request structs and the domain rules that struct
// tags cannot express.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"procurement-api/internal/apperr"
	"procurement-api/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	once     sync.Once
	validate *validator.Validate
)

var hundred = decimal.NewFromInt(100)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
	return validate
}

// Struct validates v's tags. Failures come back as a validation AppError
// whose details map json field paths to messages.
func Struct(v any) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation("%v", err)
	}
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[fieldPath(fe)] = message(fe)
	}
	return apperr.ValidationFields(details)
}

// fieldPath drops the top level struct name: "VendorInput.address.city" becomes "address.city".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return "must be at most " + fe.Param()
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	}
	return "failed " + fe.Tag() + " validation"
}

// fields accumulates domain rule failures.
type fields map[string]string

func (f fields) err() error {
	if len(f) == 0 {
		return nil
	}
	return apperr.ValidationFields(f)
}

// Vendor checks a vendor payload.
func Vendor(in *models.VendorInput) error {
	if err := Struct(in); err != nil {
		return err
	}
	f := fields{}
	if in.Rating.IsNegative() || in.Rating.GreaterThan(decimal.NewFromInt(5)) {
		f["rating"] = "must be between 0 and 5"
	}
	for i, c := range in.Certifications {
		if c.IssuedAt != nil && c.ExpiresAt != nil && c.ExpiresAt.Before(*c.IssuedAt) {
			f[fmt.Sprintf("certifications[%d].expires_at", i)] = "must not be before issued_at"
		}
	}
	return f.err()
}

// Tender checks a tender payload: positive quantities, non-negative prices,
// unique criterion names and weights totalling exactly 100.
func Tender(in *models.TenderInput) error {
	if err := Struct(in); err != nil {
		return err
	}
	f := fields{}
	for i, it := range in.Items {
		if !it.Quantity.IsPositive() {
			f[fmt.Sprintf("items[%d].quantity", i)] = "must be greater than 0"
		}
		if it.EstimatedUnitPrice.IsNegative() {
			f[fmt.Sprintf("items[%d].estimated_unit_price", i)] = "must not be negative"
		}
	}
	if msg := criteriaProblem(in.EvaluationCriteria); msg != "" {
		f["evaluation_criteria"] = msg
	}
	seen := make(map[string]bool, len(in.EvaluationCriteria))
	for i, c := range in.EvaluationCriteria {
		if c.Weight.IsNegative() {
			f[fmt.Sprintf("evaluation_criteria[%d].weight", i)] = "must not be negative"
		}
		key := strings.ToLower(strings.TrimSpace(c.Name))
		if seen[key] {
			f[fmt.Sprintf("evaluation_criteria[%d].name", i)] = "must be unique"
		}
		seen[key] = true
	}
	return f.err()
}

// CriteriaWeights reports a validation error unless the weights total exactly 100.
func CriteriaWeights(criteria []models.EvaluationCriterion) error {
	if msg := criteriaProblem(criteria); msg != "" {
		return apperr.ValidationFields(map[string]string{"evaluation_criteria": msg})
	}
	return nil
}

func criteriaProblem(criteria []models.EvaluationCriterion) string {
	if len(criteria) == 0 {
		return "at least one criterion is required"
	}
	sum := decimal.Zero
	for _, c := range criteria {
		sum = sum.Add(c.Weight)
	}
	if !sum.Equal(hundred) {
		return fmt.Sprintf("weights must total 100, got %s", sum.String())
	}
	return ""
}

// Quotation checks a quotation payload.
func Quotation(in *models.QuotationInput) error {
	if err := Struct(in); err != nil {
		return err
	}
	f := fields{}
	for i, it := range in.Items {
		if !it.Quantity.IsPositive() {
			f[fmt.Sprintf("items[%d].quantity", i)] = "must be greater than 0"
		}
		if it.UnitPrice.IsNegative() {
			f[fmt.Sprintf("items[%d].unit_price", i)] = "must not be negative"
		}
	}
	for id, score := range in.Scores {
		if score.IsNegative() || score.GreaterThan(hundred) {
			f["scores."+id] = "must be between 0 and 100"
		}
	}
	return f.err()
}

// PurchaseOrder checks a purchase order payload.
func PurchaseOrder(in *models.PurchaseOrderInput) error {
	if err := Struct(in); err != nil {
		return err
	}
	f := fields{}
	for i, it := range in.Items {
		if !it.Quantity.IsPositive() {
			f[fmt.Sprintf("items[%d].quantity", i)] = "must be greater than 0"
		}
		if it.UnitPrice.IsNegative() {
			f[fmt.Sprintf("items[%d].unit_price", i)] = "must not be negative"
		}
	}
	return f.err()
}

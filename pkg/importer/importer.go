// Package importer loads vendors from Excel workbooks.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"procurement-api/internal/apperr"
	"procurement-api/internal/logging"
	"procurement-api/internal/models"
	"procurement-api/internal/validation"

	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v3"
	"go.uber.org/zap"
)

const (
	defaultMaxErrors = 50
	maxSamples       = 10
)

// VendorCreator registers one vendor. The vendor service satisfies it.
type VendorCreator interface {
	Create(ctx context.Context, in *models.VendorInput) (*models.Vendor, error)
}

// EmailChecker is implemented by creators that can report an email already
// in use without writing. Dry runs use it to skip the rows a real run would.
type EmailChecker interface {
	CheckEmail(ctx context.Context, email string) error
}

// ImportOptions defines the configuration for Excel import operations
type ImportOptions struct {
	Mapping   *MappingConfig // nil selects the built-in mapping
	DryRun    bool
	MaxErrors int // default 50
}

// RowError represents an error that occurred during row processing
type RowError struct {
	Sheet   string `json:"sheet"`
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// SheetSummary contains the import statistics for a single sheet
type SheetSummary struct {
	Name     string     `json:"name"`
	Inserted int        `json:"inserted"`
	Skipped  int        `json:"skipped"`
	Errors   int        `json:"errors"`
	Samples  []RowError `json:"error_samples,omitempty"`
}

// ImportSummary contains the overall import statistics
type ImportSummary struct {
	Inserted int            `json:"inserted"`
	Skipped  int            `json:"skipped"`
	Errors   int            `json:"errors"`
	Sheets   []SheetSummary `json:"sheets"`
	DryRun   bool           `json:"dry_run"`
}

// ErrTooManyErrors stops an import once the error budget is spent.
var ErrTooManyErrors = errors.New("too many errors")

// ImportVendors reads every mapped sheet of the workbook and creates one
// vendor per data row. Rows that fail validation are counted and sampled;
// rows whose email already exists are skipped. In dry run mode rows are
// validated but nothing is written.
func ImportVendors(ctx context.Context, vendors VendorCreator, r io.Reader, opts ImportOptions) (ImportSummary, error) {
	summary := ImportSummary{
		DryRun: opts.DryRun,
		Sheets: []SheetSummary{},
	}

	if opts.Mapping == nil {
		opts.Mapping = DefaultMapping()
	}
	if opts.MaxErrors <= 0 {
		opts.MaxErrors = defaultMaxErrors
	}

	// xlsx needs random access, so the upload is buffered whole
	data, err := io.ReadAll(r)
	if err != nil {
		return summary, fmt.Errorf("failed to read Excel file: %w", err)
	}
	xlFile, err := xlsx.OpenBinary(data)
	if err != nil {
		return summary, fmt.Errorf("failed to open Excel file: %w", err)
	}

	log := logging.FromContext(ctx)
	imp := &vendorImport{vendors: vendors, opts: opts, seen: map[string]bool{}}

	for _, sheet := range xlFile.Sheets {
		cfg, ok := opts.Mapping.sheet(sheet.Name)
		if !ok {
			log.Debug("sheet has no mapping, skipping", zap.String("sheet", sheet.Name))
			continue
		}

		sheetSummary, err := imp.processSheet(ctx, sheet, cfg, opts.MaxErrors-summary.Errors)
		summary.Sheets = append(summary.Sheets, sheetSummary)
		summary.Inserted += sheetSummary.Inserted
		summary.Skipped += sheetSummary.Skipped
		summary.Errors += sheetSummary.Errors
		if err != nil {
			return summary, err
		}
	}

	if len(summary.Sheets) == 0 {
		return summary, fmt.Errorf("workbook has no sheet matching the mapping")
	}

	log.Info("vendor import finished",
		zap.Bool("dry_run", opts.DryRun),
		zap.Int("inserted", summary.Inserted),
		zap.Int("skipped", summary.Skipped),
		zap.Int("errors", summary.Errors))
	return summary, nil
}

type vendorImport struct {
	vendors VendorCreator
	opts    ImportOptions
	seen    map[string]bool // emails already imported from this workbook
}

func (imp *vendorImport) processSheet(ctx context.Context, sheet *xlsx.Sheet, cfg SheetConfig, budget int) (SheetSummary, error) {
	summary := SheetSummary{Name: sheet.Name}
	fail := func(row int, msg string) {
		summary.Errors++
		if len(summary.Samples) < maxSamples {
			summary.Samples = append(summary.Samples, RowError{Sheet: sheet.Name, Row: row, Message: msg})
		}
	}

	if sheet.MaxRow == 0 {
		return summary, nil
	}
	headerRow, err := sheet.Row(0)
	if err != nil {
		fail(1, "failed to read header row: "+err.Error())
		return summary, nil
	}

	columns := cfg.resolve()
	byIndex := make(map[int]ColumnConfig)
	for col := 0; col < sheet.MaxCol; col++ {
		header := normalizeHeader(cellText(headerRow.GetCell(col)))
		if c, ok := columns[header]; ok && header != "" {
			byIndex[col] = c
		}
	}
	if len(byIndex) == 0 {
		fail(1, "header row has no mapped columns")
		return summary, nil
	}

	for rowIdx := 1; rowIdx < sheet.MaxRow; rowIdx++ {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		row, err := sheet.Row(rowIdx)
		if err != nil {
			break
		}
		rowNum := rowIdx + 1

		values := make(map[string]string)
		for col, c := range byIndex {
			if v := cellText(row.GetCell(col)); v != "" {
				values[c.Field] = v
			}
		}
		if len(values) == 0 {
			summary.Skipped++
			continue
		}

		in, err := buildVendorInput(values, byIndex, imp.opts.Mapping.Defaults)
		if err == nil {
			err = imp.store(ctx, in)
		}
		switch {
		case err == nil:
			summary.Inserted++
		case errors.Is(err, errDuplicate) || apperr.IsConflict(err):
			summary.Skipped++
		case apperr.IsValidation(err):
			fail(rowNum, describe(err))
		default:
			var perr *parseError
			if !errors.As(err, &perr) {
				// store or upstream failure: later rows would fail the same way
				return summary, fmt.Errorf("sheet %s row %d: %w", sheet.Name, rowNum, err)
			}
			fail(rowNum, err.Error())
		}

		if summary.Errors > budget {
			return summary, fmt.Errorf("%w (%d), stopping import", ErrTooManyErrors, summary.Errors)
		}
	}
	return summary, nil
}

var errDuplicate = errors.New("duplicate email in workbook")

// store validates and, outside dry runs, creates the vendor.
func (imp *vendorImport) store(ctx context.Context, in *models.VendorInput) error {
	if err := validation.Vendor(in); err != nil {
		return err
	}
	key := strings.ToLower(in.Email)
	if imp.seen[key] {
		return errDuplicate
	}
	if imp.opts.DryRun {
		if checker, ok := imp.vendors.(EmailChecker); ok {
			if err := checker.CheckEmail(ctx, in.Email); err != nil {
				return err
			}
		}
	} else if _, err := imp.vendors.Create(ctx, in); err != nil {
		return err
	}
	imp.seen[key] = true
	return nil
}

type parseError struct {
	field string
	err   error
}

func (e *parseError) Error() string { return fmt.Sprintf("%s: %v", e.field, e.err) }

func buildVendorInput(values map[string]string, columns map[int]ColumnConfig, defaults map[string]string) (*models.VendorInput, error) {
	types := make(map[string]string, len(columns))
	for _, c := range columns {
		types[c.Field] = c.Type
	}

	in := &models.VendorInput{}
	for field, def := range defaults {
		if _, ok := values[field]; !ok {
			values[field] = def
		}
	}

	for field, raw := range values {
		switch types[field] {
		case TypeDecimal:
			d, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
			if err != nil {
				return nil, &parseError{field: field, err: fmt.Errorf("invalid number %q", raw)}
			}
			setDecimal(in, field, d)
		case TypeTags:
			setTags(in, field, splitTags(raw))
		case TypeEmail:
			setText(in, field, strings.ToLower(raw))
		default:
			if field == "categories" {
				setTags(in, field, splitTags(raw))
				continue
			}
			setText(in, field, raw)
		}
	}
	return in, nil
}

func setText(in *models.VendorInput, field, v string) {
	switch field {
	case "code":
		in.Code = strings.ToUpper(v)
	case "name":
		in.Name = v
	case "email":
		in.Email = v
	case "phone":
		in.Phone = v
	case "contact_person":
		in.ContactPerson = v
	case "tax_id":
		in.TaxID = v
	case "website":
		in.Website = v
	case "payment_terms":
		in.PaymentTerms = v
	case "notes":
		in.Notes = v
	case "address.street":
		in.Address.Street = v
	case "address.city":
		in.Address.City = v
	case "address.state":
		in.Address.State = v
	case "address.postal_code":
		in.Address.PostalCode = v
	case "address.country":
		in.Address.Country = v
	case "rating":
		if d, err := decimal.NewFromString(v); err == nil {
			in.Rating = d
		}
	}
}

func setDecimal(in *models.VendorInput, field string, d decimal.Decimal) {
	if field == "rating" {
		in.Rating = d
		return
	}
	setText(in, field, d.String())
}

func setTags(in *models.VendorInput, field string, tags []string) {
	if field == "categories" {
		in.Categories = tags
		return
	}
	setText(in, field, strings.Join(tags, ", "))
}

// splitTags turns "Raw Materials; Logistics" into [raw_materials logistics].
func splitTags(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' || r == '\n' })
	out := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		tag := strings.Join(strings.Fields(strings.ToLower(p)), "_")
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

func cellText(c *xlsx.Cell) string {
	if c == nil {
		return ""
	}
	v, err := c.FormattedValue()
	if err != nil {
		v = c.Value
	}
	return strings.TrimSpace(v)
}

// describe flattens a validation error into "field: message" pairs.
func describe(err error) string {
	ae := apperr.From(err)
	if len(ae.Details) == 0 {
		return ae.Message
	}
	keys := make([]string, 0, len(ae.Details))
	for k := range ae.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + ae.Details[k]
	}
	return strings.Join(parts, "; ")
}

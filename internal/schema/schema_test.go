package schema

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"procurement-api/internal/apperr"
	"procurement-api/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadEmbedded(t *testing.T) *Registry {
	t.Helper()
	r, err := Load("")
	require.NoError(t, err)
	return r
}

func demoRecord(t *testing.T, collection, id string) store.Record {
	t.Helper()
	mem, err := store.NewDemo()
	require.NoError(t, err)
	rec, err := mem.Get(context.Background(), collection, id)
	require.NoError(t, err)
	return rec
}

func TestLoadEmbedded(t *testing.T) {
	r := loadEmbedded(t)

	var ids []string
	for _, s := range r.List() {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"purchase-orders", "tenders", "vendors"}, ids)

	s, err := r.Get("vendors")
	require.NoError(t, err)
	assert.Equal(t, store.Vendors, s.Entity)
	assert.Equal(t, 3, s.Card.MaxBadges)

	_, err = r.Get("assets")
	assert.True(t, apperr.IsNotFound(err))
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	doc := "id: contacts\ntitle: Contacts\nfields:\n  - name: full_name\n    role: title\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "contacts.yaml"), []byte(doc), 0o644))

	r, err := Load(dir)
	require.NoError(t, err)
	s, err := r.Get("contacts")
	require.NoError(t, err)
	assert.Equal(t, "contacts", s.Entity)
	assert.Equal(t, "grid", s.Card.DefaultView)
	assert.Equal(t, "full_name", s.Fields[0].ID)
	assert.Equal(t, "full_name", s.Fields[0].Label)

	_, err = Load(t.TempDir())
	assert.Error(t, err, "empty directory")
}

func TestParseRejectsBadSchemas(t *testing.T) {
	cases := map[string]string{
		"no id":        "title: x\n",
		"dup field":    "id: a\nfields:\n  - name: x\n  - name: x\n",
		"bad role":     "id: a\nfields:\n  - name: x\n    role: hero\n",
		"bad pattern":  "id: a\nfields:\n  - name: x\n    validation:\n      pattern: '['\n",
		"bad view":     "id: a\ncard:\n  default_view: kanban\n",
		"unnamed":      "id: a\nfields:\n  - label: X\n",
		"invalid yaml": "id: [a\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestFieldByRole(t *testing.T) {
	s, err := loadEmbedded(t).Get("vendors")
	require.NoError(t, err)

	f := FieldByRole(s, RoleTitle)
	require.NotNil(t, f)
	assert.Equal(t, "name", f.Name)
	assert.Nil(t, FieldByRole(s, "hero"))
	assert.Nil(t, FieldByRole(nil, RoleTitle))

	extra := *s
	extra.Fields = append(append([]Field{}, s.Fields...), Field{Name: "alt_email", Role: RoleEmail})
	emails := FieldsByRole(&extra, RoleEmail)
	require.Len(t, emails, 2)
	assert.Equal(t, "email", emails[0].Name)
	assert.Equal(t, "email", FieldByRole(&extra, RoleEmail).Name, "first field with the role wins")
}

func TestValueByRole(t *testing.T) {
	s, err := loadEmbedded(t).Get("vendors")
	require.NoError(t, err)
	rec := demoRecord(t, store.Vendors, "vnd-0001")

	v, ok := ValueByRole(s, rec, RoleLocation)
	require.True(t, ok)
	assert.Equal(t, "Pittsburgh", v)

	_, ok = ValueByRole(s, map[string]any{"name": "x"}, RoleLocation)
	assert.False(t, ok)
	_, ok = ValueByRole(s, rec, "hero")
	assert.False(t, ok)
}

func TestNormalizeOptions(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want []NormalizedOption
	}{
		{"nil", nil, nil},
		{"blank string", "  ", nil},
		{"string", "active", []NormalizedOption{{ID: "active", Label: "active"}}},
		{"integer", float64(3), []NormalizedOption{{ID: "3", Label: "3"}}},
		{"fraction", 2.5, []NormalizedOption{{ID: "2.5", Label: "2.5"}}},
		{"json number", json.Number("42"), []NormalizedOption{{ID: "42", Label: "42"}}},
		{"bool", true, []NormalizedOption{{ID: "true", Label: "Yes"}}},
		{"object id label", map[string]any{"id": "a", "label": "Alpha", "icon": "star", "color": "red"},
			[]NormalizedOption{{ID: "a", Label: "Alpha", Icon: "star", Color: "red"}}},
		{"object value name", map[string]any{"value": 7.0, "name": "Seven"}, []NormalizedOption{{ID: "7", Label: "Seven"}}},
		{"object key only", map[string]any{"key": "k"}, []NormalizedOption{{ID: "k", Label: "k"}}},
		{"object title only", map[string]any{"title": "Only title"}, []NormalizedOption{{ID: "Only title", Label: "Only title"}}},
		{"empty object", map[string]any{"icon": "x"}, nil},
		{"record", store.Record{"id": "r1", "name": "Record"}, []NormalizedOption{{ID: "r1", Label: "Record"}}},
		{"string slice", []string{"a", "b", "a"}, []NormalizedOption{{ID: "a", Label: "a"}, {ID: "b", Label: "b"}}},
		{"mixed array", []any{"x", map[string]any{"id": "y", "label": "Why"}, nil, []any{false}},
			[]NormalizedOption{{ID: "x", Label: "x"}, {ID: "y", Label: "Why"}, {ID: "false", Label: "No"}}},
		{"declared options", []Option{{ID: "o", Label: "Oh"}}, []NormalizedOption{{ID: "o", Label: "Oh"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeOptions(tc.in))
		})
	}
}

func TestEnrichAndBadges(t *testing.T) {
	s, err := loadEmbedded(t).Get("vendors")
	require.NoError(t, err)
	cats := FieldByRole(s, RoleBadge)
	require.NotNil(t, cats)

	got := EnrichOptions(cats, NormalizeOptions([]any{"LOGISTICS", map[string]any{"id": "services", "label": "Field services"}, "tooling"}))
	assert.Equal(t, []NormalizedOption{
		{ID: "LOGISTICS", Label: "Logistics", Icon: "truck", Color: "teal"},
		{ID: "services", Label: "Field services", Icon: "briefcase", Color: "violet"},
		{ID: "tooling", Label: "tooling"},
	}, got)

	set := Badges(cats, []string{"equipment", "services", "logistics"}, 2)
	require.Len(t, set.Items, 2)
	assert.Equal(t, "Equipment", set.Items[0].Label)
	assert.Equal(t, 1, set.Overflow)

	all := Badges(cats, []string{"equipment", "services", "logistics"}, 0)
	assert.Len(t, all.Items, 3)
	assert.Zero(t, all.Overflow)

	empty := Badges(cats, nil, 3)
	assert.NotNil(t, empty.Items)
	assert.Empty(t, empty.Items)
}

func TestStatusBadge(t *testing.T) {
	s, err := loadEmbedded(t).Get("purchase-orders")
	require.NoError(t, err)

	b := StatusBadge(s, demoRecord(t, store.PurchaseOrders, "po-0002"))
	require.NotNil(t, b)
	assert.Equal(t, NormalizedOption{ID: "pending_approval", Label: "Pending approval", Icon: "clock", Color: "yellow"}, *b)

	assert.Nil(t, StatusBadge(s, map[string]any{"po_number": "x"}))
	assert.Nil(t, StatusBadge(&FormSchema{ID: "bare"}, map[string]any{"status": "draft"}))
}

func TestBuildCardGrid(t *testing.T) {
	s, err := loadEmbedded(t).Get("vendors")
	require.NoError(t, err)

	c, err := BuildCard(s, demoRecord(t, store.Vendors, "vnd-0001"), "")
	require.NoError(t, err)
	assert.Equal(t, ViewGrid, c.View)
	assert.Equal(t, "vnd-0001", c.ID)
	assert.Equal(t, "Acme Industrial Supplies", c.Title)
	assert.Equal(t, "Dana Whitfield", c.Subtitle)
	assert.Equal(t, "AI", c.Avatar)
	require.NotNil(t, c.Status)
	assert.Equal(t, "Active", c.Status.Label)
	assert.Equal(t, []string{"Raw materials", "Equipment"}, labels(c.Badges))
	require.NotNil(t, c.Rating)
	assert.InDelta(t, 4.5, *c.Rating, 1e-9)

	metrics := map[string]string{}
	for _, m := range c.Metrics {
		metrics[m.Role] = m.Value
	}
	assert.Equal(t, "VND-100001", metrics[RoleCode])
	assert.Equal(t, "184250.00", metrics[RoleAmount])
	assert.Equal(t, "sales@acme-industrial.example", metrics[RoleEmail])
	assert.Equal(t, "Pittsburgh", metrics[RoleLocation])
	assert.Empty(t, c.Cells)
}

func TestBuildCardList(t *testing.T) {
	s, err := loadEmbedded(t).Get("vendors")
	require.NoError(t, err)
	rec := store.Record{
		"id": "v9", "name": "Delta", "status": "inactive",
		"categories": []any{"equipment", "services", "logistics", "electronics"},
	}

	c, err := BuildCard(s, rec, "LIST")
	require.NoError(t, err)
	assert.Equal(t, ViewList, c.View)
	assert.Equal(t, "Delta", c.Title)
	assert.Equal(t, "Inactive", c.Status.Label)
	assert.Len(t, c.Badges, 2)
	assert.Equal(t, 2, c.BadgeOverflow)
	assert.Empty(t, c.Avatar)
	assert.Nil(t, c.Rating)
	assert.Empty(t, c.Metrics)

	untitled, err := BuildCard(s, store.Record{"id": "v10"}, "grid")
	require.NoError(t, err)
	assert.Equal(t, "v10", untitled.Title)
	assert.Equal(t, "V", untitled.Avatar)
}

func TestBuildCardTable(t *testing.T) {
	r := loadEmbedded(t)
	s, err := r.Get("tenders")
	require.NoError(t, err)

	c, err := BuildCard(s, demoRecord(t, store.Tenders, "tnd-0001"), "table")
	require.NoError(t, err)
	cells := map[string]string{}
	var order []string
	for _, cell := range c.Cells {
		cells[cell.Field] = cell.Value
		order = append(order, cell.Field)
	}
	assert.Equal(t, []string{"title", "tender_number", "category", "status", "estimated_value", "submission_deadline"}, order)
	assert.Equal(t, "Office supplies", cells["category"])
	assert.Equal(t, "Draft", cells["status"])
	assert.Equal(t, "2027-12-31", cells["submission_deadline"])
	assert.Empty(t, c.Title)

	_, err = BuildCard(s, store.Record{}, "kanban")
	assert.True(t, apperr.IsValidation(err))

	pos, err := r.Get("purchase-orders")
	require.NoError(t, err)
	cards, err := BuildCards(pos, []store.Record{{"id": "a"}, {"id": "b"}}, "")
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, ViewTable, cards[0].View)
}

func TestValidateRecord(t *testing.T) {
	s, err := loadEmbedded(t).Get("vendors")
	require.NoError(t, err)

	assert.Empty(t, ValidateRecord(s, demoRecord(t, store.Vendors, "vnd-0001")))

	errs := ValidateRecord(s, map[string]any{"categories": []any{}, "email": "  "})
	assert.Equal(t, map[string]string{
		"name":       "is required",
		"email":      "is required",
		"phone":      "is required",
		"categories": "is required",
	}, errs)

	errs = ValidateRecord(s, map[string]any{
		"name":       "X",
		"email":      "not-an-email",
		"phone":      "+1-555-0100",
		"categories": []any{"equipment", "weapons"},
		"status":     "active",
		"rating":     "7",
		"website":    "ftp://x",
		"code":       "VND-1",
	})
	assert.Equal(t, "must be at least 2 characters", errs["name"])
	assert.Equal(t, "has an invalid format", errs["email"])
	assert.Contains(t, errs["categories"], "must be one of: raw_materials")
	assert.Equal(t, "must be at most 5", errs["rating"])
	assert.Equal(t, "has an invalid format", errs["website"])
	assert.Equal(t, "has an invalid format", errs["code"])
	assert.NotContains(t, errs, "status")

	errs = ValidateRecord(s, map[string]any{"name": "Valid", "email": "a@b.co", "phone": "12345",
		"categories": "services", "rating": "excellent"})
	assert.Equal(t, map[string]string{"rating": "must be a number"}, errs)
}

func labels(opts []NormalizedOption) []string {
	out := make([]string, len(opts))
	for i, o := range opts {
		out[i] = o.Label
	}
	return out
}

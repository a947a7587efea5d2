package schema

import (
	"strconv"
	"strings"
	"time"

	"procurement-api/internal/apperr"
	"procurement-api/internal/store"
)

type ViewMode string

const (
	ViewGrid  ViewMode = "grid"
	ViewList  ViewMode = "list"
	ViewTable ViewMode = "table"
)

const (
	defaultMaxBadges = 3
	listMaxBadges    = 2
)

func parseView(s string) (ViewMode, error) {
	switch v := ViewMode(strings.ToLower(strings.TrimSpace(s))); v {
	case ViewGrid, ViewList, ViewTable:
		return v, nil
	}
	return "", apperr.ValidationFields(map[string]string{"view": "must be one of grid, list, table"})
}

// Metric is a labelled value shown on grid cards.
type Metric struct {
	Field string `json:"field"`
	Label string `json:"label"`
	Role  string `json:"role"`
	Value string `json:"value"`
}

// Cell is one table column of a record.
type Cell struct {
	Field string `json:"field"`
	Label string `json:"label"`
	Value string `json:"value"`
}

// Card is the rendered form of one record. Which parts are set depends on
// the view.
type Card struct {
	ID            string             `json:"id"`
	View          ViewMode           `json:"view"`
	Title         string             `json:"title,omitempty"`
	Subtitle      string             `json:"subtitle,omitempty"`
	Avatar        string             `json:"avatar,omitempty"`
	Status        *NormalizedOption  `json:"status,omitempty"`
	Badges        []NormalizedOption `json:"badges,omitempty"`
	BadgeOverflow int                `json:"badge_overflow,omitempty"`
	Rating        *float64           `json:"rating,omitempty"`
	Metrics       []Metric           `json:"metrics,omitempty"`
	Cells         []Cell             `json:"cells,omitempty"`
}

// metricRoles are rendered as grid metrics, in this order.
var metricRoles = []string{RoleCode, RoleAmount, RoleDate, RoleEmail, RolePhone, RoleLocation}

// BuildCard renders rec for the given view. An empty view falls back to the
// schema's default view.
func BuildCard(s *FormSchema, rec map[string]any, view string) (*Card, error) {
	if view == "" {
		view = s.Card.DefaultView
	}
	mode, err := parseView(view)
	if err != nil {
		return nil, err
	}
	c := &Card{ID: store.Record(rec).ID(), View: mode}
	if mode == ViewTable {
		for i := range s.Fields {
			f := &s.Fields[i]
			if !f.ListVisible {
				continue
			}
			v, _ := fieldValue(rec, f)
			c.Cells = append(c.Cells, Cell{Field: f.Name, Label: f.Label, Value: display(f, v)})
		}
		return c, nil
	}

	c.Title = roleText(s, rec, RoleTitle)
	if c.Title == "" {
		c.Title = c.ID
	}
	c.Subtitle = roleText(s, rec, RoleSubtitle)
	c.Status = StatusBadge(s, rec)

	maxBadges := s.Card.MaxBadges
	if maxBadges <= 0 {
		maxBadges = defaultMaxBadges
	}
	if mode == ViewList && maxBadges > listMaxBadges {
		maxBadges = listMaxBadges
	}
	if f := FieldByRole(s, RoleBadge); f != nil {
		v, _ := fieldValue(rec, f)
		set := Badges(f, v, maxBadges)
		c.Badges, c.BadgeOverflow = set.Items, set.Overflow
	}
	if mode == ViewList {
		return c, nil
	}

	c.Avatar = roleText(s, rec, RoleAvatar)
	if c.Avatar == "" {
		c.Avatar = initials(c.Title)
	} else {
		c.Avatar = initials(c.Avatar)
	}
	if v, ok := ValueByRole(s, rec, RoleRating); ok {
		if n, ok := toFloat(v); ok {
			c.Rating = &n
		}
	}
	for _, role := range metricRoles {
		for _, f := range FieldsByRole(s, role) {
			v, ok := fieldValue(rec, &f)
			if !ok {
				continue
			}
			if text := display(&f, v); text != "" {
				c.Metrics = append(c.Metrics, Metric{Field: f.Name, Label: f.Label, Role: role, Value: text})
			}
		}
	}
	return c, nil
}

// BuildCards renders every record with BuildCard.
func BuildCards(s *FormSchema, recs []store.Record, view string) ([]*Card, error) {
	out := make([]*Card, 0, len(recs))
	for _, rec := range recs {
		c, err := BuildCard(s, rec, view)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func roleText(s *FormSchema, rec map[string]any, role string) string {
	f := FieldByRole(s, role)
	if f == nil {
		return ""
	}
	v, _ := fieldValue(rec, f)
	return display(f, v)
}

// display renders a value as text. Fields with declared options or
// multiple values show their labels.
func display(f *Field, v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		if f.Component == "date" {
			if ts, err := time.Parse(time.RFC3339, t); err == nil {
				return ts.Format("2006-01-02")
			}
		}
		if len(f.Options) == 0 {
			return strings.TrimSpace(t)
		}
	}
	if n, ok := formatNumber(v); ok && len(f.Options) == 0 {
		return n
	}
	opts := EnrichOptions(f, NormalizeOptions(v))
	labels := make([]string, len(opts))
	for i, o := range opts {
		labels[i] = o.Label
	}
	return strings.Join(labels, ", ")
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return n, err == nil
	}
	if s, ok := formatNumber(v); ok {
		n, err := strconv.ParseFloat(s, 64)
		return n, err == nil
	}
	return 0, false
}

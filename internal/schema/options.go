package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// NormalizedOption is the canonical shape of a selectable value.
type NormalizedOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Icon  string `json:"icon,omitempty"`
	Color string `json:"color,omitempty"`
}

// NormalizeOptions coerces a raw option value into a list of options.
// Strings, numbers and bools become one option each; objects read their id
// from id, value or key and their label from label, name or title; arrays
// are flattened. Empty values are dropped and repeated ids keep the first
// occurrence.
func NormalizeOptions(value any) []NormalizedOption {
	var out []NormalizedOption
	seen := map[string]bool{}
	var walk func(v any)
	walk = func(v any) {
		switch t := v.(type) {
		case nil:
		case []any:
			for _, e := range t {
				walk(e)
			}
		case []string:
			for _, e := range t {
				walk(e)
			}
		case []map[string]any:
			for _, e := range t {
				walk(e)
			}
		default:
			if rv := reflect.ValueOf(v); rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
				for i := 0; i < rv.Len(); i++ {
					walk(rv.Index(i).Interface())
				}
				return
			}
			opt, ok := normalizeOne(v)
			if !ok || seen[opt.ID] {
				return
			}
			seen[opt.ID] = true
			out = append(out, opt)
		}
	}
	walk(value)
	return out
}

func normalizeOne(v any) (NormalizedOption, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		return NormalizedOption{ID: s, Label: s}, s != ""
	case bool:
		if t {
			return NormalizedOption{ID: "true", Label: "Yes"}, true
		}
		return NormalizedOption{ID: "false", Label: "No"}, true
	case Option:
		return normalizeObject(map[string]any{"id": t.ID, "label": t.Label, "icon": t.Icon, "color": t.Color})
	case NormalizedOption:
		return normalizeObject(map[string]any{"id": t.ID, "label": t.Label, "icon": t.Icon, "color": t.Color})
	case map[string]any:
		return normalizeObject(t)
	}
	if s, ok := formatNumber(v); ok {
		return NormalizedOption{ID: s, Label: s}, true
	}
	if m, ok := asObject(v); ok {
		return normalizeObject(m)
	}
	s := strings.TrimSpace(fmt.Sprint(v))
	return NormalizedOption{ID: s, Label: s}, s != ""
}

func normalizeObject(m map[string]any) (NormalizedOption, bool) {
	opt := NormalizedOption{
		ID:    firstString(m, "id", "value", "key"),
		Label: firstString(m, "label", "name", "title"),
		Icon:  firstString(m, "icon"),
		Color: firstString(m, "color"),
	}
	switch {
	case opt.ID == "" && opt.Label == "":
		return opt, false
	case opt.ID == "":
		opt.ID = opt.Label
	case opt.Label == "":
		opt.Label = opt.ID
	}
	return opt, true
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case bool:
			s = strconv.FormatBool(t)
		default:
			if n, ok := formatNumber(v); ok {
				s = n
			} else {
				continue
			}
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

func formatNumber(v any) (string, bool) {
	switch t := v.(type) {
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	case json.Number:
		return t.String(), true
	}
	return "", false
}

// asObject accepts named map types such as store.Record.
func asObject(v any) (map[string]any, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	m := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		m[iter.Key().String()] = iter.Value().Interface()
	}
	return m, true
}

// EnrichOptions fills missing labels, icons and colors from the options
// declared on field. Matching is by id, case-insensitively.
func EnrichOptions(f *Field, opts []NormalizedOption) []NormalizedOption {
	if f == nil || len(f.Options) == 0 {
		return opts
	}
	out := make([]NormalizedOption, len(opts))
	for i, o := range opts {
		if decl := f.option(o.ID); decl != nil {
			if o.Label == "" || o.Label == o.ID {
				o.Label = decl.Label
			}
			if o.Icon == "" {
				o.Icon = decl.Icon
			}
			if o.Color == "" {
				o.Color = decl.Color
			}
		}
		out[i] = o
	}
	return out
}

func (f *Field) option(id string) *Option {
	for i := range f.Options {
		if strings.EqualFold(f.Options[i].ID, id) {
			return &f.Options[i]
		}
	}
	return nil
}

// BadgeSet is the visible part of a multi-valued field plus how many
// values were left out.
type BadgeSet struct {
	Items    []NormalizedOption `json:"items"`
	Overflow int                `json:"overflow"`
}

// Badges normalizes value, enriches it from f and keeps at most max
// badges. max <= 0 keeps all.
func Badges(f *Field, value any, max int) BadgeSet {
	opts := EnrichOptions(f, NormalizeOptions(value))
	if max <= 0 || len(opts) <= max {
		if opts == nil {
			opts = []NormalizedOption{}
		}
		return BadgeSet{Items: opts}
	}
	return BadgeSet{Items: opts[:max], Overflow: len(opts) - max}
}

// StatusBadge returns the record's status as an option enriched from the
// status field, or nil when the schema or record has no status.
func StatusBadge(s *FormSchema, rec map[string]any) *NormalizedOption {
	f := FieldByRole(s, RoleStatus)
	if f == nil {
		return nil
	}
	v, ok := fieldValue(rec, f)
	if !ok {
		return nil
	}
	opts := EnrichOptions(f, NormalizeOptions(v))
	if len(opts) == 0 {
		return nil
	}
	return &opts[0]
}

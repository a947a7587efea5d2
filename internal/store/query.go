package store

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Apply filters, searches, sorts and paginates records in memory. It returns
// the page and the number of matches before pagination.
func Apply(records []Record, q Query) ([]Record, int) {
	matched := make([]Record, 0, len(records))
	search := strings.ToLower(strings.TrimSpace(q.Search))
	for _, rec := range records {
		if !matchFilters(rec, q.Filters) {
			continue
		}
		if search != "" && !matchSearch(rec, search, q.SearchFields) {
			continue
		}
		matched = append(matched, rec)
	}

	sortRecords(matched, q.Sort)

	total := len(matched)
	start := q.Offset
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}
	end := total
	if q.Limit > 0 && start+q.Limit < end {
		end = start + q.Limit
	}
	return matched[start:end], total
}

func matchFilters(rec Record, filters map[string]string) bool {
	for field, want := range filters {
		v, ok := Lookup(rec, field)
		if !ok {
			return false
		}
		if !valueMatches(v, want) {
			return false
		}
	}
	return true
}

func valueMatches(v any, want string) bool {
	if arr, ok := v.([]any); ok {
		for _, el := range arr {
			if valueMatches(el, want) {
				return true
			}
		}
		return false
	}
	return strings.EqualFold(stringify(v), want)
}

func matchSearch(rec Record, search string, fields []string) bool {
	if len(fields) == 0 {
		fields = []string{"name", "title"}
	}
	for _, f := range fields {
		v, ok := Lookup(rec, f)
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(stringify(v)), search) {
			return true
		}
	}
	return false
}

// SortKey is one parsed element of a sort expression.
type SortKey struct {
	Field string
	Desc  bool
}

// ParseSort splits "name,-created_at" into sort keys.
func ParseSort(expr string) []SortKey {
	var keys []SortKey
	for _, raw := range strings.Split(expr, ",") {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		desc := strings.HasPrefix(s, "-")
		s = strings.TrimPrefix(s, "-")
		if s == "" {
			continue
		}
		keys = append(keys, SortKey{Field: s, Desc: desc})
	}
	return keys
}

func sortRecords(records []Record, expr string) {
	keys := ParseSort(expr)
	if len(keys) == 0 {
		keys = []SortKey{{Field: "created_at"}, {Field: "id"}}
	}
	sort.SliceStable(records, func(i, j int) bool {
		for _, k := range keys {
			a, _ := Lookup(records[i], k.Field)
			b, _ := Lookup(records[j], k.Field)
			c := compareValues(a, b)
			if c == 0 {
				continue
			}
			if k.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// compareValues orders numbers numerically (including numeric strings such
// as encoded decimals) and everything else as case-insensitive text. Missing
// values sort first.
func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	da, errA := decimal.NewFromString(stringify(a))
	db, errB := decimal.NewFromString(stringify(b))
	if errA == nil && errB == nil {
		return da.Cmp(db)
	}
	return strings.Compare(strings.ToLower(stringify(a)), strings.ToLower(stringify(b)))
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return decimal.NewFromFloat(t).String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(t)
	}
}

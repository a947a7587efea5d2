package schema

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ValidateRecord checks rec against the schema's required flags, option
// lists and validation rules. The result maps field names to messages and
// is empty when the record is valid.
func ValidateRecord(s *FormSchema, rec map[string]any) map[string]string {
	errs := map[string]string{}
	for i := range s.Fields {
		f := &s.Fields[i]
		v, ok := fieldValue(rec, f)
		if !ok || isEmpty(v) {
			if f.Required {
				errs[f.Name] = "is required"
			}
			continue
		}
		if msg := checkField(f, v); msg != "" {
			errs[f.Name] = msg
		}
	}
	return errs
}

func checkField(f *Field, v any) string {
	if len(f.Options) > 0 {
		for _, o := range NormalizeOptions(v) {
			if f.option(o.ID) == nil {
				return "must be one of: " + strings.Join(f.optionIDs(), ", ")
			}
		}
	}
	r := f.Validation
	if r == nil {
		return ""
	}
	if s, isString := v.(string); isString {
		n := utf8.RuneCountInString(strings.TrimSpace(s))
		if r.MinLength != nil && n < *r.MinLength {
			return fmt.Sprintf("must be at least %d characters", *r.MinLength)
		}
		if r.MaxLength != nil && n > *r.MaxLength {
			return fmt.Sprintf("must be at most %d characters", *r.MaxLength)
		}
		if f.pattern != nil && !f.pattern.MatchString(s) {
			return "has an invalid format"
		}
	}
	if r.Min != nil || r.Max != nil {
		n, ok := toFloat(v)
		if !ok {
			return "must be a number"
		}
		if r.Min != nil && n < *r.Min {
			return "must be at least " + strconv.FormatFloat(*r.Min, 'f', -1, 64)
		}
		if r.Max != nil && n > *r.Max {
			return "must be at most " + strconv.FormatFloat(*r.Max, 'f', -1, 64)
		}
	}
	return ""
}

func (f *Field) optionIDs() []string {
	ids := make([]string, len(f.Options))
	for i, o := range f.Options {
		ids[i] = o.ID
	}
	return ids
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	}
	return false
}

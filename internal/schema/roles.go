package schema

import (
	"strings"

	"procurement-api/internal/store"
)

// FieldByRole returns the first field declaring role, or nil.
func FieldByRole(s *FormSchema, role string) *Field {
	if s == nil {
		return nil
	}
	for i := range s.Fields {
		if s.Fields[i].Role == role {
			return &s.Fields[i]
		}
	}
	return nil
}

// FieldsByRole returns every field declaring role, in schema order.
func FieldsByRole(s *FormSchema, role string) []Field {
	if s == nil {
		return nil
	}
	var out []Field
	for _, f := range s.Fields {
		if f.Role == role {
			out = append(out, f)
		}
	}
	return out
}

// ValueByRole returns the record value of the first field with role.
// ok is false when no field has the role or the record lacks the value.
func ValueByRole(s *FormSchema, rec map[string]any, role string) (any, bool) {
	f := FieldByRole(s, role)
	if f == nil {
		return nil, false
	}
	return fieldValue(rec, f)
}

func fieldValue(rec map[string]any, f *Field) (any, bool) {
	if rec == nil {
		return nil, false
	}
	v, ok := store.Lookup(rec, f.Name)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// initials returns up to two upper-case initials of title.
func initials(title string) string {
	var out []rune
	for _, w := range strings.Fields(title) {
		out = append(out, []rune(w)[0])
		if len(out) == 2 {
			break
		}
	}
	return strings.ToUpper(string(out))
}

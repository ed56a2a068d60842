package normalize

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Alias maps one canonical field to the source keys that may carry it,
// in priority order.
type Alias struct {
	Field string
	Keys  []string
}

// AliasTable is an ordered list of canonical fields and their aliases.
type AliasTable []Alias

// Fields holds the canonical fields that were found. A field that is
// missing from the map was absent (or empty) under every alias.
type Fields map[string]string

// Get returns the value of a canonical field and whether it was present.
func (f Fields) Get(field string) (string, bool) {
	v, ok := f[field]
	return v, ok
}

// Value returns the field value or "" when absent.
func (f Fields) Value(field string) string {
	return f[field]
}

// Resolve picks, for every canonical field, the first alias whose value is
// non-empty. Aliases are never merged.
func Resolve(raw map[string]any, table AliasTable) Fields {
	out := make(Fields, len(table))
	if raw == nil {
		return out
	}
	for _, a := range table {
		for _, k := range a.Keys {
			if s, ok := String(raw[k]); ok {
				out[a.Field] = s
				break
			}
		}
	}
	return out
}

// First returns the first non-empty value among keys.
func First(raw map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if s, ok := String(raw[k]); ok {
			return s, true
		}
	}
	return "", false
}

// String converts a decoded JSON scalar to a trimmed string. It reports
// false for nil, empty strings and non-scalar values.
func String(v any) (string, bool) {
	var s string
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		s = t
	case json.Number:
		s = t.String()
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		s = strconv.Itoa(t)
	case int64:
		s = strconv.FormatInt(t, 10)
	case bool:
		s = strconv.FormatBool(t)
	default:
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	return s, true
}

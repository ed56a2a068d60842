package normalize

import (
	"strings"
	"time"
)

const isoLayout = "2006-01-02"

// ParseCompactDate converts an 8-digit YYYYMMDD string (surrounding
// whitespace allowed) to YYYY-MM-DD. Any other shape, or digits that do not
// name a calendar day, yields false.
func ParseCompactDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) != 8 || !allDigits(s) {
		return "", false
	}
	t, err := time.Parse("20060102", s)
	if err != nil {
		return "", false
	}
	return t.Format(isoLayout), true
}

// ParseDottedDate converts the list endpoint's YYYY.MM.DD form to ISO.
func ParseDottedDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	t, err := time.Parse("2006.01.02", s)
	if err != nil {
		return "", false
	}
	return t.Format(isoLayout), true
}

// ParseDate accepts the compact, dotted or ISO forms the API emits.
func ParseDate(s string) (string, bool) {
	if iso, ok := ParseCompactDate(s); ok {
		return iso, true
	}
	if iso, ok := ParseDottedDate(s); ok {
		return iso, true
	}
	if IsISO(s) {
		return strings.TrimSpace(s), true
	}
	return "", false
}

// IsISO reports whether s is a well-formed YYYY-MM-DD calendar date.
func IsISO(s string) bool {
	_, err := time.Parse(isoLayout, strings.TrimSpace(s))
	return err == nil
}

// CompareISO compares two well-formed ISO dates lexicographically and
// returns -1, 0 or 1. Callers must validate their inputs first.
func CompareISO(a, b string) int {
	return strings.Compare(a, b)
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

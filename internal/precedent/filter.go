package precedent

import (
	"fmt"
	"regexp"
	"strings"

	"safeon/internal/normalize"
)

// FilterMode selects which records are kept for vector indexing.
type FilterMode string

const (
	// FilterCaseName keeps records whose case name names the Serious
	// Accidents Punishment Act, decided on or after the cutoff.
	FilterCaseName FilterMode = "case-name"
	// FilterText keeps records whose text cites the act, decided on or
	// after the cutoff.
	FilterText FilterMode = "text"
	// FilterTextOnly keeps every record with non-empty text.
	FilterTextOnly FilterMode = "text-only"
)

// DefaultCutoff is the date the act took effect.
const DefaultCutoff = "2022-01-27"

var caseNamePattern = regexp.MustCompile(`(?i)중대\s*재해\s*처벌`)

// Filter decides whether a record belongs in the vector corpus.
type Filter struct {
	Mode   FilterMode
	Cutoff string
}

// NewFilter validates the mode and cutoff. An empty mode means case-name,
// an empty cutoff means DefaultCutoff.
func NewFilter(mode FilterMode, cutoff string) (Filter, error) {
	if mode == "" {
		mode = FilterCaseName
	}
	switch mode {
	case FilterCaseName, FilterText, FilterTextOnly:
	default:
		return Filter{}, fmt.Errorf("unknown filter mode %q", mode)
	}
	if cutoff == "" {
		cutoff = DefaultCutoff
	}
	iso, ok := normalize.ParseDate(cutoff)
	if !ok {
		return Filter{}, fmt.Errorf("invalid cutoff date %q", cutoff)
	}
	return Filter{Mode: mode, Cutoff: iso}, nil
}

// Keep reports whether p passes the filter.
func (f Filter) Keep(p Precedent) bool {
	if strings.TrimSpace(p.Text) == "" {
		return false
	}
	switch f.Mode {
	case FilterTextOnly:
		return true
	case FilterText:
		if !strings.Contains(p.Text, "중대재해처벌") {
			return false
		}
	default:
		if !caseNamePattern.MatchString(p.CaseName) {
			return false
		}
	}
	return f.onOrAfterCutoff(p)
}

// onOrAfterCutoff prefers the ISO field and falls back to a compact raw
// date. Records with neither are rejected.
func (f Filter) onOrAfterCutoff(p Precedent) bool {
	iso := strings.TrimSpace(p.DecisionDateISO)
	if !normalize.IsISO(iso) {
		var ok bool
		if iso, ok = normalize.ParseCompactDate(p.DecisionDate); !ok {
			return false
		}
	}
	return normalize.CompareISO(iso, f.Cutoff) >= 0
}

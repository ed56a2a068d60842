package precedent

import (
	"safeon/internal/normalize"
	"safeon/internal/openlaw"
)

var idKeys = []string{"판례일련번호", "ID", "판례ID"}

// ItemID extracts the source identifier of a list item.
func ItemID(item openlaw.Item) (string, bool) {
	return normalize.First(item, idKeys...)
}

var hitAliases = normalize.AliasTable{
	{Field: "prec_id", Keys: []string{"판례일련번호", "ID"}},
	{Field: "case_no", Keys: []string{"사건번호"}},
	{Field: "case_name", Keys: []string{"사건명", "사건명한글"}},
	{Field: "court", Keys: []string{"선고법원", "법원명"}},
	{Field: "decision_date", Keys: []string{"선고일", "선고일자"}},
	{Field: "summary", Keys: []string{"판결요지", "판시사항"}},
	{Field: "ref_articles", Keys: []string{"참조조문"}},
}

var hitDetailAliases = normalize.AliasTable{
	{Field: "court", Keys: []string{"법원명", "선고법원"}},
	{Field: "decision_date", Keys: []string{"선고일", "선고일자"}},
	{Field: "case_no", Keys: []string{"사건번호"}},
	{Field: "case_name", Keys: []string{"사건명"}},
	{Field: "summary", Keys: []string{"판시사항", "판결요지", "참조판례"}},
	{Field: "ref_articles", Keys: []string{"참조조문"}},
}

// HitFromItem normalizes a search-list item. Items without an identifier
// are rejected.
func HitFromItem(item openlaw.Item) (Hit, bool) {
	f := normalize.Resolve(item, hitAliases)
	id, ok := f.Get("prec_id")
	if !ok {
		return Hit{}, false
	}
	return Hit{
		PrecID:       id,
		CaseNo:       f.Value("case_no"),
		CaseName:     f.Value("case_name"),
		Court:        f.Value("court"),
		DecisionDate: f.Value("decision_date"),
		Summary:      f.Value("summary"),
		RefArticles:  f.Value("ref_articles"),
	}, true
}

// WithDetail returns a copy of h where every field present in the detail
// payload replaces the list value. Markup in the summary is stripped.
func (h Hit) WithDetail(detail openlaw.Item) Hit {
	f := normalize.Resolve(detail, hitDetailAliases)
	set := func(dst *string, field string, clean bool) {
		if v, ok := f.Get(field); ok {
			if clean {
				v = normalize.CleanText(v)
			}
			if v != "" {
				*dst = v
			}
		}
	}
	set(&h.Court, "court", false)
	set(&h.DecisionDate, "decision_date", false)
	set(&h.CaseNo, "case_no", false)
	set(&h.CaseName, "case_name", false)
	set(&h.Summary, "summary", true)
	set(&h.RefArticles, "ref_articles", true)
	return h
}

// UniqueHits drops hits whose identifier was already seen, keeping the
// first occurrence.
func UniqueHits(hits []Hit) []Hit {
	seen := NewIDSet()
	out := make([]Hit, 0, len(hits))
	for _, h := range hits {
		if h.PrecID == "" || !seen.Add(h.PrecID) {
			continue
		}
		out = append(out, h)
	}
	return out
}

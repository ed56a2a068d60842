package incident

import "strings"

// BaseStatute is the statute every query is anchored on.
const BaseStatute = "중대재해 처벌 등에 관한 법률"

// maxExtraQueries bounds how many free-text tokens become queries.
const maxExtraQueries = 5

var (
	contractingQueryTerms = []string{"도급", "수급", "안전보건 확보의무", "제4조", "제5조"}
	industryQueryTerms    = map[string][]string{
		Construction:  {"건설", "추락", "발판", "가설구조물"},
		Manufacturing: {"제조", "프레스", "전단기", "보호덮개"},
		Logistics:     {"물류", "창고", "상하차", "지게차"},
		Transport:     {"운수", "철도", "지하철", "항공", "선박"},
	}
)

// Plan is the resolved query plan for one incident and question.
type Plan struct {
	OccurredAt   string   `json:"occurred_at,omitempty"`
	UserQuery    string   `json:"user_query"`
	Queries      []string `json:"queries"`
	ResolvedMeta Facets   `json:"resolved_meta"`
}

// BuildQueries resolves facets from the incident and the question and
// expands them into an ordered, duplicate-free query list: the statute,
// its two section variants, one query per facet keyword (contracting,
// then industry, then hazards), up to five question tokens, and finally
// the whole question.
func BuildQueries(in Incident, freeText string) Plan {
	freeText = strings.TrimSpace(freeText)
	facets := Resolve(in, ParseFreeText(freeText))

	queries := newOrderedSet()
	queries.add(BaseStatute)
	queries.add(BaseStatute + " 제4조")
	queries.add(BaseStatute + " 제5조")

	for _, k := range facetTerms(facets) {
		queries.add(BaseStatute + " " + k)
	}
	for _, k := range facets.ExtraKeywords[:min(maxExtraQueries, len(facets.ExtraKeywords))] {
		queries.add(BaseStatute + " " + k)
	}
	if freeText != "" {
		queries.add(BaseStatute + " " + freeText)
	}

	return Plan{
		OccurredAt:   in.OccurredAt,
		UserQuery:    freeText,
		Queries:      queries.items,
		ResolvedMeta: facets,
	}
}

func facetTerms(f Facets) []string {
	var terms []string
	if f.Contracting {
		terms = append(terms, contractingQueryTerms...)
	}
	terms = append(terms, industryQueryTerms[f.Industry]...)
	for _, h := range f.Hazards {
		if k, ok := hazardDisplay[h]; ok {
			terms = append(terms, k)
		}
	}
	return terms
}

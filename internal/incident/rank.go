package incident

import (
	"sort"
	"strings"

	"safeon/internal/normalize"
	"safeon/internal/precedent"
)

var (
	contractingRankTerms = []string{"도급", "수급", "안전보건"}
	industryRankTerms    = map[string][]string{
		Construction:  {"건설", "추락", "가설", "발판"},
		Manufacturing: {"제조", "프레스", "전단", "보호덮개"},
		Logistics:     {"물류", "창고", "지게차"},
		Transport:     {"운수", "철도", "선박"},
	}
)

// RankKeywords returns the terms a hit is scored against: the whole
// question, the contracting and industry terms, and one keyword per hazard.
func RankKeywords(freeText string, f Facets) []string {
	var kw []string
	if q := strings.TrimSpace(freeText); q != "" {
		kw = append(kw, q)
	}
	if f.Contracting {
		kw = append(kw, contractingRankTerms...)
	}
	kw = append(kw, industryRankTerms[f.Industry]...)
	for _, h := range f.Hazards {
		if k, ok := hazardDisplay[h]; ok {
			kw = append(kw, k)
		} else {
			kw = append(kw, h)
		}
	}
	return kw
}

// Score counts the keywords found in the hit's summary, referenced
// articles and case name.
func Score(h precedent.Hit, keywords []string) int {
	text := h.Summary + " " + h.RefArticles + " " + h.CaseName
	n := 0
	for _, k := range keywords {
		if k != "" && strings.Contains(text, k) {
			n++
		}
	}
	return n
}

// datePriority is 0 when the decision is known to predate the incident or
// when no incident date is given, and -1 otherwise.
func datePriority(h precedent.Hit, occurredISO string, haveOccurred bool) int {
	if !haveOccurred {
		return 0
	}
	d, ok := normalize.ParseDate(h.DecisionDate)
	if ok && normalize.CompareISO(d, occurredISO) <= 0 {
		return 0
	}
	return -1
}

// Rank orders hits by keyword score plus date priority, highest first.
// Equal scores keep their input order. The input slice is not modified.
func Rank(hits []precedent.Hit, freeText string, f Facets, occurredAt string) []precedent.Hit {
	keywords := RankKeywords(freeText, f)
	occurred, haveOccurred := normalize.ParseDate(occurredAt)

	scores := make([]int, len(hits))
	order := make([]int, len(hits))
	for i, h := range hits {
		scores[i] = Score(h, keywords) + datePriority(h, occurred, haveOccurred)
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	out := make([]precedent.Hit, len(hits))
	for i, idx := range order {
		out[i] = hits[idx]
	}
	return out
}

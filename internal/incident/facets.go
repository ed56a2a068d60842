// Package incident turns a workplace-incident description into search
// queries and ranks the precedents they return.
package incident

import (
	"regexp"
	"strings"
)

// Industry categories, checked in this order.
const (
	Construction  = "construction"
	Manufacturing = "manufacturing"
	Logistics     = "logistics"
	Transport     = "transport"
)

// Incident is the structured description supplied by the caller.
type Incident struct {
	ID          string   `json:"incident_id,omitempty" yaml:"incident_id,omitempty"`
	OccurredAt  string   `json:"occurred_at,omitempty" yaml:"occurred_at,omitempty"`
	Industry    string   `json:"industry,omitempty" yaml:"industry,omitempty"`
	Headcount   int      `json:"headcount,omitempty" yaml:"headcount,omitempty"`
	Contracting bool     `json:"contracting,omitempty" yaml:"contracting,omitempty"`
	Hazards     []string `json:"hazards,omitempty" yaml:"hazards,omitempty"`
}

// Facets are the normalized attributes that steer query construction and
// ranking. Hazards and ExtraKeywords are ordered and duplicate-free.
type Facets struct {
	Industry      string   `json:"industry,omitempty"`
	Contracting   bool     `json:"contracting"`
	Education     bool     `json:"education"`
	Hazards       []string `json:"hazards"`
	ExtraKeywords []string `json:"extra_keywords"`
}

type keywordGroup struct {
	name     string
	keywords []string
}

var industryKeywords = []keywordGroup{
	{Construction, []string{"건설", "현장", "타워크레인", "비계", "거푸집"}},
	{Manufacturing, []string{"제조", "공장", "프레스", "사출", "조립"}},
	{Logistics, []string{"물류", "창고", "상하차", "지게차", "포크리프트"}},
	{Transport, []string{"운수", "버스", "철도", "지하철", "항공", "선박"}},
}

var (
	contractingKeywords = []string{"도급", "수급", "하청", "원청", "용역", "파견", "외주"}
	contractingExtras   = []string{"도급", "수급", "하청", "원청"}

	educationKeywords = []string{"tbm", "툴박스미팅", "교육", "안전보건교육", "정기교육", "특별교육", "점검", "위험성평가", "관리체계"}
	educationExtras   = []string{"TBM", "툴박스미팅", "교육", "안전보건교육", "관리체계", "점검", "위험성평가"}
)

// hazardKeywords is checked as set membership: every matching tag is kept.
var hazardKeywords = []keywordGroup{
	{"fall", []string{"추락", "墜落"}},
	{"caught-in", []string{"끼임", "협착", "감김"}},
	{"amputation", []string{"절단", "베임", "절상", "손가락잘림", "절단사고"}},
	{"electric", []string{"감전", "전기쇼크", "누전"}},
	{"chemical", []string{"중독", "화학물질", "유해화학", "가스누출", "질식", "유증기"}},
	{"fire", []string{"화재", "폭발", "폭굉", "발화"}},
	{"struck-by", []string{"낙하", "비래", "충돌", "낙석"}},
	{"collapse", []string{"붕괴", "전도", "좌굴", "함몰"}},
	{"noise-dust", []string{"소음", "분진", "진동"}},
}

// hazardDisplay is the one Korean keyword used for each hazard tag in
// queries and ranking.
var hazardDisplay = map[string]string{
	"fall":       "추락",
	"caught-in":  "끼임",
	"amputation": "절단",
	"electric":   "감전",
	"chemical":   "중독",
	"fire":       "화재",
	"struck-by":  "낙하",
	"collapse":   "붕괴",
	"noise-dust": "분진",
}

// HazardTags lists the known hazard tags in dictionary order.
func HazardTags() []string {
	tags := make([]string, len(hazardKeywords))
	for i, g := range hazardKeywords {
		tags[i] = g.name
	}
	return tags
}

var tokenPattern = regexp.MustCompile(`[가-힣A-Za-z0-9]{2,}`)

// ParseFreeText scans a question against the keyword dictionaries.
func ParseFreeText(text string) Facets {
	low := strings.ToLower(text)
	var f Facets
	extras := newOrderedSet()
	hazards := newOrderedSet()

	for _, g := range industryKeywords {
		if containsAny(text, g.keywords) {
			f.Industry = g.name
			break
		}
	}

	if containsAny(text, contractingKeywords) {
		f.Contracting = true
		for _, k := range contractingExtras {
			if strings.Contains(text, k) {
				extras.add(k)
			}
		}
	}

	if containsAny(low, educationKeywords) {
		f.Education = true
		for _, k := range educationExtras {
			if strings.Contains(low, strings.ToLower(k)) {
				extras.add(k)
			}
		}
	}

	for _, g := range hazardKeywords {
		if containsAny(text, g.keywords) {
			hazards.add(g.name)
			for _, k := range g.keywords[:min(2, len(g.keywords))] {
				extras.add(k)
			}
		}
	}

	for _, tok := range tokenPattern.FindAllString(text, -1) {
		extras.add(tok)
	}

	f.Hazards = hazards.items
	f.ExtraKeywords = extras.items
	return f
}

// Resolve merges structured incident fields with facets parsed from the
// question. Structured values take precedence for industry; contracting is
// true when either source says so; hazards are the ordered union.
func Resolve(in Incident, parsed Facets) Facets {
	out := parsed
	if in.Industry != "" {
		out.Industry = in.Industry
	}
	out.Contracting = in.Contracting || parsed.Contracting
	hz := newOrderedSet()
	for _, h := range in.Hazards {
		hz.add(h)
	}
	for _, h := range parsed.Hazards {
		hz.add(h)
	}
	out.Hazards = hz.items
	out.ExtraKeywords = append([]string{}, parsed.ExtraKeywords...)
	return out
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{}), items: []string{}}
}

func (s *orderedSet) add(v string) bool {
	if v == "" {
		return false
	}
	if _, ok := s.seen[v]; ok {
		return false
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
	return true
}

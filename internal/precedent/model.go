// Package precedent retrieves court decisions from the open law API and
// normalizes them into corpus records.
package precedent

import (
	"context"

	"safeon/internal/openlaw"
)

// Source is the provenance tag stamped on every record.
const Source = "open.law.go.kr"

// RecordID returns the corpus identifier for a source identifier.
func RecordID(precID string) string {
	return "prec:" + precID
}

// Precedent is one corpus record. Optional fields are empty when the
// source did not carry them and are omitted when serialized.
type Precedent struct {
	ID              string `json:"id"`
	PrecID          string `json:"prec_id"`
	CaseNo          string `json:"case_no,omitempty"`
	CaseName        string `json:"case_name,omitempty"`
	Court           string `json:"court,omitempty"`
	DecisionDate    string `json:"decision_date,omitempty"`
	DecisionDateISO string `json:"decision_date_iso,omitempty"`
	Text            string `json:"text"`
	Source          string `json:"source"`
}

// Hit is a search-list entry used for ranking. Detail enrichment fills in
// fields the list endpoint left out.
type Hit struct {
	PrecID       string `json:"prec_id"`
	CaseNo       string `json:"case_no,omitempty"`
	CaseName     string `json:"case_name,omitempty"`
	Court        string `json:"court,omitempty"`
	DecisionDate string `json:"decision_date,omitempty"`
	Summary      string `json:"summary,omitempty"`
	RefArticles  string `json:"ref_articles,omitempty"`
}

// Transport is the subset of the open law client the package needs.
type Transport interface {
	Search(ctx context.Context, req openlaw.SearchRequest) ([]openlaw.Item, error)
	Detail(ctx context.Context, target, id string) (openlaw.Item, error)
}

// Throttle paces outbound requests. *rate.Limiter satisfies it; share one
// value between every component that talks to the same upstream.
type Throttle interface {
	Wait(ctx context.Context) error
}

// Wait blocks on t, or only checks ctx when t is nil.
func Wait(ctx context.Context, t Throttle) error {
	if t == nil {
		return ctx.Err()
	}
	return t.Wait(ctx)
}

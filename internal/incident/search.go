package incident

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"safeon/internal/openlaw"
	"safeon/internal/precedent"
)

// QueryStats reports the outcome of one query of the plan.
type QueryStats struct {
	Query string
	Got   int
	Err   error
}

// Searcher runs a query plan against the list endpoint, ranks the union
// and enriches the top hits with detail fields.
type Searcher struct {
	Transport precedent.Transport
	Throttle  precedent.Throttle
	Display   int
	Pages     int
	TopN      int
	Now       func() time.Time
	OnQuery   func(QueryStats)
	// OnDetailError is called when enriching a hit fails; the list hit is
	// kept as-is.
	OnDetailError func(precID string, err error)
}

// Queries groups the executed query lists by target.
type Queries struct {
	Prec []string `json:"prec"`
}

// Result is the persisted outcome of one incident search.
type Result struct {
	IncidentID   string          `json:"incident_id"`
	OccurredAt   string          `json:"occurred_at,omitempty"`
	UserQuery    string          `json:"user_query"`
	Queries      Queries         `json:"queries"`
	ResolvedMeta Facets          `json:"resolved_meta"`
	Precedents   []precedent.Hit `json:"precedents"`
	CreatedAt    string          `json:"created_at"`
}

func (s *Searcher) defaults() (display, pages, top int, now func() time.Time) {
	display, pages, top, now = s.Display, s.Pages, s.TopN, s.Now
	if display <= 0 {
		display = 80
	}
	if pages <= 0 {
		pages = 1
	}
	if top <= 0 {
		top = 10
	}
	if now == nil {
		now = time.Now
	}
	return display, pages, top, now
}

// Run executes the full incident search. Failed queries and failed detail
// lookups are reported through the callbacks and skipped; only context
// cancellation aborts the run.
func (s *Searcher) Run(ctx context.Context, in Incident, freeText string) (Result, error) {
	display, pages, top, now := s.defaults()
	plan := BuildQueries(in, freeText)

	var hits []precedent.Hit
	for _, q := range plan.Queries {
		got, err := s.searchQuery(ctx, q, display, pages)
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		if s.OnQuery != nil {
			s.OnQuery(QueryStats{Query: q, Got: len(got), Err: err})
		}
		hits = append(hits, got...)
	}

	ranked := Rank(precedent.UniqueHits(hits), plan.UserQuery, plan.ResolvedMeta, plan.OccurredAt)
	if len(ranked) > top {
		ranked = ranked[:top]
	}
	for i, h := range ranked {
		if err := precedent.Wait(ctx, s.Throttle); err != nil {
			return Result{}, err
		}
		detail, err := s.Transport.Detail(ctx, openlaw.TargetPrecedent, h.PrecID)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			if s.OnDetailError != nil {
				s.OnDetailError(h.PrecID, err)
			}
			continue
		}
		ranked[i] = h.WithDetail(detail)
	}

	id := in.ID
	if id == "" {
		id = fmt.Sprintf("run-%d", now().Unix())
	}
	if ranked == nil {
		ranked = []precedent.Hit{}
	}
	return Result{
		IncidentID:   id,
		OccurredAt:   plan.OccurredAt,
		UserQuery:    plan.UserQuery,
		Queries:      Queries{Prec: plan.Queries},
		ResolvedMeta: plan.ResolvedMeta,
		Precedents:   ranked,
		CreatedAt:    now().UTC().Format(time.RFC3339),
	}, nil
}

func (s *Searcher) searchQuery(ctx context.Context, q string, display, pages int) ([]precedent.Hit, error) {
	var hits []precedent.Hit
	for page := 1; page <= pages; page++ {
		if err := precedent.Wait(ctx, s.Throttle); err != nil {
			return hits, err
		}
		items, err := s.Transport.Search(ctx, openlaw.SearchRequest{
			Target:  openlaw.TargetPrecedent,
			Query:   q,
			Page:    page,
			Display: display,
		})
		if err != nil {
			return hits, err
		}
		if len(items) == 0 {
			break
		}
		for _, it := range items {
			if h, ok := precedent.HitFromItem(it); ok {
				hits = append(hits, h)
			}
		}
	}
	return hits, nil
}

// Save writes incident.json and search_result.json under dir/<incident id>
// and returns the run directory.
func Save(dir string, in Incident, res Result) (string, error) {
	runDir := filepath.Join(dir, res.IncidentID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("create run dir: %w", err)
	}
	if err := writeJSON(filepath.Join(runDir, "incident.json"), in); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "search_result.json"), res); err != nil {
		return "", err
	}
	return runDir, nil
}

func writeJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

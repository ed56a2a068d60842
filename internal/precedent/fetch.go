package precedent

import (
	"context"
	"sync"

	"safeon/internal/openlaw"
)

// IDSet is a concurrency-safe set of identifiers.
type IDSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewIDSet() *IDSet {
	return &IDSet{seen: make(map[string]struct{})}
}

// Add inserts id and reports whether it was new.
func (s *IDSet) Add(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = struct{}{}
	return true
}

func (s *IDSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// Merge concatenates id lists, dropping repeats and keeping first-seen
// order.
func Merge(lists ...[]string) []string {
	seen := NewIDSet()
	var out []string
	for _, l := range lists {
		for _, id := range l {
			if seen.Add(id) {
				out = append(out, id)
			}
		}
	}
	return out
}

// PageStats describes one list request. Err is set on the page that ended
// pagination because of a transport or decode failure.
type PageStats struct {
	Query string
	Page  int
	Got   int
	New   int
	Total int
	Err   error
}

// Fetcher pages through lawSearch.do for one query at a time.
type Fetcher struct {
	Transport Transport
	Throttle  Throttle
	PageSize  int
	// BodySearch and Sort map to search=2 and sort=ddes for a full crawl.
	BodySearch bool
	Sort       string
	// MaxPages bounds pagination; zero means until the first empty page.
	MaxPages int
	OnPage   func(PageStats)
}

// FetchAllIDs requests pages 1, 2, 3... until one comes back empty and
// returns the distinct identifiers in first-seen order. A failed page ends
// pagination like an empty one; only context cancellation is returned as
// an error, together with the identifiers gathered so far.
func (f *Fetcher) FetchAllIDs(ctx context.Context, query string) ([]string, error) {
	seen := NewIDSet()
	var ids []string
	for page := 1; f.MaxPages <= 0 || page <= f.MaxPages; page++ {
		if err := Wait(ctx, f.Throttle); err != nil {
			return ids, err
		}
		items, err := f.Transport.Search(ctx, openlaw.SearchRequest{
			Target:     openlaw.TargetPrecedent,
			Query:      query,
			Page:       page,
			Display:    f.PageSize,
			BodySearch: f.BodySearch,
			Sort:       f.Sort,
		})
		if err != nil {
			if ctx.Err() != nil {
				return ids, ctx.Err()
			}
			f.report(PageStats{Query: query, Page: page, Total: len(ids), Err: err})
			break
		}
		if len(items) == 0 {
			break
		}
		added := 0
		for _, it := range items {
			id, ok := ItemID(it)
			if ok && seen.Add(id) {
				ids = append(ids, id)
				added++
			}
		}
		f.report(PageStats{Query: query, Page: page, Got: len(items), New: added, Total: len(ids)})
	}
	return ids, nil
}

// FetchQueries runs FetchAllIDs for each query in order and merges the
// results.
func (f *Fetcher) FetchQueries(ctx context.Context, queries []string) ([]string, error) {
	lists := make([][]string, 0, len(queries))
	for _, q := range queries {
		ids, err := f.FetchAllIDs(ctx, q)
		lists = append(lists, ids)
		if err != nil {
			return Merge(lists...), err
		}
	}
	return Merge(lists...), nil
}

func (f *Fetcher) report(s PageStats) {
	if f.OnPage != nil {
		f.OnPage(s)
	}
}

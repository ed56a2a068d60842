package precedent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"safeon/internal/normalize"
	"safeon/internal/openlaw"

	"golang.org/x/sync/errgroup"
)

var metaAliases = normalize.AliasTable{
	{Field: "case_no", Keys: []string{"사건번호", "CaseNo", "caseNo"}},
	{Field: "case_name", Keys: []string{"사건명", "CaseName", "caseName"}},
	{Field: "court", Keys: []string{"법원명", "CourtName", "court"}},
	{Field: "decision_date", Keys: []string{"선고일자", "선고일", "DecisionDate", "decisionDate"}},
}

// TextSections are the structured text fields concatenated into a
// record's text, in this order.
var TextSections = []string{"판시사항", "판결요지", "주문", "이유", "요지", "전문", "판례내용", "참조조문", "참조판례"}

// Failure is one identifier that could not be resolved.
type Failure struct {
	ID  string
	Err error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.ID, f.Err)
}

// Resolver turns identifiers into normalized records.
type Resolver struct {
	Transport Transport
	Throttle  Throttle
	// Workers above one resolves identifiers in parallel. The throttle is
	// shared, so the overall request rate is unchanged.
	Workers    int
	OnProgress func(done, total int)
	OnFailure  func(Failure)
}

// Normalize builds a record from a detail payload.
func Normalize(precID string, root openlaw.Item) Precedent {
	f := normalize.Resolve(root, metaAliases)
	p := Precedent{
		ID:           RecordID(precID),
		PrecID:       precID,
		CaseNo:       f.Value("case_no"),
		CaseName:     f.Value("case_name"),
		Court:        f.Value("court"),
		DecisionDate: f.Value("decision_date"),
		Source:       Source,
	}
	if iso, ok := normalize.ParseDate(p.DecisionDate); ok {
		p.DecisionDateISO = iso
	}

	var parts []string
	for _, sec := range TextSections {
		if v, ok := normalize.String(root[sec]); ok {
			parts = append(parts, "## "+sec+"\n"+v)
		}
	}
	p.Text = normalize.CleanText(strings.Join(parts, "\n\n"))
	return p
}

// FetchDetail fetches and normalizes one record. When the payload cannot
// be decoded the identifier-only record is returned along with the error.
func (r *Resolver) FetchDetail(ctx context.Context, precID string) (Precedent, error) {
	if err := Wait(ctx, r.Throttle); err != nil {
		return Precedent{}, err
	}
	root, err := r.Transport.Detail(ctx, openlaw.TargetPrecedent, precID)
	if err != nil {
		if errors.Is(err, openlaw.ErrDecode) {
			return Normalize(precID, nil), err
		}
		return Precedent{}, fmt.Errorf("fetch detail %s: %w", precID, err)
	}
	return Normalize(precID, root), nil
}

// ResolveAll resolves every identifier, calling emit for each record in
// input order; repeated identifiers are resolved once. Per-identifier
// failures are collected and never stop the batch; identifier-only records
// from decode failures are still emitted. The returned error is non-nil
// only when ctx is cancelled or emit fails, and failures gathered so far
// are returned with it.
func (r *Resolver) ResolveAll(ctx context.Context, ids []string, emit func(Precedent) error) ([]Failure, error) {
	ids = Merge(ids)
	if r.Workers > 1 {
		return r.resolveParallel(ctx, ids, emit)
	}

	var failures []Failure
	for i, id := range ids {
		p, err := r.FetchDetail(ctx, id)
		if ctx.Err() != nil {
			return failures, ctx.Err()
		}
		if err != nil {
			failures = append(failures, r.fail(id, err))
		}
		if p.ID != "" {
			if err := emit(p); err != nil {
				return failures, err
			}
		}
		r.progress(i+1, len(ids))
	}
	return failures, nil
}

type slot struct {
	rec Precedent
	err error
}

func (r *Resolver) resolveParallel(ctx context.Context, ids []string, emit func(Precedent) error) ([]Failure, error) {
	slots := make([]slot, len(ids))

	var (
		mu   sync.Mutex
		done int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.Workers)
	for i, id := range ids {
		g.Go(func() error {
			p, err := r.FetchDetail(gctx, id)
			if gctx.Err() != nil {
				return gctx.Err()
			}
			slots[i] = slot{rec: p, err: err}
			mu.Lock()
			done++
			r.progress(done, len(ids))
			mu.Unlock()
			return nil
		})
	}
	waitErr := g.Wait()

	var failures []Failure
	for i, s := range slots {
		if s.err != nil {
			failures = append(failures, r.fail(ids[i], s.err))
		}
		if waitErr != nil {
			continue
		}
		if s.rec.ID != "" {
			if err := emit(s.rec); err != nil {
				return failures, err
			}
		}
	}
	return failures, waitErr
}

func (r *Resolver) fail(id string, err error) Failure {
	f := Failure{ID: id, Err: err}
	if r.OnFailure != nil {
		r.OnFailure(f)
	}
	return f
}

func (r *Resolver) progress(done, total int) {
	if r.OnProgress != nil {
		r.OnProgress(done, total)
	}
}

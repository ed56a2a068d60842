package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"safeon/internal/chunker"
	"safeon/internal/jsonl"
	"safeon/internal/llm"
	"safeon/internal/precedent"
	"safeon/internal/store"
	"safeon/internal/walker"
)

type fakeEmbedder struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.texts = append(f.texts, texts...)
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, store.EmbeddingDim)
		v[len(f.texts)%store.EmbeddingDim] = 1
		out[i] = v
	}
	return out, nil
}

type fakeChat struct {
	mu      sync.Mutex
	prompts []string
}

func (f *fakeChat) Generate(_ context.Context, msgs []llm.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, msgs[len(msgs)-1].Content)
	return "<요약> 원청 책임 인정", nil
}

func writeDocs(t *testing.T, path string, docs ...precedent.Precedent) {
	t.Helper()
	w, err := jsonl.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, d := range docs {
		if err := w.Write(d); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

func doc(id, text string) precedent.Precedent {
	return precedent.Precedent{
		ID:              precedent.RecordID(id),
		PrecID:          id,
		CaseNo:          "2023고단" + id,
		CaseName:        "중대재해처벌법위반(산업재해치사)",
		Court:           "창원지방법원 마산지원",
		DecisionDateISO: "2023-04-06",
		Text:            text,
		Source:          precedent.Source,
	}
}

func newTestIndexer(t *testing.T, emb Embedder, chat llm.Generator, cfg Config) *Indexer {
	t.Helper()
	dir := t.TempDir()
	cfg.DBPath = filepath.Join(dir, ".safeon", "index.db")
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		t.Fatal(err)
	}
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		t.Fatal(err)
	}
	idx := NewWith(st, emb, chat, cfg)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestIndex_IncrementalAndModelChange(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{}
	var warnings []error
	idx := newTestIndexer(t, emb, nil, Config{
		Model:     "nomic-embed-text",
		Workers:   2,
		Chunk:     chunker.Options{Size: 300, Overlap: 50},
		OnWarning: func(err error) { warnings = append(warnings, err) },
	})

	docs := filepath.Join(t.TempDir(), "corpus")
	long := strings.Repeat("원청 경영책임자는 안전보건관리체계를 구축하여야 한다. ", 30)
	writeDocs(t, filepath.Join(docs, "all_docs.jsonl"), doc("1", long), doc("2", "짧은 판결문"), precedent.Precedent{PrecID: "3"})
	// Chunk files are skipped by the walker.
	writeDocs(t, filepath.Join(docs, "vector_chunks.jsonl"), precedent.Precedent{ID: "ca0c3e86", Text: "chunk"})
	// Chunk-shaped records in a corpus file carry no prec_id and are ignored.
	writeDocs(t, filepath.Join(docs, "extra.jsonl"), precedent.Precedent{ID: "ca0c3e87", Text: "chunk"})

	stats, err := idx.Index(context.Background(), docs)
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	// all_docs.jsonl and extra.jsonl; vector_chunks.jsonl is never read.
	if stats.Files != 2 || stats.DocsTotal != 2 || stats.DocsIndexed != 2 || stats.ChunksTotal < 3 {
		t.Fatalf("stats=%+v", stats)
	}
	files, errs := walker.Walk(context.Background(), docs, walker.Options{Exts: map[string]bool{"jsonl": true}})
	for fi := range files {
		if fi.RelPath == "vector_chunks.jsonl" {
			t.Errorf("walker emitted chunk file %s", fi.RelPath)
		}
	}
	if err := <-errs; err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(emb.texts[0], "사건명: ") {
		t.Fatalf("embedded text lacks case header: %q", emb.texts[0])
	}

	stats, err = idx.Index(context.Background(), docs)
	if err != nil || stats.DocsIndexed != 0 || stats.DocsSkipped != 2 {
		t.Fatalf("second run stats=%+v err=%v", stats, err)
	}

	idx.config.Model = "bge-m3"
	stats, err = idx.Index(context.Background(), docs)
	if err != nil || stats.DocsIndexed != 2 {
		t.Fatalf("model change stats=%+v err=%v", stats, err)
	}
	if m, _ := idx.Store().GetMeta("embedding_model"); m != "bge-m3" {
		t.Fatalf("meta=%q", m)
	}

	p, err := idx.Store().GetPrecedent("prec:2")
	if err != nil || p.Body != "짧은 판결문" || p.Court != "창원지방법원 마산지원" {
		t.Fatalf("stored=%+v err=%v", p, err)
	}
	if len(warnings) != 0 {
		t.Fatalf("warnings=%v", warnings)
	}
}

func TestIndex_SummariesAndOverview(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{}
	idx := newTestIndexer(t, &fakeEmbedder{}, chat, Config{Model: "m", Summaries: true})

	path := filepath.Join(t.TempDir(), "docs.jsonl")
	writeDocs(t, path, doc("10", "피고인은 추락 방지 조치를 하지 않았다."))

	if _, err := idx.Index(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	list, err := idx.Store().ListPrecedents(store.ListFilter{})
	if err != nil || len(list) != 1 || !strings.HasPrefix(list[0].Summary, "<요약>") {
		t.Fatalf("list=%+v err=%v", list, err)
	}
	if len(chat.prompts) != 2 || !strings.Contains(chat.prompts[1], "Summary: <요약>") {
		t.Fatalf("prompts=%q", chat.prompts)
	}
	if LoadOverview(idx.config.DBPath) == "" {
		t.Fatal("overview not written")
	}
}

func TestIndex_EmbedFailure(t *testing.T) {
	t.Parallel()

	idx := newTestIndexer(t, &fakeEmbedder{err: errors.New("ollama down")}, nil, Config{Model: "m", Workers: 1})
	dir := t.TempDir()
	var docs []precedent.Precedent
	for _, id := range []string{"1", "2", "3", "4", "5", "6"} {
		docs = append(docs, doc(id, "본문 "+id))
	}
	writeDocs(t, filepath.Join(dir, "a.jsonl"), docs...)

	stats, err := idx.Index(context.Background(), dir)
	if err == nil || !strings.Contains(err.Error(), "ollama down") {
		t.Fatalf("err=%v", err)
	}
	if stats == nil || stats.DocsIndexed != 0 || stats.DocsTotal != 6 {
		t.Fatalf("stats=%+v", stats)
	}
}

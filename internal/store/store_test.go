package store

import (
	"errors"
	"path/filepath"
	"testing"
)

func openTemp(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func unitVec(i int) []float32 {
	v := make([]float32, EmbeddingDim)
	v[i] = 1
	return v
}

func seed(t *testing.T, st *SQLiteStore, p PrecedentRecord, texts ...string) []int64 {
	t.Helper()
	id, err := st.UpsertPrecedent(p)
	if err != nil {
		t.Fatalf("UpsertPrecedent: %v", err)
	}
	chunks := make([]Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = Chunk{UUID: p.DocID + "#" + string(rune('0'+i)), Index: i, Content: text}
	}
	ids, err := st.InsertChunks(id, chunks)
	if err != nil {
		t.Fatalf("InsertChunks: %v", err)
	}
	return ids
}

func TestStore_VectorAndKeywordSearch(t *testing.T) {
	t.Parallel()
	st := openTemp(t)

	a := seed(t, st, PrecedentRecord{DocID: "prec:1", PrecID: "1", CaseName: "중대재해처벌법위반", Court: "대법원", DecisionDateISO: "2023-04-06", Hash: "h1"},
		"원청 경영책임자의 안전보건 확보의무", "추락 방지 조치")
	b := seed(t, st, PrecedentRecord{DocID: "prec:2", PrecID: "2", CaseName: "산업안전보건법위반", Court: "창원지방법원", DecisionDateISO: "2022-05-01", Hash: "h2"},
		"하청 근로자 추락 사망")
	if err := st.InsertEmbeddings(append(a, b...), [][]float32{unitVec(0), unitVec(1), unitVec(2)}); err != nil {
		t.Fatalf("InsertEmbeddings: %v", err)
	}

	res, err := st.Search(unitVec(2), 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res) != 2 || res[0].Precedent.DocID != "prec:2" || res[0].Distance != 0 {
		t.Fatalf("vector results=%+v", res)
	}

	res, err = st.KeywordSearch("하청 추락", 5)
	if err != nil {
		t.Fatalf("KeywordSearch: %v", err)
	}
	if len(res) != 2 || res[0].Chunk.Content != "하청 근로자 추락 사망" || !res[0].Keyword {
		t.Fatalf("keyword results=%+v", res)
	}
	if res, err := st.KeywordSearch("%% __", 5); err != nil || len(res) != 0 {
		t.Fatalf("wildcards must not match everything: %v %v", res, err)
	}
}

func TestStore_UpsertReplacesChunks(t *testing.T) {
	t.Parallel()
	st := openTemp(t)

	p := PrecedentRecord{DocID: "prec:9", PrecID: "9", Hash: "old"}
	ids := seed(t, st, p, "첫 번째", "두 번째")
	if err := st.InsertEmbeddings(ids, [][]float32{unitVec(0), unitVec(1)}); err != nil {
		t.Fatal(err)
	}
	if err := st.SetPrecedentSummary("prec:9", "요약"); err != nil {
		t.Fatal(err)
	}

	p.Hash = "new"
	seed(t, st, p, "새 본문")

	if h, err := st.GetPrecedentHash("prec:9"); err != nil || h != "new" {
		t.Fatalf("hash=%q err=%v", h, err)
	}
	list, err := st.ListPrecedents(ListFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Chunks != 1 || list[0].Summary != "" {
		t.Fatalf("list=%+v", list)
	}
	if res, err := st.Search(unitVec(0), 5); err != nil || len(res) != 0 {
		t.Fatalf("stale embeddings survived: %+v %v", res, err)
	}
}

func TestStore_UpsertKeepsSuppliedSummary(t *testing.T) {
	t.Parallel()
	st := openTemp(t)

	p := PrecedentRecord{DocID: "prec:5", PrecID: "5", Hash: "h", Summary: "원청 책임 인정"}
	seed(t, st, p, "본문")
	got, err := st.GetPrecedent("prec:5")
	if err != nil || got.Summary != "원청 책임 인정" {
		t.Fatalf("insert summary=%q err=%v", got.Summary, err)
	}

	p.Hash, p.Summary = "h2", "하청 책임 부정"
	seed(t, st, p, "새 본문")
	list, err := st.ListPrecedents(ListFilter{})
	if err != nil || len(list) != 1 || list[0].Summary != "하청 책임 부정" {
		t.Fatalf("update list=%+v err=%v", list, err)
	}
}

func TestStore_LookupAndFilters(t *testing.T) {
	t.Parallel()
	st := openTemp(t)

	seed(t, st, PrecedentRecord{DocID: "prec:1", PrecID: "1", Court: "대법원", DecisionDateISO: "2021-01-01", Body: "본문", Hash: "a"})
	seed(t, st, PrecedentRecord{DocID: "prec:2", PrecID: "2", Court: "창원지방법원 마산지원", DecisionDateISO: "2023-01-01", Hash: "b"})

	p, err := st.GetPrecedent("1")
	if err != nil || p.DocID != "prec:1" || p.Body != "본문" {
		t.Fatalf("by source id: %+v %v", p, err)
	}
	if _, err := st.GetPrecedent("prec:404"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v", err)
	}
	if err := st.SetPrecedentSummary("prec:404", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v", err)
	}

	list, err := st.ListPrecedents(ListFilter{Court: "지방법원"})
	if err != nil || len(list) != 1 || list[0].DocID != "prec:2" {
		t.Fatalf("court filter: %+v %v", list, err)
	}
	list, err = st.ListPrecedents(ListFilter{Since: "2022-01-27"})
	if err != nil || len(list) != 1 || list[0].DocID != "prec:2" {
		t.Fatalf("since filter: %+v %v", list, err)
	}
	list, _ = st.ListPrecedents(ListFilter{Limit: 1})
	if len(list) != 1 || list[0].DocID != "prec:2" {
		t.Fatalf("newest first: %+v", list)
	}

	if err := st.DeleteAllChunks(); err != nil {
		t.Fatal(err)
	}
	if list, _ := st.ListPrecedents(ListFilter{}); len(list) != 0 {
		t.Fatalf("after delete: %+v", list)
	}
}

func TestStore_Meta(t *testing.T) {
	t.Parallel()
	st := openTemp(t)

	if v, err := st.GetMeta("embedding_model"); err != nil || v != "" {
		t.Fatalf("unset meta=%q err=%v", v, err)
	}
	for _, v := range []string{"nomic-embed-text", "bge-m3"} {
		if err := st.SetMeta("embedding_model", v); err != nil {
			t.Fatal(err)
		}
	}
	if v, _ := st.GetMeta("embedding_model"); v != "bge-m3" {
		t.Fatalf("meta=%q", v)
	}
}

func TestKeywordTerms(t *testing.T) {
	t.Parallel()

	got := keywordTerms("「중대재해처벌법」 위반, 위반 a 추락?")
	want := []string{"중대재해처벌법", "위반", "추락"}
	if len(got) != len(want) {
		t.Fatalf("terms=%q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("terms=%q", got)
		}
	}
}

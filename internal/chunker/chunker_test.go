package chunker

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"safeon/internal/normalize"
	"safeon/internal/precedent"
)

// rejoin reverses Split for texts that were actually windowed.
func rejoin(chunks []string, overlap int) string {
	if len(chunks) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(chunks[0])
	for _, c := range chunks[1:] {
		b.WriteString(string([]rune(c)[overlap:]))
	}
	return b.String()
}

func sample(n int) string {
	var b strings.Builder
	for i := 0; b.Len() < n*3; i++ {
		fmt.Fprintf(&b, "제%d조 사업주는 근로자의 안전을 위하여 필요한 조치를 하여야 한다.\n", i)
	}
	return string([]rune(b.String())[:n])
}

func TestSplit_ReconstructsText(t *testing.T) {
	t.Parallel()

	cases := []struct{ n, size, overlap int }{
		{5000, 1200, 150},
		{1201, 1200, 150},
		{999, 300, 0},
		{2500, 500, 499},
		{777, 100, 1},
	}
	for _, tc := range cases {
		text := normalize.NormalizeWhitespace(sample(tc.n))
		chunks, err := Split(text, tc.size, tc.overlap)
		if err != nil {
			t.Fatalf("Split(n=%d,size=%d,overlap=%d): %v", tc.n, tc.size, tc.overlap, err)
		}
		if got := rejoin(chunks, tc.overlap); got != text {
			t.Fatalf("size=%d overlap=%d: reconstruction mismatch (%d chunks)", tc.size, tc.overlap, len(chunks))
		}
		for i, c := range chunks {
			if l := len([]rune(c)); l > tc.size || (i < len(chunks)-1 && l != tc.size) {
				t.Fatalf("chunk %d has %d runes with size %d", i, l, tc.size)
			}
		}
	}
}

func TestSplit_SingleChunkBelowFloor(t *testing.T) {
	t.Parallel()

	text := sample(MinChars)
	chunks, err := Split(text, 50, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Fatalf("len=%d, want 1 for text at the %d-char floor", len(chunks), MinChars)
	}

	chunks, err = Split("  짧은   판결문\r\n", 1200, 150)
	if err != nil || !reflect.DeepEqual(chunks, []string{"짧은 판결문"}) {
		t.Fatalf("chunks=%q err=%v", chunks, err)
	}
	if chunks, _ := Split(" \n\t", 1200, 150); len(chunks) != 0 {
		t.Fatalf("blank text gave %q", chunks)
	}
}

func TestSplit_RejectsNonAdvancingWindow(t *testing.T) {
	t.Parallel()

	for _, overlap := range []int{100, 150} {
		if _, err := Split(sample(1000), 100, overlap); !errors.Is(err, ErrOverlap) {
			t.Fatalf("overlap=%d: err=%v, want ErrOverlap", overlap, err)
		}
	}
	if _, err := Split("x", 0, -1); err == nil {
		t.Fatal("zero size accepted")
	}
}

func TestChunkPrecedent_DeterministicIDs(t *testing.T) {
	t.Parallel()

	p := precedent.Precedent{
		ID:              "prec:228541",
		PrecID:          "228541",
		CaseNo:          "2021도123",
		CaseName:        "산업안전보건법위반",
		DecisionDateISO: "2022-03-01",
		Text:            sample(3000),
		Source:          precedent.Source,
	}
	a, err := ChunkPrecedent(p, Options{})
	if err != nil {
		t.Fatal(err)
	}
	b, err := ChunkPrecedent(p, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatal("chunking is not idempotent")
	}
	if len(a) != 3 {
		t.Fatalf("len=%d, want 3 windows of 1200/150 over 3000 runes", len(a))
	}
	for i, c := range a {
		if c.Index != i || c.ParentID != p.ID || c.Metadata.CaseNo != "2021도123" {
			t.Fatalf("chunk %d=%+v", i, c)
		}
	}
	// uuid.uuid5(uuid.NAMESPACE_URL, "prec:228541#0")
	if a[0].ID != "ca0c3e86-92c1-5be9-ab8b-eb0a65a052f0" || a[1].ID != "5920075a-ac13-5bf1-aae5-54210284713d" {
		t.Fatalf("ids=%s %s", a[0].ID, a[1].ID)
	}
}

func TestChunkPrecedent_EmptyTextAndParentFallback(t *testing.T) {
	t.Parallel()

	chunks, err := ChunkPrecedent(precedent.Precedent{PrecID: "1", Text: "   "}, Options{})
	if err != nil || chunks != nil {
		t.Fatalf("chunks=%v err=%v", chunks, err)
	}
	chunks, err = ChunkPrecedent(precedent.Precedent{PrecID: "228541", Text: "본문"}, Options{})
	if err != nil || len(chunks) != 1 || chunks[0].ParentID != "prec:228541" || chunks[0].ID != ChunkID("prec:228541", 0) {
		t.Fatalf("chunks=%+v err=%v", chunks, err)
	}
}

func TestEmbedText_Header(t *testing.T) {
	t.Parallel()

	got := EmbedText(Chunk{Text: "본문", Metadata: Metadata{CaseName: "산재", CaseNo: "2021도123", Court: "대법원", DecisionDateISO: "2022-03-01"}})
	want := "사건명: 산재\n사건번호: 2021도123 대법원\n선고일: 2022-03-01\n본문"
	if got != want {
		t.Fatalf("EmbedText=%q", got)
	}
}

func TestOptions_Validate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		opts Options
		ok   bool
	}{
		{Options{}, true},
		{Options{Size: 500, Overlap: -1}, true},
		{Options{Size: 100}, false}, // default overlap 150 does not fit
		{Options{Size: 100, Overlap: 100}, false},
		{Options{Size: -5, Overlap: -1}, false},
	}
	for _, c := range cases {
		if err := c.opts.Validate(); (err == nil) != c.ok {
			t.Errorf("%+v: err=%v, want ok=%v", c.opts, err, c.ok)
		}
	}
	if err := (Options{Size: 100}).Validate(); !errors.Is(err, ErrOverlap) {
		t.Errorf("err=%v, want ErrOverlap", err)
	}
}

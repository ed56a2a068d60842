package jsonl

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type row struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

func TestWriter_PreservesNonASCII(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out", "all_docs.jsonl")
	w, err := Create(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range []row{{"prec:1", "피고인 <갑>은 & 을과"}, {"prec:2", "둘째"}} {
		if err := w.Write(r); err != nil {
			t.Fatal(err)
		}
	}
	if w.Count() != 2 {
		t.Fatalf("count=%d", w.Count())
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"id":"prec:1","text":"피고인 <갑>은 & 을과"}` + "\n" + `{"id":"prec:2","text":"둘째"}` + "\n"
	if string(b) != want {
		t.Fatalf("file=%q\nwant %q", b, want)
	}
}

func TestRead_SkipsBlankLinesAndReportsLine(t *testing.T) {
	t.Parallel()

	var got []row
	err := Read(strings.NewReader("{\"id\":\"a\"}\n\n  \n{\"id\":\"b\"}\n"), func(r row) error {
		got = append(got, r)
		return nil
	})
	if err != nil || len(got) != 2 || got[1].ID != "b" {
		t.Fatalf("got=%v err=%v", got, err)
	}

	err = Read(strings.NewReader("{\"id\":\"a\"}\n{broken\n"), func(row) error { return nil })
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("err=%v", err)
	}

	stop := errors.New("stop")
	if err := Read(strings.NewReader("{}\n{}\n"), func(row) error { return stop }); !errors.Is(err, stop) {
		t.Fatalf("err=%v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load[row](filepath.Join(t.TempDir(), "nope.jsonl")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err=%v", err)
	}
}

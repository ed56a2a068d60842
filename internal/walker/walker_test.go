package walker

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"sort"
	"testing"
)

func write(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func collect(t *testing.T, root string, opts Options) []string {
	t.Helper()
	files, errs := Walk(context.Background(), root, opts)
	var got []string
	for f := range files {
		got = append(got, f.RelPath)
	}
	if err := <-errs; err != nil {
		t.Fatalf("walk: %v", err)
	}
	sort.Strings(got)
	return got
}

func TestWalk_FiltersAndIgnores(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	write(t, filepath.Join(root, "all_docs.jsonl"), "{}\n")
	write(t, filepath.Join(root, "2024", "vector_docs.jsonl"), "{}\n")
	write(t, filepath.Join(root, "raw", "law.jsonl"), "{}\n")
	write(t, filepath.Join(root, "notes.txt"), "x")
	write(t, filepath.Join(root, "empty.jsonl"), "")
	write(t, filepath.Join(root, "big.jsonl"), "0123456789\n")
	write(t, filepath.Join(root, "vector_chunks.jsonl"), "{}\n")

	got := collect(t, root, Options{Exts: map[string]bool{"jsonl": true}, MaxSize: 8})
	want := []string{"2024/vector_docs.jsonl", "all_docs.jsonl"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %v, want %v", got, want)
	}
	if _, err := os.Stat(filepath.Join(root, IgnoreFile)); err != nil {
		t.Fatalf("default ignore file not written: %v", err)
	}
}

func TestWalk_CustomIgnoreAndSingleFile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	write(t, filepath.Join(root, IgnoreFile), "# comment\narchive*\n")
	write(t, filepath.Join(root, "archive-2021", "a.jsonl"), "{}\n")
	write(t, filepath.Join(root, "raw", "b.jsonl"), "{}\n")

	got := collect(t, root, Options{Exts: map[string]bool{"jsonl": true}})
	if len(got) != 1 || got[0] != "raw/b.jsonl" {
		t.Fatalf("got %v", got)
	}

	single := filepath.Join(root, "raw", "b.jsonl")
	got = collect(t, single, Options{})
	if len(got) != 1 || got[0] != "b.jsonl" {
		t.Fatalf("single file: %v", got)
	}

	files, errs := Walk(context.Background(), filepath.Join(root, "missing"), Options{})
	for range files {
	}
	if err := <-errs; err == nil {
		t.Fatal("missing root accepted")
	}
}

func TestWalk_Canceled(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	for _, name := range []string{"a.jsonl", "b.jsonl", "c.jsonl"} {
		write(t, filepath.Join(root, name), "{}\n")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	files, errs := Walk(ctx, root, Options{Exts: map[string]bool{"jsonl": true}})
	n := 0
	for range files {
		n++
	}
	// The buffered channel may accept entries before cancellation is seen,
	// but the walk must end with the context error.
	if err := <-errs; err != context.Canceled {
		t.Fatalf("err=%v after %d files", err, n)
	}
}

func TestMatchesIgnore(t *testing.T) {
	t.Parallel()

	patterns := []string{"raw", "archive/2021", "*_chunks.jsonl"}
	cases := map[string]bool{
		"raw":                      true,
		"data/raw":                 true,
		"archive/2021":             true,
		"archive/2021/x.jsonl":     true,
		"archive/2022":             false,
		"vector_chunks.jsonl":      true,
		"2024/vector_chunks.jsonl": true,
		"vector_docs.jsonl":        false,
	}
	for rel, want := range cases {
		if got := matchesIgnore(path.Base(rel), rel, patterns); got != want {
			t.Errorf("matchesIgnore(%q) = %v, want %v", rel, got, want)
		}
	}
}

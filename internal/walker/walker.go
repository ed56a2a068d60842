// Package walker discovers JSON Lines corpus files under a directory.
package walker

import (
	"bufio"
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// IgnoreFile names the per-corpus exclusion list.
const IgnoreFile = ".safeonignore"

// FileInfo holds metadata about a discovered document file.
type FileInfo struct {
	Path    string
	RelPath string
	Size    int64
}

// Options selects which files Walk emits.
type Options struct {
	// Exts lists allowed extensions without the leading dot.
	Exts map[string]bool
	// MaxSize skips files larger than this many bytes; 0 means no limit.
	MaxSize int64
}

// defaultIgnores are used when the corpus has no ignore file. Patterns match
// directory and file names or slash-separated paths relative to the root.
var defaultIgnores = []string{
	".git",
	".svn",
	".hg",
	"node_modules",
	".idea",
	".vscode",
	".safeon",
	"raw",
	"user_runs",
	"*_chunks.jsonl",
}

type walk struct {
	ctx     context.Context
	root    string
	ignores []string
	opts    Options
	out     chan<- FileInfo
}

// Walk finds document files under root and sends them on the returned
// channel in lexical order. When root is a regular file it is emitted alone,
// whatever its name. The error channel yields at most one error, after the
// file channel is closed.
func Walk(ctx context.Context, root string, opts Options) (<-chan FileInfo, <-chan error) {
	files := make(chan FileInfo, 64)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		err := walkRoot(ctx, root, opts, files)
		close(files)
		if err != nil {
			errs <- err
		}
	}()

	return files, errs
}

func walkRoot(ctx context.Context, root string, opts Options, out chan<- FileInfo) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	st, err := os.Stat(absRoot)
	if err != nil {
		return err
	}
	w := &walk{ctx: ctx, root: absRoot, opts: opts, out: out}
	if !st.IsDir() {
		return w.emit(FileInfo{Path: absRoot, RelPath: filepath.Base(absRoot), Size: st.Size()})
	}
	w.ignores = loadIgnorePatterns(absRoot)
	return filepath.WalkDir(absRoot, w.visit)
}

func (w *walk) visit(p string, d fs.DirEntry, err error) error {
	if cerr := w.ctx.Err(); cerr != nil {
		return cerr
	}
	if err != nil {
		// Unreadable entries are skipped; only the root itself is fatal.
		if p == w.root {
			return err
		}
		return nil
	}
	if p == w.root {
		return nil
	}
	rel, _ := filepath.Rel(w.root, p)
	rel = filepath.ToSlash(rel)

	if matchesIgnore(d.Name(), rel, w.ignores) {
		if d.IsDir() {
			return filepath.SkipDir
		}
		return nil
	}
	if d.IsDir() || d.Type()&fs.ModeSymlink != 0 {
		return nil
	}
	if !w.opts.Exts[strings.TrimPrefix(filepath.Ext(p), ".")] {
		return nil
	}

	info, err := d.Info()
	if err != nil {
		return nil
	}
	if info.Size() == 0 || (w.opts.MaxSize > 0 && info.Size() > w.opts.MaxSize) {
		return nil
	}
	return w.emit(FileInfo{Path: p, RelPath: rel, Size: info.Size()})
}

func (w *walk) emit(f FileInfo) error {
	select {
	case w.out <- f:
		return nil
	case <-w.ctx.Done():
		return w.ctx.Err()
	}
}

// loadIgnorePatterns reads the ignore file from the corpus root, writing one
// with the defaults when it is missing.
func loadIgnorePatterns(root string) []string {
	ignorePath := filepath.Join(root, IgnoreFile)

	f, err := os.Open(ignorePath)
	if errors.Is(err, fs.ErrNotExist) {
		writeDefaultIgnoreFile(ignorePath)
		return defaultIgnores
	}
	if err != nil {
		return defaultIgnores
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, strings.TrimSuffix(line, "/"))
	}
	if len(patterns) == 0 {
		return defaultIgnores
	}
	return patterns
}

func writeDefaultIgnoreFile(p string) {
	var b strings.Builder
	b.WriteString("# Paths skipped when looking for corpus files.\n")
	b.WriteString("# One pattern per line: a name, a glob, or a path relative to this directory.\n\n")
	for _, pat := range defaultIgnores {
		b.WriteString(pat)
		b.WriteByte('\n')
	}
	// Best-effort; the defaults are still used in memory.
	os.WriteFile(p, []byte(b.String()), 0o644)
}

// matchesIgnore reports whether an entry's name or root-relative path
// matches a pattern. A plain path pattern also covers everything below it.
func matchesIgnore(name, rel string, patterns []string) bool {
	for _, p := range patterns {
		if name == p || rel == p || strings.HasPrefix(rel, p+"/") {
			return true
		}
		if ok, _ := path.Match(p, name); ok {
			return true
		}
		if ok, _ := path.Match(p, rel); ok {
			return true
		}
	}
	return false
}

package cmd

import (
	"errors"
	"fmt"

	"safeon/internal/chunker"
	"safeon/internal/jsonl"
	"safeon/internal/precedent"
)

// corpusSink fans records out to the full corpus, the filtered vector
// corpus, and the chunk file. Any of the three may be disabled.
type corpusSink struct {
	all      *jsonl.Writer
	filtered *jsonl.Writer
	chunks   *jsonl.Writer
	filter   *precedent.Filter
	chunking chunker.Options

	seen, kept, emptyText, chunkCount int
}

func (s *corpusSink) Write(p precedent.Precedent) error {
	s.seen++
	if s.all != nil {
		if err := s.all.Write(p); err != nil {
			return err
		}
	}
	if s.filter != nil && !s.filter.Keep(p) {
		return nil
	}
	if s.filtered != nil {
		if err := s.filtered.Write(p); err != nil {
			return err
		}
	}
	s.kept++
	if s.chunks == nil {
		return nil
	}
	chunks, err := chunker.ChunkPrecedent(p, s.chunking)
	if err != nil {
		return fmt.Errorf("chunk %s: %w", p.ID, err)
	}
	if len(chunks) == 0 {
		s.emptyText++
		return nil
	}
	for _, c := range chunks {
		if err := s.chunks.Write(c); err != nil {
			return err
		}
	}
	s.chunkCount += len(chunks)
	return nil
}

func (s *corpusSink) Close() error {
	var errs []error
	for _, w := range []*jsonl.Writer{s.all, s.filtered, s.chunks} {
		if w != nil {
			errs = append(errs, w.Close())
		}
	}
	return errors.Join(errs...)
}

func (s *corpusSink) summary() string {
	out := fmt.Sprintf("  Records: %d", s.seen)
	if s.filter != nil {
		out += fmt.Sprintf("\n  Kept:    %d (filter %s, cutoff %s)", s.kept, s.filter.Mode, s.filter.Cutoff)
	}
	if s.chunks != nil {
		out += fmt.Sprintf("\n  Chunks:  %d (size %d, overlap %d; %d without text)", s.chunkCount, s.chunking.Size, s.chunking.Overlap, s.emptyText)
	}
	return out
}

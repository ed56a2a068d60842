package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"safeon/internal/chunker"
	"safeon/internal/embedder"
	"safeon/internal/llm"
	"safeon/internal/store"
)

// DefaultSummaryModel generates precedent summaries and the corpus overview.
const DefaultSummaryModel = "qwen3:8b"

// OverviewFile is written next to the database after indexing.
const OverviewFile = "overview.md"

// ProgressFunc receives a phase label and a processed/total count. Total is
// 0 while it is still unknown.
type ProgressFunc func(phase string, processed, total int)

// Embedder turns chunk texts into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Config holds the indexer configuration.
type Config struct {
	DBPath       string
	OllamaURL    string
	Model        string
	Workers      int
	SummaryModel string
	// Summaries enables one LLM summary per newly indexed precedent.
	Summaries  bool
	Chunk      chunker.Options
	OnProgress ProgressFunc
	// OnWarning receives non-fatal failures. Nil prints them to stderr.
	OnWarning func(error)
}

// Indexer is the public API for indexing and searching the precedent corpus.
type Indexer struct {
	store    store.Store
	embedder Embedder
	chat     llm.Generator
	config   Config
}

// New opens the store at cfg.DBPath and wires the Ollama clients.
func New(cfg Config) (*Indexer, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	model := cfg.SummaryModel
	if model == "" {
		model = DefaultSummaryModel
	}
	return NewWith(s, embedder.NewOllamaEmbedder(cfg.OllamaURL, cfg.Model, embedder.WithDimension(store.EmbeddingDim)), llm.NewOllamaChat(cfg.OllamaURL, model), cfg), nil
}

// NewWith builds an Indexer from existing components. The indexer takes
// ownership of st.
func NewWith(st store.Store, emb Embedder, chat llm.Generator, cfg Config) *Indexer {
	return &Indexer{store: st, embedder: emb, chat: chat, config: cfg}
}

// Store exposes the underlying store for retrieval.
func (idx *Indexer) Store() store.Store { return idx.store }

func (idx *Indexer) warn(err error) {
	if idx.config.OnWarning != nil {
		idx.config.OnWarning(err)
		return
	}
	fmt.Fprintf(os.Stderr, "warning: %v\n", err)
}

func (idx *Indexer) progress(phase string, processed, total int) {
	if idx.config.OnProgress != nil {
		idx.config.OnProgress(phase, processed, total)
	}
}

// Index indexes every document file found under root, which may also be a
// single JSON Lines file.
func (idx *Indexer) Index(ctx context.Context, root string) (*Stats, error) {
	lastModel, err := idx.store.GetMeta("embedding_model")
	if err != nil {
		return nil, fmt.Errorf("get meta: %w", err)
	}
	if lastModel != "" && lastModel != idx.config.Model {
		idx.progress(fmt.Sprintf("Embedding model changed from %q to %q, re-indexing all precedents", lastModel, idx.config.Model), 0, 0)
		if err := idx.store.DeleteAllChunks(); err != nil {
			return nil, fmt.Errorf("delete all chunks: %w", err)
		}
	}

	stats, err := runPipeline(ctx, root, idx.store, idx.embedder, idx.config, idx.warn)
	if err != nil {
		return stats, err
	}

	if err := idx.store.SetMeta("embedding_model", idx.config.Model); err != nil {
		return nil, fmt.Errorf("set meta: %w", err)
	}

	if stats.DocsIndexed > 0 && idx.chat != nil {
		if idx.config.Summaries {
			idx.progress("Generating precedent summaries...", 0, stats.DocsIndexed)
			if err := summarizePrecedents(ctx, idx.store, idx.chat, idx.progress); err != nil {
				idx.warn(fmt.Errorf("precedent summarization failed: %w", err))
			}
		}

		idx.progress("Generating corpus overview...", 0, 0)
		overview, err := synthesizeOverview(ctx, idx.store, idx.chat)
		if err != nil {
			idx.warn(fmt.Errorf("overview generation failed: %w", err))
		} else {
			overviewPath := filepath.Join(filepath.Dir(idx.config.DBPath), OverviewFile)
			if err := os.WriteFile(overviewPath, []byte(overview), 0o644); err != nil {
				idx.warn(fmt.Errorf("failed to write overview: %w", err))
			}
		}
	}

	return stats, nil
}

// Close releases resources.
func (idx *Indexer) Close() error {
	return idx.store.Close()
}

// LoadOverview returns the corpus overview written by the last index run,
// or "" when there is none.
func LoadOverview(dbPath string) string {
	b, err := os.ReadFile(filepath.Join(filepath.Dir(dbPath), OverviewFile))
	if err != nil {
		return ""
	}
	return string(b)
}

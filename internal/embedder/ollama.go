// Package embedder turns precedent chunk texts into vectors through a local
// Ollama server.
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultBatchSize is how many chunk texts go into one /api/embed call.
const DefaultBatchSize = 32

// maxErrorBody bounds the server message copied into errors.
const maxErrorBody = 512

// ErrDimension is returned when the model produces vectors of a different
// width than the index was built for.
var ErrDimension = errors.New("embedder: unexpected embedding dimension")

// Option configures an OllamaEmbedder.
type Option func(*OllamaEmbedder)

// WithDimension rejects vectors whose width is not n.
func WithDimension(n int) Option {
	return func(e *OllamaEmbedder) { e.dim = n }
}

// WithKeepAlive asks Ollama to keep the model loaded for d after each call.
func WithKeepAlive(d time.Duration) Option {
	return func(e *OllamaEmbedder) { e.keepAlive = d.String() }
}

// WithHTTPClient replaces the default client, which times out after two
// minutes.
func WithHTTPClient(c *http.Client) Option {
	return func(e *OllamaEmbedder) { e.client = c }
}

// OllamaEmbedder calls the Ollama /api/embed endpoint.
type OllamaEmbedder struct {
	baseURL   string
	model     string
	dim       int
	keepAlive string
	client    *http.Client
}

// NewOllamaEmbedder creates an embedder targeting the given Ollama instance.
func NewOllamaEmbedder(baseURL, model string, opts ...Option) *OllamaEmbedder {
	e := &OllamaEmbedder{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Model returns the configured model name.
func (e *OllamaEmbedder) Model() string { return e.model }

type embedRequest struct {
	Model     string   `json:"model"`
	Input     []string `json:"input"`
	Truncate  bool     `json:"truncate"`
	KeepAlive string   `json:"keep_alive,omitempty"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed returns one vector per text, in input order. Inputs longer than
// DefaultBatchSize are sent in several requests; texts beyond the model's
// context window are truncated by the server.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += DefaultBatchSize {
		batch := texts[start:min(start+DefaultBatchSize, len(texts))]
		vecs, err := e.embedBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *OllamaEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{
		Model:     e.model,
		Input:     texts,
		Truncate:  true,
		KeepAlive: e.keepAlive,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("ollama embed returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Embeddings))
	}
	if e.dim > 0 {
		for _, v := range result.Embeddings {
			if len(v) != e.dim {
				return nil, fmt.Errorf("%w: model %s returned %d, index expects %d", ErrDimension, e.model, len(v), e.dim)
			}
		}
	}
	return result.Embeddings, nil
}

// EmbedSingle embeds a single text and returns the embedding vector.
func (e *OllamaEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	results, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

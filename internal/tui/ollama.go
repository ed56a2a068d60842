package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"
)

// tagsTimeout bounds the model listing; the setup screen waits on it.
const tagsTimeout = 10 * time.Second

// embeddingFamilies are architectures Ollama reports for vector-only models.
var embeddingFamilies = []string{"bert", "nomic-bert", "xlm-roberta", "gte"}

// embeddingMarkers are name fragments of common embedding models.
var embeddingMarkers = []string{"embed", "nomic", "bge", "e5-", "gte"}

// ModelDetails is the subset of /api/tags details shown in the pickers.
type ModelDetails struct {
	Family        string   `json:"family"`
	Families      []string `json:"families"`
	ParameterSize string   `json:"parameter_size"`
	Quantization  string   `json:"quantization_level"`
}

// OllamaModel represents a model returned by /api/tags.
type OllamaModel struct {
	Name    string       `json:"name"`
	Size    int64        `json:"size"`
	Details ModelDetails `json:"details"`
}

// IsEmbedding reports whether the model produces vectors rather than text,
// judged by its reported family, then by its name.
func (m OllamaModel) IsEmbedding() bool {
	for _, f := range append([]string{m.Details.Family}, m.Details.Families...) {
		if slices.Contains(embeddingFamilies, strings.ToLower(f)) {
			return true
		}
	}
	name := strings.ToLower(m.Name)
	for _, marker := range embeddingMarkers {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return false
}

// Label renders the picker entry, e.g. "qwen3:8b (4.9 GB, 8.2B Q4_K_M)".
func (m OllamaModel) Label() string {
	info := []string{formatSize(m.Size)}
	if d := strings.TrimSpace(m.Details.ParameterSize + " " + m.Details.Quantization); d != "" {
		info = append(info, d)
	}
	return fmt.Sprintf("%s (%s)", m.Name, strings.Join(info, ", "))
}

type tagsResponse struct {
	Models []OllamaModel `json:"models"`
}

var tagsClient = &http.Client{Timeout: tagsTimeout}

// ListModels queries the Ollama /api/tags endpoint and returns available models.
func ListModels(ctx context.Context, baseURL string) ([]OllamaModel, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("build tags request: %w", err)
	}
	resp, err := tagsClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect to ollama at %s: %w", baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama /api/tags returned %d", resp.StatusCode)
	}

	var result tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode tags response: %w", err)
	}
	return result.Models, nil
}

func formatSize(bytes int64) string {
	const (
		mb = 1 << 20
		gb = 1 << 30
	)
	switch {
	case bytes <= 0:
		return "size unknown"
	case bytes >= gb:
		return fmt.Sprintf("%.1f GB", float64(bytes)/gb)
	default:
		return fmt.Sprintf("%.0f MB", float64(bytes)/mb)
	}
}

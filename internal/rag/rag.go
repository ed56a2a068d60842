package rag

import (
	"context"
	"fmt"
	"strings"

	"safeon/internal/llm"
	"safeon/internal/store"
)

const systemPrompt = `You are a legal research assistant for Korean workplace-safety law (중대재해처벌법, 산업안전보건법). You answer questions using the retrieved court decision excerpts provided below.

Cite the case number and court for every claim you draw from an excerpt, e.g. (대법원 2021도123). Distinguish holdings (판시사항, 판결요지) from facts recited in the reasoning (이유). Answer in the language of the question.

Keep answers concise and grounded in the provided excerpts. If they do not contain enough information to answer, say so. Do not give legal advice beyond what the cited decisions support.`

// QueryEmbedder embeds a single query string.
type QueryEmbedder interface {
	EmbedSingle(ctx context.Context, text string) ([]float32, error)
}

// HybridRetrieve runs both keyword search and vector similarity search,
// then merges and deduplicates results with keyword matches first.
func HybridRetrieve(ctx context.Context, query string, st store.Store, emb QueryEmbedder, k int) ([]store.SearchResult, error) {
	// Keyword errors are non-fatal; fall back to vector only.
	kwResults, err := st.KeywordSearch(query, k)
	if err != nil {
		kwResults = nil
	}

	vec, err := emb.EmbedSingle(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	vecResults, err := st.Search(vec, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	seen := make(map[int64]bool)
	var merged []store.SearchResult
	for _, group := range [][]store.SearchResult{kwResults, vecResults} {
		for _, r := range group {
			if !seen[r.Chunk.ID] {
				seen[r.Chunk.ID] = true
				merged = append(merged, r)
			}
		}
	}

	if len(merged) > k {
		merged = merged[:k]
	}
	return merged, nil
}

// CaseLabel renders a short citation such as "대법원 2021도123 (2022-03-01)".
func CaseLabel(p store.PrecedentSummary) string {
	var parts []string
	for _, s := range []string{p.Court, p.CaseNo} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		parts = append(parts, p.DocID)
	}
	label := strings.Join(parts, " ")
	if p.DecisionDateISO != "" {
		label += " (" + p.DecisionDateISO + ")"
	}
	return label
}

// Citations lists each distinct precedent in retrieval order.
func Citations(results []store.SearchResult) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range results {
		if seen[r.Precedent.DocID] {
			continue
		}
		seen[r.Precedent.DocID] = true
		label := CaseLabel(r.Precedent)
		if r.Precedent.CaseName != "" {
			label += " " + r.Precedent.CaseName
		}
		out = append(out, label)
	}
	return out
}

// BuildMessages constructs the message list for the LLM from retrieved chunks,
// conversation history, and the current question.
func BuildMessages(chunks []store.SearchResult, history []llm.Message, question string, overview string) []llm.Message {
	var msgs []llm.Message

	sys := systemPrompt
	if overview != "" {
		sys += "\n\n## Corpus Overview\n\n" + overview
	}
	msgs = append(msgs, llm.Message{Role: "system", Content: sys})

	if len(chunks) > 0 {
		var ctx strings.Builder
		ctx.WriteString("Here are the relevant court decision excerpts:\n\n")
		for i, c := range chunks {
			fmt.Fprintf(&ctx, "--- Excerpt %d: %s [%s] (part %d) ---\n",
				i+1, CaseLabel(c.Precedent), c.Precedent.CaseName, c.Chunk.Index+1)
			if c.Precedent.Summary != "" {
				fmt.Fprintf(&ctx, "요약: %s\n", c.Precedent.Summary)
			}
			ctx.WriteString(c.Chunk.Content)
			ctx.WriteString("\n\n")
		}
		msgs = append(msgs, llm.Message{Role: "user", Content: ctx.String()})
		msgs = append(msgs, llm.Message{Role: "assistant", Content: "I've reviewed the excerpts. What would you like to know?"})
	}

	msgs = append(msgs, history...)
	msgs = append(msgs, llm.Message{Role: "user", Content: question})

	return msgs
}

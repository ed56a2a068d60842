package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"safeon/internal/embedder"
	"safeon/internal/incident"
	"safeon/internal/index"
	"safeon/internal/normalize"
	"safeon/internal/rag"
	"safeon/internal/store"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

// maxPrecedentPreview bounds the body returned by get_precedent unless the
// caller asks for the full text.
const maxPrecedentPreview = 4000

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server exposing precedent search tools",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	db, err := existingDBPath()
	if err != nil {
		return err
	}

	st, err := store.Open(db)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer st.Close()

	emb := embedder.NewOllamaEmbedder(flagOllama, flagModel, embedder.WithDimension(store.EmbeddingDim))
	return mcpserver.ServeStdio(newMCPServer(st, emb, db))
}

func newMCPServer(st store.Store, emb rag.QueryEmbedder, db string) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer("safeon", "1.0.0", mcpserver.WithToolCapabilities(false))

	s.AddTool(searchPrecedentsTool(), makeSearchHandler(st, emb))
	s.AddTool(getPrecedentTool(), makeGetPrecedentHandler(st))
	s.AddTool(listPrecedentsTool(), makeListPrecedentsHandler(st))
	s.AddTool(getCorpusOverviewTool(), makeOverviewHandler(db))
	s.AddTool(buildIncidentQueriesTool(), makeIncidentQueriesHandler())
	return s
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

// --- Tool schema builders ---

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(false),
}

func searchPrecedentsTool() mcp.Tool {
	return mcp.NewTool("search_precedents",
		mcp.WithDescription("Search the indexed Serious Accidents Punishment Act precedents using keyword matching plus vector similarity. Returns matching excerpts with court, case number and decision date."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language or keyword query, Korean or English"),
		),
		mcp.WithNumber("k",
			mcp.Description("Maximum number of excerpts to return (default 10)"),
		),
	)
}

func getPrecedentTool() mcp.Tool {
	return mcp.NewTool("get_precedent",
		mcp.WithDescription("Get the metadata, summary and text of one indexed precedent."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Corpus id (e.g. 'prec:123456') or source precedent id"),
		),
		mcp.WithBoolean("full",
			mcp.Description("Return the whole text instead of a preview (default false)"),
		),
	)
}

func listPrecedentsTool() mcp.Tool {
	return mcp.NewTool("list_precedents",
		mcp.WithDescription("List indexed precedents, newest decision first, with chunk counts and summary snippets."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("court",
			mcp.Description("Optional court name filter, matched as a substring (e.g. '대법원')"),
		),
		mcp.WithString("since",
			mcp.Description("Optional earliest decision date (YYYY-MM-DD or YYYYMMDD)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of precedents to list (default all)"),
		),
	)
}

func getCorpusOverviewTool() mcp.Tool {
	return mcp.NewTool("get_corpus_overview",
		mcp.WithDescription("Get the corpus overview synthesized from the indexed precedents during indexing."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
	)
}

func buildIncidentQueriesTool() mcp.Tool {
	return mcp.NewTool("build_incident_queries",
		mcp.WithDescription("Resolve a workplace incident description into facets and the ordered precedent search queries used by 'safeon incident'."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("question",
			mcp.Description("Free-text description of the incident or question"),
		),
		mcp.WithString("industry",
			mcp.Description("Optional industry: construction, manufacturing, logistics or transport"),
		),
		mcp.WithBoolean("contracting",
			mcp.Description("Whether the work was performed under a contracting or subcontracting arrangement"),
		),
		mcp.WithString("hazards",
			mcp.Description("Optional comma-separated hazard tags: "+strings.Join(incident.HazardTags(), ", ")),
		),
		mcp.WithString("occurred_at",
			mcp.Description("Optional incident date (YYYY-MM-DD), used for ranking"),
		),
	)
}

// --- Handler factories ---

func makeSearchHandler(st store.Store, emb rag.QueryEmbedder) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := strings.TrimSpace(req.GetString("query", ""))
		if query == "" {
			return mcp.NewToolResultError("query is required"), nil
		}
		k := req.GetInt("k", 10)
		if k <= 0 {
			k = 10
		}

		results, err := rag.HybridRetrieve(ctx, query, st, emb, k)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}

		return mcp.NewToolResultText(formatSearchResults(query, results)), nil
	}
}

func makeGetPrecedentHandler(st store.Store) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := strings.TrimSpace(req.GetString("id", ""))
		if id == "" {
			return mcp.NewToolResultError("id is required"), nil
		}

		p, err := st.GetPrecedent(id)
		if errors.Is(err, store.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("precedent %q not found in index; call list_precedents to see available ids", id)), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("lookup failed: %v", err)), nil
		}

		return mcp.NewToolResultText(formatPrecedent(p, req.GetBool("full", false))), nil
	}
}

func makeListPrecedentsHandler(st store.Store) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		f := store.ListFilter{
			Court: strings.TrimSpace(req.GetString("court", "")),
			Limit: req.GetInt("limit", 0),
		}
		if since := strings.TrimSpace(req.GetString("since", "")); since != "" {
			iso, ok := normalize.ParseDate(since)
			if !ok {
				return mcp.NewToolResultError(fmt.Sprintf("invalid since date %q", since)), nil
			}
			f.Since = iso
		}

		list, err := st.ListPrecedents(f)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list precedents failed: %v", err)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "## Indexed precedents (%d)\n\n", len(list))
		for _, p := range list {
			snippet := p.Summary
			if i := strings.Index(snippet, "\n"); i >= 0 {
				snippet = snippet[:i]
			}
			snippet = truncateRunes(snippet, 120)
			if snippet == "" {
				snippet = "(no summary)"
			}
			name := p.CaseName
			if name == "" {
				name = "(untitled)"
			}
			fmt.Fprintf(&sb, "- **%s** `%s` %s (%d chunks): %s\n", rag.CaseLabel(p), p.DocID, name, p.Chunks, snippet)
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}

func makeOverviewHandler(db string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		overview := index.LoadOverview(db)
		if strings.TrimSpace(overview) == "" {
			return mcp.NewToolResultText(fmt.Sprintf("No overview available yet. Run 'safeon index <docs.jsonl>' to generate %s.",
				filepath.Join(filepath.Dir(db), index.OverviewFile))), nil
		}
		return mcp.NewToolResultText(overview), nil
	}
}

func makeIncidentQueriesHandler() mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		in := incident.Incident{
			Industry:    strings.TrimSpace(req.GetString("industry", "")),
			Contracting: req.GetBool("contracting", false),
			OccurredAt:  strings.TrimSpace(req.GetString("occurred_at", "")),
		}
		for _, h := range strings.Split(req.GetString("hazards", ""), ",") {
			if h = strings.TrimSpace(h); h != "" {
				in.Hazards = append(in.Hazards, h)
			}
		}

		plan := incident.BuildQueries(in, req.GetString("question", ""))
		out, err := json.MarshalIndent(plan, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encode plan: %v", err)), nil
		}
		return mcp.NewToolResultText(string(out)), nil
	}
}

// --- Formatting helpers ---

func formatSearchResults(query string, results []store.SearchResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for query: %q", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search results for %q (%d excerpts)\n\n", query, len(results))

	for i, r := range results {
		fmt.Fprintf(&sb, "### Result %d: %s\n\n", i+1, rag.CaseLabel(r.Precedent))
		if r.Precedent.CaseName != "" {
			fmt.Fprintf(&sb, "**Case:** %s  \n", r.Precedent.CaseName)
		}
		match := "keyword"
		if !r.Keyword {
			match = fmt.Sprintf("vector (distance %.4f)", r.Distance)
		}
		fmt.Fprintf(&sb, "**Id:** `%s`  \n**Part:** %d  \n**Match:** %s\n\n", r.Precedent.DocID, r.Chunk.Index+1, match)
		fmt.Fprintf(&sb, "%s\n\n", r.Chunk.Content)
	}

	return sb.String()
}

func formatPrecedent(p store.PrecedentRecord, full bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s\n\n", rag.CaseLabel(store.PrecedentSummary{
		DocID: p.DocID, Court: p.Court, CaseNo: p.CaseNo, DecisionDateISO: p.DecisionDateISO,
	}))
	for _, kv := range [][2]string{
		{"Id", p.DocID},
		{"Source id", p.PrecID},
		{"Case name", p.CaseName},
		{"Court", p.Court},
		{"Decision date", p.DecisionDate},
		{"Source", p.Source},
	} {
		if kv[1] != "" {
			fmt.Fprintf(&sb, "**%s:** %s  \n", kv[0], kv[1])
		}
	}
	if p.Summary != "" {
		fmt.Fprintf(&sb, "\n### Summary\n\n%s\n", p.Summary)
	}

	body := p.Body
	if !full {
		if short := truncateRunes(body, maxPrecedentPreview); short != body {
			body = short + "\n\n(truncated; call again with full=true for the whole text)"
		}
	}
	fmt.Fprintf(&sb, "\n### Text\n\n%s\n", body)
	return sb.String()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

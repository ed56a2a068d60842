package index

import (
	"context"
	"fmt"
	"strings"

	"safeon/internal/llm"
	"safeon/internal/store"
)

// summaryExcerpt bounds the text sent for one precedent summary.
const summaryExcerpt = 6000

// overviewSample bounds how many precedents the overview prompt lists.
const overviewSample = 200

const precedentSummaryPrompt = `다음 판결문을 2~3문장으로 요약하라. 사건의 사실관계(업종, 사고 유형, 도급 관계), 적용 법조, 결론(유무죄와 형량)을 구체적으로 적고, 판결문에 없는 내용은 추측하지 마라.

사건: %s %s
법원: %s
선고일: %s

` + "```\n%s\n```"

const overviewPrompt = `You are a legal analyst reviewing a corpus of Korean court decisions on workplace safety. Based ONLY on the case list and summaries provided below, write a concise overview of the corpus in Markdown.

Rules:
- ONLY describe what you can directly observe in the provided list
- Do NOT guess outcomes or facts that aren't shown
- Use the case names, courts, dates, and summaries to identify themes

Cover:
1. What the corpus contains (one paragraph: courts, date range, offences)
2. Recurring accident types, industries, and contracting patterns (bullet points)
3. Notable holdings on management responsibility, if the summaries show any

Keep it under 300 words.
`

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "\n…"
}

// summarizePrecedents generates summaries for precedents that don't have one yet.
func summarizePrecedents(ctx context.Context, s store.Store, chat llm.Generator, progress ProgressFunc) error {
	list, err := s.ListPrecedents(store.ListFilter{})
	if err != nil {
		return fmt.Errorf("list precedents: %w", err)
	}

	var pending []store.PrecedentSummary
	for _, p := range list {
		if p.Summary == "" {
			pending = append(pending, p)
		}
	}

	for i, ps := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		progress("Summarizing "+ps.DocID+"...", i, len(pending))

		p, err := s.GetPrecedent(ps.DocID)
		if err != nil {
			return fmt.Errorf("get %s: %w", ps.DocID, err)
		}
		if strings.TrimSpace(p.Body) == "" {
			continue
		}

		prompt := fmt.Sprintf(precedentSummaryPrompt, p.CaseNo, p.CaseName, p.Court, p.DecisionDateISO, excerpt(p.Body, summaryExcerpt))
		summary, err := chat.Generate(ctx, []llm.Message{{Role: "user", Content: prompt}})
		if err != nil {
			return fmt.Errorf("summarize %s: %w", p.DocID, err)
		}

		if err := s.SetPrecedentSummary(p.DocID, strings.TrimSpace(summary)); err != nil {
			return fmt.Errorf("save summary for %s: %w", p.DocID, err)
		}
	}

	return nil
}

// synthesizeOverview combines the case list and summaries into a corpus-level overview.
func synthesizeOverview(ctx context.Context, s store.Store, chat llm.Generator) (string, error) {
	list, err := s.ListPrecedents(store.ListFilter{Limit: overviewSample})
	if err != nil {
		return "", fmt.Errorf("list precedents: %w", err)
	}
	if len(list) == 0 {
		return "", fmt.Errorf("no precedents indexed")
	}

	var b strings.Builder
	b.WriteString(overviewPrompt)
	b.WriteString("\n## Cases\n\n")

	for _, p := range list {
		fmt.Fprintf(&b, "### %s %s  (%s, %s, %d chunks)\n", p.CaseNo, p.CaseName, p.Court, p.DecisionDateISO, p.Chunks)
		if p.Summary != "" {
			fmt.Fprintf(&b, "Summary: %s\n", p.Summary)
		}
		b.WriteString("\n")
	}

	return chat.Generate(ctx, []llm.Message{{Role: "user", Content: b.String()}})
}

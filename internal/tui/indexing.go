package tui

import (
	"context"
	"fmt"
	"runtime"

	"safeon/internal/index"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// maxShownWarnings caps the warnings listed on the indexing screen.
const maxShownWarnings = 5

type indexingModel struct {
	spinner   spinner.Model
	docsPath  string
	phase     string
	processed int
	total     int
	warnings  []string
	done      bool
	stats     *index.Stats
	err       error
}

func newIndexingModel(docsPath string) indexingModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = selectedStyle
	return indexingModel{
		spinner:  sp,
		docsPath: docsPath,
		phase:    "Indexing precedents...",
	}
}

// indexDoneMsg is sent when indexing completes.
type indexDoneMsg struct {
	stats *index.Stats
	err   error
}

// indexProgressMsg is sent periodically during indexing.
type indexProgressMsg struct {
	phase     string
	processed int
	total     int
}

// indexWarningMsg carries a non-fatal indexing failure.
type indexWarningMsg struct {
	err error
}

func runIndex(cfg Config) tea.Cmd {
	return func() tea.Msg {
		idx, err := index.New(index.Config{
			DBPath:       cfg.DBPath,
			OllamaURL:    cfg.OllamaURL,
			Model:        cfg.Model,
			Workers:      runtime.NumCPU(),
			SummaryModel: cfg.ChatModel,
			OnProgress: func(phase string, processed, total int) {
				cfg.program.send(indexProgressMsg{phase: phase, processed: processed, total: total})
			},
			OnWarning: func(err error) {
				cfg.program.send(indexWarningMsg{err: err})
			},
		})
		if err != nil {
			return indexDoneMsg{err: err}
		}
		defer idx.Close()

		stats, err := idx.Index(context.Background(), cfg.DocsPath)
		return indexDoneMsg{stats: stats, err: err}
	}
}

func (m indexingModel) Update(msg tea.Msg) (indexingModel, tea.Cmd) {
	switch msg := msg.(type) {
	case indexDoneMsg:
		m.done = true
		m.stats = msg.stats
		m.err = msg.err
		return m, nil
	case indexProgressMsg:
		m.phase = msg.phase
		m.processed = msg.processed
		m.total = msg.total
		return m, nil
	case indexWarningMsg:
		m.warnings = append(m.warnings, msg.err.Error())
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m indexingModel) viewWarnings() string {
	if len(m.warnings) == 0 {
		return ""
	}
	s := warnStyle.Render(fmt.Sprintf("  %d warnings", len(m.warnings))) + "\n"
	shown := m.warnings
	if len(shown) > maxShownWarnings {
		shown = shown[len(shown)-maxShownWarnings:]
	}
	for _, w := range shown {
		s += dimStyle.Render("    "+w) + "\n"
	}
	return s + "\n"
}

func (m indexingModel) View(width, height int) string {
	s := "\n"
	s += titleStyle.Render("  Indexing") + "\n"
	s += dimStyle.Render("  "+m.docsPath) + "\n\n"

	if m.done {
		if m.err != nil {
			s += errorStyle.Render(fmt.Sprintf("  Error: %v", m.err)) + "\n\n"
			s += m.viewWarnings()
			s += dimStyle.Render("  Press Enter to continue to chat anyway, or q to quit.") + "\n"
			return s
		}
		s += successStyle.Render("  ✓ Indexing complete!") + "\n\n"
		if m.stats != nil {
			s += fmt.Sprintf("  Files: %d\n", m.stats.Files)
			s += fmt.Sprintf("  Precedents: %d total, %d indexed, %d unchanged\n",
				m.stats.DocsTotal, m.stats.DocsIndexed, m.stats.DocsSkipped)
			s += fmt.Sprintf("  Chunks: %d\n", m.stats.ChunksTotal)
		}
		s += "\n"
		s += m.viewWarnings()
		s += dimStyle.Render("  Press Enter to start chatting") + "\n"
		return s
	}

	s += fmt.Sprintf("  %s %s\n", m.spinner.View(), m.phase)
	if m.total > 0 {
		s += fmt.Sprintf("  %d / %d precedents processed\n", m.processed, m.total)
	}
	s += "\n"
	s += m.viewWarnings()
	s += dimStyle.Render("  Embedding a full corpus may take a while...") + "\n"
	return s
}

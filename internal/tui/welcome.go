package tui

import (
	"fmt"
	"os"

	"safeon/internal/store"

	tea "github.com/charmbracelet/bubbletea"
)

type indexStatus int

const (
	indexNotFound indexStatus = iota
	indexReady
	indexStale
)

type welcomeModel struct {
	status      indexStatus
	staleReason string
	precedents  int
	latest      string
	ready       bool // true once the check has completed
}

// checkIndexMsg is sent after checking the index status.
type checkIndexMsg struct {
	status      indexStatus
	staleReason string
	precedents  int
	latest      string
	err         error
}

func checkIndex(cfg Config) tea.Cmd {
	return func() tea.Msg {
		if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
			return checkIndexMsg{status: indexNotFound}
		}

		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return checkIndexMsg{status: indexNotFound, err: err}
		}
		defer st.Close()

		lastModel, err := st.GetMeta("embedding_model")
		if err != nil || lastModel == "" {
			return checkIndexMsg{status: indexNotFound}
		}

		list, err := st.ListPrecedents(store.ListFilter{})
		if err != nil {
			return checkIndexMsg{status: indexNotFound, err: err}
		}
		msg := checkIndexMsg{status: indexReady, precedents: len(list)}
		if len(list) > 0 {
			msg.latest = list[0].DecisionDateISO
		}

		if lastModel != cfg.Model {
			msg.status = indexStale
			msg.staleReason = fmt.Sprintf("model changed: %s → %s", lastModel, cfg.Model)
		} else if len(list) == 0 {
			msg.status = indexNotFound
		}
		return msg
	}
}

func (m welcomeModel) Update(msg tea.Msg) (welcomeModel, tea.Cmd) {
	switch msg := msg.(type) {
	case checkIndexMsg:
		m.status = msg.status
		m.staleReason = msg.staleReason
		m.precedents = msg.precedents
		m.latest = msg.latest
		m.ready = true
	}
	return m, nil
}

func (m welcomeModel) View(width, height int) string {
	s := "\n"
	s += titleStyle.Render("  ◆ SafeOn") + "\n"
	s += subtitleStyle.Render("  Serious-accident precedent research powered by RAG") + "\n\n"

	if !m.ready {
		s += dimStyle.Render("  Checking index...") + "\n"
		return s
	}

	switch m.status {
	case indexReady:
		s += successStyle.Render("  ✓ Index ready") + "\n"
	case indexNotFound:
		s += warnStyle.Render("  ✗ No index found") + "\n"
	case indexStale:
		s += warnStyle.Render("  ⚠ Index stale") + "\n"
		s += dimStyle.Render("    "+m.staleReason) + "\n"
	}
	if m.precedents > 0 {
		line := fmt.Sprintf("    %d precedents", m.precedents)
		if m.latest != "" {
			line += ", latest decision " + m.latest
		}
		s += dimStyle.Render(line) + "\n"
	}

	s += "\n"
	if m.status == indexReady {
		s += dimStyle.Render("  Press Enter to chat, r to re-index") + "\n"
	} else {
		s += dimStyle.Render("  Press Enter to build the index") + "\n"
	}
	return s
}

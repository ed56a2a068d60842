package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

type setupPage int

const (
	setupPageEmbed setupPage = iota
	setupPageChat
)

// modelPicker is a cursor over one list of Ollama models.
type modelPicker struct {
	title  string
	hint   string
	models []OllamaModel
	cursor int
}

func (p *modelPicker) move(delta int) {
	p.cursor = max(0, min(len(p.models)-1, p.cursor+delta))
}

func (p *modelPicker) focus(name string) {
	for i, m := range p.models {
		if m.Name == name {
			p.cursor = i
			return
		}
	}
}

func (p modelPicker) selected() string {
	if p.cursor < len(p.models) {
		return p.models[p.cursor].Name
	}
	return ""
}

func (p modelPicker) view(action string) string {
	s := titleStyle.Render("  "+p.title) + "\n"
	s += dimStyle.Render("  "+p.hint) + "\n\n"
	for i, model := range p.models {
		cursor := "  "
		style := listItemStyle
		if i == p.cursor {
			cursor = "▸ "
			style = selectedStyle
		}
		s += fmt.Sprintf("  %s%s\n", cursor, style.Render(model.Label()))
	}
	s += "\n"
	s += helpStyle.Render("  ↑/↓ navigate • Enter "+action) + "\n"
	return s
}

type setupModel struct {
	embed  modelPicker
	chat   modelPicker
	page   setupPage
	total  int
	loaded bool
	err    error
}

// fetchModelsMsg is sent when models have been fetched from Ollama.
type fetchModelsMsg struct {
	models []OllamaModel
	err    error
}

func fetchModels(baseURL string) tea.Cmd {
	return func() tea.Msg {
		models, err := ListModels(context.Background(), baseURL)
		return fetchModelsMsg{models: models, err: err}
	}
}

// splitModels partitions models into embedding and chat lists. An empty side
// falls back to every model.
func splitModels(models []OllamaModel) (embed, chat []OllamaModel) {
	for _, model := range models {
		if model.IsEmbedding() {
			embed = append(embed, model)
		} else {
			chat = append(chat, model)
		}
	}
	if len(embed) == 0 {
		embed = models
	}
	if len(chat) == 0 {
		chat = models
	}
	return embed, chat
}

func (m setupModel) Update(msg tea.Msg, cfg Config) (setupModel, tea.Cmd) {
	switch msg := msg.(type) {
	case fetchModelsMsg:
		m.loaded = true
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.total = len(msg.models)
		embed, chat := splitModels(msg.models)
		m.embed = modelPicker{
			title:  "Select Embedding Model",
			hint:   "Used to embed precedent chunks and questions",
			models: embed,
		}
		m.chat = modelPicker{
			title:  "Select Chat Model",
			hint:   "Used for answers, precedent summaries, and the corpus overview",
			models: chat,
		}
		m.embed.focus(cfg.Model)
		m.chat.focus(cfg.ChatModel)

	case tea.KeyMsg:
		if !m.ready() {
			return m, nil
		}
		p := &m.embed
		if m.page == setupPageChat {
			p = &m.chat
		}
		switch msg.String() {
		case "up", "k":
			p.move(-1)
		case "down", "j":
			p.move(1)
		}
	}
	return m, nil
}

// ready reports whether models are loaded and selectable.
func (m setupModel) ready() bool {
	return m.loaded && m.err == nil && m.total > 0
}

// advancePage moves from embed page to chat page. Returns true if it advanced.
func (m *setupModel) advancePage() bool {
	if m.page == setupPageEmbed {
		m.page = setupPageChat
		return true
	}
	return false
}

func (m setupModel) View(width, height int) string {
	s := "\n"

	switch {
	case !m.loaded:
		s += titleStyle.Render("  Model Selection") + "\n\n"
		s += dimStyle.Render("  Fetching models from Ollama...") + "\n"
	case m.err != nil:
		s += titleStyle.Render("  Model Selection") + "\n\n"
		s += errorStyle.Render(fmt.Sprintf("  Error: %v", m.err)) + "\n\n"
		s += dimStyle.Render("  Make sure Ollama is running and try again.") + "\n"
		s += dimStyle.Render("  Press q to quit.") + "\n"
	case m.total == 0:
		s += titleStyle.Render("  Model Selection") + "\n\n"
		s += warnStyle.Render("  No models found in Ollama.") + "\n"
		s += dimStyle.Render("  Pull a model first: ollama pull nomic-embed-text") + "\n"
	case m.page == setupPageEmbed:
		s += m.embed.view("select")
	default:
		s += m.chat.view("start indexing")
	}

	return s
}

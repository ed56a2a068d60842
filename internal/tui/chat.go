package tui

import (
	"context"
	"fmt"
	"strings"

	"safeon/internal/embedder"
	"safeon/internal/llm"
	"safeon/internal/rag"
	"safeon/internal/store"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// maxHistory bounds the conversation replayed to the model.
const maxHistory = 20

type chatState int

const (
	chatIdle chatState = iota
	chatSearching
	chatGenerating
)

type chatModel struct {
	viewport    viewport.Model
	input       textinput.Model
	spinner     spinner.Model
	renderer    *glamour.TermRenderer
	messages    []chatMessage
	history     []llm.Message
	st          store.Store
	emb         rag.QueryEmbedder
	chat        llm.Generator
	overview    string
	state       chatState
	k           int
	width       int
	height      int
	initialized bool
}

type chatMessage struct {
	role    string
	content string
}

// retrievedMsg is sent when retrieval for a question completes.
type retrievedMsg struct {
	question string
	chunks   []store.SearchResult
	err      error
}

// answerMsg is sent when generation completes.
type answerMsg struct {
	answer  string
	sources []string
	err     error
}

func newChatModel(st store.Store, ollamaURL, embedModel, chatModelName, overview string, k int) chatModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = selectedStyle

	ti := textinput.New()
	ti.Placeholder = "판례에 대해 질문하세요 (예: 하청 추락사고 원청 책임)..."
	ti.CharLimit = 2000
	ti.Focus()

	return chatModel{
		spinner:  sp,
		input:    ti,
		st:       st,
		emb:      embedder.NewOllamaEmbedder(ollamaURL, embedModel, embedder.WithDimension(store.EmbeddingDim)),
		chat:     llm.NewOllamaChat(ollamaURL, chatModelName),
		overview: overview,
		k:        k,
		state:    chatIdle,
	}
}

func (m *chatModel) initViewport(width, height int) {
	m.width = width
	m.height = height

	// Layout: viewport + status bar (1 line) + input (1 line) + gap (1 line).
	vpHeight := max(height-3, 5)
	m.viewport = viewport.New(width, vpHeight)
	m.viewport.SetContent(dimStyle.Render("Welcome to SafeOn chat! Ask about serious-accident precedents.\n\nCommands: /help, /clear, /exit"))

	m.input.Width = width - 4

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-2),
	)
	if err == nil {
		m.renderer = r
	}

	m.initialized = true
}

func retrieve(question string, st store.Store, emb rag.QueryEmbedder, k int) tea.Cmd {
	return func() tea.Msg {
		chunks, err := rag.HybridRetrieve(context.Background(), question, st, emb, k)
		if err != nil {
			return retrievedMsg{err: fmt.Errorf("retrieval error: %w", err)}
		}
		return retrievedMsg{question: question, chunks: chunks}
	}
}

func generate(msg retrievedMsg, chat llm.Generator, history []llm.Message, overview string) tea.Cmd {
	return func() tea.Msg {
		msgs := rag.BuildMessages(msg.chunks, history, msg.question, overview)
		answer, err := chat.Generate(context.Background(), msgs)
		if err != nil {
			return answerMsg{err: fmt.Errorf("generation error: %w", err)}
		}
		return answerMsg{answer: answer, sources: rag.Citations(msg.chunks)}
	}
}

func (m *chatModel) refresh() {
	m.viewport.SetContent(m.renderMessages())
	m.viewport.GotoBottom()
}

func (m chatModel) Update(msg tea.Msg) (chatModel, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.initViewport(msg.Width, msg.Height)
		m.refresh()
		return m, nil

	case retrievedMsg:
		if msg.err != nil {
			m.state = chatIdle
			m.messages = append(m.messages, chatMessage{role: "error", content: msg.err.Error()})
			m.refresh()
			return m, nil
		}
		m.state = chatGenerating
		m.refresh()
		return m, generate(msg, m.chat, m.history[:len(m.history)-1], m.overview)

	case answerMsg:
		m.state = chatIdle
		if msg.err != nil {
			m.messages = append(m.messages, chatMessage{role: "error", content: msg.err.Error()})
		} else {
			m.messages = append(m.messages, chatMessage{role: "assistant", content: msg.answer})
			if len(msg.sources) > 0 {
				m.messages = append(m.messages, chatMessage{role: "sources", content: strings.Join(msg.sources, "\n")})
			}
			m.history = append(m.history, llm.Message{Role: "assistant", Content: msg.answer})
			if len(m.history) > maxHistory {
				m.history = m.history[len(m.history)-maxHistory:]
			}
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if m.state != chatIdle {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			m.refresh()
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		if m.state != chatIdle {
			return m, nil
		}
		if msg.Type == tea.KeyEnter {
			question := strings.TrimSpace(m.input.Value())
			if question == "" {
				return m, nil
			}
			m.input.Reset()

			switch question {
			case "/exit", "/quit":
				return m, tea.Quit
			case "/clear":
				m.messages = nil
				m.history = nil
				m.viewport.SetContent(dimStyle.Render("Conversation cleared."))
				return m, nil
			case "/help":
				helpText := "Commands:\n  /clear  - clear conversation history\n  /exit   - quit\n  /help   - show this help"
				m.messages = append(m.messages, chatMessage{role: "system", content: helpText})
				m.refresh()
				return m, nil
			}

			m.messages = append(m.messages, chatMessage{role: "user", content: question})
			m.history = append(m.history, llm.Message{Role: "user", Content: question})
			m.state = chatSearching
			m.refresh()

			return m, tea.Batch(m.spinner.Tick, retrieve(question, m.st, m.emb, m.k))
		}
	}

	if m.state == chatIdle {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m chatModel) renderMarkdown(content string) string {
	if m.renderer == nil {
		return assistantMsgStyle.Render(content)
	}
	rendered, err := m.renderer.Render(content)
	if err != nil {
		return assistantMsgStyle.Render(content)
	}
	return strings.TrimRight(rendered, "\n")
}

func (m chatModel) renderMessages() string {
	var sb strings.Builder
	for _, msg := range m.messages {
		switch msg.role {
		case "user":
			sb.WriteString(userMsgStyle.Render("You: ") + msg.content + "\n\n")
		case "assistant":
			sb.WriteString(m.renderMarkdown(msg.content) + "\n\n")
		case "error":
			sb.WriteString(errorStyle.Render("Error: "+msg.content) + "\n\n")
		case "system":
			sb.WriteString(dimStyle.Render(msg.content) + "\n\n")
		case "sources":
			sb.WriteString(dimStyle.Render("Sources:") + "\n")
			for _, line := range strings.Split(msg.content, "\n") {
				sb.WriteString(citationStyle.Render("• "+line) + "\n")
			}
			sb.WriteString("\n")
		}
	}

	if m.state != chatIdle {
		sb.WriteString(m.spinner.View() + " " + dimStyle.Render(m.stateLabel()) + "\n")
	}

	return sb.String()
}

func (m chatModel) stateLabel() string {
	switch m.state {
	case chatSearching:
		return "Searching precedents..."
	case chatGenerating:
		return "Generating..."
	}
	return "idle"
}

func (m chatModel) View(width, height int) string {
	if !m.initialized {
		return ""
	}

	statusBar := statusBarStyle.
		Width(m.width).
		Render(fmt.Sprintf(" safeon chat • %s • k=%d", strings.ToLower(m.stateLabel()), m.k))

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.viewport.View(),
		statusBar,
		m.input.View(),
	)
}

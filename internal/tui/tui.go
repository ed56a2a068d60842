package tui

import (
	"os"
	"path/filepath"

	"safeon/internal/index"
	"safeon/internal/store"

	tea "github.com/charmbracelet/bubbletea"
)

// DefaultK is how many excerpts the chat retrieves per question.
const DefaultK = 10

// ViewState represents which screen is active.
type ViewState int

const (
	ViewWelcome ViewState = iota
	ViewSetup
	ViewIndexing
	ViewChat
)

// programRef is an indirect pointer to the tea.Program so background goroutines
// can send messages. It must be set after tea.NewProgram returns but before Run.
type programRef struct {
	p *tea.Program
}

func (r *programRef) send(msg tea.Msg) {
	if r != nil && r.p != nil {
		r.p.Send(msg)
	}
}

// Config holds configuration passed from the CLI layer.
type Config struct {
	DBPath string
	// DocsPath is the JSON Lines file or directory indexed from the setup screen.
	DocsPath  string
	OllamaURL string
	Model     string
	ChatModel string
	K         int

	// program is set internally so background goroutines can send messages.
	program *programRef
}

func (c Config) withDefaults() Config {
	wd, _ := os.Getwd()
	if c.DBPath == "" {
		c.DBPath = filepath.Join(wd, ".safeon", "index.db")
	}
	if c.DocsPath == "" {
		c.DocsPath = wd
	}
	if c.K <= 0 {
		c.K = DefaultK
	}
	return c
}

// Model is the top-level Bubble Tea model.
type Model struct {
	state  ViewState
	config Config
	width  int
	height int

	welcome  welcomeModel
	setup    setupModel
	indexing indexingModel
	chat     chatModel
	err      error
}

// New creates a new TUI model with the given config.
func New(cfg Config) Model {
	return Model{
		state:  ViewWelcome,
		config: cfg.withDefaults(),
	}
}

func (m Model) Init() tea.Cmd {
	return checkIndex(m.config)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.state == ViewChat {
			var c tea.Cmd
			m.chat, c = m.chat.Update(msg)
			return m, c
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q":
			if m.state != ViewChat {
				return m, tea.Quit
			}
		}
	}

	var cmd tea.Cmd

	switch m.state {
	case ViewWelcome:
		m.welcome, cmd = m.welcome.Update(msg)
		if cmd != nil {
			return m, cmd
		}
		if keyMsg, ok := msg.(tea.KeyMsg); ok && m.welcome.ready {
			switch {
			case keyMsg.Type == tea.KeyEnter && m.welcome.status == indexReady:
				return m, m.transitionToChat()
			case keyMsg.Type == tea.KeyEnter, keyMsg.String() == "r":
				m.state = ViewSetup
				m.setup = setupModel{}
				return m, fetchModels(m.config.OllamaURL)
			}
		}

	case ViewSetup:
		m.setup, cmd = m.setup.Update(msg, m.config)
		if cmd != nil {
			return m, cmd
		}
		if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEnter && m.setup.ready() {
			if m.setup.advancePage() {
				return m, nil
			}
			if sel := m.setup.embed.selected(); sel != "" {
				m.config.Model = sel
			}
			if sel := m.setup.chat.selected(); sel != "" {
				m.config.ChatModel = sel
			}
			m.state = ViewIndexing
			m.indexing = newIndexingModel(m.config.DocsPath)
			return m, tea.Batch(m.indexing.spinner.Tick, runIndex(m.config))
		}

	case ViewIndexing:
		m.indexing, cmd = m.indexing.Update(msg)
		if cmd != nil {
			return m, cmd
		}
		if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEnter && m.indexing.done {
			return m, m.transitionToChat()
		}

	case ViewChat:
		m.chat, cmd = m.chat.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) transitionToChat() tea.Cmd {
	st, err := store.Open(m.config.DBPath)
	if err != nil {
		m.err = err
		return nil
	}

	overview := index.LoadOverview(m.config.DBPath)
	m.chat = newChatModel(st, m.config.OllamaURL, m.config.Model, m.config.ChatModel, overview, m.config.K)
	m.chat.initViewport(m.width, m.height)
	m.state = ViewChat

	return nil
}

func (m Model) View() string {
	if m.err != nil {
		return errorStyle.Render("Error: "+m.err.Error()) + "\n"
	}

	switch m.state {
	case ViewWelcome:
		return m.welcome.View(m.width, m.height)
	case ViewSetup:
		return m.setup.View(m.width, m.height)
	case ViewIndexing:
		return m.indexing.View(m.width, m.height)
	case ViewChat:
		return m.chat.View(m.width, m.height)
	}
	return ""
}

// Run starts the TUI program.
func Run(cfg Config) error {
	ref := &programRef{}
	cfg.program = ref
	model := New(cfg)
	p := tea.NewProgram(model, tea.WithAltScreen())
	ref.p = p
	final, err := p.Run()
	if fm, ok := final.(Model); ok && fm.chat.st != nil {
		fm.chat.st.Close()
	}
	return err
}

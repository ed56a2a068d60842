package tui

import "github.com/charmbracelet/lipgloss"

// Safety-signage palette: amber for headings and focus, green for ready
// states, red for failures.
const (
	colorAmber = lipgloss.Color("214")
	colorGreen = lipgloss.Color("42")
	colorRed   = lipgloss.Color("160")
	colorText  = lipgloss.Color("252")
	colorMuted = lipgloss.Color("244")
	colorFaint = lipgloss.Color("240")
	colorBar   = lipgloss.Color("235")
	colorLink  = lipgloss.Color("75")
)

var (
	titleStyle        = lipgloss.NewStyle().Bold(true).Foreground(colorAmber)
	subtitleStyle     = lipgloss.NewStyle().Foreground(colorMuted)
	successStyle      = lipgloss.NewStyle().Foreground(colorGreen)
	errorStyle        = lipgloss.NewStyle().Bold(true).Foreground(colorRed)
	warnStyle         = lipgloss.NewStyle().Foreground(colorAmber)
	dimStyle          = lipgloss.NewStyle().Foreground(colorFaint)
	userMsgStyle      = lipgloss.NewStyle().Bold(true).Foreground(colorAmber)
	assistantMsgStyle = lipgloss.NewStyle().Foreground(colorText)
	selectedStyle     = lipgloss.NewStyle().Bold(true).Foreground(colorAmber)
	listItemStyle     = lipgloss.NewStyle().Foreground(colorText)
	helpStyle         = lipgloss.NewStyle().Foreground(colorFaint)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Background(colorBar).
			Padding(0, 1)

	// citationStyle renders the case labels listed under an answer.
	citationStyle = lipgloss.NewStyle().
			Foreground(colorLink).
			PaddingLeft(2)
)

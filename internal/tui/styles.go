package tui

import "github.com/charmbracelet/lipgloss"

var (
	ColorNavy  = lipgloss.Color("#1B2A49")
	ColorWhite = lipgloss.Color("#FFFFFF")
	ColorBlack = lipgloss.Color("#000000")
	ColorDim   = lipgloss.Color("244")

	// paperStyle renders braille ink black on white, like the e-paper panel.
	paperStyle = lipgloss.NewStyle().
			Foreground(ColorBlack).
			Background(ColorWhite)

	statusStyle = lipgloss.NewStyle().
			Background(ColorNavy).
			Foreground(ColorWhite)

	chartTitleStyle = lipgloss.NewStyle().
			Foreground(ColorWhite).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(ColorDim)

	outcomeColors = map[string]lipgloss.Color{
		"rendered":        lipgloss.Color("#44FF44"),
		"server_error":    lipgloss.Color("#FFAA00"),
		"transport_error": lipgloss.Color("208"),
		"malformed":       lipgloss.Color("201"),
		"fatal":           lipgloss.Color("#FF4444"),
	}
)

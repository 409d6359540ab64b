package tui

import "github.com/charmbracelet/lipgloss"

// Styles groups the lipgloss styles of the chat view.
type Styles struct {
	Title        lipgloss.Style
	Subtitle     lipgloss.Style
	Disconnected lipgloss.Style
	UserLabel    lipgloss.Style
	BotLabel     lipgloss.Style
	Timestamp    lipgloss.Style
	Typing       lipgloss.Style
	Status       lipgloss.Style
	Help         lipgloss.Style
}

// DefaultStyles mirrors the blue and gold EURO-Bot palette.
func DefaultStyles() Styles {
	return Styles{
		Title:        lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFD700")).Background(lipgloss.Color("#003366")).Padding(0, 2),
		Subtitle:     lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#A9C7E8")),
		Disconnected: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#FF4757")).Padding(0, 1),
		UserLabel:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00509E")),
		BotLabel:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFD700")),
		Timestamp:    lipgloss.NewStyle().Faint(true),
		Typing:       lipgloss.NewStyle().Foreground(lipgloss.Color("#A9C7E8")),
		Status:       lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4757")),
		Help:         lipgloss.NewStyle().Faint(true),
	}
}

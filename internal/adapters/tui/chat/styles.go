package chat

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title   lipgloss.Style
	ready   lipgloss.Style
	busy    lipgloss.Style
	spinner lipgloss.Style
	notice  lipgloss.Style
	warning lipgloss.Style
	input   lipgloss.Style
	footer  lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")),
		ready:   lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		busy:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		spinner: lipgloss.NewStyle().Foreground(lipgloss.Color("213")),
		notice:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		warning: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		input: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("241")).
			Padding(0, 1),
		footer: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

package transcript

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title     lipgloss.Style
	header    lipgloss.Style
	user      lipgloss.Style
	assistant lipgloss.Style
	timestamp lipgloss.Style
	content   lipgloss.Style
	failure   lipgloss.Style
	section   lipgloss.Style
	empty     lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:     lipgloss.NewStyle().Bold(true),
		header:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		user:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		assistant: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")),
		timestamp: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		content:   lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		failure:   lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		section:   lipgloss.NewStyle().MarginTop(1),
		empty:     lipgloss.NewStyle().Faint(true),
	}
}

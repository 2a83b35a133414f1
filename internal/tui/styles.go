package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	pausedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("220"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	headerRowStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("250")).
			Underline(true)

	selectedRowStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("229")).
				Background(lipgloss.Color("57"))

	kindIntegerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	kindFloatStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	kindStringStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))

	barStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Background(lipgloss.Color("39"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

func kindStyle(kind string) lipgloss.Style {
	switch kind {
	case "integer":
		return kindIntegerStyle
	case "float":
		return kindFloatStyle
	default:
		return kindStringStyle
	}
}

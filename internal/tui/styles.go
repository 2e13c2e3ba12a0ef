package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"}
	colorDim     = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#626262"}
	colorAccent  = lipgloss.AdaptiveColor{Light: "#F25D94", Dark: "#F25D94"}
	colorGreen   = lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#25D366"}
	colorError   = lipgloss.AdaptiveColor{Light: "#D70000", Dark: "#FF5F5F"}

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary).
			PaddingLeft(1)

	itemTitleStyle = lipgloss.NewStyle().
			Foreground(colorPrimary)

	itemSelectedStyle = lipgloss.NewStyle().
				Foreground(colorAccent).
				Bold(true)

	itemFeedStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	itemTimeStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	detailTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorPrimary).
				MarginBottom(1)

	statusStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			PaddingLeft(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError).
			PaddingLeft(1)
)

package main

import "github.com/charmbracelet/lipgloss"

// Theme defines the visual styling for the otto dashboard.
type Theme struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Success   lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color
	Muted     lipgloss.Color
}

// DefaultTheme returns the default theme for otto dash.
func DefaultTheme() Theme {
	return Theme{
		Primary:   lipgloss.Color("12"),  // Blue
		Secondary: lipgloss.Color("14"),  // Cyan
		Success:   lipgloss.Color("10"),  // Green
		Warning:   lipgloss.Color("11"),  // Yellow
		Error:     lipgloss.Color("9"),   // Red
		Muted:     lipgloss.Color("240"), // Gray
	}
}

// kindColor maps an event kind to a theme color for the feed view.
func kindColor(theme Theme, kind string) lipgloss.Color {
	switch kind {
	case "call", "call_auto_answer", "call_utterance", "call_ended", "call_state":
		return theme.Primary
	case "notification":
		return theme.Secondary
	case "calendar_5min", "calendar_urgent":
		return theme.Warning
	case "handler_fault", "action_refused":
		return theme.Error
	case "action_executed", "engine_started":
		return theme.Success
	default:
		return theme.Muted
	}
}

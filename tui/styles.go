package tui

import (
	"github.com/charmbracelet/lipgloss"

	"yttitle/status"
)

type styles struct {
	title   lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	muted   lipgloss.Style
	panel   lipgloss.Style
	info    lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	error   lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		label:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		value:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252")),
		muted:   lipgloss.NewStyle().Faint(true),
		panel:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
		info:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		success: lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		warning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		error:   lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true),
	}
}

// SeverityStyle returns the colour used for a status line of the given severity.
func SeverityStyle(sev status.Severity) lipgloss.Style {
	s := newStyles()
	switch sev {
	case status.Success:
		return s.success
	case status.Warning:
		return s.warning
	case status.Error:
		return s.error
	default:
		return s.info
	}
}

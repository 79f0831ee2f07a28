package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"yttitle/status"
	"yttitle/tui"
)

var (
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle = tui.SeverityStyle(status.Error)
)

// printStatus writes the status line coloured by severity.
func printStatus(w io.Writer, st status.Status) {
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Status:"), tui.SeverityStyle(st.Severity).Render(st.Message))
}

func printField(w io.Writer, label, value string) {
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render(label+":"), value)
}

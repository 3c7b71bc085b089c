// internal/tui/badges.go
package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Info describes the loaded application for the header badges.
type Info struct {
	Model    string
	Backend  string
	Passages int
	TopK     int
}

// renderTitleBadge returns the Lipgloss-styled application title.
func renderTitleBadge() string {
	return lipgloss.NewStyle().Background(lipgloss.Color("62")).Foreground(lipgloss.Color("230")).Padding(0, 1).Render("Sage RAG Chat")
}

// renderStoreBadge returns a badge summarizing the knowledge store.
func renderStoreBadge(info Info) string {
	label := fmt.Sprintf("Store: %s | %d passages | top %d", info.Backend, info.Passages, info.TopK)
	return lipgloss.NewStyle().Background(lipgloss.Color("229")).Foreground(lipgloss.Color("0")).Padding(0, 1).MarginLeft(1).Render(label)
}

// renderModelBadge returns a badge naming the served model.
func renderModelBadge(info Info) string {
	return lipgloss.NewStyle().Background(lipgloss.Color("255")).Foreground(lipgloss.Color("0")).Padding(0, 1).MarginLeft(1).Render("Model: " + info.Model)
}

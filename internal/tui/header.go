package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// HeaderModel renders the top bar: title, version, location and server counts.
type HeaderModel struct {
	version string
	crumb   string
	running int
	total   int
	width   int
}

// NewHeaderModel creates a new header.
func NewHeaderModel(version string) HeaderModel {
	return HeaderModel{version: version}
}

// SetCrumb sets the location shown after the title ("lobby › Console").
func (h *HeaderModel) SetCrumb(crumb string) {
	h.crumb = crumb
}

// SetCounts updates the running and total server counts.
func (h *HeaderModel) SetCounts(running, total int) {
	h.running = running
	h.total = total
}

// SetWidth updates the available width.
func (h *HeaderModel) SetWidth(w int) {
	h.width = w
}

// View renders the header.
func (h HeaderModel) View() string {
	titleText := "Lodestone"
	if h.version != "" && h.version != "dev" {
		titleText += " " + h.version
	}
	left := titleStyle.Render(titleText)
	if h.crumb != "" {
		left += versionStyle.Render(" | ") + valueStyle.Render(h.crumb)
	}

	right := versionStyle.Render(fmt.Sprintf("%d/%d running", h.running, h.total))

	innerWidth := max(h.width-2, 0)
	gap := max(innerWidth-lipgloss.Width(left)-lipgloss.Width(right), 1)

	return headerStyle.Width(h.width).Render(left + spaces(gap) + right)
}

// spaces returns a string of n space characters.
func spaces(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat(" ", n)
}

package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

// FooterModel renders key hints and the latest status message.
type FooterModel struct {
	hints  []key.Binding
	status string
	isErr  bool
	width  int
}

// NewFooterModel creates a new footer.
func NewFooterModel() FooterModel {
	return FooterModel{}
}

// SetHints replaces the key hints.
func (f *FooterModel) SetHints(hints ...key.Binding) {
	f.hints = hints
}

// SetStatus shows an informational message.
func (f *FooterModel) SetStatus(text string) {
	f.status = text
	f.isErr = false
}

// SetError shows an error message.
func (f *FooterModel) SetError(text string) {
	f.status = text
	f.isErr = true
}

// Status returns the current message and whether it is an error.
func (f FooterModel) Status() (string, bool) {
	return f.status, f.isErr
}

// SetWidth updates the available width.
func (f *FooterModel) SetWidth(w int) {
	f.width = w
}

// View renders the footer.
func (f FooterModel) View() string {
	parts := make([]string, 0, len(f.hints))
	for _, h := range f.hints {
		help := h.Help()
		parts = append(parts, footerKeyStyle.Render(help.Key)+" "+footerDescStyle.Render(help.Desc))
	}
	left := " " + strings.Join(parts, "  ")

	if f.status == "" {
		return left
	}
	style := statusInfoStyle
	if f.isErr {
		style = statusErrorStyle
	}
	right := style.Render(f.status) + " "
	gap := f.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return left + "\n " + right
	}
	return left + spaces(gap) + right
}

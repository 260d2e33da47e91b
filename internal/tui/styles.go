package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/milndr/lodestone-server-manager/internal/server"
	"github.com/milndr/lodestone-server-manager/internal/ui"
)

// Style variables for the TUI.
// Initialized from the ui theme system via initTUIStyles().
var (
	panelStyle        lipgloss.Style
	headerStyle       lipgloss.Style
	titleStyle        lipgloss.Style
	versionStyle      lipgloss.Style
	labelStyle        lipgloss.Style
	valueStyle        lipgloss.Style
	selectedStyle     lipgloss.Style
	tabActiveStyle    lipgloss.Style
	tabInactiveStyle  lipgloss.Style
	consoleStyle      lipgloss.Style
	overlayStyle      lipgloss.Style
	footerKeyStyle    lipgloss.Style
	footerDescStyle   lipgloss.Style
	statusInfoStyle   lipgloss.Style
	statusErrorStyle  lipgloss.Style
	stateStoppedStyle lipgloss.Style
	stateActiveStyle  lipgloss.Style
	stateRunningStyle lipgloss.Style
	stateCrashedStyle lipgloss.Style
	cpuSparklineStyle lipgloss.Style
	memSparklineStyle lipgloss.Style
)

func init() {
	initTUIStyles()
}

// initTUIStyles rebuilds all TUI styles from the current ui theme.
// Called at package init, from Run() after InitTheme, and on theme toggles.
func initTUIStyles() {
	t := ui.GetCurrentTUITheme()

	panelStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Border).
		Foreground(t.Text)

	headerStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(t.Accent).
		Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(t.Accent)

	versionStyle = lipgloss.NewStyle().
		Foreground(t.Dim)

	labelStyle = lipgloss.NewStyle().
		Foreground(t.Dim)

	valueStyle = lipgloss.NewStyle().
		Foreground(t.Text).
		Bold(true)

	selectedStyle = lipgloss.NewStyle().
		Foreground(t.Accent).
		Bold(true)

	tabActiveStyle = lipgloss.NewStyle().
		Foreground(t.Accent).
		Bold(true).
		Underline(true).
		Padding(0, 1)

	tabInactiveStyle = lipgloss.NewStyle().
		Foreground(t.Dim).
		Padding(0, 1)

	consoleStyle = lipgloss.NewStyle().
		Foreground(t.Text)

	overlayStyle = lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(t.Warning).
		Foreground(t.Text).
		Padding(1, 3)

	footerKeyStyle = lipgloss.NewStyle().
		Foreground(t.Accent).
		Bold(true)

	footerDescStyle = lipgloss.NewStyle().
		Foreground(t.Dim)

	statusInfoStyle = lipgloss.NewStyle().
		Foreground(t.Info)

	statusErrorStyle = lipgloss.NewStyle().
		Foreground(t.Error).
		Bold(true)

	stateStoppedStyle = lipgloss.NewStyle().
		Foreground(t.Dim)

	stateActiveStyle = lipgloss.NewStyle().
		Foreground(t.Warning).
		Bold(true)

	stateRunningStyle = lipgloss.NewStyle().
		Foreground(t.Success).
		Bold(true)

	stateCrashedStyle = lipgloss.NewStyle().
		Foreground(t.Error).
		Bold(true)

	cpuSparklineStyle = lipgloss.NewStyle().
		Foreground(t.Accent)

	memSparklineStyle = lipgloss.NewStyle().
		Foreground(t.Warning)
}

// stateStyle returns the style used to render a server state.
func stateStyle(s server.State) lipgloss.Style {
	switch s {
	case server.Running:
		return stateRunningStyle
	case server.Starting, server.Stopping:
		return stateActiveStyle
	case server.Crashed:
		return stateCrashedStyle
	default:
		return stateStoppedStyle
	}
}

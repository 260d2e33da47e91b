// Package ui provides theme and color support shared by the CLI and the TUI.
// It defines the ANSI color schemes used by the REPL and the lipgloss palettes
// used by the TUI, and tracks which one is active.
package ui

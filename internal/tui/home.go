package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/milndr/lodestone-server-manager/internal/server"
)

// HomeModel lists the managed servers.
type HomeModel struct {
	servers []server.Status
	cursor  int
	width   int
	height  int
}

// SetServers replaces the listed servers, keeping the selection on the same
// name when it still exists.
func (h *HomeModel) SetServers(servers []server.Status) {
	selected, _ := h.Selected()
	h.servers = servers
	h.cursor = 0
	for i, s := range servers {
		if s.Name == selected {
			h.cursor = i
			break
		}
	}
}

// Selected returns the name under the cursor.
func (h HomeModel) Selected() (string, bool) {
	if h.cursor < 0 || h.cursor >= len(h.servers) {
		return "", false
	}
	return h.servers[h.cursor].Name, true
}

// Select moves the cursor to name.
func (h *HomeModel) Select(name string) {
	for i, s := range h.servers {
		if s.Name == name {
			h.cursor = i
			return
		}
	}
}

// MoveUp moves the cursor up one row.
func (h *HomeModel) MoveUp() {
	if h.cursor > 0 {
		h.cursor--
	}
}

// MoveDown moves the cursor down one row.
func (h *HomeModel) MoveDown() {
	if h.cursor < len(h.servers)-1 {
		h.cursor++
	}
}

// SetSize updates dimensions.
func (h *HomeModel) SetSize(w, hgt int) {
	h.width = w
	h.height = hgt
}

// View renders the server list.
func (h HomeModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Servers"))
	b.WriteString("\n\n")

	if len(h.servers) == 0 {
		b.WriteString(labelStyle.Render("No servers yet. Press n to create one."))
		return panelStyle.Width(max(h.width-2, 0)).Height(max(h.height-2, 0)).Render(b.String())
	}

	nameW, swW := len("Name"), len("Software")
	for _, s := range h.servers {
		nameW = max(nameW, lipgloss.Width(s.Name))
		swW = max(swW, lipgloss.Width(softwareLabel(s.Software)+" "+s.Version))
	}

	header := fmt.Sprintf("  %-*s   %-*s   %-8s   %s", nameW, "Name", swW, "Software", "State", "Players")
	b.WriteString(labelStyle.Render(header))
	b.WriteString("\n")

	for i, s := range h.servers {
		marker := "  "
		name := fmt.Sprintf("%-*s", nameW, s.Name)
		if i == h.cursor {
			marker = selectedStyle.Render("› ")
			name = selectedStyle.Render(name)
		}
		state := stateStyle(s.State).Render(fmt.Sprintf("%-8s", s.State))
		players := "-"
		if s.State == server.Running {
			players = fmt.Sprintf("%d", len(s.Players))
		}
		fmt.Fprintf(&b, "%s%s   %-*s   %s   %s\n", marker, name, swW, softwareLabel(s.Software)+" "+s.Version, state, players)
	}
	return panelStyle.Width(max(h.width-2, 0)).Height(max(h.height-2, 0)).Render(strings.TrimRight(b.String(), "\n"))
}

// softwareLabel capitalizes a software name for display ("paper" -> "Paper").
func softwareLabel(software string) string {
	if software == "" {
		return software
	}
	return strings.ToUpper(software[:1]) + software[1:]
}

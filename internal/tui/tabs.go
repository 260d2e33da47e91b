package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/milndr/lodestone-server-manager/internal/format"
	"github.com/milndr/lodestone-server-manager/internal/server"
)

// maxListedProperties bounds the property rows rendered around the cursor.
const maxListedProperties = 18

// View renders the server view: tab bar, the active tab and any overlay.
func (v ServerView) View(sched scheduleInfo) string {
	if v.srv == nil {
		return ""
	}
	tabs := make([]string, 0, tabCount)
	for t := range tabCount {
		if t == v.tab {
			tabs = append(tabs, tabActiveStyle.Render(t.String()))
		} else {
			tabs = append(tabs, tabInactiveStyle.Render(t.String()))
		}
	}
	bar := strings.Join(tabs, labelStyle.Render("│"))

	var body string
	switch v.tab {
	case tabOverview:
		body = v.overviewView()
	case tabPlayers:
		body = v.playersView()
	case tabProperties:
		body = v.propertiesView()
	case tabBackups:
		body = v.backupsView()
	case tabSettings:
		body = v.settingsView(sched)
	}

	content := lipgloss.JoinVertical(lipgloss.Left, bar, "", body)
	if v.confirmDelete {
		overlay := overlayStyle.Render(fmt.Sprintf("Delete server %s and all its files?\n\nThis cannot be undone. (y/n)", v.srv.Name()))
		content = lipgloss.JoinVertical(lipgloss.Left, content, "", overlay)
	}
	return panelStyle.Width(max(v.width-2, 0)).Height(max(v.height-2, 0)).Render(content)
}

func (v ServerView) overviewView() string {
	st := v.status
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s   %s %s %s",
		labelStyle.Render("State:"), stateStyle(st.State).Render(st.State.String()),
		labelStyle.Render("Software:"), softwareLabel(st.Software), st.Version)
	if st.State.Active() {
		fmt.Fprintf(&b, "   %s %s   %s %d",
			labelStyle.Render("Uptime:"), format.FormatUptime(st.Uptime),
			labelStyle.Render("Players:"), len(st.Players))
	}
	b.WriteString("\n")
	b.WriteString(v.statsLine())
	b.WriteString("\n")
	b.WriteString(consoleStyle.Render(v.console.View()))
	b.WriteString("\n")
	b.WriteString(v.input.View())
	return b.String()
}

// statsLine renders the CPU and RAM sparklines of the running process.
func (v ServerView) statsLine() string {
	if !v.hasStats {
		return labelStyle.Render("CPU: -   RAM: -")
	}
	chartW := max((v.width-50)/2, 8)
	maxGB, _ := v.srv.Memory()
	return fmt.Sprintf("%s %s %s   %s %s %s",
		labelStyle.Render("CPU:"), cpuSparklineStyle.Render(renderHistory(v.cpu, chartW)), valueStyle.Render(fmt.Sprintf("%5.1f%%", v.stats.CPUPercent)),
		labelStyle.Render("RAM:"), memSparklineStyle.Render(renderHistory(v.ram, chartW)),
		valueStyle.Render(fmt.Sprintf("%s / %d GB", format.FormatBytes(int64(v.stats.RSS)), maxGB)))
}

func (v ServerView) playersView() string {
	var b strings.Builder
	players := v.status.Players
	b.WriteString(titleStyle.Render(fmt.Sprintf("Online (%d)", len(players))))
	b.WriteString("\n")
	if len(players) == 0 {
		b.WriteString(labelStyle.Render("Nobody is online."))
	}
	for _, p := range players {
		b.WriteString("  " + p + "\n")
	}

	b.WriteString("\n" + titleStyle.Render(fmt.Sprintf("Operators (%d)", len(v.ops))) + "\n")
	if len(v.ops) == 0 {
		b.WriteString(labelStyle.Render("No operators."))
	}
	for _, op := range v.ops {
		fmt.Fprintf(&b, "  %-16s %s\n", op.Name, labelStyle.Render(fmt.Sprintf("level %d", op.Level)))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (v ServerView) propertiesView() string {
	var b strings.Builder
	if v.props == nil {
		if v.propErr != "" {
			return statusErrorStyle.Render(v.propErr)
		}
		return labelStyle.Render("No properties.")
	}

	keyW := 0
	for _, k := range v.propKeys {
		keyW = max(keyW, len(k))
	}
	pending := ""
	if n := len(v.dirty); n > 0 {
		pending = "   " + statusErrorStyle.Render(fmt.Sprintf("%d pending, press a to apply", n))
	}
	b.WriteString(titleStyle.Render(fmt.Sprintf("%d properties", len(v.propKeys))) + pending + "\n\n")

	start, end := window(v.propCursor, len(v.propKeys), maxListedProperties)
	for i := start; i < end; i++ {
		k := v.propKeys[i]
		mark := " "
		if v.dirty[k] {
			mark = "*"
		}
		value := v.props.Raw(k)
		if i == v.propCursor && v.editing {
			value = v.editor.View()
		}
		line := fmt.Sprintf("%s %-*s  %s", mark, keyW, k, value)
		if i == v.propCursor {
			line = selectedStyle.Render("›") + line
		} else {
			line = " " + line
		}
		b.WriteString(line + "\n")
	}
	if v.propErr != "" {
		b.WriteString("\n" + statusErrorStyle.Render(v.propErr))
	}
	return strings.TrimRight(b.String(), "\n")
}

// window returns the range of at most size rows around cursor.
func window(cursor, n, size int) (int, int) {
	if n <= size {
		return 0, n
	}
	start := max(cursor-size/2, 0)
	end := start + size
	if end > n {
		end = n
		start = n - size
	}
	return start, end
}

func (v ServerView) backupsView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Backups (%d)", len(v.archives))))
	if v.backingUp {
		b.WriteString("   " + statusInfoStyle.Render("backup in progress..."))
	}
	b.WriteString("\n\n")
	if v.backupsErr != "" {
		b.WriteString(statusErrorStyle.Render(v.backupsErr))
		return b.String()
	}
	if len(v.archives) == 0 {
		b.WriteString(labelStyle.Render("No backups yet. Press b to create one."))
		return b.String()
	}
	fmt.Fprintf(&b, "%s\n", labelStyle.Render(fmt.Sprintf("%-19s   %10s   %s", "Created", "Size", "File")))
	for _, a := range v.archives {
		fmt.Fprintf(&b, "%-19s   %10s   %s\n", a.Created.Local().Format(time.DateTime), format.FormatBytes(a.Size), filepath.Base(a.Path))
	}
	return strings.TrimRight(b.String(), "\n")
}

// scheduleInfo is what the settings tab shows about scheduled backups.
type scheduleInfo struct {
	spec string
	keep int
	next time.Time
}

func (v ServerView) settingsView(sched scheduleInfo) string {
	maxGB, minGB := v.srv.Memory()
	eula := statusErrorStyle.Render("not accepted")
	if v.srv.EULAAccepted() {
		eula = stateRunningStyle.Render("accepted")
	}
	schedule := "off"
	if sched.spec != "" {
		schedule = sched.spec
		if sched.keep > 0 {
			schedule += fmt.Sprintf(" (keep %d)", sched.keep)
		}
		if !sched.next.IsZero() {
			schedule += ", next " + sched.next.Local().Format(time.DateTime)
		}
	}

	rows := [][2]string{
		{"Path", v.srv.Dir()},
		{"Memory", memoryLabel(maxGB, minGB)},
		{"JVM args", strings.Join(v.srv.JVMArgs(), " ")},
		{"EULA", eula},
		{"Backups", schedule},
	}
	if v.status.State == server.Crashed {
		rows = append(rows, [2]string{"Exit code", fmt.Sprintf("%d", v.srv.LastExitCode())})
	}

	var b strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-10s", r[0]+":")), r[1])
	}
	b.WriteString("\n" + labelStyle.Render("e accept EULA   +/- memory   D delete server"))
	return b.String()
}

package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/cockroachdb/errors"
	"github.com/milndr/lodestone-server-manager/internal/backup"
	"github.com/milndr/lodestone-server-manager/internal/manager"
	"github.com/milndr/lodestone-server-manager/internal/ringbuf"
	"github.com/milndr/lodestone-server-manager/internal/server"
	"github.com/milndr/lodestone-server-manager/internal/sysmon"
)

type serverTab int

const (
	tabOverview serverTab = iota
	tabPlayers
	tabProperties
	tabBackups
	tabSettings
	tabCount
)

var tabNames = [tabCount]string{"Overview", "Players", "Properties", "Backups", "Settings"}

func (t serverTab) String() string { return tabNames[t] }

const (
	// consoleHistory is the number of console lines kept in the viewport.
	consoleHistory = 500
	// maxRAMGB bounds the memory that can be set from the settings tab.
	maxRAMGB = 64
	gib      = 1 << 30
)

// ServerView holds the state of the per-server screen.
type ServerView struct {
	srv    *server.Server
	status server.Status
	tab    serverTab

	console viewport.Model
	lines   *ringbuf.RingBuffer[string]
	input   textinput.Model

	cpu      *ringbuf.RingBuffer[float64]
	ram      *ringbuf.RingBuffer[float64]
	stats    sysmon.ProcessStats
	hasStats bool

	ops []server.Operator

	props      *server.Properties
	propKeys   []string
	propCursor int
	dirty      map[string]bool
	editing    bool
	editor     textinput.Model
	propErr    string

	archives   []backup.Archive
	backupsErr string
	backingUp  bool

	confirmDelete bool

	width  int
	height int
}

func newServerView(srv *server.Server, width, height int) ServerView {
	in := textinput.New()
	in.Prompt = "> "
	in.Placeholder = "console command"
	in.Focus()

	ed := textinput.New()
	ed.Prompt = "= "

	v := ServerView{
		srv:     srv,
		status:  srv.Status(),
		console: viewport.New(0, 0),
		lines:   ringbuf.New[string](consoleHistory),
		input:   in,
		editor:  ed,
		cpu:     ringbuf.New[float64](historySize),
		ram:     ringbuf.New[float64](historySize),
		dirty:   make(map[string]bool),
	}
	for _, line := range srv.Logs(consoleHistory) {
		v.lines.Push(line)
	}
	v.SetSize(width, height)
	v.syncConsole(true)
	return v
}

// SetSize updates dimensions and resizes the console viewport.
func (v *ServerView) SetSize(w, h int) {
	v.width = w
	v.height = h
	v.console.Width = max(w-4, 10)
	// tabs, status block, stats, input and borders
	v.console.Height = max(h-11, 3)
}

// syncConsole reloads the viewport content, following the tail when asked.
func (v *ServerView) syncConsole(follow bool) {
	v.console.SetContent(strings.Join(v.lines.Slice(), "\n"))
	if follow {
		v.console.GotoBottom()
	}
}

// appendLine adds a console line, following the tail if it was visible.
func (v *ServerView) appendLine(line string) {
	follow := v.console.AtBottom()
	v.lines.Push(line)
	v.syncConsole(follow)
}

// pushStats records a process sample in the charts.
func (v *ServerView) pushStats(st sysmon.ProcessStats) {
	v.stats, v.hasStats = st, true
	v.cpu.Push(st.CPUPercent)
	maxGB, _ := v.srv.Memory()
	if maxGB > 0 {
		v.ram.Push(float64(st.RSS) / float64(uint64(maxGB)*gib) * 100)
	}
}

func (v *ServerView) loadProperties() {
	v.propErr = ""
	props, err := v.srv.Properties()
	if err != nil {
		v.props, v.propKeys = nil, nil
		v.propErr = "Cannot read server.properties: " + err.Error()
		return
	}
	v.props = props
	v.propKeys = props.Keys()
	v.propCursor = min(v.propCursor, max(len(v.propKeys)-1, 0))
	clear(v.dirty)
}

func (v *ServerView) loadOperators() {
	v.ops = v.srv.OppedPlayers()
}

// openServer shows the server view of name.
func (m Model) openServer(name string) (Model, tea.Cmd) {
	srv, err := m.mgr.Get(name)
	if err != nil {
		m.footer.SetError(fmt.Sprintf("No server with name %s", name))
		return m, nil
	}
	m.view = newServerView(srv, m.width, m.bodyHeight())
	m.screen = screenServer
	return m, textinput.Blink
}

// switchTab moves to tab and loads the data it shows.
func (m Model) switchTab(tab serverTab) (Model, tea.Cmd) {
	v := &m.view
	v.tab = tab
	v.editing = false
	v.confirmDelete = false

	switch tab {
	case tabOverview:
		return m, v.input.Focus()
	case tabPlayers:
		v.input.Blur()
		v.loadOperators()
	case tabProperties:
		v.input.Blur()
		// Staged edits survive a tab switch until they are applied.
		if len(v.dirty) == 0 {
			v.loadProperties()
		}
	case tabBackups:
		v.input.Blur()
		return m, listBackupsCmd(m.opts.BackupsDir, v.srv.Name())
	default:
		v.input.Blur()
	}
	return m, nil
}

// updateServer handles key messages of the server view.
func (m Model) updateServer(msg tea.KeyMsg) (Model, tea.Cmd) {
	v := &m.view

	if v.confirmDelete {
		switch {
		case key.Matches(msg, m.keymap.Yes):
			v.confirmDelete = false
			return m, deleteServerCmd(m.mgr, v.srv.Name())
		case key.Matches(msg, m.keymap.No):
			v.confirmDelete = false
		}
		return m, nil
	}

	if v.editing {
		return m.updatePropertyEditor(msg)
	}

	switch {
	case key.Matches(msg, m.keymap.Back):
		m.screen = screenHome
		m.reloadServers()
		return m, nil
	case key.Matches(msg, m.keymap.NextTab):
		return m.switchTab((v.tab + 1) % tabCount)
	case key.Matches(msg, m.keymap.PrevTab):
		return m.switchTab((v.tab + tabCount - 1) % tabCount)
	case key.Matches(msg, m.keymap.Start):
		return m.startServer(v.srv)
	case key.Matches(msg, m.keymap.Stop):
		return m, stopServerCmd(v.srv)
	case key.Matches(msg, m.keymap.Restart):
		return m, restartServerCmd(m.ctx, v.srv)
	}

	switch v.tab {
	case tabOverview:
		return m.updateOverview(msg)
	case tabProperties:
		return m.updateProperties(msg)
	case tabBackups:
		if key.Matches(msg, m.keymap.Backup) && !v.backingUp {
			v.backingUp = true
			m.footer.SetStatus(fmt.Sprintf("Backing up %s...", v.srv.Name()))
			return m, backupServerCmd(m.ctx, m.mgr, v.srv.Name(), m.opts.BackupsDir)
		}
	case tabSettings:
		return m.updateSettings(msg)
	}
	return m, nil
}

func (m Model) updateOverview(msg tea.KeyMsg) (Model, tea.Cmd) {
	v := &m.view
	switch {
	case msg.Type == tea.KeyEnter:
		command := strings.TrimSpace(v.input.Value())
		if command == "" {
			return m, nil
		}
		v.input.Reset()
		if err := v.srv.SendCommand(command); err != nil {
			m.footer.SetError("Server is not running.")
			return m, nil
		}
		m.footer.SetStatus("Sent: " + command)
		return m, nil
	case key.Matches(msg, m.keymap.PageUp), key.Matches(msg, m.keymap.PageDown),
		msg.Type == tea.KeyUp, msg.Type == tea.KeyDown:
		var cmd tea.Cmd
		v.console, cmd = v.console.Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return m, cmd
}

func (m Model) updateProperties(msg tea.KeyMsg) (Model, tea.Cmd) {
	v := &m.view
	switch {
	case key.Matches(msg, m.keymap.Up):
		v.propCursor = max(v.propCursor-1, 0)
	case key.Matches(msg, m.keymap.Down):
		v.propCursor = min(v.propCursor+1, max(len(v.propKeys)-1, 0))
	case key.Matches(msg, m.keymap.Edit) && v.props != nil && len(v.propKeys) > 0:
		v.editing = true
		v.propErr = ""
		v.editor.SetValue(v.props.Raw(v.propKeys[v.propCursor]))
		v.editor.CursorEnd()
		return m, v.editor.Focus()
	case key.Matches(msg, m.keymap.Apply) && v.props != nil:
		if len(v.dirty) == 0 {
			m.footer.SetStatus("No pending changes")
			return m, nil
		}
		if err := v.srv.SaveProperties(v.props); err != nil {
			m.footer.SetError("Error setting property: " + err.Error())
			return m, nil
		}
		n := len(v.dirty)
		v.loadProperties()
		m.footer.SetStatus(fmt.Sprintf("%d propert%s of %s saved", n, plural(n, "y", "ies"), v.srv.Name()))
	}
	return m, nil
}

func (m Model) updatePropertyEditor(msg tea.KeyMsg) (Model, tea.Cmd) {
	v := &m.view
	switch {
	case key.Matches(msg, m.keymap.Back):
		v.editing = false
		v.editor.Blur()
		return m, nil
	case msg.Type == tea.KeyEnter:
		k := v.propKeys[v.propCursor]
		value := strings.TrimSpace(v.editor.Value())
		if value == v.props.Raw(k) {
			v.editing = false
			v.editor.Blur()
			return m, nil
		}
		if err := v.props.SetString(k, value); err != nil {
			v.propErr = "Invalid value: " + err.Error()
			return m, nil
		}
		v.dirty[k] = true
		v.propErr = ""
		v.editing = false
		v.editor.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	v.editor, cmd = v.editor.Update(msg)
	return m, cmd
}

func (m Model) updateSettings(msg tea.KeyMsg) (Model, tea.Cmd) {
	v := &m.view
	name := v.srv.Name()
	switch {
	case key.Matches(msg, m.keymap.Delete):
		if v.srv.State().Active() {
			m.footer.SetError("Stop the server first")
			return m, nil
		}
		v.confirmDelete = true
	case key.Matches(msg, m.keymap.EULA):
		if err := v.srv.AcceptEULA(); err != nil {
			m.footer.SetError(fmt.Sprintf("Cannot accept the EULA of %s: %v", name, err))
			return m, nil
		}
		m.footer.SetStatus(fmt.Sprintf("EULA accepted for %s", name))
	case key.Matches(msg, m.keymap.MoreRAM), key.Matches(msg, m.keymap.LessRAM):
		maxGB, minGB := v.srv.Memory()
		next := maxGB + 1
		if key.Matches(msg, m.keymap.LessRAM) {
			next = maxGB - 1
		}
		if next < max(minGB, 1) || next > maxRAMGB {
			return m, nil
		}
		err := m.mgr.UpdateManifest(name, func(mf *manager.Manifest) error {
			mf.MaxRAMGB = next
			return nil
		})
		if err != nil {
			m.footer.SetError("Cannot set memory: " + err.Error())
			return m, nil
		}
		m.footer.SetStatus(fmt.Sprintf("Memory of %s set to %s (applies on next start)", name, memoryLabel(next, minGB)))
	}
	return m, nil
}

// startServer starts srv, warning first when its EULA is not accepted.
func (m Model) startServer(srv *server.Server) (Model, tea.Cmd) {
	if !srv.EULAAccepted() {
		m.footer.SetError(fmt.Sprintf("The EULA of %s is not accepted; the server will refuse to run", srv.Name()))
	}
	return m, startServerCmd(m.ctx, srv)
}

// handleServerEvent applies a server event to the home list and server view.
func (m Model) handleServerEvent(ev server.Event) Model {
	switch ev.Kind {
	case server.EventLogLine:
		if m.screen == screenServer && m.view.srv != nil && m.view.srv.Name() == ev.Server {
			m.view.appendLine(ev.Line)
		}
		return m
	case server.EventStateChanged:
		switch {
		case ev.State == server.Crashed:
			m.footer.SetError(fmt.Sprintf("Server %s crashed (exit code %d)", ev.Server, ev.ExitCode))
		case ev.State == server.Running:
			m.footer.SetStatus(fmt.Sprintf("Server %s is running", ev.Server))
		case ev.State == server.Stopped && ev.Previous != server.Stopped:
			m.footer.SetStatus(fmt.Sprintf("Server %s stopped", ev.Server))
		}
	}
	m.reloadServers()
	if m.view.srv != nil && m.view.srv.Name() == ev.Server {
		m.view.status = m.view.srv.Status()
		if ev.Kind == server.EventStateChanged && !ev.State.Active() {
			if m.view.hasStats {
				m.sampler.Forget(m.view.stats.PID)
			}
			m.view.hasStats = false
		}
	}
	return m
}

// handleAction shows the outcome of a lifecycle or file action.
func (m *Model) handleAction(msg ActionDoneMsg) {
	if msg.Err == nil {
		if msg.Text != "" {
			m.footer.SetStatus(msg.Text)
		}
		return
	}
	switch {
	case errors.Is(msg.Err, server.ErrAlreadyRunning):
		m.footer.SetError(fmt.Sprintf("Server %s is already running", msg.Server))
	case errors.Is(msg.Err, server.ErrNotRunning):
		m.footer.SetError(fmt.Sprintf("Server %s is not running", msg.Server))
	case errors.Is(msg.Err, server.ErrJarMissing):
		m.footer.SetError(fmt.Sprintf("Server %s has no server.jar", msg.Server))
	default:
		m.footer.SetError(fmt.Sprintf("%s: %v", msg.Server, msg.Err))
	}
}

// handleDeleted leaves the view of a deleted server.
func (m Model) handleDeleted(msg DeletedMsg) Model {
	switch {
	case errors.Is(msg.Err, manager.ErrServerRunning):
		m.footer.SetError("Stop the server first")
		return m
	case msg.Err != nil:
		m.footer.SetError(fmt.Sprintf("Cannot delete %s: %v", msg.Server, msg.Err))
		return m
	}
	if m.opts.Scheduler != nil {
		_ = m.opts.Scheduler.Set(msg.Server, "")
	}
	m.footer.SetStatus(fmt.Sprintf("Server %s deleted", msg.Server))
	m.screen = screenHome
	m.view = ServerView{}
	m.reloadServers()
	return m
}

// handleBackups stores the archive list of the current server.
func (m *Model) handleBackups(msg BackupsMsg) {
	if m.view.srv == nil || m.view.srv.Name() != msg.Server {
		return
	}
	m.view.archives = msg.Archives
	m.view.backupsErr = ""
	if msg.Err != nil {
		m.view.backupsErr = "Cannot list backups: " + msg.Err.Error()
	}
}

// handleBackupDone reports a finished manual backup and relists archives.
func (m Model) handleBackupDone(msg BackupDoneMsg) (Model, tea.Cmd) {
	if m.view.srv != nil && m.view.srv.Name() == msg.Server {
		m.view.backingUp = false
	}
	if msg.Err != nil {
		m.footer.SetError(fmt.Sprintf("Backup of %s failed: %v", msg.Server, msg.Err))
		return m, nil
	}
	m.footer.SetStatus(fmt.Sprintf("Backup written to %s", msg.Archive.Path))
	return m, listBackupsCmd(m.opts.BackupsDir, msg.Server)
}

func startServerCmd(ctx context.Context, srv *server.Server) tea.Cmd {
	return func() tea.Msg {
		err := srv.Start(ctx)
		return ActionDoneMsg{Server: srv.Name(), Text: fmt.Sprintf("Starting %s", srv.Name()), Err: err}
	}
}

func stopServerCmd(srv *server.Server) tea.Cmd {
	return func() tea.Msg {
		if !srv.State().CanStop() {
			return ActionDoneMsg{Server: srv.Name(), Err: server.ErrNotRunning}
		}
		err := srv.Stop()
		return ActionDoneMsg{Server: srv.Name(), Text: fmt.Sprintf("Stopping %s", srv.Name()), Err: err}
	}
}

func restartServerCmd(ctx context.Context, srv *server.Server) tea.Cmd {
	return func() tea.Msg {
		err := srv.Restart(ctx)
		return ActionDoneMsg{Server: srv.Name(), Text: fmt.Sprintf("Restarted %s", srv.Name()), Err: err}
	}
}

func deleteServerCmd(mgr *manager.Manager, name string) tea.Cmd {
	return func() tea.Msg {
		return DeletedMsg{Server: name, Err: mgr.Delete(name)}
	}
}

func listBackupsCmd(dir, name string) tea.Cmd {
	return func() tea.Msg {
		archives, err := backup.List(dir, name)
		return BackupsMsg{Server: name, Archives: archives, Err: err}
	}
}

func backupServerCmd(ctx context.Context, mgr *manager.Manager, name, dir string) tea.Cmd {
	return func() tea.Msg {
		a, err := mgr.Backup(ctx, name, dir)
		return BackupDoneMsg{Server: name, Archive: a, Err: err}
	}
}

func sampleStatsCmd(sampler *sysmon.ProcessSampler, name string, pid int) tea.Cmd {
	return func() tea.Msg {
		st, err := sampler.Sample(pid)
		return StatsMsg{Server: name, Stats: st, Err: err}
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func memoryLabel(maxGB, minGB int) string {
	if minGB > 0 {
		return fmt.Sprintf("%d-%d GB", minGB, maxGB)
	}
	return fmt.Sprintf("%d GB", maxGB)
}

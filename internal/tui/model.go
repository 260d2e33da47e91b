// Package tui implements the full-screen terminal interface: a server list,
// a create wizard and a tabbed view per server.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/milndr/lodestone-server-manager/internal/backup"
	apperrors "github.com/milndr/lodestone-server-manager/internal/errors"
	"github.com/milndr/lodestone-server-manager/internal/logging"
	"github.com/milndr/lodestone-server-manager/internal/manager"
	"github.com/milndr/lodestone-server-manager/internal/server"
	"github.com/milndr/lodestone-server-manager/internal/sysmon"
	"github.com/milndr/lodestone-server-manager/internal/ui"
)

// Layout constants for the TUI.
const (
	headerHeight  = 1
	footerHeight  = 1
	minBodyHeight = 8

	tickInterval = time.Second
	// DefaultShutdownTimeout bounds how long Run waits for servers to stop on quit.
	DefaultShutdownTimeout = time.Minute
)

type screen int

const (
	screenHome screen = iota
	screenWizard
	screenServer
)

// LayoutManager holds terminal dimensions and provides layout calculations.
type LayoutManager struct {
	width  int
	height int
}

// bodyHeight returns the available height between header and footer.
func (l LayoutManager) bodyHeight() int {
	return max(l.height-headerHeight-footerHeight, minBodyHeight)
}

// Options configures the TUI.
type Options struct {
	Version    string
	BackupsDir string
	// Scheduler, when set, is kept in sync with deletions and shown in settings.
	Scheduler *backup.Scheduler
	Logger    logging.Logger
	// ShutdownTimeout bounds how long quitting waits for servers to stop.
	ShutdownTimeout time.Duration
}

// Model is the root bubbletea model of the TUI.
type Model struct {
	header HeaderModel
	footer FooterModel
	home   HomeModel
	wizard WizardModel
	view   ServerView

	keymap KeyMap
	screen screen

	LayoutManager

	ctx     context.Context
	mgr     *manager.Manager
	opts    Options
	ref     *programRef
	bridge  *eventBridge
	sampler *sysmon.ProcessSampler
}

// NewModel creates a new TUI model over mgr.
func NewModel(ctx context.Context, mgr *manager.Manager, opts Options) Model {
	if opts.BackupsDir == "" {
		opts.BackupsDir = backup.DefaultDir
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}
	ref := &programRef{}
	m := Model{
		header:  NewHeaderModel(opts.Version),
		footer:  NewFooterModel(),
		keymap:  DefaultKeyMap(),
		ctx:     ctx,
		mgr:     mgr,
		opts:    opts,
		ref:     ref,
		bridge:  newEventBridge(ref),
		sampler: sysmon.NewProcessSampler(),
	}
	m.reloadServers()
	m.refreshChrome()
	return m
}

// Init returns the initial commands.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), watchContextCmd(m.ctx))
}

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	next, cmd := m.update(msg)
	next.refreshChrome()
	return next, cmd
}

func (m Model) update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layoutPanels()
		return m, nil

	case ServerEventMsg:
		return m.handleServerEvent(msg.Event), nil

	case TickMsg:
		m.reloadServers()
		cmds := []tea.Cmd{tickCmd()}
		if m.screen == screenServer && m.view.srv != nil {
			m.view.status = m.view.srv.Status()
			if pid := m.view.status.PID; pid > 0 && m.view.status.State.Active() {
				cmds = append(cmds, sampleStatsCmd(m.sampler, m.view.srv.Name(), pid))
			}
		}
		return m, tea.Batch(cmds...)

	case StatsMsg:
		if msg.Err == nil && m.view.srv != nil && m.view.srv.Name() == msg.Server && m.view.status.State.Active() {
			m.view.pushStats(msg.Stats)
		}
		return m, nil

	case ActionDoneMsg:
		m.handleAction(msg)
		m.reloadServers()
		return m, nil

	case VersionsMsg:
		m.handleVersions(msg)
		return m, nil

	case VersionCheckMsg:
		m.handleVersionCheck(msg)
		return m, nil

	case CreateProgressMsg:
		m.handleCreateProgress(msg)
		return m, nil

	case CreateDoneMsg:
		return m.handleCreateDone(msg)

	case BackupsMsg:
		m.handleBackups(msg)
		return m, nil

	case BackupDoneMsg:
		return m.handleBackupDone(msg)

	case DeletedMsg:
		return m.handleDeleted(msg), nil

	case contextDoneMsg:
		return m.quit()
	}

	return m, nil
}

// quit cancels a download in progress so Create can roll back before exit.
func (m Model) quit() (Model, tea.Cmd) {
	if m.wizard.cancel != nil {
		m.wizard.canceling = true
		m.wizard.cancel()
	}
	return m, tea.Quit
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if key.Matches(msg, m.keymap.ForceQuit) {
		return m.quit()
	}

	switch m.screen {
	case screenWizard:
		return m.updateWizard(msg)
	case screenServer:
		return m.updateServer(msg)
	}

	switch {
	case key.Matches(msg, m.keymap.Quit):
		return m.quit()
	case key.Matches(msg, m.keymap.Up):
		m.home.MoveUp()
	case key.Matches(msg, m.keymap.Down):
		m.home.MoveDown()
	case key.Matches(msg, m.keymap.New):
		return m.openWizard()
	case key.Matches(msg, m.keymap.Theme):
		ui.ToggleDark()
		initTUIStyles()
	case key.Matches(msg, m.keymap.Enter):
		if name, ok := m.home.Selected(); ok {
			return m.openServer(name)
		}
	case key.Matches(msg, m.keymap.Start):
		if srv, ok := m.selectedServer(); ok {
			return m.startServer(srv)
		}
	case key.Matches(msg, m.keymap.Stop):
		if srv, ok := m.selectedServer(); ok {
			return m, stopServerCmd(srv)
		}
	case key.Matches(msg, m.keymap.Restart):
		if srv, ok := m.selectedServer(); ok {
			return m, restartServerCmd(m.ctx, srv)
		}
	}
	return m, nil
}

func (m Model) selectedServer() (*server.Server, bool) {
	name, ok := m.home.Selected()
	if !ok {
		return nil, false
	}
	srv, err := m.mgr.Get(name)
	return srv, err == nil
}

// reloadServers refreshes the home list and the bridge subscriptions.
func (m *Model) reloadServers() {
	servers := m.mgr.Servers()
	m.bridge.Watch(servers)
	statuses := make([]server.Status, len(servers))
	running := 0
	for i, srv := range servers {
		statuses[i] = srv.Status()
		if statuses[i].State.Active() {
			running++
		}
	}
	m.home.SetServers(statuses)
	m.header.SetCounts(running, len(servers))
}

// refreshChrome updates the header crumb and footer hints for the screen.
func (m *Model) refreshChrome() {
	k := m.keymap
	switch m.screen {
	case screenWizard:
		m.header.SetCrumb("New server")
		switch m.wizard.step {
		case stepSoftware:
			m.footer.SetHints(k.Up, k.Down, k.Enter, k.Back)
		case stepEULA:
			m.footer.SetHints(k.Yes, k.No)
		case stepDownload:
			m.footer.SetHints(key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")))
		default:
			m.footer.SetHints(k.Enter, k.Back)
		}
	case screenServer:
		if m.view.srv == nil {
			return
		}
		m.header.SetCrumb(m.view.srv.Name() + " › " + m.view.tab.String())
		hints := []key.Binding{k.NextTab, k.Start, k.Stop, k.Restart}
		switch m.view.tab {
		case tabProperties:
			hints = append(hints, k.Edit, k.Apply)
		case tabBackups:
			hints = append(hints, k.Backup)
		case tabSettings:
			hints = append(hints, k.EULA, k.Delete)
		}
		m.footer.SetHints(append(hints, k.Back)...)
	default:
		m.header.SetCrumb("")
		m.footer.SetHints(k.Enter, k.New, k.Start, k.Stop, k.Theme, k.Quit)
	}
}

// View renders the entire TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var body string
	switch m.screen {
	case screenWizard:
		body = m.wizard.View()
	case screenServer:
		body = m.view.View(m.schedule())
	default:
		body = m.home.View()
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.header.View(), body, m.footer.View())
}

// schedule collects the backup schedule of the server in view.
func (m Model) schedule() scheduleInfo {
	if m.view.srv == nil {
		return scheduleInfo{}
	}
	name := m.view.srv.Name()
	var info scheduleInfo
	if mf, err := m.mgr.Manifest(name); err == nil {
		info.spec, info.keep = mf.BackupSchedule, mf.BackupKeep
	}
	if m.opts.Scheduler != nil {
		info.next, _ = m.opts.Scheduler.Next(name)
	}
	return info
}

func (m *Model) layoutPanels() {
	m.header.SetWidth(m.width)
	m.footer.SetWidth(m.width)
	m.home.SetSize(m.width, m.bodyHeight())
	m.wizard.width = m.width
	m.view.SetSize(m.width, m.bodyHeight())
}

// Run is the public entry point for the TUI mode.
// It runs the bubbletea program, stops every running server once the
// program exits, and returns the exit code.
func Run(ctx context.Context, mgr *manager.Manager, opts Options) int {
	// Rebuild styles from the current ui theme (set by app.Run via InitTheme).
	initTUIStyles()

	model := NewModel(ctx, mgr, opts)
	p := tea.NewProgram(model, tea.WithAltScreen())
	// Inject the program reference before running so server goroutines can Send.
	model.ref.SetProgram(p)

	_, runErr := p.Run()
	model.ref.SetProgram(nil)
	model.bridge.Close()

	exitCode := apperrors.ExitSuccess
	if runErr != nil {
		model.opts.Logger.Error("tui failed", runErr)
		exitCode = apperrors.ExitErrorGeneric
	}
	if ctx.Err() != nil {
		exitCode = apperrors.ExitErrorCanceled
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), model.opts.ShutdownTimeout)
	defer cancel()
	if err := mgr.WaitCreates(stopCtx); err != nil {
		model.opts.Logger.Error("server creation did not finish", err)
	}
	if err := mgr.StopAll(stopCtx); err != nil {
		model.opts.Logger.Error("failed to stop servers", err)
	}
	return exitCode
}

type contextDoneMsg struct{}

// tickCmd returns a command that sends a TickMsg after tickInterval.
func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// watchContextCmd waits for context cancellation and sends a message.
func watchContextCmd(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		<-ctx.Done()
		return contextDoneMsg{}
	}
}

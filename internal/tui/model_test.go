package tui

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/milndr/lodestone-server-manager/internal/server"
)

func TestModel_InitialView(t *testing.T) {
	m := NewModel(context.Background(), newTestManager(t), Options{})
	if got := m.View(); got != "Initializing..." {
		t.Errorf("expected placeholder before the first resize, got %q", got)
	}

	m = feed(m, tea.WindowSizeMsg{Width: 100, Height: 30})
	view := m.View()
	for _, want := range []string{"Lodestone", "0/0 running", "No servers yet. Press n to create one."} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestModel_HomeListsServers(t *testing.T) {
	mgr := newTestManager(t)
	createServer(t, mgr, "lobby")
	createServer(t, mgr, "survival")
	m := newTestModel(t, mgr)

	view := m.View()
	for _, want := range []string{"lobby", "survival", "Paper 1.21.4", "STOPPED", "0/2 running"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	if name, _ := m.home.Selected(); name != "lobby" {
		t.Errorf("expected lobby selected, got %q", name)
	}
	m, _ = press(m, "down")
	if name, _ := m.home.Selected(); name != "survival" {
		t.Errorf("expected survival selected, got %q", name)
	}
	m, _ = press(m, "down", "up", "up")
	if name, _ := m.home.Selected(); name != "lobby" {
		t.Errorf("expected lobby selected, got %q", name)
	}
}

func TestModel_QuitKeys(t *testing.T) {
	m := newTestModel(t, newTestManager(t))

	for _, k := range []string{"q", "ctrl+c"} {
		_, cmd := press(m, k)
		if cmd == nil {
			t.Fatalf("%s: expected a command", k)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("%s: expected tea.Quit", k)
		}
	}
}

func TestModel_ContextCancelQuits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, cmd := NewModel(ctx, newTestManager(t), Options{}).Update(contextDoneMsg{})
	if cmd == nil {
		t.Fatal("expected a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.Quit after cancellation")
	}
	if msg := watchContextCmd(ctx)(); msg != (contextDoneMsg{}) {
		t.Errorf("expected contextDoneMsg, got %T", msg)
	}
}

func TestModel_ThemeToggleIsSafeWithoutColors(t *testing.T) {
	m := newTestModel(t, newTestManager(t))
	m, _ = press(m, "d")
	if m.screen != screenHome {
		t.Errorf("expected to stay on home, got screen %d", m.screen)
	}
}

func TestModel_StartAndStopFromHome(t *testing.T) {
	mgr := newTestManager(t)
	srv := createServer(t, mgr, "lobby")
	m := newTestModel(t, mgr)

	m, cmd := press(m, "ctrl+s")
	assertStatus(t, m, "The EULA of lobby is not accepted")
	m = feed(m, run(t, cmd)...)
	assertStatus(t, m, "Starting lobby")
	waitState(t, srv, server.Running)

	m = feed(m, TickMsg{})
	if !strings.Contains(m.View(), "1/1 running") {
		t.Errorf("expected header to count the running server:\n%s", m.View())
	}

	m = pressAndRun(t, m, "ctrl+s")
	assertStatus(t, m, "Server lobby is already running")

	m = pressAndRun(t, m, "ctrl+x")
	assertStatus(t, m, "Stopping lobby")
	waitState(t, srv, server.Stopped)

	m = pressAndRun(t, m, "ctrl+x")
	assertStatus(t, m, "Server lobby is not running")
}

func TestModel_ServerEvents(t *testing.T) {
	mgr := newTestManager(t)
	srv := createServer(t, mgr, "lobby")
	m := newTestModel(t, mgr)
	m, _ = press(m, "enter")
	if m.screen != screenServer {
		t.Fatalf("expected server view, got screen %d", m.screen)
	}

	m = feed(m, ServerEventMsg{Event: server.Event{Kind: server.EventLogLine, Server: "lobby", Line: "hello from lobby"}})
	m = feed(m, ServerEventMsg{Event: server.Event{Kind: server.EventLogLine, Server: "other", Line: "not for us"}})
	lines := m.view.lines.Slice()
	if len(lines) != 1 || lines[0] != "hello from lobby" {
		t.Errorf("unexpected console lines %q", lines)
	}
	if !strings.Contains(m.View(), "hello from lobby") {
		t.Errorf("console line not rendered:\n%s", m.View())
	}

	m = feed(m, ServerEventMsg{Event: server.Event{Kind: server.EventStateChanged, Server: "lobby", State: server.Crashed, Previous: server.Running, ExitCode: 3}})
	got, isErr := m.footer.Status()
	if !isErr || !strings.Contains(got, "Server lobby crashed (exit code 3)") {
		t.Errorf("unexpected status %q (error %v)", got, isErr)
	}
	if m.view.srv != srv {
		t.Error("expected the view to keep its server")
	}
}

func TestModel_ConsoleCommand(t *testing.T) {
	mgr := newTestManager(t)
	srv := createServer(t, mgr, "lobby")
	m := newTestModel(t, mgr)
	m, _ = press(m, "enter")

	m, _ = press(m, "say hi", "enter")
	assertStatus(t, m, "Server is not running.")
	if v := m.view.input.Value(); v != "" {
		t.Errorf("expected input to be cleared, got %q", v)
	}

	if err := srv.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitState(t, srv, server.Running)
	m, _ = press(m, "say hi", "enter")
	assertStatus(t, m, "Sent: say hi")
	if _, isErr := m.footer.Status(); isErr {
		t.Error("expected the earlier error to be replaced")
	}

	deadline := time.Now().Add(waitFor)
	for !slices.ContainsFunc(srv.Logs(10), func(l string) bool { return strings.HasSuffix(l, "echo say hi") }) {
		if time.Now().After(deadline) {
			t.Fatalf("command never reached the console, logs %q", srv.Logs(10))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestModel_TabsAndPlayers(t *testing.T) {
	mgr := newTestManager(t)
	srv := createServer(t, mgr, "lobby")
	ops := `[{"uuid":"0000","name":"Alex","level":4,"bypassesPlayerLimit":false}]`
	if err := os.WriteFile(filepath.Join(srv.Dir(), server.OpsFile), []byte(ops), 0o644); err != nil {
		t.Fatal(err)
	}
	m := newTestModel(t, mgr)
	m, _ = press(m, "enter")

	if !strings.Contains(m.View(), "lobby › Overview") {
		t.Errorf("expected overview crumb:\n%s", m.View())
	}

	m, _ = press(m, "tab")
	if m.view.tab != tabPlayers {
		t.Fatalf("expected players tab, got %s", m.view.tab)
	}
	view := m.View()
	for _, want := range []string{"Online (0)", "Nobody is online.", "Operators (1)", "Alex", "level 4"} {
		if !strings.Contains(view, want) {
			t.Errorf("players view missing %q:\n%s", want, view)
		}
	}

	m, _ = press(m, "shift+tab", "shift+tab")
	if m.view.tab != tabSettings {
		t.Errorf("expected tabs to wrap to settings, got %s", m.view.tab)
	}

	m, _ = press(m, "esc")
	if m.screen != screenHome {
		t.Errorf("expected esc to return home, got screen %d", m.screen)
	}
}

func TestModel_EditProperties(t *testing.T) {
	mgr := newTestManager(t)
	srv := createServer(t, mgr, "lobby")
	m := newTestModel(t, mgr)
	m, _ = press(m, "enter", "tab", "tab")
	if m.view.tab != tabProperties {
		t.Fatalf("expected properties tab, got %s", m.view.tab)
	}
	if !strings.Contains(m.View(), "11 properties") {
		t.Errorf("expected property count:\n%s", m.View())
	}

	// motd, server-port, max-players
	m, _ = press(m, "down", "down", "enter")
	if !m.view.editing || m.view.editor.Value() != "20" {
		t.Fatalf("expected editor on max-players with 20, got editing=%v value=%q", m.view.editing, m.view.editor.Value())
	}

	m, _ = press(m, "ctrl+u", "lots", "enter")
	if !m.view.editing || !strings.Contains(m.view.propErr, "Invalid value") {
		t.Errorf("expected a typed validation error, got %q", m.view.propErr)
	}

	m, _ = press(m, "ctrl+u", "42", "enter")
	if m.view.editing || !m.view.dirty["max-players"] {
		t.Fatalf("expected max-players staged, editing=%v dirty=%v", m.view.editing, m.view.dirty)
	}
	if !strings.Contains(m.View(), "1 pending, press a to apply") {
		t.Errorf("expected pending marker:\n%s", m.View())
	}

	// Leaving the tab and coming back keeps the staged value.
	m, _ = press(m, "tab", "shift+tab")
	if m.view.tab != tabProperties || !m.view.dirty["max-players"] {
		t.Fatalf("expected staged edit kept across tabs, tab=%s dirty=%v", m.view.tab, m.view.dirty)
	}
	if got := m.view.props.Raw("max-players"); got != "42" {
		t.Errorf("expected staged value 42, got %q", got)
	}

	// Nothing is written before apply.
	props, err := srv.Properties()
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := props.Int("max-players"); v != 20 {
		t.Errorf("expected file untouched before apply, got %d", v)
	}

	m, _ = press(m, "a")
	assertStatus(t, m, "1 property of lobby saved")
	props, err = srv.Properties()
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := props.Int("max-players"); v != 42 {
		t.Errorf("expected max-players=42 after apply, got %d", v)
	}

	m, _ = press(m, "a")
	assertStatus(t, m, "No pending changes")

	m, _ = press(m, "enter", "esc")
	if m.view.editing || m.screen != screenServer {
		t.Errorf("expected esc to cancel the edit only")
	}
}

func TestModel_Settings(t *testing.T) {
	mgr := newTestManager(t)
	srv := createServer(t, mgr, "lobby")
	m := newTestModel(t, mgr)
	m, _ = press(m, "enter", "shift+tab")
	if m.view.tab != tabSettings {
		t.Fatalf("expected settings tab, got %s", m.view.tab)
	}
	if !strings.Contains(m.View(), "not accepted") {
		t.Errorf("expected EULA not accepted:\n%s", m.View())
	}

	m, _ = press(m, "e")
	assertStatus(t, m, "EULA accepted for lobby")
	if !srv.EULAAccepted() {
		t.Error("expected EULA accepted")
	}

	m, _ = press(m, "+")
	assertStatus(t, m, "Memory of lobby set to 3 GB (applies on next start)")
	if maxGB, _ := srv.Memory(); maxGB != 3 {
		t.Errorf("expected 3 GB, got %d", maxGB)
	}
	mf, err := mgr.Manifest("lobby")
	if err != nil {
		t.Fatal(err)
	}
	if mf.MaxRAMGB != 3 {
		t.Errorf("expected manifest max_ram_gb=3, got %d", mf.MaxRAMGB)
	}

	m, _ = press(m, "-", "-", "-")
	if maxGB, _ := srv.Memory(); maxGB != 1 {
		t.Errorf("expected memory to stop at 1 GB, got %d", maxGB)
	}
}

func TestModel_DeleteServer(t *testing.T) {
	mgr := newTestManager(t)
	srv := createServer(t, mgr, "lobby")
	m := newTestModel(t, mgr)
	m, _ = press(m, "enter", "shift+tab", "D")
	if !m.view.confirmDelete || !strings.Contains(m.View(), "Delete server lobby and all its files?") {
		t.Fatalf("expected delete confirmation:\n%s", m.View())
	}

	m, _ = press(m, "n")
	if m.view.confirmDelete {
		t.Fatal("expected n to dismiss the confirmation")
	}
	if !mgr.Exists("lobby") {
		t.Fatal("server deleted without confirmation")
	}

	m = pressAndRun(t, m, "D", "y")
	if m.screen != screenHome {
		t.Errorf("expected home after delete, got screen %d", m.screen)
	}
	assertStatus(t, m, "Server lobby deleted")
	if _, err := os.Stat(srv.Dir()); !os.IsNotExist(err) {
		t.Errorf("expected directory removed, stat err %v", err)
	}
	if len(mgr.Names()) != 0 {
		t.Errorf("expected no servers, got %v", mgr.Names())
	}
}

func TestModel_DeleteRefusedWhileRunning(t *testing.T) {
	mgr := newTestManager(t)
	srv := createServer(t, mgr, "lobby")
	if err := srv.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitState(t, srv, server.Running)

	m := newTestModel(t, mgr)
	m, _ = press(m, "enter", "shift+tab", "D")
	if m.view.confirmDelete {
		t.Error("confirmation shown for a running server")
	}
	got, isErr := m.footer.Status()
	if !isErr || got != "Stop the server first" {
		t.Errorf("unexpected status %q (error %v)", got, isErr)
	}

	// A deletion racing with a start is refused by the manager too.
	m = feed(m, DeletedMsg{Server: "lobby", Err: mgr.Delete("lobby")})
	assertStatus(t, m, "Stop the server first")
	if m.screen != screenServer {
		t.Errorf("expected to stay on the server view, got screen %d", m.screen)
	}
}

func TestModel_Backups(t *testing.T) {
	mgr := newTestManager(t)
	createServer(t, mgr, "lobby")
	m := newTestModel(t, mgr)
	m, cmd := press(m, "enter", "tab", "tab", "tab")
	if m.view.tab != tabBackups {
		t.Fatalf("expected backups tab, got %s", m.view.tab)
	}
	m = feed(m, run(t, cmd)...)
	if !strings.Contains(m.View(), "No backups yet. Press b to create one.") {
		t.Errorf("expected empty backups:\n%s", m.View())
	}

	m, cmd = press(m, "b")
	if !m.view.backingUp {
		t.Error("expected backup in progress")
	}
	msgs := run(t, cmd)
	if len(msgs) != 1 {
		t.Fatalf("expected one BackupDoneMsg, got %v", msgs)
	}
	next, cmd := m.Update(msgs[0])
	m = next.(Model)
	assertStatus(t, m, "Backup written to ")
	// The relisting the finished backup triggers.
	m = feed(m, run(t, cmd)...)

	if m.view.backingUp {
		t.Error("expected backup finished")
	}
	if len(m.view.archives) != 1 {
		t.Fatalf("expected one archive, got %d", len(m.view.archives))
	}
	if !strings.Contains(m.View(), "Backups (1)") || !strings.Contains(m.View(), ".tar.gz") {
		t.Errorf("expected archive listed:\n%s", m.View())
	}
}

func TestHeader_View(t *testing.T) {
	h := NewHeaderModel("v1.2.3")
	h.SetWidth(80)
	h.SetCounts(1, 3)
	h.SetCrumb("lobby › Console")
	view := h.View()
	for _, want := range []string{"Lodestone v1.2.3", "lobby › Console", "1/3 running"} {
		if !strings.Contains(view, want) {
			t.Errorf("header missing %q: %q", want, view)
		}
	}

	dev := NewHeaderModel("dev")
	dev.SetWidth(40)
	if strings.Contains(dev.View(), "dev") {
		t.Errorf("dev version should not be shown: %q", dev.View())
	}
}

func TestFooter_Status(t *testing.T) {
	f := NewFooterModel()
	f.SetWidth(80)
	km := DefaultKeyMap()
	f.SetHints(km.Quit)
	if !strings.Contains(f.View(), "q quit") {
		t.Errorf("footer missing hint: %q", f.View())
	}

	f.SetError("boom")
	if got, isErr := f.Status(); got != "boom" || !isErr {
		t.Errorf("unexpected status %q %v", got, isErr)
	}
	f.SetStatus("ok")
	if got, isErr := f.Status(); got != "ok" || isErr {
		t.Errorf("unexpected status %q %v", got, isErr)
	}
	if !strings.Contains(f.View(), "ok") {
		t.Errorf("footer missing status: %q", f.View())
	}
}

func TestWindow(t *testing.T) {
	tests := []struct {
		cursor, n, size int
		start, end      int
	}{
		{0, 5, 10, 0, 5},
		{0, 30, 10, 0, 10},
		{15, 30, 10, 10, 20},
		{29, 30, 10, 20, 30},
	}
	for _, tt := range tests {
		start, end := window(tt.cursor, tt.n, tt.size)
		if start != tt.start || end != tt.end {
			t.Errorf("window(%d, %d, %d) = %d, %d; want %d, %d", tt.cursor, tt.n, tt.size, start, end, tt.start, tt.end)
		}
	}
}

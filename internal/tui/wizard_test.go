package tui

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/milndr/lodestone-server-manager/internal/provider"
)

func TestWizard_CreateServer(t *testing.T) {
	mgr := newTestManager(t)
	createServer(t, mgr, "lobby")
	m := newTestModel(t, mgr)

	m, _ = press(m, "n")
	if m.screen != screenWizard {
		t.Fatalf("expected wizard, got screen %d", m.screen)
	}

	// Typing q into the name field must not quit.
	m, cmd := press(m, "q")
	if cmd != nil {
		if _, ok := cmd().(tea.QuitMsg); ok {
			t.Fatal("q quit from the name input")
		}
	}
	if got := m.wizard.input.Value(); got != "q" {
		t.Fatalf("expected q typed into the input, got %q", got)
	}

	m, _ = press(m, "ctrl+u", "bad/name", "enter")
	if m.wizard.err != "Please choose a valid name" {
		t.Errorf("unexpected error %q", m.wizard.err)
	}
	m, _ = press(m, "ctrl+u", "lobby", "enter")
	if m.wizard.err != "Another server already has that name" {
		t.Errorf("unexpected error %q", m.wizard.err)
	}
	m, _ = press(m, "ctrl+u", "survival", "enter")
	if m.wizard.step != stepSoftware || m.wizard.name != "survival" {
		t.Fatalf("expected software step for survival, got step %d name %q", m.wizard.step, m.wizard.name)
	}
	if !strings.Contains(m.View(), "Paper") || !strings.Contains(m.View(), "Vanilla") {
		t.Errorf("expected software choices:\n%s", m.View())
	}

	m, _ = press(m, "down", "up")
	m = pressAndRun(t, m, "enter")
	if m.wizard.step != stepVersion || m.wizard.software != "paper" {
		t.Fatalf("expected version step for paper, got step %d software %q", m.wizard.step, m.wizard.software)
	}
	if !strings.Contains(m.View(), "1.21.4, 1.21.1") {
		t.Errorf("expected version hints:\n%s", m.View())
	}

	m, _ = press(m, "enter")
	if m.wizard.err != "Please choose a valid Minecraft version." {
		t.Errorf("unexpected error %q", m.wizard.err)
	}
	m = pressAndRun(t, m, "1.8", "enter")
	if m.wizard.step != stepVersion || m.wizard.err != "Please choose a valid Minecraft version." {
		t.Errorf("expected unknown version rejected, got step %d err %q", m.wizard.step, m.wizard.err)
	}
	m = pressAndRun(t, m, "ctrl+u", "1.21.4", "enter")
	if m.wizard.step != stepEULA || m.wizard.version != "1.21.4" {
		t.Fatalf("expected EULA step for 1.21.4, got step %d version %q", m.wizard.step, m.wizard.version)
	}

	m, cmd = press(m, "y")
	if m.wizard.step != stepDownload {
		t.Fatalf("expected download step, got %d", m.wizard.step)
	}
	m = feed(m, CreateProgressMsg{Done: 1024, Total: 2048, Generation: m.wizard.generation})
	if m.wizard.fraction != 0.5 {
		t.Errorf("expected half done, got %v", m.wizard.fraction)
	}
	if !strings.Contains(m.View(), "Downloading server.jar") {
		t.Errorf("expected download progress:\n%s", m.View())
	}

	m = feed(m, run(t, cmd)...)
	if m.screen != screenServer || m.view.srv == nil || m.view.srv.Name() != "survival" {
		t.Fatalf("expected the new server view, got screen %d", m.screen)
	}
	assertStatus(t, m, "Server survival created")
	if !m.view.srv.EULAAccepted() {
		t.Error("expected EULA accepted")
	}
	if _, err := os.Stat(filepath.Join(m.view.srv.Dir(), "server.jar")); err != nil {
		t.Errorf("expected server.jar: %v", err)
	}
}

func TestWizard_EscReturnsHome(t *testing.T) {
	m := newTestModel(t, newTestManager(t))
	m, _ = press(m, "n", "survival", "enter", "esc")
	if m.screen != screenHome {
		t.Errorf("expected home after esc, got screen %d", m.screen)
	}

	// Reopening starts over.
	m, _ = press(m, "n")
	if m.wizard.step != stepName || m.wizard.input.Value() != "" {
		t.Errorf("expected a fresh wizard, got step %d value %q", m.wizard.step, m.wizard.input.Value())
	}
}

func TestWizard_CancelDownload(t *testing.T) {
	mgr := newTestManager(t, &fakeProvider{name: "paper", versions: []string{"1.21.4"}, block: true})
	m := newTestModel(t, mgr)

	m = pressAndRun(t, m, "n", "survival", "enter", "enter")
	m = pressAndRun(t, m, "1.21.4", "enter")
	m, cmd := press(m, "n")
	if m.wizard.step != stepDownload {
		t.Fatalf("expected download step, got %d", m.wizard.step)
	}

	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()

	m, _ = press(m, "esc")
	if !m.wizard.canceling || !strings.Contains(m.View(), "Canceling...") {
		t.Errorf("expected canceling state:\n%s", m.View())
	}

	select {
	case msg := <-done:
		m = feed(m, msg)
	case <-time.After(waitFor):
		t.Fatal("creation did not stop after cancel")
	}
	if m.screen != screenHome {
		t.Errorf("expected home, got screen %d", m.screen)
	}
	assertStatus(t, m, "Creation of survival canceled")
	if mgr.Exists("survival") {
		t.Error("expected the partial server to be removed")
	}
}

func TestWizard_IgnoresStaleMessages(t *testing.T) {
	m := newTestModel(t, newTestManager(t))
	m, _ = press(m, "n")
	gen := m.wizard.generation

	m = feed(m, CreateDoneMsg{Generation: gen - 1})
	if m.screen != screenWizard {
		t.Errorf("stale completion left the wizard")
	}
	m = feed(m, VersionsMsg{Software: "paper", Groups: []provider.VersionGroup{{Family: "1.21"}}})
	if m.wizard.groups != nil {
		t.Error("versions applied outside the version step")
	}
}

func TestWizard_QuitDuringDownloadRollsBack(t *testing.T) {
	mgr := newTestManager(t, &fakeProvider{name: "paper", versions: []string{"1.21.4"}, block: true})
	m := newTestModel(t, mgr)

	m = pressAndRun(t, m, "n", "survival", "enter", "enter")
	m = pressAndRun(t, m, "1.21.4", "enter")
	m, cmd := press(m, "n")
	if m.wizard.step != stepDownload {
		t.Fatalf("expected download step, got %d", m.wizard.step)
	}
	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()

	_, quit := press(m, "ctrl+c")
	if quit == nil {
		t.Fatal("expected a quit command")
	}
	if _, ok := quit().(tea.QuitMsg); !ok {
		t.Fatal("ctrl+c did not quit")
	}

	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("creation kept running after quit")
	}
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	if err := mgr.WaitCreates(ctx); err != nil {
		t.Fatal(err)
	}
	if mgr.Exists("survival") {
		t.Error("expected the partial server to be removed")
	}
}

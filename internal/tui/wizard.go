package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	apperrors "github.com/milndr/lodestone-server-manager/internal/errors"
	"github.com/milndr/lodestone-server-manager/internal/format"
	"github.com/milndr/lodestone-server-manager/internal/manager"
	"github.com/milndr/lodestone-server-manager/internal/provider"
)

type wizardStep int

const (
	stepName wizardStep = iota
	stepSoftware
	stepVersion
	stepEULA
	stepDownload
)

// maxVersionGroups is the number of version families listed by the wizard.
const maxVersionGroups = 8

// WizardModel holds the state of the create-server wizard.
type WizardModel struct {
	step       wizardStep
	input      textinput.Model
	softwares  []string
	swCursor   int
	name       string
	software   string
	version    string
	eula       bool
	groups     []provider.VersionGroup
	checking   bool
	canceling  bool
	err        string
	progress   *format.TransferProgress
	fraction   float64
	cancel     context.CancelFunc
	generation uint64
	width      int
}

func newWizard(softwares []string, generation uint64) WizardModel {
	in := textinput.New()
	in.Prompt = "› "
	in.Placeholder = "server name"
	in.CharLimit = manager.MaxNameLength
	in.Focus()
	return WizardModel{input: in, softwares: softwares, generation: generation}
}

// openWizard resets the wizard and shows it.
func (m Model) openWizard() (Model, tea.Cmd) {
	m.wizard = newWizard(m.mgr.Registry().Names(), m.wizard.generation+1)
	m.wizard.width = m.width
	m.screen = screenWizard
	return m, textinput.Blink
}

// updateWizard handles key messages of the wizard.
func (m Model) updateWizard(msg tea.KeyMsg) (Model, tea.Cmd) {
	w := &m.wizard
	if key.Matches(msg, m.keymap.Back) {
		if w.step == stepDownload {
			if w.cancel != nil && !w.canceling {
				w.canceling = true
				w.cancel()
			}
			return m, nil
		}
		m.screen = screenHome
		return m, nil
	}

	switch w.step {
	case stepName:
		if msg.Type == tea.KeyEnter {
			name := strings.TrimSpace(w.input.Value())
			switch {
			case manager.ValidateName(name) != nil:
				w.err = "Please choose a valid name"
			case m.mgr.Exists(name):
				w.err = "Another server already has that name"
			default:
				w.name, w.err = name, ""
				w.step = stepSoftware
				w.input.Blur()
			}
			return m, nil
		}

	case stepSoftware:
		switch {
		case key.Matches(msg, m.keymap.Up):
			w.swCursor = max(w.swCursor-1, 0)
		case key.Matches(msg, m.keymap.Down):
			w.swCursor = min(w.swCursor+1, len(w.softwares)-1)
		case msg.Type == tea.KeyEnter && len(w.softwares) > 0:
			w.software = w.softwares[w.swCursor]
			w.step = stepVersion
			w.groups = nil
			w.input.Reset()
			w.input.Placeholder = "game version, e.g. 1.21.4"
			w.input.CharLimit = 32
			return m, tea.Batch(w.input.Focus(), loadVersionsCmd(m.ctx, m.mgr.Registry(), w.software))
		}
		return m, nil

	case stepVersion:
		if msg.Type == tea.KeyEnter {
			if w.checking {
				return m, nil
			}
			version := strings.TrimSpace(w.input.Value())
			if version == "" {
				w.err = "Please choose a valid Minecraft version."
				return m, nil
			}
			w.checking, w.err = true, ""
			return m, checkVersionCmd(m.ctx, m.mgr.Registry(), w.software, version)
		}

	case stepEULA:
		switch {
		case key.Matches(msg, m.keymap.Yes):
			w.eula = true
		case key.Matches(msg, m.keymap.No):
			w.eula = false
		default:
			return m, nil
		}
		return m.startCreate()

	case stepDownload:
		return m, nil
	}

	var cmd tea.Cmd
	w.input, cmd = w.input.Update(msg)
	return m, cmd
}

func (m Model) startCreate() (Model, tea.Cmd) {
	w := &m.wizard
	w.step = stepDownload
	w.progress = format.NewTransferProgress()
	w.fraction = 0
	ctx, cancel := context.WithCancel(m.ctx)
	w.cancel = cancel
	return m, createServerCmd(ctx, m.ref, m.mgr, w.name, w.software, w.version, w.eula, w.generation)
}

// handleVersions stores the versions listed for the chosen software.
func (m *Model) handleVersions(msg VersionsMsg) {
	if m.wizard.step != stepVersion || msg.Software != m.wizard.software {
		return
	}
	if msg.Err != nil {
		m.wizard.err = "Cannot list versions: " + msg.Err.Error()
		return
	}
	m.wizard.groups = msg.Groups
}

// handleVersionCheck moves on to the EULA step once the version is known.
func (m *Model) handleVersionCheck(msg VersionCheckMsg) {
	w := &m.wizard
	if w.step != stepVersion {
		return
	}
	w.checking = false
	switch {
	case msg.Err != nil:
		w.err = "Cannot check version: " + msg.Err.Error()
	case !msg.OK:
		w.err = "Please choose a valid Minecraft version."
	default:
		w.version, w.err = msg.Version, ""
		w.step = stepEULA
		w.input.Blur()
	}
}

// handleCreateProgress updates the download bar.
func (m *Model) handleCreateProgress(msg CreateProgressMsg) {
	w := &m.wizard
	if msg.Generation != w.generation || w.progress == nil {
		return
	}
	w.fraction, _ = w.progress.Update(msg.Done, msg.Total)
}

// handleCreateDone leaves the wizard, opening the new server on success.
func (m Model) handleCreateDone(msg CreateDoneMsg) (Model, tea.Cmd) {
	w := &m.wizard
	if msg.Generation != w.generation || w.step != stepDownload {
		return m, nil
	}
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	m.reloadServers()

	switch {
	case msg.Err != nil && (w.canceling || apperrors.IsContextError(msg.Err)):
		m.screen = screenHome
		m.footer.SetStatus(fmt.Sprintf("Creation of %s canceled", w.name))
	case msg.Err != nil && msg.Server == nil:
		m.screen = screenHome
		m.footer.SetError(fmt.Sprintf("Cannot create %s: %v", w.name, msg.Err))
	default:
		if msg.Err != nil {
			m.footer.SetError(fmt.Sprintf("Server %s created but the EULA could not be accepted: %v", w.name, msg.Err))
		} else {
			m.footer.SetStatus(fmt.Sprintf("Server %s created", w.name))
		}
		m.home.Select(w.name)
		return m.openServer(w.name)
	}
	return m, nil
}

// View renders the wizard.
func (w WizardModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("New server"))
	b.WriteString("\n\n")

	b.WriteString(w.summary())

	switch w.step {
	case stepName:
		b.WriteString(valueStyle.Render("Name of the server:"))
		b.WriteString("\n" + w.input.View() + "\n")
	case stepSoftware:
		b.WriteString(valueStyle.Render("Server software:"))
		b.WriteString("\n")
		for i, sw := range w.softwares {
			if i == w.swCursor {
				b.WriteString(selectedStyle.Render("› "+softwareLabel(sw)) + "\n")
			} else {
				b.WriteString("  " + softwareLabel(sw) + "\n")
			}
		}
	case stepVersion:
		b.WriteString(valueStyle.Render("Minecraft version:"))
		b.WriteString("\n" + w.input.View() + "\n")
		if w.checking {
			b.WriteString(labelStyle.Render("Checking version...") + "\n")
		}
		b.WriteString(w.versionHints())
	case stepEULA:
		b.WriteString(valueStyle.Render("Do you accept the Minecraft EULA (https://aka.ms/MinecraftEULA)? (y/n)"))
		b.WriteString("\n")
	case stepDownload:
		bar := format.ProgressBar(w.fraction, max(min(w.width-30, 50), 10))
		label := "Downloading server.jar"
		if w.canceling {
			label = "Canceling..."
		}
		fmt.Fprintf(&b, "%s\n%s %5.1f%%", label, bar, w.fraction*100)
		if w.progress != nil {
			fmt.Fprintf(&b, "  %s  ETA %s", w.progress.Summary(), format.FormatETA(w.progress.ETA()))
		}
		b.WriteString("\n")
	}

	if w.err != "" {
		b.WriteString("\n" + statusErrorStyle.Render(w.err) + "\n")
	}
	return panelStyle.Width(max(w.width-2, 0)).Render(strings.TrimRight(b.String(), "\n"))
}

func (w WizardModel) summary() string {
	var rows []string
	if w.step > stepName {
		rows = append(rows, labelStyle.Render("Name:     ")+w.name)
	}
	if w.step > stepSoftware {
		rows = append(rows, labelStyle.Render("Software: ")+softwareLabel(w.software))
	}
	if w.step > stepVersion {
		rows = append(rows, labelStyle.Render("Version:  ")+w.version)
	}
	if len(rows) == 0 {
		return ""
	}
	return strings.Join(rows, "\n") + "\n\n"
}

func (w WizardModel) versionHints() string {
	if len(w.groups) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n" + labelStyle.Render("Available versions:") + "\n")
	limit := max(w.width-16, 20)
	for i, g := range w.groups {
		if i == maxVersionGroups {
			fmt.Fprintf(&b, "%s\n", labelStyle.Render(fmt.Sprintf("... %d more", len(w.groups)-i)))
			break
		}
		line := strings.Join(g.Versions, ", ")
		if len(line) > limit {
			line = line[:limit-3] + "..."
		}
		fmt.Fprintf(&b, "%-8s %s\n", g.Family, line)
	}
	return b.String()
}

func loadVersionsCmd(ctx context.Context, reg *provider.Registry, software string) tea.Cmd {
	return func() tea.Msg {
		p, err := reg.Get(software)
		if err != nil {
			return VersionsMsg{Software: software, Err: err}
		}
		groups, err := p.Versions(ctx)
		return VersionsMsg{Software: software, Groups: groups, Err: err}
	}
}

func checkVersionCmd(ctx context.Context, reg *provider.Registry, software, version string) tea.Cmd {
	return func() tea.Msg {
		p, err := reg.Get(software)
		if err != nil {
			return VersionCheckMsg{Version: version, Err: err}
		}
		ok, err := p.VersionExists(ctx, version)
		return VersionCheckMsg{Version: version, OK: ok, Err: err}
	}
}

func createServerCmd(ctx context.Context, ref *programRef, mgr *manager.Manager, name, software, version string, eula bool, gen uint64) tea.Cmd {
	return func() tea.Msg {
		srv, err := mgr.Create(ctx, name, software, version, func(done, total int64) {
			ref.Send(CreateProgressMsg{Done: done, Total: total, Generation: gen})
		})
		if err == nil && eula {
			err = srv.AcceptEULA()
		}
		return CreateDoneMsg{Server: srv, Err: err, Generation: gen}
	}
}

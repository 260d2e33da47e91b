package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/milndr/lodestone-server-manager/internal/format"
	"github.com/milndr/lodestone-server-manager/internal/manager"
	"github.com/milndr/lodestone-server-manager/internal/provider"
	"github.com/milndr/lodestone-server-manager/internal/server"
	"github.com/milndr/lodestone-server-manager/internal/sysmon"
	"github.com/milndr/lodestone-server-manager/internal/ui"
)

// command is one entry of the REPL's command table.
type command struct {
	name    string
	aliases []string
	usage   string
	help    string
	minArgs int
	// maxArgs > 0 keeps everything after the (maxArgs-1)th field as one argument.
	maxArgs int
	exit    bool
	run     func(ctx context.Context, args []string)
}

func (r *REPL) commandTable() []command {
	return []command{
		{name: "help", aliases: []string{"?"}, usage: "help", help: "List commands", run: r.cmdHelp},
		{name: "list", aliases: []string{"ls"}, usage: "list", help: "List servers", run: r.cmdList},
		{name: "create", usage: "create <name> <software> <version>", help: "Create a server and download its jar", minArgs: 3, run: r.cmdCreate},
		{name: "wizard", usage: "wizard", help: "Create a server step by step", run: r.cmdWizard},
		{name: "start", usage: "start <name>", help: "Start a server", minArgs: 1, maxArgs: 1, run: r.cmdStart},
		{name: "stop", usage: "stop <name>", help: "Stop a server", minArgs: 1, maxArgs: 1, run: r.cmdStop},
		{name: "restart", usage: "restart <name>", help: "Restart a server", minArgs: 1, maxArgs: 1, run: r.cmdRestart},
		{name: "console", usage: "console <name>", help: "Attach to a server console (exit to detach)", minArgs: 1, maxArgs: 1, run: r.cmdConsole},
		{name: "send", usage: "send <name> <command>", help: "Send a console command", minArgs: 2, maxArgs: 2, run: r.cmdSend},
		{name: "rcon", usage: "rcon <name> <command>", help: "Send a command over RCON and print the reply", minArgs: 2, maxArgs: 2, run: r.cmdRCON},
		{name: "info", usage: "info <name>", help: "Show server details and process usage", minArgs: 1, maxArgs: 1, run: r.cmdInfo},
		{name: "players", usage: "players <name>", help: "Show online players and operators", minArgs: 1, maxArgs: 1, run: r.cmdPlayers},
		{name: "delete", usage: "delete <name>", help: "Delete a server (cannot be undone)", minArgs: 1, maxArgs: 1, run: r.cmdDelete},
		{name: "list_properties", usage: "list_properties <name>", help: "Show server.properties", minArgs: 1, maxArgs: 1, run: r.cmdListProperties},
		{name: "set_property", usage: "set_property <name> <key> <value>", help: "Change a server property", minArgs: 3, maxArgs: 3, run: r.cmdSetProperty},
		{name: "set_memory", usage: "set_memory <name> <max GB> [min GB]", help: "Set the server heap size", minArgs: 2, run: r.cmdSetMemory},
		{name: "accept_eula", usage: "accept_eula <name>", help: "Accept the Minecraft EULA", minArgs: 1, maxArgs: 1, run: r.cmdAcceptEULA},
		{name: "list_versions", usage: "list_versions <software>", help: "List versions offered by paper or vanilla", minArgs: 1, maxArgs: 1, run: r.cmdListVersions},
		{name: "backup", usage: "backup <name>", help: "Archive a server now", minArgs: 1, maxArgs: 1, run: r.cmdBackup},
		{name: "backups", usage: "backups <name>", help: "List archives of a server", minArgs: 1, maxArgs: 1, run: r.cmdBackups},
		{name: "schedule_backup", usage: "schedule_backup <name> <cron|off> [keep <n>]", help: "Schedule backups, e.g. @daily or \"0 4 * * *\"", minArgs: 2, maxArgs: 2, run: r.cmdScheduleBackup},
		{name: "refresh", usage: "refresh", help: "Reload servers from disk and clear version caches", run: r.cmdRefresh},
		{name: "exit", aliases: []string{"quit", "q"}, usage: "exit", help: "Stop running servers and leave", exit: true},
	}
}

func (r *REPL) cmdHelp(context.Context, []string) {
	width := 0
	for _, c := range r.commands {
		width = max(width, len(c.usage))
	}
	fmt.Fprintf(r.out, "%sAvailable commands:%s\n", ui.ColorBold(), ui.ColorReset())
	for _, c := range r.commands {
		usage := c.usage
		if len(c.aliases) > 0 {
			usage = strings.Join(append([]string{c.name}, c.aliases...), " / ")
		}
		fmt.Fprintf(r.out, "  %s%-*s%s  %s\n", ui.ColorYellow(), width, usage, ui.ColorReset(), c.help)
	}
}

// server resolves name, printing the standard message when it is unknown.
func (r *REPL) server(name string) (*server.Server, bool) {
	srv, err := r.manager.Get(name)
	if err != nil {
		r.warnf("No server with name %s", name)
		return nil, false
	}
	return srv, true
}

func (r *REPL) cmdList(context.Context, []string) {
	servers := r.manager.Servers()
	if len(servers) == 0 {
		fmt.Fprintf(r.out, "No servers yet. Use %screate%s or %swizard%s to add one.\n",
			ui.ColorYellow(), ui.ColorReset(), ui.ColorYellow(), ui.ColorReset())
		return
	}
	rows := make([][]cell, 0, len(servers))
	for _, srv := range servers {
		state := srv.State().String()
		rows = append(rows, []cell{
			{text: srv.Name(), color: ui.ColorBold()},
			{text: softwareLabel(srv.Software()), color: ui.ColorCyan()},
			{text: srv.Version()},
			{text: state, color: ui.StateColor(state)},
			{text: srv.Dir(), color: ui.ColorGrey()},
		})
	}
	printTable(r.out, []string{"Name", "Software", "Version", "State", "Path"}, rows)
}

// softwareLabel capitalizes a manifest software name for display.
func softwareLabel(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (r *REPL) cmdCreate(ctx context.Context, args []string) {
	r.create(ctx, args[0], args[1], args[2])
}

// create downloads and registers a server, reporting progress. It returns
// the server on success.
func (r *REPL) create(ctx context.Context, name, software, version string) *server.Server {
	display := newDownloadDisplay(r.spinner(r.out), name+" server.jar")
	srv, err := r.manager.Create(ctx, name, software, version, display.Update)
	display.Finish(r.out, err)
	if err != nil {
		r.printCreateError(name, software, err)
		return nil
	}
	r.successf("Server %s created in %s", srv.Name(), srv.Dir())
	return srv
}

func (r *REPL) printCreateError(name, software string, err error) {
	switch {
	case errors.Is(err, manager.ErrExists):
		r.warnf("Server %s already exists", name)
	case errors.Is(err, manager.ErrInvalidName):
		r.warnf("Invalid server name %q: %v", name, err)
	case errors.Is(err, provider.ErrUnsupported):
		r.warnf("Unknown software %s (available: %s)", software, strings.Join(r.manager.Registry().Names(), ", "))
	case errors.Is(err, provider.ErrUnknownVersion):
		r.warnf("Unknown version: %v", err)
	default:
		r.errorf("Error: %v", err)
	}
}

func (r *REPL) cmdStart(ctx context.Context, args []string) {
	srv, ok := r.server(args[0])
	if !ok {
		return
	}
	if !srv.EULAAccepted() {
		r.warnf("The EULA of %s is not accepted; the server will stop right away. Run accept_eula %s first.", srv.Name(), srv.Name())
	}
	if err := srv.Start(ctx); err != nil {
		r.printLifecycleError(srv, err)
		return
	}
	r.successf("Starting %s (pid %d)", srv.Name(), srv.PID())
}

func (r *REPL) cmdStop(_ context.Context, args []string) {
	srv, ok := r.server(args[0])
	if !ok {
		return
	}
	if !srv.State().CanStop() {
		r.warnf("Server %s is not running", srv.Name())
		return
	}
	if err := srv.Stop(); err != nil {
		r.printLifecycleError(srv, err)
		return
	}
	r.successf("Stopping %s", srv.Name())
}

func (r *REPL) cmdRestart(ctx context.Context, args []string) {
	srv, ok := r.server(args[0])
	if !ok {
		return
	}
	fmt.Fprintf(r.out, "Restarting %s...\n", srv.Name())
	if err := srv.Restart(ctx); err != nil {
		r.printLifecycleError(srv, err)
		return
	}
	r.successf("Starting %s (pid %d)", srv.Name(), srv.PID())
}

func (r *REPL) printLifecycleError(srv *server.Server, err error) {
	switch {
	case errors.Is(err, server.ErrAlreadyRunning):
		r.warnf("Server %s is already %s", srv.Name(), strings.ToLower(srv.State().String()))
	case errors.Is(err, server.ErrJarMissing):
		r.warnf("Server %s has no %s; recreate it", srv.Name(), server.JarName)
	default:
		r.errorf("Error: %v", err)
	}
}

func (r *REPL) cmdSend(_ context.Context, args []string) {
	srv, ok := r.server(args[0])
	if !ok {
		return
	}
	if err := srv.SendCommand(args[1]); err != nil {
		if errors.Is(err, server.ErrNotRunning) {
			r.warnf("Server %s is not running", srv.Name())
			return
		}
		r.errorf("Error: %v", err)
	}
}

func (r *REPL) cmdInfo(_ context.Context, args []string) {
	srv, ok := r.server(args[0])
	if !ok {
		return
	}
	st := srv.Status()
	maxGB, minGB := srv.Memory()
	state := st.State.String()

	fmt.Fprintf(r.out, "%s%s%s\n", ui.ColorBold(), st.Name, ui.ColorReset())
	fmt.Fprintf(r.out, "  Software:  %s %s\n", softwareLabel(st.Software), st.Version)
	fmt.Fprintf(r.out, "  State:     %s\n", ui.Colorize(ui.StateColor(state), state))
	fmt.Fprintf(r.out, "  Path:      %s\n", st.Dir)
	fmt.Fprintf(r.out, "  Memory:    %s\n", memoryLabel(maxGB, minGB))
	fmt.Fprintf(r.out, "  EULA:      %s\n", yesNo(srv.EULAAccepted()))
	if mf, err := r.manager.Manifest(st.Name); err == nil && mf.BackupSchedule != "" {
		fmt.Fprintf(r.out, "  Backups:   %s (keep %s)\n", mf.BackupSchedule, keepLabel(mf.BackupKeep))
	}
	if st.State == server.Crashed {
		fmt.Fprintf(r.out, "  Exit code: %d\n", srv.LastExitCode())
	}
	host := sysmon.Sample()
	fmt.Fprintf(r.out, "  Host:      CPU %.1f%%, RAM %.1f%% used\n", host.CPUPercent, host.MemPercent)
	if !st.State.Active() {
		return
	}
	fmt.Fprintf(r.out, "  PID:       %d\n", st.PID)
	fmt.Fprintf(r.out, "  Uptime:    %s\n", format.FormatUptime(st.Uptime))
	fmt.Fprintf(r.out, "  Players:   %d online\n", len(st.Players))
	if ps, err := r.sampler.Sample(st.PID); err == nil {
		fmt.Fprintf(r.out, "  CPU:       %.1f%%\n", ps.CPUPercent)
		fmt.Fprintf(r.out, "  RAM:       %s\n", format.FormatBytes(int64(ps.RSS)))
	}
}

func memoryLabel(maxGB, minGB int) string {
	if minGB > 0 {
		return fmt.Sprintf("%d-%d GB", minGB, maxGB)
	}
	return fmt.Sprintf("%d GB", maxGB)
}

func keepLabel(keep int) string {
	if keep <= 0 {
		return "all"
	}
	return strconv.Itoa(keep)
}

func yesNo(b bool) string {
	if b {
		return ui.Colorize(ui.ColorGreen(), "accepted")
	}
	return ui.Colorize(ui.ColorYellow(), "not accepted")
}

func (r *REPL) cmdPlayers(_ context.Context, args []string) {
	srv, ok := r.server(args[0])
	if !ok {
		return
	}
	online := srv.OnlinePlayers()
	if len(online) == 0 {
		fmt.Fprintln(r.out, "No players online.")
	} else {
		fmt.Fprintf(r.out, "%sOnline (%d):%s %s\n", ui.ColorBold(), len(online), ui.ColorReset(), strings.Join(online, ", "))
	}

	ops := srv.OppedPlayers()
	if len(ops) == 0 {
		fmt.Fprintln(r.out, "No operators.")
		return
	}
	rows := make([][]cell, 0, len(ops))
	for _, op := range ops {
		rows = append(rows, []cell{{text: op.Name}, {text: strconv.Itoa(op.Level)}, {text: op.UUID, color: ui.ColorGrey()}})
	}
	printTable(r.out, []string{"Operator", "Level", "UUID"}, rows)
}

func (r *REPL) cmdDelete(ctx context.Context, args []string) {
	srv, ok := r.server(args[0])
	if !ok {
		return
	}
	if srv.State().Active() {
		r.warnf("Stop the server first")
		return
	}
	if !r.confirm(ctx, fmt.Sprintf("%sAre you sure you want to delete server %s? This cannot be undone.%s",
		ui.ColorRed(), srv.Name(), ui.ColorReset())) {
		return
	}
	if err := r.manager.Delete(srv.Name()); err != nil {
		if errors.Is(err, manager.ErrServerRunning) {
			r.warnf("Stop the server first")
			return
		}
		r.errorf("Error: %v", err)
		return
	}
	if r.scheduler != nil {
		_ = r.scheduler.Set(srv.Name(), "")
	}
	r.successf("Server %s deleted", srv.Name())
}

func (r *REPL) cmdAcceptEULA(_ context.Context, args []string) {
	srv, ok := r.server(args[0])
	if !ok {
		return
	}
	if err := srv.AcceptEULA(); err != nil {
		r.errorf("Error: %v", err)
		return
	}
	r.successf("EULA accepted for %s", srv.Name())
}

func (r *REPL) cmdSetMemory(_ context.Context, args []string) {
	srv, ok := r.server(args[0])
	if !ok {
		return
	}
	maxGB, err := strconv.Atoi(args[1])
	if err != nil || maxGB <= 0 {
		r.warnf("Invalid max memory %q: expected a positive number of GB", args[1])
		return
	}
	minGB := 0
	if len(args) > 2 {
		if minGB, err = strconv.Atoi(args[2]); err != nil || minGB < 0 {
			r.warnf("Invalid min memory %q", args[2])
			return
		}
	}
	err = r.manager.UpdateManifest(srv.Name(), func(mf *manager.Manifest) error {
		mf.MaxRAMGB, mf.MinRAMGB = maxGB, minGB
		return nil
	})
	if err != nil {
		r.warnf("Cannot set memory: %v", err)
		return
	}
	r.successf("Memory of %s set to %s (applies on next start)", srv.Name(), memoryLabel(maxGB, minGB))
}

func (r *REPL) cmdListVersions(ctx context.Context, args []string) {
	p, err := r.manager.Registry().Get(args[0])
	if err != nil {
		r.warnf("Unknown software %s (available: %s)", args[0], strings.Join(r.manager.Registry().Names(), ", "))
		return
	}
	groups, err := p.Versions(ctx)
	if err != nil {
		r.errorf("Could not list versions for %s: %v", args[0], err)
		return
	}
	r.printVersions(groups)
}

func (r *REPL) printVersions(groups []provider.VersionGroup) {
	for _, g := range groups {
		fmt.Fprintf(r.out, "%s%-8s%s %s\n", ui.ColorCyan(), g.Family, ui.ColorReset(), strings.Join(g.Versions, ", "))
	}
}

func (r *REPL) cmdRefresh(context.Context, []string) {
	r.manager.Registry().Refresh()
	if err := r.manager.Refresh(); err != nil {
		r.errorf("Error: %v", err)
		return
	}
	if r.scheduler != nil {
		if err := r.scheduler.Sync(r.manager.BackupSchedules()); err != nil {
			r.warnf("Some backup schedules are invalid: %v", err)
		}
	}
	r.successf("Loaded %d server(s)", len(r.manager.Names()))
}

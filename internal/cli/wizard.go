package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/milndr/lodestone-server-manager/internal/manager"
	"github.com/milndr/lodestone-server-manager/internal/ui"
)

const wizardPrompt = "Wizard> "

// prompt asks one wizard question. ok is false when input ended.
func (r *REPL) prompt(ctx context.Context, question string) (string, bool) {
	fmt.Fprintf(r.out, "%s%s%s\n", ui.ColorCyan(), question, ui.ColorReset())
	return r.ask(ctx, ui.Colorize(ui.ColorBlue(), wizardPrompt))
}

// cmdWizard walks through name, software and version, downloads the jar,
// then offers to accept the EULA and start the server.
func (r *REPL) cmdWizard(ctx context.Context, _ []string) {
	name, ok := r.wizardName(ctx)
	if !ok {
		return
	}
	software, ok := r.wizardSoftware(ctx)
	if !ok {
		return
	}
	version, ok := r.wizardVersion(ctx, software)
	if !ok {
		return
	}

	srv := r.create(ctx, name, software, version)
	if srv == nil {
		return
	}

	if !r.confirm(ctx, "Do you agree with the Minecraft EULA (https://aka.ms/MinecraftEULA)? It is needed to play.") {
		fmt.Fprintf(r.out, "You can accept it later with %saccept_eula %s%s.\n", ui.ColorYellow(), name, ui.ColorReset())
		return
	}
	if err := srv.AcceptEULA(); err != nil {
		r.errorf("Error: %v", err)
		return
	}
	if !r.confirm(ctx, "Do you want to start your server?") {
		return
	}
	if err := srv.Start(ctx); err != nil {
		r.printLifecycleError(srv, err)
		return
	}
	r.successf("Starting %s (pid %d)", srv.Name(), srv.PID())
}

func (r *REPL) wizardName(ctx context.Context) (string, bool) {
	for {
		name, ok := r.prompt(ctx, "Choose a name for your server.")
		if !ok {
			return "", false
		}
		switch err := manager.ValidateName(name); {
		case name == "":
			r.warnf("Please choose a valid name")
		case err != nil:
			r.warnf("Please choose a valid name: %v", err)
		case r.manager.Exists(name):
			r.warnf("Another server already has that name")
		default:
			return name, true
		}
	}
}

func (r *REPL) wizardSoftware(ctx context.Context) (string, bool) {
	names := r.manager.Registry().Names()
	choices := strings.Join(names, ", ")
	for {
		software, ok := r.prompt(ctx, fmt.Sprintf("Choose a software for your server (%s).", choices))
		if !ok {
			return "", false
		}
		software = strings.ToLower(software)
		if slices.Contains(names, software) {
			return software, true
		}
		r.warnf("Please choose a valid server software (%s)", choices)
	}
}

func (r *REPL) wizardVersion(ctx context.Context, software string) (string, bool) {
	p, err := r.manager.Registry().Get(software)
	if err != nil {
		r.errorf("Error: %v", err)
		return "", false
	}
	for {
		version, ok := r.prompt(ctx, `Choose a Minecraft version for your server, type "list" for available versions.`)
		if !ok {
			return "", false
		}
		if strings.EqualFold(version, "list") {
			groups, err := p.Versions(ctx)
			if err != nil {
				r.errorf("Could not list versions for %s: %v", software, err)
				continue
			}
			r.printVersions(groups)
			continue
		}
		if version == "" {
			r.warnf("Please choose a valid Minecraft version.")
			continue
		}
		exists, err := p.VersionExists(ctx, version)
		if err != nil {
			r.errorf("Could not check version %s: %v", version, err)
			continue
		}
		if !exists {
			r.warnf("Please choose a valid Minecraft version.")
			continue
		}
		return version, true
	}
}

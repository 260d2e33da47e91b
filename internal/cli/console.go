package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/milndr/lodestone-server-manager/internal/server"
	"github.com/milndr/lodestone-server-manager/internal/ui"
)

// cmdConsole replays recent output, then streams new lines while forwarding
// input to the server until "exit", EOF or cancellation.
func (r *REPL) cmdConsole(ctx context.Context, args []string) {
	srv, ok := r.server(args[0])
	if !ok {
		return
	}
	r.successf("Attached to console of server %s. Type 'exit' to detach.", srv.Name())

	unsubscribe := srv.Subscribe(func(ev server.Event) {
		switch ev.Kind {
		case server.EventLogLine:
			fmt.Fprintln(r.out, ev.Line)
		case server.EventStateChanged:
			state := ev.State.String()
			fmt.Fprintf(r.out, "%s[%s is now %s]%s\n", ui.ColorGrey(), ev.Server, ui.Colorize(ui.StateColor(state), state), ui.ColorReset())
		}
	})
	// Replay after subscribing so no line falls between history and stream.
	for _, line := range srv.Logs(ConsoleHistory) {
		fmt.Fprintln(r.out, line)
	}
	defer func() {
		unsubscribe()
		r.warnf("Detached from console of server %s", srv.Name())
	}()

	for {
		line, ok := r.readLine(ctx)
		if !ok {
			return
		}
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case strings.EqualFold(line, "exit"):
			return
		}
		if err := srv.SendCommand(line); err != nil {
			if errors.Is(err, server.ErrNotRunning) {
				r.errorf("Server is not running.")
				continue
			}
			r.errorf("Error: %v", err)
		}
	}
}

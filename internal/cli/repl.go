// Package cli provides the interactive prompt used to manage servers from a
// plain terminal.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/milndr/lodestone-server-manager/internal/backup"
	"github.com/milndr/lodestone-server-manager/internal/logging"
	"github.com/milndr/lodestone-server-manager/internal/manager"
	"github.com/milndr/lodestone-server-manager/internal/sysmon"
	"github.com/milndr/lodestone-server-manager/internal/ui"
)

const (
	// Prompt is printed before every command.
	Prompt = "lodestone> "
	// ConsoleHistory is the number of lines replayed when attaching to a console.
	ConsoleHistory = 20
	// maxSuggestDistance bounds the edit distance of "Did you mean" suggestions.
	maxSuggestDistance = 2
	// shutdownGrace is added to the stop timeout when stopping servers on exit.
	shutdownGrace = 5 * time.Second
)

// REPLConfig holds configuration for the REPL session.
type REPLConfig struct {
	// BackupsDir receives archives created by the backup command.
	BackupsDir string
	// StopTimeout is how long servers get to stop when the REPL exits.
	StopTimeout time.Duration
}

// REPLOption configures a REPL.
type REPLOption func(*REPL)

// WithScheduler keeps the backup scheduler in sync with schedule_backup.
func WithScheduler(s *backup.Scheduler) REPLOption {
	return func(r *REPL) { r.scheduler = s }
}

// WithSpinnerFactory replaces the terminal spinner used for downloads.
func WithSpinnerFactory(f SpinnerFactory) REPLOption {
	return func(r *REPL) {
		if f != nil {
			r.spinner = f
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) REPLOption {
	return func(r *REPL) {
		if l != nil {
			r.logger = l
		}
	}
}

// REPL is an interactive server management session.
type REPL struct {
	config    REPLConfig
	manager   *manager.Manager
	scheduler *backup.Scheduler
	sampler   *sysmon.ProcessSampler
	spinner   SpinnerFactory
	logger    logging.Logger
	commands  []command

	in    io.Reader
	out   io.Writer
	lines <-chan string
}

// NewREPL creates a new REPL over mgr.
func NewREPL(mgr *manager.Manager, config REPLConfig, opts ...REPLOption) *REPL {
	if config.BackupsDir == "" {
		config.BackupsDir = backup.DefaultDir
	}
	r := &REPL{
		config:  config,
		manager: mgr,
		sampler: sysmon.NewProcessSampler(),
		spinner: newSpinner,
		logger:  logging.Nop(),
		in:      os.Stdin,
		out:     &syncWriter{w: os.Stdout},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.commands = r.commandTable()
	return r
}

// SetInput sets a custom input reader (useful for testing).
func (r *REPL) SetInput(in io.Reader) {
	r.in = in
}

// SetOutput sets a custom output writer (useful for testing). Writes are
// serialized because server output is printed from other goroutines.
func (r *REPL) SetOutput(out io.Writer) {
	r.out = &syncWriter{w: out}
}

// syncWriter serializes writes from the prompt and from console subscribers.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// Start runs the session until exit, EOF or ctx cancellation. Running
// servers are stopped before it returns.
func (r *REPL) Start(ctx context.Context) {
	r.lines = readLines(r.in)
	r.printBanner()

	for {
		fmt.Fprint(r.out, ui.ColorGreen()+Prompt+ui.ColorReset())
		input, ok := r.readLine(ctx)
		if !ok {
			fmt.Fprintln(r.out)
			break
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !r.processCommand(ctx, input) {
			break
		}
	}
	r.shutdown(ctx)
}

// readLines delivers input lines on a channel that is closed at EOF.
func readLines(in io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			ch <- sc.Text()
		}
	}()
	return ch
}

// readLine returns the next input line. ok is false at EOF or when ctx is done.
func (r *REPL) readLine(ctx context.Context) (line string, ok bool) {
	select {
	case <-ctx.Done():
		return "", false
	case line, ok = <-r.lines:
		return line, ok
	}
}

// ask prints question and returns the trimmed answer.
func (r *REPL) ask(ctx context.Context, question string) (string, bool) {
	fmt.Fprint(r.out, question)
	line, ok := r.readLine(ctx)
	if !ok {
		fmt.Fprintln(r.out)
	}
	return strings.TrimSpace(line), ok
}

// confirm asks a y/n question until it gets a valid answer.
func (r *REPL) confirm(ctx context.Context, question string) bool {
	for {
		answer, ok := r.ask(ctx, question+" "+ui.Colorize(ui.ColorGreen(), "y")+"/"+ui.Colorize(ui.ColorRed(), "n")+" ")
		if !ok {
			return false
		}
		switch strings.ToLower(answer) {
		case "y", "yes":
			return true
		case "n", "no":
			return false
		}
		r.warnf("Please enter a valid answer (y/n).")
	}
}

func (r *REPL) printBanner() {
	fmt.Fprintf(r.out, "\n%s%sLodestone Server Manager%s\n", ui.ColorBold(), ui.ColorCyan(), ui.ColorReset())
	fmt.Fprintf(r.out, "Type %shelp%s or %s?%s to list commands.\n\n",
		ui.ColorYellow(), ui.ColorReset(), ui.ColorYellow(), ui.ColorReset())
}

// processCommand parses and executes a user command.
// Returns false if the REPL should exit.
func (r *REPL) processCommand(ctx context.Context, input string) bool {
	name, rest, _ := strings.Cut(input, " ")
	name = strings.ToLower(name)

	cmd, ok := r.lookup(name)
	if !ok {
		r.errorf("Unknown command: %s", name)
		if s := r.suggest(name); s != "" {
			fmt.Fprintf(r.out, "Did you mean %s%s%s?\n", ui.ColorYellow(), s, ui.ColorReset())
		} else {
			fmt.Fprintf(r.out, "Type %shelp%s to see available commands.\n", ui.ColorYellow(), ui.ColorReset())
		}
		return true
	}
	if cmd.exit {
		return false
	}

	args := splitArgs(rest, cmd.maxArgs)
	if len(args) < cmd.minArgs {
		r.warnf("Usage: %s", cmd.usage)
		return true
	}
	cmd.run(ctx, args)
	return true
}

func (r *REPL) lookup(name string) (command, bool) {
	for _, c := range r.commands {
		if c.name == name {
			return c, true
		}
		for _, a := range c.aliases {
			if a == name {
				return c, true
			}
		}
	}
	return command{}, false
}

// suggest returns the closest command name, or "" when none is close enough.
func (r *REPL) suggest(name string) string {
	best, bestDist := "", maxSuggestDistance+1
	for _, c := range r.commands {
		if d := levenshtein.ComputeDistance(name, c.name); d < bestDist {
			best, bestDist = c.name, d
		}
	}
	return best
}

// splitArgs splits s on whitespace into at most n fields; the last field
// keeps the remainder verbatim. n <= 0 means no limit.
func splitArgs(s string, n int) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if n <= 0 {
		return strings.Fields(s)
	}
	var out []string
	for len(out) < n-1 {
		s = strings.TrimLeft(s, " \t")
		i := strings.IndexAny(s, " \t")
		if i < 0 {
			break
		}
		out = append(out, s[:i])
		s = s[i:]
	}
	if s = strings.TrimSpace(s); s != "" {
		out = append(out, s)
	}
	return out
}

// shutdown stops every running server. It outlives ctx because ctx is
// usually canceled by the signal that ended the session.
func (r *REPL) shutdown(ctx context.Context) {
	active := 0
	for _, srv := range r.manager.Servers() {
		if srv.State().Active() {
			active++
		}
	}
	if active > 0 {
		fmt.Fprintf(r.out, "Stopping %d running server(s)...\n", active)
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.config.StopTimeout+shutdownGrace)
		defer cancel()
		if err := r.manager.StopAll(stopCtx); err != nil {
			r.logger.Error("failed to stop servers", err)
			r.errorf("Error: %v", err)
		}
	}
	fmt.Fprintf(r.out, "%sGoodbye!%s\n", ui.ColorGreen(), ui.ColorReset())
}

func (r *REPL) errorf(format string, args ...any) {
	fmt.Fprintf(r.out, "%s%s%s\n", ui.ColorRed(), fmt.Sprintf(format, args...), ui.ColorReset())
}

func (r *REPL) warnf(format string, args ...any) {
	fmt.Fprintf(r.out, "%s%s%s\n", ui.ColorYellow(), fmt.Sprintf(format, args...), ui.ColorReset())
}

func (r *REPL) successf(format string, args ...any) {
	fmt.Fprintf(r.out, "%s%s%s\n", ui.ColorGreen(), fmt.Sprintf(format, args...), ui.ColorReset())
}

// Package server manages a single Minecraft server process: its lifecycle
// state machine, console history, online players and on-disk configuration.
package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/milndr/lodestone-server-manager/internal/logging"
	"github.com/milndr/lodestone-server-manager/internal/ringbuf"
)

const (
	// DefaultMaxRAMGB is the -Xmx value used when none is configured.
	DefaultMaxRAMGB = 2
	// DefaultStopTimeout is how long a server may take to honor "stop" before it is killed.
	DefaultStopTimeout = 30 * time.Second
	// DefaultHistory is the number of console lines kept per server.
	DefaultHistory = 10000

	maxLineLength = 1 << 20
)

// CommandFunc builds the process used to run a server.
type CommandFunc func(name string, args ...string) *exec.Cmd

// EventKind identifies what an Event reports.
type EventKind int

// Event kinds.
const (
	EventStateChanged EventKind = iota
	EventLogLine
	EventPlayerJoined
	EventPlayerLeft
)

// Event is delivered to subscribers when something observable happens.
type Event struct {
	Kind     EventKind
	Server   string
	State    State
	Previous State
	Line     string
	Player   string
	ExitCode int
	Time     time.Time
}

// Status is a point-in-time snapshot of a server.
type Status struct {
	Name     string
	Software string
	Version  string
	Dir      string
	State    State
	PID      int
	Players  []string
	Uptime   time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithMemory sets the heap limits in gigabytes. minGB <= 0 leaves -Xms unset.
func WithMemory(maxGB, minGB int) Option {
	return func(s *Server) {
		if maxGB > 0 {
			s.maxRAM = maxGB
		}
		s.minRAM = max(minGB, 0)
	}
}

// WithJVMArgs adds JVM arguments placed before -jar.
func WithJVMArgs(args ...string) Option {
	return func(s *Server) { s.jvmArgs = append([]string(nil), args...) }
}

// WithJavaPath sets the java executable.
func WithJavaPath(path string) Option {
	return func(s *Server) {
		if path != "" {
			s.javaPath = path
		}
	}
}

// WithStopTimeout sets how long Stop waits before killing the process.
func WithStopTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.stopTimeout = d
		}
	}
}

// WithCommandFunc replaces exec.Command, mainly for tests.
func WithCommandFunc(fn CommandFunc) Option {
	return func(s *Server) {
		if fn != nil {
			s.command = fn
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithHistory sets how many console lines are retained.
func WithHistory(lines int) Option {
	return func(s *Server) { s.logs = ringbuf.New[string](lines) }
}

// Server is a managed Minecraft server. All methods are safe for concurrent use.
type Server struct {
	name     string
	dir      string
	software string
	version  string

	javaPath    string
	command     CommandFunc
	logger      logging.Logger
	stopTimeout time.Duration

	propsMu sync.Mutex
	writeMu sync.Mutex

	mu            sync.Mutex
	maxRAM        int
	minRAM        int
	jvmArgs       []string
	state         State
	cmd           *exec.Cmd
	stdin         io.WriteCloser
	stopRequested bool
	stopTimer     *time.Timer
	startedAt     time.Time
	exitCode      int
	done          chan struct{}
	players       []string
	logs          *ringbuf.RingBuffer[string]

	subMu   sync.RWMutex
	subs    map[int]func(Event)
	nextSub int
}

// New creates a stopped server rooted at dir.
func New(dir, name, software, version string, opts ...Option) *Server {
	done := make(chan struct{})
	close(done)
	s := &Server{
		name:        name,
		dir:         dir,
		software:    software,
		version:     version,
		javaPath:    "java",
		command:     exec.Command,
		logger:      logging.Nop(),
		stopTimeout: DefaultStopTimeout,
		maxRAM:      DefaultMaxRAMGB,
		state:       Stopped,
		done:        done,
		logs:        ringbuf.New[string](DefaultHistory),
		subs:        make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the server name.
func (s *Server) Name() string { return s.name }

// Dir returns the server directory.
func (s *Server) Dir() string { return s.dir }

// Software returns the provider name ("paper", "vanilla").
func (s *Server) Software() string { return s.software }

// Version returns the game version.
func (s *Server) Version() string { return s.version }

// State returns the current lifecycle state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PID returns the process id, or 0 when no process is running.
func (s *Server) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pidLocked()
}

func (s *Server) pidLocked() int {
	if s.cmd == nil || s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

// Uptime returns how long the current process has been running.
func (s *Server) Uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Active() {
		return 0
	}
	return time.Since(s.startedAt)
}

// LastExitCode returns the exit code of the previous process.
func (s *Server) LastExitCode() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitCode
}

// Memory returns the configured maximum and minimum heap in gigabytes.
func (s *Server) Memory() (maxGB, minGB int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxRAM, s.minRAM
}

// SetMemory changes the heap limits used by the next start.
func (s *Server) SetMemory(maxGB, minGB int) error {
	if maxGB <= 0 {
		return errors.Newf("maximum memory must be positive, got %d", maxGB)
	}
	if minGB < 0 || minGB > maxGB {
		return errors.Newf("minimum memory must be between 0 and %d, got %d", maxGB, minGB)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxRAM, s.minRAM = maxGB, minGB
	return nil
}

// JVMArgs returns the extra JVM arguments.
func (s *Server) JVMArgs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.jvmArgs...)
}

// SetJVMArgs replaces the extra JVM arguments used by the next start.
func (s *Server) SetJVMArgs(args []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jvmArgs = append([]string(nil), args...)
}

// CommandLine returns the arguments passed to java.
func (s *Server) CommandLine() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commandLineLocked()
}

func (s *Server) commandLineLocked() []string {
	args := make([]string, 0, 5+len(s.jvmArgs))
	if s.minRAM > 0 {
		args = append(args, fmt.Sprintf("-Xms%dG", s.minRAM))
	}
	args = append(args, fmt.Sprintf("-Xmx%dG", s.maxRAM))
	args = append(args, s.jvmArgs...)
	return append(args, "-jar", JarName, "nogui")
}

// Start launches the server process. It fails with ErrAlreadyRunning unless the
// server is stopped or crashed, and with ErrJarMissing when server.jar is absent.
func (s *Server) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if !s.state.CanStart() {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	if !s.HasJar() {
		s.mu.Unlock()
		return errors.Wrapf(ErrJarMissing, "in %s", s.dir)
	}

	cmd := s.command(s.javaPath, s.commandLineLocked()...)
	cmd.Dir = s.dir
	stdin, err := cmd.StdinPipe()
	if err != nil {
		s.mu.Unlock()
		return errors.Wrap(err, "open stdin")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = stdin.Close()
		s.mu.Unlock()
		return errors.Wrap(err, "open stdout")
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		s.mu.Unlock()
		return errors.Wrapf(err, "spawn %s", s.javaPath)
	}

	done := make(chan struct{})
	s.cmd, s.stdin, s.done = cmd, stdin, done
	s.stopRequested = false
	s.players = nil
	s.startedAt = time.Now()
	ev := s.setStateLocked(Starting)
	pid := s.pidLocked()
	s.mu.Unlock()

	s.logger.Info("server starting", logging.String("server", s.name), logging.Int("pid", pid))
	s.emit(ev)
	go s.run(cmd, stdout, done)
	return nil
}

// run consumes the merged console output, then reaps the process. Reads must
// finish before Wait because Wait closes the pipe.
func (s *Server) run(cmd *exec.Cmd, out io.Reader, done chan struct{}) {
	if err := readLines(out, maxLineLength, s.handleLine); err != nil {
		s.logger.Warn("console read failed", logging.String("server", s.name), logging.Err(err))
		_, _ = io.Copy(io.Discard, out)
	}
	s.handleExit(cmd.Wait(), done)
}

// readLines calls fn for every line of r. Lines longer than limit bytes are
// truncated and reading continues with the next line.
func readLines(r io.Reader, limit int, fn func(string)) error {
	br := bufio.NewReaderSize(r, 64*1024)
	var line []byte
	for {
		chunk, isPrefix, err := br.ReadLine()
		if n := min(len(chunk), limit-len(line)); n > 0 {
			line = append(line, chunk[:n]...)
		}
		if err != nil {
			if len(line) > 0 {
				fn(string(line))
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if !isPrefix {
			fn(string(line))
			line = line[:0]
		}
	}
}

func (s *Server) handleLine(line string) {
	line = strings.TrimRight(line, "\r")
	info := ParseLine(line)

	s.mu.Lock()
	s.logs.Push(line)
	events := []Event{{Kind: EventLogLine, Line: line, State: s.state}}
	if info.Ready && s.state == Starting {
		events = append(events, s.setStateLocked(Running))
	}
	if info.Joined != "" && !slices.Contains(s.players, info.Joined) {
		s.players = append(s.players, info.Joined)
		events = append(events, Event{Kind: EventPlayerJoined, Player: info.Joined, State: s.state})
	}
	if info.Left != "" {
		if i := slices.Index(s.players, info.Left); i >= 0 {
			s.players = slices.Delete(s.players, i, i+1)
			events = append(events, Event{Kind: EventPlayerLeft, Player: info.Left, State: s.state})
		}
	}
	s.mu.Unlock()

	if info.CrashHint {
		s.logger.Warn("possible crash indicator", logging.String("server", s.name), logging.String("line", line))
	}
	s.emit(events...)
}

func (s *Server) handleExit(waitErr error, done chan struct{}) {
	code := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}

	s.mu.Lock()
	if s.stopTimer != nil {
		s.stopTimer.Stop()
		s.stopTimer = nil
	}
	next := Crashed
	if s.stopRequested || code == 0 {
		next = Stopped
	}
	left := s.players
	s.players = nil
	s.cmd, s.stdin = nil, nil
	s.exitCode = code
	ev := s.setStateLocked(next)
	ev.ExitCode = code
	close(done)
	s.mu.Unlock()

	if next == Crashed {
		s.logger.Warn("server crashed", logging.String("server", s.name), logging.Int("exit_code", code))
	} else {
		s.logger.Info("server stopped", logging.String("server", s.name), logging.Int("exit_code", code))
	}

	events := make([]Event, 0, len(left)+1)
	for _, p := range left {
		events = append(events, Event{Kind: EventPlayerLeft, Player: p, State: next})
	}
	s.emit(append(events, ev)...)
}

// Stop asks the server to shut down with the "stop" command. The process is
// killed if it is still alive after the stop timeout. Stop is a no-op unless
// the server is starting or running; use Wait to block until it exits.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.state.CanStop() {
		s.mu.Unlock()
		return nil
	}
	s.stopRequested = true
	ev := s.setStateLocked(Stopping)
	cmd, stdin, done := s.cmd, s.stdin, s.done
	timeout := s.stopTimeout
	s.stopTimer = time.AfterFunc(timeout, func() {
		select {
		case <-done:
			return
		default:
		}
		s.logger.Warn("server ignored stop, killing", logging.String("server", s.name), logging.Duration("timeout", timeout))
		_ = cmd.Process.Kill()
	})
	s.mu.Unlock()

	s.emit(ev)
	if err := s.write(stdin, "stop"); err != nil {
		s.logger.Error("sending stop failed, killing", err, logging.String("server", s.name))
		_ = cmd.Process.Kill()
	}
	return nil
}

// Kill terminates the process immediately.
func (s *Server) Kill() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil || s.cmd.Process == nil {
		return ErrNotRunning
	}
	s.stopRequested = true
	return errors.Wrap(s.cmd.Process.Kill(), "kill server")
}

// Wait blocks until the current process exits or ctx is done. It returns
// immediately when no process is running.
func (s *Server) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Restart stops the server, waits for it to exit and starts it again. A
// stopped server is simply started.
func (s *Server) Restart(ctx context.Context) error {
	if err := s.Stop(); err != nil {
		return err
	}
	if err := s.Wait(ctx); err != nil {
		return err
	}
	return s.Start(ctx)
}

// SendCommand writes a console command. The server must be running or stopping.
func (s *Server) SendCommand(command string) error {
	command = strings.TrimRight(command, "\r\n")
	s.mu.Lock()
	if s.state != Running && s.state != Stopping {
		s.mu.Unlock()
		return ErrNotRunning
	}
	stdin := s.stdin
	s.mu.Unlock()
	return s.write(stdin, command)
}

func (s *Server) write(w io.Writer, command string) error {
	if w == nil {
		return ErrNotRunning
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := io.WriteString(w, command+"\n")
	return errors.Wrap(err, "write to console")
}

// Logs returns the last limit console lines, oldest first. limit <= 0 returns all.
func (s *Server) Logs(limit int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logs.Tail(limit)
}

// OnlinePlayers returns the players currently connected.
func (s *Server) OnlinePlayers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.players...)
}

// Status returns a consistent snapshot.
func (s *Server) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Name:     s.name,
		Software: s.software,
		Version:  s.version,
		Dir:      s.dir,
		State:    s.state,
		PID:      s.pidLocked(),
		Players:  append([]string(nil), s.players...),
	}
	if s.state.Active() {
		st.Uptime = time.Since(s.startedAt)
	}
	return st
}

// Subscribe registers fn for all future events and returns a function that
// unregisters it. fn runs on the goroutine that produced the event and must not block.
func (s *Server) Subscribe(fn func(Event)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Server) emit(events ...Event) {
	if len(events) == 0 {
		return
	}
	s.subMu.RLock()
	handlers := make([]func(Event), 0, len(s.subs))
	for _, h := range s.subs {
		handlers = append(handlers, h)
	}
	s.subMu.RUnlock()

	now := time.Now()
	for _, ev := range events {
		ev.Server = s.name
		ev.Time = now
		for _, h := range handlers {
			h(ev)
		}
	}
}

func (s *Server) setStateLocked(next State) Event {
	prev := s.state
	s.state = next
	return Event{Kind: EventStateChanged, State: next, Previous: prev}
}

// String renders a human-readable summary.
func (s *Server) String() string {
	st := s.Status()
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", st.Name)
	fmt.Fprintf(&b, "Version: %s\n", st.Version)
	fmt.Fprintf(&b, "Software: %s\n", st.Software)
	fmt.Fprintf(&b, "Path: %s\n", st.Dir)
	fmt.Fprintf(&b, "State: %s", st.State)
	if st.PID != 0 {
		fmt.Fprintf(&b, "\nPID: %d", st.PID)
	}
	return b.String()
}

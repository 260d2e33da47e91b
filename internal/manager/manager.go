// Package manager owns the set of servers under a servers root: it loads them
// from their manifests, creates new ones from a provider, deletes them and
// stops them together on shutdown.
package manager

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/milndr/lodestone-server-manager/internal/backup"
	apperrors "github.com/milndr/lodestone-server-manager/internal/errors"
	"github.com/milndr/lodestone-server-manager/internal/fsutil"
	"github.com/milndr/lodestone-server-manager/internal/logging"
	"github.com/milndr/lodestone-server-manager/internal/metrics"
	"github.com/milndr/lodestone-server-manager/internal/provider"
	"github.com/milndr/lodestone-server-manager/internal/server"
	"golang.org/x/sync/errgroup"
)

// DefaultRoot is the servers root used when none is configured.
const DefaultRoot = "Servers"

// MaxNameLength bounds server names.
const MaxNameLength = 64

var (
	// ErrNotFound is returned for names that are not managed.
	ErrNotFound = errors.New("no server with that name")
	// ErrExists is returned when creating a server whose name is taken.
	ErrExists = errors.New("a server with that name already exists")
	// ErrInvalidName is returned for names that can't be used as a directory.
	ErrInvalidName = errors.New("invalid server name")
	// ErrServerRunning is returned when deleting a server that is running.
	ErrServerRunning = errors.New("server is running")
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(m *Manager) {
		if r != nil {
			m.recorder = r
		}
	}
}

// WithServerOptions adds options applied to every server the manager builds.
func WithServerOptions(opts ...server.Option) Option {
	return func(m *Manager) { m.serverOpts = append(m.serverOpts, opts...) }
}

// WithBackupOptions adds options applied to every archive created by Backup.
func WithBackupOptions(opts ...backup.Option) Option {
	return func(m *Manager) { m.backupOpts = append(m.backupOpts, opts...) }
}

type entry struct {
	srv         *server.Server
	manifest    Manifest
	unsubscribe func()
}

// Manager is safe for concurrent use.
type Manager struct {
	root       string
	registry   *provider.Registry
	logger     logging.Logger
	recorder   metrics.Recorder
	serverOpts []server.Option
	backupOpts []backup.Option

	mu       sync.RWMutex
	servers  map[string]*entry
	creating map[string]struct{}
	// drained is closed when the last Create in progress returns.
	drained chan struct{}
}

// New creates a manager for root. Call Load to read existing servers.
func New(root string, registry *provider.Registry, opts ...Option) *Manager {
	if root == "" {
		root = DefaultRoot
	}
	m := &Manager{
		root:     root,
		registry: registry,
		logger:   logging.Nop(),
		recorder: metrics.NoopRecorder{},
		servers:  make(map[string]*entry),
		creating: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Root returns the servers root directory.
func (m *Manager) Root() string { return m.root }

// Registry returns the provider registry used to create servers.
func (m *Manager) Registry() *provider.Registry { return m.registry }

// Load scans the root and registers every server with a valid manifest,
// creating the root if it does not exist.
func (m *Manager) Load() error {
	loaded, err := m.scan()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for name, e := range m.servers {
		if _, ok := loaded[name]; ok {
			continue
		}
		if e.srv.State().Active() {
			m.logger.Warn("keeping running server whose manifest is gone",
				logging.String("name", name), logging.String("dir", e.srv.Dir()))
			continue
		}
		m.dropLocked(name, e)
	}
	for name, e := range loaded {
		if old, ok := m.servers[name]; ok {
			if old.srv.State().Active() {
				old.manifest = e.manifest
				continue
			}
			m.dropLocked(name, old)
		}
		m.addLocked(e)
	}
	return nil
}

// Refresh reloads servers from disk. Servers that are running keep their
// existing instance so their process and console are not lost.
func (m *Manager) Refresh() error {
	return m.Load()
}

func (m *Manager) scan() (map[string]*entry, error) {
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create servers root %s", m.root)
	}
	dirents, err := os.ReadDir(m.root)
	if err != nil {
		return nil, errors.Wrapf(err, "read servers root %s", m.root)
	}

	loaded := make(map[string]*entry, len(dirents))
	for _, d := range dirents {
		if !d.IsDir() {
			continue
		}
		dir := filepath.Join(m.root, d.Name())
		mf, err := ReadManifest(dir)
		if errors.Is(err, os.ErrNotExist) {
			m.logger.Debug("skipping directory without manifest", logging.String("dir", dir))
			continue
		}
		if err != nil {
			m.logger.Warn("skipping server with unreadable manifest",
				logging.String("dir", dir), logging.Err(err))
			continue
		}
		if _, dup := loaded[mf.Name]; dup {
			m.logger.Warn("skipping server with duplicate name",
				logging.String("dir", dir), logging.String("name", mf.Name))
			continue
		}
		loaded[mf.Name] = m.newEntry(dir, mf)
	}
	return loaded, nil
}

func (m *Manager) newEntry(dir string, mf *Manifest) *entry {
	opts := slices.Clone(m.serverOpts)
	opts = append(opts,
		server.WithMemory(mf.MaxRAMGB, mf.MinRAMGB),
		server.WithJVMArgs(mf.JVMArgs...),
		server.WithLogger(logging.Component(m.logger, "server."+mf.Name)),
	)
	return &entry{
		srv:      server.New(dir, mf.Name, mf.Software, mf.GameVersion, opts...),
		manifest: *mf,
	}
}

func (m *Manager) addLocked(e *entry) {
	name := e.srv.Name()
	e.unsubscribe = e.srv.Subscribe(m.observe)
	m.servers[name] = e
	m.recorder.RecordState(name, e.srv.State().String())
	m.recorder.RecordPlayers(name, len(e.srv.OnlinePlayers()))
}

func (m *Manager) dropLocked(name string, e *entry) {
	if e.unsubscribe != nil {
		e.unsubscribe()
	}
	delete(m.servers, name)
	m.recorder.Forget(name)
}

// observe forwards server events to the metrics recorder.
func (m *Manager) observe(ev server.Event) {
	switch ev.Kind {
	case server.EventStateChanged:
		m.recorder.RecordState(ev.Server, ev.State.String())
		switch ev.State {
		case server.Starting:
			m.recorder.RecordStart(ev.Server)
		case server.Crashed:
			m.recorder.RecordCrash(ev.Server)
			m.logger.Warn("server crashed",
				logging.String("server", ev.Server), logging.Int("exit_code", ev.ExitCode))
		}
	case server.EventPlayerJoined, server.EventPlayerLeft:
		if srv, err := m.Get(ev.Server); err == nil {
			m.recorder.RecordPlayers(ev.Server, len(srv.OnlinePlayers()))
		}
	}
}

// Get returns the server called name.
func (m *Manager) Get(name string) (*server.Server, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.servers[name]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "%q", name)
	}
	return e.srv, nil
}

// Manifest returns a copy of the manifest of the server called name.
func (m *Manager) Manifest(name string) (Manifest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.servers[name]
	if !ok {
		return Manifest{}, errors.Wrapf(ErrNotFound, "%q", name)
	}
	mf := e.manifest
	mf.JVMArgs = slices.Clone(e.manifest.JVMArgs)
	return mf, nil
}

// Names returns the managed server names, sorted.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.servers))
	for name := range m.servers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Servers returns the managed servers sorted by name.
func (m *Manager) Servers() []*server.Server {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*server.Server, 0, len(m.servers))
	for _, e := range m.servers {
		out = append(out, e.srv)
	}
	slices.SortFunc(out, func(a, b *server.Server) int { return strings.Compare(a.Name(), b.Name()) })
	return out
}

// ValidateName checks that name can be used as a server directory.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return errors.Wrap(ErrInvalidName, "name must not be empty")
	case strings.TrimSpace(name) != name:
		return errors.Wrap(ErrInvalidName, "name must not start or end with spaces")
	case name == "." || name == "..":
		return errors.Wrapf(ErrInvalidName, "%q is reserved", name)
	case strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, filepath.Separator):
		return errors.Wrap(ErrInvalidName, "name must not contain path separators")
	case len(name) > MaxNameLength:
		return errors.Wrapf(ErrInvalidName, "name is longer than %d characters", MaxNameLength)
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return errors.Wrap(ErrInvalidName, "name must not contain control characters")
		}
	}
	return nil
}

// Exists reports whether name is managed or its directory is already taken.
func (m *Manager) Exists(name string) bool {
	m.mu.RLock()
	_, managed := m.servers[name]
	_, pending := m.creating[name]
	m.mu.RUnlock()
	return managed || pending || fsutil.Exists(filepath.Join(m.root, name))
}

// reserve claims name for a Create in progress.
func (m *Manager) reserve(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, managed := m.servers[name]
	_, pending := m.creating[name]
	if managed || pending || fsutil.Exists(filepath.Join(m.root, name)) {
		return errors.Wrapf(ErrExists, "%q", name)
	}
	if len(m.creating) == 0 {
		m.drained = make(chan struct{})
	}
	m.creating[name] = struct{}{}
	return nil
}

func (m *Manager) release(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.creating, name)
	if len(m.creating) == 0 {
		close(m.drained)
	}
}

// WaitCreates blocks until every Create in progress has returned, including
// the removal of a partial directory after a failure.
func (m *Manager) WaitCreates(ctx context.Context) error {
	m.mu.RLock()
	if len(m.creating) == 0 {
		m.mu.RUnlock()
		return nil
	}
	drained := m.drained
	m.mu.RUnlock()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "wait for server creation")
	}
}

// Create validates the request, creates the server directory with its
// manifest, jar and default properties, and registers the server. On failure
// nothing is left on disk.
func (m *Manager) Create(ctx context.Context, name, software, version string, progress provider.ProgressFunc) (*server.Server, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	p, err := m.registry.Get(software)
	if err != nil {
		return nil, err
	}
	if err := m.reserve(name); err != nil {
		return nil, err
	}
	defer m.release(name)

	ok, err := p.VersionExists(ctx, version)
	if err != nil {
		return nil, errors.Wrapf(err, "check %s version %s", p.Name(), version)
	}
	if !ok {
		return nil, errors.Wrapf(provider.ErrUnknownVersion, "%s %s", p.Name(), version)
	}

	dir := filepath.Join(m.root, name)
	mf := NewManifest(name, p.Name(), version)
	m.logger.Info("creating server",
		logging.String("server", name), logging.String("software", mf.Software), logging.String("version", version))

	if err := m.populate(ctx, dir, mf, p, progress); err != nil {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			m.logger.Error("failed to clean up server directory", rmErr, logging.String("dir", dir))
		}
		return nil, err
	}

	e := m.newEntry(dir, mf)
	m.mu.Lock()
	m.addLocked(e)
	m.mu.Unlock()
	m.logger.Info("server created", logging.String("server", name), logging.String("dir", dir))
	return e.srv, nil
}

func (m *Manager) populate(ctx context.Context, dir string, mf *Manifest, p provider.Provider, progress provider.ProgressFunc) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "create server directory")
	}
	if err := WriteManifest(dir, mf); err != nil {
		return errors.Wrap(err, "write manifest")
	}

	err := p.DownloadJar(ctx, mf.GameVersion, filepath.Join(dir, server.JarName), progress)
	m.recorder.RecordDownload(p.Name(), err == nil)
	if err != nil {
		return errors.Wrap(err, "download server jar")
	}

	if err := server.DefaultProperties(mf.Name).Save(filepath.Join(dir, server.PropertiesFile)); err != nil {
		return errors.Wrap(err, "write server.properties")
	}
	return nil
}

// Delete removes a stopped server and its directory.
func (m *Manager) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.servers[name]
	if !ok {
		return errors.Wrapf(ErrNotFound, "%q", name)
	}
	if e.srv.State().Active() {
		return errors.Wrapf(ErrServerRunning, "%q", name)
	}
	if err := os.RemoveAll(e.srv.Dir()); err != nil {
		return errors.Wrapf(err, "remove %s", e.srv.Dir())
	}
	m.dropLocked(name, e)
	m.logger.Info("server deleted", logging.String("server", name))
	return nil
}

// UpdateManifest applies fn to a copy of the manifest of name, persists it and
// applies the memory and JVM settings to the server's next start.
func (m *Manager) UpdateManifest(name string, fn func(*Manifest) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.servers[name]
	if !ok {
		return errors.Wrapf(ErrNotFound, "%q", name)
	}

	next := e.manifest
	next.JVMArgs = slices.Clone(e.manifest.JVMArgs)
	if err := fn(&next); err != nil {
		return err
	}
	if next.Name != e.manifest.Name || next.Software != e.manifest.Software || next.GameVersion != e.manifest.GameVersion {
		return errors.New("name, software and game_version can't be changed")
	}
	if err := next.Validate(); err != nil {
		return err
	}

	maxGB := next.MaxRAMGB
	if maxGB == 0 {
		maxGB = server.DefaultMaxRAMGB
	}
	if err := e.srv.SetMemory(maxGB, next.MinRAMGB); err != nil {
		return err
	}
	if err := WriteManifest(e.srv.Dir(), &next); err != nil {
		return err
	}
	e.srv.SetJVMArgs(next.JVMArgs)
	e.manifest = next
	return nil
}

// StopAll stops every active server concurrently and waits for them to exit.
// Servers that don't exit before ctx is done are killed.
func (m *Manager) StopAll(ctx context.Context) error {
	var active []*server.Server
	for _, srv := range m.Servers() {
		if srv.State().Active() {
			active = append(active, srv)
		}
	}
	if len(active) == 0 {
		return nil
	}
	m.logger.Info("stopping servers", logging.Int("count", len(active)))

	g := new(errgroup.Group)
	for _, srv := range active {
		g.Go(func() error {
			if err := srv.Stop(); err != nil {
				return apperrors.ServerError{Server: srv.Name(), Op: "stop", Cause: err}
			}
			if err := srv.Wait(ctx); err != nil {
				_ = srv.Kill()
				return apperrors.ServerError{Server: srv.Name(), Op: "wait for", Cause: err}
			}
			return nil
		})
	}
	return g.Wait()
}

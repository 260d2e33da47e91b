package backup

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/milndr/lodestone-server-manager/internal/server"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCommander struct {
	mu       sync.Mutex
	commands []string
	fail     map[string]error
}

func (r *recordingCommander) SendCommand(_ context.Context, command string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, command)
	if err := r.fail[command]; err != nil {
		return "", err
	}
	return "", nil
}

func (r *recordingCommander) sent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.commands)
}

type fakeSource struct {
	name  string
	dir   string
	state server.State
}

func (f fakeSource) Name() string             { return f.name }
func (f fakeSource) Dir() string              { return f.dir }
func (f fakeSource) State() server.State      { return f.state }
func (f fakeSource) SendCommand(string) error { return server.ErrNotRunning }

func newWorld(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"server.properties":      "motd=x\n",
		"eula.txt":               "eula=true\n",
		"server.jar":             "jar",
		"world/level.dat":        "level",
		"world/region/r.0.0.mca": "region",
		"logs/latest.log":        "log",
		"cache/mojang.jar":       "cache",
		"libraries/lib.jar":      "lib",
		"plugins/x.jar.part":     "partial",
		"plugins/x/config.yml":   "a: 1\n",
	}
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func readArchive(t *testing.T, path string) map[string]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	out := make(map[string]string)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		if hdr.Typeflag == tar.TypeDir {
			continue
		}
		data, err := io.ReadAll(tr)
		require.NoError(t, err)
		out[hdr.Name] = string(data)
	}
	return out
}

func fixedClock(t time.Time) Option {
	return withClock(func() time.Time { return t })
}

func TestCreateArchive(t *testing.T) {
	t.Parallel()
	src := fakeSource{name: "survival", dir: newWorld(t), state: server.Stopped}
	dest := t.TempDir()
	at := time.Date(2026, 10, 14, 12, 30, 0, 0, time.UTC)

	a, err := Create(context.Background(), src, dest, fixedClock(at))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "survival-20261014-123000.tar.gz"), a.Path)
	assert.Equal(t, at, a.Created)
	assert.Positive(t, a.Size)
	assert.NoFileExists(t, a.Path+".part")

	got := readArchive(t, a.Path)
	assert.Equal(t, map[string]string{
		"survival/server.properties":      "motd=x\n",
		"survival/eula.txt":               "eula=true\n",
		"survival/world/level.dat":        "level",
		"survival/world/region/r.0.0.mca": "region",
		"survival/plugins/x/config.yml":   "a: 1\n",
	}, got)
}

func TestCopyBody(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		size int64
		want string
	}{
		{"exact", "abc", 3, "abc"},
		{"shrank", "abc", 5, "abc\x00\x00"},
		{"grew", "abcdef", 4, "abcd"},
		{"empty", "", 0, ""},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		require.NoError(t, copyBody(&buf, strings.NewReader(tt.in), tt.size), tt.name)
		assert.Equal(t, tt.want, buf.String(), tt.name)
	}
}

func TestAddEntrySkipsVanishedFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "usercache.json")
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0o644))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NoError(t, os.Remove(path))

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	require.NoError(t, addEntry(tw, path, "srv/usercache.json", entries[0]))
	require.NoError(t, tw.Close())

	_, err = tar.NewReader(&buf).Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestCreateArchiveSameSecond(t *testing.T) {
	t.Parallel()
	src := fakeSource{name: "s", dir: newWorld(t)}
	dest := t.TempDir()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	first, err := Create(context.Background(), src, dest, fixedClock(at))
	require.NoError(t, err)
	second, err := Create(context.Background(), src, dest, fixedClock(at))
	require.NoError(t, err)
	assert.NotEqual(t, first.Path, second.Path)
	assert.Equal(t, filepath.Join(dest, "s-20260102-030405-1.tar.gz"), second.Path)
}

func TestCreateRunningUsesHooks(t *testing.T) {
	t.Parallel()
	src := fakeSource{name: "live", dir: newWorld(t), state: server.Running}
	cmd := &recordingCommander{}

	_, err := Create(context.Background(), src, t.TempDir(), WithCommander(cmd), WithFlushDelay(time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, []string{"save-all", "save-off", "save-on"}, cmd.sent())
}

func TestCreateCanceled(t *testing.T) {
	t.Parallel()
	src := fakeSource{name: "c", dir: newWorld(t)}
	dest := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Create(ctx, src, dest)
	require.ErrorIs(t, err, context.Canceled)
	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	assert.Empty(t, entries, "the partial archive is removed")
}

func TestHooks(t *testing.T) {
	t.Parallel()

	t.Run("save-all failure stops early", func(t *testing.T) {
		t.Parallel()
		cmd := &recordingCommander{fail: map[string]error{"save-all": assert.AnError}}
		err := PreArchiveHook(context.Background(), cmd, time.Millisecond)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "save-all")
		assert.Equal(t, []string{"save-all"}, cmd.sent())
	})

	t.Run("canceled during flush", func(t *testing.T) {
		t.Parallel()
		cmd := &recordingCommander{}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		err := PreArchiveHook(ctx, cmd, time.Hour)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, []string{"save-all"}, cmd.sent())
	})

	t.Run("save-on survives cancellation", func(t *testing.T) {
		t.Parallel()
		cmd := &recordingCommander{}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.NoError(t, PostArchiveHook(ctx, cmd))
		assert.Equal(t, []string{"save-on"}, cmd.sent())
	})

	t.Run("console commander", func(t *testing.T) {
		t.Parallel()
		_, err := ConsoleCommander(fakeSource{}).SendCommand(context.Background(), "save-all")
		require.ErrorIs(t, err, server.ErrNotRunning)
	})
}

func TestListAndPrune(t *testing.T) {
	t.Parallel()
	dest := t.TempDir()
	files := []string{
		"alpha-20260101-000000.tar.gz",
		"alpha-20260103-000000.tar.gz",
		"alpha-20260102-000000.tar.gz",
		"alpha-20260103-000000-1.tar.gz",
		"alpha-beta-20260105-000000.tar.gz",
		"alpha-garbage.tar.gz",
		"alpha-20260104-000000.tar.gz.part",
		"other-20260101-000000.tar.gz",
	}
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dest, f), []byte("x"), 0o644))
	}

	list, err := List(dest, "alpha")
	require.NoError(t, err)
	var names []string
	for _, a := range list {
		names = append(names, filepath.Base(a.Path))
	}
	assert.Equal(t, []string{
		"alpha-20260103-000000-1.tar.gz",
		"alpha-20260103-000000.tar.gz",
		"alpha-20260102-000000.tar.gz",
		"alpha-20260101-000000.tar.gz",
	}, names)

	removed, err := Prune(dest, "alpha", 2)
	require.NoError(t, err)
	require.Len(t, removed, 2)
	assert.NoFileExists(t, filepath.Join(dest, "alpha-20260101-000000.tar.gz"))
	assert.FileExists(t, filepath.Join(dest, "other-20260101-000000.tar.gz"))
	assert.FileExists(t, filepath.Join(dest, "alpha-beta-20260105-000000.tar.gz"))

	removed, err = Prune(dest, "alpha", 0)
	require.NoError(t, err)
	assert.Empty(t, removed)

	missing, err := List(filepath.Join(dest, "nope"), "alpha")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

type fakeCron struct {
	mu      sync.Mutex
	nextID  cron.EntryID
	funcs   map[cron.EntryID]func()
	specs   map[cron.EntryID]string
	started bool
	stopped bool
}

func newFakeCron() *fakeCron {
	return &fakeCron{funcs: make(map[cron.EntryID]func()), specs: make(map[cron.EntryID]string)}
}

func (f *fakeCron) AddFunc(spec string, cmd func()) (cron.EntryID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.funcs[f.nextID] = cmd
	f.specs[f.nextID] = spec
	return f.nextID, nil
}

func (f *fakeCron) Remove(id cron.EntryID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.funcs, id)
	delete(f.specs, id)
}

func (f *fakeCron) Entry(id cron.EntryID) cron.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.funcs[id]; !ok {
		return cron.Entry{}
	}
	return cron.Entry{ID: id, Next: time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeCron) Start() { f.started = true }

func (f *fakeCron) Stop() context.Context {
	f.stopped = true
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

func (f *fakeCron) fire() {
	f.mu.Lock()
	funcs := make([]func(), 0, len(f.funcs))
	for _, fn := range f.funcs {
		funcs = append(funcs, fn)
	}
	f.mu.Unlock()
	for _, fn := range funcs {
		fn()
	}
}

func (f *fakeCron) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.funcs)
}

func TestScheduler(t *testing.T) {
	t.Parallel()
	fc := newFakeCron()
	var (
		mu  sync.Mutex
		ran []string
	)
	s := newScheduler(fc, func(_ context.Context, name string) error {
		mu.Lock()
		ran = append(ran, name)
		mu.Unlock()
		return nil
	}, nil)

	require.Error(t, s.Set("alpha", "every tuesday"))
	require.NoError(t, s.Set("alpha", "@daily"))
	require.NoError(t, s.Set("alpha", "@daily"), "unchanged specs are kept")
	assert.Equal(t, 1, fc.len())
	assert.Equal(t, "@daily", s.Spec("alpha"))

	next, ok := s.Next("alpha")
	assert.True(t, ok)
	assert.Equal(t, 2026, next.Year())

	require.NoError(t, s.Set("alpha", "0 4 * * *"))
	assert.Equal(t, 1, fc.len())

	s.Start()
	fc.fire()
	mu.Lock()
	assert.Equal(t, []string{"alpha"}, ran)
	mu.Unlock()

	require.NoError(t, s.Set("alpha", ""))
	assert.Zero(t, fc.len())
	_, ok = s.Next("alpha")
	assert.False(t, ok)

	s.Stop()
	assert.True(t, fc.started)
	assert.True(t, fc.stopped)
}

func TestSchedulerSync(t *testing.T) {
	t.Parallel()
	fc := newFakeCron()
	s := newScheduler(fc, func(context.Context, string) error { return nil }, nil)

	require.NoError(t, s.Sync(map[string]string{"a": "@hourly", "b": "@daily"}))
	assert.Equal(t, 2, fc.len())

	err := s.Sync(map[string]string{"b": "@daily", "c": "not a spec"})
	require.Error(t, err)
	assert.Equal(t, 1, fc.len())
	assert.Empty(t, s.Spec("a"))
	assert.Equal(t, "@daily", s.Spec("b"))
}

func TestValidateSpec(t *testing.T) {
	t.Parallel()
	for _, ok := range []string{"@daily", "@every 6h", "30 3 * * *", "0 */2 * * 1-5"} {
		assert.NoError(t, ValidateSpec(ok), ok)
	}
	for _, bad := range []string{"", "daily", "61 * * * *", "* * *"} {
		assert.Error(t, ValidateSpec(bad), bad)
	}
}

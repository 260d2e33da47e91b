// Package backup writes compressed archives of server directories, lists and
// prunes them, and runs them on a cron schedule.
package backup

import (
	"archive/tar"
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/gzip"
	"github.com/milndr/lodestone-server-manager/internal/fsutil"
	"github.com/milndr/lodestone-server-manager/internal/logging"
	"github.com/milndr/lodestone-server-manager/internal/server"
)

const (
	// DefaultDir is the backups directory used when none is configured.
	DefaultDir = "Backups"

	archiveExt   = ".tar.gz"
	stampLayout  = "20060102-150405"
	partialExt   = ".part"
	maxSuffixTry = 100
)

// excludedDirs are top-level directories that are re-created by the server.
var excludedDirs = []string{"logs", "cache", "libraries", "versions", "crash-reports"}

// Source is a server that can be archived. *server.Server satisfies it.
type Source interface {
	Name() string
	Dir() string
	State() server.State
	Console
}

// Archive describes one backup file.
type Archive struct {
	Path    string
	Server  string
	Created time.Time
	Size    int64

	seq int
}

// Option configures Create.
type Option func(*options)

type options struct {
	commander  Commander
	flushDelay time.Duration
	now        func() time.Time
	logger     logging.Logger
}

// WithCommander sends the save hooks through cmd instead of the console.
func WithCommander(cmd Commander) Option {
	return func(o *options) { o.commander = cmd }
}

// WithFlushDelay overrides SaveFlushDelay.
func WithFlushDelay(d time.Duration) Option {
	return func(o *options) { o.flushDelay = d }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func withClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Create archives src into destDir as <name>-<UTC stamp>.tar.gz. While the
// server is running, auto-save is flushed and paused around the copy.
func Create(ctx context.Context, src Source, destDir string, opts ...Option) (Archive, error) {
	o := options{flushDelay: SaveFlushDelay, now: time.Now, logger: logging.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.commander == nil {
		o.commander = ConsoleCommander(src)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return Archive{}, errors.Wrap(err, "create backups directory")
	}

	if src.State() == server.Running {
		if err := PreArchiveHook(ctx, o.commander, o.flushDelay); err != nil {
			return Archive{}, err
		}
		defer func() {
			if err := PostArchiveHook(ctx, o.commander); err != nil {
				o.logger.Error("failed to re-enable auto-save", err, logging.String("server", src.Name()))
			}
		}()
	}

	created := o.now().UTC()
	dest, err := uniquePath(destDir, src.Name(), created)
	if err != nil {
		return Archive{}, err
	}

	o.logger.Info("creating backup", logging.String("server", src.Name()), logging.String("path", dest))
	size, err := writeArchive(ctx, src.Dir(), src.Name(), dest)
	if err != nil {
		return Archive{}, err
	}
	return Archive{Path: dest, Server: src.Name(), Created: created.Truncate(time.Second), Size: size}, nil
}

func uniquePath(destDir, name string, t time.Time) (string, error) {
	base := name + "-" + t.Format(stampLayout)
	for i := 0; i < maxSuffixTry; i++ {
		candidate := base
		if i > 0 {
			candidate += "-" + strconv.Itoa(i)
		}
		path := filepath.Join(destDir, candidate+archiveExt)
		if !fsutil.Exists(path) {
			return path, nil
		}
	}
	return "", errors.Newf("too many backups of %s at %s", name, t.Format(stampLayout))
}

// writeArchive streams root into dest through a partial file.
func writeArchive(ctx context.Context, root, prefix, dest string) (size int64, err error) {
	part := dest + partialExt
	f, err := os.Create(part)
	if err != nil {
		return 0, errors.Wrap(err, "create archive")
	}
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(part)
		}
	}()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return skipVanished(walkErr)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if excluded(rel, d) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		return addEntry(tw, path, filepath.ToSlash(filepath.Join(prefix, rel)), d)
	})
	if err != nil {
		return 0, errors.Wrap(err, "archive server directory")
	}

	if err = tw.Close(); err != nil {
		return 0, errors.Wrap(err, "finish tar stream")
	}
	if err = gz.Close(); err != nil {
		return 0, errors.Wrap(err, "finish gzip stream")
	}
	if err = f.Close(); err != nil {
		return 0, errors.Wrap(err, "close archive")
	}
	info, err := os.Stat(part)
	if err != nil {
		return 0, errors.Wrap(err, "stat archive")
	}
	if err = os.Rename(part, dest); err != nil {
		return 0, errors.Wrap(err, "move archive into place")
	}
	return info.Size(), nil
}

func excluded(rel string, d fs.DirEntry) bool {
	if strings.HasSuffix(rel, partialExt) {
		return true
	}
	if filepath.Dir(rel) != "." {
		return false
	}
	if d.IsDir() {
		return slices.Contains(excludedDirs, rel)
	}
	return rel == server.JarName
}

func addEntry(tw *tar.Writer, path, name string, d fs.DirEntry) error {
	if d.IsDir() {
		info, err := d.Info()
		if err != nil {
			return skipVanished(err)
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = name + "/"
		return tw.WriteHeader(hdr)
	}
	if !d.Type().IsRegular() {
		return nil
	}

	// The header is built from the open file so a file replaced during the
	// walk is archived as it was when opened.
	f, err := os.Open(path)
	if err != nil {
		return skipVanished(err)
	}
	defer func() { _ = f.Close() }()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = name
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	return copyBody(tw, f, info.Size())
}

// skipVanished ignores files the server removed while the walk ran.
func skipVanished(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// copyBody writes exactly size bytes of r to w. A file that shrank while it
// was read is padded with zeros, one that grew is cut at size.
func copyBody(w io.Writer, r io.Reader, size int64) error {
	n, err := io.Copy(w, io.LimitReader(r, size))
	if err != nil {
		return err
	}
	if n < size {
		_, err = io.CopyN(w, zeroReader{}, size-n)
	}
	return err
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

// List returns the archives of server name in destDir, newest first. A
// missing directory has no archives.
func List(destDir, name string) ([]Archive, error) {
	entries, err := os.ReadDir(destDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read backups directory")
	}

	var out []Archive
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		created, seq, ok := parseArchiveName(e.Name(), name)
		if !ok {
			continue
		}
		a := Archive{Path: filepath.Join(destDir, e.Name()), Server: name, Created: created, seq: seq}
		if info, err := e.Info(); err == nil {
			a.Size = info.Size()
		}
		out = append(out, a)
	}
	slices.SortStableFunc(out, func(a, b Archive) int {
		if c := b.Created.Compare(a.Created); c != 0 {
			return c
		}
		return b.seq - a.seq
	})
	return out, nil
}

// parseArchiveName matches <name>-<stamp>[-N].tar.gz and returns the stamp and N.
func parseArchiveName(file, name string) (time.Time, int, bool) {
	rest, ok := strings.CutPrefix(file, name+"-")
	if !ok {
		return time.Time{}, 0, false
	}
	rest, ok = strings.CutSuffix(rest, archiveExt)
	if !ok || len(rest) < len(stampLayout) {
		return time.Time{}, 0, false
	}
	stamp, suffix := rest[:len(stampLayout)], rest[len(stampLayout):]
	seq := 0
	if suffix != "" {
		n, ok := strings.CutPrefix(suffix, "-")
		if !ok {
			return time.Time{}, 0, false
		}
		var err error
		if seq, err = strconv.Atoi(n); err != nil || seq < 1 {
			return time.Time{}, 0, false
		}
	}
	t, err := time.Parse(stampLayout, stamp)
	if err != nil {
		return time.Time{}, 0, false
	}
	return t, seq, true
}

// Prune deletes the oldest archives of name so that at most keep remain.
// keep <= 0 keeps everything. It returns the removed archives.
func Prune(destDir, name string, keep int) ([]Archive, error) {
	if keep <= 0 {
		return nil, nil
	}
	archives, err := List(destDir, name)
	if err != nil {
		return nil, err
	}
	if len(archives) <= keep {
		return nil, nil
	}
	removed := archives[keep:]
	for _, a := range removed {
		if err := os.Remove(a.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, errors.Wrapf(err, "remove %s", a.Path)
		}
	}
	return removed, nil
}

package manager

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/milndr/lodestone-server-manager/internal/backup"
	apperrors "github.com/milndr/lodestone-server-manager/internal/errors"
	"github.com/milndr/lodestone-server-manager/internal/logging"
	"github.com/milndr/lodestone-server-manager/internal/rcon"
	"github.com/milndr/lodestone-server-manager/internal/server"
)

// Backup archives the server name into destDir and prunes archives beyond the
// manifest's backup_keep. The save hooks go through RCON when the server has
// it enabled and fall back to the console otherwise.
func (m *Manager) Backup(ctx context.Context, name, destDir string) (backup.Archive, error) {
	srv, err := m.Get(name)
	if err != nil {
		return backup.Archive{}, err
	}
	mf, err := m.Manifest(name)
	if err != nil {
		return backup.Archive{}, err
	}

	opts := append([]backup.Option{backup.WithLogger(m.logger)}, m.backupOpts...)
	if srv.State() == server.Running {
		if client := m.rconFor(ctx, srv); client != nil {
			defer func() { _ = client.Close() }()
			opts = append(opts, backup.WithCommander(client))
		}
	}

	archive, err := backup.Create(ctx, srv, destDir, opts...)
	if err != nil {
		return backup.Archive{}, errors.Wrapf(err, "back up %s", name)
	}
	m.logger.Info("backup created",
		logging.String("server", name), logging.String("path", archive.Path), logging.Int("bytes", int(archive.Size)))

	removed, err := backup.Prune(destDir, name, mf.BackupKeep)
	if err != nil {
		return archive, errors.Wrapf(err, "prune backups of %s", name)
	}
	for _, a := range removed {
		m.logger.Info("old backup removed", logging.String("server", name), logging.String("path", a.Path))
	}
	return archive, nil
}

// rconFor returns a connected RCON client, or nil when RCON is disabled or
// unreachable.
func (m *Manager) rconFor(ctx context.Context, srv *server.Server) *rcon.Client {
	props, err := srv.Properties()
	if err != nil {
		return nil
	}
	client, err := rcon.FromProperties(props)
	if err != nil {
		if !errors.Is(err, rcon.ErrDisabled) {
			m.logger.Warn("rcon misconfigured, using console", logging.String("server", srv.Name()), logging.Err(err))
		}
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, rcon.DefaultDialTimeout)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		m.logger.Warn("rcon unreachable, using console", logging.String("server", srv.Name()), logging.Err(err))
		return nil
	}
	return client
}

// SetBackupSchedule stores a cron spec and retention count for name. An
// empty spec disables scheduled backups.
func (m *Manager) SetBackupSchedule(name, spec string, keep int) error {
	if spec != "" {
		if err := backup.ValidateSpec(spec); err != nil {
			return err
		}
	}
	return m.UpdateManifest(name, func(mf *Manifest) error {
		mf.BackupSchedule = spec
		if keep >= 0 {
			mf.BackupKeep = keep
		}
		return nil
	})
}

// BackupSchedules returns the cron spec of every server that has one.
func (m *Manager) BackupSchedules() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	specs := make(map[string]string)
	for name, e := range m.servers {
		if e.manifest.BackupSchedule != "" {
			specs[name] = e.manifest.BackupSchedule
		}
	}
	return specs
}

// BackupJob adapts Backup to a backup.Job writing into destDir.
func (m *Manager) BackupJob(destDir string, timeout time.Duration) backup.Job {
	return func(ctx context.Context, name string) error {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		_, err := m.Backup(ctx, name, destDir)
		if timeout > 0 && errors.Is(err, context.DeadlineExceeded) {
			return apperrors.ServerError{Server: name, Op: "backup", Cause: apperrors.TimeoutError{Operation: "backup", Limit: timeout}}
		}
		return err
	}
}

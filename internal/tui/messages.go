package tui

import (
	"time"

	"github.com/milndr/lodestone-server-manager/internal/backup"
	"github.com/milndr/lodestone-server-manager/internal/provider"
	"github.com/milndr/lodestone-server-manager/internal/server"
	"github.com/milndr/lodestone-server-manager/internal/sysmon"
)

// ServerEventMsg carries an event published by a managed server.
type ServerEventMsg struct {
	Event server.Event
}

// TickMsg drives periodic refreshes.
type TickMsg time.Time

// StatsMsg carries a process sample of the server shown in the server view.
type StatsMsg struct {
	Server string
	Stats  sysmon.ProcessStats
	Err    error
}

// ActionDoneMsg reports the outcome of a lifecycle or file action.
type ActionDoneMsg struct {
	Server string
	Text   string
	Err    error
}

// VersionsMsg carries the version groups of the software chosen in the wizard.
type VersionsMsg struct {
	Software string
	Groups   []provider.VersionGroup
	Err      error
}

// VersionCheckMsg reports whether the version typed in the wizard exists.
type VersionCheckMsg struct {
	Version string
	OK      bool
	Err     error
}

// CreateProgressMsg reports jar download progress.
type CreateProgressMsg struct {
	Done       int64
	Total      int64
	Generation uint64
}

// CreateDoneMsg reports the end of a server creation.
type CreateDoneMsg struct {
	Server     *server.Server
	Err        error
	Generation uint64
}

// BackupsMsg carries the archive list of a server.
type BackupsMsg struct {
	Server   string
	Archives []backup.Archive
	Err      error
}

// BackupDoneMsg reports the end of a manual backup.
type BackupDoneMsg struct {
	Server  string
	Archive backup.Archive
	Err     error
}

// DeletedMsg reports the outcome of a server deletion.
type DeletedMsg struct {
	Server string
	Err    error
}

package backup

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
)

// SaveFlushDelay is how long to wait after save-all for chunks to reach disk.
const SaveFlushDelay = 2 * time.Second

const saveOnTimeout = 10 * time.Second

// Commander sends a console command to a server. *rcon.Client satisfies it.
type Commander interface {
	SendCommand(ctx context.Context, command string) (string, error)
}

// Console is the part of *server.Server used to type into its console.
type Console interface {
	SendCommand(command string) error
}

type consoleCommander struct {
	srv Console
}

// ConsoleCommander sends commands through the server's stdin.
func ConsoleCommander(srv Console) Commander {
	return consoleCommander{srv: srv}
}

func (c consoleCommander) SendCommand(ctx context.Context, command string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "", c.srv.SendCommand(command)
}

// PreArchiveHook flushes the world with save-all and disables auto-save so
// the files don't change while they are archived.
func PreArchiveHook(ctx context.Context, cmd Commander, flushDelay time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := cmd.SendCommand(ctx, "save-all"); err != nil {
		return errors.Wrap(err, "failed to execute save-all")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(flushDelay):
	}

	if _, err := cmd.SendCommand(ctx, "save-off"); err != nil {
		return errors.Wrap(err, "failed to execute save-off")
	}
	return nil
}

// PostArchiveHook re-enables auto-save. It runs even when ctx is already
// canceled, bounded by its own timeout.
func PostArchiveHook(ctx context.Context, cmd Commander) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveOnTimeout)
	defer cancel()
	if _, err := cmd.SendCommand(ctx, "save-on"); err != nil {
		return errors.Wrap(err, "failed to execute save-on")
	}
	return nil
}

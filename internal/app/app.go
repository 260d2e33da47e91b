// Package app wires configuration, logging, the server manager and the
// chosen front end (REPL or TUI) into a runnable application.
package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/milndr/lodestone-server-manager/internal/backup"
	"github.com/milndr/lodestone-server-manager/internal/cli"
	"github.com/milndr/lodestone-server-manager/internal/config"
	apperrors "github.com/milndr/lodestone-server-manager/internal/errors"
	"github.com/milndr/lodestone-server-manager/internal/logging"
	"github.com/milndr/lodestone-server-manager/internal/manager"
	"github.com/milndr/lodestone-server-manager/internal/metrics"
	"github.com/milndr/lodestone-server-manager/internal/provider"
	"github.com/milndr/lodestone-server-manager/internal/server"
	"github.com/milndr/lodestone-server-manager/internal/tui"
	"github.com/milndr/lodestone-server-manager/internal/ui"
	"github.com/rs/zerolog"
)

// scheduledBackupTimeout bounds a single scheduled backup.
const scheduledBackupTimeout = 30 * time.Minute

// Application represents the lodestone application instance.
type Application struct {
	Config    config.AppConfig
	ErrWriter io.Writer

	programName string
	registry    *provider.Registry
	serverOpts  []server.Option
	in          io.Reader
}

// AppOption configures an Application during construction.
type AppOption func(*Application)

// WithRegistry replaces the Paper and Vanilla providers.
func WithRegistry(reg *provider.Registry) AppOption {
	return func(a *Application) { a.registry = reg }
}

// WithServerOptions adds options applied to every managed server.
func WithServerOptions(opts ...server.Option) AppOption {
	return func(a *Application) { a.serverOpts = append(a.serverOpts, opts...) }
}

// WithInput sets the reader the REPL reads commands from.
func WithInput(in io.Reader) AppOption {
	return func(a *Application) { a.in = in }
}

// New creates a new Application instance by parsing command-line arguments.
func New(args []string, errWriter io.Writer, opts ...AppOption) (*Application, error) {
	app := &Application{ErrWriter: errWriter, programName: "lodestone", in: os.Stdin}
	var cmdArgs []string
	if len(args) > 0 {
		app.programName = filepath.Base(args[0])
		cmdArgs = args[1:]
	}
	for _, opt := range opts {
		opt(app)
	}

	cfg, err := config.ParseConfig(app.programName, cmdArgs, errWriter)
	if err != nil {
		if !IsHelpError(err) {
			fmt.Fprintf(errWriter, "Error: %v\n", err)
		}
		return nil, err
	}
	app.Config = cfg
	return app, nil
}

// Run executes the application based on the configured mode.
func (a *Application) Run(ctx context.Context, out io.Writer) int {
	if a.Config.ShowVersion {
		PrintVersion(out)
		return apperrors.ExitSuccess
	}
	if a.Config.Completion != "" {
		return a.runCompletion(out)
	}

	zerolog.SetGlobalLevel(a.Config.Level())
	ui.InitTheme(a.Config.NoColor)
	if ui.GetCurrentTheme().Name != ui.NoColorTheme.Name {
		ui.SetTheme(a.Config.Theme)
	}

	ctx, stopSignals := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	logger, closeLog, err := a.newLogger()
	if err != nil {
		fmt.Fprintf(a.ErrWriter, "Error: %v\n", err)
		return apperrors.ExitErrorConfig
	}
	defer closeLog()
	if a.Config.ConfigFile != "" {
		logger.Debug("config file loaded", logging.String("path", a.Config.ConfigFile))
	}

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	if a.Config.MetricsAddr != "" {
		reg := metrics.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(reg)
		exp, err := metrics.Serve(a.Config.MetricsAddr, reg, logging.Component(logger, "metrics"))
		if err != nil {
			fmt.Fprintf(a.ErrWriter, "Error: %v\n", err)
			return apperrors.ExitErrorConfig
		}
		defer func() {
			if err := exp.Shutdown(context.WithoutCancel(ctx)); err != nil {
				logger.Error("metrics exporter shutdown failed", err)
			}
		}()
	}

	mgr := a.newManager(logger, recorder)
	if err := mgr.Load(); err != nil {
		logger.Error("failed to load servers", err, logging.String("dir", a.Config.ServersDir))
		fmt.Fprintf(a.ErrWriter, "Error: %v\n", err)
		return apperrors.ExitCode(err)
	}
	logger.Info("servers loaded", logging.Int("count", len(mgr.Names())), logging.String("dir", a.Config.ServersDir))

	sched := backup.NewScheduler(mgr.BackupJob(a.Config.BackupsDir, scheduledBackupTimeout), logging.Component(logger, "backup"))
	if err := sched.Sync(mgr.BackupSchedules()); err != nil {
		logger.Warn("some backup schedules were not installed", logging.Err(err))
	}
	sched.Start()
	defer sched.Stop()

	if a.Config.TUI {
		return a.runTUI(ctx, mgr, sched, logger)
	}
	return a.runREPL(ctx, out, mgr, sched, logger)
}

// newLogger logs to the error writer in REPL mode and to the log file in TUI
// mode, where the terminal belongs to the interface.
func (a *Application) newLogger() (logging.Logger, func(), error) {
	if !a.Config.TUI {
		return logging.NewConsoleLogger(a.ErrWriter, a.Config.NoColor), func() {}, nil
	}
	f, err := os.OpenFile(a.Config.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, apperrors.NewConfigError("open log file %s: %v", a.Config.LogFile, err)
	}
	return logging.NewLogger(f, "lodestone"), func() { _ = f.Close() }, nil
}

func (a *Application) newManager(logger logging.Logger, recorder metrics.Recorder) *manager.Manager {
	reg := a.registry
	if reg == nil {
		client := provider.NewClient(
			provider.WithTimeout(a.Config.HTTPTimeout),
			provider.WithUserAgent("lodestone-server-manager/"+Version),
			provider.WithLogger(logging.Component(logger, "provider")),
		)
		reg = provider.NewDefaultRegistry(client)
	}

	serverOpts := append([]server.Option{
		server.WithJavaPath(a.Config.JavaPath),
		server.WithStopTimeout(a.Config.StopTimeout),
		server.WithLogger(logging.Component(logger, "server")),
	}, a.serverOpts...)

	return manager.New(a.Config.ServersDir, reg,
		manager.WithLogger(logging.Component(logger, "manager")),
		manager.WithRecorder(recorder),
		manager.WithServerOptions(serverOpts...),
		manager.WithBackupOptions(backup.WithLogger(logging.Component(logger, "backup"))),
	)
}

// runCompletion generates shell completion scripts.
func (a *Application) runCompletion(out io.Writer) int {
	if err := cli.GenerateCompletion(out, a.programName, a.Config.Completion); err != nil {
		fmt.Fprintf(a.ErrWriter, "Error generating completion: %v\n", err)
		return apperrors.ExitErrorConfig
	}
	return apperrors.ExitSuccess
}

// runREPL starts the interactive prompt.
func (a *Application) runREPL(ctx context.Context, out io.Writer, mgr *manager.Manager, sched *backup.Scheduler, logger logging.Logger) int {
	repl := cli.NewREPL(mgr, cli.REPLConfig{
		BackupsDir:  a.Config.BackupsDir,
		StopTimeout: a.Config.StopTimeout,
	}, cli.WithScheduler(sched), cli.WithLogger(logger))
	repl.SetInput(a.in)
	repl.SetOutput(out)
	repl.Start(ctx)

	if ctx.Err() != nil {
		return apperrors.ExitErrorCanceled
	}
	return apperrors.ExitSuccess
}

// runTUI launches the full-screen interface.
func (a *Application) runTUI(ctx context.Context, mgr *manager.Manager, sched *backup.Scheduler, logger logging.Logger) int {
	return tui.Run(ctx, mgr, tui.Options{
		Version:         Version,
		BackupsDir:      a.Config.BackupsDir,
		Scheduler:       sched,
		Logger:          logging.Component(logger, "tui"),
		ShutdownTimeout: a.Config.StopTimeout + 5*time.Second,
	})
}

// IsHelpError checks if the error is a help flag error (--help was used).
func IsHelpError(err error) bool {
	return errors.Is(err, flag.ErrHelp)
}

// Package config parses command-line flags, LODESTONE_* environment variables
// and the optional lodestone.toml file into an AppConfig.
package config

import (
	"flag"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	apperrors "github.com/milndr/lodestone-server-manager/internal/errors"
	"github.com/rs/zerolog"
)

const (
	// EnvPrefix is prepended to every environment override key.
	EnvPrefix = "LODESTONE_"

	// DefaultConfigFile is read from the working directory when --config is
	// not given. A missing default file is not an error.
	DefaultConfigFile = "lodestone.toml"

	DefaultServersDir  = "Servers"
	DefaultBackupsDir  = "Backups"
	DefaultJavaPath    = "java"
	DefaultStopTimeout = 30 * time.Second
	DefaultHTTPTimeout = 10 * time.Second
	DefaultLogLevel    = "info"
	DefaultLogFile     = "lodestone.log"
	DefaultTheme       = "dark"
)

// AppConfig aggregates the application's configuration.
type AppConfig struct {
	// TUI starts the full-screen interface instead of the REPL.
	TUI bool
	// ServersDir holds one directory per managed server.
	ServersDir string
	// BackupsDir receives backup archives.
	BackupsDir string
	// JavaPath is the java executable used to launch servers.
	JavaPath string
	// StopTimeout bounds a graceful stop before the process is killed.
	StopTimeout time.Duration
	// HTTPTimeout bounds each request to the version providers.
	HTTPTimeout time.Duration
	// LogLevel is a zerolog level name.
	LogLevel string
	// LogFile receives logs in TUI mode.
	LogFile string
	// MetricsAddr enables the Prometheus exporter when non-empty.
	MetricsAddr string
	// NoColor disables ANSI colors.
	NoColor bool
	// Theme is the color palette, "dark" or "light".
	Theme string
	// ConfigFile is the TOML file that was loaded, if any.
	ConfigFile string
	// ShowVersion prints the version and exits.
	ShowVersion bool
	// Completion names a shell whose completion script is printed.
	Completion string
}

// Default returns the configuration used when nothing is overridden.
func Default() AppConfig {
	return AppConfig{
		ServersDir:  DefaultServersDir,
		BackupsDir:  DefaultBackupsDir,
		JavaPath:    DefaultJavaPath,
		StopTimeout: DefaultStopTimeout,
		HTTPTimeout: DefaultHTTPTimeout,
		LogLevel:    DefaultLogLevel,
		LogFile:     DefaultLogFile,
		Theme:       DefaultTheme,
	}
}

// Validate checks the semantic consistency of the configuration.
func (c AppConfig) Validate() error {
	if strings.TrimSpace(c.ServersDir) == "" {
		return apperrors.NewConfigError("servers directory must not be empty")
	}
	if strings.TrimSpace(c.BackupsDir) == "" {
		return apperrors.NewConfigError("backups directory must not be empty")
	}
	if c.JavaPath == "" {
		return apperrors.NewConfigError("java path must not be empty")
	}
	if c.StopTimeout <= 0 {
		return apperrors.NewConfigError("stop timeout must be positive, got %s", c.StopTimeout)
	}
	if c.HTTPTimeout <= 0 {
		return apperrors.NewConfigError("http timeout must be positive, got %s", c.HTTPTimeout)
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil || c.LogLevel == "" {
		return apperrors.NewConfigError("unknown log level %q", c.LogLevel)
	}
	if c.Theme != "dark" && c.Theme != "light" {
		return apperrors.NewConfigError("unknown theme %q (accepted values: dark, light)", c.Theme)
	}
	if c.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(c.MetricsAddr); err != nil {
			return apperrors.NewConfigError("invalid metrics address %q: %v", c.MetricsAddr, err)
		}
	}
	return nil
}

// Level returns the parsed log level, falling back to info.
func (c AppConfig) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// ParseConfig parses args into an AppConfig. Values are resolved in the order
// flags, environment, config file, defaults. It returns flag.ErrHelp when
// --help was requested.
func ParseConfig(programName string, args []string, errorWriter io.Writer) (AppConfig, error) {
	fs := flag.NewFlagSet(programName, flag.ContinueOnError)
	fs.SetOutput(errorWriter)

	config := Default()
	fs.BoolVar(&config.TUI, "tui", false, "Start the interactive terminal interface.")
	fs.StringVar(&config.ServersDir, "servers-dir", config.ServersDir, "Directory holding managed servers.")
	fs.StringVar(&config.BackupsDir, "backups-dir", config.BackupsDir, "Directory receiving backup archives.")
	fs.StringVar(&config.JavaPath, "java", config.JavaPath, "Java executable used to run servers.")
	fs.DurationVar(&config.StopTimeout, "stop-timeout", config.StopTimeout, "Grace period before a stopping server is killed.")
	fs.DurationVar(&config.HTTPTimeout, "http-timeout", config.HTTPTimeout, "Timeout for version and download requests.")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "Log level (debug, info, warn, error).")
	fs.StringVar(&config.LogFile, "log-file", config.LogFile, "Log file used in TUI mode.")
	fs.StringVar(&config.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9225).")
	fs.BoolVar(&config.NoColor, "no-color", false, "Disable colored output.")
	fs.StringVar(&config.Theme, "theme", config.Theme, "Color theme (dark, light).")
	fs.StringVar(&config.ConfigFile, "config", "", "Path to a TOML config file (default ./"+DefaultConfigFile+").")
	fs.BoolVar(&config.ShowVersion, "version", false, "Print the version and exit.")
	fs.StringVar(&config.Completion, "completion", "", "Print a completion script for bash, zsh or fish.")
	fs.Usage = func() { printUsage(fs, programName) }

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return AppConfig{}, err
		}
		return AppConfig{}, apperrors.NewConfigError("%v", err)
	}
	if fs.NArg() > 0 {
		return AppConfig{}, apperrors.NewConfigError("unexpected argument %q", fs.Arg(0))
	}
	if config.ShowVersion || config.Completion != "" {
		return config, nil
	}

	v, path, err := newSource(config.ConfigFile, isFlagSet(fs, "config"))
	if err != nil {
		return AppConfig{}, err
	}
	config.ConfigFile = path
	applyOverrides(&config, fs, v)

	if err := config.Validate(); err != nil {
		return AppConfig{}, err
	}
	return config, nil
}

func printUsage(fs *flag.FlagSet, programName string) {
	out := fs.Output()
	fmt.Fprintf(out, "Usage: %s [flags]\n\n", programName)
	fmt.Fprintln(out, "Manage Minecraft servers from the terminal. Without flags an interactive")
	fmt.Fprintln(out, "prompt is started; --tui opens the full-screen interface.")
	fmt.Fprintln(out, "\nFlags:")
	fs.PrintDefaults()
	fmt.Fprintf(out, "\nEvery flag can also be set with %s<FLAG> (e.g. %sSERVERS_DIR)\n", EnvPrefix, EnvPrefix)
	fmt.Fprintf(out, "or as a key in %s (e.g. servers_dir = \"Servers\").\n", DefaultConfigFile)
}

// HasVersionFlag reports whether args request the version without parsing
// the rest, so that invalid flags do not hide --version.
func HasVersionFlag(args []string) bool {
	for _, a := range args {
		switch a {
		case "--version", "-version":
			return true
		case "--":
			return false
		}
	}
	return false
}

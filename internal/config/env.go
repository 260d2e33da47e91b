// This file contains the override table shared by environment variables and
// the config file.

package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// lookupEnv returns the value of EnvPrefix+key when it is set and non-empty.
func lookupEnv(key string) (string, bool) {
	val, ok := os.LookupEnv(EnvPrefix + key)
	return val, ok && val != ""
}

// isFlagSet checks if a flag was explicitly set on the command line.
func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// isFlagSetAny checks if any of the specified flags were explicitly set.
func isFlagSetAny(fs *flag.FlagSet, names ...string) bool {
	for _, name := range names {
		if isFlagSet(fs, name) {
			return true
		}
	}
	return false
}

// override maps a config key to the flags it shadows. The key is used as is
// in lodestone.toml and upper-cased with EnvPrefix in the environment
// (servers_dir -> LODESTONE_SERVERS_DIR).
type override struct {
	key   string
	flags []string
	apply func(*AppConfig, string)
}

var overrides = []override{
	// Strings
	{"servers_dir", []string{"servers-dir"}, func(c *AppConfig, v string) { c.ServersDir = v }},
	{"backups_dir", []string{"backups-dir"}, func(c *AppConfig, v string) { c.BackupsDir = v }},
	{"java", []string{"java"}, func(c *AppConfig, v string) { c.JavaPath = v }},
	{"log_level", []string{"log-level"}, func(c *AppConfig, v string) { c.LogLevel = v }},
	{"log_file", []string{"log-file"}, func(c *AppConfig, v string) { c.LogFile = v }},
	{"metrics_addr", []string{"metrics-addr"}, func(c *AppConfig, v string) { c.MetricsAddr = v }},
	{"theme", []string{"theme"}, func(c *AppConfig, v string) { c.Theme = v }},

	// Durations
	{"stop_timeout", []string{"stop-timeout"}, func(c *AppConfig, v string) {
		c.StopTimeout = parseDurationValue(v, c.StopTimeout)
	}},
	{"http_timeout", []string{"http-timeout"}, func(c *AppConfig, v string) {
		c.HTTPTimeout = parseDurationValue(v, c.HTTPTimeout)
	}},

	// Booleans
	{"tui", []string{"tui"}, func(c *AppConfig, v string) { c.TUI = parseBoolEnv(v, c.TUI) }},
	{"no_color", []string{"no-color"}, func(c *AppConfig, v string) { c.NoColor = parseBoolEnv(v, c.NoColor) }},
}

// parseBoolEnv accepts "true", "1", "yes" as true and "false", "0", "no" as
// false (case-insensitive). Anything else yields defaultVal.
func parseBoolEnv(val string, defaultVal bool) bool {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return defaultVal
}

// parseDurationValue accepts Go durations ("45s", "2m") and bare integers,
// which are read as seconds. Invalid values yield defaultVal.
func parseDurationValue(val string, defaultVal time.Duration) time.Duration {
	val = strings.TrimSpace(val)
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if secs, err := strconv.ParseUint(val, 10, 32); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultVal
}

// applyOverrides fills every field whose flag was not given on the command
// line from v, which resolves the environment before the config file.
// Priority: flags > LODESTONE_* > lodestone.toml > defaults.
func applyOverrides(config *AppConfig, fs *flag.FlagSet, v *viper.Viper) {
	for _, o := range overrides {
		if isFlagSetAny(fs, o.flags...) {
			continue
		}
		if v.IsSet(o.key) {
			o.apply(config, v.GetString(o.key))
		}
	}
}

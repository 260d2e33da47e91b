package config

import (
	"strings"

	"github.com/cockroachdb/errors"
	apperrors "github.com/milndr/lodestone-server-manager/internal/errors"
	"github.com/milndr/lodestone-server-manager/internal/fsutil"
	"github.com/spf13/viper"
)

// newSource returns a viper instance resolving keys from LODESTONE_*
// variables first and the TOML config file second. path is the file that was
// read, or "" when none exists. An explicitly requested file must exist.
func newSource(path string, explicit bool) (*viper.Viper, string, error) {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix(strings.TrimSuffix(EnvPrefix, "_"))
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if !explicit {
		if envPath, ok := lookupEnv("CONFIG"); ok {
			path, explicit = envPath, true
		} else {
			path = DefaultConfigFile
		}
	}
	if !fsutil.Exists(path) {
		if explicit {
			return nil, "", apperrors.NewConfigError("config file %s not found", path)
		}
		return v, "", nil
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, "", apperrors.ConfigError{Message: errors.Wrapf(err, "read config file %s", path).Error()}
	}
	return v, path, nil
}

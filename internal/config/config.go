// Package config resolves named RFC destinations from a configuration file
// and the environment using Viper.
//
// A destination is a set of connection parameters stored under
// destinations.<name> in nwrfc.yaml (or .toml, .ini, .json):
//
//	library: /usr/sap/nwrfcsdk/lib/libsapnwrfc.so
//	destinations:
//	  dev:
//	    ashost: 10.0.0.1
//	    sysnr: "00"
//	    client: "001"
//	    user: DEVELOPER
//
// Any parameter can be supplied or overridden by an environment variable
// NWRFC_<DESTINATION>_<KEY>, for example NWRFC_DEV_PASSWD. NWRFC_LIB
// overrides the library path.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/viper"

	"github.com/mkfoss/nwrfc"
)

const (
	// AppName names the configuration directory.
	AppName = "nwrfc"
	// FileName is the configuration file name without extension.
	FileName = "nwrfc"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "NWRFC"
)

// ErrUnknownDestination is returned for a destination that is neither in the
// file nor in the environment.
var ErrUnknownDestination = errors.New("unknown destination")

// paramKeys are the parameters looked up in the environment even when the
// file does not mention them.
var paramKeys = []string{
	"ashost", "sysnr", "client", "user", "passwd", "lang",
	"mshost", "msserv", "sysid", "group", "saprouter", "trace",
}

// Options select where configuration is read from.
type Options struct {
	// File is used exclusively when set and must exist.
	File string
	// Dir overrides the user configuration directory.
	Dir string
}

// Config is the loaded configuration.
type Config struct {
	v    *viper.Viper
	path string
}

// Dir returns $XDG_CONFIG_HOME/nwrfc, defaulting to ~/.config/nwrfc.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, AppName), nil
}

// Load reads the configuration. Without Options.File it searches the working
// directory first, then the user configuration directory; finding no file
// is not an error.
func Load(opts Options) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	if err := v.BindEnv("library", EnvPrefix+"_LIB"); err != nil {
		return nil, fmt.Errorf("bind library: %w", err)
	}

	if opts.File != "" {
		if _, err := os.Stat(opts.File); err != nil {
			return nil, fmt.Errorf("config file not found: %w", err)
		}
		v.SetConfigFile(opts.File)
	} else {
		dir := opts.Dir
		if dir == "" {
			var err error
			if dir, err = Dir(); err != nil {
				return nil, err
			}
		}
		v.SetConfigName(FileName)
		v.AddConfigPath(".")
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return &Config{v: v, path: v.ConfigFileUsed()}, nil
}

// Path is the file the configuration was read from, or "".
func (c *Config) Path() string {
	return c.path
}

// Library is the configured SDK library path, or "" for the platform default.
func (c *Config) Library() string {
	return c.v.GetString("library")
}

// Destinations lists the destinations defined in the file, sorted.
func (c *Config) Destinations() []string {
	names := make([]string, 0)
	for name := range c.v.GetStringMap("destinations") {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Destination resolves the parameters of a named destination. File values
// are overridden by NWRFC_<NAME>_<KEY> environment variables.
func (c *Config) Destination(name string) (nwrfc.Params, error) {
	name = strings.ToLower(name)
	base := "destinations." + name
	keys := slices.Clone(paramKeys)
	for k := range c.v.GetStringMapString(base) {
		if !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}

	params := nwrfc.Params{}
	for _, k := range keys {
		env := EnvPrefix + "_" + strings.ToUpper(name+"_"+k)
		if err := c.v.BindEnv(base+"."+k, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
		if s := c.v.GetString(base + "." + k); s != "" {
			params[k] = s
		}
	}
	if len(params) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDestination, name)
	}
	return params, nil
}

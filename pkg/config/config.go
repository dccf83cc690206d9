// Package config loads nfsfetch's runtime configuration from a YAML file,
// environment variables, and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the complete nfsfetch configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (NFSFETCH_*)
//  2. Configuration file (YAML)
//  3. Default values (lowest priority)
type Config struct {
	// MachineName is sent in the AUTH_SYS credential presented to MOUNT
	// and NFS.
	MachineName string `mapstructure:"machine_name" validate:"required"`

	// RSIZE is the per-READ chunk size requested from the server, in
	// bytes.
	RSIZE uint32 `mapstructure:"rsize" validate:"required,gt=0"`

	// PrivilegedPortMin/Max bound the local source port range used when
	// binding the MOUNT and NFS connections to a privileged port.
	PrivilegedPortMin int `mapstructure:"privileged_port_min" validate:"required,gt=0,lt=1024"`
	PrivilegedPortMax int `mapstructure:"privileged_port_max" validate:"required,gt=0,lt=1024,gtefield=PrivilegedPortMin"`

	// LogLevel is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive).
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
}

// Load loads configuration from file, environment, and defaults.
//
// configPath selects an explicit config file; an empty string falls back
// to the default location under $XDG_CONFIG_HOME/nfsfetch/config.yaml (or
// ~/.config/nfsfetch/config.yaml).
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variable and config file
// search settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: NFSFETCH_LOG_LEVEL=DEBUG
	v.SetEnvPrefix("NFSFETCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only affects keys viper already knows, and Unmarshal
	// only sees known keys, so every field is bound to its variable.
	for _, key := range []string{"machine_name", "rsize", "privileged_port_min", "privileged_port_max", "log_level"} {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists. A missing file
// is not an error: defaults and environment variables still apply.
func readConfigFile(v *viper.Viper, configPath string) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		// An explicit configPath that does not exist surfaces as a plain
		// not-exist error rather than ConfigFileNotFoundError.
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory, preferring
// $XDG_CONFIG_HOME and falling back to ~/.config, then to the current
// directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "nfsfetch")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "nfsfetch")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

package config

import (
	"strings"

	"github.com/nfsfetch/nfsfetch/pkg/fetch"
	"github.com/nfsfetch/nfsfetch/pkg/transport"
)

// ApplyDefaults sets default values for any unspecified configuration
// fields. Zero values (0, "") are replaced with defaults; explicit values
// are preserved.
func ApplyDefaults(cfg *Config) {
	if cfg.MachineName == "" {
		cfg.MachineName = fetch.DefaultMachineName
	}
	if cfg.RSIZE == 0 {
		cfg.RSIZE = fetch.DefaultRSIZE
	}
	if cfg.PrivilegedPortMin == 0 {
		cfg.PrivilegedPortMin = transport.DefaultPrivilegedPortMin
	}
	if cfg.PrivilegedPortMax == 0 {
		cfg.PrivilegedPortMax = transport.DefaultPrivilegedPortMax
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "INFO"
	}
	// Normalize to uppercase for internal/logger.
	cfg.LogLevel = strings.ToUpper(cfg.LogLevel)
}

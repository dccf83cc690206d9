package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_DefaultConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
machine_name: "testhost"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.MachineName != "testhost" {
		t.Errorf("expected machine_name 'testhost', got %q", cfg.MachineName)
	}
	if cfg.RSIZE != 1300 {
		t.Errorf("expected default rsize 1300, got %d", cfg.RSIZE)
	}
	if cfg.LogLevel != "INFO" {
		t.Errorf("expected default log_level INFO, got %q", cfg.LogLevel)
	}
	if cfg.PrivilegedPortMax <= cfg.PrivilegedPortMin {
		t.Errorf("expected port max > port min, got [%d, %d]", cfg.PrivilegedPortMin, cfg.PrivilegedPortMax)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "does-not-exist.yaml")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("expected missing config file to fall back to defaults, got error: %v", err)
	}
	if cfg.MachineName != "client" {
		t.Errorf("expected default machine_name 'client', got %q", cfg.MachineName)
	}
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "does-not-exist.yaml")

	t.Setenv("NFSFETCH_LOG_LEVEL", "debug")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.LogLevel != "DEBUG" {
		t.Errorf("expected env override to set log_level DEBUG, got %q", cfg.LogLevel)
	}
}

func TestLoad_InvalidLogLevelFailsValidation(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
log_level: "VERBOSE"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Fatal("expected validation error for invalid log_level, got nil")
	}
}

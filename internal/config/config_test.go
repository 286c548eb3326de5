package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_NoConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	nonExistentPath := filepath.Join(tmpDir, "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("expected no error when loading default config, got: %v", err)
	}
	if cfg.Connection.Bus != "system" {
		t.Errorf("expected default bus 'system', got %q", cfg.Connection.Bus)
	}
	if cfg.Connection.CallTimeout != 30*time.Second {
		t.Errorf("expected default call_timeout 30s, got %v", cfg.Connection.CallTimeout)
	}
	if cfg.Logging.Level != "INFO" {
		t.Errorf("expected default logging level INFO, got %q", cfg.Logging.Level)
	}
	if cfg.Metrics.Port != 9090 {
		t.Errorf("expected default metrics port 9090, got %d", cfg.Metrics.Port)
	}
}

func TestLoad_FromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
connection:
  bus: session
  call_timeout: 5s
  mechanisms:
    - EXTERNAL

logging:
  level: DEBUG
  format: json

metrics:
  enabled: true
  port: 9999
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Connection.Bus != "session" {
		t.Errorf("expected bus 'session', got %q", cfg.Connection.Bus)
	}
	if cfg.Connection.CallTimeout != 5*time.Second {
		t.Errorf("expected call_timeout 5s, got %v", cfg.Connection.CallTimeout)
	}
	if len(cfg.Connection.Mechanisms) != 1 || cfg.Connection.Mechanisms[0] != "EXTERNAL" {
		t.Errorf("expected mechanisms [EXTERNAL], got %v", cfg.Connection.Mechanisms)
	}
	if cfg.Metrics.Port != 9999 {
		t.Errorf("expected metrics port 9999, got %d", cfg.Metrics.Port)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	content := "logging:\n  level: DEBUG\n  invalid yaml here [[[\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Fatal("expected error with invalid YAML, got nil")
	}
}

func TestLoad_InvalidMechanismFailsValidation(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
connection:
  mechanisms:
    - NOT_A_MECHANISM
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Fatal("expected validation error for unknown mechanism, got nil")
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "config.yaml")

	cfg := GetDefaultConfig()
	cfg.Connection.Bus = "session"

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("save config: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load saved config: %v", err)
	}
	if loaded.Connection.Bus != "session" {
		t.Errorf("expected round-tripped bus 'session', got %q", loaded.Connection.Bus)
	}
}

func TestConfigDir_RespectsXDGConfigHome(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	want := filepath.Join(tmpDir, "godbus")
	if got := ConfigDir(); got != want {
		t.Errorf("expected config dir %q, got %q", want, got)
	}
}

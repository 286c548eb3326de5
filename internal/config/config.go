// Package config loads the configuration for the dbus client and the
// godbus-call/godbus-monitor CLIs (§9.2): built-in defaults overlaid by a
// YAML file. GODBUS_* environment variables override only keys that the
// file sets; when no file is found they are not read. No command-line
// flag overrides a config key.
//
// Adapted from the teacher's pkg/config: same viper + mapstructure +
// validator layering and decode-hook pattern, generalized from the
// server's dozen nested subsystem configs down to the handful of knobs
// a D-Bus client actually has (bus selection, SASL order, timeouts,
// reconnect policy, handler pool size) plus the ambient logging,
// telemetry and metrics sections every command shares.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the resolved configuration for a dbus connection plus the
// ambient concerns (logging, telemetry, metrics) shared by the CLIs.
type Config struct {
	Connection ConnectionConfig `mapstructure:"connection" yaml:"connection"`
	Health     HealthConfig     `mapstructure:"health" yaml:"health"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry" yaml:"telemetry"`
	Metrics    MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
}

// ConnectionConfig selects the bus and tunes the handshake/call path.
type ConnectionConfig struct {
	// Bus is "system" or "session"; ignored when Address is set.
	Bus string `mapstructure:"bus" validate:"omitempty,oneof=system session" yaml:"bus"`

	// Address is an explicit D-Bus address string, semicolon-separated
	// attempts. Overrides Bus when non-empty.
	Address string `mapstructure:"address" yaml:"address,omitempty"`

	// Mechanisms is the SASL negotiation order, e.g. ["EXTERNAL",
	// "DBUS_COOKIE_SHA1", "ANONYMOUS"]. Empty uses the package default.
	Mechanisms []string `mapstructure:"mechanisms" validate:"dive,oneof=EXTERNAL DBUS_COOKIE_SHA1 ANONYMOUS" yaml:"mechanisms,omitempty"`

	NegotiateUnixFD bool          `mapstructure:"negotiate_unix_fd" yaml:"negotiate_unix_fd"`
	CallTimeout     time.Duration `mapstructure:"call_timeout" validate:"required,gt=0" yaml:"call_timeout"`
	HandlerPoolSize int           `mapstructure:"handler_pool_size" validate:"required,gt=0" yaml:"handler_pool_size"`
}

// HealthConfig mirrors dbushealth.Config as a mapstructure/yaml-tagged
// surface for the config layer.
type HealthConfig struct {
	Enabled            bool          `mapstructure:"enabled" yaml:"enabled"`
	Interval           time.Duration `mapstructure:"interval" validate:"required,gt=0" yaml:"interval"`
	PingTimeout        time.Duration `mapstructure:"ping_timeout" validate:"required,gt=0" yaml:"ping_timeout"`
	FailuresToEscalate int           `mapstructure:"failures_to_escalate" validate:"required,gt=0" yaml:"failures_to_escalate"`
	AutoReconnect      bool          `mapstructure:"auto_reconnect" yaml:"auto_reconnect"`
	InitialDelay       time.Duration `mapstructure:"initial_delay" validate:"required,gt=0" yaml:"initial_delay"`
	Multiplier         float64       `mapstructure:"multiplier" validate:"required,gt=1" yaml:"multiplier"`
	MaxDelay           time.Duration `mapstructure:"max_delay" validate:"required,gt=0" yaml:"max_delay"`
	MaxAttempts        int           `mapstructure:"max_attempts" validate:"gte=0" yaml:"max_attempts"`
}

// LoggingConfig controls internal/logger's behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls the OpenTelemetry tracer (internal/telemetry).
type TelemetryConfig struct {
	Enabled    bool             `mapstructure:"enabled" yaml:"enabled"`
	Endpoint   string           `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure   bool             `mapstructure:"insecure" yaml:"insecure"`
	SampleRate float64          `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`
	Profiling  ProfilingConfig  `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig is the Pyroscope continuous-profiling section, which
// ToProfilingConfig converts for internal/telemetry.InitProfiling.
// Neither CLI calls InitProfiling, so the section starts no profiler.
type ProfilingConfig struct {
	Enabled      bool     `mapstructure:"enabled" yaml:"enabled"`
	Endpoint     string   `mapstructure:"endpoint" yaml:"endpoint"`
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types,omitempty"`
}

// MetricsConfig controls the Prometheus metrics HTTP server (pkg/metrics).
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// Load reads configuration from an explicit file or the default search
// path, applying defaults for anything unset and validating the result.
// A GODBUS_* environment variable (e.g. GODBUS_CONNECTION_BUS) overrides
// a key only when the file sets that key; with no file found, the
// environment is not consulted.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	cfg := GetDefaultConfig()
	if found {
		if err := v.Unmarshal(cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg as YAML to path, creating parent directories as
// needed.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate runs struct-tag validation via go-playground/validator.
func Validate(cfg *Config) error {
	return validator.New().Struct(cfg)
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("GODBUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(ConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read config file: %w", err)
	}
	return true, nil
}

// durationDecodeHook lets config files and env vars spell durations as
// "30s"/"5m" rather than raw nanosecond integers.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// ConfigDir returns the configuration directory: $XDG_CONFIG_HOME/godbus,
// or ~/.config/godbus, or "." as a last resort.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "godbus")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "godbus")
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

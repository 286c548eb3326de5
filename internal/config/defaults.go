package config

import "time"

// GetDefaultConfig returns a fully populated default configuration,
// matching dbus.DefaultConfig and dbushealth.DefaultConfig (§4.6-§4.7).
func GetDefaultConfig() *Config {
	cfg := &Config{
		Health: HealthConfig{Enabled: true, AutoReconnect: true},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills in zero-valued fields, mirroring the teacher's
// per-section apply*Defaults helpers.
func ApplyDefaults(cfg *Config) {
	applyConnectionDefaults(&cfg.Connection)
	applyHealthDefaults(&cfg.Health)
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
}

func applyConnectionDefaults(c *ConnectionConfig) {
	if c.Bus == "" && c.Address == "" {
		c.Bus = "system"
	}
	if c.CallTimeout == 0 {
		c.CallTimeout = 30 * time.Second
	}
	if c.HandlerPoolSize == 0 {
		c.HandlerPoolSize = 16
	}
	if len(c.Mechanisms) == 0 {
		c.Mechanisms = []string{"EXTERNAL", "DBUS_COOKIE_SHA1", "ANONYMOUS"}
	}
}

func applyHealthDefaults(h *HealthConfig) {
	if h.Interval == 0 {
		h.Interval = 30 * time.Second
	}
	if h.PingTimeout == 0 {
		h.PingTimeout = 5 * time.Second
	}
	if h.FailuresToEscalate == 0 {
		h.FailuresToEscalate = 2
	}
	if h.InitialDelay == 0 {
		h.InitialDelay = 1 * time.Second
	}
	if h.Multiplier == 0 {
		h.Multiplier = 2.0
	}
	if h.MaxDelay == 0 {
		h.MaxDelay = 5 * time.Minute
	}
	if h.MaxAttempts == 0 {
		h.MaxAttempts = 10
	}
}

func applyLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = "INFO"
	}
	if l.Format == "" {
		l.Format = "text"
	}
	if l.Output == "" {
		l.Output = "stderr"
	}
}

func applyTelemetryDefaults(t *TelemetryConfig) {
	if t.Endpoint == "" {
		t.Endpoint = "localhost:4317"
	}
	if t.SampleRate == 0 {
		t.SampleRate = 1.0
	}
	if t.Profiling.Endpoint == "" {
		t.Profiling.Endpoint = "http://localhost:4040"
	}
	if len(t.Profiling.ProfileTypes) == 0 {
		t.Profiling.ProfileTypes = []string{"cpu", "alloc_objects", "inuse_objects", "goroutines"}
	}
}

func applyMetricsDefaults(m *MetricsConfig) {
	if m.Port == 0 {
		m.Port = 9090
	}
}

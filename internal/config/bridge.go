package config

import (
	"fmt"

	"github.com/marmos91/godbus/dbus"
	"github.com/marmos91/godbus/internal/dbushealth"
	"github.com/marmos91/godbus/internal/dbussasl"
	"github.com/marmos91/godbus/internal/telemetry"
)

// ToTelemetryConfig translates the loaded telemetry section into
// telemetry.Config, for passing to telemetry.Init.
func (c *Config) ToTelemetryConfig(serviceName, serviceVersion string) telemetry.Config {
	return telemetry.Config{
		Enabled:        c.Telemetry.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Endpoint:       c.Telemetry.Endpoint,
		Insecure:       c.Telemetry.Insecure,
		SampleRate:     c.Telemetry.SampleRate,
	}
}

// ToProfilingConfig translates the loaded profiling section into
// telemetry.ProfilingConfig, for passing to telemetry.InitProfiling.
func (c *Config) ToProfilingConfig(serviceName, serviceVersion string) telemetry.ProfilingConfig {
	return telemetry.ProfilingConfig{
		Enabled:        c.Telemetry.Profiling.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Endpoint:       c.Telemetry.Profiling.Endpoint,
		ProfileTypes:   c.Telemetry.Profiling.ProfileTypes,
	}
}

// ToDBusConfig translates the loaded configuration into a dbus.Config,
// resolving mechanism names against the registered SASL mechanisms.
func (c *Config) ToDBusConfig() (dbus.Config, error) {
	out := dbus.DefaultConfig()
	out.Address = c.Connection.Address
	if c.Connection.Bus == "session" {
		out.Bus = dbus.BusSession
	} else {
		out.Bus = dbus.BusSystem
	}
	out.NegotiateUnixFD = c.Connection.NegotiateUnixFD
	out.CallTimeout = c.Connection.CallTimeout
	out.HandlerPoolSize = c.Connection.HandlerPoolSize

	mechs, err := resolveMechanisms(c.Connection.Mechanisms)
	if err != nil {
		return dbus.Config{}, err
	}
	out.Mechanisms = mechs

	out.Health = dbushealth.Config{
		HealthEnabled:      c.Health.Enabled,
		Interval:           c.Health.Interval,
		PingTimeout:        c.Health.PingTimeout,
		FailuresToEscalate: c.Health.FailuresToEscalate,
		AutoReconnect:      c.Health.AutoReconnect,
		InitialDelay:       c.Health.InitialDelay,
		Multiplier:         c.Health.Multiplier,
		MaxDelay:           c.Health.MaxDelay,
		MaxAttempts:        c.Health.MaxAttempts,
	}
	return out, nil
}

func resolveMechanisms(names []string) ([]dbussasl.Mechanism, error) {
	if len(names) == 0 {
		return nil, nil
	}
	mechs := make([]dbussasl.Mechanism, 0, len(names))
	for _, name := range names {
		switch name {
		case "EXTERNAL":
			mechs = append(mechs, &dbussasl.External{})
		case "DBUS_COOKIE_SHA1":
			mechs = append(mechs, &dbussasl.CookieSHA1{})
		case "ANONYMOUS":
			mechs = append(mechs, &dbussasl.Anonymous{})
		default:
			return nil, fmt.Errorf("unknown SASL mechanism %q", name)
		}
	}
	return mechs, nil
}

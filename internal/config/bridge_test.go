package config

import (
	"testing"

	"github.com/marmos91/godbus/dbus"
)

func TestToDBusConfig_ResolvesMechanisms(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Connection.Mechanisms = []string{"EXTERNAL", "ANONYMOUS"}

	dbusCfg, err := cfg.ToDBusConfig()
	if err != nil {
		t.Fatalf("ToDBusConfig: %v", err)
	}
	if len(dbusCfg.Mechanisms) != 2 {
		t.Fatalf("expected 2 mechanisms, got %d", len(dbusCfg.Mechanisms))
	}
	if dbusCfg.Mechanisms[0].Name() != "EXTERNAL" {
		t.Errorf("expected first mechanism EXTERNAL, got %s", dbusCfg.Mechanisms[0].Name())
	}
}

func TestToDBusConfig_UnknownMechanismErrors(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Connection.Mechanisms = []string{"NOT_REAL"}

	if _, err := cfg.ToDBusConfig(); err == nil {
		t.Fatal("expected error for unknown mechanism, got nil")
	}
}

func TestToDBusConfig_BusSelection(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Connection.Bus = "session"

	dbusCfg, err := cfg.ToDBusConfig()
	if err != nil {
		t.Fatalf("ToDBusConfig: %v", err)
	}
	if dbusCfg.Bus != dbus.BusSession {
		t.Errorf("expected BusSession, got %v", dbusCfg.Bus)
	}
}

func TestToTelemetryConfig(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Telemetry.Endpoint = "collector:4317"

	tc := cfg.ToTelemetryConfig("godbus-call", "1.2.3")
	if tc.ServiceName != "godbus-call" || tc.ServiceVersion != "1.2.3" {
		t.Errorf("unexpected service identity: %+v", tc)
	}
	if tc.Endpoint != "collector:4317" {
		t.Errorf("expected endpoint to carry through, got %q", tc.Endpoint)
	}
}

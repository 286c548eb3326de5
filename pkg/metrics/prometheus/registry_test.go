package prometheus

import (
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegistry_RecordsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordCallSent("org.freedesktop.DBus", "Ping")
	r.RecordCallCompleted("org.freedesktop.DBus", "Ping", 50*time.Millisecond, "")
	r.RecordCallTimedOut("org.example.Foo", "Bar")
	r.RecordReconnectAttempt(1)
	r.RecordReconnectOutcome(true)
	r.SetConnectionState("CONNECTED")
	r.RecordHealthCheckLatency(10 * time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		byName[f.GetName()] = f
	}

	if _, ok := byName["godbus_calls_sent_total"]; !ok {
		t.Error("expected godbus_calls_sent_total to be registered")
	}
	if _, ok := byName["godbus_reconnect_successes_total"]; !ok {
		t.Error("expected godbus_reconnect_successes_total to be registered")
	}

	state := byName["godbus_connection_state"]
	if state == nil {
		t.Fatal("expected godbus_connection_state gauge vec")
	}
	var connectedSeen bool
	for _, m := range state.GetMetric() {
		for _, l := range m.GetLabel() {
			if l.GetName() == "state" && l.GetValue() == "CONNECTED" && m.GetGauge().GetValue() == 1 {
				connectedSeen = true
			}
		}
	}
	if !connectedSeen {
		t.Error("expected CONNECTED state gauge to be set to 1")
	}
}

func TestRegistry_NilSafe(t *testing.T) {
	var r *registry
	r.RecordCallSent("a", "b")
	r.RecordCallCompleted("a", "b", 0, "")
	r.RecordCallTimedOut("a", "b")
	r.RecordReconnectAttempt(1)
	r.RecordReconnectOutcome(false)
	r.SetConnectionState("FAILED")
	r.RecordHealthCheckLatency(0)
}

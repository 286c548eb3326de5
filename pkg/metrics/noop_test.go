package metrics

import "testing"

// NoOp's methods must be safe to call with zero arguments and never
// panic; the whole point is that callers never need to nil-check.
func TestNoOp_DoesNotPanic(t *testing.T) {
	r := NoOp()
	r.RecordCallSent("org.freedesktop.DBus", "Ping")
	r.RecordCallCompleted("org.freedesktop.DBus", "Ping", 0, "")
	r.RecordCallTimedOut("org.freedesktop.DBus", "Ping")
	r.RecordReconnectAttempt(1)
	r.RecordReconnectOutcome(true)
	r.SetConnectionState("CONNECTED")
	r.RecordHealthCheckLatency(0)
}

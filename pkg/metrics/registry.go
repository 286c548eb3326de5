// Package metrics provides observability for the dbus client: calls
// sent/completed/timed out, reconnect attempts, connection state, and
// health-check latency (§9.3). Implementations are optional - pass nil
// to disable metrics collection with zero overhead.
//
// Grounded on the teacher's pkg/metrics.NFSMetrics interface, narrowed
// from NFS-procedure/share/connection metrics down to the dbus client's
// equivalent surface: method/interface in place of procedure/share,
// connection state in place of connection accept/close counters.
package metrics

import "time"

// Registry collects dbus client metrics. Every method is safe to call
// on a nil Registry (no-op), so callers never need a nil check before
// recording.
type Registry interface {
	// RecordCallSent increments the sent-calls counter for one
	// interface.member pair.
	RecordCallSent(iface, member string)

	// RecordCallCompleted records a completed call's outcome and
	// round-trip duration. errorName is empty for a successful
	// METHOD_RETURN.
	RecordCallCompleted(iface, member string, duration time.Duration, errorName string)

	// RecordCallTimedOut increments the call-timeout counter.
	RecordCallTimedOut(iface, member string)

	// RecordReconnectAttempt increments the reconnect-attempt counter.
	RecordReconnectAttempt(attempt int)

	// RecordReconnectOutcome records whether a reconnect attempt
	// succeeded.
	RecordReconnectOutcome(success bool)

	// SetConnectionState updates the current connection-state gauge.
	// state is the dbushealth.ConnState string form.
	SetConnectionState(state string)

	// RecordHealthCheckLatency records one Peer.Ping round-trip time.
	RecordHealthCheckLatency(duration time.Duration)
}

package metrics

import "time"

type noop struct{}

// NoOp returns a Registry whose methods do nothing. Used as the default
// so callers never need to nil-check before recording.
func NoOp() Registry { return noop{} }

func (noop) RecordCallSent(iface, member string)                                    {}
func (noop) RecordCallCompleted(iface, member string, duration time.Duration, errorName string) {}
func (noop) RecordCallTimedOut(iface, member string)                                 {}
func (noop) RecordReconnectAttempt(attempt int)                                      {}
func (noop) RecordReconnectOutcome(success bool)                                     {}
func (noop) SetConnectionState(state string)                                         {}
func (noop) RecordHealthCheckLatency(duration time.Duration)                         {}

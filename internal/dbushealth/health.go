// Package dbushealth implements the connection state machine, periodic
// Peer.Ping health checking, and capped-exponential-backoff reconnect
// described by §3.7, §4.7 and §8's reconnect law.
//
// Grounded on the teacher's BackchannelSender retry loop
// (internal/protocol/nfs/v4/state/backchannel.go sendCallbackWithRetry):
// an attempt counter, a per-attempt delay, and a terminal failure event
// once attempts are exhausted — generalized from a fixed 3-step retry
// table to the spec's delay(n) = min(initial*multiplier^n, max) formula.
package dbushealth

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/godbus/internal/logger"
	"github.com/marmos91/godbus/internal/telemetry"
)

// ConnState is the connection's lifecycle state (§3.7).
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateAuthenticating
	StateConnected
	StateUnhealthy
	StateReconnecting
	StateFailed
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateAuthenticating:
		return "AUTHENTICATING"
	case StateConnected:
		return "CONNECTED"
	case StateUnhealthy:
		return "UNHEALTHY"
	case StateReconnecting:
		return "RECONNECTING"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Admits reports whether user-facing request/response operations are
// permitted in this state (§3.7 invariant).
func (s ConnState) Admits() bool { return s == StateConnected || s == StateUnhealthy }

type EventKind int

const (
	EventStateChanged EventKind = iota
	EventHealthCheckFailure
	EventHealthRecovered
	EventReconnectAttempt
	EventReconnectionSuccess
	EventReconnectionExhausted
)

func (k EventKind) String() string {
	switch k {
	case EventStateChanged:
		return "STATE_CHANGED"
	case EventHealthCheckFailure:
		return "HEALTH_CHECK_FAILURE"
	case EventHealthRecovered:
		return "HEALTH_RECOVERED"
	case EventReconnectAttempt:
		return "RECONNECT_ATTEMPT"
	case EventReconnectionSuccess:
		return "RECONNECTION_SUCCESS"
	case EventReconnectionExhausted:
		return "RECONNECTION_EXHAUSTED"
	default:
		return "UNKNOWN_EVENT"
	}
}

// Event is emitted to subscribed listeners (§4.8 Observability).
type Event struct {
	Kind    EventKind
	Old     ConnState
	New     ConnState
	Attempt int
	Delay   time.Duration
	Err     error
}

type Listener func(Event)

// Config bundles the health-check and reconnect policy knobs (§4.7).
type Config struct {
	HealthEnabled      bool
	Interval           time.Duration
	PingTimeout        time.Duration
	FailuresToEscalate int
	AutoReconnect      bool
	InitialDelay       time.Duration
	Multiplier         float64
	MaxDelay           time.Duration
	MaxAttempts        int // 0 = unlimited
}

func DefaultConfig() Config {
	return Config{
		HealthEnabled:      true,
		Interval:           30 * time.Second,
		PingTimeout:        5 * time.Second,
		FailuresToEscalate: 2,
		AutoReconnect:      true,
		InitialDelay:       1 * time.Second,
		Multiplier:         2.0,
		MaxDelay:           5 * time.Minute,
		MaxAttempts:        10,
	}
}

// Delay computes the backoff for the nth (0-indexed) reconnect attempt:
// min(initial * multiplier^n, max).
func (c Config) Delay(n int) time.Duration {
	d := float64(c.InitialDelay) * math.Pow(c.Multiplier, float64(n))
	if d > float64(c.MaxDelay) {
		return c.MaxDelay
	}
	return time.Duration(d)
}

// Pinger issues a health-check round-trip (Peer.Ping) with the given
// timeout.
type Pinger interface {
	Ping(ctx context.Context, timeout time.Duration) error
}

// Reconnector performs one full bring-up attempt (transport, SASL,
// Hello) and reports success or failure.
type Reconnector interface {
	Reconnect(ctx context.Context) error
}

// Manager owns the connection state variable, runs the periodic health
// check, and drives the reconnect state machine. It is the only writer
// of ConnState; readers never block writers (§5).
type Manager struct {
	cfg         Config
	pinger      Pinger
	reconnector Reconnector

	mu    sync.RWMutex
	state ConnState

	listenersMu sync.RWMutex
	listeners   []Listener

	consecutiveFailures atomic.Int32
	attempt             atomic.Int32
	reconnecting        atomic.Bool

	runMu  sync.Mutex
	stopCh chan struct{}
	doneCh chan struct{}
}

func NewManager(cfg Config, pinger Pinger, reconnector Reconnector) *Manager {
	return &Manager{
		cfg:         cfg,
		pinger:      pinger,
		reconnector: reconnector,
		state:       StateDisconnected,
	}
}

func (m *Manager) Subscribe(l Listener) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	m.listeners = append(m.listeners, l)
}

func (m *Manager) emit(ev Event) {
	m.listenersMu.RLock()
	ls := append([]Listener(nil), m.listeners...)
	m.listenersMu.RUnlock()
	for _, l := range ls {
		l(ev)
	}
}

func (m *Manager) State() ConnState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// SetState transitions state and emits EventStateChanged if it changed.
func (m *Manager) SetState(newState ConnState) {
	m.mu.Lock()
	old := m.state
	m.state = newState
	m.mu.Unlock()
	if old != newState {
		logger.Info("connection state changed", "old", old.String(), "new", newState.String())
		m.emit(Event{Kind: EventStateChanged, Old: old, New: newState})
	}
}

// Stop halts the current health-check run, if one is active, and waits
// for it to finish. A no-op if RunHealthChecks was never started.
func (m *Manager) Stop() {
	m.runMu.Lock()
	stopCh, doneCh := m.stopCh, m.doneCh
	m.runMu.Unlock()
	if stopCh == nil {
		return
	}
	select {
	case <-stopCh:
	default:
		close(stopCh)
	}
	<-doneCh
}

// currentStopCh returns the stop channel for the in-progress
// RunHealthChecks call, or nil if none is running.
func (m *Manager) currentStopCh() chan struct{} {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	return m.stopCh
}

// RunHealthChecks runs the periodic Peer.Ping loop until ctx is cancelled
// or Stop is called. Intended to run on its own goroutine; each call
// gets its own stop/done channel pair, so a Manager may be run again
// after a prior run has stopped (reconnect bring-up).
func (m *Manager) RunHealthChecks(ctx context.Context) {
	m.runMu.Lock()
	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	m.stopCh, m.doneCh = stopCh, doneCh
	m.runMu.Unlock()
	defer close(doneCh)

	if !m.cfg.HealthEnabled {
		return
	}
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			m.runOneCheck(ctx)
		}
	}
}

func (m *Manager) runOneCheck(ctx context.Context) {
	err := m.pinger.Ping(ctx, m.cfg.PingTimeout)
	if err == nil {
		m.consecutiveFailures.Store(0)
		if m.State() == StateUnhealthy {
			m.SetState(StateConnected)
			m.emit(Event{Kind: EventHealthRecovered})
		}
		return
	}

	failures := m.consecutiveFailures.Add(1)
	logger.Warn("health check failed", "consecutive_failures", failures, "error", err)
	if m.State() == StateConnected {
		m.SetState(StateUnhealthy)
		m.emit(Event{Kind: EventHealthCheckFailure, Err: err})
	}
	if int(failures) >= m.cfg.FailuresToEscalate {
		m.consecutiveFailures.Store(0)
		m.TriggerReconnect(ctx)
	}
}

// TriggerReconnect enters RECONNECTING and runs the capped-backoff
// bring-up loop to completion (success or FAILED), synchronously. The
// caller typically runs this on its own goroutine for an unsolicited
// disconnect.
func (m *Manager) TriggerReconnect(ctx context.Context) {
	if !m.reconnecting.CompareAndSwap(false, true) {
		return // a reconnect loop is already in flight for this generation
	}
	defer m.reconnecting.Store(false)

	if !m.cfg.AutoReconnect {
		m.SetState(StateFailed)
		return
	}
	m.SetState(StateReconnecting)

	for {
		attempt := int(m.attempt.Load())
		if m.cfg.MaxAttempts > 0 && attempt >= m.cfg.MaxAttempts {
			m.SetState(StateFailed)
			m.emit(Event{Kind: EventReconnectionExhausted, Attempt: attempt})
			return
		}

		delay := m.cfg.Delay(attempt)
		m.emit(Event{Kind: EventReconnectAttempt, Attempt: attempt + 1, Delay: delay})
		logger.Info("reconnect attempt scheduled", "attempt", attempt+1, "delay", delay)

		stopCh := m.currentStopCh()
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-time.After(delay):
		}

		attempt = int(m.attempt.Add(1))
		spanCtx, span := telemetry.StartReconnectSpan(ctx, attempt)
		err := m.reconnector.Reconnect(spanCtx)
		if err != nil {
			telemetry.RecordError(spanCtx, err)
		}
		span.End()
		if err == nil {
			m.attempt.Store(0)
			m.SetState(StateConnected)
			m.emit(Event{Kind: EventReconnectionSuccess})
			return
		}
		logger.Warn("reconnect attempt failed", "attempt", attempt, "error", err)
	}
}

// ResetReconnectState clears the attempt counter and re-arms the state
// machine, for a user-initiated retry after FAILED.
func (m *Manager) ResetReconnectState() {
	m.attempt.Store(0)
	m.consecutiveFailures.Store(0)
}

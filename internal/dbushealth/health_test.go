package dbushealth

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestConfig_Delay_ExponentialWithCap(t *testing.T) {
	cfg := Config{InitialDelay: 100 * time.Millisecond, Multiplier: 2, MaxDelay: time.Second}

	cases := []struct {
		n    int
		want time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
		{4, time.Second}, // 1600ms capped to 1s
		{10, time.Second},
	}
	for _, c := range cases {
		if got := cfg.Delay(c.n); got != c.want {
			t.Errorf("Delay(%d) = %v, want %v", c.n, got, c.want)
		}
	}
}

func TestConnState_Admits(t *testing.T) {
	admits := map[ConnState]bool{
		StateDisconnected:   false,
		StateConnecting:     false,
		StateAuthenticating: false,
		StateConnected:      true,
		StateUnhealthy:      true,
		StateReconnecting:   false,
		StateFailed:         false,
	}
	for state, want := range admits {
		if got := state.Admits(); got != want {
			t.Errorf("%s.Admits() = %v, want %v", state, got, want)
		}
	}
}

type fakePinger struct {
	err atomic.Value // error
}

func (p *fakePinger) setErr(err error) { p.err.Store(&err) }
func (p *fakePinger) Ping(ctx context.Context, timeout time.Duration) error {
	v := p.err.Load()
	if v == nil {
		return nil
	}
	return *v.(*error)
}

type fakeReconnector struct {
	failTimes int32
	calls     atomic.Int32
}

func (r *fakeReconnector) Reconnect(ctx context.Context) error {
	n := r.calls.Add(1)
	if n <= r.failTimes {
		return errors.New("dial failed")
	}
	return nil
}

func TestManager_SetState_EmitsOnChange(t *testing.T) {
	m := NewManager(DefaultConfig(), &fakePinger{}, &fakeReconnector{})

	var events []Event
	m.Subscribe(func(e Event) { events = append(events, e) })

	m.SetState(StateConnecting)
	m.SetState(StateConnecting) // no-op, same state
	m.SetState(StateConnected)

	if len(events) != 2 {
		t.Fatalf("expected 2 state-change events, got %d", len(events))
	}
	if events[1].Old != StateConnecting || events[1].New != StateConnected {
		t.Errorf("unexpected transition: %+v", events[1])
	}
}

func TestManager_TriggerReconnect_SucceedsAfterRetries(t *testing.T) {
	cfg := Config{
		AutoReconnect: true,
		InitialDelay:  time.Millisecond,
		Multiplier:    1,
		MaxDelay:      5 * time.Millisecond,
		MaxAttempts:   5,
	}
	reconnector := &fakeReconnector{failTimes: 2}
	m := NewManager(cfg, &fakePinger{}, reconnector)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	m.TriggerReconnect(ctx)

	if m.State() != StateConnected {
		t.Errorf("expected StateConnected after eventual success, got %s", m.State())
	}
	if reconnector.calls.Load() != 3 {
		t.Errorf("expected 3 reconnect attempts, got %d", reconnector.calls.Load())
	}
}

func TestManager_TriggerReconnect_ExhaustsAttempts(t *testing.T) {
	cfg := Config{
		AutoReconnect: true,
		InitialDelay:  time.Millisecond,
		Multiplier:    1,
		MaxDelay:      5 * time.Millisecond,
		MaxAttempts:   2,
	}
	reconnector := &fakeReconnector{failTimes: 100}
	m := NewManager(cfg, &fakePinger{}, reconnector)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	m.TriggerReconnect(ctx)

	if m.State() != StateFailed {
		t.Errorf("expected StateFailed after exhausting attempts, got %s", m.State())
	}
}

func TestManager_TriggerReconnect_DisabledGoesStraightToFailed(t *testing.T) {
	cfg := Config{AutoReconnect: false}
	m := NewManager(cfg, &fakePinger{}, &fakeReconnector{})

	m.TriggerReconnect(context.Background())
	if m.State() != StateFailed {
		t.Errorf("expected StateFailed when AutoReconnect is disabled, got %s", m.State())
	}
}

func TestManager_RunHealthChecks_EscalatesToReconnect(t *testing.T) {
	pinger := &fakePinger{}
	pingErr := errors.New("ping failed")
	pinger.setErr(pingErr)

	reconnector := &fakeReconnector{}
	cfg := Config{
		HealthEnabled:      true,
		Interval:           5 * time.Millisecond,
		PingTimeout:        time.Second,
		FailuresToEscalate: 1,
		AutoReconnect:      true,
		InitialDelay:       time.Millisecond,
		Multiplier:         1,
		MaxDelay:           5 * time.Millisecond,
		MaxAttempts:        3,
	}
	m := NewManager(cfg, pinger, reconnector)
	m.SetState(StateConnected)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	m.RunHealthChecks(ctx)

	if reconnector.calls.Load() == 0 {
		t.Error("expected at least one reconnect attempt after repeated ping failures")
	}
}

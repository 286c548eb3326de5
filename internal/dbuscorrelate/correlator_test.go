package dbuscorrelate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/marmos91/godbus/internal/dbuserr"
	"github.com/marmos91/godbus/internal/dbusmsg"
)

func TestCorrelator_DeliverRoutesToWaiter(t *testing.T) {
	c := New()
	ch := c.Register(1, time.Second)

	reply := &dbusmsg.Message{}
	if ok := c.Deliver(1, reply, nil); !ok {
		t.Fatal("expected Deliver to find the registered waiter")
	}

	got, err := c.Wait(context.Background(), 1, ch)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if got != reply {
		t.Error("expected the delivered message back")
	}
	if c.Len() != 0 {
		t.Errorf("expected pending map to be empty after delivery, got %d", c.Len())
	}
}

func TestCorrelator_DeliverUnknownSerialReturnsFalse(t *testing.T) {
	c := New()
	if ok := c.Deliver(99, &dbusmsg.Message{}, nil); ok {
		t.Error("expected Deliver to report false for an unregistered serial")
	}
}

func TestCorrelator_DeliverWithRemoteError(t *testing.T) {
	c := New()
	ch := c.Register(2, time.Second)
	remoteErr := errors.New("org.example.Error: boom")

	if ok := c.Deliver(2, nil, remoteErr); !ok {
		t.Fatal("expected Deliver to find the waiter")
	}
	_, err := c.Wait(context.Background(), 2, ch)
	if !errors.Is(err, remoteErr) {
		t.Errorf("expected the remote error back, got %v", err)
	}
}

func TestCorrelator_Expire(t *testing.T) {
	c := New()
	ch := c.Register(3, 10*time.Millisecond)

	_, err := c.Wait(context.Background(), 3, ch)
	var derr *dbuserr.Error
	if !errors.As(err, &derr) || derr.Kind != dbuserr.KindCallTimeout {
		t.Errorf("expected KindCallTimeout, got %v", err)
	}
}

func TestCorrelator_CancelStopsDelivery(t *testing.T) {
	c := New()
	c.Register(4, time.Second)
	c.Cancel(4)

	if c.Len() != 0 {
		t.Errorf("expected pending map empty after cancel, got %d", c.Len())
	}
	if ok := c.Deliver(4, &dbusmsg.Message{}, nil); ok {
		t.Error("expected Deliver to find nothing after Cancel")
	}
}

func TestCorrelator_Fail(t *testing.T) {
	c := New()
	ch := c.Register(5, time.Second)
	wantErr := errors.New("transport closed")

	c.Fail(5, wantErr)
	_, err := c.Wait(context.Background(), 5, ch)
	if !errors.Is(err, wantErr) {
		t.Errorf("expected Fail's error, got %v", err)
	}
}

func TestCorrelator_FailAll(t *testing.T) {
	c := New()
	ch1 := c.Register(10, time.Second)
	ch2 := c.Register(11, time.Second)

	wantErr := errors.New("connection lost")
	c.FailAll(wantErr)

	if c.Len() != 0 {
		t.Errorf("expected pending map cleared, got %d", c.Len())
	}
	for _, ch := range []<-chan Reply{ch1, ch2} {
		_, err := c.Wait(context.Background(), 0, ch)
		if !errors.Is(err, wantErr) {
			t.Errorf("expected FailAll's error, got %v", err)
		}
	}
}

func TestCorrelator_WaitRespectsContextCancellation(t *testing.T) {
	c := New()
	ch := c.Register(20, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Wait(ctx, 20, ch)
	var derr *dbuserr.Error
	if !errors.As(err, &derr) || derr.Kind != dbuserr.KindCancelled {
		t.Errorf("expected KindCancelled, got %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("expected serial removed from pending map on cancellation, got %d", c.Len())
	}
}

// Package dbuscorrelate matches outbound METHOD_CALL messages with their
// inbound METHOD_RETURN/ERROR reply by serial number, manages per-call
// deadlines, and fails every pending call when the connection is lost.
//
// Grounded directly on the teacher's XID-keyed reply router
// (internal/protocol/nfs/v4/state/backchannel.go PendingCBReplies):
// Register(key) returns a channel the waiter blocks on, Deliver(key, v)
// hands the reply to it, Cancel(key) removes a waiter without delivering.
// Generalized from NFSv4.1 backchannel XIDs to D-Bus reply serials, with
// a deadline attached to each entry.
package dbuscorrelate

import (
	"context"
	"sync"
	"time"

	"github.com/marmos91/godbus/internal/dbuserr"
	"github.com/marmos91/godbus/internal/dbusmsg"
	"github.com/marmos91/godbus/internal/logger"
)

// DefaultTimeout is the default per-call deadline (§4.6).
const DefaultTimeout = 30 * time.Second

// Reply is the outcome of a pending call: exactly one of Return or Err is
// set.
type Reply struct {
	Return *dbusmsg.Message
	Err    error
}

type pendingEntry struct {
	replyCh chan Reply
	timer   *time.Timer
	done    sync.Once
}

// Correlator owns the pending-call map exclusively; no other component
// reads or writes it (§3.8).
type Correlator struct {
	mu      sync.Mutex
	pending map[uint32]*pendingEntry
}

func New() *Correlator {
	return &Correlator{pending: make(map[uint32]*pendingEntry)}
}

// Register admits a METHOD_CALL with the given serial into the pending
// map with deadline timeout, returning a channel that receives exactly
// one Reply. Callers must not register a message carrying
// NO_REPLY_EXPECTED — the Connection core checks that flag before
// calling Register at all, so calls that never expect a reply never
// enter the map (§4.6, §8 Correlator laws).
func (c *Correlator) Register(serial uint32, timeout time.Duration) <-chan Reply {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ch := make(chan Reply, 1)
	entry := &pendingEntry{replyCh: ch}

	c.mu.Lock()
	c.pending[serial] = entry
	c.mu.Unlock()

	entry.timer = time.AfterFunc(timeout, func() {
		c.expire(serial)
	})
	return ch
}

// Cancel removes serial from the pending map without delivering a reply,
// stopping its timer. Used when the outbound write itself fails, or the
// caller cancels the request.
func (c *Correlator) Cancel(serial uint32) {
	c.mu.Lock()
	entry, ok := c.pending[serial]
	if ok {
		delete(c.pending, serial)
	}
	c.mu.Unlock()
	if ok && entry.timer != nil {
		entry.timer.Stop()
	}
}

// Fail delivers err as the outcome for serial and removes it, used for
// write failures (TransportFailure) rather than a silent Cancel.
func (c *Correlator) Fail(serial uint32, err error) {
	c.mu.Lock()
	entry, ok := c.pending[serial]
	if ok {
		delete(c.pending, serial)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	if entry.timer != nil {
		entry.timer.Stop()
	}
	entry.deliver(Reply{Err: err})
}

func (c *Correlator) expire(serial uint32) {
	c.mu.Lock()
	entry, ok := c.pending[serial]
	if ok {
		delete(c.pending, serial)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	entry.deliver(Reply{Err: dbuserr.New(dbuserr.KindCallTimeout, "call timed out")})
}

// Deliver routes an inbound METHOD_RETURN or ERROR to its waiter by
// REPLY_SERIAL. It reports false if no waiter was found — the caller
// (the pipeline) should then treat the message as unroutable and forward
// it onward rather than drop it, since that happens naturally when a call
// already timed out locally (§4.6).
func (c *Correlator) Deliver(replySerial uint32, msg *dbusmsg.Message, remoteErr error) bool {
	c.mu.Lock()
	entry, ok := c.pending[replySerial]
	if ok {
		delete(c.pending, replySerial)
	}
	c.mu.Unlock()
	if !ok {
		logger.Debug("late reply for expired or unknown serial dropped", "reply_serial", replySerial)
		return false
	}
	if entry.timer != nil {
		entry.timer.Stop()
	}
	if remoteErr != nil {
		entry.deliver(Reply{Err: remoteErr})
	} else {
		entry.deliver(Reply{Return: msg})
	}
	return true
}

// FailAll fails every pending call with err (Disconnected on connection
// loss) and clears the map.
func (c *Correlator) FailAll(err error) {
	c.mu.Lock()
	entries := c.pending
	c.pending = make(map[uint32]*pendingEntry)
	c.mu.Unlock()

	for serial, entry := range entries {
		if entry.timer != nil {
			entry.timer.Stop()
		}
		entry.deliver(Reply{Err: err})
		logger.Debug("pending call failed on connection loss", "serial", serial)
	}
}

// Len reports the number of calls currently awaiting a reply.
func (c *Correlator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (e *pendingEntry) deliver(r Reply) {
	e.done.Do(func() {
		e.replyCh <- r
		close(e.replyCh)
	})
}

// Wait blocks on ch until a reply arrives or ctx is cancelled. On
// cancellation it removes serial from the pending map so the server may
// still reply, but the late reply is simply dropped (§5 Cancellation).
func (c *Correlator) Wait(ctx context.Context, serial uint32, ch <-chan Reply) (*dbusmsg.Message, error) {
	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Return, nil
	case <-ctx.Done():
		c.Cancel(serial)
		return nil, dbuserr.New(dbuserr.KindCancelled, "call cancelled")
	}
}

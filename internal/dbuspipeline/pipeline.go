// Package dbuspipeline chains ordered inbound/outbound handlers over a
// message and bridges a single I/O goroutine's blocking reads to a
// bounded pool of handler-worker goroutines.
//
// Grounded on the teacher's NFSConnection.Serve loop
// (pkg/adapter/nfs/connection.go): a semaphore channel bounds concurrent
// request processing, a WaitGroup tracks in-flight work for graceful
// shutdown, and each worker recovers from panics so one bad handler
// cannot take down the dispatcher or the connection it serves.
package dbuspipeline

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/marmos91/godbus/internal/dbusmsg"
	"github.com/marmos91/godbus/internal/logger"
)

// Next invokes the remainder of the chain.
type Next func(ctx context.Context, msg *dbusmsg.Message) error

// Handler is one stage of the pipeline. A handler that only cares about
// one direction should embed BaseHandler and override the other.
type Handler interface {
	Name() string
	HandleInbound(ctx context.Context, msg *dbusmsg.Message, next Next) error
	HandleOutbound(ctx context.Context, msg *dbusmsg.Message, next Next) error
}

// BaseHandler passes both directions straight through.
type BaseHandler struct{}

func (BaseHandler) HandleInbound(ctx context.Context, msg *dbusmsg.Message, next Next) error {
	return next(ctx, msg)
}

func (BaseHandler) HandleOutbound(ctx context.Context, msg *dbusmsg.Message, next Next) error {
	return next(ctx, msg)
}

// Pipeline holds an ordered handler chain. Inbound messages run the
// chain front-to-back; outbound messages run it back-to-front, so a
// handler registered nearest the transport sees inbound messages first
// and outbound messages last (§3.5 handler ordering).
type Pipeline struct {
	handlers []Handler
}

func New(handlers ...Handler) *Pipeline {
	return &Pipeline{handlers: handlers}
}

// DispatchInbound runs msg through the chain, calling terminal once every
// handler has forwarded it.
func (p *Pipeline) DispatchInbound(ctx context.Context, msg *dbusmsg.Message, terminal Next) error {
	return p.build(p.handlers, true, terminal)(ctx, msg)
}

// DispatchOutbound runs msg through the chain in reverse registration
// order, calling terminal once every handler has forwarded it.
func (p *Pipeline) DispatchOutbound(ctx context.Context, msg *dbusmsg.Message, terminal Next) error {
	reversed := make([]Handler, len(p.handlers))
	for i, h := range p.handlers {
		reversed[len(p.handlers)-1-i] = h
	}
	return p.build(reversed, false, terminal)(ctx, msg)
}

func (p *Pipeline) build(chain []Handler, inbound bool, terminal Next) Next {
	next := terminal
	for i := len(chain) - 1; i >= 0; i-- {
		h := chain[i]
		cur := next
		if inbound {
			next = func(ctx context.Context, msg *dbusmsg.Message) error {
				return h.HandleInbound(ctx, msg, cur)
			}
		} else {
			next = func(ctx context.Context, msg *dbusmsg.Message) error {
				return h.HandleOutbound(ctx, msg, cur)
			}
		}
	}
	return next
}

// Dispatcher bridges a single I/O reader goroutine to a bounded pool of
// worker goroutines that each run one inbound message through a
// Pipeline. Concurrency is capped by a semaphore sized at construction;
// Wait blocks until every dispatched message has finished, for graceful
// shutdown.
type Dispatcher struct {
	pipeline *Pipeline
	terminal Next
	sem      chan struct{}
	wg       sync.WaitGroup
}

func NewDispatcher(pipeline *Pipeline, terminal Next, maxConcurrent int) *Dispatcher {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Dispatcher{
		pipeline: pipeline,
		terminal: terminal,
		sem:      make(chan struct{}, maxConcurrent),
	}
}

// Submit blocks until a worker slot is free or ctx is cancelled, then
// runs msg through the pipeline on its own goroutine. Messages submitted
// concurrently may complete out of order; a caller that needs per-path
// ordering for signal delivery must serialize those submissions itself.
func (d *Dispatcher) Submit(ctx context.Context, msg *dbusmsg.Message) {
	select {
	case d.sem <- struct{}{}:
	case <-ctx.Done():
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.release()
		d.runSafely(ctx, msg)
	}()
}

func (d *Dispatcher) release() {
	<-d.sem
	d.wg.Done()
}

func (d *Dispatcher) runSafely(ctx context.Context, msg *dbusmsg.Message) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic in pipeline handler", "error", r, "stack", string(debug.Stack()))
		}
	}()
	if err := d.pipeline.DispatchInbound(ctx, msg, d.terminal); err != nil {
		logger.Debug("pipeline dispatch error", "serial", msg.Serial, "error", err)
	}
}

// Wait blocks until every in-flight dispatch has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

package dbus

import (
	"context"

	"github.com/marmos91/godbus/internal/dbusmsg"
	"github.com/marmos91/godbus/internal/dbuspipeline"
)

// SignalListener receives every inbound SIGNAL message that reaches the
// tail of the pipeline unconsumed (§4.8 Observability — "inbound
// signals forwarded to pipeline").
type SignalListener func(*dbusmsg.Message)

// signalForwarder is the built-in tail handler that fans SIGNAL messages
// out to subscribed listeners before letting the pipeline's terminal
// drop-and-log behavior run.
type signalForwarder struct {
	conn *Connection
}

func (signalForwarder) Name() string { return "dbus.signal-forwarder" }

func (f signalForwarder) HandleInbound(ctx context.Context, msg *dbusmsg.Message, next dbuspipeline.Next) error {
	if msg.Type == dbusmsg.TypeSignal {
		f.conn.dispatchSignal(msg)
	}
	return next(ctx, msg)
}

func (f signalForwarder) HandleOutbound(ctx context.Context, msg *dbusmsg.Message, next dbuspipeline.Next) error {
	return next(ctx, msg)
}

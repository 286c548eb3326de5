// Package dbus is the public surface of the client: addresses,
// transports, and the Connection type that owns a transport, drives the
// SASL handshake and binary framer, allocates serials, correlates
// requests with replies, and runs the health-check/reconnect state
// machine.
//
// Grounded on the teacher's connection-lifecycle shape
// (pkg/adapter/nfs/nfs_connection.go: accept → per-connection ID →
// Serve → graceful close), adapted from a server accepting inbound
// connections to a client dialing out and owning exactly one transport.
package dbus

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/godbus/dbus/peer"
	"github.com/marmos91/godbus/internal/bytesize"
	"github.com/marmos91/godbus/internal/dbuscorrelate"
	"github.com/marmos91/godbus/internal/dbuserr"
	"github.com/marmos91/godbus/internal/dbusframe"
	"github.com/marmos91/godbus/internal/dbushealth"
	"github.com/marmos91/godbus/internal/dbusmsg"
	"github.com/marmos91/godbus/internal/dbuspipeline"
	"github.com/marmos91/godbus/internal/dbussasl"
	"github.com/marmos91/godbus/internal/dbustype"
	"github.com/marmos91/godbus/internal/dbuswire"
	"github.com/marmos91/godbus/internal/logger"
	"github.com/marmos91/godbus/internal/telemetry"
	"github.com/marmos91/godbus/pkg/metrics"
)

var errNoSessionBusAddress = errors.New("dbus: DBUS_SESSION_BUS_ADDRESS is not set and session bus discovery is out of scope")

const (
	busServiceName = "org.freedesktop.DBus"
	busObjectPath  = "/org/freedesktop/DBus"
	busInterface   = "org.freedesktop.DBus"
)

// Connection is one client connection to a D-Bus bus. The zero value is
// not usable; construct with New.
type Connection struct {
	cfg Config

	netMu     sync.RWMutex
	conn      net.Conn
	transport Transport
	reader    *dbusframe.Reader
	writer    *dbusframe.Writer
	writeMu   sync.Mutex
	order     dbuswire.ByteOrder

	serial     serialAllocator
	correlator *dbuscorrelate.Correlator
	health     *dbushealth.Manager

	handlersMu sync.Mutex
	handlers   []dbuspipeline.Handler
	pipeline   *dbuspipeline.Pipeline
	dispatcher *dbuspipeline.Dispatcher

	stateMu    sync.RWMutex
	uniqueName string
	serverGUID string

	signalMu  sync.RWMutex
	signalers []SignalListener

	runCancel context.CancelFunc
	ioWG      sync.WaitGroup
	closeOnce sync.Once

	metrics metrics.Registry
}

// New constructs a Connection. Additional pipeline handlers may be
// registered before Connect via AddHandler; the built-in
// org.freedesktop.DBus.Peer responder and signal-forwarding tail handler
// are always present.
func New(cfg Config) *Connection {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NoOp()
	}
	c := &Connection{
		cfg:        cfg,
		correlator: dbuscorrelate.New(),
		metrics:    cfg.Metrics,
	}
	c.health = dbushealth.NewManager(cfg.Health, c, c)
	c.health.Subscribe(c.recordStateMetric)
	c.handlers = append(c.handlers, peer.New(c, nil))
	return c
}

// recordStateMetric mirrors health-manager events onto the metrics
// registry; it is a dbushealth.Listener.
func (c *Connection) recordStateMetric(ev dbushealth.Event) {
	switch ev.Kind {
	case dbushealth.EventStateChanged:
		c.metrics.SetConnectionState(ev.New.String())
	case dbushealth.EventReconnectAttempt:
		c.metrics.RecordReconnectAttempt(ev.Attempt)
	case dbushealth.EventReconnectionSuccess:
		c.metrics.RecordReconnectOutcome(true)
	case dbushealth.EventReconnectionExhausted:
		c.metrics.RecordReconnectOutcome(false)
	}
}

// AddHandler appends h to the pipeline. Must be called before Connect,
// or while the connection is not actively dispatching (§5
// "shared-resource policy" — the handler list is a setup-time
// resource).
func (c *Connection) AddHandler(h dbuspipeline.Handler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.handlers = append(c.handlers, h)
}

// Subscribe registers l for state-change, health, and reconnect events.
func (c *Connection) Subscribe(l dbushealth.Listener) { c.health.Subscribe(l) }

// SubscribeSignals registers l to receive every inbound SIGNAL message
// that reaches the end of the pipeline.
func (c *Connection) SubscribeSignals(l SignalListener) {
	c.signalMu.Lock()
	defer c.signalMu.Unlock()
	c.signalers = append(c.signalers, l)
}

func (c *Connection) dispatchSignal(msg *dbusmsg.Message) {
	c.signalMu.RLock()
	ls := append([]SignalListener(nil), c.signalers...)
	c.signalMu.RUnlock()
	for _, l := range ls {
		l(msg)
	}
}

// State reports the current connection lifecycle state.
func (c *Connection) State() dbushealth.ConnState { return c.health.State() }

// UniqueName returns the bus-assigned unique name recorded after Hello,
// or "" before the connection completes bring-up.
func (c *Connection) UniqueName() string {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.uniqueName
}

// ServerGUID returns the bus server's GUID recorded at the end of the
// SASL handshake.
func (c *Connection) ServerGUID() string {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.serverGUID
}

// Connect performs the full bring-up sequence: dial, initial NUL, SASL,
// install the binary framer, Hello, then CONNECTED (§4.8 Lifecycle).
func (c *Connection) Connect(ctx context.Context) error {
	return c.bringUp(ctx)
}

func (c *Connection) bringUp(ctx context.Context) error {
	c.health.SetState(dbushealth.StateConnecting)

	addrStr, err := c.cfg.resolveAddresses()
	if err != nil {
		return err
	}
	addrs, err := ParseAddresses(addrStr)
	if err != nil {
		return err
	}

	conn, transport, err := dialAny(ctx, addrs)
	if err != nil {
		c.health.SetState(dbushealth.StateFailed)
		return err
	}

	if transport.NeedsInitialNUL() {
		if _, err := conn.Write([]byte{0}); err != nil {
			conn.Close()
			c.health.SetState(dbushealth.StateFailed)
			return dbuserr.Wrap(dbuserr.KindTransportFailure, "write initial NUL byte", err)
		}
	}

	c.health.SetState(dbushealth.StateAuthenticating)
	handshakeCtx, handshakeSpan := telemetry.StartHandshakeSpan(ctx, mechanismNames(c.cfg.Mechanisms))
	saslClient := dbussasl.NewClient(conn, dbussasl.Options{
		Mechanisms:      c.cfg.Mechanisms,
		NegotiateUnixFD: c.cfg.NegotiateUnixFD,
	})
	res, err := saslClient.Handshake()
	if err != nil {
		telemetry.RecordError(handshakeCtx, err)
		handshakeSpan.End()
		conn.Close()
		c.health.SetState(dbushealth.StateFailed)
		return err
	}
	handshakeSpan.End()

	c.netMu.Lock()
	c.conn = conn
	c.transport = transport
	c.order = dbuswire.NativeByteOrder
	c.reader = dbusframe.NewReader(conn)
	c.writer = dbusframe.NewWriter(conn)
	c.netMu.Unlock()

	c.stateMu.Lock()
	c.serverGUID = res.ServerGUID
	c.stateMu.Unlock()

	c.buildPipeline()

	runCtx, cancel := context.WithCancel(context.Background())
	c.runCancel = cancel
	c.ioWG.Add(1)
	go c.readLoop(runCtx)

	if err := c.sayHello(ctx); err != nil {
		c.health.SetState(dbushealth.StateFailed)
		return err
	}

	logger.Info("connected", "unique_name", c.uniqueName, "server_guid", c.serverGUID,
		"max_message_size", bytesize.ByteSize(dbuswire.MaxMessageBytes))
	c.health.SetState(dbushealth.StateConnected)
	c.ioWG.Add(1)
	go func() {
		defer c.ioWG.Done()
		c.health.RunHealthChecks(runCtx)
	}()
	return nil
}

// buildPipeline assembles the handler chain: the user-registered
// handlers followed by the built-in signal-forwarding tail handler, and
// creates the Dispatcher that bridges the I/O read loop to handler
// workers (§4.5).
func (c *Connection) buildPipeline() {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	chain := append(append([]dbuspipeline.Handler{}, c.handlers...), signalForwarder{conn: c})
	c.pipeline = dbuspipeline.New(chain...)
	c.dispatcher = dbuspipeline.NewDispatcher(c.pipeline, c.dropUnroutedInbound, c.cfg.HandlerPoolSize)
}

func (c *Connection) dropUnroutedInbound(ctx context.Context, msg *dbusmsg.Message) error {
	logger.Debug("message reached pipeline tail unconsumed, dropping", "type", msg.Type.String(), "serial", msg.Serial)
	return nil
}

func (c *Connection) writeToTransport(_ context.Context, msg *dbusmsg.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.writer == nil {
		return dbuserr.New(dbuserr.KindNotConnected, "connection has no transport")
	}
	return c.writer.WriteMessage(msg)
}

func (c *Connection) sayHello(ctx context.Context) error {
	msg := dbusmsg.NewMethodCall(c.order, dbustype.ObjectPath(busObjectPath), busInterface, "Hello", busServiceName)
	// Bypasses SendRequest's Admits() gate: state is still AUTHENTICATING
	// at this point in bringUp, before Hello has told us our unique name.
	reply, err := c.sendRequest(ctx, msg)
	if err != nil {
		return dbuserr.Wrap(dbuserr.KindAuthenticationFailed, "Hello call failed", err)
	}
	if len(reply.Body) != 1 {
		return dbuserr.New(dbuserr.KindMalformedMessage, "Hello reply has unexpected body shape")
	}
	name, ok := reply.Body[0].(dbustype.String)
	if !ok {
		return dbuserr.New(dbuserr.KindMalformedMessage, "Hello reply body is not a string")
	}
	c.stateMu.Lock()
	c.uniqueName = string(name)
	c.stateMu.Unlock()
	logger.Info("connected to bus", "unique_name", string(name))
	return nil
}

// SendRequest allocates a serial, runs msg through the outbound
// pipeline, writes it, and — unless NO_REPLY_EXPECTED is set — awaits
// the correlated reply (§4.6).
func (c *Connection) SendRequest(ctx context.Context, msg *dbusmsg.Message) (*dbusmsg.Message, error) {
	if !c.State().Admits() {
		return nil, dbuserr.New(dbuserr.KindNotConnected, "connection is not in a request-admitting state")
	}
	return c.sendRequest(ctx, msg)
}

// sendRequest is SendRequest's body without the Admits() gate, so
// bringUp's Hello call can use it while state is still AUTHENTICATING.
func (c *Connection) sendRequest(ctx context.Context, msg *dbusmsg.Message) (*dbusmsg.Message, error) {
	msg.Order = c.order
	msg.Serial = c.serial.next()

	ctx, span := telemetry.StartCallSpan(ctx, msg.Serial, msg.Destination, string(msg.Path), msg.Interface, msg.Member)
	defer span.End()
	start := time.Now()
	c.metrics.RecordCallSent(msg.Interface, msg.Member)

	noReply := msg.Flags.NoReplyExpected()
	var replyCh <-chan dbuscorrelate.Reply
	if !noReply {
		timeout := c.cfg.CallTimeout
		if timeout <= 0 {
			timeout = dbuscorrelate.DefaultTimeout
		}
		replyCh = c.correlator.Register(msg.Serial, timeout)
	}

	err := c.pipeline.DispatchOutbound(ctx, msg, c.writeToTransport)
	if err != nil {
		if !noReply {
			c.correlator.Cancel(msg.Serial)
		}
		telemetry.RecordError(ctx, err)
		return nil, err
	}
	if noReply {
		return nil, nil
	}

	reply, err := c.correlator.Wait(ctx, msg.Serial, replyCh)
	errorName := ""
	if err != nil {
		telemetry.RecordError(ctx, err)
		var derr *dbuserr.Error
		if errors.As(err, &derr) {
			if derr.Kind == dbuserr.KindCallTimeout {
				c.metrics.RecordCallTimedOut(msg.Interface, msg.Member)
			}
			if derr.Kind == dbuserr.KindRemoteError {
				errorName = derr.Name
			}
		}
	}
	c.metrics.RecordCallCompleted(msg.Interface, msg.Member, time.Since(start), errorName)
	return reply, err
}

// SendSignal allocates a serial and emits msg with no reply expected
// (§3.5, §4.6 — signals never enter the pending-call map).
func (c *Connection) SendSignal(ctx context.Context, msg *dbusmsg.Message) error {
	if !c.State().Admits() {
		return dbuserr.New(dbuserr.KindNotConnected, "connection is not in a request-admitting state")
	}
	msg.Order = c.order
	msg.Serial = c.serial.next()
	return c.pipeline.DispatchOutbound(ctx, msg, c.writeToTransport)
}

// SendReply implements peer.ReplySender: it answers an inbound
// METHOD_CALL with a METHOD_RETURN carrying values.
func (c *Connection) SendReply(ctx context.Context, replyTo *dbusmsg.Message, values ...dbustype.Value) error {
	reply := dbusmsg.NewMethodReturn(c.order, replyTo.Serial, replyTo.Sender)
	reply.SetBody(values...)
	return c.SendSignal(ctx, reply)
}

// SendErrorReply implements peer.ReplySender: it answers an inbound
// METHOD_CALL with an ERROR.
func (c *Connection) SendErrorReply(ctx context.Context, replyTo *dbusmsg.Message, errorName, message string) error {
	reply := dbusmsg.NewError(c.order, replyTo.Serial, errorName, replyTo.Sender)
	if message != "" {
		str, err := dbustype.NewString(message)
		if err == nil {
			reply.SetBody(str)
		}
	}
	return c.SendSignal(ctx, reply)
}

// Ping implements dbushealth.Pinger via a Peer.Ping round trip to the
// bus daemon itself.
func (c *Connection) Ping(ctx context.Context, timeout time.Duration) error {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	start := time.Now()
	msg := dbusmsg.NewMethodCall(c.order, dbustype.ObjectPath(busObjectPath), "org.freedesktop.DBus.Peer", "Ping", busServiceName)
	_, err := c.SendRequest(cctx, msg)
	if err == nil {
		c.metrics.RecordHealthCheckLatency(time.Since(start))
	}
	return err
}

// Reconnect implements dbushealth.Reconnector: tear down the current
// transport and run bring-up again from scratch.
func (c *Connection) Reconnect(ctx context.Context) error {
	c.teardownTransport(dbuserr.New(dbuserr.KindDisconnected, "reconnecting"))
	return c.bringUp(ctx)
}

func (c *Connection) readLoop(ctx context.Context) {
	defer c.ioWG.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, err := c.reader.ReadMessage()
		if err != nil {
			c.onReadError(err)
			return
		}
		c.routeInbound(ctx, msg)
	}
}

func (c *Connection) routeInbound(ctx context.Context, msg *dbusmsg.Message) {
	switch msg.Type {
	case dbusmsg.TypeMethodReturn:
		if c.correlator.Deliver(msg.ReplySerial, msg, nil) {
			return
		}
	case dbusmsg.TypeError:
		remoteErr := dbuserr.Remote(msg.ErrorName, errorMessageFromBody(msg), msg.Body)
		if c.correlator.Deliver(msg.ReplySerial, nil, remoteErr) {
			return
		}
	}
	c.dispatcher.Submit(ctx, msg)
}

func mechanismNames(mechs []dbussasl.Mechanism) string {
	if len(mechs) == 0 {
		return "default"
	}
	names := make([]string, len(mechs))
	for i, m := range mechs {
		names[i] = m.Name()
	}
	return strings.Join(names, ",")
}

func errorMessageFromBody(msg *dbusmsg.Message) string {
	if len(msg.Body) == 0 {
		return ""
	}
	if s, ok := msg.Body[0].(dbustype.String); ok {
		return string(s)
	}
	return ""
}

func (c *Connection) onReadError(err error) {
	logger.Warn("connection read loop ended", "error", err)
	c.correlator.FailAll(dbuserr.Wrap(dbuserr.KindDisconnected, "connection lost", err))
	if dbuserr.Is(err, dbuserr.KindMalformedMessage) {
		c.health.SetState(dbushealth.StateFailed)
		return
	}
	if c.State() != dbushealth.StateFailed {
		go c.health.TriggerReconnect(context.Background())
	}
}

func (c *Connection) teardownTransport(failWith error) {
	c.netMu.Lock()
	conn := c.conn
	c.conn = nil
	c.netMu.Unlock()
	if c.runCancel != nil {
		c.runCancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	c.ioWG.Wait()
	c.correlator.FailAll(failWith)
}

// Close gracefully shuts the connection down: health checks stop,
// pending calls fail with Disconnected, and the transport is closed.
// Further operations fail with NotConnected (§4.8 Lifecycle).
func (c *Connection) Close() error {
	var closeErr error
	c.closeOnce.Do(func() {
		c.health.Stop()
		c.teardownTransport(dbuserr.New(dbuserr.KindDisconnected, "connection closed"))
		c.health.SetState(dbushealth.StateDisconnected)
		if c.dispatcher != nil {
			c.dispatcher.Wait()
		}
	})
	return closeErr
}

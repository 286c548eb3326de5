package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for dbus operations, following OpenTelemetry semantic
// convention style (dot-separated, lower_snake leaves).
const (
	AttrSerial      = "dbus.serial"
	AttrReplySerial = "dbus.reply_serial"
	AttrMessageType = "dbus.message_type"
	AttrDestination = "dbus.destination"
	AttrSender      = "dbus.sender"
	AttrPath        = "dbus.path"
	AttrInterface   = "dbus.interface"
	AttrMember      = "dbus.member"
	AttrSignature   = "dbus.signature"
	AttrErrorName   = "dbus.error_name"
	AttrMechanism   = "dbus.sasl.mechanism"
	AttrBusAddress  = "dbus.bus_address"
	AttrConnState   = "dbus.connection_state"
	AttrAttempt     = "dbus.reconnect_attempt"
)

// Span names for the operations worth tracing end to end.
const (
	SpanSendRequest = "dbus.send_request"
	SpanHandshake   = "dbus.sasl.handshake"
	SpanReconnect   = "dbus.reconnect"
	SpanDispatch    = "dbus.dispatch"
)

func Serial(serial uint32) attribute.KeyValue {
	return attribute.Int64(AttrSerial, int64(serial))
}

func ReplySerial(serial uint32) attribute.KeyValue {
	return attribute.Int64(AttrReplySerial, int64(serial))
}

func MessageType(t string) attribute.KeyValue {
	return attribute.String(AttrMessageType, t)
}

func Destination(dest string) attribute.KeyValue {
	return attribute.String(AttrDestination, dest)
}

func Sender(sender string) attribute.KeyValue {
	return attribute.String(AttrSender, sender)
}

func Path(path string) attribute.KeyValue {
	return attribute.String(AttrPath, path)
}

func Interface(iface string) attribute.KeyValue {
	return attribute.String(AttrInterface, iface)
}

func Member(member string) attribute.KeyValue {
	return attribute.String(AttrMember, member)
}

func Signature(sig string) attribute.KeyValue {
	return attribute.String(AttrSignature, sig)
}

func ErrorName(name string) attribute.KeyValue {
	return attribute.String(AttrErrorName, name)
}

func Mechanism(name string) attribute.KeyValue {
	return attribute.String(AttrMechanism, name)
}

func BusAddress(addr string) attribute.KeyValue {
	return attribute.String(AttrBusAddress, addr)
}

func ConnState(state string) attribute.KeyValue {
	return attribute.String(AttrConnState, state)
}

func ReconnectAttempt(n int) attribute.KeyValue {
	return attribute.Int(AttrAttempt, n)
}

// StartCallSpan starts a span around SendRequest for a single method
// call, tagged with its routing attributes.
func StartCallSpan(ctx context.Context, serial uint32, destination, path, iface, member string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanSendRequest, trace.WithAttributes(
		Serial(serial), Destination(destination), Path(path), Interface(iface), Member(member),
	))
}

// StartHandshakeSpan starts a span around one SASL mechanism attempt.
func StartHandshakeSpan(ctx context.Context, mechanism string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanHandshake, trace.WithAttributes(Mechanism(mechanism)))
}

// StartReconnectSpan starts a span around one reconnect attempt.
func StartReconnectSpan(ctx context.Context, attempt int) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanReconnect, trace.WithAttributes(ReconnectAttempt(attempt)))
}

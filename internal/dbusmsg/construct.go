package dbusmsg

import (
	"github.com/marmos91/godbus/internal/dbustype"
	"github.com/marmos91/godbus/internal/dbuswire"
)

// NewMethodCall builds a METHOD_CALL message body/signature pair is left
// to the caller via SetBody, since the signature is derived from the
// actual argument values at send time.
func NewMethodCall(order dbuswire.ByteOrder, path dbustype.ObjectPath, iface, member, destination string) *Message {
	m := &Message{
		Order:       order,
		Type:        TypeMethodCall,
		Path:        path,
		Interface:   iface,
		Member:      member,
		Destination: destination,
	}
	return m
}

func NewMethodReturn(order dbuswire.ByteOrder, replySerial uint32, destination string) *Message {
	return &Message{
		Order:       order,
		Type:        TypeMethodReturn,
		ReplySerial: replySerial,
		Destination: destination,
	}
}

func NewError(order dbuswire.ByteOrder, replySerial uint32, errorName, destination string) *Message {
	return &Message{
		Order:       order,
		Type:        TypeError,
		ReplySerial: replySerial,
		ErrorName:   errorName,
		Destination: destination,
	}
}

func NewSignal(order dbuswire.ByteOrder, path dbustype.ObjectPath, iface, member string) *Message {
	return &Message{
		Order:     order,
		Type:      TypeSignal,
		Path:      path,
		Interface: iface,
		Member:    member,
	}
}

// SetBody attaches a body and derives the SIGNATURE header field from the
// values' own types.
func (m *Message) SetBody(values ...dbustype.Value) {
	m.Body = values
	sig := make(dbustype.Signature, len(values))
	for i, v := range values {
		sig[i] = v.Type()
	}
	m.Signature = sig
}

// Package dbuswire is the alignment-aware marshal/unmarshal layer: given a
// byte order and a dbustype.Value, it produces or consumes the exact wire
// bytes the D-Bus protocol specifies, with no knowledge of message framing.
package dbuswire

import (
	"bytes"
	"fmt"
	"math"

	"github.com/marmos91/godbus/internal/dbuserr"
	"github.com/marmos91/godbus/internal/dbustype"
)

// Encoder accumulates the wire bytes for one logical sub-stream (a
// message header, or a message body). Each Encoder starts at logical
// offset 0; alignment is always relative to that start, never to an
// outer stream, per the wire contract.
type Encoder struct {
	buf   bytes.Buffer
	order ByteOrder
}

func NewEncoder(order ByteOrder) *Encoder {
	return &Encoder{order: order}
}

func (e *Encoder) Offset() int   { return e.buf.Len() }
func (e *Encoder) Bytes() []byte { return e.buf.Bytes() }

func (e *Encoder) align(n int) {
	if n <= 1 {
		return
	}
	pad := (n - (e.buf.Len() % n)) % n
	for i := 0; i < pad; i++ {
		e.buf.WriteByte(0)
	}
}

// PadTo8 aligns the stream to an 8-byte boundary — used once, between the
// header field array and the message body.
func (e *Encoder) PadTo8() { e.align(8) }

func (e *Encoder) writeUint16(v uint16) {
	var b [2]byte
	e.order.binary().PutUint16(b[:], v)
	e.buf.Write(b[:])
}

func (e *Encoder) writeUint32(v uint32) {
	var b [4]byte
	e.order.binary().PutUint32(b[:], v)
	e.buf.Write(b[:])
}

func (e *Encoder) writeUint64(v uint64) {
	var b [8]byte
	e.order.binary().PutUint64(b[:], v)
	e.buf.Write(b[:])
}

// WriteValue encodes v, performing its alignment padding first.
func (e *Encoder) WriteValue(v dbustype.Value) error {
	switch x := v.(type) {
	case dbustype.Byte:
		e.buf.WriteByte(byte(x))
	case dbustype.Boolean:
		e.align(4)
		if x {
			e.writeUint32(1)
		} else {
			e.writeUint32(0)
		}
	case dbustype.Int16:
		e.align(2)
		e.writeUint16(uint16(x))
	case dbustype.Uint16:
		e.align(2)
		e.writeUint16(uint16(x))
	case dbustype.Int32:
		e.align(4)
		e.writeUint32(uint32(x))
	case dbustype.Uint32:
		e.align(4)
		e.writeUint32(uint32(x))
	case dbustype.Int64:
		e.align(8)
		e.writeUint64(uint64(x))
	case dbustype.Uint64:
		e.align(8)
		e.writeUint64(uint64(x))
	case dbustype.Double:
		e.align(8)
		e.writeUint64(math.Float64bits(float64(x)))
	case dbustype.UnixFD:
		e.align(4)
		e.writeUint32(uint32(x))
	case dbustype.String:
		if err := e.writeLengthPrefixedString(string(x)); err != nil {
			return err
		}
	case dbustype.ObjectPath:
		if err := e.writeLengthPrefixedString(string(x)); err != nil {
			return err
		}
	case dbustype.SignatureValue:
		e.writeSignatureBytes(string(x))
	case dbustype.Array:
		return e.writeArray(x)
	case dbustype.Struct:
		return e.writeStruct(x)
	case dbustype.DictEntry:
		return e.writeDictEntry(x)
	case dbustype.Variant:
		return e.writeVariant(x)
	default:
		return dbuserr.New(dbuserr.KindInvalidData, fmt.Sprintf("unsupported value type %T", v))
	}
	return nil
}

func (e *Encoder) writeLengthPrefixedString(s string) error {
	e.align(4)
	e.writeUint32(uint32(len(s)))
	e.buf.WriteString(s)
	e.buf.WriteByte(0)
	return nil
}

func (e *Encoder) writeSignatureBytes(s string) {
	e.buf.WriteByte(byte(len(s)))
	e.buf.WriteString(s)
	e.buf.WriteByte(0)
}

func (e *Encoder) writeArray(a dbustype.Array) error {
	e.align(4)
	lenPos := e.buf.Len()
	e.writeUint32(0) // patched below

	elemAlign := 4
	if a.Elem != nil {
		elemAlign = a.Elem.Align()
	}
	e.align(elemAlign)
	start := e.buf.Len()

	for _, item := range a.Items {
		if err := e.WriteValue(item); err != nil {
			return err
		}
	}

	n := e.buf.Len() - start
	if n > maxArrayBytes {
		return dbuserr.New(dbuserr.KindMalformedMessage, fmt.Sprintf("array body %d bytes exceeds %d", n, maxArrayBytes))
	}

	b := e.buf.Bytes()
	e.order.binary().PutUint32(b[lenPos:lenPos+4], uint32(n))
	return nil
}

func (e *Encoder) writeStruct(s dbustype.Struct) error {
	e.align(8)
	for _, f := range s.Fields {
		if err := e.WriteValue(f); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) writeDictEntry(d dbustype.DictEntry) error {
	e.align(8)
	if err := e.WriteValue(d.Key); err != nil {
		return err
	}
	return e.WriteValue(d.Val)
}

func (e *Encoder) writeVariant(v dbustype.Variant) error {
	sig := v.Signature().String()
	if len(sig) > maxSignatureBytes {
		return dbuserr.New(dbuserr.KindInvalidSignature, "variant signature too long")
	}
	e.writeSignatureBytes(sig)
	e.align(v.Inner.Type().Align())
	return e.WriteValue(v.Inner)
}

// Package dbusmsg is the message layer: the four message kinds, their
// header-field array, and the encode/decode glue between a Message and
// the dbuswire codec. Framing (splitting a byte stream into whole
// messages) lives one layer up, in dbusframe.
package dbusmsg

import (
	"fmt"

	"github.com/marmos91/godbus/internal/dbuserr"
	"github.com/marmos91/godbus/internal/dbustype"
	"github.com/marmos91/godbus/internal/dbuswire"
)

// Type is the message kind. There is one tagged union, Message, rather
// than a MethodCall/MethodReturn/Error/Signal type hierarchy; callers
// switch on Type.
type Type byte

const (
	TypeInvalid      Type = 0
	TypeMethodCall   Type = 1
	TypeMethodReturn Type = 2
	TypeError        Type = 3
	TypeSignal       Type = 4
)

func (t Type) String() string {
	switch t {
	case TypeMethodCall:
		return "METHOD_CALL"
	case TypeMethodReturn:
		return "METHOD_RETURN"
	case TypeError:
		return "ERROR"
	case TypeSignal:
		return "SIGNAL"
	default:
		return "INVALID"
	}
}

type Flags byte

const (
	FlagNoReplyExpected               Flags = 1 << 0
	FlagNoAutoStart                   Flags = 1 << 1
	FlagAllowInteractiveAuthorization Flags = 1 << 2
)

func (f Flags) NoReplyExpected() bool { return f&FlagNoReplyExpected != 0 }

// HeaderFieldCode identifies an entry in the header field array.
type HeaderFieldCode byte

const (
	FieldPath        HeaderFieldCode = 1
	FieldInterface    HeaderFieldCode = 2
	FieldMember       HeaderFieldCode = 3
	FieldErrorName    HeaderFieldCode = 4
	FieldReplySerial  HeaderFieldCode = 5
	FieldDestination  HeaderFieldCode = 6
	FieldSender       HeaderFieldCode = 7
	FieldSignature    HeaderFieldCode = 8
	FieldUnixFDs      HeaderFieldCode = 9
)

const ProtocolVersion = 1

// Message is every D-Bus message: the shared header fields plus a Type
// tag that determines which of the type-specific fields are meaningful
// and required.
type Message struct {
	Order  dbuswire.ByteOrder
	Type   Type
	Flags  Flags
	Serial uint32

	Path        dbustype.ObjectPath
	Interface   string
	Member      string
	ErrorName   string
	ReplySerial uint32
	Destination string
	Sender      string
	UnixFDs     uint32

	Signature dbustype.Signature
	Body      []dbustype.Value
}

// RequiredFields validates that m carries the header fields its Type
// mandates, per the wire contract.
func (m *Message) RequiredFields() error {
	switch m.Type {
	case TypeMethodCall:
		if m.Path == "" {
			return dbuserr.New(dbuserr.KindInvalidPath, "METHOD_CALL requires PATH")
		}
		if m.Member == "" {
			return dbuserr.New(dbuserr.KindInvalidMember, "METHOD_CALL requires MEMBER")
		}
	case TypeMethodReturn:
		if m.ReplySerial == 0 {
			return dbuserr.New(dbuserr.KindMalformedMessage, "METHOD_RETURN requires REPLY_SERIAL")
		}
	case TypeError:
		if m.ErrorName == "" {
			return dbuserr.New(dbuserr.KindMalformedMessage, "ERROR requires ERROR_NAME")
		}
		if m.ReplySerial == 0 {
			return dbuserr.New(dbuserr.KindMalformedMessage, "ERROR requires REPLY_SERIAL")
		}
	case TypeSignal:
		if m.Path == "" {
			return dbuserr.New(dbuserr.KindInvalidPath, "SIGNAL requires PATH")
		}
		if m.Interface == "" {
			return dbuserr.New(dbuserr.KindInvalidInterface, "SIGNAL requires INTERFACE")
		}
		if m.Member == "" {
			return dbuserr.New(dbuserr.KindInvalidMember, "SIGNAL requires MEMBER")
		}
	default:
		return dbuserr.New(dbuserr.KindMalformedMessage, fmt.Sprintf("unknown message type %d", m.Type))
	}
	if len(m.Body) > 0 && len(m.Signature) == 0 {
		return dbuserr.New(dbuserr.KindMalformedMessage, "non-empty body requires SIGNATURE")
	}
	return nil
}

// Encode produces the full wire frame for m: the 12-byte prefix, the
// header field array padded to 8 bytes, then the body.
func (m *Message) Encode() ([]byte, error) {
	if m.Serial == 0 {
		return nil, dbuserr.New(dbuserr.KindMalformedMessage, "serial must be nonzero")
	}
	if err := m.RequiredFields(); err != nil {
		return nil, err
	}

	body := dbuswire.NewEncoder(m.Order)
	for _, v := range m.Body {
		if err := body.WriteValue(v); err != nil {
			return nil, err
		}
	}
	bodyBytes := body.Bytes()

	hdr := dbuswire.NewEncoder(m.Order)
	hdr.WriteValue(dbustype.Byte(m.Order))
	hdr.WriteValue(dbustype.Byte(m.Type))
	hdr.WriteValue(dbustype.Byte(m.Flags))
	hdr.WriteValue(dbustype.Byte(ProtocolVersion))
	if err := hdr.WriteValue(dbustype.Uint32(len(bodyBytes))); err != nil {
		return nil, err
	}
	if err := hdr.WriteValue(dbustype.Uint32(m.Serial)); err != nil {
		return nil, err
	}

	fields := m.buildHeaderFields()
	arr := dbustype.Array{Elem: dbustype.StructOf(dbustype.Basic(dbustype.KindByte), dbustype.VariantType()), Items: fields}
	if err := hdr.WriteValue(arr); err != nil {
		return nil, err
	}
	hdr.PadTo8()

	out := make([]byte, 0, hdr.Offset()+len(bodyBytes))
	out = append(out, hdr.Bytes()...)
	out = append(out, bodyBytes...)
	return out, nil
}

func (m *Message) buildHeaderFields() []dbustype.Value {
	var fields []dbustype.Value
	add := func(code HeaderFieldCode, v dbustype.Value) {
		fields = append(fields, dbustype.Struct{Fields: []dbustype.Value{
			dbustype.Byte(code),
			dbustype.Variant{Inner: v},
		}})
	}
	if m.Path != "" {
		add(FieldPath, m.Path)
	}
	if m.Interface != "" {
		add(FieldInterface, dbustype.String(m.Interface))
	}
	if m.Member != "" {
		add(FieldMember, dbustype.String(m.Member))
	}
	if m.ErrorName != "" {
		add(FieldErrorName, dbustype.String(m.ErrorName))
	}
	if m.ReplySerial != 0 {
		add(FieldReplySerial, dbustype.Uint32(m.ReplySerial))
	}
	if m.Destination != "" {
		add(FieldDestination, dbustype.String(m.Destination))
	}
	if m.Sender != "" {
		add(FieldSender, dbustype.String(m.Sender))
	}
	if len(m.Signature) > 0 {
		add(FieldSignature, dbustype.SignatureValue(m.Signature.String()))
	}
	if m.UnixFDs != 0 {
		add(FieldUnixFDs, dbustype.Uint32(m.UnixFDs))
	}
	return fields
}

// headerFieldArrayType is the ARRAY of STRUCT{BYTE, VARIANT} type used to
// decode the header field array without requiring the caller to already
// know the message's own signature.
var headerFieldArrayType = dbustype.ArrayOf(dbustype.StructOf(dbustype.Basic(dbustype.KindByte), dbustype.VariantType()))

// DecodeHeader parses the 12-byte prefix and the header field array from
// buf, returning the partially populated Message and the offset at which
// the body begins (always a multiple of 8). It does not decode the body;
// callers decode the body once they know its declared length and the
// message's SIGNATURE field.
func DecodeHeader(buf []byte) (*Message, int, error) {
	if len(buf) < dbuswire.HeaderPrefixLength {
		return nil, 0, dbuserr.New(dbuserr.KindMalformedMessage, "truncated header prefix")
	}
	order, err := dbuswire.ParseByteOrder(buf[0])
	if err != nil {
		return nil, 0, err
	}
	d := dbuswire.NewDecoder(buf, order)

	if _, err := d.ReadValue(dbustype.Basic(dbustype.KindByte)); err != nil {
		return nil, 0, err
	}
	typByte, err := d.ReadValue(dbustype.Basic(dbustype.KindByte))
	if err != nil {
		return nil, 0, err
	}
	flagsByte, err := d.ReadValue(dbustype.Basic(dbustype.KindByte))
	if err != nil {
		return nil, 0, err
	}
	verByte, err := d.ReadValue(dbustype.Basic(dbustype.KindByte))
	if err != nil {
		return nil, 0, err
	}
	if byte(verByte.(dbustype.Byte)) != ProtocolVersion {
		return nil, 0, dbuserr.New(dbuserr.KindMalformedMessage, "unsupported protocol version")
	}
	bodyLenV, err := d.ReadValue(dbustype.Basic(dbustype.KindUint32))
	if err != nil {
		return nil, 0, err
	}
	serialV, err := d.ReadValue(dbustype.Basic(dbustype.KindUint32))
	if err != nil {
		return nil, 0, err
	}
	bodyLen := uint32(bodyLenV.(dbustype.Uint32))

	fieldsV, err := d.ReadValue(headerFieldArrayType)
	if err != nil {
		return nil, 0, err
	}
	if err := d.PadTo8(); err != nil {
		return nil, 0, err
	}

	m := &Message{
		Order:  order,
		Type:   Type(byte(typByte.(dbustype.Byte))),
		Flags:  Flags(byte(flagsByte.(dbustype.Byte))),
		Serial: uint32(serialV.(dbustype.Uint32)),
	}
	if m.Serial == 0 {
		return nil, 0, dbuserr.New(dbuserr.KindMalformedMessage, "serial must be nonzero")
	}

	if err := m.applyHeaderFields(fieldsV.(dbustype.Array)); err != nil {
		return nil, 0, err
	}

	bodyStart := d.Offset()
	if bodyStart+int(bodyLen) > dbuswire.MaxMessageBytes {
		return nil, 0, dbuserr.New(dbuserr.KindMalformedMessage, "message length exceeds limit")
	}
	return m, bodyStart, nil
}

func (m *Message) applyHeaderFields(arr dbustype.Array) error {
	for _, item := range arr.Items {
		s, ok := item.(dbustype.Struct)
		if !ok || len(s.Fields) != 2 {
			return dbuserr.New(dbuserr.KindMalformedMessage, "malformed header field entry")
		}
		codeV, ok := s.Fields[0].(dbustype.Byte)
		if !ok {
			return dbuserr.New(dbuserr.KindMalformedMessage, "header field code must be BYTE")
		}
		variant, ok := s.Fields[1].(dbustype.Variant)
		if !ok {
			return dbuserr.New(dbuserr.KindMalformedMessage, "header field value must be VARIANT")
		}
		switch HeaderFieldCode(codeV) {
		case FieldPath:
			op, ok := variant.Inner.(dbustype.ObjectPath)
			if !ok {
				return dbuserr.New(dbuserr.KindMalformedMessage, "PATH field must be OBJECT_PATH")
			}
			m.Path = op
		case FieldInterface:
			s, ok := variant.Inner.(dbustype.String)
			if !ok {
				return dbuserr.New(dbuserr.KindMalformedMessage, "INTERFACE field must be STRING")
			}
			m.Interface = string(s)
		case FieldMember:
			s, ok := variant.Inner.(dbustype.String)
			if !ok {
				return dbuserr.New(dbuserr.KindMalformedMessage, "MEMBER field must be STRING")
			}
			m.Member = string(s)
		case FieldErrorName:
			s, ok := variant.Inner.(dbustype.String)
			if !ok {
				return dbuserr.New(dbuserr.KindMalformedMessage, "ERROR_NAME field must be STRING")
			}
			m.ErrorName = string(s)
		case FieldReplySerial:
			u, ok := variant.Inner.(dbustype.Uint32)
			if !ok {
				return dbuserr.New(dbuserr.KindMalformedMessage, "REPLY_SERIAL field must be UINT32")
			}
			m.ReplySerial = uint32(u)
		case FieldDestination:
			s, ok := variant.Inner.(dbustype.String)
			if !ok {
				return dbuserr.New(dbuserr.KindMalformedMessage, "DESTINATION field must be STRING")
			}
			m.Destination = string(s)
		case FieldSender:
			s, ok := variant.Inner.(dbustype.String)
			if !ok {
				return dbuserr.New(dbuserr.KindMalformedMessage, "SENDER field must be STRING")
			}
			m.Sender = string(s)
		case FieldSignature:
			sv, ok := variant.Inner.(dbustype.SignatureValue)
			if !ok {
				return dbuserr.New(dbuserr.KindMalformedMessage, "SIGNATURE field must be SIGNATURE")
			}
			sig, err := dbustype.ParseSignature(string(sv))
			if err != nil {
				return err
			}
			m.Signature = sig
		case FieldUnixFDs:
			u, ok := variant.Inner.(dbustype.Uint32)
			if !ok {
				return dbuserr.New(dbuserr.KindMalformedMessage, "UNIX_FDS field must be UINT32")
			}
			m.UnixFDs = uint32(u)
		}
	}
	return nil
}

// DecodeBody decodes the message body given the already-parsed Signature
// field, starting at bodyStart within the full frame buf.
func DecodeBody(m *Message, buf []byte, bodyStart int) error {
	if len(m.Signature) == 0 {
		return nil
	}
	d := dbuswire.NewDecoder(buf[bodyStart:], m.Order)
	body := make([]dbustype.Value, 0, len(m.Signature))
	for _, t := range m.Signature {
		v, err := d.ReadValue(t)
		if err != nil {
			return err
		}
		body = append(body, v)
	}
	m.Body = body
	return nil
}

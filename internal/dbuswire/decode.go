package dbuswire

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/marmos91/godbus/internal/dbuserr"
	"github.com/marmos91/godbus/internal/dbustype"
)

// Decoder consumes one logical sub-stream, mirroring Encoder: alignment is
// always relative to the start of this Decoder, and any malformed prefix
// fails fast with a MalformedMessage error rather than returning partial
// data.
type Decoder struct {
	buf   []byte
	pos   int
	order ByteOrder
}

func NewDecoder(buf []byte, order ByteOrder) *Decoder {
	return &Decoder{buf: buf, order: order}
}

func (d *Decoder) Offset() int    { return d.pos }
func (d *Decoder) Remaining() int { return len(d.buf) - d.pos }

func (d *Decoder) align(n int) error {
	if n <= 1 {
		return nil
	}
	pad := (n - (d.pos % n)) % n
	if d.pos+pad > len(d.buf) {
		return dbuserr.New(dbuserr.KindMalformedMessage, "truncated padding")
	}
	for i := 0; i < pad; i++ {
		if d.buf[d.pos] != 0 {
			return dbuserr.New(dbuserr.KindMalformedMessage, "non-zero alignment padding")
		}
		d.pos++
	}
	return nil
}

// PadTo8 aligns to an 8-byte boundary, validating padding bytes are zero.
func (d *Decoder) PadTo8() error { return d.align(8) }

func (d *Decoder) need(n int) error {
	if d.pos+n > len(d.buf) {
		return dbuserr.New(dbuserr.KindMalformedMessage, fmt.Sprintf("need %d bytes, have %d", n, d.Remaining()))
	}
	return nil
}

func (d *Decoder) readByte() (byte, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	b := d.buf[d.pos]
	d.pos++
	return b, nil
}

func (d *Decoder) readUint16() (uint16, error) {
	if err := d.align(2); err != nil {
		return 0, err
	}
	if err := d.need(2); err != nil {
		return 0, err
	}
	v := d.order.binary().Uint16(d.buf[d.pos:])
	d.pos += 2
	return v, nil
}

func (d *Decoder) readUint32() (uint32, error) {
	if err := d.align(4); err != nil {
		return 0, err
	}
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := d.order.binary().Uint32(d.buf[d.pos:])
	d.pos += 4
	return v, nil
}

func (d *Decoder) readUint64() (uint64, error) {
	if err := d.align(8); err != nil {
		return 0, err
	}
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := d.order.binary().Uint64(d.buf[d.pos:])
	d.pos += 8
	return v, nil
}

// ReadUint32 exposes the aligned uint32 reader for header-prefix parsing
// that happens outside of a typed ReadValue call (e.g. the framer).
func (d *Decoder) ReadUint32() (uint32, error) { return d.readUint32() }

func (d *Decoder) readString() (string, error) {
	n, err := d.readUint32()
	if err != nil {
		return "", err
	}
	if n > maxStringLength {
		return "", dbuserr.New(dbuserr.KindMalformedMessage, "string length exceeds limit")
	}
	if err := d.need(int(n) + 1); err != nil {
		return "", err
	}
	s := string(d.buf[d.pos : d.pos+int(n)])
	d.pos += int(n)
	if d.buf[d.pos] != 0 {
		return "", dbuserr.New(dbuserr.KindMalformedMessage, "string missing trailing NUL")
	}
	d.pos++
	if !utf8.ValidString(s) {
		return "", dbuserr.New(dbuserr.KindInvalidData, "string is not valid UTF-8")
	}
	return s, nil
}

func (d *Decoder) readSignatureBytes() (string, error) {
	n, err := d.readByte()
	if err != nil {
		return "", err
	}
	if err := d.need(int(n) + 1); err != nil {
		return "", err
	}
	s := string(d.buf[d.pos : d.pos+int(n)])
	d.pos += int(n)
	if d.buf[d.pos] != 0 {
		return "", dbuserr.New(dbuserr.KindMalformedMessage, "signature missing trailing NUL")
	}
	d.pos++
	return s, nil
}

// ReadValue decodes one value of the expected type t.
func (d *Decoder) ReadValue(t *dbustype.Type) (dbustype.Value, error) {
	switch t.Kind {
	case dbustype.KindByte:
		b, err := d.readByte()
		return dbustype.Byte(b), err
	case dbustype.KindBoolean:
		v, err := d.readUint32()
		if err != nil {
			return nil, err
		}
		switch v {
		case 0:
			return dbustype.Boolean(false), nil
		case 1:
			return dbustype.Boolean(true), nil
		default:
			return nil, dbuserr.New(dbuserr.KindInvalidData, "boolean wire value is not 0 or 1")
		}
	case dbustype.KindInt16:
		v, err := d.readUint16()
		return dbustype.Int16(int16(v)), err
	case dbustype.KindUint16:
		v, err := d.readUint16()
		return dbustype.Uint16(v), err
	case dbustype.KindInt32:
		v, err := d.readUint32()
		return dbustype.Int32(int32(v)), err
	case dbustype.KindUint32:
		v, err := d.readUint32()
		return dbustype.Uint32(v), err
	case dbustype.KindInt64:
		v, err := d.readUint64()
		return dbustype.Int64(int64(v)), err
	case dbustype.KindUint64:
		v, err := d.readUint64()
		return dbustype.Uint64(v), err
	case dbustype.KindDouble:
		v, err := d.readUint64()
		return dbustype.Double(math.Float64frombits(v)), err
	case dbustype.KindUnixFD:
		v, err := d.readUint32()
		return dbustype.UnixFD(v), err
	case dbustype.KindString:
		s, err := d.readString()
		return dbustype.String(s), err
	case dbustype.KindObjectPath:
		s, err := d.readString()
		if err != nil {
			return nil, err
		}
		if err := dbustype.ValidateObjectPath(s); err != nil {
			return nil, err
		}
		return dbustype.ObjectPath(s), nil
	case dbustype.KindSignature:
		s, err := d.readSignatureBytes()
		return dbustype.SignatureValue(s), err
	case dbustype.KindArray:
		return d.readArray(t)
	case dbustype.KindStruct:
		return d.readStruct(t)
	case dbustype.KindDictEntry:
		return d.readDictEntry(t)
	case dbustype.KindVariant:
		return d.readVariant()
	default:
		return nil, dbuserr.New(dbuserr.KindMalformedMessage, fmt.Sprintf("unsupported type kind %q", byte(t.Kind)))
	}
}

func (d *Decoder) readArray(t *dbustype.Type) (dbustype.Value, error) {
	n, err := d.readUint32()
	if err != nil {
		return nil, err
	}
	if n > maxArrayBytes {
		return nil, dbuserr.New(dbuserr.KindMalformedMessage, fmt.Sprintf("array declared length %d exceeds %d", n, maxArrayBytes))
	}
	if err := d.align(t.Elem.Align()); err != nil {
		return nil, err
	}
	end := d.pos + int(n)
	if end > len(d.buf) {
		return nil, dbuserr.New(dbuserr.KindMalformedMessage, "array body exceeds available bytes")
	}
	var items []dbustype.Value
	for d.pos < end {
		v, err := d.ReadValue(t.Elem)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	if d.pos != end {
		return nil, dbuserr.New(dbuserr.KindMalformedMessage, "array element did not consume exactly its declared length")
	}
	return dbustype.Array{Elem: t.Elem, Items: items}, nil
}

func (d *Decoder) readStruct(t *dbustype.Type) (dbustype.Value, error) {
	if err := d.align(8); err != nil {
		return nil, err
	}
	fields := make([]dbustype.Value, len(t.Fields))
	for i, ft := range t.Fields {
		v, err := d.ReadValue(ft)
		if err != nil {
			return nil, err
		}
		fields[i] = v
	}
	return dbustype.Struct{Fields: fields}, nil
}

func (d *Decoder) readDictEntry(t *dbustype.Type) (dbustype.Value, error) {
	if err := d.align(8); err != nil {
		return nil, err
	}
	key, err := d.ReadValue(t.Key)
	if err != nil {
		return nil, err
	}
	val, err := d.ReadValue(t.Val)
	if err != nil {
		return nil, err
	}
	return dbustype.DictEntry{Key: key, Val: val}, nil
}

func (d *Decoder) readVariant() (dbustype.Value, error) {
	sigStr, err := d.readSignatureBytes()
	if err != nil {
		return nil, err
	}
	sig, err := dbustype.ParseSignature(sigStr)
	if err != nil {
		return nil, err
	}
	if len(sig) != 1 {
		return nil, dbuserr.New(dbuserr.KindMalformedMessage, "variant signature must contain exactly one complete type")
	}
	if err := d.align(sig[0].Align()); err != nil {
		return nil, err
	}
	inner, err := d.ReadValue(sig[0])
	if err != nil {
		return nil, err
	}
	return dbustype.Variant{Inner: inner}, nil
}

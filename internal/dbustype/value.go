package dbustype

import (
	"unicode/utf8"

	"github.com/marmos91/godbus/internal/dbuserr"
)

// Value is any D-Bus value, basic or container. Concrete types below
// implement it; the codec type-switches on the concrete type rather than
// walking a generic tree, so encode/decode stay allocation-light.
type Value interface {
	Type() *Type
}

type (
	Byte       byte
	Boolean    bool
	Int16      int16
	Uint16     uint16
	Int32      int32
	Uint32     uint32
	Int64      int64
	Uint64     uint64
	Double     float64
	String     string
	ObjectPath string
	UnixFD     uint32
)

func (Byte) Type() *Type       { return Basic(KindByte) }
func (Boolean) Type() *Type    { return Basic(KindBoolean) }
func (Int16) Type() *Type      { return Basic(KindInt16) }
func (Uint16) Type() *Type     { return Basic(KindUint16) }
func (Int32) Type() *Type      { return Basic(KindInt32) }
func (Uint32) Type() *Type     { return Basic(KindUint32) }
func (Int64) Type() *Type      { return Basic(KindInt64) }
func (Uint64) Type() *Type     { return Basic(KindUint64) }
func (Double) Type() *Type     { return Basic(KindDouble) }
func (String) Type() *Type     { return Basic(KindString) }
func (ObjectPath) Type() *Type { return Basic(KindObjectPath) }
func (UnixFD) Type() *Type     { return Basic(KindUnixFD) }

// SignatureValue is the SIGNATURE basic type's own value — a signature
// carried as data (e.g. the header SIGNATURE field, or NEGOTIATE_UNIX_FD
// introspection payloads). Distinct from Signature, the parsed AST.
type SignatureValue string

func (SignatureValue) Type() *Type { return Basic(KindSignature) }

// Array is a homogeneous sequence of values of the same element type.
type Array struct {
	Elem  *Type
	Items []Value
}

func (a Array) Type() *Type { return ArrayOf(a.Elem) }

// NewString validates UTF-8 with no embedded NUL, per the wire contract.
func NewString(s string) (String, error) {
	if err := validateStringBytes(s); err != nil {
		return "", err
	}
	return String(s), nil
}

// NewObjectPath validates the absolute path grammar: "/" or one or more
// "/segment" components where segment matches [A-Za-z0-9_]+.
func NewObjectPath(p string) (ObjectPath, error) {
	if err := ValidateObjectPath(p); err != nil {
		return "", err
	}
	return ObjectPath(p), nil
}

func validateStringBytes(s string) error {
	if !utf8.ValidString(s) {
		return dbuserr.New(dbuserr.KindInvalidData, "string is not valid UTF-8")
	}
	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			return dbuserr.New(dbuserr.KindInvalidData, "string contains embedded NUL")
		}
	}
	return nil
}

// Struct is an ordered, non-empty tuple of heterogeneous fields, each
// laid out at its own alignment.
type Struct struct {
	Fields []Value
}

func (s Struct) Type() *Type {
	ts := make([]*Type, len(s.Fields))
	for i, f := range s.Fields {
		ts[i] = f.Type()
	}
	return StructOf(ts...)
}

// DictEntry is a (key, value) pair. It is only ever meaningful as the
// element of an Array whose Elem is a DICT_ENTRY type.
type DictEntry struct {
	Key Value
	Val Value
}

func (d DictEntry) Type() *Type { return DictEntryOf(d.Key.Type(), d.Val.Type()) }

// Variant is a self-describing value: its own signature travels with it
// on the wire so a decoder needs no external schema to read it back.
type Variant struct {
	Inner Value
}

func (Variant) Type() *Type { return VariantType() }

// Signature returns the single complete type signature of the variant's
// inner value, as written on the wire immediately before it.
func (v Variant) Signature() *Type { return v.Inner.Type() }

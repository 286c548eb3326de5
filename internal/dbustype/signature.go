// Package dbustype implements the D-Bus type system: the signature
// language, its recursive-descent parser, and the tagged Value
// representation that the codec marshals and unmarshals.
package dbustype

import (
	"fmt"
	"strings"

	"github.com/marmos91/godbus/internal/dbuserr"
)

// Kind identifies a single complete type's outermost shape. For basic
// types Kind is the D-Bus signature byte itself; containers get their
// own reserved values since '(' / '{' open a bracketed run rather than
// standing for a single byte type code.
type Kind byte

const (
	KindByte       Kind = 'y'
	KindBoolean    Kind = 'b'
	KindInt16      Kind = 'n'
	KindUint16     Kind = 'q'
	KindInt32      Kind = 'i'
	KindUint32     Kind = 'u'
	KindInt64      Kind = 'x'
	KindUint64     Kind = 't'
	KindDouble     Kind = 'd'
	KindString     Kind = 's'
	KindObjectPath Kind = 'o'
	KindSignature  Kind = 'g'
	KindUnixFD     Kind = 'h'
	KindVariant    Kind = 'v'
	KindArray      Kind = 'a'
	KindStruct     Kind = '('
	KindDictEntry  Kind = '{'
)

const (
	maxSignatureLength = 255
	maxNestingDepth    = 32
)

func (k Kind) IsBasic() bool {
	switch k {
	case KindByte, KindBoolean, KindInt16, KindUint16, KindInt32, KindUint32,
		KindInt64, KindUint64, KindDouble, KindString, KindObjectPath,
		KindSignature, KindUnixFD:
		return true
	}
	return false
}

// Type is a single complete type: a basic type, or one of the three
// container kinds. Array carries Elem, Struct carries Fields, DictEntry
// carries Key/Val, and Variant carries none (its inner type rides on the
// wire with each value, not in the signature).
type Type struct {
	Kind   Kind
	Elem   *Type   // ARRAY element type
	Key    *Type   // DICT_ENTRY key type (always basic)
	Val    *Type   // DICT_ENTRY value type
	Fields []*Type // STRUCT member types
}

func Basic(k Kind) *Type { return &Type{Kind: k} }

func ArrayOf(elem *Type) *Type { return &Type{Kind: KindArray, Elem: elem} }

func StructOf(fields ...*Type) *Type { return &Type{Kind: KindStruct, Fields: fields} }

func DictEntryOf(key, val *Type) *Type { return &Type{Kind: KindDictEntry, Key: key, Val: val} }

func VariantType() *Type { return &Type{Kind: KindVariant} }

// Align returns the D-Bus alignment, in bytes, for this type.
func (t *Type) Align() int {
	switch t.Kind {
	case KindByte, KindSignature, KindVariant:
		return 1
	case KindInt16, KindUint16:
		return 2
	case KindBoolean, KindInt32, KindUint32, KindString, KindObjectPath, KindUnixFD, KindArray:
		return 4
	case KindInt64, KindUint64, KindDouble, KindStruct, KindDictEntry:
		return 8
	default:
		return 1
	}
}

// String renders the type back to its signature form.
func (t *Type) String() string {
	var b strings.Builder
	t.write(&b)
	return b.String()
}

func (t *Type) write(b *strings.Builder) {
	switch t.Kind {
	case KindArray:
		b.WriteByte('a')
		t.Elem.write(b)
	case KindStruct:
		b.WriteByte('(')
		for _, f := range t.Fields {
			f.write(b)
		}
		b.WriteByte(')')
	case KindDictEntry:
		b.WriteByte('{')
		t.Key.write(b)
		t.Val.write(b)
		b.WriteByte('}')
	default:
		b.WriteByte(byte(t.Kind))
	}
}

// Equal reports structural equality of two types, used by the round-trip
// law parse(print(parse(s))) == parse(s).
func (t *Type) Equal(o *Type) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindArray:
		return t.Elem.Equal(o.Elem)
	case KindStruct:
		if len(t.Fields) != len(o.Fields) {
			return false
		}
		for i := range t.Fields {
			if !t.Fields[i].Equal(o.Fields[i]) {
				return false
			}
		}
		return true
	case KindDictEntry:
		return t.Key.Equal(o.Key) && t.Val.Equal(o.Val)
	default:
		return true
	}
}

// Signature is a parsed sequence of zero or more single complete types,
// e.g. the body signature of a message.
type Signature []*Type

// String renders the signature back to wire form.
func (s Signature) String() string {
	var b strings.Builder
	for _, t := range s {
		t.write(&b)
	}
	return b.String()
}

// ParseSignature parses a raw signature string into its AST, enforcing
// every structural invariant from the wire contract: known codes,
// balanced brackets, non-empty structs, dict entries only as array
// elements with a basic key, nesting depth <= 32, and total length <= 255.
func ParseSignature(s string) (Signature, error) {
	if len(s) > maxSignatureLength {
		return nil, dbuserr.New(dbuserr.KindInvalidSignature, fmt.Sprintf("signature length %d exceeds %d", len(s), maxSignatureLength))
	}
	p := &sigParser{s: s}
	var types Signature
	for p.pos < len(p.s) {
		t, err := p.parseOne(0, false)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}

type sigParser struct {
	s   string
	pos int
}

// parseOne parses exactly one single complete type starting at p.pos.
// inDictEntry/arrayElem context is tracked via depth and the insideArray
// flag so dict-entry-outside-array can be rejected.
func (p *sigParser) parseOne(depth int, insideArray bool) (*Type, error) {
	if depth > maxNestingDepth {
		return nil, dbuserr.New(dbuserr.KindInvalidSignature, "nesting depth exceeds 32")
	}
	if p.pos >= len(p.s) {
		return nil, dbuserr.New(dbuserr.KindInvalidSignature, "unexpected end of signature")
	}
	c := p.s[p.pos]
	switch c {
	case 'y', 'b', 'n', 'q', 'i', 'u', 'x', 't', 'd', 's', 'o', 'g', 'h', 'v':
		p.pos++
		return &Type{Kind: Kind(c)}, nil
	case 'a':
		p.pos++
		elem, err := p.parseOne(depth+1, true)
		if err != nil {
			return nil, err
		}
		return &Type{Kind: KindArray, Elem: elem}, nil
	case '(':
		p.pos++
		var fields []*Type
		for {
			if p.pos >= len(p.s) {
				return nil, dbuserr.New(dbuserr.KindInvalidSignature, "unbalanced struct: missing ')'")
			}
			if p.s[p.pos] == ')' {
				p.pos++
				break
			}
			f, err := p.parseOne(depth+1, false)
			if err != nil {
				return nil, err
			}
			fields = append(fields, f)
		}
		if len(fields) == 0 {
			return nil, dbuserr.New(dbuserr.KindInvalidSignature, "empty struct")
		}
		return &Type{Kind: KindStruct, Fields: fields}, nil
	case '{':
		if !insideArray {
			return nil, dbuserr.New(dbuserr.KindInvalidSignature, "dict entry outside array")
		}
		p.pos++
		key, err := p.parseOne(depth+1, false)
		if err != nil {
			return nil, err
		}
		if !key.Kind.IsBasic() {
			return nil, dbuserr.New(dbuserr.KindInvalidSignature, "dict entry key must be a basic type")
		}
		val, err := p.parseOne(depth+1, false)
		if err != nil {
			return nil, err
		}
		if p.pos >= len(p.s) || p.s[p.pos] != '}' {
			return nil, dbuserr.New(dbuserr.KindInvalidSignature, "unbalanced dict entry: missing '}'")
		}
		p.pos++
		return &Type{Kind: KindDictEntry, Key: key, Val: val}, nil
	case ')', '}':
		return nil, dbuserr.New(dbuserr.KindInvalidSignature, fmt.Sprintf("unexpected closing bracket %q", c))
	default:
		return nil, dbuserr.New(dbuserr.KindInvalidSignature, fmt.Sprintf("unknown type code %q", c))
	}
}

// NumberOfCompleteTypes reports how many single complete types a
// signature contains at its top level, e.g. "s" -> 1, "(ii)s" -> 2.
func (s Signature) NumberOfCompleteTypes() int { return len(s) }

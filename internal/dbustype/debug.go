package dbustype

import (
	"fmt"
	"strings"
)

// Render is a debug-only string rendering of a Value tree, grounded on
// the teacher's xdr type render helpers. It is never used for wire
// encoding — only for log/trace fields and error messages.
func Render(v Value) string {
	var b strings.Builder
	render(&b, v)
	return b.String()
}

func render(b *strings.Builder, v Value) {
	switch tv := v.(type) {
	case Array:
		b.WriteByte('[')
		for i, item := range tv.Items {
			if i > 0 {
				b.WriteString(", ")
			}
			render(b, item)
		}
		b.WriteByte(']')
	case Struct:
		b.WriteByte('(')
		for i, f := range tv.Fields {
			if i > 0 {
				b.WriteString(", ")
			}
			render(b, f)
		}
		b.WriteByte(')')
	case DictEntry:
		render(b, tv.Key)
		b.WriteString(": ")
		render(b, tv.Val)
	case Variant:
		b.WriteString(tv.Inner.Type().String())
		b.WriteByte('{')
		render(b, tv.Inner)
		b.WriteByte('}')
	case String:
		fmt.Fprintf(b, "%q", string(tv))
	case ObjectPath:
		fmt.Fprintf(b, "%q", string(tv))
	default:
		fmt.Fprintf(b, "%v", v)
	}
}

package dbuswire

import (
	"testing"

	"github.com/marmos91/godbus/internal/dbustype"
)

func roundTrip(t *testing.T, order ByteOrder, v dbustype.Value) dbustype.Value {
	t.Helper()
	enc := NewEncoder(order)
	if err := enc.WriteValue(v); err != nil {
		t.Fatalf("WriteValue(%#v): %v", v, err)
	}
	dec := NewDecoder(enc.Bytes(), order)
	got, err := dec.ReadValue(v.Type())
	if err != nil {
		t.Fatalf("ReadValue: %v", err)
	}
	if dec.Remaining() != 0 {
		t.Errorf("expected decoder to consume all bytes, %d remain", dec.Remaining())
	}
	return got
}

func TestRoundTrip_Scalars(t *testing.T) {
	values := []dbustype.Value{
		dbustype.Byte(200),
		dbustype.Boolean(true),
		dbustype.Boolean(false),
		dbustype.Int16(-1234),
		dbustype.Uint16(54321),
		dbustype.Int32(-123456789),
		dbustype.Uint32(3000000000),
		dbustype.Int64(-123456789012),
		dbustype.Uint64(12345678901234),
		dbustype.Double(3.14159),
		dbustype.String("hello, dbus"),
		dbustype.ObjectPath("/org/example/Foo"),
	}
	for _, order := range []ByteOrder{LittleEndian, BigEndian} {
		for _, v := range values {
			got := roundTrip(t, order, v)
			if got != v {
				t.Errorf("order %c: roundTrip(%#v) = %#v", order, v, got)
			}
		}
	}
}

func TestRoundTrip_Array(t *testing.T) {
	arr := dbustype.Array{Elem: dbustype.Basic(dbustype.KindInt32), Items: []dbustype.Value{
		dbustype.Int32(1), dbustype.Int32(2), dbustype.Int32(3),
	}}
	got := roundTrip(t, LittleEndian, arr)
	gotArr, ok := got.(dbustype.Array)
	if !ok || len(gotArr.Items) != 3 {
		t.Fatalf("expected 3-element array, got %#v", got)
	}
	for i, item := range gotArr.Items {
		if item != arr.Items[i] {
			t.Errorf("item %d: got %#v, want %#v", i, item, arr.Items[i])
		}
	}
}

func TestRoundTrip_Struct(t *testing.T) {
	s := dbustype.Struct{Fields: []dbustype.Value{dbustype.String("name"), dbustype.Int32(42)}}
	got := roundTrip(t, LittleEndian, s)
	gotStruct, ok := got.(dbustype.Struct)
	if !ok || len(gotStruct.Fields) != 2 {
		t.Fatalf("expected 2-field struct, got %#v", got)
	}
	if gotStruct.Fields[0] != dbustype.String("name") || gotStruct.Fields[1] != dbustype.Int32(42) {
		t.Errorf("unexpected struct fields: %#v", gotStruct.Fields)
	}
}

func TestRoundTrip_Variant(t *testing.T) {
	v := dbustype.Variant{Inner: dbustype.Uint32(7)}
	got := roundTrip(t, LittleEndian, v)
	gotVariant, ok := got.(dbustype.Variant)
	if !ok || gotVariant.Inner != dbustype.Uint32(7) {
		t.Fatalf("expected variant wrapping Uint32(7), got %#v", got)
	}
}

func TestDecoder_RejectsNonZeroPadding(t *testing.T) {
	enc := NewEncoder(LittleEndian)
	if err := enc.WriteValue(dbustype.Byte(1)); err != nil {
		t.Fatalf("WriteValue: %v", err)
	}
	buf := enc.Bytes()
	buf = append(buf, 1, 1, 1) // corrupt what should be zero alignment padding
	dec := NewDecoder(buf, LittleEndian)
	if _, err := dec.ReadValue(dbustype.Basic(dbustype.KindByte)); err != nil {
		t.Fatalf("reading the byte itself should not fail: %v", err)
	}
	if err := dec.align(4); err == nil {
		t.Error("expected error for non-zero alignment padding")
	}
}

func TestDecoder_RejectsTruncatedInput(t *testing.T) {
	dec := NewDecoder([]byte{1, 2}, LittleEndian)
	if _, err := dec.ReadValue(dbustype.Basic(dbustype.KindInt64)); err == nil {
		t.Error("expected error reading int64 from a 2-byte buffer")
	}
}

func TestDecoder_RejectsBooleanOutOfRange(t *testing.T) {
	enc := NewEncoder(LittleEndian)
	enc.writeUint32(2) // neither 0 nor 1
	dec := NewDecoder(enc.Bytes(), LittleEndian)
	if _, err := dec.ReadValue(dbustype.Basic(dbustype.KindBoolean)); err == nil {
		t.Error("expected error for boolean wire value outside {0,1}")
	}
}

func TestByteOrder_ParseAndRoundTrip(t *testing.T) {
	for _, b := range []byte{'l', 'B'} {
		o, err := ParseByteOrder(b)
		if err != nil {
			t.Fatalf("ParseByteOrder(%q): %v", b, err)
		}
		if byte(o) != b {
			t.Errorf("ParseByteOrder(%q) = %q", b, o)
		}
	}
	if _, err := ParseByteOrder('x'); err == nil {
		t.Error("expected error for unknown byte-order flag")
	}
}

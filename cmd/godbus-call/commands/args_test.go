package commands

import (
	"testing"

	"github.com/marmos91/godbus/internal/dbustype"
)

func TestParseArg_BasicTypes(t *testing.T) {
	cases := []struct {
		raw  string
		want dbustype.Value
	}{
		{"byte:7", dbustype.Byte(7)},
		{"boolean:true", dbustype.Boolean(true)},
		{"int16:-42", dbustype.Int16(-42)},
		{"uint16:42", dbustype.Uint16(42)},
		{"int32:-1000", dbustype.Int32(-1000)},
		{"uint32:1000", dbustype.Uint32(1000)},
		{"int64:-9999999999", dbustype.Int64(-9999999999)},
		{"uint64:9999999999", dbustype.Uint64(9999999999)},
		{"double:3.14", dbustype.Double(3.14)},
	}
	for _, c := range cases {
		got, err := parseArg(c.raw)
		if err != nil {
			t.Errorf("parseArg(%q): unexpected error: %v", c.raw, err)
			continue
		}
		if got != c.want {
			t.Errorf("parseArg(%q) = %#v, want %#v", c.raw, got, c.want)
		}
	}
}

func TestParseArg_StringAndObjectPath(t *testing.T) {
	v, err := parseArg("string:hello world")
	if err != nil {
		t.Fatalf("parseArg(string): %v", err)
	}
	s, ok := v.(dbustype.String)
	if !ok || string(s) != "hello world" {
		t.Errorf("expected String(\"hello world\"), got %#v", v)
	}

	v, err = parseArg("objpath:/org/example/Foo")
	if err != nil {
		t.Fatalf("parseArg(objpath): %v", err)
	}
	p, ok := v.(dbustype.ObjectPath)
	if !ok || string(p) != "/org/example/Foo" {
		t.Errorf("expected ObjectPath(\"/org/example/Foo\"), got %#v", v)
	}
}

func TestParseArg_MissingColon(t *testing.T) {
	if _, err := parseArg("nocolonhere"); err == nil {
		t.Fatal("expected error for argument with no TYPE:VALUE separator")
	}
}

func TestParseArg_UnsupportedType(t *testing.T) {
	if _, err := parseArg("array:1,2,3"); err == nil {
		t.Fatal("expected error for unsupported container type")
	}
}

func TestParseArg_MalformedValue(t *testing.T) {
	if _, err := parseArg("int32:not-a-number"); err == nil {
		t.Fatal("expected error for malformed int32 value")
	}
}

func TestParseArgs_AccumulatesValues(t *testing.T) {
	values, err := parseArgs([]string{"string:hi", "int32:5", "boolean:false"})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if len(values) != 3 {
		t.Fatalf("expected 3 values, got %d", len(values))
	}
}

func TestParseArgs_StopsOnFirstError(t *testing.T) {
	_, err := parseArgs([]string{"string:ok", "badtype:whatever"})
	if err == nil {
		t.Fatal("expected error to propagate from parseArgs")
	}
}

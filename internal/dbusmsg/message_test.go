package dbusmsg

import (
	"testing"

	"github.com/marmos91/godbus/internal/dbustype"
	"github.com/marmos91/godbus/internal/dbuswire"
)

func TestMethodCall_EncodeDecodeRoundTrip(t *testing.T) {
	msg := NewMethodCall(dbuswire.NativeByteOrder, "/org/example/Foo", "org.example.Foo", "Bar", "org.example.Service")
	msg.Serial = 7
	msg.SetBody(dbustype.String("hello"), dbustype.Int32(42))

	buf, err := msg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, bodyStart, err := DecodeHeader(buf)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if decoded.Type != TypeMethodCall {
		t.Errorf("expected TypeMethodCall, got %v", decoded.Type)
	}
	if decoded.Path != "/org/example/Foo" || decoded.Interface != "org.example.Foo" || decoded.Member != "Bar" {
		t.Errorf("unexpected header fields: path=%q iface=%q member=%q", decoded.Path, decoded.Interface, decoded.Member)
	}
	if decoded.Destination != "org.example.Service" {
		t.Errorf("expected destination to round-trip, got %q", decoded.Destination)
	}
	if decoded.Serial != 7 {
		t.Errorf("expected serial 7, got %d", decoded.Serial)
	}

	if err := DecodeBody(decoded, buf, bodyStart); err != nil {
		t.Fatalf("DecodeBody: %v", err)
	}
	if len(decoded.Body) != 2 || decoded.Body[0] != dbustype.String("hello") || decoded.Body[1] != dbustype.Int32(42) {
		t.Errorf("unexpected decoded body: %#v", decoded.Body)
	}
}

func TestMethodReturn_EncodeDecodeRoundTrip(t *testing.T) {
	msg := NewMethodReturn(dbuswire.NativeByteOrder, 99, "org.example.Caller")
	msg.Serial = 1

	buf, err := msg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, _, err := DecodeHeader(buf)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if decoded.Type != TypeMethodReturn || decoded.ReplySerial != 99 {
		t.Errorf("unexpected decoded message: %+v", decoded)
	}
}

func TestError_RequiresErrorNameAndReplySerial(t *testing.T) {
	msg := NewError(dbuswire.NativeByteOrder, 0, "", "")
	msg.Serial = 1
	if err := msg.RequiredFields(); err == nil {
		t.Fatal("expected error for missing ERROR_NAME and REPLY_SERIAL")
	}
}

func TestSignal_RequiresPathInterfaceMember(t *testing.T) {
	msg := NewSignal(dbuswire.NativeByteOrder, "", "", "")
	msg.Serial = 1
	if err := msg.RequiredFields(); err == nil {
		t.Fatal("expected error for missing PATH/INTERFACE/MEMBER")
	}

	msg = NewSignal(dbuswire.NativeByteOrder, "/a", "org.example.A", "Changed")
	msg.Serial = 1
	if err := msg.RequiredFields(); err != nil {
		t.Errorf("expected valid signal to pass RequiredFields, got %v", err)
	}
}

func TestEncode_RejectsZeroSerial(t *testing.T) {
	msg := NewMethodCall(dbuswire.NativeByteOrder, "/a", "org.example.A", "Foo", "")
	if _, err := msg.Encode(); err == nil {
		t.Fatal("expected error encoding a message with serial 0")
	}
}

func TestDecodeHeader_RejectsTruncatedPrefix(t *testing.T) {
	if _, _, err := DecodeHeader([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error decoding a truncated header prefix")
	}
}

func TestSetBody_DerivesSignature(t *testing.T) {
	msg := NewMethodCall(dbuswire.NativeByteOrder, "/a", "org.example.A", "Foo", "")
	msg.SetBody(dbustype.String("x"), dbustype.Uint32(1))
	if msg.Signature.String() != "su" {
		t.Errorf("expected derived signature 'su', got %q", msg.Signature.String())
	}
}

package dbus

import "testing"

func TestParseAddresses_Single(t *testing.T) {
	addrs, err := ParseAddresses("unix:path=/run/dbus/system_bus_socket")
	if err != nil {
		t.Fatalf("ParseAddresses: %v", err)
	}
	if len(addrs) != 1 {
		t.Fatalf("expected 1 address, got %d", len(addrs))
	}
	if addrs[0].Kind != "unix" {
		t.Errorf("expected kind 'unix', got %q", addrs[0].Kind)
	}
	if addrs[0].Params["path"] != "/run/dbus/system_bus_socket" {
		t.Errorf("expected path param, got %q", addrs[0].Params["path"])
	}
}

func TestParseAddresses_MultipleAttempts(t *testing.T) {
	addrs, err := ParseAddresses("unix:path=/a/b;tcp:host=127.0.0.1,port=1234")
	if err != nil {
		t.Fatalf("ParseAddresses: %v", err)
	}
	if len(addrs) != 2 {
		t.Fatalf("expected 2 addresses, got %d", len(addrs))
	}
	if addrs[1].Kind != "tcp" || addrs[1].Params["host"] != "127.0.0.1" || addrs[1].Params["port"] != "1234" {
		t.Errorf("unexpected second address: %+v", addrs[1])
	}
}

func TestParseAddresses_PercentEscape(t *testing.T) {
	addrs, err := ParseAddresses("unix:path=/tmp/my%20socket")
	if err != nil {
		t.Fatalf("ParseAddresses: %v", err)
	}
	if addrs[0].Params["path"] != "/tmp/my socket" {
		t.Errorf("expected unescaped path, got %q", addrs[0].Params["path"])
	}
}

func TestParseAddresses_Empty(t *testing.T) {
	if _, err := ParseAddresses(""); err == nil {
		t.Fatal("expected error for empty address string")
	}
}

func TestParseAddresses_MissingTransport(t *testing.T) {
	if _, err := ParseAddresses("no-colon-here"); err == nil {
		t.Fatal("expected error for address missing transport prefix")
	}
}

func TestParseAddresses_MalformedKeyValue(t *testing.T) {
	if _, err := ParseAddresses("unix:pathonly"); err == nil {
		t.Fatal("expected error for malformed key=value pair")
	}
}

func TestParseAddresses_TruncatedEscape(t *testing.T) {
	if _, err := ParseAddresses("unix:path=/tmp/bad%2"); err == nil {
		t.Fatal("expected error for truncated percent-escape")
	}
}

func TestSystemBusAddress_DefaultsWhenUnset(t *testing.T) {
	t.Setenv("DBUS_SYSTEM_BUS_ADDRESS", "")
	if got := SystemBusAddress(); got != DefaultSystemBusAddress {
		t.Errorf("expected default system bus address, got %q", got)
	}
}

func TestSystemBusAddress_HonorsEnv(t *testing.T) {
	t.Setenv("DBUS_SYSTEM_BUS_ADDRESS", "unix:path=/custom/socket")
	if got := SystemBusAddress(); got != "unix:path=/custom/socket" {
		t.Errorf("expected env override, got %q", got)
	}
}

func TestSessionBusAddress_UnsetReturnsFalse(t *testing.T) {
	t.Setenv("DBUS_SESSION_BUS_ADDRESS", "")
	if _, ok := SessionBusAddress(); ok {
		t.Error("expected ok=false when DBUS_SESSION_BUS_ADDRESS is unset")
	}
}

func TestSessionBusAddress_Set(t *testing.T) {
	t.Setenv("DBUS_SESSION_BUS_ADDRESS", "unix:path=/run/user/1000/bus")
	addr, ok := SessionBusAddress()
	if !ok || addr != "unix:path=/run/user/1000/bus" {
		t.Errorf("expected session bus address, got %q (ok=%v)", addr, ok)
	}
}

func TestBusSelector_String(t *testing.T) {
	if BusSystem.String() != "system" {
		t.Errorf("expected 'system', got %q", BusSystem.String())
	}
	if BusSession.String() != "session" {
		t.Errorf("expected 'session', got %q", BusSession.String())
	}
}

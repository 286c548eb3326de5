package dbus

import (
	"os"
	"strconv"
	"strings"

	"github.com/marmos91/godbus/internal/dbuserr"
)

// DefaultSystemBusAddress is used when DBUS_SYSTEM_BUS_ADDRESS is unset.
const DefaultSystemBusAddress = "unix:path=/var/run/dbus/system_bus_socket"

// Address is one parsed D-Bus address attempt: a transport name and its
// key=value parameters, e.g. "unix:path=/run/dbus/system_bus_socket".
type Address struct {
	Kind   string
	Params map[string]string
}

// ParseAddresses splits a semicolon-separated D-Bus address string into
// its ordered list of attempts (§6.2). The Connection core tries each in
// order until one authenticates.
func ParseAddresses(s string) ([]Address, error) {
	var out []Address
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		addr, err := parseOneAddress(part)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	if len(out) == 0 {
		return nil, dbuserr.New(dbuserr.KindInvalidData, "empty D-Bus address")
	}
	return out, nil
}

func parseOneAddress(part string) (Address, error) {
	idx := strings.IndexByte(part, ':')
	if idx < 0 {
		return Address{}, dbuserr.New(dbuserr.KindInvalidData, "malformed D-Bus address, missing transport: "+part)
	}
	addr := Address{Kind: part[:idx], Params: map[string]string{}}
	rest := part[idx+1:]
	if rest == "" {
		return addr, nil
	}
	for _, kv := range strings.Split(rest, ",") {
		if kv == "" {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq < 0 {
			return Address{}, dbuserr.New(dbuserr.KindInvalidData, "malformed D-Bus address key=value: "+kv)
		}
		key := kv[:eq]
		val, err := unescapeAddressValue(kv[eq+1:])
		if err != nil {
			return Address{}, err
		}
		addr.Params[key] = val
	}
	return addr, nil
}

// unescapeAddressValue decodes the D-Bus address percent-encoding
// (%XX, two hex digits) used for bytes that cannot appear literally in
// an address string.
func unescapeAddressValue(s string) (string, error) {
	if !strings.ContainsRune(s, '%') {
		return s, nil
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '%' {
			b.WriteByte(s[i])
			continue
		}
		if i+2 >= len(s) {
			return "", dbuserr.New(dbuserr.KindInvalidData, "truncated percent-escape in D-Bus address")
		}
		n, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
		if err != nil {
			return "", dbuserr.Wrap(dbuserr.KindInvalidData, "invalid percent-escape in D-Bus address", err)
		}
		b.WriteByte(byte(n))
		i += 2
	}
	return b.String(), nil
}

// SystemBusAddress resolves the system bus address string, honoring
// DBUS_SYSTEM_BUS_ADDRESS and falling back to the well-known default
// socket path (§6.2).
func SystemBusAddress() string {
	if a := os.Getenv("DBUS_SYSTEM_BUS_ADDRESS"); a != "" {
		return a
	}
	return DefaultSystemBusAddress
}

// SessionBusAddress resolves the session bus address string from
// DBUS_SESSION_BUS_ADDRESS. There is no built-in default: session bus
// discovery (X11 properties, launchd, etc.) is out of scope and left to
// a collaborator that supplies the address explicitly.
func SessionBusAddress() (string, bool) {
	a := os.Getenv("DBUS_SESSION_BUS_ADDRESS")
	return a, a != ""
}

package dbus

import (
	"context"
	"net"

	"github.com/marmos91/godbus/internal/dbuserr"
)

// Transport dials one Address into a byte stream. Implementations are
// selected by Address.Kind (§4.8 Transport selection).
type Transport interface {
	Dial(ctx context.Context, addr Address) (net.Conn, error)

	// NeedsInitialNUL reports whether the client must write a single
	// 0x00 byte before the SASL handshake begins. True for every stream
	// transport this module implements (§6.1).
	NeedsInitialNUL() bool

	// SupportsFDPassing reports whether this transport can carry
	// UNIX_FDS alongside a message (ancillary data over a Unix socket).
	SupportsFDPassing() bool
}

// unixTransport dials a Unix domain socket, either a filesystem path
// (`unix:path=`) or a Linux abstract-namespace name (`unix:abstract=`).
type unixTransport struct{}

func (unixTransport) Dial(ctx context.Context, addr Address) (net.Conn, error) {
	var sockAddr string
	switch {
	case addr.Params["path"] != "":
		sockAddr = addr.Params["path"]
	case addr.Params["abstract"] != "":
		sockAddr = "@" + addr.Params["abstract"]
	default:
		return nil, dbuserr.New(dbuserr.KindInvalidData, "unix transport requires path= or abstract=")
	}
	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "unix", sockAddr)
	if err != nil {
		return nil, dbuserr.Wrap(dbuserr.KindTransportFailure, "dial unix socket "+sockAddr, err)
	}
	return conn, nil
}

func (unixTransport) NeedsInitialNUL() bool   { return true }
func (unixTransport) SupportsFDPassing() bool { return true }

// tcpTransport dials a TCP endpoint (`tcp:host=…,port=…,family=ipv4|ipv6`).
type tcpTransport struct{}

func (tcpTransport) Dial(ctx context.Context, addr Address) (net.Conn, error) {
	host := addr.Params["host"]
	port := addr.Params["port"]
	if host == "" || port == "" {
		return nil, dbuserr.New(dbuserr.KindInvalidData, "tcp transport requires host= and port=")
	}
	network := "tcp"
	switch addr.Params["family"] {
	case "ipv4":
		network = "tcp4"
	case "ipv6":
		network = "tcp6"
	}
	d := net.Dialer{}
	conn, err := d.DialContext(ctx, network, net.JoinHostPort(host, port))
	if err != nil {
		return nil, dbuserr.Wrap(dbuserr.KindTransportFailure, "dial tcp "+host+":"+port, err)
	}
	return conn, nil
}

func (tcpTransport) NeedsInitialNUL() bool   { return true }
func (tcpTransport) SupportsFDPassing() bool { return false }

// transportFor resolves the Transport implementation for an address's
// Kind. Unrecognized kinds are rejected rather than silently attempting
// a best guess.
func transportFor(kind string) (Transport, error) {
	switch kind {
	case "unix":
		return unixTransport{}, nil
	case "tcp":
		return tcpTransport{}, nil
	default:
		return nil, dbuserr.New(dbuserr.KindInvalidData, "unsupported D-Bus transport: "+kind)
	}
}

// dialAny tries every address attempt in order, returning the first
// stream that dials successfully along with the Transport that produced
// it (§4.8 "On multi-attempt addresses, try in order").
func dialAny(ctx context.Context, addrs []Address) (net.Conn, Transport, error) {
	var lastErr error
	for _, addr := range addrs {
		t, err := transportFor(addr.Kind)
		if err != nil {
			lastErr = err
			continue
		}
		conn, err := t.Dial(ctx, addr)
		if err != nil {
			lastErr = err
			continue
		}
		return conn, t, nil
	}
	if lastErr == nil {
		lastErr = dbuserr.New(dbuserr.KindTransportFailure, "no D-Bus address attempts given")
	}
	return nil, nil, dbuserr.Wrap(dbuserr.KindTransportFailure, "all transport attempts failed", lastErr)
}

// Package dbussasl implements the line-oriented SASL pre-protocol that
// must complete before any binary D-Bus traffic is permitted: an ASCII,
// CRLF-terminated command exchange that authenticates the client and,
// on success, negotiates UNIX_FD passing before handing control to the
// binary framer.
//
// Grounded on the teacher's pluggable, ordered auth-mechanism negotiation
// (internal/auth/ntlm, pkg/auth/kerberos): try mechanisms in a configured
// order, falling through to the next on rejection, ending in success or
// AuthenticationFailed.
package dbussasl

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/marmos91/godbus/internal/dbuserr"
	"github.com/marmos91/godbus/internal/logger"
)

// State is the client-side SASL state, named exactly as the handshake
// contract describes it.
type State int

const (
	StateStart State = iota
	StateWaitData
	StateWaitOK
	StateWaitAgreeUnixFD
	StateWaitReject
	StateAuthenticated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "START"
	case StateWaitData:
		return "WAIT_DATA"
	case StateWaitOK:
		return "WAIT_OK"
	case StateWaitAgreeUnixFD:
		return "WAIT_AGREE_UNIX_FD"
	case StateWaitReject:
		return "WAIT_REJECT"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Mechanism is one SASL authentication mechanism the client can offer.
type Mechanism interface {
	Name() string

	// Initiate returns the hex-encoded initial response to send with the
	// AUTH command, and whether this mechanism has one at all (EXTERNAL
	// and ANONYMOUS do; DBUS_COOKIE_SHA1 replies only after a challenge).
	Initiate() (hexData string, hasInitial bool, err error)

	// Respond computes the hex-encoded DATA reply to a server challenge;
	// serverHex is the payload of the server's DATA line, still
	// hex-encoded.
	Respond(serverHex string) (responseHex string, err error)
}

// Result describes a completed (successful or failed) handshake.
type Result struct {
	Mechanism     string
	ServerGUID    string
	UnixFDEnabled bool
}

// Options configures a handshake.
type Options struct {
	// Mechanisms is tried in order; the first to reach AUTHENTICATED
	// wins. Defaults to [EXTERNAL, DBUS_COOKIE_SHA1, ANONYMOUS] if empty.
	Mechanisms []Mechanism

	// NegotiateUnixFD requests UNIX_FDS passing after a successful OK.
	NegotiateUnixFD bool
}

// Client drives the handshake over rw, a stream already positioned right
// after the transport's initial NUL byte (§6.1).
type Client struct {
	r   *bufio.Reader
	w   io.Writer
	opt Options
}

func NewClient(rw io.ReadWriter, opt Options) *Client {
	return &Client{r: bufio.NewReader(rw), w: rw, opt: opt}
}

// Handshake runs the full mechanism-negotiation loop and returns once the
// client reaches AUTHENTICATED (having sent BEGIN) or every mechanism is
// exhausted.
func (c *Client) Handshake() (*Result, error) {
	mechs := c.opt.Mechanisms
	if len(mechs) == 0 {
		mechs = DefaultMechanisms()
	}

	var lastErr error
	for _, mech := range mechs {
		res, err := c.tryMechanism(mech)
		if err == nil {
			return res, nil
		}
		logger.Debug("SASL mechanism failed, trying next", "mechanism", mech.Name(), "error", err)
		lastErr = err
	}
	if lastErr == nil {
		lastErr = dbuserr.New(dbuserr.KindAuthenticationFailed, "no mechanisms configured")
	}
	return nil, dbuserr.Wrap(dbuserr.KindAuthenticationFailed, "all SASL mechanisms exhausted", lastErr)
}

func (c *Client) tryMechanism(mech Mechanism) (*Result, error) {
	state := StateStart
	initHex, hasInit, err := mech.Initiate()
	if err != nil {
		return nil, err
	}

	cmd := "AUTH " + mech.Name()
	if hasInit {
		cmd += " " + initHex
	}
	if err := c.sendLine(cmd); err != nil {
		return nil, err
	}
	state = StateWaitOK
	if !hasInit {
		state = StateWaitData
	}

	var guid string
	for {
		line, err := c.readLine()
		if err != nil {
			return nil, err
		}
		word, rest := splitCommand(line)

		switch state {
		case StateWaitData:
			switch word {
			case "DATA":
				respHex, err := mech.Respond(rest)
				if err != nil {
					return nil, err
				}
				if err := c.sendLine("DATA " + respHex); err != nil {
					return nil, err
				}
				state = StateWaitOK
			case "OK":
				guid = rest
				state = StateWaitOK
				return c.afterOK(mech, guid)
			case "REJECTED":
				return nil, dbuserr.New(dbuserr.KindAuthenticationFailed, "mechanism "+mech.Name()+" rejected: "+rest)
			case "ERROR":
				_ = c.sendLine("CANCEL")
				state = StateWaitReject
			default:
				return nil, dbuserr.New(dbuserr.KindAuthenticationFailed, "unexpected SASL line in WAIT_DATA: "+line)
			}
		case StateWaitOK:
			switch word {
			case "OK":
				guid = rest
				return c.afterOK(mech, guid)
			case "REJECTED":
				return nil, dbuserr.New(dbuserr.KindAuthenticationFailed, "mechanism "+mech.Name()+" rejected: "+rest)
			case "DATA", "ERROR":
				_ = c.sendLine("CANCEL")
				state = StateWaitReject
			default:
				return nil, dbuserr.New(dbuserr.KindAuthenticationFailed, "unexpected SASL line in WAIT_OK: "+line)
			}
		case StateWaitReject:
			if word == "REJECTED" {
				return nil, dbuserr.New(dbuserr.KindAuthenticationFailed, "mechanism "+mech.Name()+" rejected after cancel: "+rest)
			}
			return nil, dbuserr.New(dbuserr.KindAuthenticationFailed, "unexpected SASL line in WAIT_REJECT: "+line)
		default:
			return nil, dbuserr.New(dbuserr.KindAuthenticationFailed, "unreachable SASL state "+state.String())
		}
	}
}

// afterOK handles the OK -> (NEGOTIATE_UNIX_FD | BEGIN) transition.
func (c *Client) afterOK(mech Mechanism, guid string) (*Result, error) {
	if c.opt.NegotiateUnixFD {
		if err := c.sendLine("NEGOTIATE_UNIX_FD"); err != nil {
			return nil, err
		}
		line, err := c.readLine()
		if err != nil {
			return nil, err
		}
		word, _ := splitCommand(line)
		fdEnabled := word == "AGREE_UNIX_FD"
		if !fdEnabled && word != "ERROR" {
			return nil, dbuserr.New(dbuserr.KindAuthenticationFailed, "unexpected reply to NEGOTIATE_UNIX_FD: "+line)
		}
		if err := c.sendLine("BEGIN"); err != nil {
			return nil, err
		}
		return &Result{Mechanism: mech.Name(), ServerGUID: guid, UnixFDEnabled: fdEnabled}, nil
	}
	if err := c.sendLine("BEGIN"); err != nil {
		return nil, err
	}
	return &Result{Mechanism: mech.Name(), ServerGUID: guid}, nil
}

func (c *Client) sendLine(line string) error {
	logger.Debug("SASL >", "line", redactLine(line))
	if _, err := io.WriteString(c.w, line+"\r\n"); err != nil {
		return dbuserr.Wrap(dbuserr.KindTransportFailure, "write SASL line", err)
	}
	return nil
}

func (c *Client) readLine() (string, error) {
	line, err := c.r.ReadString('\n')
	if err != nil {
		return "", dbuserr.Wrap(dbuserr.KindTransportFailure, "read SASL line", err)
	}
	line = strings.TrimRight(line, "\r\n")
	logger.Debug("SASL <", "line", line)
	return line, nil
}

func splitCommand(line string) (word, rest string) {
	i := strings.IndexByte(line, ' ')
	if i < 0 {
		return line, ""
	}
	return line[:i], line[i+1:]
}

// redactLine hides credential payloads from debug logs: the initial
// response on an AUTH line (EXTERNAL's uid) and the payload of every DATA
// line (the DBUS_COOKIE_SHA1 challenge exchange).
func redactLine(line string) string {
	switch {
	case strings.HasPrefix(line, "AUTH "):
		parts := strings.SplitN(line, " ", 3)
		if len(parts) == 3 {
			return fmt.Sprintf("%s %s <redacted>", parts[0], parts[1])
		}
		return line
	case strings.HasPrefix(line, "DATA "):
		return "DATA <redacted>"
	default:
		return line
	}
}

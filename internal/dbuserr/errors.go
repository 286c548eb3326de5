// Package dbuserr defines the error taxonomy shared by every layer of the
// client: construction-time validation, wire decoding, authentication,
// transport, and call correlation. Errors are never panicked across a
// package boundary; callers get a discriminated outcome via errors.Is/As.
package dbuserr

import "fmt"

// Kind discriminates the error taxonomy described by the connection
// contract. A Kind is stable across Go versions and safe to switch on.
type Kind int

const (
	KindInvalidSignature Kind = iota
	KindInvalidPath
	KindInvalidInterface
	KindInvalidMember
	KindInvalidData
	KindMalformedMessage
	KindAuthenticationFailed
	KindTransportFailure
	KindNotConnected
	KindCallTimeout
	KindDisconnected
	KindRemoteError
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindInvalidSignature:
		return "InvalidSignature"
	case KindInvalidPath:
		return "InvalidPath"
	case KindInvalidInterface:
		return "InvalidInterface"
	case KindInvalidMember:
		return "InvalidMember"
	case KindInvalidData:
		return "InvalidData"
	case KindMalformedMessage:
		return "MalformedMessage"
	case KindAuthenticationFailed:
		return "AuthenticationFailed"
	case KindTransportFailure:
		return "TransportFailure"
	case KindNotConnected:
		return "NotConnected"
	case KindCallTimeout:
		return "CallTimeout"
	case KindDisconnected:
		return "Disconnected"
	case KindRemoteError:
		return "RemoteError"
	case KindCancelled:
		return "Cancelled"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is the concrete error type returned by every package in this
// module. It carries a Kind for programmatic dispatch, a human message,
// and an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error

	// Name and Body are only set for KindRemoteError: the wire error name
	// (e.g. "org.freedesktop.DBus.Error.ServiceUnknown") and the decoded
	// error body, if any.
	Name string
	Body any
}

func (e *Error) Error() string {
	if e.Kind == KindRemoteError && e.Name != "" {
		if e.Message != "" {
			return fmt.Sprintf("%s: %s", e.Name, e.Message)
		}
		return e.Name
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target carries the same Kind, so callers can write
// errors.Is(err, dbuserr.New(dbuserr.KindCallTimeout, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

func Remote(name, message string, body any) *Error {
	return &Error{Kind: KindRemoteError, Name: name, Message: message, Body: body}
}

// Is reports whether err is a *Error of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if as(err, &e) {
		return e.Kind == kind
	}
	return false
}

// as is a tiny local errors.As to avoid importing "errors" just for this
// one call site in every caller; kept unexported and trivial.
func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

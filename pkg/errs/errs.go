// Package errs defines the error taxonomy shared by every layer of the
// fetch client: XDR decoding, the RPC session, the protocol surfaces, and
// the driver itself all report failures as a *errs.Error carrying one of
// these codes, so a caller can branch on Code without string matching.
package errs

import "fmt"

// Code is one of the error classes a fetch can fail with.
type Code int

const (
	// InvalidArg covers malformed URIs and null/missing interfaces.
	InvalidArg Code = iota
	// NoBuffer covers allocation failure while building a call frame.
	NoBuffer
	// Unsupported covers a reply direction that isn't REPLY, or a
	// credential flavor outside AUTH_NONE/AUTH_SYS.
	Unsupported
	// Malformed covers truncated XDR or inconsistent length prefixes.
	Malformed
	// RPCRejected covers reply_state = MSG_DENIED.
	RPCRejected
	// RPCAcceptedError covers reply_state = 0 but accept_state != 0.
	RPCAcceptedError
	// Remote covers a nonzero protocol-level status (MOUNT/NFS status,
	// or portmap returning 0 for "not registered" is reported as NotFound
	// instead). The original status code is preserved in Error.Detail.
	Remote
	// NotFound covers portmap returning port 0.
	NotFound
	// Network covers transport-level failure: connect failed, reset, etc.
	Network
	// Cancelled covers the downstream sink closing before EOF.
	Cancelled
)

func (c Code) String() string {
	switch c {
	case InvalidArg:
		return "INVALID_ARG"
	case NoBuffer:
		return "NO_BUFFER"
	case Unsupported:
		return "UNSUPPORTED"
	case Malformed:
		return "MALFORMED"
	case RPCRejected:
		return "RPC_REJECTED"
	case RPCAcceptedError:
		return "RPC_ACCEPTED_ERROR"
	case Remote:
		return "REMOTE"
	case NotFound:
		return "NOT_FOUND"
	case Network:
		return "NETWORK"
	case Cancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Error is the concrete error type returned across package boundaries.
// Detail preserves the original wire-level code (RPC accept_state, NFS/
// MOUNT status) for diagnostics, per spec: "the original status code is
// preserved".
type Error struct {
	Code    Code
	Detail  uint32
	hasCode bool
	Cause   error
}

func (e *Error) Error() string {
	if e.hasCode {
		return fmt.Sprintf("%s (code=%d): %v", e.Code, e.Detail, e.Cause)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Cause)
	}
	return e.Code.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an Error with no preserved wire code.
func New(code Code, cause error) *Error {
	return &Error{Code: code, Cause: cause}
}

// Newf builds an Error from a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Cause: fmt.Errorf(format, args...)}
}

// WithDetail builds an Error that preserves the original wire-level code.
func WithDetail(code Code, detail uint32, cause error) *Error {
	return &Error{Code: code, Detail: detail, hasCode: true, Cause: cause}
}

// Is reports whether err (or something it wraps) is an *Error with code c.
func Is(err error, c Code) bool {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return e != nil && e.Code == c
}

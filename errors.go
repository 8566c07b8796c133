package asyncio

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/eXtremal-ik7/asyncio-go/internal/opcore"
)

// AsyncOpStatus is the single error surface of the runtime: every
// operation resolves to exactly one of these values, packed alongside
// a generation counter in the operation's status tag. The runtime does
// not format strings or emit logs on behalf of the caller — callers
// that want human-readable text use Error.Error() or the %v verb.
//
// It is a type alias for opcore.Status so the operation record (which
// cannot import this root package without a cycle) and the public API
// share one underlying type.
type AsyncOpStatus = opcore.Status

const (
	// StatusPending means the operation is still in flight.
	StatusPending = opcore.StatusPending
	// StatusSuccess means the operation completed and its output
	// fields (byte count, accepted descriptor, etc.) are valid.
	StatusSuccess = opcore.StatusSuccess
	// StatusTimeout means the operation's deadline elapsed before it
	// could complete.
	StatusTimeout = opcore.StatusTimeout
	// StatusDisconnected means the peer closed the connection, or a
	// stream hit EOF with nothing left to read.
	StatusDisconnected = opcore.StatusDisconnected
	// StatusCanceled means cancel_io(obj) (or a CANCEL_ALL tag bit)
	// finished the operation before it could run to completion.
	StatusCanceled = opcore.StatusCanceled
	// StatusBufferTooSmall means the caller's buffer could not hold a
	// datagram or protocol message without truncation.
	StatusBufferTooSmall = opcore.StatusBufferTooSmall
	// StatusUnknownError covers everything else: an unmapped errno, a
	// reactor-internal failure, anything not otherwise classified.
	StatusUnknownError = opcore.StatusUnknownError

	// StatusLast is the sentinel above which protocol clients
	// (tlsio, proto/httpclient, proto/smtp, ...) may allocate their
	// own statuses while sharing the same delivery machinery. It is
	// never itself assigned to an operation.
	StatusLast = opcore.StatusLast
)

// Error is the structured error returned by the facade's coroutine-form
// calls and passed to operation callbacks. It carries enough
// context (which operation, which object, which status, which errno)
// to build an actionable log line without the runtime itself logging
// anything.
type Error struct {
	Op     string        // facade call that failed (e.g. "AsyncRead", "IoConnect")
	Handle uintptr       // object handle (0 if not applicable)
	Tag    int           // operation's pool slot (-1 if not applicable)
	Status AsyncOpStatus // resolved status
	Errno  syscall.Errno // kernel errno, 0 if not applicable
	Msg    string        // human-readable message
	Inner  error         // wrapped error, if any
}

func (e *Error) Error() string {
	var parts []string

	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.Handle != 0 {
		parts = append(parts, fmt.Sprintf("handle=%d", e.Handle))
	}
	if e.Tag >= 0 {
		parts = append(parts, fmt.Sprintf("tag=%d", e.Tag))
	}
	if e.Errno != 0 {
		parts = append(parts, fmt.Sprintf("errno=%d", e.Errno))
	}

	msg := e.Msg
	if msg == "" {
		msg = e.Status.String()
	}

	if len(parts) > 0 {
		return fmt.Sprintf("asyncio: %s (%s)", msg, parts[0])
	}
	return fmt.Sprintf("asyncio: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is supports errors.Is comparison against a *Error with the same
// Status; any other target does not match.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if te, ok := target.(*Error); ok {
		return e.Status == te.Status
	}
	return false
}

// NewError creates a structured error for a given facade operation.
func NewError(op string, status AsyncOpStatus, msg string) *Error {
	return &Error{Op: op, Tag: -1, Status: status, Msg: msg}
}

// NewErrorWithErrno creates a structured error carrying the originating
// kernel errno.
func NewErrorWithErrno(op string, status AsyncOpStatus, errno syscall.Errno) *Error {
	return &Error{Op: op, Tag: -1, Status: status, Errno: errno, Msg: errno.Error()}
}

// NewObjectError creates a structured error scoped to a specific I/O
// object handle.
func NewObjectError(op string, handle uintptr, status AsyncOpStatus, msg string) *Error {
	return &Error{Op: op, Handle: handle, Tag: -1, Status: status, Msg: msg}
}

// NewOpError creates a structured error scoped to a specific object and
// in-flight operation tag.
func NewOpError(op string, handle uintptr, tag int, status AsyncOpStatus, msg string) *Error {
	return &Error{Op: op, Handle: handle, Tag: tag, Status: status, Msg: msg}
}

// WrapError wraps an existing error with asyncio context, mapping raw
// syscall.Errno values onto the nearest AsyncOpStatus.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}

	if ae, ok := inner.(*Error); ok {
		return &Error{
			Op:     op,
			Handle: ae.Handle,
			Tag:    ae.Tag,
			Status: ae.Status,
			Errno:  ae.Errno,
			Msg:    ae.Msg,
			Inner:  ae.Inner,
		}
	}

	if errno, ok := inner.(syscall.Errno); ok {
		return &Error{
			Op:     op,
			Tag:    -1,
			Status: mapErrnoToStatus(errno),
			Errno:  errno,
			Msg:    errno.Error(),
			Inner:  inner,
		}
	}

	return &Error{
		Op:     op,
		Tag:    -1,
		Status: StatusUnknownError,
		Msg:    inner.Error(),
		Inner:  inner,
	}
}

// mapErrnoToStatus maps a kernel errno onto the closest AsyncOpStatus.
func mapErrnoToStatus(errno syscall.Errno) AsyncOpStatus {
	switch errno {
	case syscall.ETIMEDOUT:
		return StatusTimeout
	case syscall.ECONNRESET, syscall.EPIPE, syscall.ENOTCONN, syscall.ECONNABORTED:
		return StatusDisconnected
	case syscall.ECANCELED, syscall.EINTR:
		return StatusCanceled
	case syscall.EMSGSIZE:
		return StatusBufferTooSmall
	default:
		return StatusUnknownError
	}
}

// IsStatus reports whether err (or any error it wraps) is an *Error
// carrying the given status.
func IsStatus(err error, status AsyncOpStatus) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Status == status
	}
	return false
}

// IsErrno reports whether err (or any error it wraps) is an *Error
// carrying the given errno.
func IsErrno(err error, errno syscall.Errno) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Errno == errno
	}
	return false
}

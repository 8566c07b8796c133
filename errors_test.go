package asyncio

import (
	"errors"
	"syscall"
	"testing"
)

func TestStructuredError(t *testing.T) {
	err := NewError("AsyncConnect", StatusTimeout, "connect deadline exceeded")

	if err.Op != "AsyncConnect" {
		t.Errorf("Expected Op=AsyncConnect, got %s", err.Op)
	}
	if err.Status != StatusTimeout {
		t.Errorf("Expected Status=StatusTimeout, got %s", err.Status)
	}

	expected := "asyncio: connect deadline exceeded (op=AsyncConnect)"
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}
}

func TestErrorWithErrno(t *testing.T) {
	err := NewErrorWithErrno("IoConnect", StatusUnknownError, syscall.EPERM)

	if err.Errno != syscall.EPERM {
		t.Errorf("Expected Errno=EPERM, got %v", err.Errno)
	}
	if err.Status != StatusUnknownError {
		t.Errorf("Expected Status=StatusUnknownError, got %s", err.Status)
	}
}

func TestObjectError(t *testing.T) {
	err := NewObjectError("AsyncRead", 123, StatusDisconnected, "peer closed connection")

	if err.Handle != 123 {
		t.Errorf("Expected Handle=123, got %d", err.Handle)
	}

	expected := "asyncio: peer closed connection (op=AsyncRead)"
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}
}

func TestOpError(t *testing.T) {
	err := NewOpError("AsyncWrite", 42, 7, StatusBufferTooSmall, "datagram truncated")

	if err.Handle != 42 {
		t.Errorf("Expected Handle=42, got %d", err.Handle)
	}
	if err.Tag != 7 {
		t.Errorf("Expected Tag=7, got %d", err.Tag)
	}
}

func TestWrapError(t *testing.T) {
	inner := syscall.ECONNRESET
	err := WrapError("AsyncRead", inner)

	if err.Status != StatusDisconnected {
		t.Errorf("Expected Status=StatusDisconnected, got %s", err.Status)
	}
	if err.Errno != syscall.ECONNRESET {
		t.Errorf("Expected Errno=ECONNRESET, got %v", err.Errno)
	}
	if !errors.Is(err, syscall.ECONNRESET) {
		t.Error("Expected wrapped error to satisfy errors.Is for ECONNRESET")
	}
}

func TestWrapErrorNil(t *testing.T) {
	if WrapError("AsyncRead", nil) != nil {
		t.Error("WrapError(op, nil) should return nil")
	}
}

func TestWrapErrorPreservesStructuredError(t *testing.T) {
	inner := NewObjectError("AsyncRead", 5, StatusCanceled, "canceled")
	wrapped := WrapError("IoRead", inner)

	if wrapped.Status != StatusCanceled {
		t.Errorf("Expected Status=StatusCanceled, got %s", wrapped.Status)
	}
	if wrapped.Handle != 5 {
		t.Errorf("Expected Handle=5, got %d", wrapped.Handle)
	}
	if wrapped.Op != "IoRead" {
		t.Errorf("Expected Op to be updated to IoRead, got %s", wrapped.Op)
	}
}

func TestIsStatus(t *testing.T) {
	err := NewError("AsyncConnect", StatusTimeout, "timed out")

	if !IsStatus(err, StatusTimeout) {
		t.Error("IsStatus should return true for matching status")
	}
	if IsStatus(err, StatusCanceled) {
		t.Error("IsStatus should return false for non-matching status")
	}
	if IsStatus(nil, StatusTimeout) {
		t.Error("IsStatus should return false for nil error")
	}
}

func TestIsErrno(t *testing.T) {
	err := NewErrorWithErrno("AsyncRead", StatusUnknownError, syscall.EIO)

	if !IsErrno(err, syscall.EIO) {
		t.Error("IsErrno should return true for matching errno")
	}
	if IsErrno(err, syscall.EPERM) {
		t.Error("IsErrno should return false for non-matching errno")
	}
	if IsErrno(nil, syscall.EIO) {
		t.Error("IsErrno should return false for nil error")
	}
}

func TestErrnoMapping(t *testing.T) {
	testCases := []struct {
		errno    syscall.Errno
		expected AsyncOpStatus
	}{
		{syscall.ETIMEDOUT, StatusTimeout},
		{syscall.ECONNRESET, StatusDisconnected},
		{syscall.EPIPE, StatusDisconnected},
		{syscall.ENOTCONN, StatusDisconnected},
		{syscall.ECANCELED, StatusCanceled},
		{syscall.EMSGSIZE, StatusBufferTooSmall},
		{syscall.EACCES, StatusUnknownError},
	}

	for _, tc := range testCases {
		status := mapErrnoToStatus(tc.errno)
		if status != tc.expected {
			t.Errorf("mapErrnoToStatus(%v) = %s, want %s", tc.errno, status, tc.expected)
		}
	}
}

func TestAsyncOpStatusString(t *testing.T) {
	cases := map[AsyncOpStatus]string{
		StatusPending:        "pending",
		StatusSuccess:        "success",
		StatusTimeout:        "timeout",
		StatusDisconnected:   "disconnected",
		StatusCanceled:       "canceled",
		StatusBufferTooSmall: "buffer too small",
		StatusUnknownError:   "unknown error",
	}
	for status, want := range cases {
		if got := status.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", status, got, want)
		}
	}
}

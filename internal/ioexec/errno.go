//go:build !windows

package ioexec

import (
	"golang.org/x/sys/unix"

	"github.com/eXtremal-ik7/asyncio-go/internal/opcore"
)

// wouldBlock reports whether err is the nonblocking "try again" family
// that the combiner's executors treat as ResultPending rather than a
// terminal status (spec.md §4.8, §7 propagation policy).
func wouldBlock(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINPROGRESS
}

// statusFor maps a raw errno onto the terminal opcore.Status it
// represents for a stream-socket executor (spec.md §4.8 "Stream-socket
// Disconnected is triggered by... write failing with EPIPE/broken-pipe").
// This duplicates the shape of the root package's mapErrnoToStatus
// rather than importing it, since opcore/ioexec sit below the root
// package and must stay cycle-free.
func statusFor(err error) opcore.Status {
	switch err {
	case unix.EPIPE, unix.ECONNRESET, unix.ENOTCONN, unix.ECONNABORTED, unix.ESHUTDOWN:
		return opcore.StatusDisconnected
	case unix.ECANCELED, unix.EINTR:
		return opcore.StatusCanceled
	case unix.EMSGSIZE:
		return opcore.StatusBufferTooSmall
	default:
		return opcore.StatusUnknownError
	}
}

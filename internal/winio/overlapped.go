//go:build windows

// Package winio is the small seam between the IOCP reactor backend
// and the Windows-specific executors in internal/winexec: a single
// Header type every overlapped executor embeds as its first field, so
// the backend can recover the waiting Op from the *windows.Overlapped
// GetQueuedCompletionStatus hands back without a side lookup table —
// the classic Windows "container of" idiom, expressed in Go via an
// unsafe.Pointer cast back to a type whose first field is the
// OVERLAPPED itself.
package winio

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// Header carries one in-flight overlapped call's completion result
// back from the IOCP backend's GetQueuedCompletionStatus loop to the
// executor's second Execute call. Every winexec executor type embeds
// this as its first field (anonymously), which is what makes the
// unsafe.Pointer round-trip in Backend below legal: the address of an
// embedded Header equals the address of the OV field at offset 0 of
// the enclosing struct.
type Header struct {
	OV windows.Overlapped

	N    uint32
	Err  error
	Done bool // set by the IOCP backend exactly once per completion;
	// guards against a spurious re-Execute (the combiner's Phase C
	// always drives both queue heads, whether or not this op's own
	// completion is what woke it) being mistaken for real data.
}

// FromOverlapped recovers the Header that owns ov. Safe only because
// every overlapped submission in this module is backed by a Header
// value embedded as field zero of its executor.
func FromOverlapped(ov *windows.Overlapped) *Header {
	return (*Header)(unsafe.Pointer(ov))
}

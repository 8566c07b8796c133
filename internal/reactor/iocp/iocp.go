//go:build windows

// Package iocp is the Windows MethodIOCP reactor backend (spec.md
// §4.7's completion-based row, grounded on
// original_source/src/asyncio/iocp.c and the IOCP wiring in
// joeycumines-go-utilpkg/eventloop/poller_windows.go): descriptors are
// associated with the completion port once at Register time and never
// re-armed; each in-flight overlapped call (internal/winexec) is its
// own unit of work, delivered back through GetQueuedCompletionStatus
// and routed to the waiting object's combiner exactly like a readiness
// bit from epoll or kqueue (see internal/winio's container-of header).
package iocp

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sys/windows"

	"github.com/eXtremal-ik7/asyncio-go/internal/combiner"
	"github.com/eXtremal-ik7/asyncio-go/internal/finishq"
	"github.com/eXtremal-ik7/asyncio-go/internal/opcore"
	"github.com/eXtremal-ik7/asyncio-go/internal/tagptr"
	"github.com/eXtremal-ik7/asyncio-go/internal/timeoutgrid"
	"github.com/eXtremal-ik7/asyncio-go/internal/winio"
)

const pollTimeoutMillis = 50

// Backend implements opcore.Reactor on top of a Windows I/O
// completion port.
type Backend struct {
	port windows.Handle

	grid *timeoutgrid.Grid

	mu      sync.RWMutex
	objects map[windows.Handle]*opcore.Object

	threadCount int
	queues      []*finishq.Queue

	toErr func(opcore.Status) error
}

func New(toErr func(opcore.Status) error) (*Backend, error) {
	port, err := windows.CreateIoCompletionPort(windows.InvalidHandle, 0, 0, 0)
	if err != nil {
		return nil, err
	}
	return &Backend{
		port:    port,
		grid:    timeoutgrid.New(),
		objects: make(map[windows.Handle]*opcore.Object),
		toErr:   toErr,
	}, nil
}

func (b *Backend) Prepare(threadCount, maxSyncFinished int) {
	b.threadCount = threadCount
	b.queues = make([]*finishq.Queue, threadCount)
	for i := range b.queues {
		b.queues[i] = finishq.New(maxSyncFinished)
	}
}

func (b *Backend) Close() error {
	return windows.CloseHandle(b.port)
}

// Register associates obj's handle with the completion port exactly
// once; unlike epoll/kqueue there is no later re-arm call, which is
// why Arm below does nothing on this backend.
func (b *Backend) Register(obj *opcore.Object) error {
	handle := windows.Handle(obj.Handle)
	if _, err := windows.CreateIoCompletionPort(handle, b.port, 0, 0); err != nil {
		return err
	}
	b.mu.Lock()
	b.objects[handle] = obj
	b.mu.Unlock()
	return nil
}

func (b *Backend) Unregister(obj *opcore.Object) {
	b.mu.Lock()
	delete(b.objects, windows.Handle(obj.Handle))
	b.mu.Unlock()
}

// Arm is a no-op: every unit of overlapped work already carries its
// own completion notification once issued by a winexec executor's
// Execute call, so there is nothing for Phase D to (re-)arm here.
func (b *Backend) Arm(obj *opcore.Object, mask uint32) {}

func (b *Backend) InsertTimeout(op *opcore.Op) { b.grid.Insert(op) }
func (b *Backend) RemoveTimeout(op *opcore.Op) { b.grid.Remove(op) }

// PostQuit posts an empty completion packet (nil overlapped), which
// RunOnce recognizes as a wake with nothing to route.
func (b *Backend) PostQuit() {
	windows.PostQueuedCompletionStatus(b.port, 0, 0, nil)
}

// RunOnce waits for one completion packet, recovers the executor's
// Header via the container-of cast, stashes the result, and pushes a
// readiness bit for whichever side (read or write) the op was queued
// on so the combiner's Phase C re-drives that executor's Execute a
// second time to pick the result up.
func (b *Backend) RunOnce(ctx context.Context, threadIndex int) error {
	fq := b.queues[threadIndex]

	var bytes uint32
	var key uintptr
	var ov *windows.Overlapped
	timeout := uint32(pollTimeoutMillis)
	err := windows.GetQueuedCompletionStatus(b.port, &bytes, &key, &ov, &timeout)
	if ov != nil {
		hdr := winio.FromOverlapped(ov)
		hdr.N = bytes
		hdr.Done = true
		if err != nil {
			hdr.Err = err
		} else {
			hdr.Err = nil
		}

		handle := windows.Handle(key)
		b.mu.RLock()
		obj := b.objects[handle]
		b.mu.RUnlock()
		if obj != nil {
			bits := tagptr.FlagRead
			if !obj.WriteQueue().Empty() {
				bits = tagptr.FlagRead | tagptr.FlagWrite
			}
			combiner.PushCounter(obj, bits, fq)
		}
	}

	now := time.Now()
	if b.threadCount > 0 && int(now.Unix())%b.threadCount == threadIndex {
		b.grid.Sweep(now, func(op *opcore.Op) {
			if op.Object != nil {
				combiner.PushOperation(op.Object, op, opcore.ActionTimeout, fq)
			}
		})
	}

	for _, op := range fq.DrainAll() {
		op.InvokeCallback(b.toErr)
	}
	fq.ResetSynchronous()

	return nil
}

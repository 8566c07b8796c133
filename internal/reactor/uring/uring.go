//go:build linux

// Package uring is the explicit-opt-in MethodURing backend
// (config.go: "never chosen by MethodOSDefault"): a hand-rolled
// io_uring instance, submitting one-shot IORING_OP_POLL_ADD entries
// and reaping their completions instead of epoll_wait, grounded on
// the cloudwego-gopkg iouring package's raw-syscall setup/mmap
// approach (ring.go).
//
// This is readiness multiplexing through io_uring's submission and
// completion rings rather than a true per-read/write SQE completion
// model: every object still drives its queue through the same
// opcore.Executor.Execute nonblocking-syscall contract epoll and
// selectloop use, just woken by a POLL_ADD completion instead of an
// epoll_wait readiness event. A full SQE-per-operation design (read,
// write, accept and connect each as their own opcode, with Execute
// never called at all) would require a second Executor contract
// alongside internal/ioexec's nonblocking one; see DESIGN.md for why
// that was out of scope here.
package uring

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/eXtremal-ik7/asyncio-go/internal/combiner"
	"github.com/eXtremal-ik7/asyncio-go/internal/finishq"
	"github.com/eXtremal-ik7/asyncio-go/internal/opcore"
	"github.com/eXtremal-ik7/asyncio-go/internal/tagptr"
	"github.com/eXtremal-ik7/asyncio-go/internal/timeoutgrid"
)

const (
	queueDepth        = 256
	pollTimeoutMillis = 50

	pollIn  = uint32(unix.POLLIN)
	pollOut = uint32(unix.POLLOUT)
	pollErr = uint32(unix.POLLERR | unix.POLLHUP)
)

// Backend implements opcore.Reactor on top of a hand-rolled io_uring
// instance (see ring.go).
type Backend struct {
	ring *ring

	grid *timeoutgrid.Grid

	mu      sync.RWMutex
	objects map[uint64]*opcore.Object
	wanted  map[uint64]uint32

	wakeFd int

	threadCount int
	queues      []*finishq.Queue

	toErr func(opcore.Status) error
}

// New creates the io_uring instance. Returns a descriptive error
// (rather than panicking) on kernels too old to support it, so callers
// asking for MethodURing get a clean failure from asyncio.New.
func New(toErr func(opcore.Status) error) (*Backend, error) {
	r, err := newRing(queueDepth)
	if err != nil {
		return nil, err
	}
	wakeFd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		r.close()
		return nil, err
	}
	return &Backend{
		ring:    r,
		grid:    timeoutgrid.New(),
		objects: make(map[uint64]*opcore.Object),
		wanted:  make(map[uint64]uint32),
		wakeFd:  wakeFd,
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
	unix.Close(b.wakeFd)
	return b.ring.close()
}

// Register adds obj to this backend's fd table, with no POLL_ADD
// submitted yet — Arm submits the first one.
func (b *Backend) Register(obj *opcore.Object) error {
	b.mu.Lock()
	b.objects[uint64(obj.Handle)] = obj
	b.mu.Unlock()
	return nil
}

func (b *Backend) Unregister(obj *opcore.Object) {
	b.mu.Lock()
	delete(b.objects, uint64(obj.Handle))
	delete(b.wanted, uint64(obj.Handle))
	b.mu.Unlock()
}

// Arm submits a fresh one-shot POLL_ADD for obj's descriptor with
// exactly the bits Phase D decided it still needs; the previous
// POLL_ADD (if any) has already completed by the time Arm is called,
// since Phase D only re-arms after driving the queue to Pending.
func (b *Backend) Arm(obj *opcore.Object, mask uint32) {
	if mask == 0 {
		return
	}
	var pollMask uint32
	if mask&opcore.MaskRead != 0 {
		pollMask |= pollIn
	}
	if mask&opcore.MaskWrite != 0 {
		pollMask |= pollOut
	}
	if mask&opcore.MaskEOF != 0 {
		pollMask |= uint32(unix.POLLRDHUP)
	}
	pollMask |= pollErr

	b.mu.Lock()
	b.wanted[uint64(obj.Handle)] = mask
	b.mu.Unlock()

	b.ring.submitPollAdd(int(obj.Handle), pollMask, uint64(obj.Handle))
}

func (b *Backend) InsertTimeout(op *opcore.Op) { b.grid.Insert(op) }
func (b *Backend) RemoveTimeout(op *opcore.Op) { b.grid.Remove(op) }

func (b *Backend) PostQuit() {
	var buf [8]byte
	buf[7] = 1
	unix.Write(b.wakeFd, buf[:])
}

// RunOnce reaps whatever completions are already queued (bounded by
// pollTimeoutMillis so PostQuit and the timeout sweep stay responsive,
// the same budget epoll and selectloop use), routes each ready
// object's bits into its combiner, sweeps the timeout grid on this
// thread's owned second, and drains this thread's finished-op queue.
func (b *Backend) RunOnce(ctx context.Context, threadIndex int) error {
	fq := b.queues[threadIndex]

	deadline := time.Now().Add(pollTimeoutMillis * time.Millisecond)
	for time.Now().Before(deadline) {
		c := b.ring.waitCQE(pollTimeoutMillis)
		if c == nil {
			break
		}
		b.ring.advanceCQ()

		handle := c.UserData
		b.mu.RLock()
		obj := b.objects[handle]
		wantMask := b.wanted[handle]
		b.mu.RUnlock()
		if obj == nil {
			continue
		}

		revents := uint32(c.Res)
		var bits uint64
		if wantMask&opcore.MaskRead != 0 && revents&(pollIn|uint32(unix.POLLHUP)) != 0 {
			bits |= tagptr.FlagRead
		}
		if wantMask&opcore.MaskWrite != 0 && revents&pollOut != 0 {
			bits |= tagptr.FlagWrite
		}
		if revents&pollErr != 0 {
			bits |= tagptr.FlagError
		}
		if bits != 0 {
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

//go:build darwin || freebsd || netbsd || openbsd || dragonfly

// Package kqueue is the BSD/Darwin MethodKqueue reactor backend
// (spec.md §4.7's edge-triggered readiness row, grounded on
// original_source/src/asyncio/kqueue.c): one-shot EVFILT_READ/
// EVFILT_WRITE registrations re-armed by the combiner's Phase D, a
// single EVFILT_USER event (kqueue.c's "ident 1" trigger) used to wake
// a blocked kevent call for PostQuit, and the same second-granular
// timeout grid epoll uses.
package kqueue

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
	maxEvents = 256

	pollTimeoutMillis = 50

	wakeIdent = 1
)

// Backend implements opcore.Reactor on top of BSD kqueue.
type Backend struct {
	kq int

	grid *timeoutgrid.Grid

	mu      sync.RWMutex
	objects map[int]*opcore.Object

	threadCount int
	queues      []*finishq.Queue

	toErr func(opcore.Status) error
}

// New creates a kqueue backend, matching kqueue.c's
// kqueueNewAsyncBase: one kqueue(2) descriptor plus a registered
// EVFILT_USER wake trigger.
func New(toErr func(opcore.Status) error) (*Backend, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	b := &Backend{
		kq:      kq,
		grid:    timeoutgrid.New(),
		objects: make(map[int]*opcore.Object),
		toErr:   toErr,
	}
	wake := unix.Kevent_t{
		Ident:  wakeIdent,
		Filter: unix.EVFILT_USER,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
	}
	if _, err := unix.Kevent(kq, []unix.Kevent_t{wake}, nil, nil); err != nil {
		unix.Close(kq)
		return nil, err
	}
	return b, nil
}

func (b *Backend) Prepare(threadCount, maxSyncFinished int) {
	b.threadCount = threadCount
	b.queues = make([]*finishq.Queue, threadCount)
	for i := range b.queues {
		b.queues[i] = finishq.New(maxSyncFinished)
	}
}

func (b *Backend) Close() error {
	return unix.Close(b.kq)
}

// Register adds obj to this backend's fd table; no filters are
// registered until the first Arm call.
func (b *Backend) Register(obj *opcore.Object) error {
	b.mu.Lock()
	b.objects[int(obj.Handle)] = obj
	b.mu.Unlock()
	return nil
}

// Unregister removes obj's filters from the kqueue set and its table
// entry.
func (b *Backend) Unregister(obj *opcore.Object) {
	b.mu.Lock()
	delete(b.objects, int(obj.Handle))
	b.mu.Unlock()
	fd := int(obj.Handle)
	changes := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
		{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE},
	}
	unix.Kevent(b.kq, changes, nil, nil)
}

// Arm re-registers obj's descriptor with EV_ONESHOT for exactly the
// filters Phase D decided it still needs, matching epoll's
// EPOLLONESHOT discipline (kqueue has no readiness-levels-stay-armed
// mode analogous to level-triggered epoll that this runtime wants).
func (b *Backend) Arm(obj *opcore.Object, mask uint32) {
	if mask == 0 {
		return
	}
	fd := uint64(obj.Handle)
	var changes []unix.Kevent_t
	if mask&opcore.MaskRead != 0 {
		changes = append(changes, unix.Kevent_t{Ident: fd, Filter: unix.EVFILT_READ, Flags: unix.EV_ADD | unix.EV_ONESHOT})
	}
	if mask&opcore.MaskWrite != 0 {
		changes = append(changes, unix.Kevent_t{Ident: fd, Filter: unix.EVFILT_WRITE, Flags: unix.EV_ADD | unix.EV_ONESHOT})
	}
	if len(changes) == 0 {
		return
	}
	unix.Kevent(b.kq, changes, nil, nil)
}

func (b *Backend) InsertTimeout(op *opcore.Op) { b.grid.Insert(op) }
func (b *Backend) RemoveTimeout(op *opcore.Op) { b.grid.Remove(op) }

// PostQuit triggers the EVFILT_USER wake event, unblocking any thread
// parked in kevent.
func (b *Backend) PostQuit() {
	trigger := unix.Kevent_t{Ident: wakeIdent, Filter: unix.EVFILT_USER, Fflags: unix.NOTE_TRIGGER}
	unix.Kevent(b.kq, []unix.Kevent_t{trigger}, nil, nil)
}

// RunOnce is the per-thread loop body: one kevent batch bounded by
// pollTimeoutMillis, readiness delivered to each ready object's
// combiner, a timeout sweep on whichever thread owns the current
// second, and a drain of this thread's finished-op queue.
func (b *Backend) RunOnce(ctx context.Context, threadIndex int) error {
	fq := b.queues[threadIndex]

	var events [maxEvents]unix.Kevent_t
	timeout := unix.NsecToTimespec(int64(pollTimeoutMillis) * int64(time.Millisecond))
	n, err := unix.Kevent(b.kq, nil, events[:], &timeout)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return err
	}

	for i := 0; i < n; i++ {
		ev := events[i]
		if ev.Filter == unix.EVFILT_USER {
			continue
		}
		fd := int(ev.Ident)
		b.mu.RLock()
		obj := b.objects[fd]
		b.mu.RUnlock()
		if obj == nil {
			continue
		}

		var bits uint64
		switch ev.Filter {
		case unix.EVFILT_READ:
			bits |= tagptr.FlagRead
		case unix.EVFILT_WRITE:
			bits |= tagptr.FlagWrite
		}
		if ev.Flags&unix.EV_EOF != 0 {
			if ev.Fflags != 0 {
				bits |= tagptr.FlagError
			} else {
				bits |= tagptr.FlagRead
			}
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

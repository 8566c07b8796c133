//go:build !windows

// Package selectloop is the MethodSelect reactor backend (spec.md
// §4.7's select-like readiness row): the fallback for systems without
// epoll or kqueue. Unlike epoll's one-shot descriptor registration,
// select has no kernel-side interest set at all, so this backend keeps
// its own fd-indexed interest table and rebuilds the three fd_sets
// from scratch every iteration, exactly as
// original_source/src/asyncio/select.c's aioSelectLoop does.
//
// Per spec.md §4.7's timer-source row, the original backs Realtime ops
// with a single per-process POSIX timer delivered via SIGEV_THREAD_ID
// with the op pointer riding in sival_ptr. Go has no safe analogue of
// receiving a raw pointer through a signal handler, so the facade
// (which is backend-agnostic) arms every Realtime op with a
// goroutine-scheduled time.AfterFunc instead of asking any one backend
// to do it — a cancel-with-timeout on every backend alike, driven by the Go
// runtime's own timer wheel rather than a kernel signal (see
// DESIGN.md's Open Question decision on this substitution).
package selectloop

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

const pollTimeoutMillis = 50

type interest struct {
	obj       *opcore.Object
	wantRead  bool
	wantWrite bool
}

// Backend implements opcore.Reactor on top of POSIX select(2).
type Backend struct {
	wakeR, wakeW int

	grid *timeoutgrid.Grid

	mu        sync.RWMutex
	interests map[int]*interest

	threadCount int
	queues      []*finishq.Queue

	toErr func(opcore.Status) error
}

// New creates a select-loop backend. toErr translates a terminal
// opcore.Status into the error value delivered to user callbacks.
func New(toErr func(opcore.Status) error) (*Backend, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, err
	}
	return &Backend{
		wakeR:     fds[0],
		wakeW:     fds[1],
		grid:      timeoutgrid.New(),
		interests: make(map[int]*interest),
		toErr:     toErr,
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
	unix.Close(b.wakeW)
	return unix.Close(b.wakeR)
}

// Register adds obj to the interest table, initially wanting nothing;
// Arm supplies the real mask once the combiner's Phase D decides it.
func (b *Backend) Register(obj *opcore.Object) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.interests[int(obj.Handle)] = &interest{obj: obj}
	return nil
}

func (b *Backend) Unregister(obj *opcore.Object) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.interests, int(obj.Handle))
}

// Arm records the mask Phase D wants for obj's next select(2) pass;
// unlike epoll there is no kernel call here, just an update to this
// backend's own table.
func (b *Backend) Arm(obj *opcore.Object, mask uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	iv, ok := b.interests[int(obj.Handle)]
	if !ok {
		return
	}
	iv.wantRead = mask&(opcore.MaskRead|opcore.MaskEOF) != 0
	iv.wantWrite = mask&opcore.MaskWrite != 0
}

func (b *Backend) InsertTimeout(op *opcore.Op) { b.grid.Insert(op) }
func (b *Backend) RemoveTimeout(op *opcore.Op) { b.grid.Remove(op) }

func (b *Backend) PostQuit() {
	var buf [1]byte
	unix.Write(b.wakeW, buf[:])
}

// RunOnce is the per-thread loop body: rebuild the fd_sets from the
// interest table, pselect-equivalent with a bounded timeout, route
// readiness to each ready object's combiner, sweep the timeout grid on
// this thread's owned second, and drain this thread's finished-op
// queue (spec.md §4.1 steps 1-6).
func (b *Backend) RunOnce(ctx context.Context, threadIndex int) error {
	fq := b.queues[threadIndex]

	var rfds, wfds unix.FdSet
	maxFd := b.wakeR
	fdSet(&rfds, b.wakeR)

	b.mu.RLock()
	snapshot := make([]*interest, 0, len(b.interests))
	for fd, iv := range b.interests {
		snapshot = append(snapshot, iv)
		if iv.wantRead {
			fdSet(&rfds, fd)
		}
		if iv.wantWrite {
			fdSet(&wfds, fd)
		}
		if fd > maxFd {
			maxFd = fd
		}
	}
	b.mu.RUnlock()

	timeout := unix.Timeval{Sec: 0, Usec: pollTimeoutMillis * 1000}
	n, err := unix.Select(maxFd+1, &rfds, &wfds, nil, &timeout)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return err
	}

	if n > 0 && fdIsSet(&rfds, b.wakeR) {
		var buf [64]byte
		for {
			if _, err := unix.Read(b.wakeR, buf[:]); err != nil {
				break
			}
		}
	}

	for _, iv := range snapshot {
		fd := int(iv.obj.Handle)
		var bits uint64
		if iv.wantRead && fdIsSet(&rfds, fd) {
			bits |= tagptr.FlagRead
		}
		if iv.wantWrite && fdIsSet(&wfds, fd) {
			bits |= tagptr.FlagWrite
		}
		if bits != 0 {
			combiner.PushCounter(iv.obj, bits, fq)
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

func fdSet(set *unix.FdSet, fd int) {
	set.Bits[fd/64] |= 1 << (uint(fd) % 64)
}

func fdIsSet(set *unix.FdSet, fd int) bool {
	return set.Bits[fd/64]&(1<<(uint(fd)%64)) != 0
}

//go:build linux

// Package epoll is the Linux MethodEpoll reactor backend (spec.md
// §4.7's edge-triggered readiness row): one-shot EPOLLONESHOT
// registrations re-armed by the combiner's Phase D, a per-process
// eventfd used only to interrupt a blocked epoll_wait for PostQuit,
// and the second-granular timeout grid swept by whichever thread owns
// the current wall-clock second.
package epoll

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

const maxEvents = 256

// pollTimeoutMillis bounds how long one RunOnce call may block in
// epoll_wait, which in turn bounds the latency of the per-second
// timeout sweep and of a PostQuit call racing a thread that is not
// currently blocked inside the kernel call.
const pollTimeoutMillis = 50

// Backend implements opcore.Reactor on top of Linux epoll.
type Backend struct {
	epfd   int
	wakeFd int

	grid *timeoutgrid.Grid

	mu      sync.RWMutex
	objects map[int32]*opcore.Object

	threadCount int
	queues      []*finishq.Queue

	toErr func(opcore.Status) error
}

// New creates an epoll backend. toErr translates a terminal
// opcore.Status into the error value delivered to user callbacks; it
// is supplied by the root facade so this package never has to import
// it back.
func New(toErr func(opcore.Status) error) (*Backend, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	wakeFd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		unix.Close(epfd)
		return nil, err
	}
	b := &Backend{
		epfd:    epfd,
		wakeFd:  wakeFd,
		grid:    timeoutgrid.New(),
		objects: make(map[int32]*opcore.Object),
		toErr:   toErr,
	}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFd, &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakeFd)}); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

// Prepare must be called once, before Start, with the loop pool's
// fixed thread count: each thread gets its own finishq.Queue, per
// spec.md §4.5's one-queue-per-loop-thread rule.
func (b *Backend) Prepare(threadCount, maxSyncFinished int) {
	b.threadCount = threadCount
	b.queues = make([]*finishq.Queue, threadCount)
	for i := range b.queues {
		b.queues[i] = finishq.New(maxSyncFinished)
	}
}

// Close releases the backend's file descriptors.
func (b *Backend) Close() error {
	unix.Close(b.wakeFd)
	return unix.Close(b.epfd)
}

// Register adds obj's descriptor to the epoll set, disarmed — the
// combiner's first Phase D call supplies the real event mask via Arm.
func (b *Backend) Register(obj *opcore.Object) error {
	b.mu.Lock()
	b.objects[int32(obj.Handle)] = obj
	b.mu.Unlock()
	return unix.EpollCtl(b.epfd, unix.EPOLL_CTL_ADD, int(obj.Handle), &unix.EpollEvent{Fd: int32(obj.Handle)})
}

// Unregister removes obj from the epoll set; called from the object's
// destructor once both its queues are empty.
func (b *Backend) Unregister(obj *opcore.Object) {
	b.mu.Lock()
	delete(b.objects, int32(obj.Handle))
	b.mu.Unlock()
	unix.EpollCtl(b.epfd, unix.EPOLL_CTL_DEL, int(obj.Handle), nil)
}

// Arm implements opcore.Reactor: rearm obj's descriptor in one-shot
// mode with exactly the events Phase D decided it still needs.
func (b *Backend) Arm(obj *opcore.Object, mask uint32) {
	if mask == 0 {
		return
	}
	events := uint32(unix.EPOLLONESHOT)
	if mask&opcore.MaskRead != 0 {
		events |= unix.EPOLLIN
	}
	if mask&opcore.MaskWrite != 0 {
		events |= unix.EPOLLOUT
	}
	if mask&opcore.MaskEOF != 0 {
		events |= unix.EPOLLRDHUP
	}
	unix.EpollCtl(b.epfd, unix.EPOLL_CTL_MOD, int(obj.Handle), &unix.EpollEvent{Events: events, Fd: int32(obj.Handle)})
}

// InsertTimeout enters op into the second-granular grid, resolving its
// deadline from op.EndTime (the submission path has already turned
// Timeout into an absolute EndTime before calling this).
func (b *Backend) InsertTimeout(op *opcore.Op) {
	b.grid.Insert(op)
}

// RemoveTimeout cancels op's pending grid entry, called once it
// finishes through any other path.
func (b *Backend) RemoveTimeout(op *opcore.Op) {
	b.grid.Remove(op)
}

// PostQuit wakes every thread currently blocked in epoll_wait. Each
// thread's own RunOnce loop still exits on ctx.Done(), driven by
// internal/looppool; PostQuit only shortens the wait.
func (b *Backend) PostQuit() {
	var buf [8]byte
	buf[7] = 1
	unix.Write(b.wakeFd, buf[:])
}

// RunOnce is the per-thread loop body internal/looppool calls
// repeatedly: one epoll_wait batch, readiness delivered to each ready
// object's combiner, a timeout sweep on whichever thread owns the
// current second (spec.md §4.1 step 4), and a drain of this thread's
// finished-op queue (spec.md §4.5).
func (b *Backend) RunOnce(ctx context.Context, threadIndex int) error {
	fq := b.queues[threadIndex]

	var events [maxEvents]unix.EpollEvent
	n, err := unix.EpollWait(b.epfd, events[:], pollTimeoutMillis)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return err
	}

	for i := 0; i < n; i++ {
		fd := events[i].Fd
		if int(fd) == b.wakeFd {
			var buf [8]byte
			unix.Read(b.wakeFd, buf[:])
			continue
		}
		b.mu.RLock()
		obj := b.objects[fd]
		b.mu.RUnlock()
		if obj == nil {
			continue
		}

		ev := events[i].Events
		var bits uint64
		if ev&(unix.EPOLLIN|unix.EPOLLHUP) != 0 {
			bits |= tagptr.FlagRead
		}
		if ev&unix.EPOLLOUT != 0 {
			bits |= tagptr.FlagWrite
		}
		if ev&unix.EPOLLERR != 0 {
			bits |= tagptr.FlagError
		} else if ev&unix.EPOLLRDHUP != 0 {
			// Peer hung up: bytes still buffered are read first; only an
			// empty receive buffer fails the queues as Disconnected.
			if avail, err := unix.IoctlGetInt(int(fd), unix.SIOCINQ); err == nil && avail > 0 {
				bits |= tagptr.FlagRead
			} else {
				bits |= tagptr.FlagError
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

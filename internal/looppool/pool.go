// Package looppool owns the fixed pool of OS-thread-pinned goroutines
// that each run a reactor backend's event loop, per spec.md §5 and
// SPEC_FULL.md §7: one pinned goroutine per configured thread, each
// repeatedly calling the backend's RunOnce until the pool's context is
// canceled or a thread reports a fatal error.
//
// Adapted from ygrebnov-workers' dispatcher/worker split: that package
// dispatches tasks pulled off a channel to a worker pool; here there is
// no task channel at all, since each thread's "task" is simply to keep
// calling the same RunOnce forever, so the dispatcher collapses into a
// fixed set of long-lived goroutines tracked the same way
// (sync.WaitGroup for inflight, a single Once-guarded shutdown sequence
// modeled on lifecycleCoordinator.Close).
package looppool

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/ygrebnov/errorc"
)

// RunOnce drives one iteration of a reactor backend's loop on thread
// threadIndex (0-based, stable for the goroutine's lifetime — the
// timeout grid's sweep-ownership rule keys off it: spec.md §4.1 step 4
// "currentSecond % threadCount == myThreadID"). It should block for at
// most a bounded poll interval and return nil on a normal iteration, or
// a non-nil error only for a condition the thread cannot recover from.
type RunOnce func(ctx context.Context, threadIndex int) error

// Pool runs n RunOnce loops in parallel, each pinned to its own OS
// thread via runtime.LockOSThread (required by several reactor
// backends: epoll's one-shot rearm and kqueue's kevent both assume the
// registering thread keeps polling the same descriptor set).
type Pool struct {
	threadCount int
	runOnce     RunOnce

	wg     sync.WaitGroup
	cancel context.CancelFunc

	fatal     atomic.Pointer[error]
	fatalOnce sync.Once
	closeOnce sync.Once
}

// New returns a pool sized to n threads. n must be > 0.
func New(n int, runOnce RunOnce) *Pool {
	if n <= 0 {
		panic("looppool: thread count must be > 0")
	}
	return &Pool{threadCount: n, runOnce: runOnce}
}

// ThreadCount reports the pool's fixed thread count.
func (p *Pool) ThreadCount() int {
	return p.threadCount
}

// Start launches one pinned goroutine per thread. It returns
// immediately; use Wait or Close to block until the pool stops.
func (p *Pool) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.wg.Add(p.threadCount)
	for i := 0; i < p.threadCount; i++ {
		go p.runThread(ctx, i)
	}
}

func (p *Pool) runThread(ctx context.Context, index int) {
	defer p.wg.Done()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	defer func() {
		if r := recover(); r != nil {
			p.reportFatal(index, fmt.Errorf("panic: %v", r))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := p.runOnce(ctx, index); err != nil {
			p.reportFatal(index, err)
			return
		}
	}
}

// fatalError carries the structured, errorc-tagged description of a
// thread failure alongside the original cause, so callers can both
// read a readable message and errors.Is/As through to the underlying
// error regardless of how errorc itself represents the chain.
type fatalError struct {
	threadIndex int
	cause       error
	tagged      error
}

func (e *fatalError) Error() string { return e.tagged.Error() }
func (e *fatalError) Unwrap() error { return e.cause }

func (p *Pool) reportFatal(index int, cause error) {
	tagged := errorc.New("looppool: thread %d stopped", index).
		With("thread", index).
		With("cause", cause)
	p.fatalOnce.Do(func() {
		var e error = &fatalError{threadIndex: index, cause: cause, tagged: tagged}
		p.fatal.Store(&e)
		if p.cancel != nil {
			p.cancel()
		}
	})
}

// Err returns the first fatal error reported by any thread, or nil if
// none has occurred. A fatal error also cancels every other thread in
// the pool, so once Err is non-nil the pool is winding down.
func (p *Pool) Err() error {
	if e := p.fatal.Load(); e != nil {
		return *e
	}
	return nil
}

// Wait blocks until every thread has exited, either because the
// context passed to Start was canceled or a thread reported a fatal
// error.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Close cancels every thread and blocks until they have all exited.
// Safe to call more than once; the shutdown sequence runs exactly
// once, mirroring ygrebnov-workers' lifecycleCoordinator.Close.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
		p.wg.Wait()
	})
}

// Package asyncio is the thin I/O facade from spec.md §4.4/§6: the
// public entry points that build or recycle an operation record, try a
// synchronous fast path, and otherwise hand off to the per-object
// combiner (internal/combiner) and whichever reactor backend a Base
// was constructed with. Base itself plays the role of spec.md §4.1's
// asyncBase: it owns the reactor's OS wait primitive (via the selected
// backend), the fixed pool of loop threads (internal/looppool) and the
// shared operation-record pool.
package asyncio

import (
	"context"
	"fmt"
	"sync"

	"github.com/eXtremal-ik7/asyncio-go/coro"
	"github.com/eXtremal-ik7/asyncio-go/event"
	"github.com/eXtremal-ik7/asyncio-go/internal/finishq"
	"github.com/eXtremal-ik7/asyncio-go/internal/logging"
	"github.com/eXtremal-ik7/asyncio-go/internal/looppool"
	"github.com/eXtremal-ik7/asyncio-go/internal/opcore"
	"github.com/eXtremal-ik7/asyncio-go/internal/pool"
)

// userEventQueueDepth bounds the backlog of activated user events and
// expired timer periods waiting for the dispatch goroutine (events.go)
// to run their callbacks. It is generous rather than tight: spec.md §8
// scenario 5 posts 1000 ops through the combiner, not through this
// queue, so ordinary workloads stay far below it.
const userEventQueueDepth = 4096

// deferredFinishQueueDepth bounds the backlog of ops that the
// synchronous fast path (spec.md §4.4 step 3c) has pushed off the
// submitting goroutine's call stack, waiting for the dispatcher
// goroutine to run their callbacks. Generous for the same reason as
// userEventQueueDepth: ordinary workloads finish ops far faster than
// this could fill.
const deferredFinishQueueDepth = 4096

// reactorBackend is the contract every Method implementation
// (epoll, selectloop, uring, kqueue, iocp) satisfies. It is unexported
// because callers select a backend only indirectly, through Method.
type reactorBackend interface {
	opcore.Reactor
	Register(obj *opcore.Object) error
	Unregister(obj *opcore.Object)
	InsertTimeout(op *opcore.Op)
	RemoveTimeout(op *opcore.Op)
	PostQuit()
	RunOnce(ctx context.Context, threadIndex int) error
	Prepare(threadCount, maxSyncFinished int)
	Close() error
}

// Base is the runtime's reactor handle: spec.md §4.1's asyncBase.
// Multiple goroutines may call Run on the same Base; New selects the
// backend once, for the Base's whole lifetime (spec.md §6 "no runtime
// reconfiguration").
type Base struct {
	cfg     *Config
	backend reactorBackend
	pool    *looppool.Pool
	opPool  *pool.Pool[*opcore.Op]
	logger  *logging.Logger
	metrics Observer

	userEvents chan *event.UserEvent

	// finishQueues makes runCombinerAndDrain reentrant per goroutine
	// (spec.md §4.5): a callback invoked while draining one call's
	// finishq.Queue that itself submits new work reuses the same
	// queue and synchronous-finish budget instead of opening a fresh
	// one, so a chain of synchronously-completing submissions cannot
	// recurse the native call stack.
	finishQueues sync.Map // goroutine id (uint64) -> *finishq.Queue

	// deferredFinishes carries ops that dispatchFinished decided must
	// not run on the submitting goroutine (step 3c): the dispatcher
	// goroutine started by Run drains it and invokes each callback off
	// that stack entirely.
	deferredFinishes chan *opcore.Op
}

// New is the createAsyncBase entry point (spec.md §6). MethodOSDefault
// selects completion-based on Windows, edge-triggered readiness on
// Linux, kqueue on BSD/Darwin, and the select-based loop everywhere
// else, per spec.md §4.1.
func New(opts ...Option) (*Base, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.LoopThreads <= 0 {
		cfg.LoopThreads = defaultLoopThreads()
	}

	b := &Base{cfg: cfg, logger: cfg.Logger, metrics: cfg.Observer}
	b.opPool = pool.New[*opcore.Op](pool.ClassOp, opcore.NewOp)
	b.userEvents = make(chan *event.UserEvent, userEventQueueDepth)
	b.deferredFinishes = make(chan *opcore.Op, deferredFinishQueueDepth)

	backend, err := newBackend(cfg.Method, b.toErr)
	if err != nil {
		return nil, fmt.Errorf("asyncio: %w", err)
	}
	backend.Prepare(cfg.LoopThreads, cfg.MaxSynchronousFinished)
	b.backend = backend
	b.pool = looppool.New(cfg.LoopThreads, backend.RunOnce)
	return b, nil
}

// Run starts the Base's fixed pool of loop threads and blocks until
// ctx is canceled, PostQuit is called once per running thread, or a
// thread reports a fatal error (spec.md §4.1 "run(&self)").
func (b *Base) Run(ctx context.Context) error {
	dispatchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go b.runUserEvents(dispatchCtx)
	go b.runDeferredFinishes(dispatchCtx)

	b.pool.Start(ctx)
	b.pool.Wait()
	return b.pool.Err()
}

// runUserEvents is the dispatch goroutine backing PostUserEvent
// (events.go): spec.md §4.1 step 5 wants an activated user event's
// callback to run "on a loop thread". None of the five reactor
// backends share a single wake primitive Base could hook into
// uniformly (spec.md §4.7's wake-mechanism row differs per backend),
// so user events get their own dedicated loop thread instead of
// riding a particular backend's wake pipe.
func (b *Base) runUserEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-b.userEvents:
			ev.Fire()
		}
	}
}

// runDeferredFinishes is the dispatcher goroutine backing step 3c of
// spec.md §4.4's synchronous fast path: every op that dispatchFinished
// decided not to run on its submitting goroutine runs its callback
// here instead, off that goroutine's stack entirely, indistinguishable
// from an op that was genuinely still pending when submit returned.
func (b *Base) runDeferredFinishes(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case op := <-b.deferredFinishes:
			op.InvokeCallback(b.toErr)
		}
	}
}

// PostQuit injects one wake message per configured loop thread, each
// of which exits after consuming its own (spec.md §4.1 "post_quit").
func (b *Base) PostQuit() {
	for i := 0; i < b.cfg.LoopThreads; i++ {
		b.backend.PostQuit()
	}
}

// Close releases the backend's OS resources. Call only after Run has
// returned.
func (b *Base) Close() error {
	return b.backend.Close()
}

// Arm implements opcore.Reactor for the objects this Base owns,
// delegating straight to the selected backend.
func (b *Base) Arm(obj *opcore.Object, mask uint32) {
	b.backend.Arm(obj, mask)
	b.metrics.ObserveReactorRearm()
}

// runCombinerAndDrain is the shared entry point for every facade call
// that might make the calling goroutine the combiner owner (spec.md
// §4.2: "If the previous value was 0, the caller becomes the
// combiner-owner"). fn receives a call-scoped finishq.Queue; once fn
// returns, the combiner loop it may have run to completion has already
// finished, so every op it deferred is drained and handed to
// dispatchFinished, on the calling goroutine, before
// runCombinerAndDrain returns. This is what lets submission happen
// from any thread without blocking (spec.md §5) while still
// guaranteeing each callback runs exactly once (spec.md §8 P2).
//
// The queue is keyed by goroutine id in finishQueues so a reentrant
// call — dispatchFinished running a callback inline that itself
// submits new work — reuses the outer call's queue and
// synchronous-finish budget rather than opening a fresh one. Without
// this, a chain of synchronously-completing submissions would recurse
// the native call stack one frame per link (spec.md §4.5); with it,
// the outer loop below just keeps draining newly-appended ops until
// the queue runs dry, bounding stack depth to one runCombinerAndDrain
// frame regardless of chain length.
func (b *Base) runCombinerAndDrain(fn func(fq *finishq.Queue)) {
	id := coro.GoroutineID()
	if v, ok := b.finishQueues.Load(id); ok {
		fn(v.(*finishq.Queue))
		return
	}

	fq := finishq.New(b.cfg.MaxSynchronousFinished)
	b.finishQueues.Store(id, fq)
	defer b.finishQueues.Delete(id)

	fn(fq)
	for {
		drained := fq.DrainAll()
		if len(drained) == 0 {
			return
		}
		for _, op := range drained {
			b.dispatchFinished(op, fq)
		}
	}
}

// dispatchFinished applies spec.md §4.4 step 3's policy to one op that
// just reached a terminal status:
//
//   - FlagSerialized (3a) always runs the callback inline, regardless
//     of the synchronous-finish budget — the caller explicitly asked
//     for its callback to run before the submission call returns.
//   - A callback-less op, or one flagged ActiveOnce or RunningHot
//     (3b), resolves inline by return value alone as long as the
//     budget still has room: SuppressDelivery is set first so the
//     facade's own Callback closure still clears the timeout and
//     returns the pool op without invoking the opcode-specific
//     delivery the caller has no way to receive synchronously anyway.
//   - Everything else (3c), including a 3b candidate once the budget
//     is exhausted, is handed to the deferred dispatcher goroutine so
//     its callback never runs on this call stack — externally
//     indistinguishable from the ErrPending "still pending" case.
func (b *Base) dispatchFinished(op *opcore.Op, fq *finishq.Queue) {
	switch {
	case op.Flags.Has(FlagSerialized):
		op.InvokeCallback(b.toErr)
	case (op.NoUserCallback || op.Flags.Has(FlagActiveOnce) || op.Flags.Has(FlagRunningHot)) && fq.ReserveSynchronous():
		op.SuppressDelivery = true
		op.InvokeCallback(b.toErr)
	default:
		b.deferredFinishes <- op
	}
}

// toErr translates a terminal opcore.Status into the error value
// delivered to user callbacks, closing over nothing backend-specific
// so it can be handed to any reactor package without that package
// importing the root.
func (b *Base) toErr(status opcore.Status) error {
	if status == opcore.StatusSuccess {
		return nil
	}
	return NewError("", status, status.String())
}

func defaultLoopThreads() int {
	n := numCPU()
	if n < 1 {
		return 1
	}
	return n
}

// Package coro implements the stackful coroutine layer from spec.md
// §3.5/§4.6: a coroutine runs a function to completion or until it
// yields, handing control back to whichever caller is currently
// waiting on it. Nesting is legal — a running coroutine may itself
// call another coroutine, forming a chain per OS thread.
//
// Go offers no user-mode stack-switch primitive (no setjmp/ucontext,
// no goroutine-local storage), so this package realizes the contract
// with one goroutine per coroutine and a pair of one-slot buffered
// channels for the call/yield handoff, per SPEC_FULL.md §6.6. Current() needs
// to answer "which *Coroutine owns the CPU on the calling goroutine"
// without a handle being threaded through every call; since at most
// one goroutine in a chain is ever unblocked at a time, the calling
// goroutine's own runtime-assigned id is a sound stand-in for "thread
// identity" here, and a small registry keyed on that id gives Current
// and Yield their free-function signatures. See DESIGN.md for why this
// was chosen over importing a goroutine-local-storage library.
package coro

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
)

// Entry is the body a coroutine runs. It receives the argument passed
// to New and runs until it returns or the coroutine is abandoned.
type Entry func(arg any)

// Coroutine is a single resumable call chain. The zero value is not
// usable; construct one with New.
type Coroutine struct {
	entry Entry
	arg   any

	parent *Coroutine

	resumeCh chan any
	yieldCh  chan struct{}

	started  atomic.Bool
	finished atomic.Bool
}

var registry sync.Map // uint64 goroutine id -> *Coroutine

// GoroutineID returns the calling goroutine's runtime-assigned id, the
// same identity Current uses to key its coroutine registry. Exported
// so other packages that need a similar per-goroutine (thread-local
// equivalent) registry — the facade's reentrant synchronous-finish
// queue, for one — don't reimplement the runtime.Stack parse.
func GoroutineID() uint64 {
	return goroutineID()
}

func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	const prefix = "goroutine "
	b = bytes.TrimPrefix(b, []byte(prefix))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, _ := strconv.ParseUint(string(b), 10, 64)
	return id
}

// New creates a coroutine that will run entry(arg) on its own
// goroutine once first Called. stackSize is accepted for parity with
// the original fixed-stack contract; Go's growable goroutine stacks
// make it unused here.
func New(entry Entry, arg any, stackSize int) *Coroutine {
	_ = stackSize
	return &Coroutine{
		entry:    entry,
		arg:      arg,
		resumeCh: make(chan any, 1),
		yieldCh:  make(chan struct{}, 1),
	}
}

// Current returns the coroutine that owns the CPU on the calling
// goroutine: the Coroutine whose entry is currently executing, or an
// implicit main coroutine if the calling goroutine has never been the
// target of a Call (spec.md §4.6 "a main coroutine exists implicitly
// per thread").
func Current() *Coroutine {
	id := goroutineID()
	if v, ok := registry.Load(id); ok {
		return v.(*Coroutine)
	}
	main := &Coroutine{}
	actual, _ := registry.LoadOrStore(id, main)
	return actual.(*Coroutine)
}

// Finished reports whether the coroutine's entry has returned.
func (c *Coroutine) Finished() bool {
	return c.finished.Load()
}

// IsMain reports whether c is an implicit main coroutine rather than
// one created with New.
func (c *Coroutine) IsMain() bool {
	return c.entry == nil
}

// InCoroutine reports whether the calling goroutine is currently
// running inside a coroutine's entry, as opposed to a thread's
// implicit main coroutine. The coroutine-form facade entry points
// (IoRead, IoAccept, ...) require this before they may call Yield.
func InCoroutine() bool {
	return !Current().IsMain()
}

// Call transfers control to c: starting it on a fresh goroutine if
// this is the first call, or resuming it from wherever it last
// yielded otherwise. Call blocks the calling goroutine until c yields
// again or its entry returns. Only the coroutine currently owning the
// CPU on a thread may meaningfully Call another — spec.md's nested
// chains form by a running coroutine calling a fresh or previously
// yielded one, which is exactly what happens here since Call always
// runs on whatever goroutine is currently executing.
//
// Calling an already-finished coroutine is a no-op and returns true
// immediately.
func (c *Coroutine) Call() (finished bool) {
	if c.finished.Load() {
		return true
	}
	if !c.started.Swap(true) {
		c.parent = Current()
		go c.run()
	} else {
		c.resumeCh <- nil
	}
	<-c.yieldCh
	return c.finished.Load()
}

func (c *Coroutine) run() {
	id := goroutineID()
	registry.Store(id, c)
	defer registry.Delete(id)

	c.entry(c.arg)

	c.finished.Store(true)
	c.yieldCh <- struct{}{}
}

// Yield suspends the currently running coroutine, handing control
// back to whoever last called it, and parks until it is Called again.
// Yield on a main coroutine is a no-op (spec.md §4.6): a thread's main
// coroutine has no caller waiting on a yield signal.
func Yield() {
	c := Current()
	if c.IsMain() {
		return
	}
	c.yieldCh <- struct{}{}
	<-c.resumeCh
}

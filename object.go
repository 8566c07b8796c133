package asyncio

import (
	"sync"

	"github.com/eXtremal-ik7/asyncio-go/internal/combiner"
	"github.com/eXtremal-ik7/asyncio-go/internal/finishq"
	"github.com/eXtremal-ik7/asyncio-go/internal/opcore"
	"github.com/eXtremal-ik7/asyncio-go/internal/tagptr"
)

// Object is the public handle to an I/O object (spec.md §3.1): a
// stream socket, datagram socket, device, timer or user-event,
// wrapping the internal opcore.Object the combiner and reactor operate
// on directly. Callers never touch the wrapped type's fields; every
// mutation goes through the combiner (internal/opcore's own invariant,
// preserved unchanged at this layer).
type Object struct {
	base *Base
	obj  *opcore.Object

	closeOnce sync.Once
}

// Handle returns the underlying OS descriptor (or virtual index for
// timer/user objects).
func (o *Object) Handle() uintptr { return o.obj.Handle }

// Kind reports which of spec.md §3.1's object kinds this is.
func (o *Object) Kind() opcore.Kind { return o.obj.Kind }

func newObject(base *Base, kind opcore.Kind, handle uintptr) *Object {
	o := &Object{base: base}
	o.obj = opcore.NewObject(kind, handle, base, nil)
	o.obj.Destructor = func() { o.destroy() }
	return o
}

// NewStreamSocket wraps an already-created, already-nonblocking stream
// socket descriptor (e.g. from unix.Socket or a raw-conn dup) as an
// Object usable with AsyncConnect/AsyncAccept/AsyncRead/AsyncWrite.
func (b *Base) NewStreamSocket(fd int) *Object {
	o := newObject(b, opcore.KindStreamSocket, uintptr(fd))
	b.register(o)
	return o
}

// NewDatagramSocket wraps a nonblocking datagram socket descriptor as
// an Object usable with AsyncReadMsg/AsyncWriteMsg.
func (b *Base) NewDatagramSocket(fd int) *Object {
	o := newObject(b, opcore.KindDatagramSocket, uintptr(fd))
	b.register(o)
	return o
}

// NewDevice wraps a nonblocking character-device descriptor as an
// Object usable with AsyncRead/AsyncWrite, the same as a stream
// socket but without EOF-as-Disconnected semantics.
func (b *Base) NewDevice(fd int) *Object {
	o := newObject(b, opcore.KindDevice, uintptr(fd))
	b.register(o)
	return o
}

func (b *Base) register(o *Object) {
	if err := b.backend.Register(o.obj); err != nil {
		b.logger.Warn("object registration failed", "handle", o.obj.Handle, "err", err)
	}
}

// destroy runs exactly once, invoked by the combiner's destructor gate
// (internal/combiner) once FlagDelete is set, both queues are empty,
// and RefCount has reached zero (spec.md §3.1 invariant, tested as
// P6). The gate itself enforces that precondition; destroy only needs
// closeOnce because the gate can re-enter on the same object more than
// once (an AddRef/Release pair arriving after delete wakes it again).
func (o *Object) destroy() {
	o.closeOnce.Do(func() {
		o.base.backend.Unregister(o.obj)
		closeHandle(o.obj)
	})
}

// Delete marks obj for destruction (spec.md §5 "delete(object) sets
// DELETE and CANCEL_ALL; destructor runs when queues drain"). Every
// queued operation finishes with Canceled before the descriptor is
// closed. Delete also releases the implicit reference NewObject took
// out at construction, so the destructor runs immediately once the
// queues drain unless a caller holds its own AddRef; in that case
// teardown waits for that caller's matching Release.
func (o *Object) Delete() {
	o.base.runCombinerAndDrain(func(fq *finishq.Queue) {
		combiner.PushCounter(o.obj, tagptr.FlagDelete|tagptr.FlagCancelAll, fq)
	})
	o.Release()
}

// CancelIO cancels every operation currently queued on obj, in queue
// order (spec.md §5, tested as P3).
func (o *Object) CancelIO() {
	o.base.runCombinerAndDrain(func(fq *finishq.Queue) {
		combiner.PushCounter(o.obj, tagptr.FlagCancelAll, fq)
	})
}

// AddRef takes out an additional reference on obj (spec.md §3.1):
// while held, the combiner's destructor gate withholds teardown even
// after Delete has set FlagDelete and the queues have drained.
func (o *Object) AddRef() { o.obj.AddRef() }

// Release drops a reference taken with AddRef (or the implicit one
// Delete drops on the caller's behalf) and reports whether it reached
// zero. A Release that reaches zero re-enters the combiner carrying
// FlagRefCheck so a pending delete's destructor gate, which only the
// combiner loop evaluates, gets rechecked even though no new operation
// or reactor event is arriving to trigger that recheck on its own.
func (o *Object) Release() bool {
	reachedZero := o.obj.Release()
	if reachedZero {
		o.base.runCombinerAndDrain(func(fq *finishq.Queue) {
			combiner.PushCounter(o.obj, tagptr.FlagRefCheck, fq)
		})
	}
	return reachedZero
}

// RefCount returns obj's current reference count, mainly for tests.
func (o *Object) RefCount() int32 { return o.obj.RefCount() }

package opcore

import (
	"sync/atomic"

	"github.com/eXtremal-ik7/asyncio-go/internal/tagptr"
)

// Kind names what an Object represents (spec.md §3.1).
type Kind int

const (
	KindStreamSocket Kind = iota
	KindDatagramSocket
	KindDevice
	KindTimer
	KindUser
)

func (k Kind) String() string {
	switch k {
	case KindStreamSocket:
		return "stream-socket"
	case KindDatagramSocket:
		return "datagram-socket"
	case KindDevice:
		return "device"
	case KindTimer:
		return "timer"
	case KindUser:
		return "user"
	default:
		return "unknown"
	}
}

// Readiness mask bits, combined by the combiner's Phase D to tell the
// reactor which events a descriptor-backed object currently needs
// (spec.md §4.2 Phase D).
const (
	MaskRead uint32 = 1 << iota
	MaskWrite
	MaskEOF
)

// Reactor is the subset of the reactor base an Object needs: a way to
// (re)arm its registration in one-shot mode with a desired event mask.
// Defined here, rather than imported from the root package, to keep
// opcore leaf-level and cycle-free; the root Base type satisfies it.
type Reactor interface {
	Arm(obj *Object, mask uint32)
}

// Object represents a kernel I/O endpoint or a virtual (timer/user)
// transport (spec.md §3.1). Its tag word is the combiner's sole
// synchronization variable; its two queues are singly-threaded lists
// mutated only by whichever goroutine currently owns the combiner.
type Object struct {
	Kind   Kind
	Handle uintptr
	Base   Reactor

	tag      tagptr.ObjectTag
	refcount atomic.Int32

	readQueue  opQueue
	writeQueue opQueue
	announce   announceQueue

	Destructor func()

	ReadinessMask uint32 // readiness backends only

	// PendingDelete is the combiner's own record that FlagDelete has been
	// observed at least once, surviving across rounds even though the
	// tag bit itself is consumed (subtracted) every round along with
	// every other status bit Phase A handled. Touched only by whichever
	// goroutine currently owns the combiner, same as the two queues, so
	// it needs no atomic: a plain field is exactly as safe here as
	// readQueue/writeQueue.
	PendingDelete bool
}

// NewObject constructs an object with an initial refcount of one.
func NewObject(kind Kind, handle uintptr, base Reactor, destructor func()) *Object {
	o := &Object{
		Kind:       kind,
		Handle:     handle,
		Base:       base,
		Destructor: destructor,
	}
	o.refcount.Store(1)
	return o
}

// Tag returns the object's combiner synchronization word.
func (o *Object) Tag() *tagptr.ObjectTag {
	return &o.tag
}

// AddRef increments the object's external reference count. Per
// spec.md §3.1, the combiner's destructor gate will not fire while
// this count is above zero, even once FlagDelete is set and both
// queues have drained.
func (o *Object) AddRef() {
	o.refcount.Add(1)
}

// Release decrements the reference count and reports whether it
// reached zero. Release itself does not run the destructor or touch
// the combiner: callers that need a Release reaching zero to actually
// trigger teardown (the root package's Object.Release) must follow a
// true result with a combiner re-entry carrying tagptr.FlagRefCheck,
// so the destructor gate in internal/combiner gets rechecked.
func (o *Object) Release() (reachedZero bool) {
	return o.refcount.Add(-1) == 0
}

// RefCount returns the current reference count, mainly for tests.
func (o *Object) RefCount() int32 {
	return o.refcount.Load()
}

// QueueFor returns the queue op belongs on: the write queue for
// write-side opcodes, the read queue otherwise.
func (o *Object) QueueFor(op *Op) *opQueue {
	if op.Opcode.WriteSide() {
		return &o.writeQueue
	}
	return &o.readQueue
}

// ReadQueue exposes the read-side queue for the combiner loop.
func (o *Object) ReadQueue() *opQueue { return &o.readQueue }

// WriteQueue exposes the write-side queue for the combiner loop.
func (o *Object) WriteQueue() *opQueue { return &o.writeQueue }

// Announce exposes the announcement inbox for push_operation/
// push_counter callers outside the combiner.
func (o *Object) Announce() *announceQueue { return &o.announce }

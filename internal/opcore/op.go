package opcore

import (
	"net"
	"time"

	"github.com/eXtremal-ik7/asyncio-go/internal/tagptr"
)

// Callback is the user-visible completion signature. n is the number
// of bytes transferred (valid when err is nil); err is nil only on
// StatusSuccess.
type Callback func(op *Op, n int, err error)

// Executor is the per-opcode vtable from spec.md §3.2/§9: "model as a
// trait/interface with three methods; each opcode is a variant that
// implements the trait." Execute performs the backend-specific
// syscall attempt; Finish and Cancel run opcode-specific cleanup (e.g.
// closing an accepted descriptor that the caller never claimed,
// releasing a write's owned scratch buffer) before Op's generic finish
// path invokes the user callback.
type Executor interface {
	Execute(obj *Object) Outcome
	Finish(status Status)
	Cancel(status Status)
}

// Op is the single type representing one in-flight asynchronous
// request (spec.md §3.2). Its list links are intrusive — they live
// inside the struct rather than in a wrapper node — so queueing an op
// never allocates.
type Op struct {
	Object   *Object
	Opcode   Opcode
	Flags    Flags
	Executor Executor
	Callback Callback
	Arg      any

	// NoUserCallback records that the facade call that built this op
	// was given no callback at all, so a synchronous completion must
	// resolve by return value alone (spec.md §4.4 step 3b) rather than
	// falling through to the default deferred dispatch of step 3c.
	NoUserCallback bool
	// SuppressDelivery is set by the facade's dispatch policy right
	// before it invokes a step-3b op's callback inline: the op's own
	// bookkeeping (clearing its timeout, returning the pool op) still
	// runs, but the user-visible delivery is skipped since the caller
	// already has its result from submit's return value.
	SuppressDelivery bool

	statusTag tagptr.StatusTag

	// Timeout and EndTime are logically a union: callers set Timeout,
	// the submission path resolves it to an absolute EndTime before the
	// op reaches the timeout grid or a per-op realtime timer.
	Timeout       time.Duration
	EndTime       time.Time
	TimerID       uintptr
	RealtimeTimer *time.Timer

	Buffer      []byte
	Length      int
	Transferred int
	PeerAddress net.Addr
	OwnedBuffer []byte

	// AcceptedFD is the output descriptor of a successful accept,
	// valid only once the op reaches StatusSuccess.
	AcceptedFD int
	// LocalAddress carries a connect/accept op's local endpoint, input
	// for connect (unused) and output for accept.
	LocalAddress net.Addr

	// QueueNext links this op into its object's read or write queue.
	QueueNext *Op

	// TimeoutPrev/TimeoutNext link this op into its timeout grid
	// bucket's doubly-linked list.
	TimeoutPrev, TimeoutNext *Op
	TimeoutSecond            uint32 // the deadline bucket this op currently occupies
	InTimeoutGrid            bool

	// AnnounceNext links this op into its object's announcement queue.
	AnnounceNext  *Op
	PendingAction Action
}

// NewOp constructs a fresh, unpooled op. Pools recycle ops by
// resetting these fields rather than reallocating (see
// internal/pool.Pool[*Op]).
func NewOp() *Op {
	op := &Op{}
	op.statusTag.Init(0, int32(StatusPending))
	return op
}

// Reset clears an op's fields for reuse from a pool, bumping its
// generation so any stale in-flight timer or reactor event referring
// to the previous generation becomes a silent no-op.
func (op *Op) Reset() {
	gen := op.statusTag.Generation()
	*op = Op{}
	op.statusTag.Init(gen+1, int32(StatusPending))
}

// Generation returns the op's current generation counter.
func (op *Op) Generation() uint32 {
	return op.statusTag.Generation()
}

// Status returns the op's current status.
func (op *Op) Status() Status {
	_, status := op.statusTag.Load()
	return Status(status)
}

// TryFinish attempts to transition the op to a terminal status, gated
// on the generation the caller observed when it decided to finish. It
// fails silently (returns false) if the op's generation has already
// advanced — the defense against late reactor or timer wake-ups
// described in spec.md §3.2. On success it bumps the generation and
// runs the opcode's Finish hook. It does not invoke the user callback:
// per spec.md §4.5, finished ops are deferred onto the thread-local
// finished queue and drained there, so a callback that itself submits
// new work never recurses into the combiner. Callers must call
// InvokeCallback once the op is popped off that queue.
func (op *Op) TryFinish(generation uint32, status Status, n int) bool {
	if !op.statusTag.TryFinish(generation, int32(status)) {
		return false
	}
	op.Transferred = n
	if op.Executor != nil {
		op.Executor.Finish(status)
	}
	return true
}

// TryCancel is TryFinish specialized for cancellation: it runs the
// opcode's Cancel hook instead of Finish. Like TryFinish, it defers
// the user callback.
func (op *Op) TryCancel(generation uint32, status Status) bool {
	if !op.statusTag.TryFinish(generation, int32(status)) {
		return false
	}
	if op.Executor != nil {
		op.Executor.Cancel(status)
	}
	return true
}

// InvokeCallback calls the op's user callback exactly once, translating
// a non-success status into err via toErr (the facade supplies a
// closure that builds a structured *asyncio.Error; opcore itself has
// no error type of its own to avoid importing the root package).
func (op *Op) InvokeCallback(toErr func(Status) error) {
	if op.Callback == nil {
		return
	}
	status := op.Status()
	var err error
	if status != StatusSuccess && toErr != nil {
		err = toErr(status)
	}
	op.Callback(op, op.Transferred, err)
}

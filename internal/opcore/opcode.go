package opcore

// Opcode names the kind of request an Op represents. Each opcode
// carries an implicit direction bit (read-side or write-side) that
// selects which of the object's two queues it belongs on.
type Opcode int

const (
	OpConnect Opcode = iota
	OpAccept
	OpRead
	OpWrite
	OpReadMsg
	OpWriteMsg
	OpUserEvent
	OpMonitor
)

func (o Opcode) String() string {
	switch o {
	case OpConnect:
		return "connect"
	case OpAccept:
		return "accept"
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpReadMsg:
		return "read-msg"
	case OpWriteMsg:
		return "write-msg"
	case OpUserEvent:
		return "user-event"
	case OpMonitor:
		return "monitor"
	default:
		return "unknown"
	}
}

// WriteSide reports whether this opcode belongs on the object's write
// queue. connect shares the write queue because, like a write, it
// waits for the descriptor to become writable. User events and the
// monitor opcode never queue on a stream/datagram object at all, but
// default to the read side for objects of kind KindUser.
func (o Opcode) WriteSide() bool {
	switch o {
	case OpConnect, OpWrite, OpWriteMsg:
		return true
	default:
		return false
	}
}

// Flags is the per-operation option bitset from spec.md §4.4/§6.
type Flags uint32

const (
	// FlagWaitAll makes read/write loop until the full requested
	// length transfers or an error terminates the operation early.
	FlagWaitAll Flags = 1 << iota
	// FlagNoCopy suppresses the submission-time copy of a write buffer;
	// the caller owns the buffer's lifetime until completion.
	FlagNoCopy
	// FlagRealtime upgrades the operation's timeout from the
	// second-granular timeout grid to a per-operation Go runtime timer
	// (time.AfterFunc).
	FlagRealtime
	// FlagActiveOnce permits a callback-less submission call to return
	// its result synchronously by return value alone: consulted by the
	// facade's dispatch policy (spec.md §4.4 step 3b) alongside a nil
	// callback to decide whether a finished op may resolve without
	// ever invoking Callback.
	FlagActiveOnce
	// FlagSerialized forces the callback to run on the submitting
	// thread before the submission call returns: the facade's dispatch
	// policy checks this first (spec.md §4.4 step 3a) and, when set,
	// never defers the callback regardless of the synchronous-finish
	// budget.
	FlagSerialized
	// FlagRunningHot opts an operation that does carry a real callback
	// into the same synchronous fast path as FlagActiveOnce (step 3b):
	// when the synchronous-finish budget still has room, its callback
	// is skipped and the result returned by value instead of being
	// deferred to the loop, the same way a callback-less op resolves.
	FlagRunningHot
	// FlagCoroutine marks an operation submitted by the coroutine
	// adapter; its callback resumes the waiting coroutine.
	FlagCoroutine
)

// Has reports whether every bit set in want is also set in f.
func (f Flags) Has(want Flags) bool {
	return f&want == want
}

// Action names what the combiner should do with an announced
// (op, action) pair once it reaches the front of the announcement
// queue (spec.md §4.2 Phase B).
type Action int

const (
	// ActionStart appends the op to the object's appropriate queue.
	ActionStart Action = iota
	// ActionFinish detaches the op, runs its finisher, recycles it.
	ActionFinish
	// ActionCancel is a Finish with status Canceled.
	ActionCancel
	// ActionContinue re-executes the current queue head, used for
	// partial-transfer WaitAll operations.
	ActionContinue
	// ActionTimeout excises the op from wherever it sits in its
	// object's queue and finishes it with StatusTimeout, raised by the
	// timeout grid's sweep rather than by a submission-time decision.
	ActionTimeout
)

func (a Action) String() string {
	switch a {
	case ActionStart:
		return "start"
	case ActionFinish:
		return "finish"
	case ActionCancel:
		return "cancel"
	case ActionContinue:
		return "continue"
	case ActionTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Result is the three-valued outcome of an executor's Execute call
// (spec.md §4.8).
type Result int

const (
	ResultPending Result = iota
	ResultSuccess
	ResultFailure
)

// Outcome is what an Executor.Execute call returns. Status is only
// meaningful when Result is ResultFailure; N (bytes transferred) is
// meaningful on ResultSuccess and is also used to record a partial
// transfer before a WaitAll op returns ResultPending.
type Outcome struct {
	Result Result
	N      int
	Status Status
}

package asyncio

import (
	"errors"
	"net"
	"time"

	"github.com/eXtremal-ik7/asyncio-go/internal/combiner"
	"github.com/eXtremal-ik7/asyncio-go/internal/finishq"
	"github.com/eXtremal-ik7/asyncio-go/internal/opcore"
	"github.com/eXtremal-ik7/asyncio-go/internal/pool"
)

// Flags is an alias for opcore.Flags so callers never import the
// internal package directly (spec.md §6).
type Flags = opcore.Flags

const (
	FlagWaitAll     = opcore.FlagWaitAll
	FlagNoCopy      = opcore.FlagNoCopy
	FlagRealtime    = opcore.FlagRealtime
	FlagActiveOnce  = opcore.FlagActiveOnce
	FlagSerialized  = opcore.FlagSerialized
	FlagRunningHot  = opcore.FlagRunningHot
	FlagCoroutine   = opcore.FlagCoroutine
)

// Callback is the completion signature every byte-oriented Async-form
// facade call uses (spec.md §6's aio_X contract): n is the byte count
// (valid only when err is nil), arg is whatever the caller passed to
// the submission call, carried through unchanged.
type Callback func(n int, err error, arg any)

// AcceptCallback is AsyncAccept's completion signature (spec.md §6):
// conn is the newly accepted connection — already wrapped as an Object
// registered on the same Base as the listening socket, per spec.md
// §6's "new descriptor" output — and peer is its remote address. Both
// are valid only when err is nil.
type AcceptCallback func(conn *Object, peer net.Addr, err error, arg any)

// MsgCallback is AsyncReadMsg's completion signature (spec.md §6): n
// is the datagram's byte count and peer its sender's address, both
// valid only when err is nil.
type MsgCallback func(n int, peer net.Addr, err error, arg any)

// ErrPending is the sentinel returned by every Async-form call whose
// operation did not complete inline during submission: the real
// result arrives later, through cb. It is never wrapped and never
// satisfies errors.Is against any *Error status.
var ErrPending = errors.New("asyncio: operation pending")

// submit is the shared machinery behind every Async-form facade call
// (spec.md §4.4's three-layer fast path): build an op from the pool,
// resolve its timeout, hand it to the combiner, and report whichever
// of the two outcomes actually happened. deliver runs once the op has
// a terminal status and dispatch policy decided it should run inline —
// still holding the op, so opcode-specific output fields (AcceptedFD,
// PeerAddress) are read directly off it rather than threaded back out
// through a byte-count-only return value. hasCallback tells
// runCombinerAndDrain's dispatch policy whether the caller passed a
// real callback, so a callback-less submission can still resolve by
// return value alone (step 3b) instead of defaulting to the deferred
// path every other op takes (step 3c).
//
// The Callback closure built here fires only when dispatch policy
// decides to run it inline (steps 3a/3b) or once the deferred
// dispatcher goroutine picks it up later (step 3c, in which case
// "finished" is observed false here and this call already returned
// ErrPending). SuppressDelivery lets a 3b op's bookkeeping — clearing
// its timeout, returning the pool op — still run without invoking the
// opcode-specific deliver callback, since the caller already has its
// result from n/err.
func (b *Base) submit(o *Object, opcode opcore.Opcode, flags Flags, timeout time.Duration, arg any, hasCallback bool, build func(op *opcore.Op), deliver func(op *opcore.Op, n int, err error)) (int, error) {
	op := b.opPool.Get()
	op.Reset()
	op.Opcode = opcode
	op.Flags = flags
	op.Arg = arg
	op.NoUserCallback = !hasCallback

	var (
		n        int
		err      error
		finished bool
	)
	op.Callback = func(op *opcore.Op, rn int, rerr error) {
		n, err = rn, rerr
		finished = true
		b.clearTimeout(op)
		if !op.SuppressDelivery {
			deliver(op, rn, rerr)
		}
		b.opPool.Put(op)
	}

	build(op)
	b.armTimeout(op, flags, timeout)

	b.runCombinerAndDrain(func(fq *finishq.Queue) {
		combiner.PushOperation(o.obj, op, opcore.ActionStart, fq)
	})

	if finished {
		return n, err
	}
	return 0, ErrPending
}

// deliverCallback adapts a plain byte-count Callback into submit's
// deliver shape, for every op whose only output is a transferred
// count (connect, read, write, write-msg).
func deliverCallback(cb Callback) func(op *opcore.Op, n int, err error) {
	return func(op *opcore.Op, n int, err error) {
		if cb != nil {
			cb(n, err, op.Arg)
		}
	}
}

// armTimeout resolves timeout into either a timeout-grid entry
// (second-granular, the common case) or a dedicated Go-runtime timer
// for FlagRealtime ops (spec.md §3.3: "ops flagged Realtime get a
// dedicated OS timer instead"). A non-positive timeout leaves op
// without a deadline at all.
func (b *Base) armTimeout(op *opcore.Op, flags Flags, timeout time.Duration) {
	if timeout <= 0 {
		return
	}
	op.Timeout = timeout
	op.EndTime = time.Now().Add(timeout)

	if flags.Has(FlagRealtime) {
		op.RealtimeTimer = time.AfterFunc(timeout, func() {
			if op.Object == nil {
				return
			}
			b.runCombinerAndDrain(func(fq *finishq.Queue) {
				combiner.PushOperation(op.Object, op, opcore.ActionTimeout, fq)
			})
		})
		return
	}
	b.backend.InsertTimeout(op)
}

// clearTimeout disarms whichever deadline mechanism armTimeout chose,
// called from every op's terminal Callback so neither a stale grid
// entry nor a stale Go timer outlives the op (safe to call even when
// no timeout was ever armed).
func (b *Base) clearTimeout(op *opcore.Op) {
	if op.RealtimeTimer != nil {
		op.RealtimeTimer.Stop()
		op.RealtimeTimer = nil
		return
	}
	b.backend.RemoveTimeout(op)
}

// AsyncConnect issues a nonblocking connect to peer on obj (spec.md
// §6's aio_connect). obj must have been created with NewStreamSocket
// from an already-nonblocking, unbound descriptor.
func (b *Base) AsyncConnect(obj *Object, peer net.Addr, flags Flags, timeout time.Duration, cb Callback, arg any) (int, error) {
	return b.submit(obj, opcore.OpConnect, flags, timeout, arg, cb != nil, func(op *opcore.Op) {
		op.PeerAddress = peer
		op.Executor = newConnectExecutor(op)
	}, deliverCallback(cb))
}

// AsyncAccept accepts one pending connection on the listening socket
// obj (spec.md §6's aio_accept). On success cb receives a freshly
// wrapped, already-registered *Object for the new connection plus its
// peer address; n is always 0, since the byte count has no meaning for
// this op.
func (b *Base) AsyncAccept(obj *Object, flags Flags, timeout time.Duration, cb AcceptCallback, arg any) (int, error) {
	return b.submit(obj, opcore.OpAccept, flags, timeout, arg, cb != nil, func(op *opcore.Op) {
		op.Executor = newAcceptExecutor(op)
	}, func(op *opcore.Op, n int, err error) {
		if cb == nil {
			return
		}
		if err != nil {
			cb(nil, nil, err, op.Arg)
			return
		}
		fd := op.AcceptedFD
		op.AcceptedFD = 0
		cb(b.NewStreamSocket(fd), op.PeerAddress, nil, op.Arg)
	})
}

// AsyncRead reads into buf from obj (spec.md §6's aio_read). With
// FlagWaitAll the operation loops internally until buf is full or an
// error terminates it early.
func (b *Base) AsyncRead(obj *Object, buf []byte, flags Flags, timeout time.Duration, cb Callback, arg any) (int, error) {
	return b.submit(obj, opcore.OpRead, flags, timeout, arg, cb != nil, func(op *opcore.Op) {
		op.Buffer = buf
		op.Length = len(buf)
		op.Executor = newReadExecutor(op)
	}, deliverCallback(cb))
}

// AsyncWrite writes buf to obj (spec.md §6's aio_write). Unless
// FlagNoCopy is set, buf is copied into a pool-owned scratch buffer at
// submission time so the caller may reuse or discard buf immediately;
// with FlagNoCopy, buf's lifetime must outlive the operation.
func (b *Base) AsyncWrite(obj *Object, buf []byte, flags Flags, timeout time.Duration, cb Callback, arg any) (int, error) {
	return b.submit(obj, opcore.OpWrite, flags, timeout, arg, cb != nil, func(op *opcore.Op) {
		if flags.Has(FlagNoCopy) {
			op.Buffer = buf
		} else {
			owned := pool.GetBuffer(len(buf))
			owned = owned[:len(buf)]
			copy(owned, buf)
			op.OwnedBuffer = owned
			op.Buffer = owned
		}
		op.Length = len(buf)
		op.Executor = newWriteExecutor(op)
	}, deliverCallback(cb))
}

// AsyncReadMsg receives one datagram from obj into buf (spec.md §6's
// aio_read_msg). On success cb receives the byte count and the
// sender's address.
func (b *Base) AsyncReadMsg(obj *Object, buf []byte, flags Flags, timeout time.Duration, cb MsgCallback, arg any) (int, error) {
	return b.submit(obj, opcore.OpReadMsg, flags, timeout, arg, cb != nil, func(op *opcore.Op) {
		op.Buffer = buf
		op.Length = len(buf)
		op.Executor = newReadMsgExecutor(op)
	}, func(op *opcore.Op, n int, err error) {
		if cb != nil {
			cb(n, op.PeerAddress, err, op.Arg)
		}
	})
}

// AsyncWriteMsg sends buf as a single datagram to peer via obj
// (spec.md §6's aio_write_msg).
func (b *Base) AsyncWriteMsg(obj *Object, buf []byte, peer net.Addr, flags Flags, timeout time.Duration, cb Callback, arg any) (int, error) {
	return b.submit(obj, opcore.OpWriteMsg, flags, timeout, arg, cb != nil, func(op *opcore.Op) {
		if flags.Has(FlagNoCopy) {
			op.Buffer = buf
		} else {
			owned := pool.GetBuffer(len(buf))
			owned = owned[:len(buf)]
			copy(owned, buf)
			op.OwnedBuffer = owned
			op.Buffer = owned
		}
		op.Length = len(buf)
		op.PeerAddress = peer
		op.Executor = newWriteMsgExecutor(op)
	}, deliverCallback(cb))
}

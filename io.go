package asyncio

import (
	"net"
	"sync/atomic"
	"time"

	"github.com/eXtremal-ik7/asyncio-go/coro"
)

// ioAwait is the coroutine adapter from spec.md §4.6: it submits an
// Async-form op, and if the op did not complete inline on the fast
// path, yields the calling coroutine until the op's callback resumes
// it. submit is handed a Callback to pass straight to the Async-form
// call; it must not be invoked more than once.
//
// The two sides — "did the fast path already finish" and "is the
// coroutine about to yield" — can race: a genuinely pending op's
// callback may fire on a different loop thread the instant after
// submit returns, before this goroutine reaches the yield below. A
// single CAS on state arbitrates the race: whichever side observes
// stateInit first decides what happens next, and the other side reads
// its own outcome from the CAS failure rather than guessing from
// timing.
func ioAwait(submit func(cb Callback) (int, error)) (int, error) {
	self := coro.Current()
	if self.IsMain() {
		panic("asyncio: Io-form call used outside a coroutine")
	}

	const (
		stateInit int32 = iota
		stateReady
		stateWaiting
	)

	var (
		state   atomic.Int32
		n       int
		callErr error
	)

	rn, rerr := submit(func(cn int, cerr error, _ any) {
		n, callErr = cn, cerr
		if !state.CompareAndSwap(stateInit, stateReady) {
			// The coroutine already committed to yielding (or has
			// already yielded): resume it directly, since we are the
			// only thing that ever will.
			self.Call()
		}
	})
	if rerr != ErrPending {
		return rn, rerr
	}

	if state.CompareAndSwap(stateInit, stateWaiting) {
		coro.Yield()
	}
	// Else the callback already ran and stored its result before we
	// got here; nothing to wait for.
	return n, callErr
}

// IoConnect is the coroutine form of AsyncConnect (spec.md §6's
// io_connect): it blocks the calling coroutine until the connect
// completes or fails, returning -status as a negative ssize_t-style
// error would on the original, here as a plain error.
func (b *Base) IoConnect(obj *Object, peer net.Addr, flags Flags, timeout time.Duration) (int, error) {
	return ioAwait(func(cb Callback) (int, error) {
		return b.AsyncConnect(obj, peer, flags, timeout, cb, nil)
	})
}

// IoAccept is the coroutine form of AsyncAccept: it blocks the calling
// coroutine until a connection arrives, returning the accepted
// connection and its peer address.
func (b *Base) IoAccept(obj *Object, flags Flags, timeout time.Duration) (*Object, net.Addr, error) {
	self := coro.Current()
	if self.IsMain() {
		panic("asyncio: Io-form call used outside a coroutine")
	}

	const (
		stateInit int32 = iota
		stateReady
		stateWaiting
	)

	var (
		state   atomic.Int32
		conn    *Object
		peer    net.Addr
		callErr error
	)

	_, rerr := b.AsyncAccept(obj, flags, timeout, func(c *Object, p net.Addr, err error, _ any) {
		conn, peer, callErr = c, p, err
		if !state.CompareAndSwap(stateInit, stateReady) {
			self.Call()
		}
	}, nil)
	if rerr != ErrPending {
		return conn, peer, rerr
	}

	if state.CompareAndSwap(stateInit, stateWaiting) {
		coro.Yield()
	}
	return conn, peer, callErr
}

// IoRead is the coroutine form of AsyncRead.
func (b *Base) IoRead(obj *Object, buf []byte, flags Flags, timeout time.Duration) (int, error) {
	return ioAwait(func(cb Callback) (int, error) {
		return b.AsyncRead(obj, buf, flags, timeout, cb, nil)
	})
}

// IoWrite is the coroutine form of AsyncWrite.
func (b *Base) IoWrite(obj *Object, buf []byte, flags Flags, timeout time.Duration) (int, error) {
	return ioAwait(func(cb Callback) (int, error) {
		return b.AsyncWrite(obj, buf, flags, timeout, cb, nil)
	})
}

// IoReadMsg is the coroutine form of AsyncReadMsg: it blocks the
// calling coroutine until a datagram arrives, returning its length and
// sender address.
func (b *Base) IoReadMsg(obj *Object, buf []byte, flags Flags, timeout time.Duration) (int, net.Addr, error) {
	self := coro.Current()
	if self.IsMain() {
		panic("asyncio: Io-form call used outside a coroutine")
	}

	const (
		stateInit int32 = iota
		stateReady
		stateWaiting
	)

	var (
		state   atomic.Int32
		n       int
		peer    net.Addr
		callErr error
	)

	rn, rerr := b.AsyncReadMsg(obj, buf, flags, timeout, func(cn int, p net.Addr, err error, _ any) {
		n, peer, callErr = cn, p, err
		if !state.CompareAndSwap(stateInit, stateReady) {
			self.Call()
		}
	}, nil)
	if rerr != ErrPending {
		return rn, peer, rerr
	}

	if state.CompareAndSwap(stateInit, stateWaiting) {
		coro.Yield()
	}
	return n, peer, callErr
}

// IoWriteMsg is the coroutine form of AsyncWriteMsg.
func (b *Base) IoWriteMsg(obj *Object, buf []byte, peer net.Addr, flags Flags, timeout time.Duration) (int, error) {
	return ioAwait(func(cb Callback) (int, error) {
		return b.AsyncWriteMsg(obj, buf, peer, flags, timeout, cb, nil)
	})
}

// IoSleep suspends the calling coroutine for d, driven by a one-shot
// user event rather than any descriptor (spec.md §4.6 lists io_sleep
// alongside the descriptor-backed io_X forms).
func (b *Base) IoSleep(d time.Duration) {
	self := coro.Current()
	if self.IsMain() {
		panic("asyncio: IoSleep used outside a coroutine")
	}
	timer := time.AfterFunc(d, func() {
		b.PostUserEvent(b.NewUserEvent(func() {
			self.Call()
		}))
	})
	defer timer.Stop()
	coro.Yield()
}

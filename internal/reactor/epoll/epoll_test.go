//go:build linux

package epoll

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/eXtremal-ik7/asyncio-go/internal/combiner"
	"github.com/eXtremal-ik7/asyncio-go/internal/opcore"
)

func toErr(s opcore.Status) error {
	return errors.New(s.String())
}

func socketPair(t *testing.T) (a, b int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("Socketpair: %v", err)
	}
	for _, fd := range fds {
		if err := unix.SetNonblock(fd, true); err != nil {
			t.Fatalf("SetNonblock: %v", err)
		}
	}
	return fds[0], fds[1]
}

type readExecutor struct {
	fd   int
	buf  []byte
	n    int
	done bool
}

func (e *readExecutor) Execute(obj *opcore.Object) opcore.Outcome {
	n, err := unix.Read(e.fd, e.buf)
	if err == unix.EAGAIN {
		return opcore.Outcome{Result: opcore.ResultPending}
	}
	if err != nil {
		return opcore.Outcome{Result: opcore.ResultFailure, Status: opcore.StatusUnknownError}
	}
	e.n = n
	return opcore.Outcome{Result: opcore.ResultSuccess, N: n}
}
func (*readExecutor) Finish(opcore.Status) {}
func (*readExecutor) Cancel(opcore.Status) {}

func TestRegisterArmAndRunOnceDeliverReadReadiness(t *testing.T) {
	b, err := New(toErr)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()
	b.Prepare(1, 32)

	a, c := socketPair(t)
	defer unix.Close(a)
	defer unix.Close(c)

	obj := opcore.NewObject(opcore.KindStreamSocket, uintptr(a), b, nil)
	if err := b.Register(obj); err != nil {
		t.Fatalf("Register: %v", err)
	}

	exec := &readExecutor{fd: a, buf: make([]byte, 16)}
	op := opcore.NewOp()
	op.Opcode = opcore.OpRead
	op.Executor = exec

	var gotN int
	var gotErr error
	called := make(chan struct{})
	op.Callback = func(op *opcore.Op, n int, err error) {
		gotN, gotErr = n, err
		close(called)
	}

	// Submitting before any data is available should park the op
	// pending and arm the descriptor for read readiness.
	combiner.PushOperation(obj, op, opcore.ActionStart, b.queues[0])
	if op.Status() != opcore.StatusPending {
		t.Fatalf("op.Status() = %v, want Pending before data arrives", op.Status())
	}

	if _, err := unix.Write(c, []byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if err := b.RunOnce(context.Background(), 0); err != nil {
			t.Fatalf("RunOnce: %v", err)
		}
		select {
		case <-called:
			goto done
		default:
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for the read to complete")
		}
	}
done:
	if gotErr != nil {
		t.Fatalf("callback err = %v, want nil", gotErr)
	}
	if gotN != 5 {
		t.Fatalf("callback n = %d, want 5", gotN)
	}
}

func TestPostQuitWakesABlockedRunOnce(t *testing.T) {
	b, err := New(toErr)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()
	b.Prepare(1, 32)

	done := make(chan error, 1)
	go func() { done <- b.RunOnce(context.Background(), 0) }()

	time.Sleep(10 * time.Millisecond)
	b.PostQuit()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RunOnce returned %v after PostQuit, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RunOnce did not wake up after PostQuit")
	}
}

package opcore

import (
	"errors"
	"testing"
)

type fakeExecutor struct {
	finished Status
	canceled Status
	finishN  int
	cancelN  int
}

func (f *fakeExecutor) Execute(obj *Object) Outcome { return Outcome{Result: ResultPending} }
func (f *fakeExecutor) Finish(status Status)        { f.finished = status; f.finishN++ }
func (f *fakeExecutor) Cancel(status Status)        { f.canceled = status; f.cancelN++ }

func sentinelErr(status Status) error { return errors.New(status.String()) }

func TestOpTryFinishTransitionsStatus(t *testing.T) {
	op := NewOp()
	exec := &fakeExecutor{}
	op.Executor = exec

	if !op.TryFinish(op.Generation(), StatusSuccess, 7) {
		t.Fatal("expected TryFinish to succeed on the current generation")
	}
	if exec.finishN != 1 || exec.finished != StatusSuccess {
		t.Fatalf("expected executor.Finish(Success) once, got %d calls with %v", exec.finishN, exec.finished)
	}
	if op.Status() != StatusSuccess {
		t.Fatalf("op.Status() = %v, want Success", op.Status())
	}
	if op.Transferred != 7 {
		t.Fatalf("op.Transferred = %d, want 7", op.Transferred)
	}
}

func TestOpInvokeCallbackRunsOnce(t *testing.T) {
	op := NewOp()
	op.TryFinish(op.Generation(), StatusSuccess, 7)

	calls := 0
	op.Callback = func(op *Op, n int, err error) {
		calls++
		if n != 7 {
			t.Errorf("callback n = %d, want 7", n)
		}
		if err != nil {
			t.Errorf("callback err = %v, want nil", err)
		}
	}
	op.InvokeCallback(sentinelErr)
	if calls != 1 {
		t.Fatalf("expected callback invoked once, got %d", calls)
	}
}

func TestOpInvokeCallbackBuildsErrorForNonSuccess(t *testing.T) {
	op := NewOp()
	op.TryCancel(op.Generation(), StatusCanceled)

	var gotErr error
	op.Callback = func(op *Op, n int, err error) { gotErr = err }
	op.InvokeCallback(sentinelErr)
	if gotErr == nil {
		t.Fatal("expected a non-nil error for a canceled op")
	}
}

func TestOpTryFinishStaleGenerationIsNoOp(t *testing.T) {
	op := NewOp()
	staleGen := op.Generation()

	if !op.TryFinish(staleGen, StatusSuccess, 3) {
		t.Fatal("first TryFinish on the current generation should succeed")
	}
	if op.TryFinish(staleGen, StatusTimeout, 0) {
		t.Fatal("TryFinish with a stale generation must fail")
	}
}

func TestOpTryCancelRunsCancelHook(t *testing.T) {
	op := NewOp()
	exec := &fakeExecutor{}
	op.Executor = exec

	if !op.TryCancel(op.Generation(), StatusCanceled) {
		t.Fatal("expected TryCancel to succeed")
	}
	if exec.cancelN != 1 || exec.canceled != StatusCanceled {
		t.Fatalf("expected executor.Cancel(Canceled) once, got %d calls with %v", exec.cancelN, exec.canceled)
	}
}

func TestOpResetBumpsGeneration(t *testing.T) {
	op := NewOp()
	op.TryFinish(op.Generation(), StatusSuccess, 1)
	genBefore := op.Generation()

	op.Reset()
	if op.Generation() != genBefore+1 {
		t.Fatalf("Reset() generation = %d, want %d", op.Generation(), genBefore+1)
	}
	if op.Status() != StatusPending {
		t.Fatalf("Reset() status = %v, want Pending", op.Status())
	}
}

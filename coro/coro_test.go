package coro

import (
	"testing"
)

func TestCallRunsEntryToCompletionWhenItNeverYields(t *testing.T) {
	ran := false
	c := New(func(arg any) {
		ran = true
		if arg.(int) != 7 {
			t.Errorf("arg = %v, want 7", arg)
		}
	}, 7, 0)

	finished := c.Call()
	if !finished {
		t.Fatal("Call() = false, want true for an entry that never yields")
	}
	if !ran {
		t.Fatal("entry never ran")
	}
	if !c.Finished() {
		t.Fatal("Finished() = false after entry returned")
	}
}

func TestYieldSuspendsAndCallResumes(t *testing.T) {
	var steps []string
	c := New(func(arg any) {
		steps = append(steps, "enter")
		Yield()
		steps = append(steps, "resume")
	}, nil, 0)

	finished := c.Call()
	if finished {
		t.Fatal("Call() = true after first yield, want false")
	}
	if got := []string{"enter"}; !equalStrings(steps, got) {
		t.Fatalf("steps = %v, want %v", steps, got)
	}

	finished = c.Call()
	if !finished {
		t.Fatal("Call() = false on second call, want true (entry returned)")
	}
	if got := []string{"enter", "resume"}; !equalStrings(steps, got) {
		t.Fatalf("steps = %v, want %v", steps, got)
	}
}

func TestCallOnFinishedCoroutineIsANoOp(t *testing.T) {
	c := New(func(arg any) {}, nil, 0)
	c.Call()
	if finished := c.Call(); !finished {
		t.Fatal("Call() on an already-finished coroutine should report true")
	}
}

func TestYieldOnMainCoroutineIsANoOp(t *testing.T) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		Yield() // must return immediately; this goroutine's implicit main has no caller
	}()
	<-done
}

// TestNestedCoroutineCallOrder reproduces spec.md §8 scenario 7: a
// coroutine calls an op, spawns a child coroutine inside its body that
// calls an op of its own and returns, then the parent finishes.
// Expect parent-enter, child-total, parent-exit in that order.
func TestNestedCoroutineCallOrder(t *testing.T) {
	var order []string

	var child *Coroutine
	parent := New(func(arg any) {
		order = append(order, "parent-enter")

		child = New(func(arg any) {
			order = append(order, "child-total")
		}, nil, 0)
		if finished := child.Call(); !finished {
			t.Error("child did not finish on its first call")
		}

		order = append(order, "parent-exit")
	}, nil, 0)

	if finished := parent.Call(); !finished {
		t.Fatal("parent did not finish")
	}

	want := []string{"parent-enter", "child-total", "parent-exit"}
	if !equalStrings(order, want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
}

func TestCurrentInsideEntryIsTheRunningCoroutine(t *testing.T) {
	var seen *Coroutine
	c := New(func(arg any) {
		seen = Current()
	}, nil, 0)
	c.Call()
	if seen != c {
		t.Fatal("Current() inside entry did not return the running coroutine")
	}
}

func TestCurrentOutsideAnyCoroutineIsAnImplicitMain(t *testing.T) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		main := Current()
		if main == nil {
			t.Error("Current() returned nil")
		}
		if !main.IsMain() {
			t.Error("Current() outside a coroutine should report IsMain() = true")
		}
		if main.Finished() {
			t.Error("an implicit main coroutine should never report Finished")
		}
	}()
	<-done
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

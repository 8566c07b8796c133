package event

import (
	"testing"
	"time"
)

type fakeDispatcher struct {
	posted []*UserEvent
}

func (d *fakeDispatcher) PostUserEvent(ev *UserEvent) {
	d.posted = append(d.posted, ev)
}

func TestActivatePostsToDispatcherWithoutFiring(t *testing.T) {
	calls := 0
	ev := NewUserEvent(func() { calls++ })
	d := &fakeDispatcher{}

	ev.Activate(d)

	if calls != 0 {
		t.Fatal("Activate must not run the callback itself")
	}
	if len(d.posted) != 1 || d.posted[0] != ev {
		t.Fatalf("dispatcher received %v, want [ev]", d.posted)
	}
}

func TestFireRunsCallback(t *testing.T) {
	calls := 0
	ev := NewUserEvent(func() { calls++ })
	ev.Fire()
	ev.Fire()
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestUnboundedTimerAlwaysRearms(t *testing.T) {
	calls := 0
	tm := NewTimer(time.Millisecond, 0, func() { calls++ })
	for i := 0; i < 5; i++ {
		if rearm := tm.Expire(); !rearm {
			t.Fatalf("Expire()[%d] rearm = false, want true for an unbounded timer", i)
		}
	}
	if calls != 5 {
		t.Fatalf("calls = %d, want 5", calls)
	}
}

func TestBoundedTimerStopsAfterCounterExhausted(t *testing.T) {
	calls := 0
	tm := NewTimer(time.Microsecond*400, 3, func() { calls++ })

	if rearm := tm.Expire(); !rearm {
		t.Fatal("Expire()[0] rearm = false, want true (2 fires remaining)")
	}
	if rearm := tm.Expire(); !rearm {
		t.Fatal("Expire()[1] rearm = false, want true (1 fire remaining)")
	}
	if rearm := tm.Expire(); rearm {
		t.Fatal("Expire()[2] rearm = true, want false (counter just exhausted)")
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}

	// A further Expire call (a stray rearm the backend should have
	// skipped) must be a silent no-op, not a 4th callback.
	if rearm := tm.Expire(); rearm {
		t.Fatal("Expire() after exhaustion must report no rearm")
	}
	if calls != 3 {
		t.Fatalf("calls after an extra Expire = %d, want 3", calls)
	}
}

func TestManualActivateIsNotSubjectToTheTimerCounter(t *testing.T) {
	calls := 0
	tm := NewTimer(time.Microsecond*400, 2, func() { calls++ })

	tm.Expire()
	tm.Expire()
	if calls != 2 {
		t.Fatalf("calls after exhausting the periodic budget = %d, want 2", calls)
	}

	d := &fakeDispatcher{}
	tm.Event.Activate(d)
	d.posted[0].Fire()

	if calls != 3 {
		t.Fatalf("calls after one extra manual activation = %d, want 3 (spec.md §8 scenario 6)", calls)
	}
}

package asyncio

import (
	"sync"
	"time"

	"github.com/eXtremal-ik7/asyncio-go/event"
)

// NewUserEvent creates a standalone activatable callback (spec.md
// §3.4). cb runs once per Activate/ActivateUserEvent call, on b's
// user-event dispatch thread (see runUserEvents in base.go).
func (b *Base) NewUserEvent(cb func()) *event.UserEvent {
	return event.NewUserEvent(cb)
}

// ActivateUserEvent wakes b's dispatch thread to run ev's callback
// exactly once (spec.md §6 "user-event activate"). Safe to call from
// any goroutine, including from inside another event's own callback.
func (b *Base) ActivateUserEvent(ev *event.UserEvent) {
	ev.Activate(b)
}

// PostUserEvent implements event.Dispatcher for Base.
func (b *Base) PostUserEvent(ev *event.UserEvent) {
	b.userEvents <- ev
}

// Timer is a periodic user event bound to a Base (spec.md §3.4, §8
// scenario 6): its callback runs every Interval, up to Counter times,
// always on b's dispatch thread like any other user event. A direct
// ActivateUserEvent call on Timer.Event bypasses the counter entirely,
// per event.Timer's own contract.
type Timer struct {
	base    *Base
	timer   *event.Timer
	clock   *time.Timer
	mu      sync.Mutex
	stopped bool
}

// NewTimer creates and starts a periodic timer. counter <= 0 means
// unbounded. Call Stop to cancel it before its budget is exhausted.
func (b *Base) NewTimer(interval time.Duration, counter int, cb func()) *Timer {
	t := &Timer{base: b, timer: event.NewTimer(interval, counter, cb)}
	t.clock = time.AfterFunc(interval, t.tick)
	return t
}

// Event exposes the underlying user event, so a caller can
// ActivateUserEvent it directly in addition to its periodic fires
// (spec.md §8 scenario 6 combines both on the same timer).
func (t *Timer) Event() *event.UserEvent {
	return t.timer.Event
}

func (t *Timer) tick() {
	t.base.PostUserEvent(t.base.NewUserEvent(func() {
		if !t.timer.Expire() {
			return
		}
		t.mu.Lock()
		stopped := t.stopped
		t.mu.Unlock()
		if !stopped {
			t.clock.Reset(t.timer.Interval)
		}
	}))
}

// Stop cancels the timer's remaining periodic fires. A period already
// handed to the dispatch thread still runs to completion.
func (t *Timer) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
	t.clock.Stop()
}

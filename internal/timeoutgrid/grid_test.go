package timeoutgrid

import (
	"testing"
	"time"

	"github.com/eXtremal-ik7/asyncio-go/internal/opcore"
)

func opWithDeadline(sec int64) *opcore.Op {
	op := opcore.NewOp()
	op.EndTime = time.Unix(sec, 0)
	return op
}

func TestInsertThenExtractAllReturnsInsertionOrder(t *testing.T) {
	g := New()
	a, b, c := opWithDeadline(1000), opWithDeadline(1000), opWithDeadline(1000)
	g.Insert(a)
	g.Insert(b)
	g.Insert(c)

	got := g.ExtractAll(1000)
	if len(got) != 3 || got[0] != a || got[1] != b || got[2] != c {
		t.Fatalf("ExtractAll order = %v, want a,b,c", got)
	}
	for _, op := range []*opcore.Op{a, b, c} {
		if op.InTimeoutGrid {
			t.Fatal("extracted op should no longer report InTimeoutGrid")
		}
	}
}

func TestExtractAllEmptiesTheBucket(t *testing.T) {
	g := New()
	g.Insert(opWithDeadline(42))
	if got := g.ExtractAll(42); len(got) != 1 {
		t.Fatalf("first ExtractAll returned %d ops, want 1", len(got))
	}
	if got := g.ExtractAll(42); got != nil {
		t.Fatalf("second ExtractAll returned %v, want nil", got)
	}
}

func TestRemoveUnlinksFromTheMiddle(t *testing.T) {
	g := New()
	a, b, c := opWithDeadline(5), opWithDeadline(5), opWithDeadline(5)
	g.Insert(a)
	g.Insert(b)
	g.Insert(c)

	g.Remove(b)
	if b.InTimeoutGrid {
		t.Fatal("removed op should report InTimeoutGrid = false")
	}

	got := g.ExtractAll(5)
	if len(got) != 2 || got[0] != a || got[1] != c {
		t.Fatalf("ExtractAll after removing the middle op = %v, want a,c", got)
	}
}

func TestRemoveIsNoOpWhenNotInGrid(t *testing.T) {
	g := New()
	op := opcore.NewOp()
	g.Remove(op) // must not panic
}

func TestInsertRoundsSubSecondDeadlinesUp(t *testing.T) {
	g := New()
	op := opcore.NewOp()
	op.EndTime = time.Unix(100, 1) // one nanosecond past the second boundary
	g.Insert(op)

	if got := g.ExtractAll(100); len(got) != 0 {
		t.Fatalf("ExtractAll(100) = %v, want empty (deadline should round up to 101)", got)
	}
	if got := g.ExtractAll(101); len(got) != 1 || got[0] != op {
		t.Fatalf("ExtractAll(101) = %v, want [op]", got)
	}
}

func TestSweepExpiresEveryBucketThroughNow(t *testing.T) {
	g := New()
	base := time.Unix(1_700_000_000, 0)
	opAt := func(offset int64) *opcore.Op {
		op := opWithDeadline(base.Unix() + offset)
		return op
	}
	early, mid, late := opAt(0), opAt(1), opAt(2)
	g.Insert(early)
	g.Insert(mid)
	g.Insert(late)

	var expired []*opcore.Op
	g.Sweep(base.Add(1*time.Second), func(op *opcore.Op) { expired = append(expired, op) })

	if len(expired) != 2 || expired[0] != early || expired[1] != mid {
		t.Fatalf("expired = %v, want early,mid (late is still in the future)", expired)
	}

	expired = nil
	g.Sweep(base.Add(2*time.Second), func(op *opcore.Op) { expired = append(expired, op) })
	if len(expired) != 1 || expired[0] != late {
		t.Fatalf("second sweep expired = %v, want [late]", expired)
	}
}

func TestSweepDoesNotRescanAlreadyCheckedSeconds(t *testing.T) {
	g := New()
	base := time.Unix(1_700_000_100, 0)

	var calls int
	g.Sweep(base, func(*opcore.Op) { calls++ })
	g.Sweep(base, func(*opcore.Op) { calls++ })

	// Re-inserting an op at an already-swept second, then sweeping
	// again at the same "now", must not re-expire anything: the
	// checkpoint only moves forward.
	op := opWithDeadline(base.Unix())
	g.Insert(op)
	g.Sweep(base, func(*opcore.Op) { calls++ })

	if calls != 0 {
		t.Fatalf("expire called %d times, want 0 (checkpoint already past this second)", calls)
	}
}

// Package timeoutgrid implements the second-granular deadline map from
// spec.md §3.3/§4.3: a sparse two-level page map keyed by an absolute
// unix-second deadline, split into a 16-bit high word selecting a lazily
// allocated page and a 16-bit low word selecting that page's bucket.
// Microsecond precision is deliberately not offered here — ops flagged
// Realtime get a dedicated per-op Go runtime timer (time.AfterFunc,
// armed by the facade) instead (spec.md §3.3).
package timeoutgrid

import (
	"sync/atomic"
	"time"

	"github.com/eXtremal-ik7/asyncio-go/internal/opcore"
	"github.com/jacobsa/syncutil"
)

const pageSize = 1 << 16

// bucket holds the doubly-linked, insertion-ordered list of ops sharing
// one second-granular deadline. Ops link through opcore.Op's own
// TimeoutPrev/TimeoutNext fields, so inserting or removing one never
// allocates (spec.md §9 intrusive-design note).
type bucket struct {
	head, tail *opcore.Op
}

// page is one 2^16-bucket slab of the grid, covering roughly 18 hours
// of deadlines. Pages are allocated lazily and CAS-installed into the
// Grid's page table (spec.md §5 "allocation of a new map[hi] page is
// CAS-guarded"); once installed, a page's own InvariantMutex guards its
// buckets, since combiners for unrelated objects may insert or remove
// into the same page concurrently.
type page struct {
	mu      syncutil.InvariantMutex
	buckets [pageSize]bucket
}

// Grid is the process-wide timeout structure. It is safe for
// concurrent use by many combiner-owning goroutines at once; only the
// sweep that advances lastCheckpoint is expected to run from a single
// loop thread per wall-clock second (spec.md §4.1 step 4, §3.3).
type Grid struct {
	pages          [pageSize]atomic.Pointer[page]
	lastCheckpoint atomic.Uint32
}

// New returns an empty grid.
func New() *Grid {
	return &Grid{}
}

func deadlineSecond(endTime time.Time) uint32 {
	sec := endTime.Unix()
	if endTime.Nanosecond() > 0 {
		sec++
	}
	return uint32(sec)
}

func split(sec uint32) (hi, lo uint16) {
	return uint16(sec >> 16), uint16(sec)
}

// page looks up the page for hi, lazily CAS-allocating it when create
// is true and no page exists yet.
func (g *Grid) page(hi uint16, create bool) *page {
	slot := &g.pages[hi]
	if p := slot.Load(); p != nil || !create {
		return p
	}
	candidate := &page{}
	if slot.CompareAndSwap(nil, candidate) {
		return candidate
	}
	return slot.Load()
}

// Insert computes op's deadline second from its EndTime and links it
// into that bucket (spec.md §4.3 insert).
func (g *Grid) Insert(op *opcore.Op) {
	sec := deadlineSecond(op.EndTime)
	hi, lo := split(sec)
	p := g.page(hi, true)

	p.mu.Lock()
	b := &p.buckets[lo]
	op.TimeoutPrev = b.tail
	op.TimeoutNext = nil
	if b.tail != nil {
		b.tail.TimeoutNext = op
	} else {
		b.head = op
	}
	b.tail = op
	p.mu.Unlock()

	op.TimeoutSecond = sec
	op.InTimeoutGrid = true
}

// Remove unlinks op from its bucket in O(1), a no-op if op is not
// currently in the grid (spec.md §4.3 remove).
func (g *Grid) Remove(op *opcore.Op) {
	if !op.InTimeoutGrid {
		return
	}
	hi, lo := split(op.TimeoutSecond)
	p := g.page(hi, false)
	if p == nil {
		return
	}

	p.mu.Lock()
	b := &p.buckets[lo]
	if op.TimeoutPrev != nil {
		op.TimeoutPrev.TimeoutNext = op.TimeoutNext
	} else {
		b.head = op.TimeoutNext
	}
	if op.TimeoutNext != nil {
		op.TimeoutNext.TimeoutPrev = op.TimeoutPrev
	} else {
		b.tail = op.TimeoutPrev
	}
	p.mu.Unlock()

	op.TimeoutPrev = nil
	op.TimeoutNext = nil
	op.InTimeoutGrid = false
}

// ExtractAll detaches every op deadlined at sec and returns them in
// insertion order (spec.md §4.3 extract_all, §4.3 Policy "insertion
// order forward is specified").
func (g *Grid) ExtractAll(sec uint32) []*opcore.Op {
	hi, lo := split(sec)
	p := g.page(hi, false)
	if p == nil {
		return nil
	}

	p.mu.Lock()
	b := &p.buckets[lo]
	head := b.head
	b.head, b.tail = nil, nil
	p.mu.Unlock()

	var ops []*opcore.Op
	for op := head; op != nil; {
		next := op.TimeoutNext
		op.TimeoutPrev = nil
		op.TimeoutNext = nil
		op.InTimeoutGrid = false
		ops = append(ops, op)
		op = next
	}
	return ops
}

// Sweep extracts and expires every bucket from the last checkpoint
// through now, then advances the checkpoint to now (spec.md §4.3
// sweep). expire is invoked once per timed-out op, in each bucket's
// insertion order; the caller decides how to turn that into a
// cancel-with-timeout against the combiner, keeping this package free
// of a dependency on internal/combiner.
func (g *Grid) Sweep(now time.Time, expire func(op *opcore.Op)) {
	nowSec := uint32(now.Unix())
	last := g.lastCheckpoint.Load()
	if last == 0 {
		last = nowSec - 1
	}
	for sec := last + 1; sec <= nowSec; sec++ {
		for _, op := range g.ExtractAll(sec) {
			expire(op)
		}
	}
	g.lastCheckpoint.Store(nowSec)
}

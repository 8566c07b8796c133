package pool

import "sync"

// Class identifies which well-known pool an operation or object record
// belongs to. The original implementation this runtime is grounded on
// used string pool ids ("asyncIo", "asyncIoTimer", "asyncIoEvent") and
// detected a timer op by comparing pointers to the pool-id string;
// spec.md §9 calls that out explicitly and asks for a small enum
// instead, so behavior never hinges on string identity.
type Class int

const (
	ClassOp Class = iota
	ClassObject
	ClassTimer
	ClassEvent
)

func (c Class) String() string {
	switch c {
	case ClassOp:
		return "op"
	case ClassObject:
		return "object"
	case ClassTimer:
		return "timer"
	case ClassEvent:
		return "event"
	default:
		return "unknown"
	}
}

const initialPartitionSize = 256

// Pool is a lock-free partitioned MPMC pool of recycled T values for a
// single class. Each partition is a fixed-capacity ring; when a Put
// finds every partition full, a new partition of double the capacity
// is appended under a short-held growth lock, matching spec.md §5's
// "Partition grows in powers of two; push retries on the next
// partition when the current is full."
type Pool[T any] struct {
	class Class
	new   func() T

	mu         sync.Mutex // guards partition-list growth only
	partitions []*ring[T]
}

// New creates a pool for the given class. newFn constructs a fresh T
// when every partition is empty at Get time.
func New[T any](class Class, newFn func() T) *Pool[T] {
	p := &Pool[T]{
		class:      class,
		new:        newFn,
		partitions: []*ring[T]{newRing[T](initialPartitionSize)},
	}
	return p
}

// Class reports which pool class this instance serves.
func (p *Pool[T]) Class() Class { return p.class }

// Get pops a recycled value if one is available in any partition, else
// constructs a fresh one via the pool's newFn.
func (p *Pool[T]) Get() T {
	p.mu.Lock()
	partitions := p.partitions
	p.mu.Unlock()

	for _, part := range partitions {
		if v, ok := part.pop(); ok {
			return v
		}
	}
	return p.new()
}

// Put returns v to the pool, recycling it for a future Get. It tries
// every existing partition before growing.
func (p *Pool[T]) Put(v T) {
	p.mu.Lock()
	partitions := p.partitions
	p.mu.Unlock()

	for _, part := range partitions {
		if part.push(v) {
			return
		}
	}

	p.growAndPush(v, len(partitions))
}

func (p *Pool[T]) growAndPush(v T, observedLen int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Another goroutine may have already grown the partition list
	// while we were retrying pushes; re-check before allocating.
	if len(p.partitions) == observedLen {
		lastCap := len(p.partitions[len(p.partitions)-1].slots)
		p.partitions = append(p.partitions, newRing[T](lastCap*2))
	}

	// Try the newest partitions (including any added by a racing
	// grower) before giving up — push cannot fail on a brand new,
	// empty partition.
	for i := observedLen; i < len(p.partitions); i++ {
		if p.partitions[i].push(v) {
			return
		}
	}
}

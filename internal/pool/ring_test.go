package pool

import (
	"sync"
	"testing"
)

func TestRingPushPopOrder(t *testing.T) {
	r := newRing[int](8)

	for i := 0; i < 5; i++ {
		if !r.push(i) {
			t.Fatalf("push(%d) unexpectedly reported full", i)
		}
	}

	for i := 0; i < 5; i++ {
		v, ok := r.pop()
		if !ok {
			t.Fatalf("pop() unexpectedly reported empty at i=%d", i)
		}
		if v != i {
			t.Fatalf("pop() = %d, want %d (FIFO order)", v, i)
		}
	}

	if _, ok := r.pop(); ok {
		t.Fatal("expected pop() on empty ring to report empty")
	}
}

func TestRingFullReportsFalse(t *testing.T) {
	r := newRing[int](4)
	for i := 0; i < 4; i++ {
		if !r.push(i) {
			t.Fatalf("push(%d) should have succeeded", i)
		}
	}
	if r.push(99) {
		t.Fatal("expected push on full ring to fail")
	}
}

func TestRingConcurrentPushPop(t *testing.T) {
	r := newRing[int](1024)
	const n = 5000

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			for !r.push(i) {
			}
		}
	}()

	seen := make([]bool, n)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			var v int
			var ok bool
			for {
				v, ok = r.pop()
				if ok {
					break
				}
			}
			seen[v] = true
		}
	}()

	wg.Wait()
	for i, ok := range seen {
		if !ok {
			t.Fatalf("value %d was never observed by the consumer", i)
		}
	}
}

func TestNewRingPanicsOnNonPowerOfTwo(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for non-power-of-two capacity")
		}
	}()
	newRing[int](3)
}

package looppool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestStartRunsOneGoroutinePerThread(t *testing.T) {
	var calls atomic.Int64
	seen := make([]atomic.Bool, 3)

	p := New(3, func(ctx context.Context, threadIndex int) error {
		seen[threadIndex].Store(true)
		calls.Add(1)
		time.Sleep(time.Millisecond)
		return nil
	})
	p.Start(context.Background())

	deadline := time.After(time.Second)
	for {
		if calls.Load() >= 30 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for threads to run")
		case <-time.After(time.Millisecond):
		}
	}
	p.Close()

	for i, s := range seen {
		if !s.Load() {
			t.Fatalf("thread %d never ran", i)
		}
	}
}

func TestCloseStopsAllThreads(t *testing.T) {
	p := New(2, func(ctx context.Context, threadIndex int) error {
		select {
		case <-ctx.Done():
		case <-time.After(time.Millisecond):
		}
		return nil
	})
	p.Start(context.Background())
	done := make(chan struct{})
	go func() {
		p.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not return")
	}
}

func TestThreadErrorStopsThePoolAndIsReported(t *testing.T) {
	boom := errors.New("boom")
	p := New(2, func(ctx context.Context, threadIndex int) error {
		if threadIndex == 0 {
			return boom
		}
		<-ctx.Done()
		return nil
	})
	p.Start(context.Background())
	p.Wait()

	if p.Err() == nil {
		t.Fatal("Err() = nil, want a wrapped fatal error")
	}
	if !errors.Is(p.Err(), boom) {
		t.Fatalf("Err() = %v, want it to wrap %v", p.Err(), boom)
	}
}

func TestThreadPanicIsRecoveredAndReportedAsFatal(t *testing.T) {
	p := New(1, func(ctx context.Context, threadIndex int) error {
		panic("kaboom")
	})
	p.Start(context.Background())
	p.Wait()

	if p.Err() == nil {
		t.Fatal("Err() = nil, want a fatal error recovered from the panic")
	}
}

func TestThreadCountReportsConfiguredSize(t *testing.T) {
	p := New(4, func(ctx context.Context, threadIndex int) error { <-ctx.Done(); return nil })
	if p.ThreadCount() != 4 {
		t.Fatalf("ThreadCount() = %d, want 4", p.ThreadCount())
	}
}

package asyncio

import (
	"testing"
	"time"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics()

	snap := m.Snapshot()
	if snap.TotalOps != 0 {
		t.Errorf("Expected 0 initial ops, got %d", snap.TotalOps)
	}

	m.RecordRead(1024, 1000000, StatusSuccess)
	m.RecordWrite(2048, 2000000, StatusSuccess)
	m.RecordRead(512, 500000, StatusDisconnected)

	snap = m.Snapshot()

	if snap.ReadOps != 2 {
		t.Errorf("Expected 2 read ops, got %d", snap.ReadOps)
	}
	if snap.WriteOps != 1 {
		t.Errorf("Expected 1 write op, got %d", snap.WriteOps)
	}

	if snap.ReadBytes != 1024 {
		t.Errorf("Expected 1024 read bytes, got %d", snap.ReadBytes)
	}
	if snap.WriteBytes != 2048 {
		t.Errorf("Expected 2048 write bytes, got %d", snap.WriteBytes)
	}

	if snap.OpsFailed != 1 {
		t.Errorf("Expected 1 failed op, got %d", snap.OpsFailed)
	}
	if snap.OpsSucceeded != 2 {
		t.Errorf("Expected 2 succeeded ops, got %d", snap.OpsSucceeded)
	}

	expectedErrorRate := float64(1) / float64(3) * 100.0
	if snap.ErrorRate < expectedErrorRate-0.1 || snap.ErrorRate > expectedErrorRate+0.1 {
		t.Errorf("Expected error rate ~%.1f%%, got %.1f%%", expectedErrorRate, snap.ErrorRate)
	}
}

func TestMetricsInFlight(t *testing.T) {
	m := NewMetrics()

	m.RecordInFlight(10)
	m.RecordInFlight(20)
	m.RecordInFlight(15)

	snap := m.Snapshot()

	if snap.MaxInFlight != 20 {
		t.Errorf("Expected max in-flight 20, got %d", snap.MaxInFlight)
	}

	expectedAvg := float64(10+20+15) / 3.0
	if snap.AvgInFlight < expectedAvg-0.1 || snap.AvgInFlight > expectedAvg+0.1 {
		t.Errorf("Expected avg in-flight %.1f, got %.1f", expectedAvg, snap.AvgInFlight)
	}
}

func TestMetricsLatency(t *testing.T) {
	m := NewMetrics()

	m.RecordRead(1024, 1000000, StatusSuccess)
	m.RecordWrite(1024, 2000000, StatusSuccess)

	snap := m.Snapshot()

	expectedAvgNs := uint64(1500000)
	if snap.AvgLatencyNs != expectedAvgNs {
		t.Errorf("Expected avg latency %d ns, got %d ns", expectedAvgNs, snap.AvgLatencyNs)
	}
}

func TestMetricsUptime(t *testing.T) {
	m := NewMetrics()

	time.Sleep(10 * time.Millisecond)

	snap := m.Snapshot()

	if snap.UptimeNs < 10*1000000 {
		t.Errorf("Expected uptime >= 10ms, got %d ns", snap.UptimeNs)
	}

	m.Stop()
	time.Sleep(5 * time.Millisecond)

	snap2 := m.Snapshot()

	if snap2.UptimeNs > snap.UptimeNs+2*1000000 {
		t.Errorf("Uptime increased too much after stop: %d -> %d", snap.UptimeNs, snap2.UptimeNs)
	}
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()

	m.RecordRead(1024, 1000000, StatusSuccess)
	m.RecordWrite(2048, 2000000, StatusSuccess)
	m.RecordInFlight(10)

	snap := m.Snapshot()
	if snap.TotalOps == 0 {
		t.Error("Expected some operations before reset")
	}

	m.Reset()

	snap = m.Snapshot()
	if snap.TotalOps != 0 {
		t.Errorf("Expected 0 ops after reset, got %d", snap.TotalOps)
	}
	if snap.TotalBytes != 0 {
		t.Errorf("Expected 0 bytes after reset, got %d", snap.TotalBytes)
	}
	if snap.MaxInFlight != 0 {
		t.Errorf("Expected 0 max in-flight after reset, got %d", snap.MaxInFlight)
	}
}

func TestObserver(t *testing.T) {
	observer := &NoOpObserver{}
	observer.ObserveRead(1024, 1000000, StatusSuccess)
	observer.ObserveWrite(1024, 1000000, StatusSuccess)
	observer.ObserveConnect(1000000, StatusSuccess)
	observer.ObserveAccept(1000000, StatusSuccess)
	observer.ObserveCombinerEntry()
	observer.ObserveTimeoutSweep()
	observer.ObserveCoroutineYield()
	observer.ObserveInFlight(10)

	m := NewMetrics()
	metricsObserver := NewMetricsObserver(m)

	metricsObserver.ObserveRead(1024, 1000000, StatusSuccess)
	metricsObserver.ObserveWrite(2048, 2000000, StatusSuccess)
	metricsObserver.ObserveCombinerEntry()
	metricsObserver.ObserveTimeoutSweep()
	metricsObserver.ObserveCoroutineYield()

	snap := m.Snapshot()
	if snap.ReadOps != 1 {
		t.Errorf("Expected 1 read op from observer, got %d", snap.ReadOps)
	}
	if snap.WriteOps != 1 {
		t.Errorf("Expected 1 write op from observer, got %d", snap.WriteOps)
	}
	if snap.ReadBytes != 1024 {
		t.Errorf("Expected 1024 read bytes from observer, got %d", snap.ReadBytes)
	}
	if snap.WriteBytes != 2048 {
		t.Errorf("Expected 2048 write bytes from observer, got %d", snap.WriteBytes)
	}
	if snap.CombinerEntries != 1 {
		t.Errorf("Expected 1 combiner entry from observer, got %d", snap.CombinerEntries)
	}
	if snap.TimeoutSweeps != 1 {
		t.Errorf("Expected 1 timeout sweep from observer, got %d", snap.TimeoutSweeps)
	}
	if snap.CoroutineYields != 1 {
		t.Errorf("Expected 1 coroutine yield from observer, got %d", snap.CoroutineYields)
	}
}

func TestMetricsRates(t *testing.T) {
	m := NewMetrics()

	startTime := time.Now()
	m.StartTime.Store(startTime.UnixNano())

	m.RecordRead(1024, 1000000, StatusSuccess)
	m.RecordWrite(2048, 2000000, StatusSuccess)

	stopTime := startTime.Add(1 * time.Second)
	m.StopTime.Store(stopTime.UnixNano())

	snap := m.Snapshot()

	if snap.OpsPerSec < 1.8 || snap.OpsPerSec > 2.2 {
		t.Errorf("Expected OpsPerSec ~2.0, got %.2f", snap.OpsPerSec)
	}
}

func TestMetricsHistogram(t *testing.T) {
	m := NewMetrics()

	for i := 0; i < 50; i++ {
		m.RecordRead(1024, 500_000, StatusSuccess)
	}
	for i := 0; i < 49; i++ {
		m.RecordWrite(1024, 5_000_000, StatusSuccess)
	}
	m.RecordWrite(1024, 50_000_000, StatusSuccess)

	snap := m.Snapshot()

	if snap.TotalOps != 100 {
		t.Errorf("Expected 100 total ops, got %d", snap.TotalOps)
	}

	if snap.LatencyP50Ns < 100_000 || snap.LatencyP50Ns > 1_000_000 {
		t.Errorf("Expected P50 in 100us-1ms range, got %d ns", snap.LatencyP50Ns)
	}

	if snap.LatencyP99Ns < 5_000_000 || snap.LatencyP99Ns > 100_000_000 {
		t.Errorf("Expected P99 in 5ms-100ms range, got %d ns", snap.LatencyP99Ns)
	}

	totalInBuckets := uint64(0)
	for i := 0; i < len(snap.LatencyHistogram); i++ {
		totalInBuckets += snap.LatencyHistogram[i]
	}
	if totalInBuckets == 0 {
		t.Error("Expected histogram buckets to be populated")
	}
}

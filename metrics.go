package asyncio

import (
	"sync/atomic"
	"time"
)

// LatencyBuckets defines the latency histogram buckets in nanoseconds.
// Buckets cover from 1us to 10s with logarithmic spacing.
var LatencyBuckets = []uint64{
	1_000,          // 1us
	10_000,         // 10us
	100_000,        // 100us
	1_000_000,      // 1ms
	10_000_000,     // 10ms
	100_000_000,    // 100ms
	1_000_000_000,  // 1s
	10_000_000_000, // 10s
}

const numLatencyBuckets = 8

// Metrics tracks runtime-wide operational statistics: submitted and
// completed operations per opcode, combiner and timeout-grid activity,
// and coroutine yield/resume traffic. It is the async-runtime
// equivalent of the teacher's per-device I/O counters.
type Metrics struct {
	// Per-opcode operation counters.
	ConnectOps  atomic.Uint64
	AcceptOps   atomic.Uint64
	ReadOps     atomic.Uint64
	WriteOps    atomic.Uint64
	ReadMsgOps  atomic.Uint64
	WriteMsgOps atomic.Uint64
	EventOps    atomic.Uint64

	// Byte counters for the transfer opcodes.
	ReadBytes  atomic.Uint64
	WriteBytes atomic.Uint64

	// Terminal-status counters, across all opcodes.
	OpsSucceeded atomic.Uint64
	OpsCanceled  atomic.Uint64
	OpsTimedOut  atomic.Uint64
	OpsFailed    atomic.Uint64

	// Combiner activity: how many times push_operation/push_counter
	// made the caller the combiner-owner, and how many reactor-arming
	// passes (Phase D) actually reprogrammed a descriptor.
	CombinerEntries atomic.Uint64
	ReactorRearms   atomic.Uint64

	// Timeout grid activity: insertions, removals and sweep passes.
	TimeoutInserts atomic.Uint64
	TimeoutRemoves atomic.Uint64
	TimeoutSweeps  atomic.Uint64

	// Coroutine layer activity.
	CoroutineYields  atomic.Uint64
	CoroutineResumes atomic.Uint64

	// In-flight operation gauge, fed through RecordInFlight (analogous
	// to the teacher's queue-depth gauge); the combiner does not call it.
	InFlightTotal atomic.Uint64
	InFlightCount atomic.Uint64
	MaxInFlight   atomic.Uint32

	// Performance tracking.
	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64

	// Latency histogram buckets (cumulative counts). Each bucket[i]
	// holds the count of operations with latency <= LatencyBuckets[i].
	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	// Runtime lifecycle.
	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordConnect records a connect operation's outcome and latency.
func (m *Metrics) RecordConnect(latencyNs uint64, status AsyncOpStatus) {
	m.ConnectOps.Add(1)
	m.recordStatus(status)
	m.recordLatency(latencyNs)
}

// RecordAccept records an accept operation's outcome and latency.
func (m *Metrics) RecordAccept(latencyNs uint64, status AsyncOpStatus) {
	m.AcceptOps.Add(1)
	m.recordStatus(status)
	m.recordLatency(latencyNs)
}

// RecordRead records a read operation's transferred bytes, outcome and
// latency.
func (m *Metrics) RecordRead(bytes uint64, latencyNs uint64, status AsyncOpStatus) {
	m.ReadOps.Add(1)
	if status == StatusSuccess {
		m.ReadBytes.Add(bytes)
	}
	m.recordStatus(status)
	m.recordLatency(latencyNs)
}

// RecordWrite records a write operation's transferred bytes, outcome
// and latency.
func (m *Metrics) RecordWrite(bytes uint64, latencyNs uint64, status AsyncOpStatus) {
	m.WriteOps.Add(1)
	if status == StatusSuccess {
		m.WriteBytes.Add(bytes)
	}
	m.recordStatus(status)
	m.recordLatency(latencyNs)
}

// RecordReadMsg records a datagram receive operation's outcome and
// latency.
func (m *Metrics) RecordReadMsg(bytes uint64, latencyNs uint64, status AsyncOpStatus) {
	m.ReadMsgOps.Add(1)
	if status == StatusSuccess {
		m.ReadBytes.Add(bytes)
	}
	m.recordStatus(status)
	m.recordLatency(latencyNs)
}

// RecordWriteMsg records a datagram send operation's outcome and
// latency.
func (m *Metrics) RecordWriteMsg(bytes uint64, latencyNs uint64, status AsyncOpStatus) {
	m.WriteMsgOps.Add(1)
	if status == StatusSuccess {
		m.WriteBytes.Add(bytes)
	}
	m.recordStatus(status)
	m.recordLatency(latencyNs)
}

// RecordEvent records a user-event or timer activation.
func (m *Metrics) RecordEvent(latencyNs uint64, status AsyncOpStatus) {
	m.EventOps.Add(1)
	m.recordStatus(status)
	m.recordLatency(latencyNs)
}

func (m *Metrics) recordStatus(status AsyncOpStatus) {
	switch status {
	case StatusSuccess:
		m.OpsSucceeded.Add(1)
	case StatusCanceled:
		m.OpsCanceled.Add(1)
	case StatusTimeout:
		m.OpsTimedOut.Add(1)
	default:
		m.OpsFailed.Add(1)
	}
}

// RecordCombinerEntry records that push_operation or push_counter made
// the calling goroutine the combiner-owner for an object.
func (m *Metrics) RecordCombinerEntry() {
	m.CombinerEntries.Add(1)
}

// RecordReactorRearm records a Phase D descriptor reprogramming.
func (m *Metrics) RecordReactorRearm() {
	m.ReactorRearms.Add(1)
}

// RecordTimeoutInsert records an insertion into the timeout grid.
func (m *Metrics) RecordTimeoutInsert() {
	m.TimeoutInserts.Add(1)
}

// RecordTimeoutRemove records a removal from the timeout grid, whether
// by cancellation or by natural expiry.
func (m *Metrics) RecordTimeoutRemove() {
	m.TimeoutRemoves.Add(1)
}

// RecordTimeoutSweep records one pass of the per-second sweep that
// extracts expired entries from the grid.
func (m *Metrics) RecordTimeoutSweep() {
	m.TimeoutSweeps.Add(1)
}

// RecordCoroutineYield records a coroutine parking itself via Yield.
func (m *Metrics) RecordCoroutineYield() {
	m.CoroutineYields.Add(1)
}

// RecordCoroutineResume records a coroutine being handed back control.
func (m *Metrics) RecordCoroutineResume() {
	m.CoroutineResumes.Add(1)
}

// RecordInFlight records the number of operations in flight on an
// object immediately after a combiner drain, updating the running max.
func (m *Metrics) RecordInFlight(count uint32) {
	m.InFlightTotal.Add(uint64(count))
	m.InFlightCount.Add(1)

	for {
		current := m.MaxInFlight.Load()
		if count <= current {
			break
		}
		if m.MaxInFlight.CompareAndSwap(current, count) {
			break
		}
	}
}

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)

	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// Stop marks the runtime as stopped.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time snapshot of Metrics.
type MetricsSnapshot struct {
	ConnectOps  uint64
	AcceptOps   uint64
	ReadOps     uint64
	WriteOps    uint64
	ReadMsgOps  uint64
	WriteMsgOps uint64
	EventOps    uint64

	ReadBytes  uint64
	WriteBytes uint64

	OpsSucceeded uint64
	OpsCanceled  uint64
	OpsTimedOut  uint64
	OpsFailed    uint64

	CombinerEntries uint64
	ReactorRearms   uint64

	TimeoutInserts uint64
	TimeoutRemoves uint64
	TimeoutSweeps  uint64

	CoroutineYields  uint64
	CoroutineResumes uint64

	AvgInFlight float64
	MaxInFlight uint32

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyP999Ns uint64

	LatencyHistogram [numLatencyBuckets]uint64

	TotalOps   uint64
	TotalBytes uint64
	OpsPerSec  float64
	ErrorRate  float64
}

// Snapshot creates a point-in-time snapshot of metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		ConnectOps:       m.ConnectOps.Load(),
		AcceptOps:        m.AcceptOps.Load(),
		ReadOps:          m.ReadOps.Load(),
		WriteOps:         m.WriteOps.Load(),
		ReadMsgOps:       m.ReadMsgOps.Load(),
		WriteMsgOps:      m.WriteMsgOps.Load(),
		EventOps:         m.EventOps.Load(),
		ReadBytes:        m.ReadBytes.Load(),
		WriteBytes:       m.WriteBytes.Load(),
		OpsSucceeded:     m.OpsSucceeded.Load(),
		OpsCanceled:      m.OpsCanceled.Load(),
		OpsTimedOut:      m.OpsTimedOut.Load(),
		OpsFailed:        m.OpsFailed.Load(),
		CombinerEntries:  m.CombinerEntries.Load(),
		ReactorRearms:    m.ReactorRearms.Load(),
		TimeoutInserts:   m.TimeoutInserts.Load(),
		TimeoutRemoves:   m.TimeoutRemoves.Load(),
		TimeoutSweeps:    m.TimeoutSweeps.Load(),
		CoroutineYields:  m.CoroutineYields.Load(),
		CoroutineResumes: m.CoroutineResumes.Load(),
		MaxInFlight:      m.MaxInFlight.Load(),
	}

	snap.TotalOps = snap.ConnectOps + snap.AcceptOps + snap.ReadOps + snap.WriteOps + snap.ReadMsgOps + snap.WriteMsgOps + snap.EventOps
	snap.TotalBytes = snap.ReadBytes + snap.WriteBytes

	inFlightTotal := m.InFlightTotal.Load()
	inFlightCount := m.InFlightCount.Load()
	if inFlightCount > 0 {
		snap.AvgInFlight = float64(inFlightTotal) / float64(inFlightCount)
	}

	totalLatencyNs := m.TotalLatencyNs.Load()
	opCount := m.OpCount.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = totalLatencyNs / opCount
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	if snap.UptimeNs > 0 {
		uptimeSeconds := float64(snap.UptimeNs) / 1e9
		snap.OpsPerSec = float64(snap.TotalOps) / uptimeSeconds
	}

	totalFailed := snap.OpsTimedOut + snap.OpsFailed
	if snap.TotalOps > 0 {
		snap.ErrorRate = float64(totalFailed) / float64(snap.TotalOps) * 100.0
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}

	if opCount > 0 {
		snap.LatencyP50Ns = m.calculatePercentile(0.50)
		snap.LatencyP99Ns = m.calculatePercentile(0.99)
		snap.LatencyP999Ns = m.calculatePercentile(0.999)
	}

	return snap
}

// calculatePercentile estimates the latency at the given percentile
// (0.0-1.0) using linear interpolation between histogram buckets.
func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	totalOps := m.OpCount.Load()
	if totalOps == 0 {
		return 0
	}

	targetCount := uint64(float64(totalOps) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		bucketCount := m.LatencyBuckets[i].Load()
		if bucketCount >= targetCount {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyBuckets[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(targetCount-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}

	return LatencyBuckets[numLatencyBuckets-1]
}

// Reset resets all metrics counters. Useful for tests.
func (m *Metrics) Reset() {
	m.ConnectOps.Store(0)
	m.AcceptOps.Store(0)
	m.ReadOps.Store(0)
	m.WriteOps.Store(0)
	m.ReadMsgOps.Store(0)
	m.WriteMsgOps.Store(0)
	m.EventOps.Store(0)
	m.ReadBytes.Store(0)
	m.WriteBytes.Store(0)
	m.OpsSucceeded.Store(0)
	m.OpsCanceled.Store(0)
	m.OpsTimedOut.Store(0)
	m.OpsFailed.Store(0)
	m.CombinerEntries.Store(0)
	m.ReactorRearms.Store(0)
	m.TimeoutInserts.Store(0)
	m.TimeoutRemoves.Store(0)
	m.TimeoutSweeps.Store(0)
	m.CoroutineYields.Store(0)
	m.CoroutineResumes.Store(0)
	m.InFlightTotal.Store(0)
	m.InFlightCount.Store(0)
	m.MaxInFlight.Store(0)
	m.TotalLatencyNs.Store(0)
	m.OpCount.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.LatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Observer allows pluggable metrics collection. The Base calls
// ObserveReactorRearm on every reactor re-arm; the runtime calls none
// of the other methods. Implementations must be safe to call
// concurrently from every loop thread.
type Observer interface {
	ObserveConnect(latencyNs uint64, status AsyncOpStatus)
	ObserveAccept(latencyNs uint64, status AsyncOpStatus)
	ObserveRead(bytes uint64, latencyNs uint64, status AsyncOpStatus)
	ObserveWrite(bytes uint64, latencyNs uint64, status AsyncOpStatus)
	ObserveReadMsg(bytes uint64, latencyNs uint64, status AsyncOpStatus)
	ObserveWriteMsg(bytes uint64, latencyNs uint64, status AsyncOpStatus)
	ObserveEvent(latencyNs uint64, status AsyncOpStatus)
	ObserveCombinerEntry()
	ObserveReactorRearm()
	ObserveTimeoutInsert()
	ObserveTimeoutRemove()
	ObserveTimeoutSweep()
	ObserveCoroutineYield()
	ObserveCoroutineResume()
	ObserveInFlight(count uint32)
}

// NoOpObserver is a no-op implementation of Observer; it is the default
// when no Option supplies one.
type NoOpObserver struct{}

func (NoOpObserver) ObserveConnect(uint64, AsyncOpStatus)        {}
func (NoOpObserver) ObserveAccept(uint64, AsyncOpStatus)         {}
func (NoOpObserver) ObserveRead(uint64, uint64, AsyncOpStatus)   {}
func (NoOpObserver) ObserveWrite(uint64, uint64, AsyncOpStatus)  {}
func (NoOpObserver) ObserveReadMsg(uint64, uint64, AsyncOpStatus) {}
func (NoOpObserver) ObserveWriteMsg(uint64, uint64, AsyncOpStatus) {}
func (NoOpObserver) ObserveEvent(uint64, AsyncOpStatus)          {}
func (NoOpObserver) ObserveCombinerEntry()                       {}
func (NoOpObserver) ObserveReactorRearm()                        {}
func (NoOpObserver) ObserveTimeoutInsert()                       {}
func (NoOpObserver) ObserveTimeoutRemove()                       {}
func (NoOpObserver) ObserveTimeoutSweep()                        {}
func (NoOpObserver) ObserveCoroutineYield()                      {}
func (NoOpObserver) ObserveCoroutineResume()                     {}
func (NoOpObserver) ObserveInFlight(uint32)                      {}

// MetricsObserver implements Observer by recording into a *Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to the given
// metrics instance.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveConnect(latencyNs uint64, status AsyncOpStatus) {
	o.metrics.RecordConnect(latencyNs, status)
}

func (o *MetricsObserver) ObserveAccept(latencyNs uint64, status AsyncOpStatus) {
	o.metrics.RecordAccept(latencyNs, status)
}

func (o *MetricsObserver) ObserveRead(bytes uint64, latencyNs uint64, status AsyncOpStatus) {
	o.metrics.RecordRead(bytes, latencyNs, status)
}

func (o *MetricsObserver) ObserveWrite(bytes uint64, latencyNs uint64, status AsyncOpStatus) {
	o.metrics.RecordWrite(bytes, latencyNs, status)
}

func (o *MetricsObserver) ObserveReadMsg(bytes uint64, latencyNs uint64, status AsyncOpStatus) {
	o.metrics.RecordReadMsg(bytes, latencyNs, status)
}

func (o *MetricsObserver) ObserveWriteMsg(bytes uint64, latencyNs uint64, status AsyncOpStatus) {
	o.metrics.RecordWriteMsg(bytes, latencyNs, status)
}

func (o *MetricsObserver) ObserveEvent(latencyNs uint64, status AsyncOpStatus) {
	o.metrics.RecordEvent(latencyNs, status)
}

func (o *MetricsObserver) ObserveCombinerEntry() { o.metrics.RecordCombinerEntry() }
func (o *MetricsObserver) ObserveReactorRearm()  { o.metrics.RecordReactorRearm() }
func (o *MetricsObserver) ObserveTimeoutInsert() { o.metrics.RecordTimeoutInsert() }
func (o *MetricsObserver) ObserveTimeoutRemove() { o.metrics.RecordTimeoutRemove() }
func (o *MetricsObserver) ObserveTimeoutSweep()  { o.metrics.RecordTimeoutSweep() }
func (o *MetricsObserver) ObserveCoroutineYield() { o.metrics.RecordCoroutineYield() }
func (o *MetricsObserver) ObserveCoroutineResume() {
	o.metrics.RecordCoroutineResume()
}

func (o *MetricsObserver) ObserveInFlight(count uint32) {
	o.metrics.RecordInFlight(count)
}

// Compile-time interface checks.
var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)

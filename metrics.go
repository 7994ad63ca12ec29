package gvsoc

import (
	"sync/atomic"
	"time"
)

// LatencyBuckets defines the latency histogram buckets in nanoseconds,
// covering from 1us to 10s with logarithmic spacing — wall-clock time spent
// computing a decode or a transfer, not simulated cycles.
var LatencyBuckets = []uint64{
	1_000,
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
	1_000_000_000,
	10_000_000_000,
}

const numLatencyBuckets = 8

// Metrics tracks operational statistics for a router and the uDMA
// controllers built on top of it. Adapted from the teacher's block-device
// IOPS/latency metrics: operations are route decodes and uDMA transfers
// instead of block reads/writes.
type Metrics struct {
	RouteOps    atomic.Uint64
	RouteErrors atomic.Uint64

	TransferOps    atomic.Uint64
	TransferErrors atomic.Uint64
	BytesRead      atomic.Uint64
	BytesWritten   atomic.Uint64

	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64

	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordRoute records a single router decode outcome.
func (m *Metrics) RecordRoute(latencyNs uint64, ok bool) {
	m.RouteOps.Add(1)
	if !ok {
		m.RouteErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordTransfer records a uDMA transfer completion.
func (m *Metrics) RecordTransfer(bytes uint64, isWrite bool, latencyNs uint64, ok bool) {
	m.TransferOps.Add(1)
	if !ok {
		m.TransferErrors.Add(1)
	} else if isWrite {
		m.BytesWritten.Add(bytes)
	} else {
		m.BytesRead.Add(bytes)
	}
	m.recordLatency(latencyNs)
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

// Stop marks the simulation run as stopped.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time view of Metrics with derived rates.
type MetricsSnapshot struct {
	RouteOps    uint64
	RouteErrors uint64

	TransferOps    uint64
	TransferErrors uint64
	BytesRead      uint64
	BytesWritten   uint64

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyP50Ns uint64
	LatencyP99Ns uint64

	LatencyHistogram [numLatencyBuckets]uint64

	RouteErrorRate    float64
	TransferErrorRate float64
}

// Snapshot produces a MetricsSnapshot from the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		RouteOps:       m.RouteOps.Load(),
		RouteErrors:    m.RouteErrors.Load(),
		TransferOps:    m.TransferOps.Load(),
		TransferErrors: m.TransferErrors.Load(),
		BytesRead:      m.BytesRead.Load(),
		BytesWritten:   m.BytesWritten.Load(),
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

	if snap.RouteOps > 0 {
		snap.RouteErrorRate = float64(snap.RouteErrors) / float64(snap.RouteOps) * 100.0
	}
	if snap.TransferOps > 0 {
		snap.TransferErrorRate = float64(snap.TransferErrors) / float64(snap.TransferOps) * 100.0
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}

	if opCount > 0 {
		snap.LatencyP50Ns = m.calculatePercentile(0.50)
		snap.LatencyP99Ns = m.calculatePercentile(0.99)
	}

	return snap
}

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

// Reset zeroes all counters, for test isolation.
func (m *Metrics) Reset() {
	m.RouteOps.Store(0)
	m.RouteErrors.Store(0)
	m.TransferOps.Store(0)
	m.TransferErrors.Store(0)
	m.BytesRead.Store(0)
	m.BytesWritten.Store(0)
	m.TotalLatencyNs.Store(0)
	m.OpCount.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.LatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Observer allows pluggable metrics collection, mirroring the teacher's
// Observer/NoOpObserver/MetricsObserver trio.
type Observer interface {
	ObserveRoute(latencyNs uint64, ok bool)
	ObserveTransfer(bytes uint64, isWrite bool, latencyNs uint64, ok bool)
}

// NoOpObserver discards every observation.
type NoOpObserver struct{}

func (NoOpObserver) ObserveRoute(uint64, bool)             {}
func (NoOpObserver) ObserveTransfer(uint64, bool, uint64, bool) {}

// MetricsObserver implements Observer on top of a Metrics instance.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records into m.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveRoute(latencyNs uint64, ok bool) {
	o.metrics.RecordRoute(latencyNs, ok)
}

func (o *MetricsObserver) ObserveTransfer(bytes uint64, isWrite bool, latencyNs uint64, ok bool) {
	o.metrics.RecordTransfer(bytes, isWrite, latencyNs, ok)
}

var (
	_ Observer = (*MetricsObserver)(nil)
	_ Observer = (*NoOpObserver)(nil)
)

package metrics

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Metrics tracks pipeline progress with atomic counters so the serve-mode
// workers and the HTTP snapshot handler can share one instance.
type Metrics struct {
	records    int64 // atomic
	chunks     int64 // atomic
	failedRuns int64 // atomic
	start      int64 // stores UnixNano, atomic
}

func New() *Metrics {
	return &Metrics{}
}

func (m *Metrics) Start() {
	atomic.StoreInt64(&m.start, time.Now().UnixNano())
	atomic.StoreInt64(&m.records, 0)
	atomic.StoreInt64(&m.chunks, 0)
	atomic.StoreInt64(&m.failedRuns, 0)
}

func (m *Metrics) AddRecords(n int64) int64 {
	return atomic.AddInt64(&m.records, n)
}

func (m *Metrics) IncChunks() int64 {
	return atomic.AddInt64(&m.chunks, 1)
}

func (m *Metrics) IncFailed() int64 {
	return atomic.AddInt64(&m.failedRuns, 1)
}

func (m *Metrics) Snapshot() (records, chunks, failed int64, elapsed time.Duration) {
	return atomic.LoadInt64(&m.records),
		atomic.LoadInt64(&m.chunks),
		atomic.LoadInt64(&m.failedRuns),
		m.Elapsed()
}

func (m *Metrics) Elapsed() time.Duration {
	start := atomic.LoadInt64(&m.start)
	if start == 0 {
		return 0
	}
	return time.Since(time.Unix(0, start))
}

func (m *Metrics) String() string {
	records, chunks, failed, elapsed := m.Snapshot()
	return fmt.Sprintf("records written=%d / chunks committed=%d / failed runs=%d / time elapsed=%v",
		records, chunks, failed, elapsed)
}

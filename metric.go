package rcu

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Metric collects deltas of type D pushed by any number of producer
// goroutines into accumulators of type C drained by Collect. It is the
// inverse of CopyRcu: many writers, one pull point.
//
// Each producer goroutine holds a Producer handle backed by its own
// two-goroutine Accumulator, so pushing a delta is wait-free (at most
// two atomic RMW operations, no locks, no allocation). Collect walks
// all per-producer accumulators under a mutex; it serializes with other
// collectors but never with producers.
//
// The apply operation runs on both sides of each per-producer channel,
// possibly twice per delta on distinct accumulators, so it must be a
// left-associative monoidal fold (numeric addition, set union, append).
type Metric[C, D any] struct {
	apply func(*C, D)

	mu  sync.Mutex // guards reg
	reg delayedRegistry[Accumulator[C, D]]

	collectMu sync.Mutex // serializes collectors

	producers uint64 // guarded by mu
	abandoned uint64 // guarded by collectMu
	collects  uint64 // guarded by collectMu
}

// MetricStats is a point-in-time snapshot of bookkeeping counters.
type MetricStats struct {
	// Producers is the total number of Producer handles ever created.
	Producers uint64
	// Abandoned is the number of producers drained after their handle
	// was closed or collected.
	Abandoned uint64
	// Collects is the number of completed Collect calls.
	Collects uint64
}

// NewMetric creates a metric with the given fold operation.
func NewMetric[C, D any](apply func(*C, D)) *Metric[C, D] {
	if apply == nil {
		panic("apply must not be nil")
	}
	return &Metric[C, D]{apply: apply}
}

// Producer registers a new per-goroutine producer handle. Creating one
// is thread-safe; the returned handle must be used by one goroutine
// only. Close it when done; a handle that is dropped instead is
// detected by the garbage collector and drained by a later Collect, so
// no pushed delta is ever lost.
func (m *Metric[C, D]) Producer() *Producer[C, D] {
	acc := NewAccumulator[C, D](m.apply)
	m.mu.Lock()
	flag := m.reg.add(acc)
	m.producers++
	m.mu.Unlock()
	p := &Producer[C, D]{left: acc.Left(), flag: flag}
	p.cleanup = runtime.AddCleanup(p, func(f *atomic.Bool) { f.Store(true) }, flag)
	return p
}

// Collect drains every producer's accumulated value and returns them in
// unspecified order, resetting each accumulator to the zero C. Values
// of producers abandoned since the previous Collect are drained one
// last time and their instances dropped.
//
// Thread-safe and blocking: concurrent collectors queue on an internal
// mutex. Producers are never blocked by a collect.
func (m *Metric[C, D]) Collect() []C {
	m.collectMu.Lock()
	defer m.collectMu.Unlock()
	m.mu.Lock()
	live, abandoned := m.reg.pruneAndList()
	m.mu.Unlock()
	out := make([]C, 0, len(live)+len(abandoned))
	for _, acc := range live {
		out = append(out, acc.Right().Drain())
	}
	for _, acc := range abandoned {
		out = append(out, acc.Right().Drain())
	}
	m.abandoned += uint64(len(abandoned))
	m.collects++
	return out
}

// Stats returns a snapshot of the bookkeeping counters.
func (m *Metric[C, D]) Stats() MetricStats {
	m.collectMu.Lock()
	defer m.collectMu.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()
	return MetricStats{
		Producers: m.producers,
		Abandoned: m.abandoned,
		Collects:  m.collects,
	}
}

// Producer is the per-goroutine write handle of a Metric.
type Producer[C, D any] struct {
	left    AccSide[C, D]
	flag    *atomic.Bool
	cleanup runtime.Cleanup
	closed  bool
}

// Update folds d into this producer's accumulator. Wait-free: at most
// two atomic RMW operations, no locks, no allocation.
func (p *Producer[C, D]) Update(d D) {
	p.left.Push(d)
}

// Close hands the producer's remaining deltas over to the next Collect
// and releases the handle. Idempotent. The handle must not be used
// afterwards.
func (p *Producer[C, D]) Close() {
	if p.closed {
		return
	}
	p.closed = true
	p.cleanup.Stop()
	p.flag.Store(true)
}

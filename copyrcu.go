package rcu

import "sync"

// CopyRcu broadcasts a value to any number of reader goroutines with
// fast, wait-free reads. Each reader goroutine holds a View; an update
// copies the new value into every registered view's LocalRcu, so a
// subsequent Snapshot is a single atomic exchange plus a copy of T.
//
// Updates are deliberately coarse: Update holds an internal mutex for
// the whole fan-out, which serializes concurrent updaters and keeps a
// total order of values per instance. Reader throughput dominates the
// intended workloads, and readers never touch that mutex.
//
// T must be copyable in the value sense (copies must not share mutable
// state). For payloads where copying is expensive, use the pointer
// alias Rcu.
type CopyRcu[T any] struct {
	mu    sync.Mutex
	value T
	views weakRegistry[View[T]]
}

// Rcu is CopyRcu specialized to a pointer payload: Update distributes
// the pointer and reader snapshots copy only the pointer, never T. The
// pointed-to value must be treated as immutable by all readers.
type Rcu[T any] = CopyRcu[*T]

// NewCopyRcu creates a broadcast whose initial value is the zero T.
func NewCopyRcu[T any]() *CopyRcu[T] {
	var zero T
	return NewCopyRcuOf(zero)
}

// NewCopyRcuOf creates a broadcast with an explicit initial value.
func NewCopyRcuOf[T any](initial T) *CopyRcu[T] {
	return &CopyRcu[T]{value: initial}
}

// Update distributes value to every live view and returns the previous
// value. Views whose goroutines dropped them are pruned along the way.
// Readers that already hold a snapshot keep observing the old value
// until their next Snapshot.
//
// Thread-safe; any goroutine may call it, with or without a View.
func (r *CopyRcu[T]) Update(value T) T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updateLocked(value)
}

// UpdateIf distributes value only if the current value satisfies pred.
// It returns the previous value and true if the update happened, or the
// zero T and false if pred rejected the current value. pred runs under
// the internal mutex and must not call back into r.
func (r *CopyRcu[T]) UpdateIf(value T, pred func(T) bool) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !pred(r.value) {
		var zero T
		return zero, false
	}
	return r.updateLocked(value), true
}

func (r *CopyRcu[T]) updateLocked(value T) T {
	for _, v := range r.views.pruneAndList() {
		// Readers only ever want the latest value: force the update and
		// let an unseen intermediate value be discarded.
		*v.local.Update() = value
		v.local.ForceUpdate()
	}
	old := r.value
	r.value = value
	return old
}

// View registers a new per-goroutine view. The view immediately
// observes the currently active value. Each goroutine must use its own
// view; creating one is thread-safe, using one is not.
//
// A view that is no longer needed should be Closed; one that is simply
// dropped is pruned on a later Update instead.
func (r *CopyRcu[T]) View() *View[T] {
	v := new(View[T])
	r.mu.Lock()
	v.rcu = r
	v.local = NewLocalRcuOf(r.value, r.value, r.value)
	r.views.add(v)
	r.mu.Unlock()
	return v
}

// View is the per-goroutine read handle of a CopyRcu.
type View[T any] struct {
	rcu    *CopyRcu[T]
	local  *LocalRcu[T]
	closed bool
}

// Snapshot returns a copy of the most recent value distributed to this
// view. Wait-free: one atomic exchange plus the copy.
func (v *View[T]) Snapshot() T {
	v.local.TryRead()
	return *v.local.Read()
}

// SnapshotRef is the copy-free variant: the returned reference is valid
// until the next Snapshot or SnapshotRef on this view, and fresh
// reports whether this call advanced to a newly distributed value.
func (v *View[T]) SnapshotRef() (ref *T, fresh bool) {
	fresh = v.local.TryRead()
	return v.local.Read(), fresh
}

// Close deregisters the view from its CopyRcu. Idempotent. The view
// must not be used afterwards.
func (v *View[T]) Close() {
	if v.closed {
		return
	}
	v.closed = true
	v.rcu.mu.Lock()
	v.rcu.views.remove(v)
	v.rcu.mu.Unlock()
}

package rcu

import "sync/atomic"

const nullIdx int32 = -1

// LocalRcu passes values of T between exactly two goroutines, an
// Updater and a Reader, with most-recent-value semantics: the reader
// only ever advances to the latest value the updater published, and
// values the reader never saw are reclaimed by the updater.
//
// It juggles three pre-allocated cells: one bound to Read, one bound to
// Update, and one in flight between the two sides. The in-flight cell
// travels either updater-to-reader (a fresh value was published) or
// reader-to-updater (the reader released a cell and waits for the next
// value); the direction is encoded in a single atomic word, so every
// operation below is a single atomic instruction at most.
//
// No two Read-side methods (Read, TryRead) may be called concurrently,
// and no two Update-side methods (Update, TryUpdate, ForceUpdate,
// ReclaimByUpdate). The usual arrangement is one goroutine per side.
type LocalRcu[T any] struct {
	// Optional padding to avoid false sharing between frequently accessed fields
	_        [64]byte
	nextRead atomic.Int32 // index of a fresh value for the reader, or nullIdx
	_        [64]byte
	readIdx  int32 // owned by the reader goroutine
	_        [60]byte
	updIdx   int32 // owned by the updater goroutine
	updNext  int32 // the updater's last pushed nextRead index
	_        [56]byte
	cells    [3]T
}

// NewLocalRcu creates an instance with all three cells zero-valued.
func NewLocalRcu[T any]() *LocalRcu[T] {
	var zero T
	return NewLocalRcuOf(zero, zero, zero)
}

// NewLocalRcuOf creates an instance with explicit initial cell values:
// read is what Read returns before the first successful TryRead, update
// is what Update returns, and reclaim is the value the updater gets
// back in Update after its first successful TryUpdate or ForceUpdate.
func NewLocalRcuOf[T any](read, update, reclaim T) *LocalRcu[T] {
	r := &LocalRcu[T]{}
	r.cells = [3]T{read, update, reclaim}
	r.nextRead.Store(nullIdx)
	r.readIdx = 0
	r.updIdx = 1
	r.updNext = 0
	return r
}

// Read returns the cell bound to the reading goroutine. The reference
// is stable (same cell, untouched contents) until the next TryRead that
// returns true.
func (r *LocalRcu[T]) Read() *T {
	return &r.cells[r.readIdx]
}

// TryRead advances the reader to a fresh value, if one is available.
// On true the previous Read reference is invalid: its cell has been
// released to the updater. On false nothing changed.
func (r *LocalRcu[T]) TryRead() bool {
	next := r.nextRead.Swap(nullIdx)
	if next == nullIdx {
		return false
	}
	r.readIdx = next
	return true
}

// Update returns the cell bound to the updating goroutine, valid until
// the next TryUpdate or ForceUpdate that advances.
func (r *LocalRcu[T]) Update() *T {
	return &r.cells[r.updIdx]
}

// TryUpdate publishes the Update cell to the reader, but only if the
// reader has consumed the previously published value. On true the
// updater advances: Update now returns the cell the reader released.
// On false (the reader has not advanced yet) nothing changed.
func (r *LocalRcu[T]) TryUpdate() bool {
	if !r.nextRead.CompareAndSwap(nullIdx, r.updIdx) {
		return false
	}
	r.rotateAfterNext()
	return true
}

// ForceUpdate publishes the Update cell to the reader regardless of
// whether the previously published value was consumed. Returns true if
// it was (the updater reclaims the cell the reader released), false if
// the unconsumed value is taken back into Update and discarded by the
// next write. Either way the previous Update reference is invalid.
func (r *LocalRcu[T]) ForceUpdate() bool {
	old := r.nextRead.Swap(r.updIdx)
	if old == nullIdx {
		r.rotateAfterNext()
		return true
	}
	// The reader hasn't advanced: swap the update and in-flight roles.
	r.updNext = r.updIdx
	r.updIdx = old
	return false
}

// ReclaimByUpdate returns the in-flight cell if it is travelling from
// the reader to the updater, i.e. the cell the reader most recently
// released. It returns false while a published value awaits the reader.
// The reference is valid until the next Update-side advance.
func (r *LocalRcu[T]) ReclaimByUpdate() (*T, bool) {
	if r.nextRead.Load() != nullIdx {
		return nil, false
	}
	return &r.cells[3-r.updIdx-r.updNext], true
}

// After updIdx was pushed to nextRead, rotate the remaining indices:
// updNext takes updIdx, updIdx takes the old reader-released cell.
func (r *LocalRcu[T]) rotateAfterNext() {
	oldRead := 3 - r.updIdx - r.updNext
	r.updNext = r.updIdx
	r.updIdx = oldRead
}

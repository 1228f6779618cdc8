package rcu

import (
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// S3: every view observes an update, whether it registered before or
// after the update happened.
func TestCopyRcuBroadcast(t *testing.T) {
	r := NewCopyRcu[int]()

	a := r.View()
	defer a.Close()
	require.Equal(t, 0, a.Snapshot())

	require.Equal(t, 0, r.Update(42))
	require.Equal(t, 42, a.Snapshot())

	b := r.View()
	defer b.Close()
	require.Equal(t, 42, b.Snapshot())

	_, ok := r.UpdateIf(7, func(v int) bool { return v == 0 })
	require.False(t, ok, "the predicate no longer holds")
	require.Equal(t, 42, a.Snapshot())

	old, ok := r.UpdateIf(7, func(v int) bool { return v == 42 })
	require.True(t, ok)
	require.Equal(t, 42, old)
	require.Equal(t, 7, a.Snapshot())
}

func TestCopyRcuUpdateReturnsPrevious(t *testing.T) {
	r := NewCopyRcuOf(1)
	require.Equal(t, 1, r.Update(2))
	require.Equal(t, 2, r.Update(3))
}

// A reference obtained by SnapshotRef stays stable across updates until
// the same view snapshots again.
func TestCopyRcuSnapshotRefStability(t *testing.T) {
	r := NewCopyRcuOf(42)
	v := r.View()
	defer v.Close()

	ref, fresh := v.SnapshotRef()
	require.False(t, fresh, "the initial value is not a fresh distribution")
	require.Equal(t, 42, *ref)

	r.Update(73)
	require.Equal(t, 42, *ref, "a held reference must not change under an update")

	ref2, fresh := v.SnapshotRef()
	require.True(t, fresh)
	require.Equal(t, 73, *ref2)

	ref3, fresh := v.SnapshotRef()
	require.False(t, fresh, "nothing new was distributed")
	require.Same(t, ref2, ref3, "snapshots without fresh values must not move")
}

// Dropping a view without Close must not leak its registration: the
// weak entry expires and a later update prunes it.
func TestCopyRcuPrunesDroppedViews(t *testing.T) {
	r := NewCopyRcu[int]()

	keep := r.View()
	defer keep.Close()
	func() {
		_ = r.View() // dropped immediately
	}()

	views := func() int {
		r.mu.Lock()
		defer r.mu.Unlock()
		return len(r.views.entries)
	}
	require.Equal(t, 2, views())

	for i := 0; i < 500 && views() != 1; i++ {
		runtime.GC()
		time.Sleep(time.Millisecond)
		r.Update(i + 1)
	}
	require.Equal(t, 1, views())
	require.GreaterOrEqual(t, keep.Snapshot(), 1, "the surviving view still works")
}

func TestCopyRcuCloseIsIdempotent(t *testing.T) {
	r := NewCopyRcu[int]()
	v := r.View()
	v.Close()
	v.Close()

	r.mu.Lock()
	n := len(r.views.entries)
	r.mu.Unlock()
	require.Zero(t, n)
}

// Concurrent readers must observe a non-decreasing sequence ending at
// the final published value.
func TestCopyRcuConcurrentSnapshots(t *testing.T) {
	const (
		readers = 4
		last    = 10_000
	)

	r := NewCopyRcu[int]()

	var ready, wg sync.WaitGroup
	ready.Add(readers)
	wg.Add(readers)
	for i := 0; i < readers; i++ {
		go func() {
			defer wg.Done()
			v := r.View()
			defer v.Close()
			ready.Done()
			prev := 0
			for prev != last {
				cur := v.Snapshot()
				if cur < prev {
					t.Errorf("snapshot went backwards: %d after %d", cur, prev)
					return
				}
				prev = cur
			}
		}()
	}

	ready.Wait()
	for i := 1; i <= last; i++ {
		r.Update(i)
	}
	wg.Wait()
}

// The pointer alias distributes only the pointer; readers share the
// pointed-to value.
func TestRcuPointerPayload(t *testing.T) {
	type config struct{ limit int }

	var r *Rcu[config] = NewCopyRcuOf(&config{limit: 10})
	v := r.View()
	defer v.Close()

	require.Equal(t, 10, v.Snapshot().limit)

	old := r.Update(&config{limit: 20})
	require.Equal(t, 10, old.limit)
	require.Equal(t, 20, v.Snapshot().limit)
}

func BenchmarkCopyRcuSnapshot(b *testing.B) {
	r := NewCopyRcuOf(uint64(42))
	v := r.View()
	defer v.Close()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = v.Snapshot()
	}
}

func BenchmarkCopyRcuUpdate(b *testing.B) {
	r := NewCopyRcuOf(uint64(0))
	v := r.View()
	defer v.Close()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		r.Update(uint64(i))
	}
}

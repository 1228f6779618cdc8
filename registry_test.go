package rcu

import (
	"runtime"
	"testing"
	"time"
)

func TestDelayedRegistryAbandonment(t *testing.T) {
	var r delayedRegistry[int]

	a, b := new(int), new(int)
	flagA := r.add(a)
	r.add(b)

	live, abandoned := r.pruneAndList()
	if len(live) != 2 || len(abandoned) != 0 {
		t.Fatalf("expected 2 live, 0 abandoned; got %d/%d", len(live), len(abandoned))
	}

	flagA.Store(true)
	live, abandoned = r.pruneAndList()
	if len(live) != 1 || len(abandoned) != 1 {
		t.Fatalf("expected 1 live, 1 abandoned; got %d/%d", len(live), len(abandoned))
	}
	if abandoned[0] != a || live[0] != b {
		t.Fatalf("the flagged entry must be the abandoned one")
	}

	// Abandoned entries are handed out exactly once.
	live, abandoned = r.pruneAndList()
	if len(live) != 1 || len(abandoned) != 0 {
		t.Fatalf("expected 1 live, 0 abandoned; got %d/%d", len(live), len(abandoned))
	}
}

func TestWeakRegistryRemove(t *testing.T) {
	var r weakRegistry[int]

	a, b := new(int), new(int)
	r.add(a)
	r.add(b)
	r.remove(a)

	live := r.pruneAndList()
	if len(live) != 1 || live[0] != b {
		t.Fatalf("expected only the remaining entry, got %v", live)
	}
}

// Large enough to stay out of the tiny allocator, which could batch a
// dropped entry into the same block as a live one and delay its expiry.
type registryEntry struct {
	_ [128]byte
}

func TestWeakRegistryExpiry(t *testing.T) {
	var r weakRegistry[registryEntry]

	keep := new(registryEntry)
	r.add(keep)
	func() {
		r.add(new(registryEntry)) // dropped immediately
	}()

	ok := false
	for i := 0; i < 500 && !ok; i++ {
		runtime.GC()
		time.Sleep(time.Millisecond)
		ok = len(r.pruneAndList()) == 1
	}
	if !ok {
		t.Fatalf("the dropped entry must expire")
	}
	if live := r.pruneAndList(); len(live) != 1 || live[0] != keep {
		t.Fatalf("the kept entry must survive pruning")
	}
}

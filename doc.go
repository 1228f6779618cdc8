// Package rcu provides lock-free primitives for sharing values between
// concurrent goroutines without mutual exclusion on the hot paths.
//
// The core is a three-slot exchange between exactly two goroutines
// ([Exchange]): three pre-allocated cells rotate between the two sides
// through a single atomic state word, so handing a value over costs at
// most two atomic read-modify-write operations and never allocates.
//
// Two specializations build directly on the three-slot idea:
//
//   - [LocalRcu] carries most-recent-value semantics between an updater
//     and a reader goroutine (the reader always advances to the latest
//     published value, intermediate values may be skipped).
//   - [Accumulator] carries lossless semantics: both sides push deltas
//     and a user-supplied monoidal operation folds every delta into a
//     running accumulator exactly once per observable side.
//
// On top of those, two multi-goroutine layers fan a single pair out to
// many goroutines:
//
//   - [CopyRcu] (and its pointer-payload alias [Rcu]) broadcasts a
//     value to any number of reader goroutines, each holding a [View]
//     with a single wait-free read operation.
//   - [Metric] is the inverse channel: many producer goroutines push
//     deltas through per-goroutine [Producer] handles and a collector
//     drains them all with Collect.
//
// None of the two-goroutine primitives are safe for more than one
// goroutine per side; the per-method documentation states exactly who
// may call what concurrently.
package rcu

package rcu

// Accumulator maintains a lossless monoidal fold of deltas pushed from
// two goroutines, one per side, on top of an Exchange. Each side sees a
// running accumulator of type C that every delta D pushed by either
// side is folded into exactly once before it becomes observable there.
//
// The trick making this lock-free is that folding is delayed by one
// step: each cell carries the accumulated C plus the latest delta still
// pending, so the newest delta is always at hand when a cell crosses to
// the other side. The price is that apply may run twice per delta, on
// two distinct C values (one of which is later discarded), so apply
// must be a left-associative monoidal operation: numeric addition, set
// union, string or list append and the like.
//
// C must behave as a value: copies of it must not share mutable state.
// Numbers and strings qualify; slice- or map-backed accumulators must
// clone in apply. D must be copyable in the same sense.
type Accumulator[C, D any] struct {
	apply func(*C, D)
	x     Exchange[accCell[C, D]]
}

// accCell pairs the running accumulator with the delayed latest delta.
type accCell[C, D any] struct {
	collected C
	last      D
	hasLast   bool
}

// append folds the previously pending delta into the accumulator and
// installs d as the new pending one. With has == false it only folds.
func (c *accCell[C, D]) append(apply func(*C, D), d D, has bool) {
	if c.hasLast {
		apply(&c.collected, c.last)
	}
	c.last, c.hasLast = d, has
}

// NewAccumulator creates an accumulator whose three cells start at the
// zero value of C. apply folds one delta into an accumulator; it must
// not retain either argument.
func NewAccumulator[C, D any](apply func(*C, D)) *Accumulator[C, D] {
	var zero C
	return NewAccumulatorOf(zero, apply)
}

// NewAccumulatorOf creates an accumulator whose three cells all start
// at a copy of initial.
func NewAccumulatorOf[C, D any](initial C, apply func(*C, D)) *Accumulator[C, D] {
	if apply == nil {
		panic("apply must not be nil")
	}
	a := &Accumulator[C, D]{apply: apply}
	c := accCell[C, D]{collected: initial}
	a.x.init(c, c, c)
	return a
}

// Left returns the handle of the Left side.
func (a *Accumulator[C, D]) Left() AccSide[C, D] {
	return AccSide[C, D]{a: a, side: a.x.Left()}
}

// Right returns the handle of the Right side.
func (a *Accumulator[C, D]) Right() AccSide[C, D] {
	return AccSide[C, D]{a: a, side: a.x.Right()}
}

// AccSide is one end of an Accumulator. Like Side, handles are cheap
// copyable values, but each side must be driven by at most one
// goroutine at a time.
type AccSide[C, D any] struct {
	a    *Accumulator[C, D]
	side Side[accCell[C, D]]
}

// Update folds d into this side's running accumulator, performs one
// pass, and returns the accumulated value of every delta observable on
// this side from strictly before d, plus whether the pass received a
// cell from the opposite side.
func (s AccSide[C, D]) Update(d D) (C, bool) {
	next, exchanged := s.update(d, true)
	return next.collected, exchanged
}

// Push is Update without materializing the accumulator copy; producers
// on hot paths use it when only the fold matters.
func (s AccSide[C, D]) Push(d D) {
	s.update(d, true)
}

// ObserveLast folds this side's pending delta into its accumulator and
// returns the result. It does not pass, so it never observes deltas the
// opposite side has not handed over yet.
func (s AccSide[C, D]) ObserveLast() C {
	c := s.side.Ref()
	var zero D
	c.append(s.a.apply, zero, false)
	return c.collected
}

// Drain performs one pass with no delta, folds everything pending on
// the received cell, and extracts the accumulated value, resetting the
// cell to the zero C. A Drain on one side after the opposite side
// quiesced recovers every delta not yet extracted.
func (s AccSide[C, D]) Drain() C {
	var zeroD D
	next, _ := s.update(zeroD, false)
	out := next.collected
	var zeroC C
	next.collected = zeroC
	return out
}

func (s AccSide[C, D]) update(d D, has bool) (*accCell[C, D], bool) {
	apply := s.a.apply
	s.side.Ref().append(apply, d, has)
	var prevCopy accCell[C, D]
	res := s.side.PassWith(func(c *accCell[C, D]) { prevCopy = *c })
	next := res.Ref
	if res.PastExchanged {
		// prevCopy snapshots our outgoing cell after d was appended; the
		// callback contract guarantees it was taken.
		next.collected = prevCopy.collected
		if res.Exchanged {
			// The received cell comes from the opposite side: its pending
			// delta is not represented in the snapshot, fold it in.
			next.append(apply, d, has)
			return next, true
		}
		// Our own cell came back: its stale pending delta is already
		// represented in the snapshot. Install d without folding.
		next.last, next.hasLast = d, has
		return next, false
	}
	next.append(apply, d, has)
	return next, res.Exchanged
}

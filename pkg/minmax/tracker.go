// Package minmax keeps track of the minimum or maximum of a sliding window.
//
// The window is a FIFO queue split across two stacks. Every stack entry carries the
// extremum of its own stack from the bottom up to that entry, so the extremum of the
// whole window is the better of the two stack tops.
//
//   - Min / Max: O(1)
//   - Push: O(1)
//   - Pop: amortized O(1); each value moves from the push stack to the pop stack at most once.
//
// None of the types in this package are safe for concurrent use.
package minmax

type entry[T any] struct {
	val T
	ext T
}

// tracker is the direction-agnostic double stack. better(a, b) reports whether a is
// strictly more extreme than b.
type tracker[T any] struct {
	better func(a, b T) bool

	push []entry[T]
	pop  []entry[T]

	// work counts comparisons and stack moves.
	work uint64
}

func newTracker[T any](better func(a, b T) bool, capacity int) tracker[T] {
	if capacity < 0 {
		capacity = 0
	}
	return tracker[T]{
		better: better,
		push:   make([]entry[T], 0, capacity),
		pop:    make([]entry[T], 0, capacity),
	}
}

func (t *tracker[T]) extremum() (T, bool) {
	np, nq := len(t.push), len(t.pop)
	switch {
	case np == 0 && nq == 0:
		var zero T
		return zero, false
	case nq == 0:
		return t.push[np-1].ext, true
	case np == 0:
		return t.pop[nq-1].ext, true
	}
	t.work++
	a, b := t.push[np-1].ext, t.pop[nq-1].ext
	if t.better(a, b) {
		return a, true
	}
	return b, true
}

// stack pushes v onto s, folding its extremum against the current top of s.
func (t *tracker[T]) stack(s []entry[T], v T) []entry[T] {
	t.work++
	if n := len(s); n > 0 {
		t.work++
		if prev := s[n-1].ext; t.better(prev, v) {
			return append(s, entry[T]{val: v, ext: prev})
		}
	}
	return append(s, entry[T]{val: v, ext: v})
}

func (t *tracker[T]) pushBack(v T) {
	if t.better == nil {
		panic("minmax: zero value used; create it with a New* constructor")
	}
	t.push = t.stack(t.push, v)
}

func (t *tracker[T]) popFront() (T, bool) {
	if len(t.pop) == 0 {
		if len(t.push) == 0 {
			var zero T
			return zero, false
		}
		for i := len(t.push) - 1; i >= 0; i-- {
			t.pop = t.stack(t.pop, t.push[i].val)
		}
		clear(t.push)
		t.push = t.push[:0]
	}
	n := len(t.pop) - 1
	v := t.pop[n].val
	t.pop[n] = entry[T]{}
	t.pop = t.pop[:n]
	return v, true
}

func (t *tracker[T]) len() int {
	return len(t.push) + len(t.pop)
}

func (t *tracker[T]) reset() {
	clear(t.push)
	clear(t.pop)
	t.push = t.push[:0]
	t.pop = t.pop[:0]
}

package minmax

import "cmp"

// MovingMin provides O(1) access to the minimum of a sliding window.
// The zero value is not usable; Push on it panics.
type MovingMin[T any] struct {
	t tracker[T]
}

// NewMovingMin returns an empty MovingMin. Values are compared with cmp.Less, so a
// floating-point NaN sorts below every other value.
func NewMovingMin[T cmp.Ordered]() *MovingMin[T] {
	return NewMovingMinWithCapacity[T](0)
}

// NewMovingMinWithCapacity is NewMovingMin with room for capacity values in each stack.
func NewMovingMinWithCapacity[T cmp.Ordered](capacity int) *MovingMin[T] {
	return &MovingMin[T]{t: newTracker(cmp.Less[T], capacity)}
}

// NewMovingMinFunc returns an empty MovingMin ordered by less, which must be a strict
// weak ordering.
func NewMovingMinFunc[T any](less func(a, b T) bool, capacity int) *MovingMin[T] {
	return &MovingMin[T]{t: newTracker(less, capacity)}
}

// Min returns the minimum of the window, or false if the window is empty.
func (m *MovingMin[T]) Min() (T, bool) { return m.t.extremum() }

// Push appends v to the back of the window.
func (m *MovingMin[T]) Push(v T) { m.t.pushBack(v) }

// Pop removes and returns the oldest value of the window, or false if the window is empty.
func (m *MovingMin[T]) Pop() (T, bool) { return m.t.popFront() }

// Len returns the number of values in the window.
func (m *MovingMin[T]) Len() int { return m.t.len() }

// Reset empties the window and keeps the allocated storage.
func (m *MovingMin[T]) Reset() { m.t.reset() }

// MovingMax provides O(1) access to the maximum of a sliding window.
// The zero value is not usable; Push on it panics.
type MovingMax[T any] struct {
	t tracker[T]
}

// NewMovingMax returns an empty MovingMax. Values are compared with cmp.Less, so a
// floating-point NaN sorts below every other value.
func NewMovingMax[T cmp.Ordered]() *MovingMax[T] {
	return NewMovingMaxWithCapacity[T](0)
}

// NewMovingMaxWithCapacity is NewMovingMax with room for capacity values in each stack.
func NewMovingMaxWithCapacity[T cmp.Ordered](capacity int) *MovingMax[T] {
	return NewMovingMaxFunc(cmp.Less[T], capacity)
}

// NewMovingMaxFunc returns an empty MovingMax ordered by less, which must be a strict
// weak ordering.
func NewMovingMaxFunc[T any](less func(a, b T) bool, capacity int) *MovingMax[T] {
	greater := func(a, b T) bool { return less(b, a) }
	return &MovingMax[T]{t: newTracker(greater, capacity)}
}

// Max returns the maximum of the window, or false if the window is empty.
func (m *MovingMax[T]) Max() (T, bool) { return m.t.extremum() }

// Push appends v to the back of the window.
func (m *MovingMax[T]) Push(v T) { m.t.pushBack(v) }

// Pop removes and returns the oldest value of the window, or false if the window is empty.
func (m *MovingMax[T]) Pop() (T, bool) { return m.t.popFront() }

// Len returns the number of values in the window.
func (m *MovingMax[T]) Len() int { return m.t.len() }

// Reset empties the window and keeps the allocated storage.
func (m *MovingMax[T]) Reset() { m.t.reset() }

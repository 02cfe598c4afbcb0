package window

// Queue is a FIFO over a slice with a moving head. The consumed prefix is compacted
// away once it dominates the buffer.
type Queue[T any] struct {
	buf  []T
	head int
}

func (q *Queue[T]) Push(x T) {
	q.buf = append(q.buf, x)
}

func (q *Queue[T]) Len() int { return len(q.buf) - q.head }

func (q *Queue[T]) Empty() bool { return q.head >= len(q.buf) }

func (q *Queue[T]) Front() (T, bool) {
	if q.Empty() {
		var zero T
		return zero, false
	}
	return q.buf[q.head], true
}

func (q *Queue[T]) PopFront() (T, bool) {
	if q.Empty() {
		var zero T
		return zero, false
	}
	v := q.buf[q.head]
	var zero T
	q.buf[q.head] = zero
	q.head++
	q.maybeCompact()
	return v, true
}

func (q *Queue[T]) maybeCompact() {
	if q.head == len(q.buf) {
		q.buf = q.buf[:0]
		q.head = 0
		return
	}
	if q.head < 4096 || q.head*2 < len(q.buf) {
		return
	}
	n := copy(q.buf, q.buf[q.head:])
	q.buf = q.buf[:n]
	q.head = 0
}

package minmax

import (
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertMin[T any](t *testing.T, m *MovingMin[T], want T, wantOK bool) {
	t.Helper()
	got, ok := m.Min()
	require.Equal(t, wantOK, ok)
	if wantOK {
		assert.Equal(t, want, got)
	}
}

func assertMax[T any](t *testing.T, m *MovingMax[T], want T, wantOK bool) {
	t.Helper()
	got, ok := m.Max()
	require.Equal(t, wantOK, ok)
	if wantOK {
		assert.Equal(t, want, got)
	}
}

func assertPop[T any](t *testing.T, pop func() (T, bool), want T, wantOK bool) {
	t.Helper()
	got, ok := pop()
	require.Equal(t, wantOK, ok)
	if wantOK {
		assert.Equal(t, want, got)
	}
}

func TestMovingMinScenario(t *testing.T) {
	m := NewMovingMin[int]()
	m.Push(2)
	m.Push(1)
	m.Push(3)
	assertMin(t, m, 1, true)

	assertPop(t, m.Pop, 2, true)
	assertMin(t, m, 1, true)

	assertPop(t, m.Pop, 1, true)
	assertMin(t, m, 3, true)

	assertPop(t, m.Pop, 3, true)
	assertMin(t, m, 0, false)

	assertPop(t, m.Pop, 0, false)
	assert.Equal(t, 0, m.Len())
}

func TestMovingMaxScenario(t *testing.T) {
	m := NewMovingMax[int]()
	m.Push(2)
	m.Push(3)
	m.Push(1)
	assertMax(t, m, 3, true)

	assertPop(t, m.Pop, 2, true)
	assertMax(t, m, 3, true)

	assertPop(t, m.Pop, 3, true)
	assertMax(t, m, 1, true)

	assertPop(t, m.Pop, 1, true)
	assertMax(t, m, 0, false)

	assertPop(t, m.Pop, 0, false)
}

func TestMovingMinInterleaved(t *testing.T) {
	m := NewMovingMin[int]()
	m.Push(1)
	assertMin(t, m, 1, true)
	m.Push(2)
	assertMin(t, m, 1, true)
	m.Push(3)
	assertMin(t, m, 1, true)

	assertPop(t, m.Pop, 1, true)
	assertMin(t, m, 2, true)
	assertPop(t, m.Pop, 2, true)
	assertMin(t, m, 3, true)
	assertPop(t, m.Pop, 3, true)
	assertMin(t, m, 0, false)
}

func TestEmptyWindow(t *testing.T) {
	mn := NewMovingMin[float64]()
	assertMin(t, mn, 0, false)
	assertPop(t, mn.Pop, 0, false)

	mx := NewMovingMaxWithCapacity[string](16)
	assertMax(t, mx, "", false)
	assertPop(t, mx.Pop, "", false)
	assert.Equal(t, 0, mx.Len())

	mn.Push(4.5)
	assertPop(t, mn.Pop, 4.5, true)
	assertMin(t, mn, 0, false)
	assertPop(t, mn.Pop, 0, false)
	assert.Equal(t, 0, mn.Len())
}

func TestFIFOOrder(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	in := make([]int, 500)
	m := NewMovingMax[int]()
	for i := range in {
		in[i] = r.Intn(100) - 50
		m.Push(in[i])
	}
	require.Equal(t, len(in), m.Len())

	for _, want := range in {
		assertPop(t, m.Pop, want, true)
	}
	assertPop(t, m.Pop, 0, false)
}

func TestPushAfterPartialDrain(t *testing.T) {
	m := NewMovingMin[int]()
	for _, v := range []int{5, 9, 7} {
		m.Push(v)
	}
	assertPop(t, m.Pop, 5, true)

	// 9 and 7 now sit on the pop stack; new pushes land on the push stack.
	m.Push(8)
	m.Push(6)
	assertMin(t, m, 6, true)
	assert.Equal(t, 4, m.Len())

	assertPop(t, m.Pop, 9, true)
	assertPop(t, m.Pop, 7, true)
	assertMin(t, m, 6, true)
	assertPop(t, m.Pop, 8, true)
	assertMin(t, m, 6, true)
	assertPop(t, m.Pop, 6, true)
	assertMin(t, m, 0, false)
}

func TestDuplicates(t *testing.T) {
	m := NewMovingMin[int]()
	for _, v := range []int{3, 3, 3, 1, 1} {
		m.Push(v)
	}
	assertMin(t, m, 1, true)
	for i := 0; i < 3; i++ {
		m.Pop()
		assertMin(t, m, 1, true)
	}
	m.Pop()
	assertMin(t, m, 1, true)
	m.Pop()
	assertMin(t, m, 0, false)
}

func TestNaNOrdering(t *testing.T) {
	mn := NewMovingMin[float64]()
	mx := NewMovingMax[float64]()
	for _, v := range []float64{2, math.NaN(), 1} {
		mn.Push(v)
		mx.Push(v)
	}
	got, ok := mn.Min()
	require.True(t, ok)
	assert.True(t, math.IsNaN(got))
	assertMax(t, mx, 2.0, true)

	mn.Pop()
	mn.Pop()
	assertMin(t, mn, 1.0, true)
}

func TestFuncOrdering(t *testing.T) {
	type reading struct {
		host string
		ms   int
	}
	less := func(a, b reading) bool { return a.ms < b.ms }

	mn := NewMovingMinFunc(less, 4)
	mx := NewMovingMaxFunc(less, 4)
	for _, r := range []reading{{"a", 30}, {"b", 10}, {"c", 20}} {
		mn.Push(r)
		mx.Push(r)
	}
	assertMin(t, mn, reading{"b", 10}, true)
	assertMax(t, mx, reading{"a", 30}, true)

	mx.Pop()
	assertMax(t, mx, reading{"c", 20}, true)
}

func TestCaseInsensitiveStrings(t *testing.T) {
	less := func(a, b string) bool { return strings.ToLower(a) < strings.ToLower(b) }
	m := NewMovingMinFunc(less, 0)
	m.Push("delta")
	m.Push("Bravo")
	m.Push("charlie")
	assertMin(t, m, "Bravo", true)
}

func TestReset(t *testing.T) {
	m := NewMovingMax[int]()
	for i := 0; i < 10; i++ {
		m.Push(i)
	}
	m.Pop()
	m.Reset()
	assert.Equal(t, 0, m.Len())
	assertMax(t, m, 0, false)
	assertPop(t, m.Pop, 0, false)

	m.Push(-3)
	assertMax(t, m, -3, true)
	assert.Equal(t, 1, m.Len())
}

func TestZeroValuePanicsOnPush(t *testing.T) {
	var lo MovingMin[int]
	var hi MovingMax[int]
	_, ok := lo.Min()
	assert.False(t, ok)
	_, ok = hi.Pop()
	assert.False(t, ok)

	assert.Panics(t, func() { lo.Push(1) })
	assert.Panics(t, func() { hi.Push(1) })
	assert.Equal(t, 0, lo.Len())
}

// naiveWindow rescans on every query.
type naiveWindow struct {
	vals []int
}

func (w *naiveWindow) push(v int) { w.vals = append(w.vals, v) }

func (w *naiveWindow) pop() (int, bool) {
	if len(w.vals) == 0 {
		return 0, false
	}
	v := w.vals[0]
	w.vals = w.vals[1:]
	return v, true
}

func (w *naiveWindow) min() (int, bool) {
	if len(w.vals) == 0 {
		return 0, false
	}
	m := w.vals[0]
	for _, v := range w.vals[1:] {
		m = min(m, v)
	}
	return m, true
}

func (w *naiveWindow) max() (int, bool) {
	if len(w.vals) == 0 {
		return 0, false
	}
	m := w.vals[0]
	for _, v := range w.vals[1:] {
		m = max(m, v)
	}
	return m, true
}

func TestRandomAgainstNaive(t *testing.T) {
	for _, seed := range []int64{1, 2, 3, 42, 1000} {
		r := rand.New(rand.NewSource(seed))
		mn := NewMovingMin[int]()
		mx := NewMovingMax[int]()
		ref := &naiveWindow{}
		pushes, pops := 0, 0

		for op := 0; op < 5000; op++ {
			// bias toward pushes early and pops late so the window grows and drains
			pushBias := 60
			if op > 2500 {
				pushBias = 40
			}
			if r.Intn(100) < pushBias {
				v := r.Intn(1000) - 500
				mn.Push(v)
				mx.Push(v)
				ref.push(v)
				pushes++
			} else {
				want, wantOK := ref.pop()
				gotMin, okMin := mn.Pop()
				gotMax, okMax := mx.Pop()
				require.Equal(t, wantOK, okMin, "seed=%d op=%d", seed, op)
				require.Equal(t, wantOK, okMax, "seed=%d op=%d", seed, op)
				if wantOK {
					require.Equal(t, want, gotMin, "seed=%d op=%d", seed, op)
					require.Equal(t, want, gotMax, "seed=%d op=%d", seed, op)
					pops++
				}
			}

			wantMin, okMin := ref.min()
			gotMin, ok := mn.Min()
			require.Equal(t, okMin, ok)
			require.Equal(t, wantMin, gotMin, "seed=%d op=%d", seed, op)

			wantMax, okMax := ref.max()
			gotMax, ok := mx.Max()
			require.Equal(t, okMax, ok)
			require.Equal(t, wantMax, gotMax, "seed=%d op=%d", seed, op)

			require.Equal(t, pushes-pops, mn.Len())
			require.Equal(t, pushes-pops, mx.Len())
		}
	}
}

func TestAmortizedWork(t *testing.T) {
	for _, n := range []int{10, 100, 1000, 10000, 100000} {
		r := rand.New(rand.NewSource(int64(n)))
		m := NewMovingMin[int]()
		for op := 0; op < n; op++ {
			if r.Intn(2) == 0 {
				m.Push(r.Int())
			} else {
				m.Pop()
			}
			m.Min()
		}
		// push: <= 2, one transfer per value: <= 2, extremum: <= 1 per op
		assert.LessOrEqual(t, m.t.work, uint64(5*n), "n=%d", n)
	}
}

func TestAmortizedWorkSawtooth(t *testing.T) {
	// Fill then drain repeatedly: every drain pays one full transfer.
	m := NewMovingMax[int]()
	ops := 0
	for round := 0; round < 50; round++ {
		for i := 0; i < 200; i++ {
			m.Push(i)
			ops++
		}
		for i := 0; i < 200; i++ {
			m.Pop()
			ops++
		}
	}
	assert.LessOrEqual(t, m.t.work, uint64(4*ops))
}

func BenchmarkMovingMinPush(b *testing.B) {
	m := NewMovingMinWithCapacity[int](b.N)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Push(i)
	}
}

func BenchmarkMovingMinSlide(b *testing.B) {
	const window = 1024
	m := NewMovingMinWithCapacity[int](window)
	r := rand.New(rand.NewSource(1))
	for i := 0; i < window; i++ {
		m.Push(r.Int())
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Push(r.Int())
		m.Pop()
		m.Min()
	}
}

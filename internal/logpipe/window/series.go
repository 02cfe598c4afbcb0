package window

import (
	"github.com/chenzhangda16/moving-minmax/pkg/minmax"
)

// Series holds one key's samples inside a window. The min and max trackers and the
// timestamp queue always hold the same samples in the same order, and timestamps never
// decrease front to back.
type Series struct {
	Key string

	mins   *minmax.MovingMin[float64]
	maxs   *minmax.MovingMax[float64]
	ts     Queue[int64]
	newest int64
}

func NewSeries(key string, capHint int) *Series {
	return &Series{
		Key:  key,
		mins: minmax.NewMovingMinWithCapacity[float64](capHint),
		maxs: minmax.NewMovingMaxWithCapacity[float64](capHint),
	}
}

// Add appends a sample. A sample older than the newest one held is refused with false.
func (s *Series) Add(ts int64, v float64) bool {
	if s.Len() > 0 && ts < s.newest {
		return false
	}
	s.mins.Push(v)
	s.maxs.Push(v)
	s.ts.Push(ts)
	s.newest = ts
	return true
}

// EvictBefore drops every sample with ts < cut and returns how many were dropped.
func (s *Series) EvictBefore(cut int64) int {
	n := 0
	for {
		ts, ok := s.ts.Front()
		if !ok || ts >= cut {
			return n
		}
		s.ts.PopFront()
		s.mins.Pop()
		s.maxs.Pop()
		n++
	}
}

func (s *Series) Len() int { return s.mins.Len() }

// Extremum returns the current min and max, ok=false when the series is empty.
func (s *Series) Extremum() (lo, hi float64, ok bool) {
	lo, ok = s.mins.Min()
	if !ok {
		return 0, 0, false
	}
	hi, _ = s.maxs.Max()
	return lo, hi, true
}

// Reset empties the series and keeps its buffers, so a runner can reuse it for another key.
func (s *Series) Reset(key string) {
	s.Key = key
	s.mins.Reset()
	s.maxs.Reset()
	s.ts = Queue[int64]{buf: s.ts.buf[:0]}
	s.newest = 0
}

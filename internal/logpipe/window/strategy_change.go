package window

import (
	"context"

	"github.com/chenzhangda16/moving-minmax/internal/logpipe/out"
)

type bounds struct{ lo, hi float64 }

// EmitOnChange emits a series whenever its window min or max differs from the last
// value it emitted for that series.
type EmitOnChange struct {
	last map[string]bounds
}

func (s *EmitOnChange) OnMove(ctx context.Context, r *Runner, mv Move, sink out.Sink) error {
	if s.last == nil {
		s.last = make(map[string]bounds)
	}
	for _, k := range mv.Touched {
		x, ok := r.Snapshot(k, mv.WmTs)
		if !ok {
			delete(s.last, k)
			continue
		}
		b := bounds{lo: x.Min, hi: x.Max}
		if prev, seen := s.last[k]; seen && prev == b {
			continue
		}
		if err := sink.Emit(ctx, out.TypeWinExtremum, x); err != nil {
			return err
		}
		s.last[k] = b
	}
	return nil
}

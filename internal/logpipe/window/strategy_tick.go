package window

import (
	"context"

	"github.com/chenzhangda16/moving-minmax/internal/logpipe/out"
)

// EmitTick emits a heartbeat and the extremum of every live series once every Every moves.
type EmitTick struct {
	Every int64
	n     int64
}

func (s *EmitTick) OnMove(ctx context.Context, r *Runner, mv Move, sink out.Sink) error {
	if s.Every <= 0 {
		s.Every = 200
	}
	s.n++
	if s.n%s.Every != 0 {
		return nil
	}

	tick := out.WinTick{
		Window: r.Name(),
		Seq:    mv.To,
		WmTs:   mv.WmTs,
		Series: r.NumSeries(),
	}
	if err := sink.Emit(ctx, out.TypeWinTick, tick); err != nil {
		return err
	}
	for _, k := range r.Keys() {
		x, ok := r.Snapshot(k, mv.WmTs)
		if !ok {
			continue
		}
		if err := sink.Emit(ctx, out.TypeWinExtremum, x); err != nil {
			return err
		}
	}
	return nil
}

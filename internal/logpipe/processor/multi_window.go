package processor

import (
	"context"
	"math"
	"slices"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/chenzhangda16/moving-minmax/internal/logpipe/dispatcher"
	"github.com/chenzhangda16/moving-minmax/internal/logpipe/out"
	"github.com/chenzhangda16/moving-minmax/internal/logpipe/window"
	"github.com/chenzhangda16/moving-minmax/pkg/obs"
)

// MultiWindow runs one window.Runner per span over a shared dispatcher, and trims the
// dispatcher behind the slowest runner.
type MultiWindow struct {
	runners []*window.Runner
	disp    *dispatcher.Dispatcher
	gate    *window.Gate
	maxSec  int64

	TrimEvery time.Duration
	log       *logrus.Entry
}

// NewMultiWindow builds runners sorted by span. Each runner gets its own strategies from
// newStrategies. With warmup the runners share a gate opened by the longest one.
func NewMultiWindow(specs []window.Spec, disp *dispatcher.Dispatcher, sink out.Sink,
	newStrategies func() []window.Strategy, warmup bool) *MultiWindow {

	specs = slices.Clone(specs)
	slices.SortStableFunc(specs, func(a, b window.Spec) int {
		return int(a.SpanSec() - b.SpanSec())
	})

	mw := &MultiWindow{
		disp:      disp,
		TrimEvery: time.Second,
		log:       obs.L("processor"),
	}
	if warmup {
		mw.gate = &window.Gate{}
	}
	for i, s := range specs {
		var sts []window.Strategy
		if newStrategies != nil {
			sts = newStrategies()
		}
		r := window.NewRunner(s, disp, sink, sts...)
		if mw.gate != nil {
			r.WithGate(mw.gate, i == len(specs)-1)
		}
		mw.runners = append(mw.runners, r)
		mw.maxSec = max(mw.maxSec, r.SpanSec())
	}
	return mw
}

func (mw *MultiWindow) MaxWindowSec() int64       { return mw.maxSec }
func (mw *MultiWindow) Runners() []*window.Runner { return mw.runners }

// Warm reports whether the runners emit; always true without warmup.
func (mw *MultiWindow) Warm() bool { return mw.gate.IsOpen() }

// MinApplied is the lowest Seq any runner still needs.
func (mw *MultiWindow) MinApplied() uint64 {
	lo := uint64(math.MaxUint64)
	for _, r := range mw.runners {
		lo = min(lo, r.Applied())
	}
	if lo == math.MaxUint64 {
		return 0
	}
	return lo
}

// Run starts every runner and the trim loop; the first error cancels the rest.
func (mw *MultiWindow) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, r := range mw.runners {
		g.Go(func() error { return r.Run(gctx) })
	}
	g.Go(func() error { return mw.trimLoop(gctx) })
	err := g.Wait()
	for _, r := range mw.runners {
		mw.log.Infof("[processor] window %s stopped: moves=%d series=%d applied=%d",
			r.Name(), r.Moves(), r.NumSeries(), r.Applied())
	}
	return err
}

func (mw *MultiWindow) trimLoop(ctx context.Context) error {
	if mw.TrimEvery <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	t := time.NewTicker(mw.TrimEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if n := mw.disp.Trim(mw.MinApplied()); n > 0 {
				mw.log.Debugf("[processor] trimmed n=%d left=%d", n, mw.disp.Len())
			}
		}
	}
}

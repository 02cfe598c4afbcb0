package window

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chenzhangda16/moving-minmax/internal/logpipe/dispatcher"
	"github.com/chenzhangda16/moving-minmax/internal/logpipe/out"
	"github.com/chenzhangda16/moving-minmax/pkg/obs"
)

// Spec names one sliding window.
type Spec struct {
	Name string        `yaml:"name"`
	Span time.Duration `yaml:"span"`
}

// SpanSec is the span in whole seconds, at least 1.
func (s Spec) SpanSec() int64 {
	if sec := int64(s.Span / time.Second); sec > 0 {
		return sec
	}
	return 1
}

// Move describes one advance of a Runner.
type Move struct {
	From, To uint64 // applied Seq range [From, To)
	WmTs     int64
	Cut      int64 // samples with Ts < Cut are outside the window
	Added    int
	Late     int // below Cut, or older than the newest sample of their series
	Evicted  int
	Touched  []string // keys added to or evicted from, sorted
}

// Gate holds strategies back until the longest window has seen a full span of data.
// It is shared by all runners of one MultiWindow.
type Gate struct{ open atomic.Bool }

func (g *Gate) Open()        { g.open.Store(true) }
func (g *Gate) IsOpen() bool { return g == nil || g.open.Load() }

type Runner struct {
	spec       Spec
	span       int64
	disp       *dispatcher.Dispatcher
	strategies []Strategy
	sink       out.Sink
	log        *logrus.Entry

	gate     *Gate
	opener   bool // this runner opens gate
	hasFirst bool
	firstTs  int64 // Ts of the first applied sample

	next    uint64
	applied atomic.Uint64
	moves   int64

	series  map[string]*Series
	spare   []*Series // emptied series kept for reuse
	capHint int
}

func NewRunner(spec Spec, disp *dispatcher.Dispatcher, sink out.Sink, strategies ...Strategy) *Runner {
	const seriesCap = 1 << 10
	return &Runner{
		spec:       spec,
		span:       spec.SpanSec(),
		disp:       disp,
		sink:       sink,
		strategies: strategies,
		log:        obs.L("window").WithField("win", spec.Name),
		series:     make(map[string]*Series, seriesCap),
		capHint:    64,
	}
}

// WithGate makes the runner wait for g; opener marks the runner that opens it.
func (r *Runner) WithGate(g *Gate, opener bool) *Runner {
	r.gate = g
	r.opener = opener
	return r
}

func (r *Runner) Name() string    { return r.spec.Name }
func (r *Runner) SpanSec() int64  { return r.span }
func (r *Runner) Moves() int64    { return r.moves }
func (r *Runner) NumSeries() int  { return len(r.series) }
func (r *Runner) Applied() uint64 { return r.applied.Load() }

func (r *Runner) Series(key string) (*Series, bool) {
	s, ok := r.series[key]
	return s, ok
}

// Keys returns the live series keys, sorted.
func (r *Runner) Keys() []string {
	keys := make([]string, 0, len(r.series))
	for k := range r.series {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot returns the extremum record of key at the last move.
func (r *Runner) Snapshot(key string, wmTs int64) (out.WinExtremum, bool) {
	s, ok := r.series[key]
	if !ok {
		return out.WinExtremum{}, false
	}
	lo, hi, ok := s.Extremum()
	if !ok {
		return out.WinExtremum{}, false
	}
	return out.WinExtremum{
		Window: r.spec.Name,
		SpanS:  r.span,
		Key:    key,
		WmTs:   wmTs,
		Count:  s.Len(),
		Min:    lo,
		Max:    hi,
	}, true
}

func (r *Runner) Run(ctx context.Context) error {
	ch, cancel := r.disp.SubscribeWatermark(8)
	defer cancel()

	r.log.Infof("[window] runner start: span=%ds", r.span)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case wm, ok := <-ch:
			if !ok {
				return nil
			}
			if err := r.Advance(ctx, wm); err != nil {
				return err
			}
		}
	}
}

// Advance applies samples up to wm.Next, evicts what fell out of the window and runs the
// strategies. It must be called from one goroutine.
func (r *Runner) Advance(ctx context.Context, wm dispatcher.Watermark) error {
	if wm.Next <= r.next {
		return nil
	}
	mv := Move{From: r.next, To: wm.Next, WmTs: wm.Ts, Cut: wm.Ts - r.span}

	touched := make(map[string]struct{})
	for _, smp := range r.disp.ReadBySeq(r.next, wm.Next) {
		if smp.Ts < mv.Cut {
			mv.Late++
			continue
		}
		s := r.series[smp.Key]
		if s == nil {
			s = r.newSeries(smp.Key)
			r.series[smp.Key] = s
		}
		if !s.Add(smp.Ts, smp.Value) {
			mv.Late++
			continue
		}
		if !r.hasFirst {
			r.firstTs, r.hasFirst = smp.Ts, true
		}
		touched[smp.Key] = struct{}{}
		mv.Added++
	}
	r.next = wm.Next
	r.applied.Store(r.next)

	mv.Evicted = r.evict(mv.Cut, touched)

	mv.Touched = make([]string, 0, len(touched))
	for k := range touched {
		mv.Touched = append(mv.Touched, k)
	}
	sort.Strings(mv.Touched)
	r.moves++

	if mv.Late > 0 {
		r.log.Debugf("[window] late samples dropped: n=%d cut=%d", mv.Late, mv.Cut)
	}

	if r.opener && r.gate != nil && !r.gate.IsOpen() && r.hasFirst && wm.Ts-r.firstTs >= r.span {
		r.gate.Open()
		r.log.Infof("[window] gate open: wm_ts=%d", wm.Ts)
	}
	if !r.gate.IsOpen() {
		return nil
	}

	for _, st := range r.strategies {
		if err := st.OnMove(ctx, r, mv, r.sink); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) newSeries(key string) *Series {
	if n := len(r.spare); n > 0 {
		s := r.spare[n-1]
		r.spare = r.spare[:n-1]
		s.Reset(key)
		return s
	}
	return NewSeries(key, r.capHint)
}

func (r *Runner) evict(cut int64, touched map[string]struct{}) int {
	const maxSpare = 64
	n := 0
	for key, s := range r.series {
		k := s.EvictBefore(cut)
		if k == 0 {
			continue
		}
		n += k
		touched[key] = struct{}{}
		if s.Len() == 0 {
			delete(r.series, key)
			if len(r.spare) < maxSpare {
				r.spare = append(r.spare, s)
			}
		}
	}
	return n
}

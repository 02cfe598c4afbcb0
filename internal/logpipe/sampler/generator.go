// Package sampler produces synthetic keyed samples: one random walk per key, with
// optional duplicate and late deliveries so the processor's dedup and late-drop paths
// see traffic.
package sampler

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"

	"github.com/chenzhangda16/moving-minmax/internal/logpipe/event"
	"github.com/chenzhangda16/moving-minmax/pkg/rng"
)

type GenConfig struct {
	Keys      int
	KeyPrefix string

	StartTs int64 // event time of the first sample
	PerSec  int   // samples per event-time second

	Start float64 // walk origin of every key
	Step  float64 // stddev of one walk step

	DupEvery  int   // every Nth sample is followed by a resend with the same id; 0 disables
	LateEvery int   // every Nth sample is stamped LateBy seconds in the past; 0 disables
	LateBy    int64 // seconds
}

func (c *GenConfig) defaults() {
	if c.Keys <= 0 {
		c.Keys = 8
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "series"
	}
	if c.PerSec <= 0 {
		c.PerSec = 10
	}
	if c.Step <= 0 {
		c.Step = 1
	}
	if c.LateBy <= 0 {
		c.LateBy = 30
	}
}

// Generator is deterministic for a given rng seed and config.
type Generator struct {
	cfg GenConfig

	walk *rand.Rand
	pick *rand.Rand

	keys []string
	vals []float64

	idPrefix string
	n        uint64
	ts       int64
	inSec    int

	dup     bool
	last    event.Sample
	emitted uint64
}

func NewGenerator(cfg GenConfig, f *rng.Factory) *Generator {
	cfg.defaults()
	f = f.Sub("sampler")
	g := &Generator{
		cfg:      cfg,
		walk:     f.R("walk"),
		pick:     f.R("pick"),
		keys:     make([]string, cfg.Keys),
		vals:     make([]float64, cfg.Keys),
		idPrefix: "s" + strconv.FormatInt(f.Seed(), 36),
		ts:       cfg.StartTs,
	}
	for i := range g.keys {
		g.keys[i] = fmt.Sprintf("%s-%d", cfg.KeyPrefix, i)
		g.vals[i] = cfg.Start
	}
	return g
}

// Next returns the next sample. A scheduled duplicate is returned verbatim, id included.
func (g *Generator) Next() event.Sample {
	g.emitted++
	if g.dup {
		g.dup = false
		return g.last
	}

	i := g.pick.Intn(len(g.keys))
	v := g.vals[i] + g.walk.NormFloat64()*g.cfg.Step
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = g.cfg.Start
	}
	g.vals[i] = v

	g.n++
	s := event.Sample{
		ID:    g.idPrefix + "-" + strconv.FormatUint(g.n, 10),
		Key:   g.keys[i],
		Ts:    g.ts,
		Value: v,
	}
	if g.cfg.LateEvery > 0 && g.n%uint64(g.cfg.LateEvery) == 0 {
		s.Ts -= g.cfg.LateBy
	}

	g.inSec++
	if g.inSec >= g.cfg.PerSec {
		g.inSec = 0
		g.ts++
	}
	if g.cfg.DupEvery > 0 && g.n%uint64(g.cfg.DupEvery) == 0 {
		g.dup = true
	}
	g.last = s
	return s
}

// Emitted counts samples returned by Next, duplicates included.
func (g *Generator) Emitted() uint64 { return g.emitted }

func (g *Generator) Keys() []string { return g.keys }

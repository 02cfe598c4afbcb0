package sampler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chenzhangda16/moving-minmax/internal/logpipe/event"
	"github.com/chenzhangda16/moving-minmax/pkg/obs"
)

// Sink receives generated batches. *Producer is the Kafka one.
type Sink interface {
	Produce(ctx context.Context, samples []event.Sample) error
}

type Config struct {
	Batch int           // samples per tick
	Every time.Duration // tick interval; 0 sends as fast as the sink accepts
	Limit uint64        // stop after this many samples; 0 runs until ctx is done
}

type Sampler struct {
	cfg  Config
	gen  *Generator
	sink Sink
	log  *logrus.Entry
}

func New(cfg Config, gen *Generator, sink Sink) *Sampler {
	if cfg.Batch <= 0 {
		cfg.Batch = 100
	}
	return &Sampler{cfg: cfg, gen: gen, sink: sink, log: obs.L("sampler")}
}

// Run produces batches until Limit samples were sent or ctx is done.
func (s *Sampler) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if s.cfg.Every > 0 {
		t := time.NewTicker(s.cfg.Every)
		defer t.Stop()
		tick = t.C
	}

	batch := make([]event.Sample, 0, s.cfg.Batch)
	var sent uint64
	last := time.Now()
	for {
		n := s.cfg.Batch
		if s.cfg.Limit > 0 {
			n = int(min(uint64(n), s.cfg.Limit-sent))
		}
		batch = batch[:0]
		for range n {
			batch = append(batch, s.gen.Next())
		}
		if err := s.sink.Produce(ctx, batch); err != nil {
			return err
		}
		sent += uint64(n)

		if time.Since(last) >= 5*time.Second {
			last = time.Now()
			s.log.Infof("[sampler] sent=%d last_ts=%d", sent, batch[len(batch)-1].Ts)
		}
		if s.cfg.Limit > 0 && sent >= s.cfg.Limit {
			s.log.Infof("[sampler] limit reached: sent=%d", sent)
			return nil
		}

		if tick == nil {
			if err := ctx.Err(); err != nil {
				return err
			}
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
		}
	}
}

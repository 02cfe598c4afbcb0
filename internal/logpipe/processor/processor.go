package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/chenzhangda16/moving-minmax/internal/logpipe/dedup"
	"github.com/chenzhangda16/moving-minmax/internal/logpipe/dispatcher"
	"github.com/chenzhangda16/moving-minmax/internal/logpipe/event"
	"github.com/chenzhangda16/moving-minmax/internal/logpipe/out"
	"github.com/chenzhangda16/moving-minmax/internal/logpipe/ready"
	"github.com/chenzhangda16/moving-minmax/internal/logpipe/window"
	"github.com/chenzhangda16/moving-minmax/pkg/obs"
)

// consumerGroup is the part of sarama.ConsumerGroup the processor drives.
type consumerGroup interface {
	Consume(ctx context.Context, topics []string, handler sarama.ConsumerGroupHandler) error
	Errors() <-chan error
	Close() error
}

// OffsetLookup maps a partition and a unix-ms time to an offset.
type OffsetLookup func(topic string, partition int32, timeMs int64) (int64, error)

type Processor struct {
	cfg Config
	log *logrus.Entry

	group  consumerGroup
	lookup OffsetLookup
	ckpt   Checkpoint
	spool  Spool
	dedup  dedup.Deduper
	sink   out.Sink

	disp *dispatcher.Dispatcher
	mw   *MultiWindow
	h    *Handler

	mu      sync.Mutex // guards dedup and the fields below; claims run concurrently
	offsets map[int32]int64
	lastSeq uint64
	lastTs  int64
	handled int64
	dups    int64

	readyOnce sync.Once
	now       func() time.Time
	closer    func() error
}

// Deps are the external parts New builds from Config. Tests inject fakes through them.
type Deps struct {
	Group  consumerGroup
	Lookup OffsetLookup
	Sink   out.Sink
	Closer func() error
}

func New(cfg Config) (*Processor, error) {
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	cons, err := NewConsumer(cfg.Brokers, cfg.Group, cfg.Topic)
	if err != nil {
		return nil, fmt.Errorf("processor: consumer: %w", err)
	}

	var sink out.Sink = out.NewLogSink()
	if cfg.OutTopic != "" {
		ks, err := out.NewKafkaSink(splitCSV(cfg.Brokers), cfg.OutTopic, nil)
		if err != nil {
			_ = cons.Close()
			return nil, fmt.Errorf("processor: sink: %w", err)
		}
		sink = ks
	}
	p, err := NewWithDeps(cfg, Deps{Group: cons.group, Lookup: cons.OffsetAt, Sink: sink, Closer: cons.Close})
	if err != nil {
		_ = sink.Close()
		_ = cons.Close()
		return nil, err
	}
	return p, nil
}

// NewWithDeps builds a processor over the given consumer group and sink.
func NewWithDeps(cfg Config, deps Deps) (*Processor, error) {
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	if deps.Sink == nil {
		deps.Sink = out.NewLogSink()
	}

	p := &Processor{
		cfg:     cfg,
		log:     obs.L("processor"),
		group:   deps.Group,
		lookup:  deps.Lookup,
		sink:    deps.Sink,
		disp:    dispatcher.NewDispatcher(1 << 16),
		offsets: map[int32]int64{},
		now:     time.Now,
		closer:  deps.Closer,
	}

	var err error
	p.ckpt = nopCheckpoint{}
	if cfg.CheckpointPath != "" {
		if p.ckpt, err = NewFileCheckpoint(cfg.CheckpointPath); err != nil {
			return nil, err
		}
	}
	if v, ok, err := p.ckpt.Load(); err != nil {
		return nil, err
	} else if ok {
		fatal, reason := v.Compatible(cfg.Topic, cfg.Windows)
		switch {
		case fatal:
			p.log.Warnf("[processor] ignoring ckpt: %s", reason)
		default:
			if reason != "" {
				p.log.Warnf("[processor] ckpt: %s", reason)
			}
			p.offsets = v.Offsets
			p.lastSeq = v.LastSeq
			p.lastTs = v.LastTs
			p.log.Infof("[processor] loaded ckpt: last_seq=%d last_ts=%d partitions=%d",
				p.lastSeq, p.lastTs, len(p.offsets))
		}
	}

	p.spool = nopSpool{}
	if cfg.SpoolPath != "" {
		if p.spool, err = NewFileSpool(cfg.SpoolPath, false); err != nil {
			return nil, err
		}
	}

	if cfg.DedupDB != "" {
		bucket := max(int64(cfg.DedupTTL/time.Second)/64, 1)
		rd, err := dedup.OpenRocksDeduper(cfg.DedupDB, bucket)
		if err != nil {
			_ = p.spool.Close()
			return nil, err
		}
		p.dedup = rd
	} else {
		p.dedup = dedup.NewHotDeduper(1 << 16)
	}

	emitEvery := cfg.EmitEvery
	p.mw = NewMultiWindow(cfg.Windows, p.disp, p.sink, func() []window.Strategy {
		if emitEvery > 0 {
			return []window.Strategy{&window.EmitTick{Every: int64(emitEvery)}}
		}
		return []window.Strategy{&window.EmitOnChange{}}
	}, cfg.Warmup)

	p.h = newHandler(cfg.Topic, p.spool)
	p.h.resetTo = p.resetOffset
	p.h.onSample = p.handleSample
	return p, nil
}

func (p *Processor) Dispatcher() *dispatcher.Dispatcher { return p.disp }
func (p *Processor) Windows() *MultiWindow              { return p.mw }
func (p *Processor) Handler() *Handler                  { return p.h }

// Stats returns samples dispatched and duplicates dropped.
func (p *Processor) Stats() (handled, dups int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handled, p.dups
}

// Run consumes until ctx is done or a runner fails.
func (p *Processor) Run(ctx context.Context) error {
	p.log.Infof("[processor] start: topic=%s windows=%d max_span=%ds replay=%t warm=%t",
		p.cfg.Topic, len(p.mw.Runners()), p.mw.MaxWindowSec(), p.cfg.Replay, p.mw.Warm())
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.mw.Run(gctx) })
	g.Go(func() error { return p.consume(gctx) })
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case err, ok := <-p.group.Errors():
				if !ok {
					return nil
				}
				p.log.Warnf("[processor] group err: %v", err)
			}
		}
	})
	return g.Wait()
}

func (p *Processor) consume(ctx context.Context) error {
	// sarama requires Consume to be re-run after every rebalance
	for {
		if err := p.group.Consume(ctx, []string{p.cfg.Topic}, p.h); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return err
			}
			p.log.Warnf("[processor] consume err: %v", err)
			select {
			case <-ctx.Done():
			case <-time.After(300 * time.Millisecond):
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (p *Processor) resetOffset(part int32) (int64, bool) {
	if p.cfg.Replay {
		if p.lookup == nil {
			return 0, false
		}
		targetMs := p.now().Add(-longestSpan(p.cfg.Windows)).UnixMilli()
		off, err := p.lookup(p.cfg.Topic, part, targetMs)
		if err != nil {
			p.log.Warnf("[processor][setup] GetOffset failed: p=%d targetMs=%d err=%v", part, targetMs, err)
			return 0, false
		}
		if off < 0 {
			// nothing at or after targetMs; keep the committed offset
			p.log.Infof("[processor][setup] no data within window: p=%d targetMs=%d", part, targetMs)
			return 0, false
		}
		return off, true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	off, ok := p.offsets[part]
	return off, ok
}

func (p *Processor) handleSample(ctx context.Context, part int32, off int64, smp event.Sample) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if smp.ID != "" {
		seen, err := p.dedup.SeenOrAdd(dedup.Key(smp.ID), smp.Ts, int64(p.cfg.DedupTTL/time.Second))
		if err != nil {
			return fmt.Errorf("processor: dedup: %w", err)
		}
		if seen {
			p.offsets[part] = off + 1
			p.dups++
			return nil
		}
	}

	seq, wm := p.disp.Append(smp)
	p.offsets[part] = off + 1
	p.lastSeq, p.lastTs = seq, wm.Ts
	p.handled++

	if p.cfg.ReadyFifo != "" {
		p.readyOnce.Do(func() {
			p.log.Infof("[ready] first sample dispatched, signaling fifo=%s", p.cfg.ReadyFifo)
			go ready.SignalFifoCtx(ctx, p.cfg.ReadyFifo, "READY\n", 8*time.Second)
		})
	}
	if p.handled%1024 == 0 {
		if err := p.dedup.Evict(wm.Ts); err != nil {
			p.log.Warnf("[processor] dedup evict: %v", err)
		}
	}
	if p.handled%int64(p.cfg.CkptEvery) == 0 {
		if err := p.saveLocked(); err != nil {
			p.log.Warnf("[processor] save ckpt: %v", err)
		}
		p.log.Infof("[processor] progress: handled=%d dups=%d seq=%d wm_ts=%d disp=%d warm=%t",
			p.handled, p.dups, seq, wm.Ts, p.disp.Len(), p.mw.Warm())
	}
	return nil
}

func (p *Processor) saveLocked() error {
	offs := make(map[int32]int64, len(p.offsets))
	for k, v := range p.offsets {
		offs[k] = v
	}
	return p.ckpt.Save(ProcCkpt{
		Topic:   p.cfg.Topic,
		Windows: windowSpans(p.cfg.Windows),
		Offsets: offs,
		LastSeq: p.lastSeq,
		LastTs:  p.lastTs,
	})
}

// Close saves a final checkpoint and releases everything New opened.
func (p *Processor) Close() error {
	p.mu.Lock()
	errs := []error{p.saveLocked()}
	p.mu.Unlock()

	errs = append(errs, p.spool.Close(), p.sink.Close())
	p.dedup.Close()
	if p.closer != nil {
		errs = append(errs, p.closer())
	}
	return errors.Join(errs...)
}

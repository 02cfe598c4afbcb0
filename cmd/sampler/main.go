package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chenzhangda16/moving-minmax/internal/logpipe/sampler"
	"github.com/chenzhangda16/moving-minmax/pkg/obs"
	"github.com/chenzhangda16/moving-minmax/pkg/rng"
)

func main() {
	var (
		brokers = flag.String("brokers", "127.0.0.1:9092", "kafka brokers csv")
		topic   = flag.String("topic", "minmax.samples", "topic to produce samples to")

		mode = flag.String("rng", "det", "rng mode: det|real")
		seed = flag.Int64("seed", 1, "base seed in det mode")

		keys   = flag.Int("keys", 8, "number of series")
		prefix = flag.String("key-prefix", "series", "series key prefix")
		perSec = flag.Int("per-sec", 10, "samples per event-time second")
		step   = flag.Float64("step", 1, "random walk step stddev")
		start  = flag.Int64("start-ts", 0, "event time of the first sample; 0 is now")

		dupEvery  = flag.Int("dup-every", 0, "resend every Nth sample with the same id")
		lateEvery = flag.Int("late-every", 0, "stamp every Nth sample late")
		lateBy    = flag.Int64("late-by", 30, "seconds a late sample lags")

		batch = flag.Int("batch", 100, "samples per send")
		every = flag.Duration("every", 100*time.Millisecond, "interval between sends; 0 sends flat out")
		limit = flag.Uint64("limit", 0, "stop after N samples; 0 runs until interrupted")

		logLevel = flag.String("log-level", "info", "log level")
	)
	flag.Parse()
	obs.Init("sampler", *logLevel)
	log := obs.L("main")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	m, ok := rng.ParseMode(*mode)
	if !ok {
		log.Fatalf("[main] bad -rng %q", *mode)
	}
	if *start == 0 {
		*start = time.Now().Unix()
	}
	f := rng.New(m, *seed)
	gen := sampler.NewGenerator(sampler.GenConfig{
		Keys:      *keys,
		KeyPrefix: *prefix,
		StartTs:   *start,
		PerSec:    *perSec,
		Step:      *step,
		DupEvery:  *dupEvery,
		LateEvery: *lateEvery,
		LateBy:    *lateBy,
	}, f)

	prod, err := sampler.NewProducer(*brokers, *topic)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = prod.Close() }()

	log.Infof("[main] start: topic=%s rng=%s keys=%d", *topic, f, *keys)
	s := sampler.New(sampler.Config{Batch: *batch, Every: *every, Limit: *limit}, gen, prod)
	if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Errorf("[main] run: %v", err)
		return
	}
	log.Infof("[main] exit: emitted=%d", gen.Emitted())
}

package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/chenzhangda16/moving-minmax/internal/logpipe/dedup"
	"github.com/chenzhangda16/moving-minmax/internal/logpipe/processor"
	"github.com/chenzhangda16/moving-minmax/pkg/obs"
)

func main() {
	var (
		brokers  = flag.String("brokers", "127.0.0.1:9092", "kafka brokers csv")
		group    = flag.String("group", "minmax-processor", "kafka consumer group")
		topic    = flag.String("topic", "minmax.samples", "topic to consume samples from")
		outTopic = flag.String("out-topic", "minmax.out", "topic for window records; empty logs them")

		windows   = flag.String("windows", "", "YAML windows file; default 1m,5m,1h,24h")
		emitEvery = flag.Int("emit-every", 0, "emit every series each N moves; 0 emits on change")
		warmup    = flag.Bool("warmup", true, "hold output until the longest window spans a full period")
		replay    = flag.Bool("replay", true, "rewind partitions by the longest window on session setup")

		dataDir  = flag.String("data-dir", "./data", "directory for the checkpoint and the dedup store")
		rocks    = flag.Bool("dedup-rocks", false, "keep dedup state in rocksdb under -data-dir")
		dedupTTL = flag.Duration("dedup-ttl", 0, "dedup horizon; default the longest window")

		spoolPath = flag.String("spool", "", "raw message WAL path; empty disables")
		ckptEvery = flag.Int("ckpt-every", 1000, "save the checkpoint every N samples")
		readyFifo = flag.String("ready-fifo", "", "write one line to this FIFO once the first sample is dispatched")

		logLevel = flag.String("log-level", "info", "log level")
	)
	flag.Parse()
	obs.Init("processor", *logLevel)
	log := obs.L("main")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var dedupDB string
	if *rocks {
		dedupDB = dedup.DefaultPath(*dataDir)
		if *replay {
			log.Warnf("[main] -replay ignored with -dedup-rocks; resuming from checkpoint offsets")
		}
	}

	cfg := processor.Config{
		Brokers:   *brokers,
		Group:     *group,
		Topic:     *topic,
		OutTopic:  *outTopic,
		EmitEvery: *emitEvery,
		Warmup:    *warmup,

		Replay:   *replay && dedupDB == "",
		DedupDB:  dedupDB,
		DedupTTL: *dedupTTL,

		SpoolPath:      *spoolPath,
		CheckpointPath: filepath.Join(*dataDir, "processor.ckpt"),
		CkptEvery:      *ckptEvery,
		ReadyFifo:      *readyFifo,
	}
	if *windows != "" {
		wf, err := processor.LoadWindows(*windows)
		if err != nil {
			log.Fatal(err)
		}
		cfg.Windows = wf.Windows
		if cfg.EmitEvery == 0 {
			cfg.EmitEvery = wf.EmitEvery
		}
	}

	p, err := processor.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer func() {
		if err := p.Close(); err != nil {
			log.Warnf("[main] close: %v", err)
		}
	}()

	start := time.Now()
	if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Errorf("[main] run: %v", err)
		return
	}
	handled, dups := p.Stats()
	log.Infof("[main] exit: handled=%d dups=%d up=%s", handled, dups, time.Since(start).Round(time.Second))
}

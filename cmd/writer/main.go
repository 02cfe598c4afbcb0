package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/chenzhangda16/moving-minmax/internal/logpipe/writer"
	"github.com/chenzhangda16/moving-minmax/pkg/obs"
)

// Postgres is configured through PG_DSN.
func main() {
	var (
		brokers  = flag.String("brokers", "127.0.0.1:9092", "kafka brokers csv")
		topic    = flag.String("topic", "minmax.out", "out topic")
		group    = flag.String("group", "minmax-writer", "consumer group")
		logLevel = flag.String("log-level", "info", "log level")
	)
	flag.Parse()
	obs.Init("writer", *logLevel)
	log := obs.L("main")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pg, err := writer.NewPGWriterFromEnv(ctx)
	if err != nil {
		log.Fatalf("[main] pg init failed: %v", err)
	}
	defer func() { _ = pg.Close() }()

	if err := pg.EnsureSchema(ctx); err != nil {
		log.Fatalf("[main] ensure schema failed: %v", err)
	}

	w := writer.New(pg)
	c, err := writer.NewConsumer(writer.Config{Brokers: *brokers, Group: *group, Topic: *topic}, w)
	if err != nil {
		log.Fatalf("[main] consumer init failed: %v", err)
	}
	defer func() { _ = c.Close() }()

	log.Infof("[main] start: topic=%s group=%s brokers=%s", *topic, *group, *brokers)
	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Errorf("[main] run: %v", err)
	}
	log.Infof("[main] exit: stored=%v", w.Counts())
}

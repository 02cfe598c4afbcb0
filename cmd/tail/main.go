// Command tail prints what flows through the pipeline: records on a Kafka topic, or the
// raw messages kept in a processor spool file.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/IBM/sarama"

	"github.com/chenzhangda16/moving-minmax/internal/logpipe/out"
	"github.com/chenzhangda16/moving-minmax/internal/logpipe/processor"
	"github.com/chenzhangda16/moving-minmax/pkg/obs"
)

type handler struct{ raw bool }

func (handler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (handler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h handler) ConsumeClaim(s sarama.ConsumerGroupSession, c sarama.ConsumerGroupClaim) error {
	for msg := range c.Messages() {
		fmt.Printf("p=%d off=%d key=%s %s\n", msg.Partition, msg.Offset, msg.Key, render(msg.Value, h.raw))
		s.MarkMessage(msg, "")
	}
	return nil
}

// render unwraps an out.Envelope when the value is one.
func render(v []byte, raw bool) string {
	if raw {
		return string(v)
	}
	var env out.Envelope
	if err := json.Unmarshal(v, &env); err != nil || env.Type == "" {
		return string(v)
	}
	return env.Type + " " + string(env.Data)
}

func main() {
	var (
		brokers = flag.String("brokers", "127.0.0.1:9092", "kafka brokers csv")
		topic   = flag.String("topic", "minmax.out", "topic to tail")
		group   = flag.String("group", "minmax-tail", "consumer group")
		raw     = flag.Bool("raw", false, "print values as is")
		spool   = flag.String("spool", "", "dump this spool file instead of reading Kafka")
	)
	flag.Parse()
	obs.Init("tail", "warn")
	log := obs.L("main")

	if *spool != "" {
		if err := dumpSpool(*spool, *raw); err != nil {
			log.Fatal(err)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest

	g, err := sarama.NewConsumerGroup(strings.Split(*brokers, ","), *group, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer g.Close()

	for ctx.Err() == nil {
		if err := g.Consume(ctx, []string{*topic}, handler{raw: *raw}); err != nil && !errors.Is(err, context.Canceled) {
			log.Fatal(err)
		}
	}
}

func dumpSpool(path string, raw bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	n := 0
	err = processor.ReadSpool(f, func(r processor.SpoolRecord) error {
		n++
		fmt.Printf("p=%d off=%d %s\n", r.Partition, r.Offset, render(r.Raw, raw))
		return nil
	})
	fmt.Fprintf(os.Stderr, "%d records\n", n)
	return err
}

package sampler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"github.com/chenzhangda16/moving-minmax/internal/logpipe/event"
	"github.com/chenzhangda16/moving-minmax/internal/logpipe/retry"
	"github.com/chenzhangda16/moving-minmax/pkg/obs"
)

type Producer struct {
	topic  string
	sp     sarama.SyncProducer
	policy retry.Policy
}

func NewProducer(brokersCSV string, topic string) (*Producer, error) {
	if topic == "" {
		return nil, errors.New("sampler: topic empty")
	}
	brokers := splitCSV(brokersCSV)
	if len(brokers) == 0 {
		return nil, errors.New("sampler: no brokers")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 10
	cfg.Producer.Retry.Backoff = 200 * time.Millisecond
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	// idempotence needs a single in-flight request per connection
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1

	sp, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("sampler: producer: %w", err)
	}
	return NewProducerFrom(sp, topic), nil
}

// NewProducerFrom wraps sp; tests pass a sarama/mocks producer.
func NewProducerFrom(sp sarama.SyncProducer, topic string) *Producer {
	pol := retry.Default
	log := obs.L("sampler")
	pol.OnRetry = func(attempt int, wait time.Duration, err error) {
		log.Warnf("[sampler] send retry: attempt=%d wait=%s err=%v", attempt, wait, err)
	}
	return &Producer{topic: topic, sp: sp, policy: pol}
}

func (p *Producer) Close() error {
	if p.sp != nil {
		return p.sp.Close()
	}
	return nil
}

// Produce sends samples as one batch keyed by series key and waits for the broker ack.
func (p *Producer) Produce(ctx context.Context, samples []event.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	msgs := make([]*sarama.ProducerMessage, 0, len(samples))
	for _, s := range samples {
		b, err := json.Marshal(s)
		if err != nil {
			return err
		}
		msgs = append(msgs, &sarama.ProducerMessage{
			Topic: p.topic,
			Key:   sarama.StringEncoder(s.Key),
			Value: sarama.ByteEncoder(b),
		})
	}

	return retry.Do(ctx, p.policy, func(ctx context.Context) error {
		err := p.sp.SendMessages(msgs)
		var perrs sarama.ProducerErrors
		if errors.As(err, &perrs) {
			// resend only what failed
			failed := make([]*sarama.ProducerMessage, 0, len(perrs))
			for _, pe := range perrs {
				failed = append(failed, pe.Msg)
			}
			msgs = failed
		}
		return err
	})
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, x := range parts {
		x = strings.TrimSpace(x)
		if x != "" {
			out = append(out, x)
		}
	}
	return out
}

package out

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/chenzhangda16/moving-minmax/internal/logpipe/retry"
	"github.com/chenzhangda16/moving-minmax/pkg/obs"
)

type KafkaSink struct {
	topic  string
	p      sarama.SyncProducer
	policy retry.Policy
}

func NewKafkaSink(brokers []string, topic string, cfg *sarama.Config) (*KafkaSink, error) {
	if cfg == nil {
		cfg = sarama.NewConfig()
		cfg.Version = sarama.V2_1_0_0
		cfg.Producer.RequiredAcks = sarama.WaitForAll
	}
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true

	p, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return NewKafkaSinkFromProducer(p, topic), nil
}

// NewKafkaSinkFromProducer wraps an existing producer (tests pass sarama/mocks producers).
func NewKafkaSinkFromProducer(p sarama.SyncProducer, topic string) *KafkaSink {
	pol := retry.Default
	log := obs.L("out")
	pol.OnRetry = func(attempt int, wait time.Duration, err error) {
		log.Warnf("[out] kafka emit retry: topic=%s attempt=%d wait=%s err=%v", topic, attempt, wait, err)
	}
	return &KafkaSink{topic: topic, p: p, policy: pol}
}

func (s *KafkaSink) Close() error {
	if s.p != nil {
		return s.p.Close()
	}
	return nil
}

// Emit sends one envelope keyed by the series key when v carries one, so a series stays
// on one partition.
func (s *KafkaSink) Emit(ctx context.Context, typ string, v any) error {
	b, err := Encode(typ, v)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Value: sarama.ByteEncoder(b),
	}
	if x, ok := v.(WinExtremum); ok {
		msg.Key = sarama.StringEncoder(x.Key)
	}

	err = retry.Do(ctx, s.policy, func(ctx context.Context) error {
		_, _, err := s.p.SendMessage(msg)
		if errors.Is(err, sarama.ErrMessageSizeTooLarge) {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("kafka emit failed: %w", err)
	}
	return nil
}

package writer

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"

	"github.com/chenzhangda16/moving-minmax/pkg/obs"
)

type Config struct {
	Brokers string
	Group   string
	Topic   string
}

// Consumer feeds the out topic into a Writer through a consumer group.
type Consumer struct {
	cfg   Config
	group sarama.ConsumerGroup
	w     *Writer
	log   *logrus.Entry
}

func NewConsumer(cfg Config, w *Writer) (*Consumer, error) {
	if cfg.Brokers == "" || cfg.Group == "" || cfg.Topic == "" {
		return nil, errors.New("writer: brokers/group/topic required")
	}
	sc := sarama.NewConfig()
	sc.Version = sarama.V2_1_0_0
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	sc.Consumer.Return.Errors = true

	g, err := sarama.NewConsumerGroup(splitCSV(cfg.Brokers), cfg.Group, sc)
	if err != nil {
		return nil, err
	}
	return &Consumer{cfg: cfg, group: g, w: w, log: obs.L("writer")}, nil
}

func (c *Consumer) Close() error { return c.group.Close() }

func (c *Consumer) Run(ctx context.Context) error {
	go func() {
		for err := range c.group.Errors() {
			c.log.Warnf("[writer] group err: %v", err)
		}
	}()
	h := &handler{w: c.w, log: c.log}
	for {
		if err := c.group.Consume(ctx, []string{c.cfg.Topic}, h); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return err
			}
			c.log.Warnf("[writer] consume err: %v", err)
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

type handler struct {
	w   *Writer
	log *logrus.Entry
}

func (h *handler) Setup(sess sarama.ConsumerGroupSession) error {
	h.log.Infof("[writer][setup] claims=%v", sess.Claims())
	return nil
}

func (h *handler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim marks a message once it is stored or found undecodable. A store failure
// ends the session so the message is consumed again.
func (h *handler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-sess.Context().Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			err := h.w.Apply(sess.Context(), msg.Value)
			if errors.Is(err, ErrBadRecord) {
				h.log.Warnf("[writer] drop: p=%d off=%d err=%v", msg.Partition, msg.Offset, err)
			} else if err != nil {
				return err
			}
			sess.MarkMessage(msg, "")
		}
	}
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

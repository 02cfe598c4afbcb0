package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"

	"github.com/chenzhangda16/moving-minmax/internal/logpipe/event"
	"github.com/chenzhangda16/moving-minmax/pkg/obs"
)

var ErrBadSample = errors.New("processor: bad sample")

// DecodeSample parses one JSON sample. Samples without a key or with a non-finite value
// are rejected.
func DecodeSample(raw []byte) (event.Sample, error) {
	var s event.Sample
	if err := json.Unmarshal(raw, &s); err != nil {
		return event.Sample{}, fmt.Errorf("%w: %v", ErrBadSample, err)
	}
	if s.Key == "" {
		return event.Sample{}, fmt.Errorf("%w: empty key", ErrBadSample)
	}
	if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
		return event.Sample{}, fmt.Errorf("%w: value %v", ErrBadSample, s.Value)
	}
	return s, nil
}

// Handler is the sarama ConsumerGroupHandler of the processor. Messages are spooled,
// decoded and handed to onSample in partition order; a message is marked only after
// onSample accepted it. Undecodable messages are logged and marked.
type Handler struct {
	topic string
	spool Spool
	log   *logrus.Entry

	// resetTo returns the offset a claimed partition restarts from, if any.
	resetTo  func(partition int32) (int64, bool)
	onSample func(ctx context.Context, partition int32, offset int64, s event.Sample) error

	setupAt time.Time
}

var _ sarama.ConsumerGroupHandler = (*Handler)(nil)

func (h *Handler) Setup(sess sarama.ConsumerGroupSession) error {
	h.setupAt = time.Now()
	parts := sess.Claims()[h.topic]
	h.log.Infof("[processor][setup] topic=%s parts=%v member=%s gen=%d",
		h.topic, parts, sess.MemberID(), sess.GenerationID())

	if h.resetTo == nil {
		return nil
	}
	for _, p := range parts {
		off, ok := h.resetTo(p)
		if !ok {
			continue
		}
		h.log.Infof("[processor][setup] reset offset: topic=%s p=%d off=%d", h.topic, p, off)
		sess.ResetOffset(h.topic, p, off, "")
	}
	return nil
}

func (h *Handler) Cleanup(sess sarama.ConsumerGroupSession) error {
	h.log.Infof("[processor][cleanup] session ended after %s", time.Since(h.setupAt).Round(time.Millisecond))
	return nil
}

func (h *Handler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	first := true
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if first {
				first = false
				h.log.Infof("[processor] first_msg: p=%d off=%d hwm=%d since_setup=%s",
					msg.Partition, msg.Offset, claim.HighWaterMarkOffset(), time.Since(h.setupAt))
			}
			if err := h.spool.Append(msg.Partition, msg.Offset, msg.Value); err != nil {
				return fmt.Errorf("processor: spool append p=%d off=%d: %w", msg.Partition, msg.Offset, err)
			}

			smp, err := DecodeSample(msg.Value)
			if err != nil {
				h.log.Warnf("[processor] drop message: p=%d off=%d err=%v", msg.Partition, msg.Offset, err)
				sess.MarkMessage(msg, "")
				continue
			}
			if err := h.onSample(ctx, msg.Partition, msg.Offset, smp); err != nil {
				return err
			}
			sess.MarkMessage(msg, "")
		}
	}
}

func newHandler(topic string, spool Spool) *Handler {
	if spool == nil {
		spool = nopSpool{}
	}
	return &Handler{topic: topic, spool: spool, log: obs.L("processor")}
}

package processor

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/IBM/sarama"

	"github.com/chenzhangda16/moving-minmax/internal/logpipe/event"
)

type fakeSession struct {
	ctx    context.Context
	claims map[string][]int32

	mu     sync.Mutex
	marked map[int32]int64
	resets map[int32]int64
}

func newFakeSession(ctx context.Context, topic string, parts ...int32) *fakeSession {
	return &fakeSession{
		ctx:    ctx,
		claims: map[string][]int32{topic: parts},
		marked: map[int32]int64{},
		resets: map[int32]int64{},
	}
}

func (s *fakeSession) Claims() map[string][]int32 { return s.claims }
func (s *fakeSession) MemberID() string           { return "member-1" }
func (s *fakeSession) GenerationID() int32        { return 1 }
func (s *fakeSession) Commit()                    {}
func (s *fakeSession) Context() context.Context   { return s.ctx }

func (s *fakeSession) MarkOffset(_ string, p int32, off int64, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked[p] = off
}

func (s *fakeSession) ResetOffset(_ string, p int32, off int64, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets[p] = off
}

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, md string) {
	s.MarkOffset(msg.Topic, msg.Partition, msg.Offset+1, md)
}

func (s *fakeSession) Marked(p int32) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.marked[p]
}

type fakeClaim struct {
	topic string
	part  int32
	ch    chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Topic() string                            { return c.topic }
func (c *fakeClaim) Partition() int32                         { return c.part }
func (c *fakeClaim) InitialOffset() int64                     { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64               { return int64(len(c.ch)) }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.ch }

// claimOf returns a closed claim holding msgs at offsets 0..n-1.
func claimOf(topic string, part int32, msgs ...[]byte) *fakeClaim {
	ch := make(chan *sarama.ConsumerMessage, len(msgs))
	for i, m := range msgs {
		ch <- &sarama.ConsumerMessage{Topic: topic, Partition: part, Offset: int64(i), Value: m}
	}
	close(ch)
	return &fakeClaim{topic: topic, part: part, ch: ch}
}

func sampleJSON(id, key string, ts int64, v float64) []byte {
	b, err := json.Marshal(event.Sample{ID: id, Key: key, Ts: ts, Value: v})
	if err != nil {
		panic(err)
	}
	return b
}

// fakeGroup runs one session over a fixed claim per Consume call, then waits for ctx.
type fakeGroup struct {
	topic string
	claim *fakeClaim
	errs  chan error

	mu       sync.Mutex
	sessions []*fakeSession
}

func (g *fakeGroup) Consume(ctx context.Context, _ []string, h sarama.ConsumerGroupHandler) error {
	sess := newFakeSession(ctx, g.topic, g.claim.part)
	g.mu.Lock()
	g.sessions = append(g.sessions, sess)
	g.mu.Unlock()

	if err := h.Setup(sess); err != nil {
		return err
	}
	if err := h.ConsumeClaim(sess, g.claim); err != nil {
		return err
	}
	<-ctx.Done()
	return h.Cleanup(sess)
}

func (g *fakeGroup) Errors() <-chan error { return g.errs }
func (g *fakeGroup) Close() error         { return nil }

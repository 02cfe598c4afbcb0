package writer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenzhangda16/moving-minmax/internal/logpipe/out"
	"github.com/chenzhangda16/moving-minmax/internal/logpipe/retry"
)

type memStore struct {
	mu    sync.Mutex
	xs    []out.WinExtremum
	ticks []out.WinTick
	fail  int
	err   error
}

func (s *memStore) take() error {
	if s.fail > 0 {
		s.fail--
		return s.err
	}
	return nil
}

func (s *memStore) InsertExtremum(_ context.Context, x out.WinExtremum) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.take(); err != nil {
		return err
	}
	s.xs = append(s.xs, x)
	return nil
}

func (s *memStore) InsertWinTick(_ context.Context, t out.WinTick) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.take(); err != nil {
		return err
	}
	s.ticks = append(s.ticks, t)
	return nil
}

var fast = retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}

func encode(t *testing.T, typ string, v any) []byte {
	t.Helper()
	b, err := out.Encode(typ, v)
	require.NoError(t, err)
	return b
}

func TestApply(t *testing.T) {
	st := &memStore{}
	w := New(st).WithPolicy(fast)
	ctx := context.Background()

	x := out.WinExtremum{Window: "1m", SpanS: 60, Key: "cpu", WmTs: 100, Count: 3, Min: -1, Max: 4}
	require.NoError(t, w.Apply(ctx, encode(t, out.TypeWinExtremum, x)))
	tick := out.WinTick{Window: "1m", Seq: 9, WmTs: 100, Series: 2}
	require.NoError(t, w.Apply(ctx, encode(t, out.TypeWinTick, tick)))
	require.NoError(t, w.Apply(ctx, encode(t, "something_else", map[string]int{"a": 1})))

	assert.Equal(t, []out.WinExtremum{x}, st.xs)
	assert.Equal(t, []out.WinTick{tick}, st.ticks)
	assert.Equal(t, map[string]int64{out.TypeWinExtremum: 1, out.TypeWinTick: 1}, w.Counts())
}

func TestApplyBadRecord(t *testing.T) {
	w := New(&memStore{}).WithPolicy(fast)
	assert.ErrorIs(t, w.Apply(context.Background(), []byte("{")), ErrBadRecord)
	assert.ErrorIs(t, w.Apply(context.Background(),
		[]byte(`{"type":"win_extremum","data":"not an object"}`)), ErrBadRecord)
}

func TestApplyRetries(t *testing.T) {
	st := &memStore{fail: 2, err: errors.New("conn reset")}
	w := New(st).WithPolicy(fast)
	require.NoError(t, w.Apply(context.Background(), encode(t, out.TypeWinTick, out.WinTick{Window: "x"})))
	assert.Len(t, st.ticks, 1)

	st = &memStore{fail: 5, err: errors.New("conn reset")}
	w = New(st).WithPolicy(fast)
	err := w.Apply(context.Background(), encode(t, out.TypeWinTick, out.WinTick{Window: "x"}))
	assert.ErrorContains(t, err, "conn reset")
	assert.NotErrorIs(t, err, ErrBadRecord)
	assert.Equal(t, 2, st.fail)
}

func TestApplyPermanentStopsRetrying(t *testing.T) {
	st := &memStore{fail: 5, err: retry.Permanent(errors.New("constraint"))}
	w := New(st).WithPolicy(fast)
	assert.Error(t, w.Apply(context.Background(), encode(t, out.TypeWinTick, out.WinTick{})))
	assert.Equal(t, 4, st.fail)
}

type session struct {
	ctx    context.Context
	marked []int64
}

func (s *session) Claims() map[string][]int32                      { return map[string][]int32{"out": {0}} }
func (s *session) MemberID() string                                { return "m" }
func (s *session) GenerationID() int32                             { return 1 }
func (s *session) MarkOffset(string, int32, int64, string)         {}
func (s *session) Commit()                                         {}
func (s *session) ResetOffset(string, int32, int64, string)        {}
func (s *session) Context() context.Context                        { return s.ctx }
func (s *session) MarkMessage(m *sarama.ConsumerMessage, _ string) { s.marked = append(s.marked, m.Offset) }

type claim struct{ ch chan *sarama.ConsumerMessage }

func (c *claim) Topic() string                            { return "out" }
func (c *claim) Partition() int32                         { return 0 }
func (c *claim) InitialOffset() int64                     { return 0 }
func (c *claim) HighWaterMarkOffset() int64               { return 0 }
func (c *claim) Messages() <-chan *sarama.ConsumerMessage { return c.ch }

func TestHandlerMarksStoredAndBad(t *testing.T) {
	st := &memStore{}
	w := New(st).WithPolicy(fast)
	h := &handler{w: w, log: w.log}

	ch := make(chan *sarama.ConsumerMessage, 3)
	ch <- &sarama.ConsumerMessage{Offset: 0, Value: encode(t, out.TypeWinExtremum, out.WinExtremum{Key: "a"})}
	ch <- &sarama.ConsumerMessage{Offset: 1, Value: []byte("junk")}
	ch <- &sarama.ConsumerMessage{Offset: 2, Value: encode(t, out.TypeWinExtremum, out.WinExtremum{Key: "b"})}
	close(ch)

	sess := &session{ctx: context.Background()}
	require.NoError(t, h.ConsumeClaim(sess, &claim{ch: ch}))
	assert.Equal(t, []int64{0, 1, 2}, sess.marked)
	assert.Len(t, st.xs, 2)
}

func TestHandlerStopsOnStoreFailure(t *testing.T) {
	st := &memStore{fail: 100, err: errors.New("db down")}
	w := New(st).WithPolicy(fast)
	h := &handler{w: w, log: w.log}

	ch := make(chan *sarama.ConsumerMessage, 1)
	ch <- &sarama.ConsumerMessage{Offset: 7, Value: encode(t, out.TypeWinTick, out.WinTick{})}
	close(ch)

	sess := &session{ctx: context.Background()}
	assert.Error(t, h.ConsumeClaim(sess, &claim{ch: ch}))
	assert.Empty(t, sess.marked)
}

package writer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chenzhangda16/moving-minmax/internal/logpipe/out"
	"github.com/chenzhangda16/moving-minmax/internal/logpipe/retry"
	"github.com/chenzhangda16/moving-minmax/pkg/obs"
)

var ErrBadRecord = errors.New("writer: bad record")

// Store persists window records. *PGWriter is the Postgres one.
type Store interface {
	InsertExtremum(ctx context.Context, x out.WinExtremum) error
	InsertWinTick(ctx context.Context, t out.WinTick) error
}

// Writer decodes out.Envelope payloads and stores them with retries.
type Writer struct {
	store  Store
	policy retry.Policy
	log    *logrus.Entry

	mu      sync.Mutex
	unknown map[string]bool
	counts  map[string]int64
}

func New(store Store) *Writer {
	w := &Writer{
		store:   store,
		policy:  retry.Default,
		log:     obs.L("writer"),
		unknown: map[string]bool{},
		counts:  map[string]int64{},
	}
	w.policy.OnRetry = func(attempt int, wait time.Duration, err error) {
		w.log.Warnf("[writer] store retry: attempt=%d wait=%s err=%v", attempt, wait, err)
	}
	return w
}

// WithPolicy replaces the retry policy, keeping the retry log hook when p has none.
func (w *Writer) WithPolicy(p retry.Policy) *Writer {
	if p.OnRetry == nil {
		p.OnRetry = w.policy.OnRetry
	}
	w.policy = p
	return w
}

// Counts returns how many records of each type were stored.
func (w *Writer) Counts() map[string]int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	m := make(map[string]int64, len(w.counts))
	for k, v := range w.counts {
		m[k] = v
	}
	return m
}

// Apply stores one encoded envelope. Undecodable payloads return ErrBadRecord; unknown
// types are skipped.
func (w *Writer) Apply(ctx context.Context, raw []byte) error {
	var env out.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRecord, err)
	}

	var store func(context.Context) error
	switch env.Type {
	case out.TypeWinExtremum:
		var x out.WinExtremum
		if err := json.Unmarshal(env.Data, &x); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrBadRecord, env.Type, err)
		}
		store = func(ctx context.Context) error { return w.store.InsertExtremum(ctx, x) }
	case out.TypeWinTick:
		var t out.WinTick
		if err := json.Unmarshal(env.Data, &t); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrBadRecord, env.Type, err)
		}
		store = func(ctx context.Context) error { return w.store.InsertWinTick(ctx, t) }
	default:
		w.mu.Lock()
		first := !w.unknown[env.Type]
		w.unknown[env.Type] = true
		w.mu.Unlock()
		if first {
			w.log.Warnf("[writer] skip unknown record type %q", env.Type)
		}
		return nil
	}

	if err := retry.Do(ctx, w.policy, store); err != nil {
		return fmt.Errorf("writer: store %s: %w", env.Type, err)
	}
	w.mu.Lock()
	w.counts[env.Type]++
	w.mu.Unlock()
	return nil
}

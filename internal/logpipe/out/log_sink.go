package out

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/chenzhangda16/moving-minmax/pkg/obs"
)

// LogSink writes records to the process log. Used for dry runs without Kafka.
type LogSink struct {
	log *logrus.Entry
}

func NewLogSink() *LogSink { return &LogSink{log: obs.L("out")} }

func (s *LogSink) Emit(_ context.Context, typ string, v any) error {
	s.log.WithField("type", typ).Infof("[out] %+v", v)
	return nil
}

func (s *LogSink) Close() error { return nil }

// MemSink keeps every emitted record in memory.
type MemSink struct {
	mu   sync.Mutex
	recs []Record
}

type Record struct {
	Type string
	V    any
}

func (s *MemSink) Emit(_ context.Context, typ string, v any) error {
	s.mu.Lock()
	s.recs = append(s.recs, Record{Type: typ, V: v})
	s.mu.Unlock()
	return nil
}

func (s *MemSink) Close() error { return nil }

// Records returns a copy of what was emitted so far.
func (s *MemSink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.recs...)
}

// Extrema returns the emitted WinExtremum records in order.
func (s *MemSink) Extrema() []WinExtremum {
	var res []WinExtremum
	for _, r := range s.Records() {
		if x, ok := r.V.(WinExtremum); ok {
			res = append(res, x)
		}
	}
	return res
}

package dispatcher

import (
	"sync"

	"github.com/chenzhangda16/moving-minmax/internal/logpipe/event"
)

// Watermark is the newest sample the Dispatcher has appended.
// Next is the Seq the following sample will get; Next == 0 means nothing was appended yet.
type Watermark struct {
	Next uint64
	Ts   int64
}

// Dispatcher: single writer Append, many readers ReadBySeq, watermark broadcast.
type Dispatcher struct {
	mu sync.RWMutex

	// log[i] holds Seq base+i
	log  []event.Sample
	base uint64

	wm Watermark

	subMu sync.Mutex
	subs  map[uint64]chan Watermark
	subID uint64
}

func NewDispatcher(initialCap int) *Dispatcher {
	if initialCap < 0 {
		initialCap = 0
	}
	return &Dispatcher{
		log:  make([]event.Sample, 0, initialCap),
		subs: make(map[uint64]chan Watermark),
	}
}

// Append assigns the next Seq, advances the watermark and notifies subscribers.
// A sample older than the watermark keeps the watermark Ts; event time never goes back.
func (d *Dispatcher) Append(s event.Sample) (uint64, Watermark) {
	d.mu.Lock()
	s.Seq = d.wm.Next
	d.log = append(d.log, s)

	d.wm.Next++
	if s.Ts > d.wm.Ts {
		d.wm.Ts = s.Ts
	}
	wm := d.wm
	d.mu.Unlock()

	d.broadcast(wm)
	return s.Seq, wm
}

func (d *Dispatcher) Watermark() Watermark {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.wm
}

// Len returns the number of samples still held (appended minus trimmed).
func (d *Dispatcher) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.log)
}

// ReadBySeq returns copies of samples in [from, to). The range is clamped to what is held;
// trimmed samples are skipped.
func (d *Dispatcher) ReadBySeq(from, to uint64) []event.Sample {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if from < d.base {
		from = d.base
	}
	if to > d.wm.Next {
		to = d.wm.Next
	}
	if to <= from {
		return nil
	}
	out := make([]event.Sample, to-from)
	copy(out, d.log[from-d.base:to-d.base])
	return out
}

// Trim drops every sample with Seq < before. Callers pass the lowest Seq any reader still needs.
func (d *Dispatcher) Trim(before uint64) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	if before > d.wm.Next {
		before = d.wm.Next
	}
	if before <= d.base {
		return 0
	}
	n := int(before - d.base)
	rest := make([]event.Sample, len(d.log)-n, max(cap(d.log)/2, len(d.log)-n))
	copy(rest, d.log[n:])
	d.log = rest
	d.base = before
	return n
}

// SubscribeWatermark returns a channel of watermark updates and its cancel func.
// The current watermark is delivered first. Slow subscribers miss intermediate updates.
func (d *Dispatcher) SubscribeWatermark(buffer int) (<-chan Watermark, func()) {
	if buffer <= 0 {
		buffer = 1
	}

	d.subMu.Lock()
	id := d.subID
	d.subID++
	ch := make(chan Watermark, buffer)
	d.subs[id] = ch
	ch <- d.Watermark()
	d.subMu.Unlock()

	cancel := func() {
		d.subMu.Lock()
		if c, ok := d.subs[id]; ok {
			delete(d.subs, id)
			close(c)
		}
		d.subMu.Unlock()
	}
	return ch, cancel
}

func (d *Dispatcher) broadcast(wm Watermark) {
	d.subMu.Lock()
	defer d.subMu.Unlock()

	for _, ch := range d.subs {
		select {
		case ch <- wm:
		default:
			// keep the newest watermark: drop one stale update and retry once
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- wm:
			default:
			}
		}
	}
}

package dispatcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenzhangda16/moving-minmax/internal/logpipe/event"
)

func appendN(d *Dispatcher, n int, ts int64) {
	for i := 0; i < n; i++ {
		d.Append(event.Sample{Key: "k", Ts: ts + int64(i), Value: float64(i)})
	}
}

func TestAppendAndRead(t *testing.T) {
	d := NewDispatcher(4)
	seq, wm := d.Append(event.Sample{Key: "a", Ts: 100, Value: 1})
	assert.Equal(t, uint64(0), seq)
	assert.Equal(t, Watermark{Next: 1, Ts: 100}, wm)

	appendN(d, 4, 101)
	got := d.ReadBySeq(1, 3)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(1), got[0].Seq)
	assert.Equal(t, int64(102), got[1].Ts)

	assert.Len(t, d.ReadBySeq(0, 99), 5)
	assert.Nil(t, d.ReadBySeq(3, 3))
	assert.Nil(t, d.ReadBySeq(9, 12))
}

func TestWatermarkTsMonotonic(t *testing.T) {
	d := NewDispatcher(0)
	d.Append(event.Sample{Ts: 50})
	_, wm := d.Append(event.Sample{Ts: 40})
	assert.Equal(t, int64(50), wm.Ts)
	assert.Equal(t, uint64(2), wm.Next)
}

func TestTrim(t *testing.T) {
	d := NewDispatcher(0)
	appendN(d, 10, 0)

	assert.Equal(t, 4, d.Trim(4))
	assert.Equal(t, 6, d.Len())
	assert.Equal(t, 0, d.Trim(2))

	got := d.ReadBySeq(0, 6)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(4), got[0].Seq)

	appendN(d, 1, 10)
	got = d.ReadBySeq(9, 11)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(10), got[1].Seq)

	assert.Equal(t, 7, d.Trim(100))
	assert.Equal(t, 0, d.Len())
}

func TestSubscribeSeesLatest(t *testing.T) {
	d := NewDispatcher(0)
	ch, cancel := d.SubscribeWatermark(1)
	defer cancel()

	assert.Equal(t, Watermark{}, <-ch)
	appendN(d, 20, 0)

	var last Watermark
	for {
		select {
		case last = <-ch:
			continue
		default:
		}
		break
	}
	assert.Equal(t, uint64(20), last.Next)
}

package out

import (
	"encoding/json"
	"time"
)

type Envelope struct {
	Type string          `json:"type"` // e.g. "win_extremum"
	TS   int64           `json:"ts"`   // unix milli
	Data json.RawMessage `json:"data"`
}

// WinExtremum is the min/max of one series over one window at watermark time WmTs.
type WinExtremum struct {
	Window string  `json:"window"`
	SpanS  int64   `json:"span_s"`
	Key    string  `json:"key"`
	WmTs   int64   `json:"wm_ts"`
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// WinTick is a per-window heartbeat.
type WinTick struct {
	Window string `json:"window"`
	Seq    uint64 `json:"seq"`
	WmTs   int64  `json:"wm_ts"`
	Series int    `json:"series"`
}

// Encode wraps v into a JSON Envelope.
func Encode(typ string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		Type: typ,
		TS:   time.Now().UnixMilli(),
		Data: data,
	})
}

package event

// Sample is one keyed observation flowing through the pipeline.
type Sample struct {
	Seq   uint64  `json:"-"`    // assigned by the Dispatcher, global order
	ID    string  `json:"id"`   // producer-side unique id, used for dedup
	Key   string  `json:"key"`  // series key, e.g. "cpu.host-3"
	Ts    int64   `json:"ts"`   // unix seconds
	Value float64 `json:"value"`
}

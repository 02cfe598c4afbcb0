package out

import "context"

type Sink interface {
	Emit(ctx context.Context, typ string, v any) error
	Close() error
}

// Record types carried in Envelope.Type.
const (
	TypeWinExtremum = "win_extremum"
	TypeWinTick     = "win_tick"
)

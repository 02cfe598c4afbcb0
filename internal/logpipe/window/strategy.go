package window

import (
	"context"

	"github.com/chenzhangda16/moving-minmax/internal/logpipe/out"
)

// Strategy reacts to a Runner move. It runs on the runner goroutine and may read the
// runner's series directly.
type Strategy interface {
	OnMove(ctx context.Context, r *Runner, mv Move, sink out.Sink) error
}

// Package ready tells a supervising script that a binary reached its serving state by
// writing one line into a named pipe.
package ready

import (
	"context"
	"errors"
	"os"
	"syscall"
	"time"

	"github.com/chenzhangda16/moving-minmax/pkg/obs"
)

const (
	DefaultPayload = "READY\n"
	DefaultTimeout = 8 * time.Second
)

// SignalFifoCtx writes payload to the FIFO at path once a reader has it open.
// The FIFO is opened non-blocking; while no reader exists (ENXIO) it polls until ctx
// is done or timeout passes. An empty path is a no-op.
func SignalFifoCtx(ctx context.Context, path string, payload string, timeout time.Duration) bool {
	if path == "" {
		return false
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if payload == "" {
		payload = DefaultPayload
	}
	log := obs.L("ready")

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	tick := time.NewTicker(80 * time.Millisecond)
	defer tick.Stop()

	for {
		fd, err := syscall.Open(path, syscall.O_WRONLY|syscall.O_NONBLOCK, 0)
		if err == nil {
			f := os.NewFile(uintptr(fd), path)
			_, werr := f.WriteString(payload)
			_ = f.Close()
			if werr != nil {
				log.Warnf("[ready] fifo write failed: path=%s err=%v", path, werr)
				return false
			}
			log.Infof("[ready] signaled: path=%s", path)
			return true
		}

		if !errors.Is(err, syscall.ENXIO) {
			log.Warnf("[ready] fifo open failed: path=%s err=%v", path, err)
			return false
		}
		select {
		case <-ctx.Done():
			log.Warnf("[ready] canceled before fifo ready: path=%s err=%v", path, ctx.Err())
			return false
		case <-deadline.C:
			log.Warnf("[ready] timeout waiting fifo reader: path=%s timeout=%s", path, timeout)
			return false
		case <-tick.C:
		}
	}
}

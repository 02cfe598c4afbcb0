// Package rng hands out named, independently seeded random streams so a generator can
// be replayed exactly from one base seed.
package rng

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"
)

type Mode int

const (
	Deterministic Mode = iota
	Real
)

func (m Mode) String() string {
	if m == Real {
		return "real"
	}
	return "det"
}

// ParseMode maps "det"/"deterministic" and "real" to a Mode.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "det", "deterministic", "":
		return Deterministic, true
	case "real":
		return Real, true
	}
	return Deterministic, false
}

// Factory owns the streams of one run. Sub factories share its seed and streams.
type Factory struct {
	seed   int64
	mode   Mode
	prefix string

	reg *registry
}

type registry struct {
	mu      sync.Mutex
	streams map[string]*rand.Rand
}

// New returns a factory. In Real mode seed is ignored and a fresh one is drawn from
// crypto/rand; Seed reports it so the run can be repeated in Deterministic mode.
func New(mode Mode, seed int64) *Factory {
	if mode == Real {
		var b [8]byte
		if _, err := crand.Read(b[:]); err == nil {
			seed = int64(binary.LittleEndian.Uint64(b[:]) >> 1)
		}
	}
	return &Factory{
		seed: seed,
		mode: mode,
		reg:  &registry{streams: make(map[string]*rand.Rand)},
	}
}

func (f *Factory) Seed() int64 { return f.seed }
func (f *Factory) Mode() Mode  { return f.mode }

// String is "<mode>:<seed>", as logged at startup.
func (f *Factory) String() string { return fmt.Sprintf("%s:%d", f.mode, f.seed) }

// Sub returns a factory whose stream names are scoped under name.
func (f *Factory) Sub(name string) *Factory {
	return &Factory{seed: f.seed, mode: f.mode, prefix: f.prefix + name + ".", reg: f.reg}
}

// R returns the stream called name, creating it on first use. A stream is not safe for
// concurrent use; hot paths should keep the *rand.Rand instead of calling R again.
func (f *Factory) R(name string) *rand.Rand {
	full := f.prefix + name

	f.reg.mu.Lock()
	defer f.reg.mu.Unlock()
	if r, ok := f.reg.streams[full]; ok {
		return r
	}
	r := rand.New(rand.NewSource(streamSeed(f.seed, full)))
	f.reg.streams[full] = r
	return r
}

// streamSeed hashes the base seed together with the stream name, so nearby base seeds
// do not give nearby stream seeds.
func streamSeed(base int64, name string) int64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(base))
	h := fnv.New64a()
	_, _ = h.Write(b[:])
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64())
}

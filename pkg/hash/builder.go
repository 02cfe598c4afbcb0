package hash

import (
	"crypto/sha256"
	"encoding/binary"
)

// Builder builds a canonical byte sequence then hashes it to Hash32 (sha256).
//
// Encoding rules:
//   - Fixed-width integers: big-endian
//   - Bytes/string: u32(len) big-endian + bytes
//
// Used for dedup keys, so the same fields always hash the same across restarts.
type Builder struct {
	b []byte
}

func NewBuilder() *Builder { return &Builder{b: make([]byte, 0, 128)} }

func (d *Builder) Reset() { d.b = d.b[:0] }

func (d *Builder) PutU64(v uint64) *Builder {
	d.b = binary.BigEndian.AppendUint64(d.b, v)
	return d
}

func (d *Builder) PutI64(v int64) *Builder { return d.PutU64(uint64(v)) }

// PutBytes appends: u32(len) + bytes
func (d *Builder) PutBytes(p []byte) *Builder {
	d.b = binary.BigEndian.AppendUint32(d.b, uint32(len(p)))
	d.b = append(d.b, p...)
	return d
}

func (d *Builder) PutString(s string) *Builder {
	d.b = binary.BigEndian.AppendUint32(d.b, uint32(len(s)))
	d.b = append(d.b, s...)
	return d
}

func (d *Builder) Sum32() Hash32 {
	return sha256.Sum256(d.b)
}

// Package dedup drops samples that were already seen within a TTL.
package dedup

import "github.com/chenzhangda16/moving-minmax/pkg/hash"

// Deduper records keys with an expiry. SeenOrAdd reports whether key is known and
// unexpired at nowTs; if not, it records key until nowTs+ttlSec.
type Deduper interface {
	SeenOrAdd(key hash.Hash32, nowTs int64, ttlSec int64) (seen bool, err error)
	Evict(nowTs int64) error
	Close()
}

// Key derives the dedup key of a sample id.
func Key(id string) hash.Hash32 {
	return hash.NewBuilder().PutString("sample").PutString(id).Sum32()
}

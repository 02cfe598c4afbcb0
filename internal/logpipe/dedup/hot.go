package dedup

import "github.com/chenzhangda16/moving-minmax/pkg/hash"

// HotDeduper is an in-memory TTL deduper.
type HotDeduper struct {
	m    map[hash.Hash32]int64 // key -> expireTs
	q    []hotItem             // insertion order
	head int                   // pop index
}

type hotItem struct {
	key      hash.Hash32
	expireTs int64
}

func NewHotDeduper(capHint int) *HotDeduper {
	if capHint < 0 {
		capHint = 0
	}
	return &HotDeduper{
		m: make(map[hash.Hash32]int64, capHint),
		q: make([]hotItem, 0, capHint),
	}
}

func (d *HotDeduper) SeenOrAdd(key hash.Hash32, nowTs int64, ttlSec int64) (bool, error) {
	if ttlSec <= 0 {
		ttlSec = 1
	}
	if exp, ok := d.m[key]; ok && exp >= nowTs {
		return true, nil
	}
	expireTs := nowTs + ttlSec
	d.m[key] = expireTs
	d.q = append(d.q, hotItem{key: key, expireTs: expireTs})
	return false, nil
}

// Evict removes keys that expired before nowTs.
func (d *HotDeduper) Evict(nowTs int64) error {
	for d.head < len(d.q) {
		it := d.q[d.head]
		if it.expireTs >= nowTs {
			break
		}
		// a re-added key has a newer expiry in the map; leave it
		if exp, ok := d.m[it.key]; ok && exp == it.expireTs {
			delete(d.m, it.key)
		}
		d.q[d.head] = hotItem{}
		d.head++
	}

	if d.head > 4096 && d.head*2 > len(d.q) {
		n := copy(d.q, d.q[d.head:])
		d.q = d.q[:n]
		d.head = 0
	}
	return nil
}

func (d *HotDeduper) Len() int { return len(d.m) }

func (d *HotDeduper) Close() {}

package dedup

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/tecbot/gorocksdb"

	"github.com/chenzhangda16/moving-minmax/pkg/hash"
)

// RocksDeduper is a persistent TTL deduper. Besides the main "sd:"+key -> expireTs
// record it keeps an index "sdx:"+bucket+":"+key so Evict can sweep whole expiry buckets.
type RocksDeduper struct {
	db *gorocksdb.DB
	ro *gorocksdb.ReadOptions
	wo *gorocksdb.WriteOptions

	bucketSec int64

	lastCleanedBucket int64
}

var metaLastCleaned = []byte("meta:sd_last_clean_bucket")

func OpenRocksDeduper(path string, bucketSec int64) (*RocksDeduper, error) {
	if bucketSec <= 0 {
		return nil, errors.New("dedup: bucketSec must be > 0")
	}
	opts := gorocksdb.NewDefaultOptions()
	opts.SetCreateIfMissing(true)
	opts.IncreaseParallelism(2)

	db, err := gorocksdb.OpenDb(opts, path)
	if err != nil {
		return nil, fmt.Errorf("dedup: open rocksdb %s: %w", path, err)
	}

	d := &RocksDeduper{
		db:        db,
		ro:        gorocksdb.NewDefaultReadOptions(),
		wo:        gorocksdb.NewDefaultWriteOptions(),
		bucketSec: bucketSec,
	}
	if err := d.loadLastCleanedBucket(); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func (d *RocksDeduper) Close() {
	if d.ro != nil {
		d.ro.Destroy()
	}
	if d.wo != nil {
		d.wo.Destroy()
	}
	if d.db != nil {
		d.db.Close()
	}
}

func (d *RocksDeduper) SeenOrAdd(key hash.Hash32, nowTs int64, ttlSec int64) (bool, error) {
	if ttlSec <= 0 {
		ttlSec = 1
	}
	mainKey := makeMainKey(key)

	val, err := d.db.Get(d.ro, mainKey)
	if err != nil {
		return false, err
	}
	if val.Exists() {
		exp := decodeI64(val.Data())
		val.Free()
		if exp >= nowTs {
			return true, nil
		}
	} else {
		val.Free()
	}

	expireTs := nowTs + ttlSec
	wb := gorocksdb.NewWriteBatch()
	defer wb.Destroy()
	wb.Put(mainKey, encodeI64(expireTs))
	wb.Put(makeIdxKey(expireTs/d.bucketSec, key), encodeI64(expireTs))

	if err := d.db.Write(d.wo, wb); err != nil {
		return false, err
	}
	return false, nil
}

// Evict sweeps buckets strictly older than the bucket of nowTs, resuming after the last
// swept bucket.
func (d *RocksDeduper) Evict(nowTs int64) error {
	target := nowTs/d.bucketSec - 1
	if target <= d.lastCleanedBucket {
		return nil
	}
	if d.lastCleanedBucket < 0 {
		first, ok, err := d.firstBucket()
		if err != nil {
			return err
		}
		if !ok {
			d.lastCleanedBucket = target
			return d.saveLastCleanedBucket()
		}
		d.lastCleanedBucket = first - 1
	}
	for b := d.lastCleanedBucket + 1; b <= target; b++ {
		if err := d.cleanBucket(b); err != nil {
			return err
		}
		d.lastCleanedBucket = b
	}
	return d.saveLastCleanedBucket()
}

func (d *RocksDeduper) cleanBucket(bucket int64) error {
	prefix := makeIdxPrefix(bucket)
	it := d.db.NewIterator(d.ro)
	defer it.Close()

	wb := gorocksdb.NewWriteBatch()
	defer wb.Destroy()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		k := it.Key()
		v := it.Value()
		kb := append([]byte(nil), k.Data()...)
		expIdx := decodeI64(v.Data())
		k.Free()
		v.Free()

		wb.Delete(kb)

		h, ok := parseIdxKey(kb)
		if !ok {
			continue
		}
		mainKey := makeMainKey(h)
		mv, err := d.db.Get(d.ro, mainKey)
		if err != nil {
			return err
		}
		// a newer SeenOrAdd moved the key to a later bucket; keep it
		if mv.Exists() && decodeI64(mv.Data()) == expIdx {
			wb.Delete(mainKey)
		}
		mv.Free()

		if wb.Count() >= 5000 {
			if err := d.db.Write(d.wo, wb); err != nil {
				return err
			}
			wb.Clear()
		}
	}
	if err := it.Err(); err != nil {
		return err
	}
	if wb.Count() > 0 {
		return d.db.Write(d.wo, wb)
	}
	return nil
}

// firstBucket returns the lowest bucket that has index entries.
func (d *RocksDeduper) firstBucket() (int64, bool, error) {
	prefix := []byte("sdx:")
	it := d.db.NewIterator(d.ro)
	defer it.Close()

	it.Seek(prefix)
	if !it.ValidForPrefix(prefix) {
		return 0, false, it.Err()
	}
	k := it.Key()
	defer k.Free()
	kb := k.Data()
	if len(kb) < len(prefix)+8 {
		return 0, false, nil
	}
	return int64(binary.BigEndian.Uint64(kb[len(prefix):])), true, nil
}

func (d *RocksDeduper) loadLastCleanedBucket() error {
	val, err := d.db.Get(d.ro, metaLastCleaned)
	if err != nil {
		return err
	}
	defer val.Free()
	if !val.Exists() {
		d.lastCleanedBucket = -1
		return nil
	}
	d.lastCleanedBucket = decodeI64(val.Data())
	return nil
}

func (d *RocksDeduper) saveLastCleanedBucket() error {
	return d.db.Put(d.wo, metaLastCleaned, encodeI64(d.lastCleanedBucket))
}

func makeMainKey(h hash.Hash32) []byte {
	k := make([]byte, 0, 3+len(h))
	k = append(k, "sd:"...)
	return append(k, h[:]...)
}

func makeIdxPrefix(bucket int64) []byte {
	k := make([]byte, 0, 4+8+1)
	k = append(k, "sdx:"...)
	k = binary.BigEndian.AppendUint64(k, uint64(bucket))
	return append(k, ':')
}

func makeIdxKey(bucket int64, h hash.Hash32) []byte {
	return append(makeIdxPrefix(bucket), h[:]...)
}

func parseIdxKey(k []byte) (hash.Hash32, bool) {
	var h hash.Hash32
	if len(k) != 4+8+1+len(h) || !bytes.HasPrefix(k, []byte("sdx:")) {
		return h, false
	}
	copy(h[:], k[len(k)-len(h):])
	return h, true
}

func encodeI64(x int64) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(x))
}

func decodeI64(b []byte) int64 {
	if len(b) < 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b[:8]))
}

// DefaultPath is where cmd/processor keeps the store under baseDir.
func DefaultPath(baseDir string) string {
	return filepath.Join(baseDir, "dedup.db")
}

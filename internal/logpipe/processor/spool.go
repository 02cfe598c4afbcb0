package processor

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

type Spool interface {
	Append(partition int32, offset int64, raw []byte) error
	Close() error
}

// FileSpool is an append-only WAL of raw Kafka messages.
// record = [p:int32][off:int64][n:uint32][raw:n], big endian.
type FileSpool struct {
	mu       sync.Mutex
	f        *os.File
	w        *bufio.Writer
	syncEach bool
}

// NewFileSpool opens path for appending. With syncEach every record is flushed and fsynced.
func NewFileSpool(path string, syncEach bool) (*FileSpool, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("processor: open spool %s: %w", path, err)
	}
	return &FileSpool{f: f, w: bufio.NewWriterSize(f, 1<<20), syncEach: syncEach}, nil
}

func (s *FileSpool) Append(partition int32, offset int64, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var hdr [4 + 8 + 4]byte
	binary.BigEndian.PutUint32(hdr[0:4], uint32(partition))
	binary.BigEndian.PutUint64(hdr[4:12], uint64(offset))
	binary.BigEndian.PutUint32(hdr[12:16], uint32(len(raw)))

	if _, err := s.w.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := s.w.Write(raw); err != nil {
		return err
	}
	if !s.syncEach {
		return nil
	}
	if err := s.w.Flush(); err != nil {
		return err
	}
	return s.f.Sync()
}

func (s *FileSpool) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.w.Flush()
	return s.f.Close()
}

// SpoolRecord is one entry read back by ReadSpool.
type SpoolRecord struct {
	Partition int32
	Offset    int64
	Raw       []byte
}

// ReadSpool calls fn for every complete record in r. A torn tail record ends the scan
// without error.
func ReadSpool(r io.Reader, fn func(SpoolRecord) error) error {
	br := bufio.NewReader(r)
	var hdr [4 + 8 + 4]byte
	for {
		if _, err := io.ReadFull(br, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return err
		}
		rec := SpoolRecord{
			Partition: int32(binary.BigEndian.Uint32(hdr[0:4])),
			Offset:    int64(binary.BigEndian.Uint64(hdr[4:12])),
			Raw:       make([]byte, binary.BigEndian.Uint32(hdr[12:16])),
		}
		if _, err := io.ReadFull(br, rec.Raw); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}

type nopSpool struct{}

func (nopSpool) Append(int32, int64, []byte) error { return nil }
func (nopSpool) Close() error                      { return nil }

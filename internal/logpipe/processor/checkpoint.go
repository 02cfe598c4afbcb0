package processor

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"

	"github.com/chenzhangda16/moving-minmax/internal/logpipe/window"
)

const ckptVersion = 1

// ProcCkpt is the resume point of a processor.
type ProcCkpt struct {
	Version int    `json:"version"`
	Topic   string `json:"topic"`
	// Windows maps window name to span seconds at save time.
	Windows map[string]int64 `json:"windows"`

	// next offset to consume, per partition
	Offsets map[int32]int64 `json:"offsets"`

	LastSeq uint64 `json:"last_seq"`
	LastTs  int64  `json:"last_ts"`
}

func windowSpans(specs []window.Spec) map[string]int64 {
	m := make(map[string]int64, len(specs))
	for _, s := range specs {
		m[s.Name] = s.SpanSec()
	}
	return m
}

// Compatible explains how v differs from a run over topic with specs; reason is empty when
// it does not. fatal means the offsets belong to another topic and must not be used.
func (v ProcCkpt) Compatible(topic string, specs []window.Spec) (fatal bool, reason string) {
	if v.Topic != "" && v.Topic != topic {
		return true, fmt.Sprintf("checkpoint topic %q, consuming %q", v.Topic, topic)
	}
	if v.Windows != nil && !maps.Equal(v.Windows, windowSpans(specs)) {
		return false, fmt.Sprintf("windows changed: %v -> %v", v.Windows, windowSpans(specs))
	}
	return false, ""
}

type Checkpoint interface {
	Load() (ProcCkpt, bool, error)
	Save(ProcCkpt) error
}

// FileCheckpoint stores the checkpoint as JSON. Save writes a synced temp file in the
// same directory and renames it over the old one.
type FileCheckpoint struct {
	path string
}

func NewFileCheckpoint(path string) (*FileCheckpoint, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("processor: checkpoint dir: %w", err)
	}
	return &FileCheckpoint{path: path}, nil
}

func (c *FileCheckpoint) Load() (ProcCkpt, bool, error) {
	b, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return ProcCkpt{Offsets: map[int32]int64{}}, false, nil
	}
	if err != nil {
		return ProcCkpt{}, false, fmt.Errorf("processor: read checkpoint: %w", err)
	}

	var v ProcCkpt
	if err := json.Unmarshal(b, &v); err != nil {
		return ProcCkpt{}, false, fmt.Errorf("processor: decode checkpoint %s: %w", c.path, err)
	}
	if v.Version > ckptVersion {
		return ProcCkpt{}, false, fmt.Errorf("processor: checkpoint %s: version %d is newer than %d",
			c.path, v.Version, ckptVersion)
	}
	for p, off := range v.Offsets {
		if off < 0 {
			return ProcCkpt{}, false, fmt.Errorf("processor: checkpoint %s: p=%d off=%d", c.path, p, off)
		}
	}
	if v.Offsets == nil {
		v.Offsets = map[int32]int64{}
	}
	return v, true, nil
}

func (c *FileCheckpoint) Save(v ProcCkpt) error {
	v.Version = ckptVersion
	if v.Offsets == nil {
		v.Offsets = map[int32]int64{}
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	f, err := os.CreateTemp(filepath.Dir(c.path), filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("processor: save checkpoint: %w", err)
	}
	tmp := f.Name()
	_, err = f.Write(b)
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp, c.path)
	}
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("processor: save checkpoint: %w", err)
	}
	return nil
}

// nopCheckpoint is used when no checkpoint path is configured.
type nopCheckpoint struct{}

func (nopCheckpoint) Load() (ProcCkpt, bool, error) {
	return ProcCkpt{Offsets: map[int32]int64{}}, false, nil
}
func (nopCheckpoint) Save(ProcCkpt) error { return nil }

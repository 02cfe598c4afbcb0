package processor

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chenzhangda16/moving-minmax/internal/logpipe/window"
)

var (
	ErrNoWindows = errors.New("processor: no windows configured")
	ErrBadWindow = errors.New("processor: bad window")
)

// DefaultWindows is used when no windows file is given.
var DefaultWindows = []window.Spec{
	{Name: "1m", Span: time.Minute},
	{Name: "5m", Span: 5 * time.Minute},
	{Name: "1h", Span: time.Hour},
	{Name: "24h", Span: 24 * time.Hour},
}

type Config struct {
	Brokers string
	Group   string
	Topic   string

	// OutTopic receives window records; empty means log only.
	OutTopic string

	Windows   []window.Spec
	EmitEvery int // >0: EmitTick every N moves, else EmitOnChange
	// Warmup holds emission until the longest window has seen a full span.
	Warmup bool

	// Replay rewinds every claimed partition by the longest window span on session setup
	// so windows are rebuilt from Kafka. It cannot be combined with DedupDB.
	Replay   bool
	DedupDB  string
	DedupTTL time.Duration // default: longest window span

	SpoolPath      string
	CheckpointPath string
	CkptEvery      int
	ReadyFifo      string
}

// WindowsFile is the YAML layout read by LoadWindows.
type WindowsFile struct {
	Windows   []window.Spec `yaml:"windows"`
	EmitEvery int           `yaml:"emit_every"`
}

// LoadWindows reads a windows file. Spans use Go duration syntax ("90s", "1h").
func LoadWindows(path string) (WindowsFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return WindowsFile{}, fmt.Errorf("processor: read windows %s: %w", path, err)
	}
	var wf WindowsFile
	if err := yaml.Unmarshal(b, &wf); err != nil {
		return WindowsFile{}, fmt.Errorf("processor: parse windows %s: %w", path, err)
	}
	if err := ValidateWindows(wf.Windows); err != nil {
		return WindowsFile{}, err
	}
	if wf.EmitEvery < 0 {
		return WindowsFile{}, fmt.Errorf("processor: emit_every=%d: must be >= 0", wf.EmitEvery)
	}
	return wf, nil
}

// ValidateWindows requires at least one window, unique non-empty names and spans of
// whole seconds.
func ValidateWindows(specs []window.Spec) error {
	if len(specs) == 0 {
		return ErrNoWindows
	}
	seen := make(map[string]struct{}, len(specs))
	for i, s := range specs {
		if s.Name == "" {
			return fmt.Errorf("%w: #%d has no name", ErrBadWindow, i)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("%w: duplicate name %q", ErrBadWindow, s.Name)
		}
		seen[s.Name] = struct{}{}
		if s.Span < time.Second || s.Span%time.Second != 0 {
			return fmt.Errorf("%w: %s span=%s must be whole seconds >= 1s", ErrBadWindow, s.Name, s.Span)
		}
	}
	return nil
}

func (c *Config) applyDefaults() error {
	if c.Topic == "" || c.Group == "" || c.Brokers == "" {
		return errors.New("processor: brokers/group/topic required")
	}
	if len(c.Windows) == 0 {
		c.Windows = DefaultWindows
	}
	if err := ValidateWindows(c.Windows); err != nil {
		return err
	}
	if c.Replay && c.DedupDB != "" {
		return errors.New("processor: replay and a persistent dedup db are exclusive")
	}
	if c.DedupTTL <= 0 {
		c.DedupTTL = longestSpan(c.Windows)
	}
	if c.CkptEvery <= 0 {
		c.CkptEvery = 1000
	}
	return nil
}

func longestSpan(specs []window.Spec) time.Duration {
	var m time.Duration
	for _, s := range specs {
		m = max(m, s.Span)
	}
	return m
}

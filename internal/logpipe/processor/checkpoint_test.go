package processor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chenzhangda16/moving-minmax/internal/logpipe/out"
	"github.com/chenzhangda16/moving-minmax/internal/logpipe/window"
)

func TestFileCheckpointRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ck, err := NewFileCheckpoint(filepath.Join(dir, "processor.ckpt"))
	require.NoError(t, err)

	_, ok, err := ck.Load()
	require.NoError(t, err)
	assert.False(t, ok)

	in := ProcCkpt{Topic: "samples", Windows: map[string]int64{"1m": 60}, Offsets: map[int32]int64{3: 9}, LastSeq: 4}
	require.NoError(t, ck.Save(in))
	got, ok, err := ck.Load()
	require.NoError(t, err)
	require.True(t, ok)
	in.Version = ckptVersion
	assert.Equal(t, in, got)

	// no temp files are left next to the checkpoint
	ents, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, ents, 1)
}

func TestFileCheckpointRejects(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processor.ckpt")
	ck, err := NewFileCheckpoint(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{"version":9,"offsets":{}}`), 0o644))
	_, _, err = ck.Load()
	assert.ErrorContains(t, err, "version 9")

	require.NoError(t, os.WriteFile(path, []byte(`{"version":1,"offsets":{"0":-1}}`), 0o644))
	_, _, err = ck.Load()
	assert.ErrorContains(t, err, "off=-1")

	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o644))
	_, _, err = ck.Load()
	assert.Error(t, err)
}

func TestCheckpointCompatible(t *testing.T) {
	specs := []window.Spec{{Name: "1m", Span: time.Minute}}
	v := ProcCkpt{Topic: "samples", Windows: map[string]int64{"1m": 60}}

	fatal, reason := v.Compatible("samples", specs)
	assert.False(t, fatal)
	assert.Empty(t, reason)

	fatal, reason = v.Compatible("other", specs)
	assert.True(t, fatal)
	assert.Contains(t, reason, "other")

	fatal, reason = v.Compatible("samples", append(specs, window.Spec{Name: "1h", Span: time.Hour}))
	assert.False(t, fatal)
	assert.Contains(t, reason, "windows changed")
}

func TestCheckpointOfAnotherTopicIsIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processor.ckpt")
	ck, err := NewFileCheckpoint(path)
	require.NoError(t, err)
	require.NoError(t, ck.Save(ProcCkpt{Topic: "old", Offsets: map[int32]int64{0: 42}, LastSeq: 7}))

	cfg := testConfig(t)
	cfg.CheckpointPath = path
	p, err := NewWithDeps(cfg, Deps{Sink: &out.MemSink{}})
	require.NoError(t, err)

	sess := newFakeSession(context.Background(), "samples", 0)
	require.NoError(t, p.Handler().Setup(sess))
	assert.Empty(t, sess.resets)

	// the next save records the current topic and windows
	require.NoError(t, p.Close())
	v, ok, err := ck.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "samples", v.Topic)
	assert.Equal(t, map[string]int64{"10s": 10}, v.Windows)
	assert.Empty(t, v.Offsets)
}

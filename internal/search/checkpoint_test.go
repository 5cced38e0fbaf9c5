package search

import (
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/MolGenesis/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MolGenesis/pkg/errors"
)

func snapshotTree(t *testing.T) *Tree {
	t.Helper()
	tr := NewTree()
	children := tr.Expand(tr.Root(), []int{2, 3}, []float64{0.6, 0.4})
	tr.Backpropagate(children[0], 0.9)
	tr.Backpropagate(children[1], -1)
	return tr
}

func TestCheckpoint_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "test.ckpt")
	mgr := NewCheckpointManager(path, nil, logging.NewNopLogger())

	pcg := rand.NewPCG(7, 9)
	rng, err := pcg.MarshalBinary()
	require.NoError(t, err)

	tr := snapshotTree(t)
	snap := &Snapshot{
		RunID:       "run-1",
		Nodes:       tr.Export(),
		Elapsed:     90 * time.Second,
		Generations: 12,
		RNG:         rng,
	}
	require.NoError(t, mgr.Save(context.Background(), snap))

	loaded, err := mgr.Load()
	require.NoError(t, err)
	assert.Equal(t, "run-1", loaded.RunID)
	assert.Equal(t, 12, loaded.Generations)
	assert.Equal(t, 90*time.Second, loaded.Elapsed)
	assert.Equal(t, snap.Nodes, loaded.Nodes)

	rebuilt, err := NewTreeFromRecords(loaded.Nodes)
	require.NoError(t, err)
	assert.Equal(t, tr.Size(), rebuilt.Size())
	assert.Equal(t, tr.Visits(tr.Root()), rebuilt.Visits(rebuilt.Root()))
}

func TestCheckpoint_RestoredRNGContinuesStream(t *testing.T) {
	pcg := rand.NewPCG(11, 13)
	state, err := pcg.MarshalBinary()
	require.NoError(t, err)

	// The stream the original source would have produced from here on.
	src := rand.New(pcg)
	expected := make([]uint64, 16)
	for i := range expected {
		expected[i] = src.Uint64()
	}

	restored := rand.NewPCG(0, 0)
	require.NoError(t, restored.UnmarshalBinary(state))
	got := rand.New(restored)
	for i := range expected {
		assert.Equal(t, expected[i], got.Uint64(), "sample %d diverged", i)
	}
}

func TestCheckpoint_SaveSupersedesPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.ckpt")
	mgr := NewCheckpointManager(path, nil, logging.NewNopLogger())
	pcg := rand.NewPCG(1, 2)
	rng, err := pcg.MarshalBinary()
	require.NoError(t, err)

	tr := snapshotTree(t)
	require.NoError(t, mgr.Save(context.Background(), &Snapshot{RunID: "a", Nodes: tr.Export(), Generations: 1, RNG: rng}))
	require.NoError(t, mgr.Save(context.Background(), &Snapshot{RunID: "a", Nodes: tr.Export(), Generations: 2, RNG: rng}))

	loaded, err := mgr.Load()
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Generations)
}

func TestCheckpoint_LoadMissing(t *testing.T) {
	mgr := NewCheckpointManager(filepath.Join(t.TempDir(), "missing.ckpt"), nil, logging.NewNopLogger())
	_, err := mgr.Load()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeCheckpointNotFound))
}

func TestCheckpoint_LoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.ckpt")
	require.NoError(t, os.WriteFile(path, []byte("not a snapshot"), 0o644))

	mgr := NewCheckpointManager(path, nil, logging.NewNopLogger())
	_, err := mgr.Load()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeCheckpointCorrupt))
}

type recordingMirror struct {
	uploads []string
	err     error
}

func (m *recordingMirror) Upload(_ context.Context, localPath string) error {
	m.uploads = append(m.uploads, localPath)
	return m.err
}

func TestCheckpoint_Mirror(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.ckpt")
	mirror := &recordingMirror{}
	mgr := NewCheckpointManager(path, mirror, logging.NewNopLogger())
	pcg := rand.NewPCG(1, 2)
	rng, err := pcg.MarshalBinary()
	require.NoError(t, err)

	tr := snapshotTree(t)
	require.NoError(t, mgr.Save(context.Background(), &Snapshot{Nodes: tr.Export(), RNG: rng}))
	assert.Equal(t, []string{path}, mirror.uploads)

	// A mirror failure must not fail the save.
	mirror.err = assert.AnError
	assert.NoError(t, mgr.Save(context.Background(), &Snapshot{Nodes: tr.Export(), RNG: rng}))
}

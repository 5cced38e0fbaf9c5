package search

import (
	"context"
	"encoding/gob"
	"os"
	"path/filepath"
	"time"

	"github.com/turtacn/MolGenesis/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/MolGenesis/pkg/errors"
)

// snapshotVersion guards against loading snapshots written by an
// incompatible engine build.
const snapshotVersion = 1

// Snapshot is the full persisted search state: the reachable tree, the
// budget consumed so far and the engine's RNG state.  Restoring a Snapshot
// resumes the run exactly where it stopped, including the random stream.
type Snapshot struct {
	Version     int
	RunID       string
	SavedAt     time.Time
	Nodes       []NodeRecord
	Elapsed     time.Duration
	Generations int
	RNG         []byte
}

// Mirror uploads a written checkpoint file to secondary storage.  The
// object-storage implementation lives in internal/infrastructure/storage.
type Mirror interface {
	Upload(ctx context.Context, localPath string) error
}

// CheckpointManager persists and restores Snapshots.  Writes are atomic:
// the snapshot is written to a temporary file in the same directory and
// renamed over the target, so a crash mid-write never corrupts the previous
// checkpoint.
type CheckpointManager struct {
	path   string
	mirror Mirror
	logger logging.Logger
}

// NewCheckpointManager creates a manager writing to path.  mirror may be nil.
func NewCheckpointManager(path string, mirror Mirror, log logging.Logger) *CheckpointManager {
	return &CheckpointManager{path: path, mirror: mirror, logger: log}
}

// Path returns the checkpoint file location.
func (m *CheckpointManager) Path() string { return m.path }

// Save writes snap to disk, superseding any previous checkpoint, and mirrors
// it to object storage when configured.  A mirror failure is logged but does
// not fail the save: the local checkpoint is the source of truth.
func (m *CheckpointManager) Save(ctx context.Context, snap *Snapshot) error {
	snap.Version = snapshotVersion
	snap.SavedAt = time.Now()

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return errors.Wrap(err, errors.ErrCodeCheckpointWrite, "failed to create checkpoint directory")
	}

	tmp, err := os.CreateTemp(filepath.Dir(m.path), ".ckpt-*")
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCheckpointWrite, "failed to create temporary checkpoint file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := gob.NewEncoder(tmp).Encode(snap); err != nil {
		tmp.Close()
		return errors.Wrap(err, errors.ErrCodeCheckpointWrite, "failed to encode snapshot")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, errors.ErrCodeCheckpointWrite, "failed to sync checkpoint file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCheckpointWrite, "failed to close checkpoint file")
	}
	if err := os.Rename(tmpName, m.path); err != nil {
		return errors.Wrap(err, errors.ErrCodeCheckpointWrite, "failed to replace checkpoint file")
	}

	m.logger.Info("Checkpoint saved",
		logging.String("path", m.path),
		logging.Int("nodes", len(snap.Nodes)),
		logging.Int("generations", snap.Generations),
		logging.Duration("elapsed", snap.Elapsed),
	)

	if m.mirror != nil {
		if err := m.mirror.Upload(ctx, m.path); err != nil {
			m.logger.Warn("Checkpoint mirror upload failed", logging.Err(err))
		}
	}
	return nil
}

// Load reads and validates the checkpoint.  Structural inconsistency is
// fatal: the engine refuses to resume from a corrupt tree rather than guess
// a fix.
func (m *CheckpointManager) Load() (*Snapshot, error) {
	f, err := os.Open(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(err, errors.ErrCodeCheckpointNotFound, "checkpoint file not found").WithDetail(m.path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeCheckpointCorrupt, "failed to open checkpoint file").WithDetail(m.path)
	}
	defer f.Close()

	snap := &Snapshot{}
	if err := gob.NewDecoder(f).Decode(snap); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCheckpointCorrupt, "failed to decode snapshot").WithDetail(m.path)
	}
	if snap.Version != snapshotVersion {
		return nil, errors.New(errors.ErrCodeCheckpointCorrupt, "snapshot version mismatch").WithDetail(m.path)
	}
	if snap.Elapsed < 0 || snap.Generations < 0 {
		return nil, errors.New(errors.ErrCodeCheckpointCorrupt, "negative budget state")
	}
	if len(snap.RNG) == 0 {
		return nil, errors.New(errors.ErrCodeCheckpointCorrupt, "snapshot carries no RNG state")
	}
	if err := ValidateRecords(snap.Nodes); err != nil {
		return nil, err
	}

	m.logger.Info("Checkpoint loaded",
		logging.String("path", m.path),
		logging.Int("nodes", len(snap.Nodes)),
		logging.Int("generations", snap.Generations),
		logging.Duration("elapsed", snap.Elapsed),
	)
	return snap, nil
}

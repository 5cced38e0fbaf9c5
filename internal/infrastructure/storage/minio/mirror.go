package minio

import (
	"context"
	"path"
	"path/filepath"

	"github.com/turtacn/MolGenesis/internal/infrastructure/monitoring/logging"
)

// CheckpointMirror copies checkpoint files into object storage so a run can
// be resumed on a different host.  Objects are keyed by run id, and each
// upload overwrites the previous snapshot for that run.
type CheckpointMirror struct {
	client *Client
	runID  string
	logger logging.Logger
}

// NewCheckpointMirror scopes a mirror to one run.
func NewCheckpointMirror(client *Client, runID string, log logging.Logger) *CheckpointMirror {
	return &CheckpointMirror{client: client, runID: runID, logger: log}
}

// Upload copies the local checkpoint file to object storage.
func (m *CheckpointMirror) Upload(ctx context.Context, localPath string) error {
	object := m.objectName(localPath)
	if err := m.client.Upload(ctx, object, localPath); err != nil {
		return err
	}
	m.logger.Info("Checkpoint mirrored",
		logging.String("run_id", m.runID),
		logging.String("object", object),
	)
	return nil
}

// Fetch downloads the mirrored checkpoint for this run into localPath.
func (m *CheckpointMirror) Fetch(ctx context.Context, localPath string) error {
	return m.client.Download(ctx, m.objectName(localPath), localPath)
}

func (m *CheckpointMirror) objectName(localPath string) string {
	return path.Join("checkpoints", m.runID, filepath.Base(localPath))
}

package minio

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/turtacn/MolGenesis/internal/infrastructure/monitoring/logging"
)

func TestCheckpointMirrorObjectName(t *testing.T) {
	m := NewCheckpointMirror(&Client{bucket: "molgen"}, "run-42", logging.NewNopLogger())

	assert.Equal(t, "checkpoints/run-42/search.ckpt", m.objectName("/var/lib/molgen/search.ckpt"))
	assert.Equal(t, "checkpoints/run-42/search.ckpt", m.objectName("search.ckpt"))
}

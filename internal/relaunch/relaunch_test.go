package relaunch

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iotlab/pubsub-ops/internal/testutil"
	"github.com/iotlab/pubsub-ops/internal/testutil/fakerunner"
)

func TestRunMissingTree(t *testing.T) {
	cfg := testutil.NewMockConfig(t).GetConfig()
	relauncher := New(cfg, fakerunner.New(), testutil.NewTestLogger(t))

	err := relauncher.Run(context.Background(), "1.0.1", filepath.Join(t.TempDir(), "gone"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "working tree does not exist")
}

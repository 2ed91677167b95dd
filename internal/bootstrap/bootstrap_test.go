package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwilck/btrfs-clone/internal/btrfscmd"
	"github.com/mwilck/btrfs-clone/internal/transport"
)

func withFakeBtrfsBin(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-btrfs")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n[ \"$1 $2\" = \"subvolume delete\" ] && exec rmdir \"$3\"\nexit 0\n"), 0o755))
	orig := btrfscmd.Bin
	btrfscmd.Bin = path
	t.Cleanup(func() { btrfscmd.Bin = orig })
}

// fakeTransport materializes a directory at TargetDir/base(SourcePath)
// holding the same top-level entries as the source, standing in for
// btrfs send/receive of the bootstrap snapshot.
type fakeTransport struct {
	sourceEntries []string
}

func (f *fakeTransport) SendRecv(_ context.Context, req *transport.Request) (*transport.Result, error) {
	dest := filepath.Join(req.TargetDir, filepath.Base(req.SourcePath))
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, err
	}
	for _, name := range f.sourceEntries {
		if err := os.MkdirAll(filepath.Join(dest, name), 0o755); err != nil {
			return nil, err
		}
	}
	return &transport.Result{}, nil
}

func TestRunPromotesEntriesIntoTargetMount(t *testing.T) {
	withFakeBtrfsBin(t)
	source := t.TempDir()
	target := t.TempDir()
	ft := &fakeTransport{sourceEntries: []string{"home", "var"}}

	res, cleanup, err := Run(context.Background(), source, target, ft, true, nil)
	require.NoError(t, err)
	require.NotNil(t, cleanup)
	assert.True(t, res.Promoted)
	assert.Equal(t, target, res.TargetRoot)
	assert.DirExists(t, filepath.Join(target, "home"))
	assert.DirExists(t, filepath.Join(target, "var"))
	assert.NoDirExists(t, filepath.Join(target, res.SnapshotName))
}

func TestRunKeepsNamedSnapshotWhenPromotionDisabled(t *testing.T) {
	withFakeBtrfsBin(t)
	source := t.TempDir()
	target := t.TempDir()
	ft := &fakeTransport{sourceEntries: []string{"home"}}

	res, cleanup, err := Run(context.Background(), source, target, ft, false, nil)
	require.NoError(t, err)
	require.NotNil(t, cleanup)
	assert.False(t, res.Promoted)
	assert.Equal(t, filepath.Join(target, res.SnapshotName), res.TargetRoot)
	assert.DirExists(t, res.TargetRoot)
}

func TestRunReturnsCleanupEvenOnSendFailure(t *testing.T) {
	withFakeBtrfsBin(t)
	source := t.TempDir()
	target := t.TempDir()
	ft := &failingTransport{}

	res, cleanup, err := Run(context.Background(), source, target, ft, true, nil)
	assert.Nil(t, res)
	assert.Error(t, err)
	assert.NotNil(t, cleanup, "caller must still be able to tear down the source snapshot")
}

type failingTransport struct{}

func (failingTransport) SendRecv(context.Context, *transport.Request) (*transport.Result, error) {
	return nil, assert.AnError
}

func TestPromoteToRootMovesSameDeviceEntries(t *testing.T) {
	withFakeBtrfsBin(t)
	received := t.TempDir()
	target := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(received, "etc"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(received, "opt"), 0o755))

	require.NoError(t, promoteToRoot(received, target, nil))
	assert.DirExists(t, filepath.Join(target, "etc"))
	assert.DirExists(t, filepath.Join(target, "opt"))
}

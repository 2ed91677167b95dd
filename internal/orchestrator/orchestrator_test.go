package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwilck/btrfs-clone/internal/btrfscmd"
	"github.com/mwilck/btrfs-clone/internal/cloneprogress"
	"github.com/mwilck/btrfs-clone/internal/metrics"
	"github.com/mwilck/btrfs-clone/internal/strategy"
	"github.com/mwilck/btrfs-clone/internal/transport"
)

// withFakeBtrfsBin drives every btrfscmd-shelling call (list, show,
// property set, snapshot, delete) through a single script keyed off
// the subcommand, standing in for an actual btrfs filesystem.
func withFakeBtrfsBin(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-btrfs")
	script := `
case "$1 $2" in
"subvolume list")
	echo "ID 256 gen 10 top level 5 path root"
	;;
"subvolume show")
	cat <<'EOF'
root
	UUID:                   11111111-1111-1111-1111-111111111111
	Parent UUID:            -
	Subvolume ID:           256
	Generation:             10
	Gen at creation:        10
	Parent ID:              5
	Flags:                  -
EOF
	;;
*)
	exit 0
	;;
esac
`
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	orig := btrfscmd.Bin
	btrfscmd.Bin = path
	t.Cleanup(func() { btrfscmd.Bin = orig })
}

type fakeTransport struct{}

func (fakeTransport) SendRecv(_ context.Context, req *transport.Request) (*transport.Result, error) {
	if err := os.MkdirAll(req.TargetDir, 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(req.TargetDir, filepath.Base(req.SourcePath)), 0o755); err != nil {
		return nil, err
	}
	return &transport.Result{BytesTransferred: 42}, nil
}

type noopReporter struct{ events []cloneprogress.Event }

func (r *noopReporter) Report(e cloneprogress.Event) { r.events = append(r.events, e) }
func (r *noopReporter) Close()                       {}

func newTestOrchestrator(t *testing.T, opts Options) (*Orchestrator, *noopReporter) {
	t.Helper()
	rep := &noopReporter{}
	o := New(opts, nil, metrics.New(), rep, fakeTransport{})
	return o, rep
}

func TestRunRejectsUnsupportedStrategy(t *testing.T) {
	withFakeBtrfsBin(t)
	source, target := t.TempDir(), t.TempDir()
	o, _ := newTestOrchestrator(t, Options{
		SourceMount: source,
		TargetMount: target,
		Strategy:    strategy.Kind(99),
	})
	_, err := o.Run(context.Background(), "src-uuid", "tgt-uuid")
	assert.ErrorIs(t, err, ErrUnsupportedStrategy)
}

func TestRunRejectsPreflightConflictWithoutForce(t *testing.T) {
	withFakeBtrfsBin(t)
	source, target := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(target, "stray"), nil, 0o644))

	o, _ := newTestOrchestrator(t, Options{
		SourceMount: source,
		TargetMount: target,
		Strategy:    strategy.Parent,
	})
	_, err := o.Run(context.Background(), "src-uuid", "tgt-uuid")
	assert.ErrorContains(t, err, "pre-flight conflict")
}

func TestRunDryRunProducesPlanWithoutTransferring(t *testing.T) {
	withFakeBtrfsBin(t)
	source, target := t.TempDir(), t.TempDir()

	o, rep := newTestOrchestrator(t, Options{
		SourceMount: source,
		TargetMount: target,
		Strategy:    strategy.Parent,
		DryRun:      true,
	})
	res, err := o.Run(context.Background(), "src-uuid", "tgt-uuid")
	require.NoError(t, err)
	require.Len(t, res.Plan, 1)
	assert.Equal(t, "root", res.Plan[0].Path)
	require.Len(t, rep.events, 1)
	assert.Equal(t, cloneprogress.Skipped, rep.events[0].Status)
}

func TestStagingBaseNameHonorsSnapBaseOverride(t *testing.T) {
	o := &Orchestrator{opts: Options{SnapBase: "my-stage"}}
	assert.Equal(t, "my-stage", o.stagingBaseName())
}

func TestStagingBaseNameGeneratesRandomNameWhenUnset(t *testing.T) {
	o := &Orchestrator{opts: Options{}, log: nil}
	o = New(o.opts, nil, metrics.New(), &noopReporter{}, fakeTransport{})
	name := o.stagingBaseName()
	assert.Contains(t, name, ".btrfs-clone-")
	assert.NotEqual(t, ".btrfs-clone-staging", name)
}

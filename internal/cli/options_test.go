package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwilck/btrfs-clone/internal/strategy"
)

func TestApplyDefaultsFillsZeroValues(t *testing.T) {
	o := &Options{}
	require.NoError(t, o.ApplyDefaults())
	assert.Equal(t, "generation", o.Strategy)
	assert.Equal(t, 0, o.LogCompressLevel)
	assert.Equal(t, 10*time.Second, o.AbortWindow)
}

func TestValidateRequiresExistingDirectories(t *testing.T) {
	o := &Options{SourceMount: t.TempDir(), TargetMount: t.TempDir(), Strategy: "generation", AbortWindow: time.Second}
	assert.NoError(t, o.Validate())

	bad := &Options{SourceMount: "/does/not/exist", TargetMount: t.TempDir(), Strategy: "generation", AbortWindow: time.Second}
	assert.Error(t, bad.Validate())
}

func TestValidateRejectsUnknownStrategy(t *testing.T) {
	o := &Options{SourceMount: t.TempDir(), TargetMount: t.TempDir(), Strategy: "bogus", AbortWindow: time.Second}
	assert.Error(t, o.Validate())
}

func TestValidateRejectsNonPositiveAbortWindow(t *testing.T) {
	o := &Options{SourceMount: t.TempDir(), TargetMount: t.TempDir(), Strategy: "generation", AbortWindow: 0}
	assert.Error(t, o.Validate())
}

func TestValidateSnapBaseAllowsAlphanumDash(t *testing.T) {
	o := &Options{SourceMount: t.TempDir(), TargetMount: t.TempDir(), Strategy: "generation", AbortWindow: time.Second, SnapBase: "my-stage_1.0"}
	assert.NoError(t, o.Validate())

	o.SnapBase = "bad/slash"
	assert.Error(t, o.Validate())
}

func TestStrategyKindParsesValidatedField(t *testing.T) {
	o := &Options{Strategy: "snapshot"}
	assert.Equal(t, strategy.Snapshot, o.StrategyKind())
}

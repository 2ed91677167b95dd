package envconst

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadUsesDefaultsWhenUnset(t *testing.T) {
	tun, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0, tun.DeleteMaxBatchSize)
	assert.Equal(t, 12, tun.RandomTokenLength)
	assert.Equal(t, 10*time.Second, tun.AbortWindow)
}

func TestLoadHonorsOverrides(t *testing.T) {
	t.Setenv("BTRFS_CLONE_DELETE_MAX_BATCH_SIZE", "50")
	t.Setenv("BTRFS_CLONE_RANDOM_TOKEN_LENGTH", "16")
	t.Setenv("BTRFS_CLONE_FORCE_ABORT_WINDOW", "30s")

	tun, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 50, tun.DeleteMaxBatchSize)
	assert.Equal(t, 16, tun.RandomTokenLength)
	assert.Equal(t, 30*time.Second, tun.AbortWindow)
}

func TestLoadReturnsErrorOnMalformedValue(t *testing.T) {
	t.Setenv("BTRFS_CLONE_RANDOM_TOKEN_LENGTH", "not-a-number")
	_, err := Load()
	assert.Error(t, err)
}

func TestMustLoadPanicsOnMalformedEnvironment(t *testing.T) {
	t.Setenv("BTRFS_CLONE_RANDOM_TOKEN_LENGTH", "not-a-number")
	assert.Panics(t, func() { MustLoad() })
}

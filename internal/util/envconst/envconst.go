// Package envconst resolves internal tuning knobs from the
// environment, generalizing zrepl's internal/util/envconst (which
// offered ad hoc envconst.Int/String helpers) into a single
// struct-tag based loader built on caarlos0/env.
package envconst

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Tunables are internal knobs not exposed as CLI flags: test hooks and
// escape valves for behavior that should never need end-user tuning
// but has, historically, needed exactly that (e.g. zrepl's
// ZREPL_DESTROY_MAX_BATCH_SIZE).
type Tunables struct {
	// DeleteMaxBatchSize is read from BTRFS_CLONE_DELETE_MAX_BATCH_SIZE.
	// internal/btrfscmd.BatchDelete does not read it; it splits a batch
	// only on E2BIG.
	DeleteMaxBatchSize int `env:"BTRFS_CLONE_DELETE_MAX_BATCH_SIZE" envDefault:"0"`
	// RandomTokenLength is read from BTRFS_CLONE_RANDOM_TOKEN_LENGTH.
	// Callers of internal/subvolume.RandomToken pass a fixed length of
	// 12 and do not read it.
	RandomTokenLength int `env:"BTRFS_CLONE_RANDOM_TOKEN_LENGTH" envDefault:"12"`
	// AbortWindow is read from BTRFS_CLONE_FORCE_ABORT_WINDOW. The
	// --force wait comes from cli.Options.AbortWindow, not from here.
	AbortWindow time.Duration `env:"BTRFS_CLONE_FORCE_ABORT_WINDOW" envDefault:"10s"`
}

// Load resolves Tunables from the environment, falling back to the
// struct tag defaults above.
func Load() (*Tunables, error) {
	t := &Tunables{}
	if err := env.Parse(t); err != nil {
		return nil, err
	}
	return t, nil
}

// MustLoad is Load but panics on a malformed environment, for use at
// package init/var time the way zrepl's envconst helpers were used
// inline.
func MustLoad() *Tunables {
	t, err := Load()
	if err != nil {
		panic(err)
	}
	return t
}

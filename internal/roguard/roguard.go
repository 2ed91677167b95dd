// Package roguard implements the Read-Only Guard (spec §4.6): forces
// every source subvolume read-only for the duration of cloning and
// restores original state on every exit path.
package roguard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/mwilck/btrfs-clone/internal/subvolume"
	"github.com/mwilck/btrfs-clone/internal/util/chainlock"
)

// Setter flips a subvolume's read-only property; the default
// implementation is internal/btrfscmd.SetReadOnly.
type Setter func(ctx context.Context, path string, ro bool) error

// Guard holds the scoped acquisition described in spec §4.6.
type Guard struct {
	sourceMount string
	set         Setter
	log         *slog.Logger

	// acquired records, in acquisition order, every subvolume this
	// Guard flipped to read-only so Release can revert them in reverse
	// order. mtx guards it so that Release is safe against a concurrent
	// second caller; in this tree only the orchestrator's cleanup stack
	// calls Release.
	mtx      chainlock.L
	acquired []*subvolume.Subvolume
}

// Acquire sets every subvolume whose RO field is false to read-only on
// SOURCE. If any underlying operation fails, Acquire propagates the
// error after releasing everything it had already flipped, so a
// failed Acquire leaves no subvolume stuck read-only.
func Acquire(ctx context.Context, sourceMount string, subvols []*subvolume.Subvolume, set Setter, log *slog.Logger) (*Guard, error) {
	if log == nil {
		log = slog.Default()
	}
	g := &Guard{sourceMount: sourceMount, set: set, log: log}
	for _, sv := range subvols {
		if sv.RO {
			continue
		}
		path := filepath.Join(sourceMount, sv.Path)
		if err := set(ctx, path, true); err != nil {
			g.Release(ctx)
			return nil, fmt.Errorf("set %s read-only: %w", sv.Path, err)
		}
		g.mtx.HoldWhile(func() { g.acquired = append(g.acquired, sv) })
	}
	return g, nil
}

// Release reverts every subvolume Acquire flipped, in reverse order.
// Errors are logged but do not stop the release of the remaining
// subvolumes (spec §4.6, §7 "Read-only-restore error: non-fatal").
func (g *Guard) Release(ctx context.Context) error {
	defer g.mtx.Lock().Unlock()

	var errs []error
	for i := len(g.acquired) - 1; i >= 0; i-- {
		sv := g.acquired[i]
		path := filepath.Join(g.sourceMount, sv.Path)
		if err := g.set(ctx, path, false); err != nil {
			g.log.Error("failed to restore read-write", slog.String("path", sv.Path), slog.Any("err", err))
			errs = append(errs, fmt.Errorf("%s: %w", sv.Path, err))
		}
	}
	g.acquired = nil
	return errors.Join(errs...)
}

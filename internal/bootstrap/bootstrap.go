// Package bootstrap implements the Root Snapshot Bootstrap (spec
// §4.5): the FS forbids sending the top-of-filesystem directly, so it
// must first be snapshotted, sent, and either promoted into the
// target root or kept as a named subvolume.
package bootstrap

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/mwilck/btrfs-clone/internal/btrfscmd"
	"github.com/mwilck/btrfs-clone/internal/subvolume"
	"github.com/mwilck/btrfs-clone/internal/transport"
)

// Result reports where subsequent strategy runs should operate.
type Result struct {
	// TargetRoot is the directory subsequent strategies should treat as
	// TARGET's tree-by-id root: either the promoted target mount itself,
	// or the still-named received snapshot when promotion is disabled.
	TargetRoot string
	// SnapshotName is the random name given to the bootstrap snapshot,
	// reported to the user when promotion is disabled (spec §4.5 step
	// 6).
	SnapshotName string
	// Promoted is true if the snapshot's contents were moved into the
	// target mount and the snapshot itself deleted.
	Promoted bool
}

// Cleanup removes the bootstrap snapshot from SOURCE; callers register
// it with the orchestrator's cleanup stack immediately after Run's
// first step succeeds (spec §4.5 step 2, §5 "registered-on-exit
// handlers").
type Cleanup func(ctx context.Context) error

// Run executes spec §4.5 steps 1-6 and returns the Cleanup for step 2
// alongside the Result, even on failure after the snapshot was
// created, so the caller can still tear it down.
func Run(ctx context.Context, sourceMount, targetMount string, t transport.Transport, promote bool, log *slog.Logger) (*Result, Cleanup, error) {
	if log == nil {
		log = slog.Default()
	}

	token, err := subvolume.RandomToken(12)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: %w", err)
	}
	snapName := ".btrfs-clone-root-" + token
	snapPath := filepath.Join(sourceMount, snapName)

	if err := btrfscmd.CreateSnapshot(ctx, sourceMount, snapPath, true); err != nil {
		return nil, nil, fmt.Errorf("bootstrap: snapshot top-of-filesystem: %w", err)
	}
	cleanup := func(ctx context.Context) error {
		return btrfscmd.DeleteSubvolume(ctx, snapPath)
	}

	if _, err := t.SendRecv(ctx, &transport.Request{
		SourcePath: snapPath,
		TargetDir:  targetMount,
	}); err != nil {
		return nil, cleanup, fmt.Errorf("bootstrap: send root snapshot: %w", err)
	}

	received := filepath.Join(targetMount, snapName)
	if err := btrfscmd.SetReadOnly(ctx, received, false); err != nil {
		return nil, cleanup, fmt.Errorf("bootstrap: flip received root snapshot read-write: %w", err)
	}

	if !promote {
		log.Info("keeping bootstrap snapshot as named subvolume", slog.String("name", snapName))
		return &Result{TargetRoot: received, SnapshotName: snapName, Promoted: false}, cleanup, nil
	}

	if err := promoteToRoot(received, targetMount, log); err != nil {
		return nil, cleanup, fmt.Errorf("bootstrap: promote: %w", err)
	}
	if err := btrfscmd.DeleteSubvolume(ctx, received); err != nil {
		log.Error("failed to delete emptied bootstrap snapshot after promotion", slog.Any("err", err))
	}

	return &Result{TargetRoot: targetMount, SnapshotName: snapName, Promoted: true}, cleanup, nil
}

// promoteToRoot moves every entry of received that lives on the same
// device as received itself into targetMount, skipping entries on a
// different device (nested mounts), per spec §4.5 step 5.
func promoteToRoot(received, targetMount string, log *slog.Logger) error {
	topInfo, err := os.Stat(received)
	if err != nil {
		return fmt.Errorf("stat received snapshot: %w", err)
	}
	topDev := deviceOf(topInfo)

	entries, err := os.ReadDir(received)
	if err != nil {
		return fmt.Errorf("read received snapshot: %w", err)
	}

	// Top-level entries share no on-disk dependency (promotion only ever
	// operates one level below the snapshot root), so they move
	// concurrently, the same per-item errgroup.Go fan-out
	// replication_logic.go uses for its sender/receiver round trips.
	var g errgroup.Group
	for _, e := range entries {
		e := e
		src := filepath.Join(received, e.Name())
		info, err := e.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", src, err)
		}
		if deviceOf(info) != topDev {
			log.Info("skipping nested mount during promotion", slog.String("path", e.Name()))
			continue
		}
		dst := filepath.Join(targetMount, e.Name())
		g.Go(func() error {
			if err := btrfscmd.Move(src, dst); err != nil {
				return fmt.Errorf("promote %s: %w", e.Name(), err)
			}
			return nil
		})
	}
	return g.Wait()
}

// deviceOf returns the device number backing info, used to tell a
// nested mount (different device) from the bootstrap snapshot's own
// device during promotion.
func deviceOf(info fs.FileInfo) uint64 {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0
	}
	return uint64(st.Dev)
}

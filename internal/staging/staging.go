// Package staging implements the Flat Staging Area (spec §4.4): a
// temporary directory under TARGET that decouples the order
// subvolumes are received in from their identifier-tree position,
// reassembling the tree once every subvolume has landed in its
// bucket.
package staging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/mwilck/btrfs-clone/internal/btrfscmd"
	"github.com/mwilck/btrfs-clone/internal/subvolume"
	"github.com/mwilck/btrfs-clone/internal/transport"
)

// Area is a Flat Staging Area rooted at Root, reassembling into
// TargetMount.
type Area struct {
	Root        string // e.g. /target/.btrfs-clone-<token>
	TargetMount string

	// Stranded collects subvolumes Commit could not place because their
	// parent_id was never placed (spec §4.4 step 3: "non-fatal").
	Stranded []*subvolume.Subvolume

	log *slog.Logger
}

// New creates the staging root directory under targetMount named
// baseName (random or user-supplied via --snap-base).
func New(ctx context.Context, targetMount, baseName string, log *slog.Logger) (*Area, error) {
	root := filepath.Join(targetMount, baseName)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create staging root %s: %w", root, err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Area{Root: root, TargetMount: targetMount, log: log}, nil
}

// BucketDir returns the per-subvolume bucket directory for id.
func (a *Area) BucketDir(id uint64) string {
	return filepath.Join(a.Root, strconv.FormatUint(id, 10))
}

// Send receives sv into its bucket via t, using parent/cloneSources
// (already-resolved TARGET paths). Idempotent: if the bucket already
// holds a received subvolume, the send is skipped, supporting dry-run
// and resume-after-error (spec §4.4 "send").
func (a *Area) Send(ctx context.Context, t transport.Transport, sv *subvolume.Subvolume, parent string, cloneSources []string, logw io.Writer) (*transport.Result, error) {
	bucket := a.BucketDir(sv.ID)
	if err := os.MkdirAll(bucket, 0o755); err != nil {
		return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
	}

	dest := filepath.Join(bucket, filepath.Base(sv.Path))
	if _, err := os.Stat(dest); err == nil {
		a.log.Info("bucket already populated, skipping send", slog.String("path", sv.Path))
		return &transport.Result{}, nil
	}

	best, sources := transport.BuildFlags(cloneSources, parent)
	req := &transport.Request{
		SourcePath:   sv.Path,
		TargetDir:    bucket,
		Parent:       best,
		CloneSources: sources,
		Log:          logw,
	}

	res, err := t.SendRecv(ctx, req)
	if err != nil {
		return nil, err
	}

	if !sv.RO {
		if err := btrfscmd.SetReadOnly(ctx, dest, false); err != nil {
			return res, fmt.Errorf("flip %s read-write: %w", dest, err)
		}
	}
	return res, nil
}

// Commit reassembles the tree-by-id on TARGET and removes the staging
// root (spec §4.4 "commit"). It is invoked once, on clean shutdown.
func (a *Area) Commit(ctx context.Context, subvols []*subvolume.Subvolume) error {
	sorted := make([]*subvolume.Subvolume, len(subvols))
	copy(sorted, subvols)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ParentID != sorted[j].ParentID {
			return sorted[i].ParentID < sorted[j].ParentID
		}
		return sorted[i].ID < sorted[j].ID
	})

	done := make(map[uint64]struct{}, len(sorted))
	var errs []error
	for _, s := range sorted {
		if s.ParentID == subvolume.TopLevelID {
			// placed directly, no dependency
		} else if _, ok := done[s.ParentID]; !ok {
			a.Stranded = append(a.Stranded, s)
			continue
		}

		if err := a.move(ctx, s); err != nil {
			a.log.Error("failed to commit subvolume, continuing with the rest", slog.String("path", s.Path), slog.Any("err", err))
			errs = append(errs, fmt.Errorf("commit %s: %w", s.Path, err))
			continue
		}
		done[s.ID] = struct{}{}
	}

	if err := os.RemoveAll(a.Root); err != nil {
		a.log.Warn("failed to remove staging root", slog.String("root", a.Root), slog.Any("err", err))
	}
	return errors.Join(errs...)
}

func (a *Area) move(ctx context.Context, s *subvolume.Subvolume) error {
	cur := filepath.Join(a.BucketDir(s.ID), filepath.Base(s.Path))
	goal := filepath.Join(a.TargetMount, s.Path)

	if err := os.MkdirAll(filepath.Dir(goal), 0o755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", goal, err)
	}

	flippedRW := false
	if s.RO {
		if err := btrfscmd.SetReadOnly(ctx, cur, false); err != nil {
			return fmt.Errorf("flip %s read-write for move: %w", cur, err)
		}
		flippedRW = true
	}

	moveErr := btrfscmd.Move(cur, goal)

	restoreTarget := cur
	if moveErr == nil {
		restoreTarget = goal
	}
	if flippedRW {
		if err := btrfscmd.SetReadOnly(ctx, restoreTarget, true); err != nil {
			a.log.Error("failed to restore read-only after move", slog.String("path", restoreTarget), slog.Any("err", err))
		}
	}

	switch {
	case moveErr == nil:
	case errors.Is(moveErr, btrfscmd.ErrAlreadyExists):
		// destination already exists -> success no-op (spec §7)
	default:
		return moveErr
	}

	if err := os.Remove(a.BucketDir(s.ID)); err != nil {
		a.log.Warn("failed to remove empty bucket", slog.Uint64("id", s.ID), slog.Any("err", err))
	}
	return nil
}

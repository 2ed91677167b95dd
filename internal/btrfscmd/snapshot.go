package btrfscmd

import "context"

// CreateSnapshot creates a snapshot of src at dst, used by
// internal/bootstrap to snapshot the unsendable top-of-filesystem
// (spec §4.5 step 1).
func CreateSnapshot(ctx context.Context, src, dst string, readonly bool) error {
	args := []string{"subvolume", "snapshot"}
	if readonly {
		args = append(args, "-r")
	}
	args = append(args, src, dst)
	_, err := Run(ctx, args...)
	return err
}

// DeleteSubvolume removes the subvolume at path, used to clean up the
// bootstrap snapshot (spec §4.5 step 2) and stray staging leftovers.
func DeleteSubvolume(ctx context.Context, path string) error {
	_, err := Run(ctx, "subvolume", "delete", path)
	return err
}

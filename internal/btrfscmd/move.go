package btrfscmd

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// ErrAlreadyExists is returned by Move when dst already exists, which
// the Flat Staging Area's commit phase treats as an idempotent no-op
// (spec §4.4 step 3, §7 "destination already exists -> success no-op"
// for resume-after-error).
var ErrAlreadyExists = errors.New("destination already exists")

// Move renames the subvolume at src to dst using renameat2(2) with
// RENAME_NOREPLACE, which performs a subvolume-preserving rename (not
// a copy) and atomically detects a pre-existing destination instead
// of racing a stat-then-rename check (spec §4.4 step 4, design notes
// "Cross-device move in staging commit").
func Move(src, dst string) error {
	err := unix.Renameat2(unix.AT_FDCWD, src, unix.AT_FDCWD, dst, unix.RENAME_NOREPLACE)
	if err == nil {
		return nil
	}
	if errors.Is(err, unix.EEXIST) {
		return ErrAlreadyExists
	}
	if errors.Is(err, unix.EXDEV) {
		return fmt.Errorf("move %s -> %s: source and destination are on different btrfs filesystems, cannot preserve subvolume identity: %w", src, dst, err)
	}
	return &os.LinkError{Op: "renameat2", Old: src, New: dst, Err: err}
}

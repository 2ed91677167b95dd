// Package mountns implements the root-mount provider external
// interface (spec §6): given a user-supplied mount point, unshare the
// process's mount namespace and mount the underlying FS's
// top-of-filesystem subvolume under a fresh private directory, so the
// Orchestrator can operate on subvolume id 5 without disturbing the
// caller's own mount table.
package mountns

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Mount describes one process-private top-of-filesystem mount.
type Mount struct {
	// FSUUID is the underlying FS's filesystem UUID, used by the
	// Orchestrator's pre-flight check to detect source == target.
	FSUUID string
	// Path is the temporary directory the top-of-filesystem was mounted
	// at.
	Path string

	device string
}

// Provider produces (fs_uuid, top_mount_path) pairs for a
// user-supplied mount point (spec §6 "Root-mount provider").
type Provider interface {
	Mount(userPath string) (*Mount, error)
}

// Unshare puts the calling goroutine's OS thread into a new mount
// namespace. Callers must have already locked the goroutine to its OS
// thread (runtime.LockOSThread) before invoking this, since mount
// namespaces are per-thread in Linux.
func Unshare() error {
	if err := unix.Unshare(unix.CLONE_NEWNS); err != nil {
		return fmt.Errorf("unshare mount namespace: %w", err)
	}
	// Make the root of the new namespace private so that the
	// top-of-filesystem mounts made by Mount don't propagate back to the
	// parent namespace (spec §5 "process-private").
	if err := unix.Mount("", "/", "", unix.MS_PRIVATE|unix.MS_REC, ""); err != nil {
		return fmt.Errorf("make mount tree private: %w", err)
	}
	return nil
}

// real implements Provider against the live kernel.
type real struct {
	uuidOf func(device string) (string, error)
	topID  func(mount string) (device string, err error)
}

// NewProvider returns the Provider used outside of tests.
func NewProvider() Provider {
	return &real{uuidOf: blkidUUID, topID: sourceDevice}
}

// Mount mounts the top-of-filesystem subvolume (subvolid=5) of
// userPath's underlying device at a fresh temporary directory.
func (r *real) Mount(userPath string) (*Mount, error) {
	device, err := r.topID(userPath)
	if err != nil {
		return nil, fmt.Errorf("resolve device for %s: %w", userPath, err)
	}
	fsUUID, err := r.uuidOf(device)
	if err != nil {
		return nil, fmt.Errorf("resolve filesystem uuid for %s: %w", device, err)
	}

	dir, err := os.MkdirTemp("", "btrfs-clone-root-")
	if err != nil {
		return nil, fmt.Errorf("create mount point: %w", err)
	}

	if err := unix.Mount(device, dir, "btrfs", 0, "subvolid=5"); err != nil {
		_ = os.Remove(dir)
		return nil, fmt.Errorf("mount top-of-filesystem: %w", err)
	}

	return &Mount{FSUUID: fsUUID, Path: dir, device: device}, nil
}

// Close unmounts and removes the temporary directory. It is
// idempotent and safe to register directly as a cleanup handler.
func (m *Mount) Close() error {
	if m == nil || m.Path == "" {
		return nil
	}
	if err := unix.Unmount(m.Path, unix.MNT_DETACH); err != nil && err != unix.EINVAL {
		return fmt.Errorf("unmount %s: %w", m.Path, err)
	}
	if err := os.Remove(m.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove mount point %s: %w", m.Path, err)
	}
	return nil
}

package btrfscmd

import "context"

// SetReadOnly toggles the read-only property of the subvolume at
// path, backing internal/roguard's acquire/release and the Flat
// Staging Area's pre-move read-write window (spec §4.4 step 4, §4.6).
func SetReadOnly(ctx context.Context, path string, ro bool) error {
	val := "false"
	if ro {
		val = "true"
	}
	_, err := Run(ctx, "property", "set", "-ts", path, "ro", val)
	return err
}

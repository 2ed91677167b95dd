package subvolume

import (
	"context"
	"fmt"
	"sort"
)

// Lister produces the raw per-subvolume records for a mount. The
// default implementation shells out to btrfs(8)
// (internal/btrfscmd.ListSubvolumes); tests supply a fake.
type Lister func(ctx context.Context, mount string) ([]*Subvolume, error)

// Enumerate produces the full set of source subvolumes ordered by
// OGen ascending (spec §4.1's stable initial order), failing the
// whole enumeration if any record fails Validate or repeats another
// record's id or uuid. Whether every parent_id exists in the set, and
// how snapshot ogens order against their parents, is not checked.
func Enumerate(ctx context.Context, mount string, list Lister) ([]*Subvolume, error) {
	subvols, err := list(ctx, mount)
	if err != nil {
		return nil, fmt.Errorf("enumerate subvolumes: %w", err)
	}

	seenID := make(map[uint64]struct{}, len(subvols))
	seenUUID := make(map[string]struct{}, len(subvols))
	for _, sv := range subvols {
		if err := sv.Validate(); err != nil {
			return nil, fmt.Errorf("enumerate subvolumes: %w", err)
		}
		if _, dup := seenID[sv.ID]; dup {
			return nil, fmt.Errorf("enumerate subvolumes: duplicate id %d", sv.ID)
		}
		seenID[sv.ID] = struct{}{}
		key := sv.UUID.String()
		if _, dup := seenUUID[key]; dup {
			return nil, fmt.Errorf("enumerate subvolumes: duplicate uuid %s", key)
		}
		seenUUID[key] = struct{}{}
	}

	sort.SliceStable(subvols, func(i, j int) bool {
		return subvols[i].OGen < subvols[j].OGen
	})
	return subvols, nil
}

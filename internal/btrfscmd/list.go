package btrfscmd

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/mwilck/btrfs-clone/internal/subvolume"
)

// listLineRE matches a single line of `btrfs subvolume list -a -q`
// output: "ID 261 gen 1234 top level 5 path some/nested/subvol".
var listLineRE = regexp.MustCompile(`^ID (\d+) gen (\d+) top level (\d+) path (.+)$`)

// ListSubvolumes enumerates every subvolume under mount (expected to
// be the top-of-filesystem) by combining `btrfs subvolume list` with
// one `btrfs subvolume show` per entry, satisfying spec §4.1: a record
// per subvolume, parsing failures on individual list lines skipped,
// missing required show fields fail enumeration entirely.
func ListSubvolumes(ctx context.Context, mount string) ([]*subvolume.Subvolume, error) {
	out, err := Run(ctx, "subvolume", "list", "-a", "-q", mount)
	if err != nil {
		return nil, fmt.Errorf("list subvolumes under %s: %w", mount, err)
	}

	type entry struct {
		id   uint64
		path string
	}
	var entries []entry
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m := listLineRE.FindStringSubmatch(line)
		if m == nil {
			continue // malformed line, skip per spec §4.1
		}
		id, err := strconv.ParseUint(m[1], 10, 64)
		if err != nil {
			continue
		}
		entries = append(entries, entry{id: id, path: m[4]})
	}

	subvols := make([]*subvolume.Subvolume, 0, len(entries))
	for _, e := range entries {
		abs := filepath.Join(mount, e.path)
		block, err := Run(ctx, "subvolume", "show", abs)
		if err != nil {
			return nil, fmt.Errorf("show subvolume %s: %w", e.path, err)
		}
		sv, err := parseShow(e.path, block)
		if err != nil {
			return nil, err
		}
		if sv.ID != e.id {
			return nil, fmt.Errorf("subvolume %s: id mismatch between list (%d) and show (%d)", e.path, e.id, sv.ID)
		}
		subvols = append(subvols, sv)
	}
	return subvols, nil
}

package strategy

import (
	"github.com/google/uuid"

	"github.com/mwilck/btrfs-clone/internal/subvolume"
)

func mk(path string, id, ogen, gen uint64, parent uuid.UUID) *subvolume.Subvolume {
	return &subvolume.Subvolume{
		Path:       path,
		ID:         id,
		UUID:       uuid.New(),
		ParentUUID: parent,
		Gen:        gen,
		OGen:       ogen,
	}
}

// fanOutTree builds: A (root, ogen 1) -> B, C, D (children of A, ogen
// 2, 3, 4), D -> E (grandchild, ogen 5). All are static snapshots
// (gen == ogen) except where a test overrides Gen directly.
func fanOutTree() (a, b, c, d, e *subvolume.Subvolume, subvols []*subvolume.Subvolume) {
	a = mk("A", 10, 1, 1, uuid.Nil)
	b = mk("B", 11, 2, 2, a.UUID)
	c = mk("C", 12, 3, 3, a.UUID)
	d = mk("D", 13, 4, 4, a.UUID)
	e = mk("E", 14, 5, 5, d.UUID)
	subvols = []*subvolume.Subvolume{a, b, c, d, e}
	return
}

func pathsOf(subvols []*subvolume.Subvolume) []string {
	out := make([]string, len(subvols))
	for i, sv := range subvols {
		out[i] = sv.Path
	}
	return out
}

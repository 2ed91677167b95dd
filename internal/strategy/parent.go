package strategy

import (
	"sort"

	"github.com/mwilck/btrfs-clone/internal/graph"
	"github.com/mwilck/btrfs-clone/internal/subvolume"
)

// parentStrategy implements spec §4.7.1: the direct UUID-parent is
// both send-parent and sole "primary" clone source, with every more
// distant ancestor added as an extra clone source.
//
// Spec §4.7.1 leaves PARENT's staging behavior as an explicit open
// question ("implementations should either also route PARENT through
// the flat staging area or document the failure mode"): receiving
// straight into the final tree-by-id position only works when the
// parent directory already exists, which (ogen, id) order does not
// guarantee whenever parent_id diverges from parent_uuid. This
// implementation resolves the question by routing PARENT through the
// Flat Staging Area like every other strategy (see DESIGN.md), so a
// not-yet-placed parent directory never causes a receive failure.
type parentStrategy struct{}

func byOgenID(subvols []*subvolume.Subvolume) []*subvolume.Subvolume {
	sorted := make([]*subvolume.Subvolume, len(subvols))
	copy(sorted, subvols)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].OGen != sorted[j].OGen {
			return sorted[i].OGen < sorted[j].OGen
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

func (parentStrategy) Order(subvols []*subvolume.Subvolume, g *graph.Graph) []*subvolume.Subvolume {
	return byOgenID(subvols)
}

func (parentStrategy) Select(s *subvolume.Subvolume, done []*subvolume.Subvolume, g *graph.Graph) Decision {
	ancestors := g.ParentsSlice(s)
	var best *subvolume.Subvolume
	if len(ancestors) > 0 {
		best = ancestors[0]
	}
	return Decision{Best: best, CloneSources: ancestors, Reason: "direct parent"}
}

func (parentStrategy) StagesViaFlatDir() bool { return true }

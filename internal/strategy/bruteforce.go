package strategy

import (
	"github.com/mwilck/btrfs-clone/internal/graph"
	"github.com/mwilck/btrfs-clone/internal/subvolume"
)

// bruteforceStrategy implements spec §4.7.2: widest possible
// clone-source set (every lineage-connected relative older than s),
// at the cost of a larger send-side working set.
type bruteforceStrategy struct{}

func (bruteforceStrategy) Order(subvols []*subvolume.Subvolume, g *graph.Graph) []*subvolume.Subvolume {
	return byOgenID(subvols)
}

func (bruteforceStrategy) Select(s *subvolume.Subvolume, done []*subvolume.Subvolume, g *graph.Graph) Decision {
	var best *subvolume.Subvolume
	if s.HasParentUUID() {
		best, _ = g.Get(s.ParentUUID)
	}

	var sources []*subvolume.Subvolume
	for _, y := range g.Relatives(s) {
		if y.OGen < s.OGen {
			sources = append(sources, y)
		}
	}
	return Decision{Best: best, CloneSources: sources, Reason: "relatives older than s"}
}

func (bruteforceStrategy) StagesViaFlatDir() bool { return true }

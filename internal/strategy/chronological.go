package strategy

import (
	"sort"

	"github.com/google/uuid"

	"github.com/mwilck/btrfs-clone/internal/graph"
	"github.com/mwilck/btrfs-clone/internal/subvolume"
)

// chronologicalStrategy implements spec §4.7.4: the same roots-then-
// depth-first shape as SNAPSHOT, but children are visited oldest
// first and a node is only finalized (and appended to the transfer
// order) once its entire subtree has been, so that it can use its own
// youngest child as a reference. This is why the root of a lineage
// ends up last in the order, appearing on TARGET as a read-write
// snapshot of its youngest child (spec §4.7.4 note).
type chronologicalStrategy struct {
	decisions map[uuid.UUID]Decision
	order     []*subvolume.Subvolume
}

func childrenAsc(g *graph.Graph, node *subvolume.Subvolume) []*subvolume.Subvolume {
	children := g.Children(node)
	sorted := make([]*subvolume.Subvolume, len(children))
	copy(sorted, children)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].OGen != sorted[j].OGen {
			return sorted[i].OGen < sorted[j].OGen
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

func (s *chronologicalStrategy) Order(subvols []*subvolume.Subvolume, g *graph.Graph) []*subvolume.Subvolume {
	s.decisions = make(map[uuid.UUID]Decision)
	s.order = nil

	for _, r := range byOgenID(g.Roots(subvols)) {
		s.process(g, r, nil)
	}
	return s.order
}

// process finalizes node's entire subtree (post-order) before node
// itself, then records node's decision using inheritedParent (the
// reference passed down from whoever is processing node's siblings)
// and prev (the last of node's own children it just finalized).
func (s *chronologicalStrategy) process(g *graph.Graph, node *subvolume.Subvolume, inheritedParent *subvolume.Subvolume) {
	var prev *subvolume.Subvolume
	for _, c := range childrenAsc(g, node) {
		parentForChild := prev
		if parentForChild == nil {
			parentForChild = inheritedParent
		}
		s.process(g, c, parentForChild)
		prev = c
	}

	s.decisions[node.UUID] = chronologicalDecision(inheritedParent, prev)
	s.order = append(s.order, node)
}

func chronologicalDecision(parent, prev *subvolume.Subvolume) Decision {
	switch {
	case parent != nil:
		sources := []*subvolume.Subvolume{parent}
		if prev != nil {
			sources = append(sources, prev)
		}
		return Decision{Best: parent, CloneSources: sources, Reason: "inherited parent"}
	case prev != nil:
		return Decision{Best: prev, CloneSources: []*subvolume.Subvolume{prev}, Reason: "youngest child"}
	default:
		return Decision{Reason: "no relatives sent yet"}
	}
}

func (s *chronologicalStrategy) Select(sv *subvolume.Subvolume, done []*subvolume.Subvolume, g *graph.Graph) Decision {
	return s.decisions[sv.UUID]
}

func (s *chronologicalStrategy) StagesViaFlatDir() bool { return true }

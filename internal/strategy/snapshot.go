package strategy

import (
	"sort"

	"github.com/google/uuid"

	"github.com/mwilck/btrfs-clone/internal/graph"
	"github.com/mwilck/btrfs-clone/internal/subvolume"
)

// snapshotStrategy implements spec §4.7.3: roots first, then a
// depth-first descent where each level is visited newest-child-first,
// chaining each child off the previously sent sibling (or the parent,
// for the first child). The whole plan is computed once in Order and
// replayed by Select, since the decision for a node depends on
// traversal state (the previous sibling), not merely on the "done"
// set.
type snapshotStrategy struct {
	decisions map[uuid.UUID]Decision
}

func childrenDesc(g *graph.Graph, node *subvolume.Subvolume) []*subvolume.Subvolume {
	children := g.Children(node)
	sorted := make([]*subvolume.Subvolume, len(children))
	copy(sorted, children)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].OGen != sorted[j].OGen {
			return sorted[i].OGen > sorted[j].OGen
		}
		return sorted[i].ID > sorted[j].ID
	})
	return sorted
}

func (s *snapshotStrategy) Order(subvols []*subvolume.Subvolume, g *graph.Graph) []*subvolume.Subvolume {
	s.decisions = make(map[uuid.UUID]Decision)
	var order []*subvolume.Subvolume

	roots := byOgenID(g.Roots(subvols))
	for _, r := range roots {
		s.decisions[r.UUID] = Decision{Reason: "root"}
		order = append(order, r)
		order = s.walk(g, r, order)
	}
	return order
}

// walk sends node's children newest-first, chaining each one off the
// previously sent sibling (or node itself for the first child), then
// recurses into each child's own children before moving to the next
// sibling.
func (s *snapshotStrategy) walk(g *graph.Graph, node *subvolume.Subvolume, order []*subvolume.Subvolume) []*subvolume.Subvolume {
	var prev *subvolume.Subvolume
	for _, c := range childrenDesc(g, node) {
		base := prev
		if base == nil {
			base = node
		}
		s.decisions[c.UUID] = Decision{Best: base, CloneSources: []*subvolume.Subvolume{base}, Reason: "previous sibling or parent"}
		order = append(order, c)
		order = s.walk(g, c, order)
		prev = c
	}
	return order
}

func (s *snapshotStrategy) Select(sv *subvolume.Subvolume, done []*subvolume.Subvolume, g *graph.Graph) Decision {
	return s.decisions[sv.UUID]
}

func (s *snapshotStrategy) StagesViaFlatDir() bool { return true }

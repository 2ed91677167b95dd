// Package graph indexes an enumerated set of subvolumes by UUID and
// answers the parent/children/descendants/siblings/relatives queries
// the Strategy Engine needs (spec §3 "Subvolume Graph", §4.2).
package graph

import (
	"iter"

	"github.com/google/uuid"

	"github.com/mwilck/btrfs-clone/internal/subvolume"
)

// Graph is a uuid -> Subvolume index with precomputed parent_uuid ->
// children buckets, per design notes ("An indexed implementation may
// pre-compute parent_uuid -> [children] and uuid -> children once").
type Graph struct {
	byUUID   map[uuid.UUID]*subvolume.Subvolume
	children map[uuid.UUID][]*subvolume.Subvolume
}

// New builds a Graph over subvols. subvols is not copied; callers
// must not mutate it afterwards (spec §3: "never mutated afterward
// except for the ro control bit").
func New(subvols []*subvolume.Subvolume) *Graph {
	g := &Graph{
		byUUID:   make(map[uuid.UUID]*subvolume.Subvolume, len(subvols)),
		children: make(map[uuid.UUID][]*subvolume.Subvolume),
	}
	for _, sv := range subvols {
		g.byUUID[sv.UUID] = sv
	}
	for _, sv := range subvols {
		if sv.HasParentUUID() {
			g.children[sv.ParentUUID] = append(g.children[sv.ParentUUID], sv)
		}
	}
	return g
}

// Get looks up a subvolume by uuid; ok is false if not present (e.g.
// an origin that has since been deleted).
func (g *Graph) Get(id uuid.UUID) (sv *subvolume.Subvolume, ok bool) {
	sv, ok = g.byUUID[id]
	return
}

// Parents lazily walks s's parent_uuid chain upward, stopping when
// the referent is absent or itself has no parent_uuid (spec §4.2:
// "terminates when parent_uuid is absent or not present in the
// graph").
func (g *Graph) Parents(s *subvolume.Subvolume) iter.Seq[*subvolume.Subvolume] {
	return func(yield func(*subvolume.Subvolume) bool) {
		cur := s
		for cur.HasParentUUID() {
			next, ok := g.byUUID[cur.ParentUUID]
			if !ok {
				return
			}
			if !yield(next) {
				return
			}
			cur = next
		}
	}
}

// ParentsSlice materializes Parents, nearest ancestor first.
func (g *Graph) ParentsSlice(s *subvolume.Subvolume) []*subvolume.Subvolume {
	var out []*subvolume.Subvolume
	for p := range g.Parents(s) {
		out = append(out, p)
	}
	return out
}

// ChildrenOf returns every subvolume whose parent_uuid equals id,
// regardless of whether id itself is present in the graph, so that an
// orphan root (a missing origin UUID) can still enumerate its
// children (spec §4.2).
func (g *Graph) ChildrenOf(id uuid.UUID) []*subvolume.Subvolume {
	return g.children[id]
}

// Children is ChildrenOf(s.UUID).
func (g *Graph) Children(s *subvolume.Subvolume) []*subvolume.Subvolume {
	return g.ChildrenOf(s.UUID)
}

// Descendants returns the transitive closure of Children, breadth
// order, s itself excluded.
func (g *Graph) Descendants(s *subvolume.Subvolume) []*subvolume.Subvolume {
	var out []*subvolume.Subvolume
	queue := g.Children(s)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		out = append(out, cur)
		queue = append(queue, g.Children(cur)...)
	}
	return out
}

// Siblings returns every subvolume sharing s.ParentUUID, excluding s.
func (g *Graph) Siblings(s *subvolume.Subvolume) []*subvolume.Subvolume {
	if !s.HasParentUUID() {
		return nil
	}
	var out []*subvolume.Subvolume
	for _, sib := range g.children[s.ParentUUID] {
		if sib.UUID != s.UUID {
			out = append(out, sib)
		}
	}
	return out
}

// Relatives implements spec §4.2's get_relatives(s), used by the
// BRUTEFORCE strategy: take the oldest present ancestor A; if A
// itself has a parent_uuid, use that UUID as the root key, otherwise
// use A's own UUID; yield A (if distinct from s) and all descendants
// of the root key.
func (g *Graph) Relatives(s *subvolume.Subvolume) []*subvolume.Subvolume {
	ancestors := g.ParentsSlice(s)
	var oldest *subvolume.Subvolume
	if len(ancestors) > 0 {
		oldest = ancestors[len(ancestors)-1]
	}

	var rootKey uuid.UUID
	switch {
	case oldest == nil:
		// s itself has no present ancestor; root at s.
		rootKey = s.UUID
	case oldest.HasParentUUID():
		rootKey = oldest.ParentUUID
	default:
		rootKey = oldest.UUID
	}

	var out []*subvolume.Subvolume
	if oldest != nil && oldest.UUID != s.UUID {
		out = append(out, oldest)
	}
	for _, d := range g.descendantsOf(rootKey) {
		if d.UUID != s.UUID {
			out = append(out, d)
		}
	}
	return out
}

// descendantsOf is Descendants but rooted at a bare uuid key instead
// of a Subvolume, used by Relatives when the root key is an ancestor
// UUID that isn't itself present in the graph.
func (g *Graph) descendantsOf(id uuid.UUID) []*subvolume.Subvolume {
	var out []*subvolume.Subvolume
	queue := g.ChildrenOf(id)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		out = append(out, cur)
		queue = append(queue, g.Children(cur)...)
	}
	return out
}

// Roots returns subvolumes with no parent_uuid, or whose parent_uuid
// is not present in the graph (spec §4.7.3 "Roots").
func (g *Graph) Roots(subvols []*subvolume.Subvolume) []*subvolume.Subvolume {
	var out []*subvolume.Subvolume
	for _, sv := range subvols {
		if !sv.HasParentUUID() {
			out = append(out, sv)
			continue
		}
		if _, ok := g.byUUID[sv.ParentUUID]; !ok {
			out = append(out, sv)
		}
	}
	return out
}

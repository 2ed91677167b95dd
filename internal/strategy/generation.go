package strategy

import (
	"sort"

	"github.com/google/uuid"

	"github.com/mwilck/btrfs-clone/internal/graph"
	"github.com/mwilck/btrfs-clone/internal/subvolume"
)

// generationStrategy implements spec §4.7.5, the twelve-rule
// select_best_ancestor engine. Order is (gen, id) ascending; done
// bookkeeping is consulted in descending (gen, id) order (most
// recently sent first) so "first-in-done" candidates are resolved
// without the caller needing to track insertion order itself.
type generationStrategy struct{}

func (generationStrategy) Order(subvols []*subvolume.Subvolume, g *graph.Graph) []*subvolume.Subvolume {
	sorted := make([]*subvolume.Subvolume, len(subvols))
	copy(sorted, subvols)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Gen != sorted[j].Gen {
			return sorted[i].Gen < sorted[j].Gen
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

func (generationStrategy) StagesViaFlatDir() bool { return true }

func descByGenID(subvols []*subvolume.Subvolume) []*subvolume.Subvolume {
	sorted := make([]*subvolume.Subvolume, len(subvols))
	copy(sorted, subvols)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Gen != sorted[j].Gen {
			return sorted[i].Gen > sorted[j].Gen
		}
		return sorted[i].ID > sorted[j].ID
	})
	return sorted
}

// cloneSet accumulates clone sources in first-seen order, silently
// dropping nils and duplicates, matching the accumulator described in
// spec §4.7.5 ("skipping nulls and duplicates").
type cloneSet struct {
	seen  map[uuid.UUID]bool
	items []*subvolume.Subvolume
}

func newCloneSet() *cloneSet { return &cloneSet{seen: make(map[uuid.UUID]bool)} }

func (c *cloneSet) add(svs ...*subvolume.Subvolume) {
	for _, sv := range svs {
		if sv == nil || c.seen[sv.UUID] {
			continue
		}
		c.seen[sv.UUID] = true
		c.items = append(c.items, sv)
	}
}

func (generationStrategy) Select(s *subvolume.Subvolume, done []*subvolume.Subvolume, g *graph.Graph) Decision {
	doneDesc := descByGenID(done)
	sources := newCloneSet()

	children := filterSubvols(doneDesc, func(c *subvolume.Subvolume) bool {
		return c.HasParentUUID() && c.ParentUUID == s.UUID
	})

	// Rule 1-2.
	if staticChild := firstStatic(children); staticChild != nil {
		sources.add(staticChild)
		for _, c := range children {
			if c.OGen > staticChild.OGen {
				sources.add(c)
			}
		}
		return Decision{Best: staticChild, CloneSources: sources.items, Reason: "static child"}
	}
	if len(children) > 0 {
		sources.add(children...)
	}

	ancestorsInDone := presentAncestors(g, s, doneDesc)
	var mom, ancestor *subvolume.Subvolume
	if len(ancestorsInDone) > 0 {
		mom = ancestorsInDone[0]
		ancestor = maxByOGen(ancestorsInDone)
	}

	// Rule 3.
	if ancestor != nil {
		sources.add(ancestor)
		if mom != nil && ancestor.UUID == mom.UUID {
			return Decision{Best: mom, CloneSources: sources.items, Reason: "mom"}
		}
	}

	siblings := filterSubvols(doneDesc, func(sib *subvolume.Subvolume) bool {
		return s.HasParentUUID() && sib.HasParentUUID() && sib.ParentUUID == s.ParentUUID
	})

	// Rule 4.
	if len(siblings) == 0 && ancestor == nil {
		return Decision{CloneSources: sources.items, Reason: "no relatives"}
	}

	// Rule 5.
	if len(siblings) == 0 && ancestor != nil {
		return Decision{Best: ancestor, CloneSources: sources.items, Reason: "ancestor"}
	}

	var brothers, sisters []*subvolume.Subvolume
	for _, sib := range siblings {
		if sib.OGen < s.OGen {
			brothers = append(brothers, sib)
		} else {
			sisters = append(sisters, sib)
		}
	}

	youngestStaticBrother := maxByOGen(filterSubvols(brothers, (*subvolume.Subvolume).Static))
	youngestBrother := maxByOGen(filterSubvols(brothers, func(b *subvolume.Subvolume) bool { return b.Gen < s.OGen }))
	youngestBrotherOGen := maxByOGen(brothers)
	oldestStaticSister := minByOGen(filterSubvols(sisters, (*subvolume.Subvolume).Static))
	oldestSister := minByOGen(sisters)
	oldestSisterGen := minByGen(sisters)

	// Rule 6.
	sources.add(youngestStaticBrother, youngestBrother, youngestBrotherOGen, oldestStaticSister, oldestSister, oldestSisterGen)

	// Rules 7-10.
	switch {
	case youngestStaticBrother != nil:
		return Decision{Best: youngestStaticBrother, CloneSources: sources.items, Reason: "static brother"}
	case oldestStaticSister != nil:
		return Decision{Best: oldestStaticSister, CloneSources: sources.items, Reason: "static sister"}
	case youngestBrother != nil:
		return Decision{Best: youngestBrother, CloneSources: sources.items, Reason: "youngest brother"}
	case ancestor != nil && ancestor.Static():
		return Decision{Best: ancestor, CloneSources: sources.items, Reason: "static ancestor"}
	}

	// Rule 11.
	candidates := filterSubvols([]*subvolume.Subvolume{ancestor, youngestBrotherOGen, oldestSister, oldestSisterGen}, func(sv *subvolume.Subvolume) bool { return sv != nil })
	if len(candidates) > 0 {
		best := candidates[0]
		bestDelta := ogenDelta(best, s)
		for _, c := range candidates[1:] {
			if d := ogenDelta(c, s); d < bestDelta {
				best, bestDelta = c, d
			}
		}
		return Decision{Best: best, CloneSources: sources.items, Reason: "nicest relative"}
	}

	// Rule 12.
	reason := "orphan"
	if len(siblings) > 0 {
		reason = "no nice relatives"
	}
	return Decision{CloneSources: sources.items, Reason: reason}
}

func ogenDelta(a, b *subvolume.Subvolume) uint64 {
	if a.OGen > b.OGen {
		return a.OGen - b.OGen
	}
	return b.OGen - a.OGen
}

// filterSubvols keeps insertion order, matching done's descending
// (gen, id) order when called on doneDesc.
func filterSubvols(subvols []*subvolume.Subvolume, keep func(*subvolume.Subvolume) bool) []*subvolume.Subvolume {
	var out []*subvolume.Subvolume
	for _, sv := range subvols {
		if keep(sv) {
			out = append(out, sv)
		}
	}
	return out
}

// firstStatic returns the first static member of children, which
// (children being in done's descending-(gen,id) order) is the
// most-recently-sent static child, matching "first-in-done static
// child" from spec §4.7.5 rule 1.
func firstStatic(children []*subvolume.Subvolume) *subvolume.Subvolume {
	for _, c := range children {
		if c.Static() {
			return c
		}
	}
	return nil
}

// presentAncestors restricts s's ancestor chain to members of done,
// nearest first, so index 0 is "mom".
func presentAncestors(g *graph.Graph, s *subvolume.Subvolume, done []*subvolume.Subvolume) []*subvolume.Subvolume {
	inDone := make(map[uuid.UUID]bool, len(done))
	for _, d := range done {
		inDone[d.UUID] = true
	}
	var out []*subvolume.Subvolume
	for _, a := range g.ParentsSlice(s) {
		if inDone[a.UUID] {
			out = append(out, a)
		}
	}
	return out
}

func maxByOGen(subvols []*subvolume.Subvolume) *subvolume.Subvolume {
	var best *subvolume.Subvolume
	for _, sv := range subvols {
		if best == nil || sv.OGen > best.OGen {
			best = sv
		}
	}
	return best
}

func minByOGen(subvols []*subvolume.Subvolume) *subvolume.Subvolume {
	var best *subvolume.Subvolume
	for _, sv := range subvols {
		if best == nil || sv.OGen < best.OGen {
			best = sv
		}
	}
	return best
}

func minByGen(subvols []*subvolume.Subvolume) *subvolume.Subvolume {
	var best *subvolume.Subvolume
	for _, sv := range subvols {
		if best == nil || sv.Gen < best.Gen {
			best = sv
		}
	}
	return best
}

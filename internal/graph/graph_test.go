package graph

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwilck/btrfs-clone/internal/subvolume"
)

func mk(path string, ogen uint64, parent uuid.UUID) *subvolume.Subvolume {
	return &subvolume.Subvolume{
		Path:       path,
		ID:         ogen + 1000,
		UUID:       uuid.New(),
		ParentUUID: parent,
		Gen:        ogen,
		OGen:       ogen,
	}
}

// fanOut builds: A (root) -> B, C, D (children of A, increasing ogen),
// D -> E (grandchild).
func fanOut() (a, b, c, d, e *subvolume.Subvolume, g *Graph) {
	a = mk("A", 1, uuid.Nil)
	b = mk("B", 2, a.UUID)
	c = mk("C", 3, a.UUID)
	d = mk("D", 4, a.UUID)
	e = mk("E", 5, d.UUID)
	g = New([]*subvolume.Subvolume{a, b, c, d, e})
	return
}

func TestGraphGet(t *testing.T) {
	a, _, _, _, _, g := fanOut()
	got, ok := g.Get(a.UUID)
	require.True(t, ok)
	assert.Same(t, a, got)

	_, ok = g.Get(uuid.New())
	assert.False(t, ok)
}

func TestGraphParentsSlice(t *testing.T) {
	a, _, _, d, e, g := fanOut()
	assert.Equal(t, []*subvolume.Subvolume{d, a}, g.ParentsSlice(e))
	assert.Empty(t, g.ParentsSlice(a))
}

func TestGraphParentsStopsAtMissingAncestor(t *testing.T) {
	orphan := mk("orphan", 1, uuid.New()) // parent uuid never present
	g := New([]*subvolume.Subvolume{orphan})
	assert.Empty(t, g.ParentsSlice(orphan))
}

func TestGraphChildren(t *testing.T) {
	a, b, c, d, _, g := fanOut()
	assert.ElementsMatch(t, []*subvolume.Subvolume{b, c, d}, g.Children(a))
}

func TestGraphDescendants(t *testing.T) {
	a, b, c, d, e, g := fanOut()
	assert.ElementsMatch(t, []*subvolume.Subvolume{b, c, d, e}, g.Descendants(a))
}

func TestGraphSiblings(t *testing.T) {
	a, b, c, d, _, g := fanOut()
	assert.ElementsMatch(t, []*subvolume.Subvolume{c, d}, g.Siblings(b))
	assert.Empty(t, g.Siblings(a))
}

func TestGraphRoots(t *testing.T) {
	a, b, c, d, e, g := fanOut()
	all := []*subvolume.Subvolume{a, b, c, d, e}
	assert.Equal(t, []*subvolume.Subvolume{a}, g.Roots(all))
}

func TestGraphRootsTreatsMissingOriginAsRoot(t *testing.T) {
	orphan := mk("orphan", 1, uuid.New())
	g := New([]*subvolume.Subvolume{orphan})
	assert.Equal(t, []*subvolume.Subvolume{orphan}, g.Roots([]*subvolume.Subvolume{orphan}))
}

func TestGraphRelatives(t *testing.T) {
	a, b, c, d, e, g := fanOut()

	// e's oldest present ancestor is a (via d); relatives are a plus
	// every descendant of a except e itself.
	rel := g.Relatives(e)
	assert.ElementsMatch(t, []*subvolume.Subvolume{a, b, c, d}, rel)

	// a has no ancestors, so relatives root at a itself: every
	// descendant of a except a.
	rel = g.Relatives(a)
	assert.ElementsMatch(t, []*subvolume.Subvolume{b, c, d, e}, rel)
}

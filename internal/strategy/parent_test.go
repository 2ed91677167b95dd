package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwilck/btrfs-clone/internal/graph"
)

func TestParentOrderIsByOgenID(t *testing.T) {
	_, _, _, _, _, subvols := fanOutTree()
	g := graph.New(subvols)

	order := (parentStrategy{}).Order(subvols, g)
	require.Equal(t, []string{"A", "B", "C", "D", "E"}, pathsOf(order))
}

func TestParentSelectUsesDirectUUIDParent(t *testing.T) {
	a, _, _, d, e, subvols := fanOutTree()
	g := graph.New(subvols)

	decision := (parentStrategy{}).Select(e, nil, g)
	assert.Same(t, d, decision.Best)
	require.Len(t, decision.CloneSources, 2)
	assert.Same(t, d, decision.CloneSources[0])
	assert.Same(t, a, decision.CloneSources[1])
}

func TestParentSelectRootHasNoParent(t *testing.T) {
	a, _, _, _, _, subvols := fanOutTree()
	g := graph.New(subvols)

	decision := (parentStrategy{}).Select(a, nil, g)
	assert.Nil(t, decision.Best)
	assert.Empty(t, decision.CloneSources)
}

func TestParentStagesViaFlatDir(t *testing.T) {
	assert.True(t, (parentStrategy{}).StagesViaFlatDir())
}

package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mwilck/btrfs-clone/internal/graph"
)

func TestBruteforceSelectUsesEveryOlderRelative(t *testing.T) {
	_, _, _, d, e, subvols := fanOutTree()
	g := graph.New(subvols)

	decision := (bruteforceStrategy{}).Select(e, nil, g)
	assert.Same(t, d, decision.Best, "direct UUID parent is still best")
	assert.ElementsMatch(t, []string{"A", "B", "C", "D"}, pathsOf(decision.CloneSources))
}

func TestBruteforceSelectRootHasNoOlderRelatives(t *testing.T) {
	a, _, _, _, _, subvols := fanOutTree()
	g := graph.New(subvols)

	decision := (bruteforceStrategy{}).Select(a, nil, g)
	assert.Nil(t, decision.Best)
	assert.Empty(t, decision.CloneSources)
}

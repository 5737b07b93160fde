package support_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evolbioinfo/booster/support"
	"github.com/evolbioinfo/booster/tree"
)

func mustTree(t *testing.T, nwk string) *tree.Tree {
	t.Helper()
	tr, err := tree.ParseNewickString(nwk)
	require.NoError(t, err)
	require.NoError(t, tr.ReinitIndexes())
	return tr
}

// S1: identical bootstrap tree, every internal edge gets FBP support 1.0.
func TestFBP_IdenticalBootstrapGivesFullSupport(t *testing.T) {
	ref := mustTree(t, "((A,B),(C,D));")
	boot := mustTree(t, "((A,B),(C,D));")
	require.NoError(t, ref.CompareTipIndexes(boot))

	idx := support.BuildBipartitionIndex(ref)
	count := make([]int64, len(ref.Edges()))
	support.FBPCount(boot, idx, count)

	for _, e := range ref.InternalEdges() {
		assert.Equal(t, 1.0, support.FBPSupport(count[e.Id()], 1))
	}
}

// S2: a bootstrap tree with a different bipartition structure gives zero
// FBP support to every reference internal edge.
func TestFBP_DifferentTopologyGivesZeroSupport(t *testing.T) {
	ref := mustTree(t, "((A,B),(C,D));")
	boot := mustTree(t, "((A,C),(B,D));")
	require.NoError(t, ref.CompareTipIndexes(boot))

	idx := support.BuildBipartitionIndex(ref)
	count := make([]int64, len(ref.Edges()))
	support.FBPCount(boot, idx, count)

	for _, e := range ref.InternalEdges() {
		assert.Equal(t, 0.0, support.FBPSupport(count[e.Id()], 1))
	}
}

// S3: a 5-taxon reference with two bootstrap trees, one matching the
// {A,B} bipartition, both matching {D,E}.
func TestFBP_PartialAgreementAcrossBootstraps(t *testing.T) {
	ref := mustTree(t, "(((A,B),C),(D,E));")
	boots := []string{"(((A,B),C),(D,E));", "(((A,C),B),(D,E));"}

	idx := support.BuildBipartitionIndex(ref)
	count := make([]int64, len(ref.Edges()))
	for _, nwk := range boots {
		boot := mustTree(t, nwk)
		require.NoError(t, ref.CompareTipIndexes(boot))
		support.FBPCount(boot, idx, count)
	}

	var abEdge, deEdge *tree.Edge
	for _, e := range ref.InternalEdges() {
		n, err := e.NumTipsRight()
		require.NoError(t, err)
		if n == 2 {
			if contains(leafNames(e), "A") {
				abEdge = e
			} else {
				deEdge = e
			}
		}
	}
	require.NotNil(t, abEdge)
	require.NotNil(t, deEdge)
	assert.Equal(t, 0.5, support.FBPSupport(count[abEdge.Id()], 2))
	assert.Equal(t, 1.0, support.FBPSupport(count[deEdge.Id()], 2))
}

func leafNames(e *tree.Edge) []string {
	var names []string
	var walk func(n *tree.Node)
	walk = func(n *tree.Node) {
		if n.Tip() {
			names = append(names, n.Name())
			return
		}
		for _, e2 := range n.Edges() {
			if e2.Left() == n {
				walk(e2.Right())
			}
		}
	}
	walk(e.Right())
	return names
}

func contains(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}

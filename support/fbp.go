package support

import (
	"github.com/evolbioinfo/booster/internal/bipindex"
	"github.com/evolbioinfo/booster/tree"
)

// BuildBipartitionIndex indexes every internal edge of the reference tree
// by its canonicalised bipartition (spec.md S4.1), for the FBP kernel.
func BuildBipartitionIndex(ref *tree.Tree) *bipindex.Index {
	edges := ref.InternalEdges()
	idx := bipindex.New(len(edges))
	for _, e := range edges {
		idx.Insert(e.Bitset(), e.Id())
	}
	return idx
}

// FBPCount folds one bootstrap tree's contribution into count (indexed by
// reference edge id): every bootstrap internal edge whose bipartition
// exactly matches a reference edge's (spec.md S4.1) increments that
// reference edge's count by one.
func FBPCount(boot *tree.Tree, idx *bipindex.Index, count []int64) {
	for _, e := range boot.InternalEdges() {
		if id, ok := idx.Get(e.Bitset()); ok {
			count[id]++
		}
	}
}

// FBPSupport turns an accumulated match count over nboot bootstrap trees
// into a FBP proportion in [0,1].
func FBPSupport(count int64, nboot int) float64 {
	if nboot == 0 {
		return 0
	}
	return float64(count) / float64(nboot)
}

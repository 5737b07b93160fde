package support

import (
	"fmt"

	"github.com/evolbioinfo/booster/tree"
)

// LeafBijection matches every reference leaf to the bootstrap-tree leaf of
// the same name (spec.md S4.3 "leaf bijection"), setting Node.Partner on
// the reference leaves. Both trees must already have passed
// Tree.CompareTipIndexes so every name is guaranteed present in both.
func LeafBijection(ref, boot *tree.Tree) error {
	byName := make(map[string]*tree.Node, len(boot.Leaves()))
	for _, l := range boot.Leaves() {
		byName[l.Name()] = l
	}
	for _, l := range ref.Leaves() {
		partner, ok := byName[l.Name()]
		if !ok {
			return fmt.Errorf("rapid TBE: leaf %q has no bootstrap-tree counterpart", l.Name())
		}
		l.SetPartner(partner)
	}
	return nil
}

// RapidTBE computes the transfer index of every reference edge against a
// single bootstrap tree, folding the result into minDist (indexed by
// reference edge id, already seeded with an upper bound by the caller) via
// a running minimum, per spec.md S4.3 and
// original_source/src/rapid_transfer.c's compute_transfer_indices_new:
// bijection leaves, heavy-decompose the bootstrap tree once, then for every
// reference leaf climb its heavy path (up to the root, or to the first node
// that is not its parent's heavy child), calling add_leaf/reset_leaf on the
// bootstrap tree's HPT and reading the transfer index off the HPT root's
// d_min/d_max.
//
// boot is mutated in place (its root is binarized if it is a trifurcating
// pseudo-root) and must not be reused by the classical or FBP kernels
// afterwards.
func RapidTBE(ref, boot *tree.Tree, minDist []int) error {
	if err := LeafBijection(ref, boot); err != nil {
		return err
	}
	if err := boot.ResolveRootTrifurcation(); err != nil {
		return err
	}
	if err := boot.ReinitIndexes(); err != nil {
		return err
	}

	hpt, err := BuildHPT(boot.Root())
	if err != nil {
		return err
	}

	ntips := ref.NbTaxa()
	tiMin := make([]int, len(ref.Nodes()))
	tiMax := make([]int, len(ref.Nodes()))

	for _, leaf := range ref.Leaves() {
		addHeavyPath(leaf, hpt, tiMin, tiMax)
		resetHeavyPath(leaf, hpt)
	}

	for _, n := range ref.Nodes() {
		if n.Depth() == 0 {
			continue
		}
		e := n.Edges()[0]
		ti := min(tiMin[n.Id()], ntips-tiMax[n.Id()])
		if ti < minDist[e.Id()] {
			minDist[e.Id()] = ti
		}
	}
	return nil
}

func parentOf(n *tree.Node) *tree.Node {
	if n.Nneigh() == 0 {
		return nil
	}
	return n.Neigh()[0]
}

// addHeavyPath walks from the reference leaf u up its heavy path, calling
// add_leaf on the bootstrap-tree HPT for every leaf of a light subtree
// encountered, and records the transfer index at each visited reference
// node from the HPT root's aggregates.
func addHeavyPath(u *tree.Node, hpt *HPT, tiMin, tiMax []int) {
	for u != nil {
		if u.Tip() {
			addLeaf(hpt.leafOf[u.Partner().Id()])
		} else {
			for _, l := range u.LightLeaves() {
				addLeaf(hpt.leafOf[l.Partner().Id()])
			}
		}

		tiMin[u.Id()] = min(hpt.root.dMinPath, hpt.root.dMinSubtree)
		tiMax[u.Id()] = max(hpt.root.dMaxPath, hpt.root.dMaxSubtree)

		if u.Depth() != 0 && u == parentOf(u).HeavyChild() {
			u = parentOf(u)
		} else {
			u = nil
		}
	}
}

// resetHeavyPath undoes exactly the add_leaf calls addHeavyPath made, along
// the same climb.
func resetHeavyPath(u *tree.Node, hpt *HPT) {
	for u != nil {
		if u.Tip() {
			resetLeaf(hpt.leafOf[u.Partner().Id()])
		} else {
			for _, l := range u.LightLeaves() {
				resetLeaf(hpt.leafOf[l.Partner().Id()])
			}
		}

		if u.Depth() == 0 || u != parentOf(u).HeavyChild() {
			u = nil
		} else {
			u = parentOf(u)
		}
	}
}

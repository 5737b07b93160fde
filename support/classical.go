// Package support implements the FBP and TBE branch-support kernels
// (spec.md S4) and the driver that runs them over a bootstrap-tree set
// (spec.md S5).
package support

import (
	"fmt"

	"github.com/evolbioinfo/booster/tree"
)

// ClassicalTBE computes the transfer index of every reference edge against
// a single bootstrap tree, folding the result into minDist/minDistEdge
// (indexed by reference edge id) via a running minimum. It is the exact
// O(n*m) Brehelin-Gascuel-Martin algorithm, used both by the driver when
// moved-species tracking is requested (it is the kernel that yields the
// argmin bootstrap edge) and as the oracle the rapid kernel's results are
// checked against in testing.
//
// ref and boot must share the same leaf table (Tree.CompareTipIndexes) and
// both must have up-to-date bitsets (Tree.UpdateBitSet).
func ClassicalTBE(ref, boot *tree.Tree, minDist []int, minDistEdge []int) error {
	refEdges := ref.Edges()
	bootEdges := boot.Edges()
	ntips := ref.NbTaxa()

	iMat := make([][]uint16, len(refEdges))
	cMat := make([][]uint16, len(refEdges))
	for i := range iMat {
		iMat[i] = make([]uint16, len(bootEdges))
		cMat[i] = make([]uint16, len(bootEdges))
	}

	for _, e := range ref.Root().Edges() {
		if e.Left() != ref.Root() {
			continue
		}
		fillRefTreeIC(e.Right(), e, bootEdges, iMat, cMat)
	}

	for _, e := range boot.Root().Edges() {
		if e.Left() != boot.Root() {
			continue
		}
		if err := fillBootTreeIC(e.Right(), e, refEdges, ntips, iMat, cMat, minDist, minDistEdge); err != nil {
			return err
		}
	}
	return nil
}

// ClassicalSupporter wraps the classical kernel behind a constructor, so
// that code outside this package (property-based tests checking the rapid
// kernel against its oracle, or a caller that wants the exact O(n*m)
// kernel regardless of the driver's default) can reach it without calling
// the free function directly.
type ClassicalSupporter struct{}

// NewClassicalSupporter returns the classical (Brehelin-Gascuel-Martin)
// TBE kernel.
func NewClassicalSupporter() *ClassicalSupporter { return &ClassicalSupporter{} }

// Compute runs the classical kernel for one bootstrap tree; see ClassicalTBE.
func (s *ClassicalSupporter) Compute(ref, boot *tree.Tree, minDist, minDistEdge []int) error {
	return ClassicalTBE(ref, boot, minDist, minDistEdge)
}

// fillRefTreeIC is a post-order pass over the reference tree, grounded on
// the teacher's Update_all_i_c_post_order_ref_tree: for every reference
// internal edge (identified by its row in iMat/cMat) and every bootstrap
// leaf-edge column, I is 1 iff the reference subtree below the edge
// contains that leaf, and C is 1 iff it doesn't.
func fillRefTreeIC(current *tree.Node, incoming *tree.Edge, bootEdges []*tree.Edge, iMat, cMat [][]uint16) {
	edgeID := incoming.Id()

	if current.Tip() {
		for beID, be := range bootEdges {
			if !be.Right().Tip() {
				continue
			}
			if current.Name() != be.Right().Name() {
				iMat[edgeID][beID] = 0
				cMat[edgeID][beID] = 1
			} else {
				iMat[edgeID][beID] = 1
				cMat[edgeID][beID] = 0
			}
		}
		return
	}

	for beID, be := range bootEdges {
		if be.Right().Tip() {
			iMat[edgeID][beID] = 0
			cMat[edgeID][beID] = 1
		}
	}

	for _, e2 := range current.Edges() {
		if e2.Left() != current {
			continue
		}
		fillRefTreeIC(e2.Right(), e2, bootEdges, iMat, cMat)
		e2ID := e2.Id()
		for beID, be := range bootEdges {
			if !be.Right().Tip() {
				continue
			}
			if iMat[edgeID][beID] != 0 || iMat[e2ID][beID] != 0 {
				iMat[edgeID][beID] = 1
			}
			if cMat[edgeID][beID] == 0 || cMat[e2ID][beID] == 0 {
				cMat[edgeID][beID] = 0
			} else {
				cMat[edgeID][beID] = 1
			}
		}
	}
}

// fillBootTreeIC is a post-order pass over the bootstrap tree, grounded on
// the teacher's Update_all_i_c_post_order_boot_tree: it completes the I/C
// matrices for every (ref edge, boot edge) pair, derives the Hamming
// distance matrix entry from them, and folds the per-ref-edge minimum into
// minDist/minDistEdge.
func fillBootTreeIC(current *tree.Node, incoming *tree.Edge, refEdges []*tree.Edge, ntips int, iMat, cMat [][]uint16, minDist, minDistEdge []int) error {
	edgeID := incoming.Id()

	if !current.Tip() {
		for _, e3 := range refEdges {
			iMat[e3.Id()][edgeID] = 0
			cMat[e3.Id()][edgeID] = 0
		}
		for _, e2 := range current.Edges() {
			if e2.Left() != current {
				continue
			}
			if err := fillBootTreeIC(e2.Right(), e2, refEdges, ntips, iMat, cMat, minDist, minDistEdge); err != nil {
				return err
			}
			e2ID := e2.Id()
			for _, e3 := range refEdges {
				iMat[e3.Id()][edgeID] += iMat[e3.Id()][e2ID]
				cMat[e3.Id()][edgeID] += cMat[e3.Id()][e2ID]
			}
		}
	}

	for _, e3 := range refEdges {
		e3tips, err := e3.NumTipsRight()
		if err != nil {
			return fmt.Errorf("classical TBE: %w", err)
		}
		h := int(e3tips) + int(cMat[e3.Id()][edgeID]) - int(iMat[e3.Id()][edgeID])
		if h > ntips/2 {
			h = ntips - h
		}
		if h < minDist[e3.Id()] {
			minDist[e3.Id()] = h
			minDistEdge[e3.Id()] = edgeID
		}
	}
	return nil
}

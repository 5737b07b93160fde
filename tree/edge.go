package tree

import "github.com/fredericlemoine/bitset"

// NilLength marks an edge with no branch length.
const NilLength = -1.0

// NilSupport marks an edge with no computed support value.
const NilSupport = -1.0

// Edge is one branch of a rooted, edge-indexed tree: left is the parent
// side, right is the child side. bts is the bipartition bitset over the
// leaves reachable from the child (right) side, filled by a post-order
// union pass (Tree.UpdateBitSet).
type Edge struct {
	id     int
	left   *Node
	right  *Node
	length float64
	support float64

	bts *bitset.BitSet

	topoDepth int // last result of TopoDepth; NilDepth until it is first called

	// minDistEdge is a transient argmin-edge slot, read and written only
	// through MinDistEdge/SetMinDistEdge. Neither TBE kernel uses it:
	// ClassicalTBE records argmin edges in its minDistEdge slice argument
	// and RapidTBE computes none.
	minDistEdge int
}

// Id returns the edge's arena index.
func (e *Edge) Id() int { return e.id }

// SetId overwrites the edge's arena index. Used when re-numbering the
// edges of a freshly parsed bootstrap tree before running a kernel.
func (e *Edge) SetId(id int) { e.id = id }

// Left returns the parent-side node.
func (e *Edge) Left() *Node { return e.left }

// Right returns the child-side node.
func (e *Edge) Right() *Node { return e.right }

func (e *Edge) setLeft(n *Node)  { e.left = n }
func (e *Edge) setRight(n *Node) { e.right = n }

// Length returns the branch length, or NilLength if unset.
func (e *Edge) Length() float64 { return e.length }

// SetLength sets the branch length.
func (e *Edge) SetLength(l float64) { e.length = l }

// Support returns the support value written by the driver's aggregation
// step, or NilSupport if unset.
func (e *Edge) Support() float64 { return e.support }

// SetSupport sets the support value.
func (e *Edge) SetSupport(s float64) { e.support = s }

// Bitset returns the edge's bipartition bitset (leaves reachable from the
// child side). It is nil until Tree.ClearBitSets/UpdateBitSet have run.
func (e *Edge) Bitset() *bitset.BitSet { return e.bts }

// NumTipsRight returns the cardinality of the child-side bipartition.
func (e *Edge) NumTipsRight() (int, error) {
	if e.bts == nil {
		return 0, errNotFound("bitset not initialized")
	}
	return int(e.bts.Count()), nil
}

// TopoDepth returns min(|B|, n-|B|), the topological depth of the edge
// (spec.md S3), where B is the child-side bipartition and n is the total
// number of leaves the bitset is defined over. The value is recomputed
// from the bitset on every call and stored in the edge's topoDepth field.
func (e *Edge) TopoDepth() (int, error) {
	if e.bts == nil {
		return 0, errNotFound("bitset not initialized")
	}
	card := int(e.bts.Count())
	n := int(e.bts.Len())
	d := card
	if n-card < d {
		d = n - card
	}
	e.topoDepth = d
	return d, nil
}

// MinDistEdge returns the argmin-edge id last stored by SetMinDistEdge
// (NilID if none was stored).
func (e *Edge) MinDistEdge() int { return e.minDistEdge }

// SetMinDistEdge sets the transient TBE argmin-edge id.
func (e *Edge) SetMinDistEdge(id int) { e.minDistEdge = id }

// SupportString formats the support value to six decimals, as spec.md S6
// requires for the internal-node labels of the output tree. Returns "" if
// support has not been set.
func (e *Edge) SupportString() string {
	if e.support == NilSupport {
		return ""
	}
	return formatSupport(e.support)
}

// FindEdge returns the edge in edges whose bipartition bitset equals e's
// (under the exact, non-canonicalised bitset), or nil if none matches.
func (e *Edge) FindEdge(edges []*Edge) (*Edge, error) {
	if e.bts == nil {
		return nil, errNotFound("bitset not initialized")
	}
	for _, e2 := range edges {
		if e2.bts != nil && e2.bts.Equal(e.bts) {
			return e2, nil
		}
	}
	return nil, nil
}

package tree

// NilDepth marks a node whose root-distance has not yet been computed.
const NilDepth = -1

// NilID marks an unassigned node or edge id.
const NilID = -1

// Node is one vertex of a rooted, edge-indexed tree. Nodes are owned by
// their Tree's node arena (Tree.nodes); all cross-references between nodes,
// edges and other nodes are plain pointers into that arena, which makes a
// whole tree collectible in one garbage-collection pass once the Tree value
// itself is dropped (there is no separate Free/Delete call, unlike the
// teacher's tree.Delete()/arena style in C heritage).
type Node struct {
	id      int
	name    string
	comment []string

	// neigh[0] is the parent, except at the root where every entry is a
	// child. br[i] is the edge connecting this node to neigh[i].
	neigh []*Node
	br    []*Edge

	depth int // distance from the root; NilDepth until ComputeDepths runs

	// Auxiliary fields filled by the post-order + pre-order pass
	// (Tree.ComputeAux): subtree size, heavy child (tie-broken by id),
	// and the light-leaf list used by the rapid TBE kernel's driver over
	// the reference tree (spec.md S4.3).
	subtreeSize int
	heavyChild  *Node
	lightLeaves []*Node

	// partner is the bijection link to the node of the same name in
	// another tree, set once per bootstrap tree by the rapid TBE kernel's
	// leaf-matching step (spec.md S4.3 "Leaf bijection").
	partner *Node
}

// Id returns the node's arena index.
func (n *Node) Id() int { return n.id }

// Name returns the node's label (leaf name, or internal label such as a
// written-back support value).
func (n *Node) Name() string { return n.name }

// SetName overwrites the node's label.
func (n *Node) SetName(name string) { n.name = name }

// Comments returns any bracketed NHX-style comments attached to the node.
func (n *Node) Comments() []string { return n.comment }

// AddComment appends a comment string to the node.
func (n *Node) AddComment(c string) { n.comment = append(n.comment, c) }

// ClearComments removes all comments from the node.
func (n *Node) ClearComments() { n.comment = nil }

// Neigh returns the node's neighbour list. Index 0 is the parent, except
// at the root, where index 0 is just the first child.
func (n *Node) Neigh() []*Node { return n.neigh }

// Edges returns the edges parallel to Neigh(): Edges()[i] connects the node
// to Neigh()[i].
func (n *Node) Edges() []*Edge { return n.br }

// Nneigh returns the node's degree.
func (n *Node) Nneigh() int { return len(n.neigh) }

// Tip reports whether the node is a leaf (degree 1).
func (n *Node) Tip() bool { return len(n.neigh) == 1 }

// Depth returns the node's distance from the root (0 at the root). It is
// NilDepth until Tree.ComputeDepths has run.
func (n *Node) Depth() int { return n.depth }

// SubtreeSize returns the number of leaves in the subtree rooted at this
// node. It is 0 until Tree.ComputeAux has run.
func (n *Node) SubtreeSize() int { return n.subtreeSize }

// HeavyChild returns the child of maximum subtree size (ties broken by the
// lowest child id), or nil for a tip or before Tree.ComputeAux has run.
func (n *Node) HeavyChild() *Node { return n.heavyChild }

// LightLeaves returns the leaves of the subtrees rooted at this node's own
// light children (every child other than HeavyChild()), in child order.
// Leaves of light children of nodes further down the heavy path are not
// included; the rapid TBE kernel adds those at their own step of the climb.
func (n *Node) LightLeaves() []*Node { return n.lightLeaves }

// Partner returns the bijection partner set by the rapid TBE kernel's leaf
// matching step, or nil if none has been set (or the node is not a leaf).
func (n *Node) Partner() *Node { return n.partner }

// SetPartner sets the bijection partner. Exported for use by the support
// package's leaf-matching step; tree package itself never calls it.
func (n *Node) SetPartner(p *Node) { n.partner = p }

// EdgeIndex returns the index of e within n.br, or an error if e does not
// touch n.
func (n *Node) EdgeIndex(e *Edge) (int, error) {
	for i, e2 := range n.br {
		if e2 == e {
			return i, nil
		}
	}
	return -1, errNotFound("edge not incident to node")
}

// NodeIndex returns the index of other within n.neigh, or an error if other
// is not a neighbour of n.
func (n *Node) NodeIndex(other *Node) (int, error) {
	for i, n2 := range n.neigh {
		if n2 == other {
			return i, nil
		}
	}
	return -1, errNotFound("node is not a neighbor")
}

// addChild links child to n via edge e, appending to both neigh and br.
func (n *Node) addChild(child *Node, e *Edge) {
	n.neigh = append(n.neigh, child)
	n.br = append(n.br, e)
}

// delNeighbor removes other (and its parallel edge) from n's neighbour
// list. Returns an error if other is not a neighbour.
func (n *Node) delNeighbor(other *Node) error {
	idx, err := n.NodeIndex(other)
	if err != nil {
		return err
	}
	n.neigh = append(n.neigh[:idx], n.neigh[idx+1:]...)
	n.br = append(n.br[:idx], n.br[idx+1:]...)
	return nil
}

type errNotFound string

func (e errNotFound) Error() string { return string(e) }

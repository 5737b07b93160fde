// Package tree implements the rooted, edge-indexed tree model spec.md S3
// describes, plus the Newick parsing/serialization that the CORE treats as
// an external collaborator (spec.md S1, S6).
package tree

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/fredericlemoine/bitset"
)

// Tree is a rooted binary tree (multifurcations tolerated only at the
// root, per spec.md S3). Nodes and edges are owned by arenas (Tree.nodes,
// Tree.edges); freeing a tree is dropping the Tree value, since all
// cross-references are plain Go pointers into those arenas (spec.md S9).
type Tree struct {
	root  *Node
	nodes []*Node
	edges []*Edge

	tipIndex map[string]uint // tip name -> stable bitset/leaf index
	leaves   []*Node         // ordered by tip index
}

// NewTree returns an empty tree with no root.
func NewTree() *Tree {
	return &Tree{tipIndex: make(map[string]uint)}
}

// NewNode allocates a node in the tree's arena and returns it.
func (t *Tree) NewNode() *Node {
	n := &Node{
		id:    len(t.nodes),
		depth: NilDepth,
	}
	t.nodes = append(t.nodes, n)
	return n
}

// NewEdge allocates an edge in the tree's arena and returns it.
func (t *Tree) NewEdge() *Edge {
	e := &Edge{
		id:          len(t.edges),
		length:      NilLength,
		support:     NilSupport,
		topoDepth:   NilDepth,
		minDistEdge: NilID,
	}
	t.edges = append(t.edges, e)
	return e
}

// ConnectNodes links parent to child with a new edge (left=parent,
// right=child) and returns it.
func (t *Tree) ConnectNodes(parent, child *Node) *Edge {
	e := t.NewEdge()
	e.setLeft(parent)
	e.setRight(child)
	parent.addChild(child, e)
	// The parent goes first, so that neigh[0]/br[0] is the parent side even
	// when the child's own children were connected before it.
	child.neigh = append([]*Node{parent}, child.neigh...)
	child.br = append([]*Edge{e}, child.br...)
	return e
}

// SetRoot sets the tree's root node.
func (t *Tree) SetRoot(r *Node) { t.root = r }

// Root returns the tree's root node.
func (t *Tree) Root() *Node { return t.root }

// Rooted reports whether the root has exactly two neighbours (a true
// bifurcating root) as opposed to the trifurcating pseudo-root used to
// represent an unrooted tree.
func (t *Tree) Rooted() bool { return t.root.Nneigh() == 2 }

// Nodes returns every node in the tree, in arena (creation) order.
func (t *Tree) Nodes() []*Node { return t.nodes }

// Edges returns every edge in the tree, in arena (creation) order.
func (t *Tree) Edges() []*Edge { return t.edges }

// InternalEdges returns the edges whose child side is not a tip.
func (t *Tree) InternalEdges() []*Edge {
	out := make([]*Edge, 0, len(t.edges))
	for _, e := range t.edges {
		if !e.Right().Tip() {
			out = append(out, e)
		}
	}
	return out
}

// TipEdges returns the edges whose child side is a tip.
func (t *Tree) TipEdges() []*Edge {
	out := make([]*Edge, 0, len(t.edges))
	for _, e := range t.edges {
		if e.Right().Tip() {
			out = append(out, e)
		}
	}
	return out
}

// Tips returns every leaf node in the tree, in arena order.
func (t *Tree) Tips() []*Node {
	out := make([]*Node, 0, len(t.nodes))
	for _, n := range t.nodes {
		if n.Tip() {
			out = append(out, n)
		}
	}
	return out
}

// Leaves returns the leaves ordered by tip (bitset) index, valid after
// UpdateTipIndex.
func (t *Tree) Leaves() []*Node { return t.leaves }

// NbTaxa returns the number of leaves in the tree.
func (t *Tree) NbTaxa() int { return len(t.tipIndex) }

// SortedTipNames returns all tip names, alphabetically sorted.
func (t *Tree) SortedTipNames() []string {
	names := make([]string, 0, len(t.nodes))
	for _, n := range t.nodes {
		if n.Tip() {
			names = append(names, n.Name())
		}
	}
	sort.Strings(names)
	return names
}

// UpdateTipIndex (re)builds the tip-name -> bitset-index map and the
// ordered Leaves() slice from the alphabetically sorted tip names.
// ParseNewickString and ReinitIndexes call it on every tree, so two trees
// with the same set of tip names get the same indices (spec.md S3 "leaf
// name table").
func (t *Tree) UpdateTipIndex() {
	names := t.SortedTipNames()
	t.tipIndex = make(map[string]uint, len(names))
	for i, name := range names {
		t.tipIndex[name] = uint(i)
	}
	t.leaves = make([]*Node, len(names))
	for _, n := range t.nodes {
		if n.Tip() {
			if idx, ok := t.tipIndex[n.Name()]; ok {
				t.leaves[idx] = n
			}
		}
	}
}

// TipIndex returns the bitset index for the given tip name.
func (t *Tree) TipIndex(name string) (uint, error) {
	if len(t.tipIndex) == 0 {
		return 0, errNotFound("tip name index is not initialized")
	}
	v, ok := t.tipIndex[name]
	if !ok {
		return 0, errNotFound("no tip named " + name)
	}
	return v, nil
}

// CompareTipIndexes reports whether t and t2 share exactly the same set of
// tip names (spec.md S3: "every bootstrap tree must match it exactly...
// or is rejected").
func (t *Tree) CompareTipIndexes(t2 *Tree) error {
	if len(t.tipIndex) == 0 || len(t2.tipIndex) == 0 || len(t.tipIndex) != len(t2.tipIndex) {
		return errNotFound("tip name index is not initialized, or trees have different numbers of tips")
	}
	for k := range t.tipIndex {
		if _, ok := t2.tipIndex[k]; !ok {
			return errNotFound("trees do not have the same tip names")
		}
	}
	return nil
}

// ClearBitSets (re)allocates a fresh, all-clear bipartition bitset of
// length NbTaxa() on every edge.
func (t *Tree) ClearBitSets() error {
	n := uint(len(t.tipIndex))
	if n == 0 {
		return errNotFound("tip name index is not initialized")
	}
	for _, e := range t.edges {
		e.bts = bitset.New(n)
	}
	return nil
}

// UpdateBitSet fills every edge's bipartition bitset by a post-order union
// pass from the root (spec.md S4.1/S9): child edges, starting from the
// leaves, propagate their leaf membership up to every ancestor edge whose
// child-side subtree contains them.
func (t *Tree) UpdateBitSet() error {
	rightEdges := make([]*Edge, 0, len(t.edges))
	for _, e := range t.root.br {
		rightEdges = rightEdges[:0]
		rightEdges = append(rightEdges, e)
		if err := t.fillRightBitSet(e, &rightEdges); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree) fillRightBitSet(e *Edge, ancestors *[]*Edge) error {
	if e.bts == nil {
		return errNotFound("bitsets not allocated; call ClearBitSets first")
	}
	if e.right.Tip() {
		idx, err := t.TipIndex(e.right.Name())
		if err != nil {
			return err
		}
		for _, anc := range *ancestors {
			anc.bts.Set(idx)
		}
		return nil
	}
	for _, child := range e.right.br {
		if child.left != e.right {
			continue
		}
		*ancestors = append(*ancestors, child)
		if err := t.fillRightBitSet(child, ancestors); err != nil {
			return err
		}
		*ancestors = (*ancestors)[:len(*ancestors)-1]
	}
	return nil
}

// ComputeDepths fills every node's Depth() (distance from the root, 0 at
// the root) by a pre-order pass.
func (t *Tree) ComputeDepths() {
	t.root.depth = 0
	t.computeDepthsRecur(t.root)
}

func (t *Tree) computeDepthsRecur(n *Node) {
	for _, e := range n.br {
		if e.left == n {
			e.right.depth = n.depth + 1
			t.computeDepthsRecur(e.right)
		}
	}
}

// ComputeAux fills subtree size, heavy child (ties broken by lowest child
// id) and light-leaf lists for every node, by a single post-order pass,
// per spec.md S3's invariant on heavy-child uniqueness and S4.3's
// definition of the light-leaf list.
func (t *Tree) ComputeAux() {
	t.computeAuxRecur(t.root)
}

func (t *Tree) computeAuxRecur(n *Node) int {
	if n.Tip() {
		n.subtreeSize = 1
		n.heavyChild = nil
		n.lightLeaves = nil
		return 1
	}
	var children []*Node
	total := 0
	for _, e := range n.br {
		if e.left == n {
			children = append(children, e.right)
			total += t.computeAuxRecur(e.right)
		}
	}
	n.subtreeSize = total

	var heavy *Node
	for _, c := range children {
		if heavy == nil || c.subtreeSize > heavy.subtreeSize ||
			(c.subtreeSize == heavy.subtreeSize && c.id < heavy.id) {
			heavy = c
		}
	}
	n.heavyChild = heavy

	light := make([]*Node, 0)
	for _, c := range children {
		if c == heavy {
			continue
		}
		light = append(light, leavesOf(c)...)
	}
	n.lightLeaves = light

	return total
}

func leavesOf(n *Node) []*Node {
	if n.Tip() {
		return []*Node{n}
	}
	out := make([]*Node, 0, n.subtreeSize)
	for _, e := range n.br {
		if e.left == n {
			out = append(out, leavesOf(e.right)...)
		}
	}
	return out
}

// ResolveRootTrifurcation collapses a root with more than two children into
// exactly two, by hanging everything but the root's first child off one new
// zero-length internal node, so that the rest of the tree is strictly binary
// below the root. This is the rapid TBE kernel's precondition (spec.md S4.3
// "binary trees only" for the heavy-path decomposition); the classical TBE
// and FBP kernels tolerate the raw multifurcating root and never call this.
// Returns an error if the root (or any other node) has more than three
// neighbours, since that is not a multifurcation this binarization resolves.
func (t *Tree) ResolveRootTrifurcation() error {
	for _, n := range t.nodes {
		if n != t.root && len(n.neigh) > 3 {
			return fmt.Errorf("node %d has too many children: binary trees only", n.id)
		}
	}
	if len(t.root.neigh) > 3 {
		return fmt.Errorf("root has too many children: binary trees only")
	}
	if len(t.root.neigh) <= 2 {
		return nil
	}

	rest := append([]*Node(nil), t.root.neigh[1:]...)
	restEdges := append([]*Edge(nil), t.root.br[1:]...)
	for _, c := range rest {
		if err := t.root.delNeighbor(c); err != nil {
			return err
		}
	}

	synth := t.NewNode()
	synthEdge := t.ConnectNodes(t.root, synth)
	synthEdge.SetLength(0)

	for i, c := range rest {
		e := restEdges[i]
		e.setLeft(synth)
		synth.neigh = append(synth.neigh, c)
		synth.br = append(synth.br, e)
		c.neigh[0] = synth
	}
	return nil
}

// ReinitIndexes rebuilds the tip index, bitsets, depths and heavy-path
// auxiliary fields; call after parsing a bootstrap tree against the
// reference's fixed leaf table.
func (t *Tree) ReinitIndexes() error {
	t.UpdateTipIndex()
	if err := t.ClearBitSets(); err != nil {
		return err
	}
	if err := t.UpdateBitSet(); err != nil {
		return err
	}
	t.ComputeDepths()
	t.ComputeAux()
	return nil
}

// String returns the tree's Newick representation.
func (t *Tree) String() string { return t.Newick() }

// Newick serializes the tree, overwriting each internal node's label with
// its edge's computed support (formatted to six decimals) if one is set,
// per spec.md S6.
func (t *Tree) Newick() string {
	var buf bytes.Buffer
	writeNewickNode(t.root, nil, &buf)
	buf.WriteString(";")
	return buf.String()
}

func formatSupport(s float64) string {
	return fmt.Sprintf("%.6f", s)
}

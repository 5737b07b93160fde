package support

import (
	"fmt"

	"github.com/evolbioinfo/booster/tree"
)

// pathNode is one node of a Heavy-Path Tree (HPT): either an internal
// node of a PathTree (PT) representing part of one heavy path, or a leaf
// of a PT that corresponds to an actual node of the bootstrap tree being
// decomposed (in which case .node is set, and .childHeavyPaths holds the
// PT root of the pendant heavy path hanging off that node, if any).
//
// This mirrors original_source/src/heavy_paths.{c,h}'s Path struct, with
// childHeavyPaths a slice rather than a single pointer. buildLeaf rejects
// nodes with more than two children and RapidTBE binarizes a trifurcating
// root before the HPT is built, so the slice holds at most one entry.
type pathNode struct {
	id                       int
	left, right, parent      *pathNode
	node                     *tree.Node
	childHeavyPaths          []*pathNode
	parentHeavyPath          *pathNode
	totalDepth               int
	diffPath, diffSubtree    int
	dMinPath, dMaxPath       int
	dMinSubtree, dMaxSubtree int
}

// HPT is the Heavy-Path Tree built once per bootstrap tree for the rapid
// TBE kernel (spec.md S4.3). It is owned exclusively by the worker
// processing that bootstrap tree and discarded with it (spec.md S5, S9).
type HPT struct {
	root     *pathNode
	leafOf   map[int]*pathNode // tree.Node.Id() -> its HPT leaf
	idSeq    int
}

// BuildHPT decomposes the tree rooted at root into heavy paths and links
// them into a single HPT, per spec.md S4.3's "Heavy-path decomposition".
// root's children must already have HeavyChild/SubtreeSize/LightLeaves
// computed (tree.Tree.ComputeAux).
func BuildHPT(root *tree.Node) (*HPT, error) {
	h := &HPT{leafOf: make(map[int]*pathNode)}
	p, err := h.decompose(root, 0)
	if err != nil {
		return nil, err
	}
	h.root = p
	return h, nil
}

func (h *HPT) newPath() *pathNode {
	p := &pathNode{id: h.idSeq, dMinPath: 1, dMinSubtree: 1, dMaxSubtree: 1}
	h.idSeq++
	return p
}

func heavyPathChain(root *tree.Node) []*tree.Node {
	chain := []*tree.Node{root}
	cur := root
	for !cur.Tip() {
		cur = cur.HeavyChild()
		chain = append(chain, cur)
	}
	return chain
}

func (h *HPT) decompose(root *tree.Node, depth int) (*pathNode, error) {
	chain := heavyPathChain(root)
	if len(chain) == 1 {
		return h.buildLeaf(chain[0], depth)
	}
	return h.partition(chain, depth)
}

func (h *HPT) partition(chain []*tree.Node, depth int) (*pathNode, error) {
	p := h.newPath()
	p.totalDepth = depth

	l1 := (len(chain) + 1) / 2 // ceil(len/2)
	var left *pathNode
	var err error
	if l1 == 1 {
		left, err = h.buildLeaf(chain[0], depth+1)
	} else {
		left, err = h.partition(chain[:l1], depth+1)
	}
	if err != nil {
		return nil, err
	}
	left.parent = p

	rest := chain[l1:]
	var right *pathNode
	if len(rest) == 1 {
		right, err = h.buildLeaf(rest[0], depth+1)
	} else {
		right, err = h.partition(rest, depth+1)
	}
	if err != nil {
		return nil, err
	}
	right.parent = p

	p.left, p.right = left, right
	p.dMinPath = min(left.dMinPath, right.dMinPath)
	p.dMaxPath = max(left.dMaxPath, right.dMaxPath)
	p.dMaxSubtree = max(left.dMaxSubtree, right.dMaxSubtree)
	return p, nil
}

// buildLeaf returns the PT leaf for node, hanging the pendant heavy path of
// its light child off it when node is internal. It returns an error if
// node has more than two children.
func (h *HPT) buildLeaf(node *tree.Node, depth int) (*pathNode, error) {
	p := h.newPath()
	p.totalDepth = depth
	p.node = node
	h.leafOf[node.Id()] = p
	p.dMaxPath = node.SubtreeSize()

	if !node.Tip() {
		children := childrenOf(node)
		if len(children) > 2 {
			return nil, fmt.Errorf("binary trees only")
		}
		for _, c := range children {
			if c == node.HeavyChild() {
				continue
			}
			pendant, err := h.decompose(c, depth+1)
			if err != nil {
				return nil, err
			}
			pendant.parentHeavyPath = p
			p.childHeavyPaths = append(p.childHeavyPaths, pendant)
		}
		if len(p.childHeavyPaths) > 0 {
			dmin, dmax := p.childHeavyPaths[0].dMinPath, p.childHeavyPaths[0].dMaxPath
			dmin = min(dmin, minOfSubtree(p.childHeavyPaths[0]))
			dmax = max(dmax, maxOfSubtree(p.childHeavyPaths[0]))
			for _, c := range p.childHeavyPaths[1:] {
				dmin = min(dmin, min(c.dMinPath, minOfSubtree(c)))
				dmax = max(dmax, max(c.dMaxPath, maxOfSubtree(c)))
			}
			p.dMinSubtree, p.dMaxSubtree = dmin, dmax
		}
		p.dMinPath = node.SubtreeSize()
		p.dMaxPath = node.SubtreeSize()
	}
	return p, nil
}

func minOfSubtree(p *pathNode) int {
	if isHPTLeaf(p) {
		return p.dMinPath
	}
	return p.dMinSubtree
}
func maxOfSubtree(p *pathNode) int {
	if isHPTLeaf(p) {
		return p.dMaxPath
	}
	return p.dMaxSubtree
}

func isHPTLeaf(p *pathNode) bool {
	return p.node != nil && len(p.childHeavyPaths) == 0
}

// childrenOf returns node's children (neighbours other than its parent,
// i.e. all neighbours at the root, all-but-neigh[0] elsewhere), in the
// same order as node.Edges().
func childrenOf(node *tree.Node) []*tree.Node {
	var out []*tree.Node
	for _, e := range node.Edges() {
		if e.Left() == node {
			out = append(out, e.Right())
		}
	}
	return out
}

// pathToRoot returns the chain of pathNodes from leaf up to the HPT root,
// traversing each PathTree to its root in turn before hopping to the
// parent heavy path, mirroring original_source's path_to_root_HPT.
func pathToRoot(leaf *pathNode) []*pathNode {
	pathlen := leaf.totalDepth + 1
	out := make([]*pathNode, 0, pathlen)
	w := leaf
	for w != nil {
		for {
			out = append(out, w)
			if w.parent == nil {
				break
			}
			w = w.parent
		}
		w = w.parentHeavyPath
	}
	return out
}

// hptRoot returns the root of the whole HPT reachable from leaf.
func hptRoot(leaf *pathNode) *pathNode {
	w := leaf
	var top *pathNode
	for w != nil {
		for w.parent != nil {
			w = w.parent
		}
		top = w
		w = w.parentHeavyPath
	}
	return top
}

// addLeaf implements spec.md S4.3's add_leaf operation, walking the HPT
// from root to leaf (applying and clearing lazy diff residues along the
// way) then back up (recomputing d_min/d_max aggregates), exactly as
// original_source/src/heavy_paths.c's add_leaf_HPT.
func addLeaf(leaf *pathNode) {
	path := pathToRoot(leaf)
	pathlen := len(path)

	for i := pathlen - 1; i > 0; i-- {
		if path[i].node != nil { // PT leaf (alt-tree node)
			path[i-1].diffPath += path[i].diffSubtree
			path[i-1].diffSubtree += path[i].diffSubtree
			path[i].dMinPath += path[i].diffPath - 1
			path[i].dMaxPath = path[i].dMinPath
		} else { // internal PT node
			path[i-1].diffPath += path[i].diffPath
			path[i-1].diffSubtree += path[i].diffSubtree

			if path[i-1] == path[i].right {
				path[i].left.diffPath += path[i].diffPath - 1
				path[i].left.diffSubtree += path[i].diffSubtree + 1
			} else {
				path[i].right.diffPath += path[i].diffPath + 1
				path[i].right.diffSubtree += path[i].diffSubtree + 1
			}
		}
		path[i].diffPath, path[i].diffSubtree = 0, 0
	}

	path[0].dMinPath += path[0].diffPath - 1
	path[0].dMaxPath = path[0].dMinPath
	path[0].diffPath, path[0].diffSubtree = 0, 0

	for i := 1; i < pathlen; i++ {
		if len(path[i].childHeavyPaths) > 0 {
			dmin, dmax := path[i].childHeavyPaths[0].dMinPath, path[i].childHeavyPaths[0].dMaxPath
			dmin = min(dmin, minOfSubtree(path[i].childHeavyPaths[0]))
			dmax = max(dmax, maxOfSubtree(path[i].childHeavyPaths[0]))
			for _, c := range path[i].childHeavyPaths[1:] {
				dmin = min(dmin, min(c.dMinPath, minOfSubtree(c)))
				dmax = max(dmax, max(c.dMaxPath, maxOfSubtree(c)))
			}
			path[i].dMinSubtree, path[i].dMaxSubtree = dmin, dmax
		} else if path[i].node == nil { // internal PT node
			path[i].dMinPath = min(path[i].left.dMinPath+path[i].left.diffPath,
				path[i].right.dMinPath+path[i].right.diffPath)
			path[i].dMaxPath = max(path[i].left.dMaxPath+path[i].left.diffPath,
				path[i].right.dMaxPath+path[i].right.diffPath)

			switch {
			case isHPTLeaf(path[i].left):
				path[i].dMinSubtree = path[i].right.dMinSubtree + path[i].right.diffSubtree
				path[i].dMaxSubtree = path[i].right.dMaxSubtree + path[i].right.diffSubtree
			case isHPTLeaf(path[i].right):
				path[i].dMinSubtree = path[i].left.dMinSubtree + path[i].left.diffSubtree
				path[i].dMaxSubtree = path[i].left.dMaxSubtree + path[i].left.diffSubtree
			default:
				path[i].dMinSubtree = min(path[i].left.dMinSubtree+path[i].left.diffSubtree,
					path[i].right.dMinSubtree+path[i].right.diffSubtree)
				path[i].dMaxSubtree = max(path[i].left.dMaxSubtree+path[i].left.diffSubtree,
					path[i].right.dMaxSubtree+path[i].right.diffSubtree)
			}
		}
	}
}

// resetLeaf restores the path visited by addLeaf back to baseline, walking
// from the given HPT leaf to the HPT root exactly once (spec.md's Open
// Question: the non-looping semantics, not the original's buggy
// `for`-containing-`while(1)` variant).
func resetLeaf(leaf *pathNode) {
	w := leaf
	for w != nil {
		w.diffPath, w.diffSubtree = 0, 0
		w.dMinPath = w.node.SubtreeSize()
		w.dMaxPath = w.dMinPath
		if !isHPTLeaf(w) && len(w.childHeavyPaths) > 0 {
			dmin, dmax := w.childHeavyPaths[0].dMinPath, w.childHeavyPaths[0].dMaxPath
			dmin = min(dmin, minOfSubtree(w.childHeavyPaths[0]))
			dmax = max(dmax, maxOfSubtree(w.childHeavyPaths[0]))
			for _, c := range w.childHeavyPaths[1:] {
				dmin = min(dmin, min(c.dMinPath, minOfSubtree(c)))
				dmax = max(dmax, max(c.dMaxPath, maxOfSubtree(c)))
			}
			w.dMinSubtree, w.dMaxSubtree = dmin, dmax
		}

		for w.parent != nil {
			w = w.parent
			w.diffPath, w.diffSubtree = 0, 0
			w.dMinPath = min(w.left.dMinPath, w.right.dMinPath)
			w.dMaxPath = max(w.left.dMaxPath, w.right.dMaxPath)
			w.dMinSubtree = 1
			w.dMaxSubtree = max(w.left.dMaxSubtree, w.right.dMaxSubtree)
			w.left.diffPath, w.left.diffSubtree = 0, 0
			w.right.diffPath, w.right.diffSubtree = 0, 0
		}

		w = w.parentHeavyPath
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Package bipindex implements the Bipartition Index of spec.md S4.1: a
// hash map from a canonicalised bipartition bitset to a reference-edge id,
// used by the FBP kernel to test unrooted bipartition membership in O(1)
// amortized time instead of O(|E_ref|) per bootstrap edge.
package bipindex

import (
	"github.com/fredericlemoine/bitset"

	bsx "github.com/evolbioinfo/booster/internal/bitset"
)

const defaultLoadFactor = 0.75

type entry struct {
	key *bitset.BitSet
	id  int
}

// Index is a chained hash map keyed by canonicalised bitset, values are
// reference-edge ids. It is built once from the reference tree and is
// read-only during the parallel FBP pass (spec.md S5).
type Index struct {
	buckets    [][]entry
	count      int
	loadFactor float64
}

// New returns an empty index sized for capacity entries (rounded up to the
// next power of two, minimum 16).
func New(capacity int) *Index {
	size := 16
	for size < capacity {
		size *= 2
	}
	return &Index{
		buckets:    make([][]entry, size),
		loadFactor: defaultLoadFactor,
	}
}

// Insert canonicalises b and stores id under it, rehashing first if the
// load factor threshold would be exceeded.
func (idx *Index) Insert(b *bitset.BitSet, id int) {
	if float64(idx.count+1)/float64(len(idx.buckets)) > idx.loadFactor {
		idx.rehash(len(idx.buckets) * 2)
	}
	key := bsx.Canonical(b)
	h := bsx.Hash(key) % uint32(len(idx.buckets))
	idx.buckets[h] = append(idx.buckets[h], entry{key: key, id: id})
	idx.count++
}

// Get canonicalises b and returns the stored edge id, or (0, false) if no
// edge of the reference tree has that bipartition.
func (idx *Index) Get(b *bitset.BitSet) (int, bool) {
	if len(idx.buckets) == 0 {
		return 0, false
	}
	key := bsx.Canonical(b)
	h := bsx.Hash(key) % uint32(len(idx.buckets))
	for _, e := range idx.buckets[h] {
		if bsx.Equal(e.key, key) {
			return e.id, true
		}
	}
	return 0, false
}

// Len returns the number of entries stored.
func (idx *Index) Len() int { return idx.count }

func (idx *Index) rehash(newSize int) {
	old := idx.buckets
	idx.buckets = make([][]entry, newSize)
	for _, bucket := range old {
		for _, e := range bucket {
			h := bsx.Hash(e.key) % uint32(newSize)
			idx.buckets[h] = append(idx.buckets[h], e)
		}
	}
}

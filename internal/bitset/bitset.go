// Package bitset provides the canonicalisation and hashing helpers used on
// top of the leaf bitsets that label every tree edge (see tree.Edge.Bitset).
//
// The underlying fixed-width bit vector itself is not reimplemented here:
// both the tree and index packages operate directly on
// github.com/fredericlemoine/bitset.BitSet, the same dependency the teacher
// tree package already imports. This package only adds the
// bipartition-specific operations spec.md calls out: canonicalisation (for
// FBP's unrooted matching) and a word-layout-independent 32-bit hash (for
// the bipartition index).
package bitset

import (
	"github.com/OneOfOne/xxhash"
	"github.com/fredericlemoine/bitset"
)

// Canonical returns the canonical form of b for unrooted bipartition
// matching: if bit 0 is set, the complement (over n bits) is returned
// instead, so that a bipartition and its complement always hash and
// compare equal. n must be the number of leaves the bitset is defined
// over (its Len()).
//
// b is never mutated; Canonical clones before complementing.
func Canonical(b *bitset.BitSet) *bitset.BitSet {
	if !b.Test(0) {
		return b
	}
	return Complement(b)
}

// Complement returns the bitwise complement of b over its own length.
func Complement(b *bitset.BitSet) *bitset.BitSet {
	n := b.Len()
	out := bitset.New(n)
	for i := uint(0); i < n; i++ {
		if !b.Test(i) {
			out.Set(i)
		}
	}
	return out
}

// Hash returns a deterministic 32-bit digest of b, computed from the
// ascending sequence of set leaf ids rather than from the underlying word
// array, so that two bitsets built with different internal capacities but
// the same set of leaves hash identically.
func Hash(b *bitset.BitSet) uint32 {
	h := xxhash.New32()
	var buf [4]byte
	n := b.Len()
	for i := uint(0); i < n; i++ {
		if b.Test(i) {
			putUint32(buf[:], uint32(i))
			h.Write(buf[:])
		}
	}
	return h.Sum32()
}

// Equal reports whether a and b have the same length and the same set
// bits. It is a thin wrapper kept here so callers needn't import the
// underlying bitset package just to compare two bipartitions.
func Equal(a, b *bitset.BitSet) bool {
	return a.Equal(b)
}

// SymmetricDifferenceCount returns the number of leaf indices set in exactly
// one of a, b.
func SymmetricDifferenceCount(a, b *bitset.BitSet) int {
	n := a.Len()
	count := 0
	for i := uint(0); i < n; i++ {
		if a.Test(i) != b.Test(i) {
			count++
		}
	}
	return count
}

// SymmetricDifferenceIndices returns the leaf indices set in exactly one of
// a, b, ascending.
func SymmetricDifferenceIndices(a, b *bitset.BitSet) []uint {
	n := a.Len()
	var out []uint
	for i := uint(0); i < n; i++ {
		if a.Test(i) != b.Test(i) {
			out = append(out, i)
		}
	}
	return out
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

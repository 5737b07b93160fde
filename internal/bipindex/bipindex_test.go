package bipindex_test

import (
	"testing"

	"github.com/fredericlemoine/bitset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evolbioinfo/booster/internal/bipindex"
)

func bs(n uint, bits ...uint) *bitset.BitSet {
	b := bitset.New(n)
	for _, i := range bits {
		b.Set(i)
	}
	return b
}

func TestInsertAndGetRoundTrip(t *testing.T) {
	idx := bipindex.New(4)
	a := bs(6, 1, 2)
	b := bs(6, 3, 4, 5)
	idx.Insert(a, 10)
	idx.Insert(b, 11)

	id, ok := idx.Get(a)
	require.True(t, ok)
	assert.Equal(t, 10, id)

	id, ok = idx.Get(b)
	require.True(t, ok)
	assert.Equal(t, 11, id)
}

func TestGetMatchesComplementBipartition(t *testing.T) {
	idx := bipindex.New(4)
	// inserted with bit 0 set: canonicalised to its complement internally.
	a := bs(6, 0, 1, 2)
	idx.Insert(a, 7)

	complement := bs(6, 3, 4, 5)
	id, ok := idx.Get(complement)
	require.True(t, ok)
	assert.Equal(t, 7, id)
}

func TestGetMissReturnsFalse(t *testing.T) {
	idx := bipindex.New(4)
	idx.Insert(bs(6, 1, 2), 1)

	_, ok := idx.Get(bs(6, 4, 5))
	assert.False(t, ok)
}

func TestRehashPreservesEntries(t *testing.T) {
	idx := bipindex.New(2)
	want := make(map[int]*bitset.BitSet)
	for i := 0; i < 40; i++ {
		b := bs(64, uint(i), uint(i+1))
		idx.Insert(b, i)
		want[i] = b
	}
	assert.Equal(t, 40, idx.Len())
	for id, b := range want {
		got, ok := idx.Get(b)
		require.True(t, ok)
		assert.Equal(t, id, got)
	}
}

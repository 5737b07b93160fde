package support_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evolbioinfo/booster/support"
)

// S1: identical bootstrap tree, driven through the full driver, gives
// support 1.0 on every internal edge for both FBP and TBE.
func TestDriver_FBP_S1(t *testing.T) {
	ref := mustTree(t, "((A,B),(C,D));")
	boots := []string{"((A,B),(C,D));"}

	d := support.NewDriver(ref, boots, support.Config{Algo: support.FBP, NumWorkers: 2})
	require.NoError(t, d.Run(context.Background()))
	d.ApplySupport()

	assert.Equal(t, 1, d.NbProcessed())
	assert.Equal(t, 0, d.NbSkipped())
	for _, e := range ref.InternalEdges() {
		s, ok := d.Support(e)
		require.True(t, ok)
		assert.Equal(t, 1.0, s)
	}
}

func TestDriver_TBE_S1(t *testing.T) {
	ref := mustTree(t, "((A,B),(C,D));")
	boots := []string{"((A,B),(C,D));"}

	d := support.NewDriver(ref, boots, support.Config{Algo: support.TBE, NumWorkers: 2})
	require.NoError(t, d.Run(context.Background()))
	d.ApplySupport()

	for _, e := range ref.InternalEdges() {
		s, ok := d.Support(e)
		require.True(t, ok)
		assert.Equal(t, 1.0, s)
	}
}

// S6: a bootstrap tree with a taxon name absent from the reference is
// skipped; T_effective stays 0 and supports are unavailable.
func TestDriver_SkipsLeafSetMismatch(t *testing.T) {
	ref := mustTree(t, "((A,B),(C,D));")
	boots := []string{"((A,B),(C,E));"}

	d := support.NewDriver(ref, boots, support.Config{Algo: support.TBE, NumWorkers: 1})
	require.NoError(t, d.Run(context.Background()))

	assert.Equal(t, 0, d.NbProcessed())
	assert.Equal(t, 1, d.NbSkipped())
	require.Error(t, d.SkipErrors())

	d.ApplySupport()
	for _, e := range ref.InternalEdges() {
		_, ok := d.Support(e)
		assert.False(t, ok)
	}
}

// Property 9: the final accumulators do not depend on worker count.
func TestDriver_ParallelDeterminism(t *testing.T) {
	refNwk := "(((A,B),C),((D,E),(F,G)));"
	boots := []string{
		"(((A,B),C),((D,E),(F,G)));",
		"(((A,G),C),((D,E),(F,B)));",
		"((((A,B),C),D),((E,F),G));",
		"(((A,B),C),((D,E),(F,G)));",
		"(((A,C),B),((D,E),(F,G)));",
	}

	results := make([][]float64, 0, 2)
	for _, workers := range []int{1, 4} {
		ref := mustTree(t, refNwk)
		d := support.NewDriver(ref, boots, support.Config{Algo: support.TBE, NumWorkers: workers})
		require.NoError(t, d.Run(context.Background()))
		d.ApplySupport()

		var got []float64
		for _, e := range ref.InternalEdges() {
			s, ok := d.Support(e)
			require.True(t, ok)
			got = append(got, s)
		}
		results = append(results, got)
	}
	assert.Equal(t, results[0], results[1])
}

// Property 5: support values always fall in [0,1].
func TestDriver_SupportBounds(t *testing.T) {
	refNwk := "(((A,B),C),((D,E),(F,G)));"
	boots := []string{
		"(((A,G),C),((D,E),(F,B)));",
		"((((A,B),C),D),((E,F),G));",
		"(((A,C),B),((D,E),(F,G)));",
	}
	for _, algo := range []support.Algorithm{support.FBP, support.TBE} {
		ref := mustTree(t, refNwk)
		d := support.NewDriver(ref, boots, support.Config{Algo: algo, NumWorkers: 3})
		require.NoError(t, d.Run(context.Background()))
		d.ApplySupport()
		for _, e := range ref.InternalEdges() {
			s, ok := d.Support(e)
			require.True(t, ok)
			assert.GreaterOrEqual(t, s, 0.0)
			assert.LessOrEqual(t, s, 1.0)
		}
	}
}

// Moved-species reporting (spec.md S4.3): when tracked, every taxon
// percentage must be in [0,100] and the taxa actually differing between
// the closest reference/bootstrap edges must receive nonzero credit.
func TestDriver_MovedSpeciesReporting(t *testing.T) {
	ref := mustTree(t, "((A,B),(C,D));")
	boots := []string{"((A,C),(B,D));"}

	d := support.NewDriver(ref, boots, support.Config{
		Algo:               support.TBE,
		MovedSpeciesCutoff: 1.0,
		NumWorkers:         1,
		TrackMovedSpecies:  true,
	})
	require.NoError(t, d.Run(context.Background()))
	d.ApplySupport()

	stats := d.TaxonTransferIndex()
	require.NotEmpty(t, stats)
	var total float64
	for _, s := range stats {
		assert.GreaterOrEqual(t, s.Percent, 0.0)
		assert.LessOrEqual(t, s.Percent, 100.0)
		total += s.Percent
	}
	assert.Greater(t, total, 0.0)
}

// Moved-species percentage is a mean of per-tree ratios (spec.md S4.3,
// matching original_source/booster.c's per-tree `/ nb_branches_close`
// followed by `/ num_trees`), not a ratio pooled across trees. In tree 2
// the first minimal bootstrap edge found for both root edges of the
// reference is {A,B}, so taxon C moves on 2 of its 3 close branches; tree 3
// excludes the A/B/C group entirely but still has exactly 1 close branch
// (E's), so the two trees' close-branch counts genuinely differ.
func TestDriver_MovedSpeciesReporting_IsMeanOfPerTreeRatios(t *testing.T) {
	ref := mustTree(t, "(((A,B),C),(D,(E,(F,G))));")
	boots := []string{
		"(((A,B),C),(D,(E,(F,G))));", // identical: 3 close branches, 0 moved
		"(((A,B),D),(C,(E,(F,G))));", // C<->D swap: 3 close branches, C moves on both root edges, D on none
		"(((A,E),D),(C,(B,(F,G))));", // A/B/C group scrambled: only 1 close branch (E's), E moves
	}

	d := support.NewDriver(ref, boots, support.Config{
		Algo:               support.TBE,
		MovedSpeciesCutoff: 0.5,
		NumWorkers:         1,
		TrackMovedSpecies:  true,
	})
	require.NoError(t, d.Run(context.Background()))
	require.Equal(t, 3, d.NbProcessed())
	d.ApplySupport()

	pct := make(map[string]float64)
	for _, s := range d.TaxonTransferIndex() {
		pct[s.Name] = s.Percent
	}

	// mean = (0/3 + 2/3 + 0/1) / 3 = 2/9
	assert.InDelta(t, 200.0/9.0, pct["C"], 1e-6)
	assert.InDelta(t, 0.0, pct["D"], 1e-6)
	// mean = (0/3 + 0/3 + 1/1) / 3 = 1/3
	assert.InDelta(t, 100.0/3.0, pct["E"], 1e-6)

	// A pooled ratio (sum counts / sum close-branch instances: 2/7 for C,
	// 1/7 for E) differs from the mean-of-ratios value for both taxa.
	pooledC, pooledE := 200.0/7.0, 100.0/7.0
	assert.NotInDelta(t, pooledE, pct["E"], 1e-6)
	assert.NotInDelta(t, pooledC, pct["C"], 1e-6)
}

func TestParseAlgorithm(t *testing.T) {
	algo, err := support.ParseAlgorithm("fbp")
	require.NoError(t, err)
	assert.Equal(t, support.FBP, algo)

	algo, err = support.ParseAlgorithm("TBE")
	require.NoError(t, err)
	assert.Equal(t, support.TBE, algo)

	_, err = support.ParseAlgorithm("bogus")
	assert.Error(t, err)
}

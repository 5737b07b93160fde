package support

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/evolbioinfo/booster/internal/bipindex"
	bsx "github.com/evolbioinfo/booster/internal/bitset"
	"github.com/evolbioinfo/booster/internal/logx"
	"github.com/evolbioinfo/booster/tree"
)

// Algorithm selects the support kernel the driver runs (spec.md S9 "tagged
// selection in the driver").
type Algorithm int

const (
	TBE Algorithm = iota
	FBP
)

func (a Algorithm) String() string {
	if a == FBP {
		return "fbp"
	}
	return "tbe"
}

// ParseAlgorithm parses the -a flag's argument.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(s) {
	case "tbe":
		return TBE, nil
	case "fbp":
		return FBP, nil
	default:
		return TBE, fmt.Errorf("unknown algorithm %q: must be tbe or fbp", s)
	}
}

// State is one stage of the driver's state machine (spec.md S4.6).
type State int

const (
	StateInit State = iota
	StateRefLoaded
	StateBootLoaded
	StateComputing
	StateAggregated
	StateEmitted
)

func (s State) String() string {
	return [...]string{"INIT", "REF_LOADED", "BOOT_LOADED", "COMPUTING", "AGGREGATED", "EMITTED"}[s]
}

// Config holds the driver's tunables, bound directly from CLI flags.
type Config struct {
	Algo               Algorithm
	MovedSpeciesCutoff float64
	NumWorkers         int
	// TrackMovedSpecies requests moved-taxa accounting (needs the
	// classical kernel's argmin edge, see DESIGN.md); it is enabled
	// whenever a stats file was requested.
	TrackMovedSpecies bool
}

// Driver owns the reference tree, the bootstrap string pool, the
// accumulators, and the state machine (spec.md S4.5/S4.6).
type Driver struct {
	ref         *tree.Tree
	bootStrings []string
	cfg         Config
	state       State

	bipIndex *bipindex.Index // FBP only

	fbpCount    []int64 // indexed by ref edge id
	tbeDistSum  []int64 // indexed by ref edge id
	nbProcessed int
	nbSkipped   int
	skipErrs    *multierror.Error

	movedCount []float64 // indexed by leaf (tip) index; sum over trees of (count_t / closeEdges_t)
}

// NewDriver constructs a driver over an already-parsed, already-indexed
// reference tree (ReinitIndexes must have run) and the raw bootstrap-tree
// strings (one per input line).
func NewDriver(ref *tree.Tree, bootStrings []string, cfg Config) *Driver {
	d := &Driver{
		ref:         ref,
		bootStrings: bootStrings,
		cfg:         cfg,
		state:       StateRefLoaded,
		fbpCount:    make([]int64, len(ref.Edges())),
		tbeDistSum:  make([]int64, len(ref.Edges())),
		movedCount:  make([]float64, ref.NbTaxa()),
	}
	if cfg.Algo == FBP {
		d.bipIndex = BuildBipartitionIndex(ref)
	}
	return d
}

// State returns the driver's current state.
func (d *Driver) State() State { return d.state }

// NbProcessed returns the number of bootstrap trees successfully processed
// (T in spec.md's formulas).
func (d *Driver) NbProcessed() int { return d.nbProcessed }

// NbSkipped returns the number of bootstrap trees skipped due to parse
// failure or leaf-set mismatch.
func (d *Driver) NbSkipped() int { return d.nbSkipped }

// SkipErrors returns the aggregated per-tree skip diagnostics, or nil if
// none were recorded.
func (d *Driver) SkipErrors() error {
	if d.skipErrs == nil {
		return nil
	}
	return d.skipErrs
}

type shadow struct {
	fbpCount   []int64
	tbeDist    []int64
	moved      []float64
	closeEdges int64
}

// Run dispatches every bootstrap string across a bounded pool of goroutines
// (spec.md S5's "dynamic scheduling... short trees do not starve long
// ones"), folds the results into the driver's accumulators, and advances
// the state machine through BOOT_LOADED, COMPUTING and AGGREGATED.
func (d *Driver) Run(ctx context.Context) error {
	d.state = StateBootLoaded

	n := len(d.bootStrings)
	shadows := make([]*shadow, n)
	skipErr := make([]error, n)

	workers := d.cfg.NumWorkers
	if workers < 1 {
		workers = 1
	}
	sem := semaphore.NewWeighted(int64(workers))
	g, gctx := errgroup.WithContext(ctx)

	d.state = StateComputing
	for i := 0; i < n; i++ {
		i := i
		if err := sem.Acquire(gctx, 1); err != nil {
			return err
		}
		g.Go(func() error {
			defer sem.Release(1)
			sh, err := d.processOne(d.bootStrings[i])
			if err != nil {
				skipErr[i] = err
				return nil
			}
			shadows[i] = sh
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		if skipErr[i] != nil {
			d.nbSkipped++
			d.skipErrs = multierror.Append(d.skipErrs, fmt.Errorf("bootstrap tree %d: %w", i, skipErr[i]))
			logx.LogWarning(fmt.Sprintf("skipping bootstrap tree %d: %v", i, skipErr[i]))
			continue
		}
		d.nbProcessed++
		d.reduce(shadows[i])
	}

	d.state = StateAggregated
	return nil
}

func (d *Driver) reduce(sh *shadow) {
	switch d.cfg.Algo {
	case FBP:
		for i, c := range sh.fbpCount {
			d.fbpCount[i] += c
		}
	case TBE:
		for i, s := range sh.tbeDist {
			d.tbeDistSum[i] += s
		}
		if d.cfg.TrackMovedSpecies {
			for i, c := range sh.moved {
				d.movedCount[i] += c
			}
		}
	}
}

// processOne parses one bootstrap-tree string against the fixed reference
// leaf table, runs the configured kernel, and returns its shadow
// contribution. Parse failure or a leaf-set mismatch is a non-fatal,
// per-tree error (spec.md S7c).
func (d *Driver) processOne(nwk string) (*shadow, error) {
	boot, err := tree.ParseNewickString(nwk)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	if err := d.ref.CompareTipIndexes(boot); err != nil {
		return nil, err
	}
	if err := boot.ReinitIndexes(); err != nil {
		return nil, err
	}

	switch d.cfg.Algo {
	case FBP:
		sh := &shadow{fbpCount: make([]int64, len(d.ref.Edges()))}
		FBPCount(boot, d.bipIndex, sh.fbpCount)
		return sh, nil
	default:
		return d.processOneTBE(boot)
	}
}

func (d *Driver) processOneTBE(boot *tree.Tree) (*shadow, error) {
	refEdges := d.ref.Edges()
	ntips := d.ref.NbTaxa()

	minDist := make([]int, len(refEdges))
	for i := range minDist {
		minDist[i] = ntips
	}

	sh := &shadow{tbeDist: make([]int64, len(refEdges))}

	if d.cfg.TrackMovedSpecies {
		// The rapid kernel never learns which bootstrap edge attained the
		// minimum (see DESIGN.md); run the classical kernel instead so
		// moved-taxa detail is available, accepting its higher cost.
		minDistEdge := make([]int, len(refEdges))
		for i := range minDistEdge {
			minDistEdge[i] = tree.NilID
		}
		if err := ClassicalTBE(d.ref, boot, minDist, minDistEdge); err != nil {
			return nil, err
		}
		sh.moved = make([]float64, ntips)
		d.accountMovedSpecies(boot, minDist, minDistEdge, sh)
		// accountMovedSpecies leaves sh.moved holding raw per-tree counts and
		// sh.closeEdges holding this tree's number of close branches; spec.md
		// S4.3's taxon percentage is the MEAN over trees of
		// count_t/closeEdges_t (matching original_source/booster.c:448's
		// `moved_species_counts[i] += moved_species[i] / nb_branches_close`),
		// not a pooled ratio, so normalise by this tree's own count here
		// before reduce sums it into the driver's accumulator.
		if sh.closeEdges > 0 {
			for i, c := range sh.moved {
				sh.moved[i] = c / float64(sh.closeEdges)
			}
		} else {
			sh.moved = make([]float64, ntips)
		}
	} else {
		if err := RapidTBE(d.ref, boot, minDist); err != nil {
			return nil, err
		}
	}

	for _, e := range refEdges {
		if e.Right().Tip() {
			continue
		}
		sh.tbeDist[e.Id()] = int64(minDist[e.Id()])
	}
	return sh, nil
}

// accountMovedSpecies implements spec.md S4.3's moved-species counters: for
// every reference edge whose normalised transfer distance is within the
// configured cutoff (and whose depth is large enough for the cutoff to be
// meaningful), the taxa that would need to move to realise the minimum are
// identified from the symmetric difference of the two bipartitions, and
// each such taxon's per-tree counter is incremented.
func (d *Driver) accountMovedSpecies(boot *tree.Tree, minDist []int, minDistEdge []int, sh *shadow) {
	cutoff := d.cfg.MovedSpeciesCutoff
	if cutoff <= 0 {
		return
	}
	minDepth := int(math.Ceil(1/cutoff + 1))
	bootEdges := boot.Edges()

	for _, e := range d.ref.Edges() {
		if e.Right().Tip() {
			continue
		}
		depth, err := e.TopoDepth()
		if err != nil || depth < 2 {
			continue
		}
		if depth < minDepth {
			continue
		}
		normalized := float64(minDist[e.Id()]) / float64(depth-1)
		if normalized > cutoff {
			continue
		}
		bestID := minDistEdge[e.Id()]
		if bestID < 0 || bestID >= len(bootEdges) {
			continue
		}
		sh.closeEdges++
		for _, idx := range movedTaxonIndices(e, bootEdges[bestID], minDist[e.Id()]) {
			if int(idx) < len(sh.moved) {
				sh.moved[idx]++
			}
		}
	}
}

// movedTaxonIndices returns the leaf indices in the symmetric difference of
// e's and best's bipartitions, choosing the orientation (best, or its
// complement) whose symmetric difference cardinality matches the already
// computed transfer distance h (spec.md S4.3).
func movedTaxonIndices(e, best *tree.Edge, h int) []uint {
	a, b := e.Bitset(), best.Bitset()
	if bsx.SymmetricDifferenceCount(a, b) == h {
		return bsx.SymmetricDifferenceIndices(a, b)
	}
	return bsx.SymmetricDifferenceIndices(a, bsx.Complement(b))
}

// Support returns the reference edge's computed support value, applying
// the FBP or TBE formula (spec.md S4.5) from the aggregated accumulators.
// It does not check the driver's state: until Run has processed at least
// one tree it reports false for every edge.
func (d *Driver) Support(e *tree.Edge) (float64, bool) {
	if e.Right().Tip() {
		return 0, false
	}
	switch d.cfg.Algo {
	case FBP:
		if d.nbProcessed == 0 {
			return 0, false
		}
		return float64(d.fbpCount[e.Id()]) / float64(d.nbProcessed), true
	default:
		depth, err := e.TopoDepth()
		if err != nil || depth < 2 || d.nbProcessed == 0 {
			return 0, false
		}
		avgDist := float64(d.tbeDistSum[e.Id()]) / float64(d.nbProcessed)
		return 1 - avgDist/float64(depth-1), true
	}
}

// ApplySupport writes every internal edge's computed support back onto the
// reference tree (spec.md S4.5/S6), advancing the state machine to
// EMITTED. Call once, after Run.
func (d *Driver) ApplySupport() {
	for _, e := range d.ref.Edges() {
		if s, ok := d.Support(e); ok {
			e.SetSupport(s)
		}
	}
	d.state = StateEmitted
}

// TaxonTransferIndex returns, for every leaf name, the mean over bootstrap
// trees of (count_t / closeEdges_t) * 100 -- spec.md S4.3's taxon
// percentage -- sorted by name. Empty if moved-species tracking was not
// requested.
func (d *Driver) TaxonTransferIndex() []TaxonStat {
	if !d.cfg.TrackMovedSpecies || d.nbProcessed == 0 {
		return nil
	}
	out := make([]TaxonStat, 0, len(d.movedCount))
	for _, leaf := range d.ref.Leaves() {
		idx, err := d.ref.TipIndex(leaf.Name())
		if err != nil {
			continue
		}
		pct := d.movedCount[idx] / float64(d.nbProcessed) * 100
		out = append(out, TaxonStat{Name: leaf.Name(), Percent: pct})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// TaxonStat is one line of the stats file's "Taxa transfer indexes" section.
type TaxonStat struct {
	Name    string
	Percent float64
}

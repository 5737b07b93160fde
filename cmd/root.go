// Copyright © 2016 NAME HERE <EMAIL ADDRESS>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cmd is the booster command-line surface: a single flat cobra
// root command (spec.md S6's CLI table is not a subcommand tree, unlike
// the teacher's nested stats/draw commands), binding flags directly to
// package-level vars the way the teacher's cmd package does.
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/evolbioinfo/booster/internal/logx"
	"github.com/evolbioinfo/booster/support"
	"github.com/evolbioinfo/booster/tree"
)

const version = "1.0.0"

var (
	refTreeFile        string
	bootTreesFile      string
	outTreeFile        string
	statsFile          string
	algoName           string
	movedSpeciesCutoff float64
	nbWorkers          int
	quiet              bool
	prngSeed           int64
	printVersion       bool
)

// RootCmd is the booster entry point: parse the reference tree and the
// bootstrap-tree file, run the configured support driver, and write the
// annotated tree (and optional stats file).
var RootCmd = &cobra.Command{
	Use:   "booster",
	Short: "Compute TBE/FBP branch support from a reference tree and bootstrap trees",
	Long: `booster assigns a branch-support value to every internal edge of a
reference tree, given a set of bootstrap trees over the same leaf set,
using either the Felsenstein Bootstrap Proportion (FBP) or the Transfer
Bootstrap Expectation (TBE).`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if printVersion {
			fmt.Println("booster " + version)
			return nil
		}
		logx.Quiet(quiet)
		return run()
	},
}

func init() {
	RootCmd.Flags().StringVarP(&refTreeFile, "input", "i", "", "Reference tree file (required)")
	RootCmd.Flags().StringVarP(&bootTreesFile, "boot", "b", "", "Bootstrap trees file, one Newick per line (required)")
	RootCmd.Flags().StringVarP(&outTreeFile, "out", "o", "stdout", "Output tree file")
	RootCmd.Flags().IntVarP(&nbWorkers, "workers", "@", 1, "Number of worker goroutines")
	RootCmd.Flags().StringVarP(&statsFile, "stats", "S", "", "Stats file (optional)")
	RootCmd.Flags().StringVarP(&algoName, "algo", "a", "tbe", "Algorithm: tbe or fbp")
	RootCmd.Flags().Float64VarP(&movedSpeciesCutoff, "dist-cutoff", "d", 0.3, "TBE moved-species normalised distance cutoff")
	RootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output")
	RootCmd.Flags().Int64VarP(&prngSeed, "seed", "s", time.Now().UnixNano(), "PRNG seed")
	RootCmd.Flags().BoolVarP(&printVersion, "version", "v", false, "Print version and exit")
}

func run() error {
	if refTreeFile == "" || bootTreesFile == "" {
		return errors.New("booster: -i and -b are required")
	}
	if nbWorkers < 1 {
		nbWorkers = 1
	}
	if max := runtime.NumCPU(); nbWorkers > max {
		nbWorkers = max
	}

	algo, err := support.ParseAlgorithm(algoName)
	if err != nil {
		return errors.WithStack(err)
	}

	ref, err := readRefTree(refTreeFile)
	if err != nil {
		return errors.Wrap(err, "reading reference tree")
	}

	bootLines, err := readBootstrapTrees(bootTreesFile)
	if err != nil {
		return errors.Wrap(err, "reading bootstrap trees")
	}

	cfg := support.Config{
		Algo:               algo,
		MovedSpeciesCutoff: movedSpeciesCutoff,
		NumWorkers:         nbWorkers,
		TrackMovedSpecies:  algo == support.TBE && statsFile != "",
	}

	logx.Progress(fmt.Sprintf("%d bootstrap trees read, %d workers, algorithm %s", len(bootLines), nbWorkers, algo))

	driver := support.NewDriver(ref, bootLines, cfg)
	if err := driver.Run(context.Background()); err != nil {
		return errors.Wrap(err, "computing support")
	}
	if d := driver.SkipErrors(); d != nil {
		logx.LogWarning(fmt.Sprintf("%d bootstrap trees skipped: %v", driver.NbSkipped(), d))
	}
	logx.Progress(fmt.Sprintf("%d/%d bootstrap trees used", driver.NbProcessed(), len(bootLines)))

	driver.ApplySupport()

	if err := writeOutTree(outTreeFile, ref); err != nil {
		return errors.Wrap(err, "writing output tree")
	}

	if statsFile != "" {
		if err := writeStats(statsFile, ref, driver, algo); err != nil {
			return errors.Wrap(err, "writing stats file")
		}
	}

	return nil
}

func readRefTree(path string) (*tree.Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<28)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, errors.New("reference tree file is empty")
	}

	t, err := tree.ParseNewickString(scanner.Text())
	if err != nil {
		return nil, err
	}
	if err := t.ReinitIndexes(); err != nil {
		return nil, err
	}
	return t, nil
}

// readBootstrapTrees reads one Newick string per line, growing the backing
// array geometrically (spec.md S6: "initial 10, doubled on overflow" --
// Go's append already does this, so no manual doubling is written).
func readBootstrapTrees(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	lines := make([]string, 0, 10)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<28)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, errors.New("bootstrap trees file is empty")
	}
	return lines, nil
}

func writeOutTree(path string, t *tree.Tree) error {
	var w io.Writer
	if path == "" || path == "stdout" {
		w = os.Stdout
	} else {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	_, err := fmt.Fprintln(w, t.Newick())
	return err
}

// writeStats writes the tab-separated stats file (spec.md S6): for TBE,
// EdgeId/Depth/MeanMinDist per internal edge followed by the taxa
// transfer-index section; for FBP, EdgeId/Count per internal edge.
func writeStats(path string, ref *tree.Tree, driver *support.Driver, algo support.Algorithm) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	defer w.Flush()

	if algo == support.FBP {
		fmt.Fprintln(w, "EdgeId\tCount")
		for _, e := range ref.Edges() {
			if e.Right().Tip() {
				continue
			}
			if s, ok := driver.Support(e); ok {
				fmt.Fprintf(w, "%d\t%d\n", e.Id(), int64(s*float64(driver.NbProcessed())+0.5))
			}
		}
		return nil
	}

	fmt.Fprintln(w, "EdgeId\tDepth\tMeanMinDist")
	for _, e := range ref.Edges() {
		if e.Right().Tip() {
			continue
		}
		depth, err := e.TopoDepth()
		if err != nil {
			continue
		}
		s, ok := driver.Support(e)
		if !ok {
			continue
		}
		meanMinDist := (1 - s) * float64(depth-1)
		fmt.Fprintf(w, "%d\t%d\t%.6f\n", e.Id(), depth, meanMinDist)
	}

	fmt.Fprintln(w, "Taxa transfer indexes:")
	for _, ts := range driver.TaxonTransferIndex() {
		fmt.Fprintf(w, "%s : %.6f\n", ts.Name, ts.Percent)
	}
	return nil
}

// Copyright © 2023-2024 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/kclassify/kclassify/kclassify/util"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Filter read classifications with confidence thresholds",
	Long: `Filter read classifications with confidence thresholds

Classification tables produced by "kclassify classify" are filtered again,
without rescanning any reads. Thresholds can be read from a TOML file
(--config), and flags explicitly given override the values in the file.

A read passes if all conditions are met:
  1. It is assigned to two references (best and second best).
  2. The number of singleton k-mers >= --min-kmers.
  3. The read length >= --min-length.
  4. The sum of percentages of the two references >= --min-pct.
  5. The percentage of the second reference >= --min-second-pct.
  6. The two reference labels share the first --prefix-len characters.
  7. The two references are in the --pairs file, if given.

Output:
  Passed rows are written in the order of input files, with an extra
  column "Label": the two reference labels sorted and joined with "_".
  No file is created if no reads pass, and an existing one is removed.

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)

		var fhLog *os.File
		if opt.Log2File {
			fhLog = addLog(opt.LogFile, opt.Verbose)
		}
		timeStart := time.Now()
		defer func() {
			if opt.Verbose || opt.Log2File {
				log.Info()
				log.Infof("elapsed time: %s", time.Since(timeStart))
				log.Info()
			}
			if opt.Log2File {
				fhLog.Close()
			}
		}()

		fopt := getFilterOptions(cmd)

		if getFlagBool(cmd, "dump-config") {
			data, err := DumpFilterConfig(fopt)
			checkError(err)
			os.Stdout.Write(data)
			return
		}

		outFile := getFlagString(cmd, "out-file")
		if outFile == "" {
			checkError(fmt.Errorf("flag -o/--out-file is needed"))
		}

		files := getFileListFromArgsAndFile(cmd, args, true, "infile-list", true)
		if len(files) == 1 && isStdin(files[0]) {
			checkError(fmt.Errorf("classification tables needed"))
		}

		labels, err := ReadClassificationLabels(files[0])
		checkError(errors.Wrap(err, files[0]))
		checkError(fopt.Check(labels))

		if opt.Verbose || opt.Log2File {
			log.Infof("kclassify v%s", VERSION)
			log.Info()
			log.Infof("  %d classification table(s) given", len(files))
			logFilterOptions(fopt)
		}

		stats, err := FilterTables(files, outFile, fopt, labels, opt.CompressionLevel)
		checkError(err)

		reportFilterStats(stats, outFile, opt.Verbose || opt.Log2File)
	},
}

func init() {
	RootCmd.AddCommand(filterCmd)

	filterCmd.Flags().StringP("infile-list", "X", "",
		formatFlagUsage(`File of input file list (one file per line). If given, they are appended to files from CLI arguments.`))

	filterCmd.Flags().StringP("out-file", "o", FilteredFile,
		formatFlagUsage(`Output file. Add ".gz" suffix for gzipped output.`))

	filterCmd.Flags().BoolP("dump-config", "", false,
		formatFlagUsage(`Print the effective thresholds in TOML and exit.`))

	addFilterFlags(filterCmd)

	filterCmd.SetUsageTemplate(usageTemplate("[flags] <classification tables>"))
}

func addFilterFlags(cmd *cobra.Command) {
	dft := DefaultFilterOptions()

	cmd.Flags().StringP("config", "c", "",
		formatFlagUsage(`TOML file of thresholds. Flags explicitly given override values in the file.`))

	cmd.Flags().IntP("min-kmers", "m", dft.MinKmers,
		formatFlagUsage(`Minimum number of singleton k-mers in a read.`))

	cmd.Flags().IntP("min-length", "l", dft.MinLength,
		formatFlagUsage(`Minimum read length.`))

	cmd.Flags().IntP("min-pct", "", dft.MinPct,
		formatFlagUsage(`Minimum percentage of the best two references.`))

	cmd.Flags().IntP("min-second-pct", "", dft.MinSecondPct,
		formatFlagUsage(`Minimum percentage of the second best reference.`))

	cmd.Flags().IntP("prefix-len", "p", dft.PrefixLen,
		formatFlagUsage(`Length of label prefix the two references must share. 0 for no checking.`))

	cmd.Flags().StringP("pairs", "P", dft.PairsFile,
		formatFlagUsage(`File of allowed reference pairs, with two tab-delimited columns.`))
}

func getFilterOptions(cmd *cobra.Command) *FilterOptions {
	fopt := DefaultFilterOptions()

	if file := getFlagString(cmd, "config"); file != "" {
		checkError(errors.Wrap(ReadFilterConfig(file, fopt), file))
	}

	flags := cmd.Flags()
	if flags.Changed("min-kmers") {
		fopt.MinKmers = getFlagNonNegativeInt(cmd, "min-kmers")
	}
	if flags.Changed("min-length") {
		fopt.MinLength = getFlagNonNegativeInt(cmd, "min-length")
	}
	if flags.Changed("min-pct") {
		fopt.MinPct = getFlagNonNegativeInt(cmd, "min-pct")
	}
	if flags.Changed("min-second-pct") {
		fopt.MinSecondPct = getFlagNonNegativeInt(cmd, "min-second-pct")
	}
	if flags.Changed("prefix-len") {
		fopt.PrefixLen = getFlagNonNegativeInt(cmd, "prefix-len")
	}
	if flags.Changed("pairs") {
		fopt.PairsFile = getFlagString(cmd, "pairs")
	}
	return fopt
}

func logFilterOptions(fopt *FilterOptions) {
	log.Info()
	log.Info("thresholds:")
	log.Infof("  minimum number of singleton k-mers: %d", fopt.MinKmers)
	log.Infof("  minimum read length: %d", fopt.MinLength)
	log.Infof("  minimum percentage of the best two references: %d", fopt.MinPct)
	log.Infof("  minimum percentage of the second reference: %d", fopt.MinSecondPct)
	log.Infof("  length of shared label prefix: %d", fopt.PrefixLen)
	if fopt.PairsFile != "" {
		log.Infof("  allowed reference pairs: %s", fopt.PairsFile)
	}
	log.Info()
}

func reportFilterStats(stats *FilterStats, outFile string, verbose bool) {
	if stats.Passed == 0 {
		log.Warningf("no reads passed the filter, %d reads in %d file(s) checked", stats.Reads, stats.Files)
		return
	}
	if !verbose {
		return
	}

	mean, median := stats.KmersSummary()
	log.Infof("%d of %d reads passed the filter (%d unclassified)", stats.Passed, stats.Reads, stats.Unclassified)
	log.Infof("  singleton k-mers of passed reads: mean %.1f, median %.0f", mean, median)
	pairs := make([]string, 0, len(stats.Pairs))
	for pair := range stats.Pairs {
		pairs = append(pairs, pair)
	}
	util.SortStrings(pairs)
	for _, pair := range pairs {
		log.Infof("  %s: %d", pair, stats.Pairs[pair])
	}
	log.Infof("filtered reads saved: %s", outFile)
}

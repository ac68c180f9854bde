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
	"sync/atomic"
	"time"

	"github.com/kclassify/kclassify/kclassify/db"
	"github.com/pkg/errors"
	"github.com/shenwei356/bio/seq"
	"github.com/spf13/cobra"
)

var breakpointCmd = &cobra.Command{
	Use:   "breakpoint",
	Short: "Map singleton k-mers along sequences for locating breakpoints",
	Long: `Map singleton k-mers along sequences for locating breakpoints

Every singleton k-mer found along the sequences is reported, so the
positions where the matching reference changes can be located. Inputs
can be reads or assemblies.

Output (in -O/--out-dir), for each input file:
  1. <basename>.classifications.bed, columns (0-based start, end exclusive):
       ID, start, end, reference:k-mer
     The k-mer is the integer code, or the sequence with --decode.
  2. With --segments:
     <basename>.segments.bed: runs of hits of the same reference, with
       distances between hits <= --max-gap and at least --min-hits hits.
       Columns: ID, start, end, reference, hits.
     <basename>.breakpoints.tsv: junctions between adjacent segments of
       different references. A junction overlapped by a segment of a third
       reference is marked as ambiguous.

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		seq.ValidateSeq = false

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

		dbFile := getFlagString(cmd, "db")
		if dbFile == "" {
			checkError(fmt.Errorf("flag -d/--db is needed"))
		}
		outDir := getFlagString(cmd, "out-dir")
		if outDir == "" {
			checkError(fmt.Errorf("flag -O/--out-dir is needed"))
		}
		force := getFlagBool(cmd, "force")

		bopt := &BreakpointOptions{
			Decode: getFlagBool(cmd, "decode"),

			Segments: getFlagBool(cmd, "segments"),
			MaxGap:   getFlagPositiveInt(cmd, "max-gap"),
			MinHits:  getFlagPositiveInt(cmd, "min-hits"),

			CompressionLevel: opt.CompressionLevel,
		}
		checkError(CheckBreakpointOptions(bopt))

		files := getFileListFromArgsAndFile(cmd, args, true, "infile-list", true)
		_names := make(map[string]string, len(files))
		for _, file := range files {
			name := breakpointOutFile(outDir, file, "")
			if f, ok := _names[name]; ok {
				checkError(fmt.Errorf("input files with the same basename: %s, %s", f, file))
			}
			_names[name] = file
		}

		if opt.Verbose || opt.Log2File {
			log.Infof("kclassify v%s", VERSION)
			log.Info()
			log.Infof("loading database: %s", dbFile)
		}

		kdb, err := db.Load(dbFile)
		checkError(errors.Wrap(err, dbFile))

		idx, err := db.NewIndex(kdb)
		checkError(errors.Wrap(err, dbFile))

		if opt.Verbose || opt.Log2File {
			log.Infof("  k-mer size: %d, references: %d, singleton k-mers: %d", idx.K, idx.NumRefs(), idx.Len())
			log.Info()
			log.Infof("  %d input file(s) given", len(files))
			log.Infof("  output directory: %s", outDir)
			if bopt.Segments {
				log.Infof("  segments: maximum gap: %d, minimum hits: %d", bopt.MaxGap, bopt.MinHits)
			}
			log.Info()
			log.Infof("mapping singleton k-mers ...")
		}

		makeOutDir(outDir, force, "out-dir", opt.Verbose)

		var nHits int64
		err = runFileTasks(files, &TaskOptions{NumCPUs: opt.NumCPUs, Verbose: opt.Verbose},
			func(i int, file string) error {
				n, err := MapFile(idx, file, outDir, bopt)
				atomic.AddInt64(&nHits, int64(n))
				return err
			})
		checkError(err)

		if opt.Verbose || opt.Log2File {
			log.Infof("%d singleton k-mer hits in %d file(s) saved to %s", nHits, len(files), outDir)
		}
	},
}

func init() {
	RootCmd.AddCommand(breakpointCmd)

	breakpointCmd.Flags().StringP("db", "d", "",
		formatFlagUsage(`Database file built by "kclassify build".`))

	breakpointCmd.Flags().StringP("infile-list", "X", "",
		formatFlagUsage(`File of input file list (one file per line). If given, they are appended to files from CLI arguments.`))

	breakpointCmd.Flags().StringP("out-dir", "O", "",
		formatFlagUsage(`Output directory.`))

	breakpointCmd.Flags().BoolP("force", "", false,
		formatFlagUsage(`Overwrite existed output directory.`))

	breakpointCmd.Flags().BoolP("decode", "", false,
		formatFlagUsage(`Output k-mer sequences instead of the integer codes.`))

	breakpointCmd.Flags().BoolP("segments", "s", false,
		formatFlagUsage(`Also output segments of the same references and breakpoints between them.`))

	breakpointCmd.Flags().IntP("max-gap", "g", 1000,
		formatFlagUsage(`Maximum distance between two hits in a segment.`))

	breakpointCmd.Flags().IntP("min-hits", "m", 3,
		formatFlagUsage(`Minimum number of hits in a segment.`))

	breakpointCmd.SetUsageTemplate(usageTemplate("-d <db file> -O <out dir> [flags] <seq files>"))
}

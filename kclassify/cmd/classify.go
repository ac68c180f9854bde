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
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/kclassify/kclassify/kclassify/db"
	"github.com/pkg/errors"
	"github.com/shenwei356/bio/seq"
	"github.com/spf13/cobra"
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify reads with singleton k-mers and filter confident assignments",
	Long: `Classify reads with singleton k-mers and filter confident assignments

Every k-mer of a read found in the database is counted for its reference.
The two references with the most hits (ties go to the one listed earlier
in the database) are reported with their percentages of all hits:

    refBest,refSecond:pctBest,pctSecond

A read is assigned only if the two references hold more than half of the
hits, otherwise it is "Unclassified:pctBest,pctSecond".

Output (in -O/--out-dir):
  1. <basename>.read_classifications.tsv[.gz] for each input file, columns:
       ID, Length, Kmers, Classification, and the hits of all references.
  2. filtered.tsv: assigned reads passing the thresholds (see "kclassify
     filter"), with an extra column "Label". It is not created if no reads
     pass, or if --no-filter is given.

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

		// ---------------------------------------------------------------
		// flags

		dbFile := getFlagString(cmd, "db")
		if dbFile == "" {
			checkError(fmt.Errorf("flag -d/--db is needed"))
		}
		outDir := getFlagString(cmd, "out-dir")
		if outDir == "" {
			checkError(fmt.Errorf("flag -O/--out-dir is needed"))
		}
		force := getFlagBool(cmd, "force")
		gzipped := getFlagBool(cmd, "gzip")
		noFilter := getFlagBool(cmd, "no-filter")
		fopt := getFilterOptions(cmd)

		files := getFileListFromArgsAndFile(cmd, args, true, "infile-list", true)

		outFiles := make([]string, len(files))
		_names := make(map[string]string, len(files))
		for i, file := range files {
			outFiles[i] = classificationFile(outDir, file, gzipped)
			if f, ok := _names[outFiles[i]]; ok {
				checkError(fmt.Errorf("input files with the same basename: %s, %s", f, file))
			}
			_names[outFiles[i]] = file
		}

		// ---------------------------------------------------------------
		// database

		if opt.Verbose || opt.Log2File {
			log.Infof("kclassify v%s", VERSION)
			log.Info()
			log.Infof("loading database: %s", dbFile)
		}

		kdb, err := db.Load(dbFile)
		checkError(errors.Wrap(err, dbFile))

		idx, err := db.NewIndex(kdb)
		checkError(errors.Wrap(err, dbFile))

		if !noFilter {
			_, err = NewFilter(fopt, kdb.Labels)
			checkError(err)
		}

		if opt.Verbose || opt.Log2File {
			log.Infof("  k-mer size: %d, references: %d, singleton k-mers: %d", idx.K, idx.NumRefs(), idx.Len())
			log.Info()
			log.Infof("  %d input file(s) given", len(files))
			log.Infof("  output directory: %s", outDir)
			if !noFilter {
				logFilterOptions(fopt)
			}
			log.Infof("classifying reads ...")
		}

		makeOutDir(outDir, force, "out-dir", opt.Verbose)

		// ---------------------------------------------------------------
		// classify

		var nReads, nAssigned int64
		err = runFileTasks(files, &TaskOptions{NumCPUs: opt.NumCPUs, Verbose: opt.Verbose},
			func(i int, file string) error {
				stats, err := ClassifyFile(idx, file, outFiles[i], opt.CompressionLevel)
				if err != nil {
					return err
				}
				atomic.AddInt64(&nReads, int64(stats.Reads))
				atomic.AddInt64(&nAssigned, int64(stats.Assigned))
				return nil
			})
		checkError(err)

		if opt.Verbose || opt.Log2File {
			log.Infof("%d reads classified, %d assigned", nReads, nAssigned)
			log.Info()
		}

		if noFilter {
			return
		}

		// ---------------------------------------------------------------
		// filter, after all tables are written

		if opt.Verbose || opt.Log2File {
			log.Infof("filtering read classifications ...")
		}
		outFile := filepath.Join(outDir, FilteredFile)
		stats, err := FilterTables(outFiles, outFile, fopt, kdb.Labels, opt.CompressionLevel)
		checkError(err)

		reportFilterStats(stats, outFile, opt.Verbose || opt.Log2File)
	},
}

func init() {
	RootCmd.AddCommand(classifyCmd)

	classifyCmd.Flags().StringP("db", "d", "",
		formatFlagUsage(`Database file built by "kclassify build".`))

	classifyCmd.Flags().StringP("infile-list", "X", "",
		formatFlagUsage(`File of input file list (one file per line). If given, they are appended to files from CLI arguments.`))

	classifyCmd.Flags().StringP("out-dir", "O", "",
		formatFlagUsage(`Output directory.`))

	classifyCmd.Flags().BoolP("force", "", false,
		formatFlagUsage(`Overwrite existed output directory.`))

	classifyCmd.Flags().BoolP("gzip", "z", false,
		formatFlagUsage(`Gzip the per-file classification tables.`))

	classifyCmd.Flags().BoolP("no-filter", "", false,
		formatFlagUsage(`Do not filter the classifications.`))

	addFilterFlags(classifyCmd)

	classifyCmd.SetUsageTemplate(usageTemplate("-d <db file> -O <out dir> [flags] <read files>"))
}

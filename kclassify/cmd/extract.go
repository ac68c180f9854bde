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

	"github.com/pkg/errors"
	"github.com/shenwei356/bio/seq"
	"github.com/spf13/cobra"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract reads passing the filter and relabel them",
	Long: `Extract reads passing the filter and relabel them

Read files are scanned again, and reads in the filtered table (-t/--table)
are written as FASTA records with the pair labels in the headers:

    >label_id      (default)
    >label         (--label-only)

Read files are processed in parallel and the records are concatenated in
the order of input files. A read id appearing in more than one file is
written only once, from the first file.

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

		tableFile := getFlagString(cmd, "table")
		if tableFile == "" {
			checkError(fmt.Errorf("flag -t/--table is needed"))
		}
		outFile := getFlagString(cmd, "out-file")
		lineWidth := getFlagNonNegativeInt(cmd, "line-width")
		labelOnly := getFlagBool(cmd, "label-only")

		files := getFileListFromArgsAndFile(cmd, args, true, "infile-list", true)

		if opt.Verbose || opt.Log2File {
			log.Infof("kclassify v%s", VERSION)
			log.Info()
			log.Infof("reading filtered table: %s", tableFile)
		}

		ids, err := ReadFilteredTable(tableFile)
		checkError(errors.Wrap(err, tableFile))
		if len(ids) == 0 {
			log.Warningf("no reads in the filtered table: %s, nothing to extract", tableFile)
			return
		}

		if opt.Verbose || opt.Log2File {
			log.Infof("  %d reads to extract", len(ids))
			log.Infof("  %d input file(s) given", len(files))
			log.Info()
			log.Infof("extracting reads ...")
		}

		stats, err := Extract(ids, files, outFile, &ExtractOptions{
			NumCPUs: opt.NumCPUs,
			Verbose: opt.Verbose,

			LabelOnly: labelOnly,
			LineWidth: lineWidth,

			CompressionLevel: opt.CompressionLevel,
		})
		checkError(err)

		if opt.Verbose || opt.Log2File {
			for i, file := range files {
				log.Infof("  %d reads extracted from %s", stats.PerFile[i], file)
			}
			if stats.Duplicated > 0 {
				log.Infof("  %d duplicated reads skipped", stats.Duplicated)
			}
			log.Infof("%d reads saved to %s", stats.Written, outFile)
		}
		if stats.Written < len(ids) {
			log.Warningf("%d reads in the filtered table are not found", len(ids)-stats.Written)
		}
	},
}

func init() {
	RootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringP("table", "t", "",
		formatFlagUsage(`Filtered table from "kclassify classify" or "kclassify filter".`))

	extractCmd.Flags().StringP("infile-list", "X", "",
		formatFlagUsage(`File of input file list (one file per line). If given, they are appended to files from CLI arguments.`))

	extractCmd.Flags().StringP("out-file", "o", "extracted.fasta",
		formatFlagUsage(`Output file. Add ".gz" suffix for gzipped output. "-" for stdout.`))

	extractCmd.Flags().IntP("line-width", "w", 0,
		formatFlagUsage(`Line width of sequences. 0 for no wrapping.`))

	extractCmd.Flags().BoolP("label-only", "", false,
		formatFlagUsage(`Only use the pair label as the header, without the read id.`))

	extractCmd.SetUsageTemplate(usageTemplate("-t <filtered table> [flags] <read files>"))
}

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
	"io"
	"sort"
	"strings"

	"github.com/kclassify/kclassify/kclassify/db"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show information of a database",
	Long: `Show information of a database

`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)

		if len(args) != 1 {
			checkError(fmt.Errorf("one database file needed"))
		}
		dbFile := args[0]

		tabular := getFlagBool(cmd, "tabular")
		outFile := getFlagString(cmd, "out-file")

		kdb, err := db.Load(dbFile)
		checkError(errors.Wrap(err, dbFile))

		outfh, gw, w, err := outStream(outFile, strings.HasSuffix(outFile, ".gz"), opt.CompressionLevel)
		checkError(err)
		defer func() {
			checkError(closeOutStream(outfh, gw, w))
		}()

		if tabular {
			writeInfoTabular(outfh, kdb)
		} else {
			writeInfo(outfh, kdb)
		}
	},
}

func writeInfoTabular(w io.Writer, kdb *db.Database) {
	fmt.Fprintf(w, "index\tlabel\tkmers\n")
	for i, label := range kdb.Labels {
		fmt.Fprintf(w, "%d\t%s\t%d\n", i+1, label, len(kdb.Kmers[i]))
	}
}

func writeInfo(w io.Writer, kdb *db.Database) {
	fmt.Fprintf(w, "K-mer size: %d\n", kdb.K)
	fmt.Fprintf(w, "Number of references: %d\n", kdb.NumRefs())
	fmt.Fprintf(w, "Number of singleton k-mers: %d\n", kdb.NumKmers())

	counts := kdb.Counts()
	x := make([]float64, len(counts))
	for i, c := range counts {
		x[i] = float64(c)
	}
	sort.Float64s(x)
	if len(x) > 0 {
		fmt.Fprintf(w, "Singleton k-mers per reference: min %.0f, median %.0f, max %.0f\n",
			x[0], stat.Quantile(0.5, stat.Empirical, x, nil), x[len(x)-1])
	}

	for i, label := range kdb.Labels {
		fmt.Fprintf(w, "  %d: %s (%d mers)\n", i+1, label, counts[i])
	}
}

func init() {
	RootCmd.AddCommand(infoCmd)

	infoCmd.Flags().StringP("out-file", "o", "-",
		formatFlagUsage(`Out file, supports and recommends a ".gz" suffix ("-" for stdout).`))

	infoCmd.Flags().BoolP("tabular", "T", false,
		formatFlagUsage(`Output per-reference counts in a tab-delimited table.`))

	infoCmd.SetUsageTemplate(usageTemplate("<db file>"))
}

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
	"bufio"
	"bytes"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/kclassify/kclassify/kclassify/db"
	"github.com/kclassify/kclassify/kclassify/tag"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/shenwei356/xopen"
	"gonum.org/v1/gonum/stat"
)

// FilteredFile is the name of the aggregated table of reads passing the filter.
const FilteredFile = "filtered.tsv"

// FilterOptions contains the thresholds for accepting assigned reads.
type FilterOptions struct {
	MinKmers     int    `toml:"min-kmers" comment:"minimum number of singleton k-mers in a read"`
	MinLength    int    `toml:"min-length" comment:"minimum read length"`
	MinPct       int    `toml:"min-pct" comment:"minimum percentage of the best two references"`
	MinSecondPct int    `toml:"min-second-pct" comment:"minimum percentage of the second best reference"`
	PrefixLen    int    `toml:"prefix-len" comment:"length of label prefix the two references must share, 0 for no checking"`
	PairsFile    string `toml:"pairs" comment:"file of allowed reference pairs, two tab-delimited columns"`
}

// DefaultFilterOptions returns the default thresholds.
func DefaultFilterOptions() *FilterOptions {
	return &FilterOptions{
		MinKmers:     100,
		MinLength:    0,
		MinPct:       50,
		MinSecondPct: 10,
		PrefixLen:    0,
	}
}

// ReadFilterConfig reads thresholds from a TOML file.
// Keys absent from the file keep their values in opt.
func ReadFilterConfig(file string, opt *FilterOptions) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	return toml.Unmarshal(data, opt)
}

// DumpFilterConfig returns the thresholds in TOML.
func DumpFilterConfig(opt *FilterOptions) ([]byte, error) {
	return toml.Marshal(opt)
}

// Check checks the thresholds against the reference labels.
func (opt *FilterOptions) Check(labels []string) error {
	if opt.MinKmers < 0 {
		return fmt.Errorf("invalid minimum number of k-mers: %d", opt.MinKmers)
	}
	if opt.MinLength < 0 {
		return fmt.Errorf("invalid minimum read length: %d", opt.MinLength)
	}
	if opt.MinPct < 0 || opt.MinPct > 100 {
		return fmt.Errorf("invalid minimum percentage of the best two references: %d, valid range: [0, 100]", opt.MinPct)
	}
	if opt.MinSecondPct < 0 || opt.MinSecondPct > 100 {
		return fmt.Errorf("invalid minimum percentage of the second best reference: %d, valid range: [0, 100]", opt.MinSecondPct)
	}
	if opt.PrefixLen < 0 {
		return fmt.Errorf("invalid prefix length: %d", opt.PrefixLen)
	}
	if opt.PrefixLen > 0 {
		for _, label := range labels {
			if len(label) < opt.PrefixLen {
				return fmt.Errorf("prefix length %d exceeds the length of reference label: %s", opt.PrefixLen, label)
			}
		}
	}
	return nil
}

// Filter accepts or rejects classified reads.
type Filter struct {
	opt    *FilterOptions
	labels []string

	pairs map[string]struct{} // nil for allowing all pairs
}

// NewFilter checks the thresholds and reads the allowed pairs.
func NewFilter(opt *FilterOptions, labels []string) (*Filter, error) {
	if err := opt.Check(labels); err != nil {
		return nil, err
	}
	f := &Filter{opt: opt, labels: labels}
	if opt.PairsFile != "" {
		pairs, err := readPairs(opt.PairsFile)
		if err != nil {
			return nil, errors.Wrap(err, opt.PairsFile)
		}
		f.pairs = pairs
	}
	return f, nil
}

// Pass returns the pair label of the read if it passes all thresholds.
func (f *Filter) Pass(length, kmers int, t tag.Tag) (string, bool) {
	if !t.Assigned {
		return "", false
	}
	opt := f.opt
	if kmers < opt.MinKmers || length < opt.MinLength ||
		t.BestPct+t.SecondPct < opt.MinPct || t.SecondPct < opt.MinSecondPct {
		return "", false
	}

	a, b := f.labels[t.Best], f.labels[t.Second]
	if opt.PrefixLen > 0 && a[:opt.PrefixLen] != b[:opt.PrefixLen] {
		return "", false
	}

	label := tag.PairLabel(a, b)
	if f.pairs != nil {
		if _, ok := f.pairs[label]; !ok {
			return "", false
		}
	}
	return label, true
}

// FilterStats summarizes a filtering run.
type FilterStats struct {
	Files        int
	Reads        int
	Unclassified int
	Passed       int

	Pairs map[string]int // pair label -> number of reads

	passedKmers []float64
}

// KmersSummary returns the mean and median numbers of k-mers of passed reads.
func (s *FilterStats) KmersSummary() (mean, median float64) {
	if len(s.passedKmers) == 0 {
		return 0, 0
	}
	x := make([]float64, len(s.passedKmers))
	copy(x, s.passedKmers)
	sort.Float64s(x)
	return stat.Mean(x, nil), stat.Quantile(0.5, stat.Empirical, x, nil)
}

// classificationTable reads the header of a classification table.
type classificationTable struct {
	file    string
	header  string
	labels  []string
	scanner *bufio.Scanner
	fh      *xopen.Reader
}

func openClassificationTable(file string) (*classificationTable, error) {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return nil, err
	}
	scanner := bufio.NewScanner(fh)
	scanner.Buffer(make([]byte, 0, 1<<16), 1<<30)
	if !scanner.Scan() {
		fh.Close()
		if err = scanner.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("empty classification table")
	}
	header := strings.TrimRight(scanner.Text(), "\r\n")
	fields := strings.Split(header, "\t")
	if len(fields) < 5 || fields[0] != "ID" || fields[1] != "Length" ||
		fields[2] != "Kmers" || fields[3] != "Classification" {
		fh.Close()
		return nil, fmt.Errorf("invalid header of classification table: %s", header)
	}
	return &classificationTable{
		file:    file,
		header:  header,
		labels:  fields[4:],
		scanner: scanner,
		fh:      fh,
	}, nil
}

// ReadClassificationLabels returns the reference labels in the header
// of a classification table.
func ReadClassificationLabels(file string) ([]string, error) {
	t, err := openClassificationTable(file)
	if err != nil {
		return nil, err
	}
	t.fh.Close()
	return t.labels, nil
}

// FilterTables filters rows of classification tables in the order of files,
// and writes passed rows with an extra column of pair labels to outFile.
// Headers of all tables must be the same. If no reads pass, outFile is
// not created, and an existing one is removed.
func FilterTables(files []string, outFile string, opt *FilterOptions, labels []string, compressionLevel int) (*FilterStats, error) {
	f, err := NewFilter(opt, labels)
	if err != nil {
		return nil, err
	}
	labelIdx := make(map[string]int, len(labels))
	for i, label := range labels {
		if _, ok := labelIdx[label]; !ok {
			labelIdx[label] = i
		}
	}
	header := string(bytes.TrimRight(classificationHeader(labels), "\n"))

	tmpFile := outFile + db.TmpFileExt
	outfh, gw, w, err := outStream(tmpFile, strings.HasSuffix(outFile, ".gz"), compressionLevel)
	if err != nil {
		return nil, err
	}
	done := false
	defer func() {
		if !done {
			closeOutStream(outfh, gw, w)
			os.Remove(tmpFile)
		}
	}()

	outfh.WriteString(header)
	outfh.WriteString("\tLabel\n")

	stats := &FilterStats{Pairs: make(map[string]int, 64)}
	for _, file := range files {
		if err = filterTable(file, header, labelIdx, f, outfh, stats); err != nil {
			return nil, errors.Wrap(err, file)
		}
		stats.Files++
	}

	done = true
	if err = closeOutStream(outfh, gw, w); err != nil {
		os.Remove(tmpFile)
		return nil, err
	}
	if stats.Passed == 0 {
		os.Remove(tmpFile)
		if err = os.Remove(outFile); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		return stats, nil
	}
	if err = os.Rename(tmpFile, outFile); err != nil {
		os.Remove(tmpFile)
		return nil, err
	}
	return stats, nil
}

func filterTable(file string, header string, labelIdx map[string]int, f *Filter,
	outfh *bufio.Writer, stats *FilterStats) error {

	t, err := openClassificationTable(file)
	if err != nil {
		return err
	}
	defer t.fh.Close()
	if t.header != header {
		return fmt.Errorf("reference labels in the header differ from the others")
	}

	nFields := 4 + len(t.labels)
	items := make([]string, nFields)
	var line, label string
	var length, kmers, lineNum int
	var ok bool
	var tg tag.Tag
	lineNum = 1
	for t.scanner.Scan() {
		lineNum++
		line = strings.TrimRight(t.scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		items = items[:nFields]
		stringSplitNByByte(line, '\t', nFields, &items)
		if len(items) != nFields {
			return fmt.Errorf("line %d: %d columns expected", lineNum, nFields)
		}
		stats.Reads++

		if length, err = strconv.Atoi(items[1]); err != nil {
			return fmt.Errorf("line %d: invalid length: %s", lineNum, items[1])
		}
		if kmers, err = strconv.Atoi(items[2]); err != nil {
			return fmt.Errorf("line %d: invalid number of k-mers: %s", lineNum, items[2])
		}
		if tg, err = tag.Parse(items[3], labelIdx); err != nil {
			return fmt.Errorf("line %d: %s: %s", lineNum, err, items[3])
		}
		if !tg.Assigned {
			stats.Unclassified++
			continue
		}

		if label, ok = f.Pass(length, kmers, tg); !ok {
			continue
		}
		stats.Passed++
		stats.Pairs[label]++
		stats.passedKmers = append(stats.passedKmers, float64(kmers))

		outfh.WriteString(line)
		outfh.Write(_mark_tab)
		outfh.WriteString(label)
		outfh.Write(_mark_newline)
	}
	return t.scanner.Err()
}

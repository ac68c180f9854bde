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
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kclassify/kclassify/kclassify/db"
	"github.com/kclassify/kclassify/kclassify/kmer"
	"github.com/kclassify/kclassify/kclassify/tag"
	"github.com/shenwei356/bio/seqio/fastx"
)

// ClassificationFileSuffix is the suffix of per-file classification tables.
const ClassificationFileSuffix = ".read_classifications.tsv"

// ClassifyStats contains the numbers of reads in a file.
type ClassifyStats struct {
	Reads    int
	Assigned int
}

// classificationHeader returns the header line of classification tables.
func classificationHeader(labels []string) []byte {
	var buf bytes.Buffer
	buf.WriteString("ID\tLength\tKmers\tClassification")
	for _, label := range labels {
		buf.Write(_mark_tab)
		buf.WriteString(label)
	}
	buf.Write(_mark_newline)
	return buf.Bytes()
}

// classificationFile returns the path of the classification table of a read file.
func classificationFile(outDir, file string, gzipped bool) string {
	var name string
	if isStdin(file) {
		name = "stdin"
	} else {
		name, _, _ = filepathTrimExtension(filepath.Base(file), nil)
	}
	name += ClassificationFileSuffix
	if gzipped {
		name += ".gz"
	}
	return filepath.Join(outDir, name)
}

// countHits counts the k-mers of a sequence by their owner references,
// and returns the total number of k-mers found in the index.
func countHits(idx *db.Index, s []byte, counts []int) (int, error) {
	clear(counts)
	var total int
	err := kmer.Each(s, idx.K, func(_ int, code uint64) {
		if i, ok := idx.Lookup(code); ok {
			counts[i]++
			total++
		}
	})
	return total, err
}

// ClassifyFile classifies every read of a file and writes one row per read
// in the order of input. The output is removed if any error occurs.
func ClassifyFile(idx *db.Index, file, outFile string, compressionLevel int) (stats *ClassifyStats, err error) {
	fastxReader, err := fastx.NewReader(nil, file, "")
	if err != nil {
		return nil, fmt.Errorf("failed to read seq file: %s", err)
	}
	defer fastxReader.Close()

	outfh, gw, w, err := outStream(outFile, strings.HasSuffix(outFile, ".gz"), compressionLevel)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err2 := closeOutStream(outfh, gw, w); err == nil {
			err = err2
		}
		if err != nil {
			os.Remove(outFile)
			stats = nil
		}
	}()

	labels := idx.Labels
	outfh.Write(classificationHeader(labels))

	stats = &ClassifyStats{}
	counts := make([]int, idx.NumRefs())
	buf := make([]byte, 0, 32)

	var record *fastx.Record
	var total, c int
	var t tag.Tag
	for {
		record, err = fastxReader.Read()
		if err != nil {
			if err == io.EOF {
				err = nil
				break
			}
			return nil, fmt.Errorf("read seq %d: %s", stats.Reads, err)
		}
		stats.Reads++

		if total, err = countHits(idx, record.Seq.Seq, counts); err != nil {
			return nil, err
		}
		t = tag.Compute(counts)
		if t.Assigned {
			stats.Assigned++
		}

		outfh.Write(record.ID)
		outfh.Write(_mark_tab)
		buf = strconv.AppendInt(buf[:0], int64(len(record.Seq.Seq)), 10)
		outfh.Write(buf)
		outfh.Write(_mark_tab)
		buf = strconv.AppendInt(buf[:0], int64(total), 10)
		outfh.Write(buf)
		outfh.Write(_mark_tab)
		outfh.WriteString(t.Format(labels))
		for _, c = range counts {
			outfh.Write(_mark_tab)
			buf = strconv.AppendInt(buf[:0], int64(c), 10)
			outfh.Write(buf)
		}
		outfh.Write(_mark_newline)
	}

	return stats, nil
}

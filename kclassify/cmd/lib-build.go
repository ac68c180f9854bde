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
	"regexp"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/kclassify/kclassify/kclassify/db"
	"github.com/kclassify/kclassify/kclassify/kmer"
	"github.com/shenwei356/bio/seqio/fastx"
)

// BuildOptions contains the options for building a database.
type BuildOptions struct {
	// general
	NumCPUs int
	Verbose bool // show progress bar

	K int // k-mer size

	// reference
	ReRefName    *regexp.Regexp   // for extracting reference names from file names
	ReSeqExclude []*regexp.Regexp // sequences to skip
}

// CheckBuildOptions checks the options.
func CheckBuildOptions(opt *BuildOptions) error {
	if opt.K < 1 || opt.K > kmer.MaxK {
		return fmt.Errorf("invalid k value: %d, valid range: [1, %d]", opt.K, kmer.MaxK)
	}
	if opt.NumCPUs < 1 {
		return fmt.Errorf("invalid number of threads: %d", opt.NumCPUs)
	}
	return nil
}

// KmerSet returns distinct canonical k-mers of all sequences in a file.
func KmerSet(file string, k int, reSeqExclude []*regexp.Regexp) (*roaring64.Bitmap, error) {
	fastxReader, err := fastx.NewReader(nil, file, "")
	if err != nil {
		return nil, fmt.Errorf("failed to read seq file: %s", err)
	}
	defer fastxReader.Close()

	set := roaring64.New()
	add := func(_ int, code uint64) { set.Add(code) }

	var record *fastx.Record
	var ignoreSeq bool
	var re *regexp.Regexp
	var i int
	for {
		record, err = fastxReader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("read seq %d: %s", i, err)
		}
		i++

		if len(reSeqExclude) > 0 {
			ignoreSeq = false
			for _, re = range reSeqExclude {
				if re.Match(record.Name) {
					ignoreSeq = true
					break
				}
			}
			if ignoreSeq {
				continue
			}
		}

		if err = kmer.Each(record.Seq.Seq, k, add); err != nil {
			return nil, err
		}
	}

	set.RunOptimize()
	return set, nil
}

// ResolveSingletons returns, for every set, the values absent from all
// other sets, in ascending order. The sets are not modified.
func ResolveSingletons(sets []*roaring64.Bitmap) [][]uint64 {
	seen := roaring64.New()
	multi := roaring64.New() // values in >= 2 sets
	for _, set := range sets {
		multi.Or(roaring64.And(seen, set))
		seen.Or(set)
	}

	singletons := make([][]uint64, len(sets))
	for i, set := range sets {
		singletons[i] = roaring64.AndNot(set, multi).ToArray()
	}
	return singletons
}

// BuildDatabase computes k-mer sets of reference files in parallel and
// keeps k-mers present in only one reference. It also returns the numbers
// of distinct k-mers of the references. Nothing is returned if any file
// fails.
func BuildDatabase(files []string, opt *BuildOptions) (*db.Database, []uint64, error) {
	if err := CheckBuildOptions(opt); err != nil {
		return nil, nil, err
	}
	if len(files) == 0 {
		return nil, nil, db.ErrNoReferences
	}

	labels := make([]string, len(files))
	for i, file := range files {
		if isStdin(file) {
			labels[i] = "stdin"
		} else {
			labels[i] = refName(file, opt.ReRefName)
		}
	}

	sets := make([]*roaring64.Bitmap, len(files))
	err := runFileTasks(files, &TaskOptions{NumCPUs: opt.NumCPUs, Verbose: opt.Verbose},
		func(i int, file string) (err error) {
			sets[i], err = KmerSet(file, opt.K, opt.ReSeqExclude)
			return err
		})
	if err != nil {
		return nil, nil, err
	}

	distinct := make([]uint64, len(sets))
	for i, set := range sets {
		distinct[i] = set.GetCardinality()
	}

	kdb, err := db.NewDatabase(opt.K, labels, ResolveSingletons(sets))
	if err != nil {
		return nil, nil, err
	}
	return kdb, distinct, nil
}

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
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/kclassify/kclassify/kclassify/db"
	"github.com/kclassify/kclassify/kclassify/kmer"
	"github.com/rdleal/intervalst/interval"
	"github.com/shenwei356/bio/seqio/fastx"
)

// BreakpointOptions contains the options for mapping singleton k-mers
// along sequences.
type BreakpointOptions struct {
	Decode bool // output k-mer sequences instead of integers

	Segments bool // also compute segments and breakpoints
	MaxGap   int  // maximum distance between two hits of a segment
	MinHits  int  // minimum number of hits of a segment

	CompressionLevel int
}

// CheckBreakpointOptions checks the options.
func CheckBreakpointOptions(opt *BreakpointOptions) error {
	if opt.MaxGap < 1 {
		return fmt.Errorf("invalid maximum gap: %d, should be >= 1", opt.MaxGap)
	}
	if opt.MinHits < 1 {
		return fmt.Errorf("invalid minimum hits: %d, should be >= 1", opt.MinHits)
	}
	return nil
}

// Segment is a region of a sequence covered by the hits of one reference.
// Start is 0-based and End is exclusive.
type Segment struct {
	Ref        int
	Start, End int
	Hits       int

	last int // start of the last hit
}

// Breakpoint is the junction between two adjacent segments of different
// references. Ambiguous means the junction is also covered by a segment of
// a third reference.
type Breakpoint struct {
	Left, Right *Segment
	Start, End  int
	Ambiguous   bool
}

// segmenter chains hits of the same reference into segments.
type segmenter struct {
	k, maxGap, minHits int

	open     map[int]*Segment
	segments []*Segment
}

func newSegmenter(k, maxGap, minHits int) *segmenter {
	return &segmenter{k: k, maxGap: maxGap, minHits: minHits, open: make(map[int]*Segment, 8)}
}

func (sg *segmenter) reset() {
	clear(sg.open)
	sg.segments = sg.segments[:0]
}

func (sg *segmenter) add(pos, ref int) {
	s, ok := sg.open[ref]
	if ok && pos-s.last <= sg.maxGap {
		s.last = pos
		s.End = pos + sg.k
		s.Hits++
		return
	}
	if ok {
		sg.close(s)
	}
	sg.open[ref] = &Segment{Ref: ref, Start: pos, End: pos + sg.k, Hits: 1, last: pos}
}

func (sg *segmenter) close(s *Segment) {
	if s.Hits >= sg.minHits {
		sg.segments = append(sg.segments, s)
	}
}

// finish returns all segments sorted by location.
func (sg *segmenter) finish() []*Segment {
	for _, s := range sg.open {
		sg.close(s)
	}
	clear(sg.open)

	segs := sg.segments
	sort.Slice(segs, func(i, j int) bool {
		if segs[i].Start != segs[j].Start {
			return segs[i].Start < segs[j].Start
		}
		if segs[i].End != segs[j].End {
			return segs[i].End < segs[j].End
		}
		return segs[i].Ref < segs[j].Ref
	})
	return segs
}

// FindBreakpoints returns junctions between adjacent segments of
// different references, which should be sorted by location.
func FindBreakpoints(segs []*Segment) []*Breakpoint {
	if len(segs) < 2 {
		return nil
	}

	// closed intervals of segments of each reference
	cmpFn := func(x, y int) int { return x - y }
	trees := make(map[int]*interval.SearchTree[int, int], 8)
	for i, s := range segs {
		tree, ok := trees[s.Ref]
		if !ok {
			tree = interval.NewSearchTree[int, int](cmpFn)
			trees[s.Ref] = tree
		}
		tree.Insert(s.Start, s.End-1, i)
	}

	bps := make([]*Breakpoint, 0, 4)
	var left, right *Segment
	for i := 1; i < len(segs); i++ {
		left, right = segs[i-1], segs[i]
		if left.Ref == right.Ref {
			continue
		}
		bp := &Breakpoint{Left: left, Right: right}
		if left.End <= right.Start {
			bp.Start, bp.End = left.End, right.Start
		} else {
			bp.Start, bp.End = right.Start, left.End
		}

		for ref, tree := range trees {
			if ref == left.Ref || ref == right.Ref {
				continue
			}
			if _, ok := tree.AnyIntersection(bp.Start, bp.End); ok {
				bp.Ambiguous = true
				break
			}
		}
		bps = append(bps, bp)
	}
	return bps
}

func breakpointOutFile(outDir, file, suffix string) string {
	var name string
	if isStdin(file) {
		name = "stdin"
	} else {
		name, _, _ = filepathTrimExtension(filepath.Base(file), nil)
	}
	return filepath.Join(outDir, name+suffix)
}

type bedWriter struct {
	file string
	fh   *bufio.Writer
	gw   io.WriteCloser
	w    *os.File
}

func newBedWriter(file string, level int) (*bedWriter, error) {
	fh, gw, w, err := outStream(file, false, level)
	if err != nil {
		return nil, err
	}
	return &bedWriter{file: file, fh: fh, gw: gw, w: w}, nil
}

func (b *bedWriter) Close() error {
	return closeOutStream(b.fh, b.gw, b.w)
}

// MapFile writes one interval for every singleton k-mer found along the
// sequences of a file, and optionally segments and breakpoints.
// It returns the number of hits.
func MapFile(idx *db.Index, file, outDir string, opt *BreakpointOptions) (nHits int, err error) {
	fastxReader, err := fastx.NewReader(nil, file, "")
	if err != nil {
		return 0, fmt.Errorf("failed to read seq file: %s", err)
	}
	defer fastxReader.Close()

	writers := make([]*bedWriter, 0, 3)
	defer func() {
		for _, b := range writers {
			if err2 := b.Close(); err == nil {
				err = err2
			}
		}
		if err != nil {
			for _, b := range writers {
				os.Remove(b.file)
			}
		}
	}()

	bed, err := newBedWriter(breakpointOutFile(outDir, file, ".classifications.bed"), opt.CompressionLevel)
	if err != nil {
		return 0, err
	}
	writers = append(writers, bed)

	var segBed, bpTSV *bedWriter
	var sg *segmenter
	if opt.Segments {
		if segBed, err = newBedWriter(breakpointOutFile(outDir, file, ".segments.bed"), opt.CompressionLevel); err != nil {
			return 0, err
		}
		writers = append(writers, segBed)
		if bpTSV, err = newBedWriter(breakpointOutFile(outDir, file, ".breakpoints.tsv"), opt.CompressionLevel); err != nil {
			return 0, err
		}
		writers = append(writers, bpTSV)
		bpTSV.fh.WriteString("ID\tStart\tEnd\tLeft\tRight\tLeftHits\tRightHits\tAmbiguous\n")

		sg = newSegmenter(idx.K, opt.MaxGap, opt.MinHits)
	}

	labels := idx.Labels
	k := idx.K
	buf := make([]byte, 0, 32)
	outfh := bed.fh

	var record *fastx.Record
	var i int
	for {
		record, err = fastxReader.Read()
		if err != nil {
			if err == io.EOF {
				err = nil
				break
			}
			return nHits, fmt.Errorf("read seq %d: %s", i, err)
		}
		i++

		if sg != nil {
			sg.reset()
		}

		err = kmer.Each(record.Seq.Seq, k, func(pos int, code uint64) {
			ref, ok := idx.Lookup(code)
			if !ok {
				return
			}
			nHits++

			outfh.Write(record.ID)
			outfh.Write(_mark_tab)
			buf = strconv.AppendInt(buf[:0], int64(pos), 10)
			outfh.Write(buf)
			outfh.Write(_mark_tab)
			buf = strconv.AppendInt(buf[:0], int64(pos+k), 10)
			outfh.Write(buf)
			outfh.Write(_mark_tab)
			outfh.WriteString(labels[ref])
			outfh.WriteByte(':')
			if opt.Decode {
				outfh.Write(kmer.Decode(code, k))
			} else {
				buf = strconv.AppendUint(buf[:0], code, 10)
				outfh.Write(buf)
			}
			outfh.Write(_mark_newline)

			if sg != nil {
				sg.add(pos, ref)
			}
		})
		if err != nil {
			return nHits, err
		}

		if sg == nil {
			continue
		}

		segs := sg.finish()
		for _, s := range segs {
			fmt.Fprintf(segBed.fh, "%s\t%d\t%d\t%s\t%d\n", record.ID, s.Start, s.End, labels[s.Ref], s.Hits)
		}
		for _, bp := range FindBreakpoints(segs) {
			fmt.Fprintf(bpTSV.fh, "%s\t%d\t%d\t%s\t%s\t%d\t%d\t%v\n", record.ID, bp.Start, bp.End,
				labels[bp.Left.Ref], labels[bp.Right.Ref], bp.Left.Hits, bp.Right.Hits, bp.Ambiguous)
		}
	}

	return nHits, nil
}

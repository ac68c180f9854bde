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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSegmentsAndBreakpoints(t *testing.T) {
	sg := newSegmenter(3, 5, 2)
	for _, h := range [][2]int{{0, 0}, {1, 0}, {2, 0}, {4, 2}, {10, 1}, {11, 1}, {12, 1}} {
		sg.add(h[0], h[1])
	}
	segs := sg.finish()

	// the only hit of reference 2 is not a segment
	require.Len(t, segs, 2)
	require.Equal(t, Segment{Ref: 0, Start: 0, End: 5, Hits: 3, last: 2}, *segs[0])
	require.Equal(t, Segment{Ref: 1, Start: 10, End: 15, Hits: 3, last: 12}, *segs[1])

	bps := FindBreakpoints(segs)
	require.Len(t, bps, 1)
	require.Equal(t, 5, bps[0].Start)
	require.Equal(t, 10, bps[0].End)
	require.False(t, bps[0].Ambiguous)

	// a large gap splits hits of the same reference
	sg.reset()
	for _, pos := range []int{0, 1, 20, 21} {
		sg.add(pos, 0)
	}
	segs = sg.finish()
	require.Len(t, segs, 2)
	require.Empty(t, FindBreakpoints(segs))
}

func TestBreakpointsAmbiguous(t *testing.T) {
	sg := newSegmenter(3, 10, 2)
	for _, h := range [][2]int{
		{0, 2}, {1, 0}, {2, 0}, {3, 0}, {10, 2},
		{12, 1}, {13, 1}, {14, 1}, {20, 2}, {27, 2},
	} {
		sg.add(h[0], h[1])
	}
	segs := sg.finish()
	require.Len(t, segs, 3)
	require.Equal(t, []int{2, 0, 1}, []int{segs[0].Ref, segs[1].Ref, segs[2].Ref})
	require.Equal(t, 30, segs[0].End)

	bps := FindBreakpoints(segs)
	require.Len(t, bps, 2)

	// reference 1 lies in the junction of 2 and 0
	require.Equal(t, [2]int{1, 30}, [2]int{bps[0].Start, bps[0].End})
	require.True(t, bps[0].Ambiguous)

	// reference 2 covers the junction of 0 and 1
	require.Equal(t, [2]int{6, 12}, [2]int{bps[1].Start, bps[1].End})
	require.True(t, bps[1].Ambiguous)
}

func TestMapFile(t *testing.T) {
	idx := testIndex(t)
	dir := t.TempDir()
	file := writeFile(t, dir, "seqs.fa", ">s1 chimera\nAAAAGGGG\n>s2\nACGT\n")
	outDir := filepath.Join(dir, "out")

	n, err := MapFile(idx, file, outDir, &BreakpointOptions{MaxGap: 1000, MinHits: 3})
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, "s1\t0\t3\trefA:0\n"+
		"s1\t1\t4\trefA:0\n"+
		"s1\t4\t7\trefG:21\n"+
		"s1\t5\t8\trefG:21\n",
		readFile(t, filepath.Join(outDir, "seqs.classifications.bed")))

	_, err = MapFile(idx, file, outDir, &BreakpointOptions{Decode: true, Segments: true, MaxGap: 1000, MinHits: 2})
	require.NoError(t, err)
	require.Equal(t, "s1\t0\t3\trefA:AAA\n"+
		"s1\t1\t4\trefA:AAA\n"+
		"s1\t4\t7\trefG:CCC\n"+
		"s1\t5\t8\trefG:CCC\n",
		readFile(t, filepath.Join(outDir, "seqs.classifications.bed")))
	require.Equal(t, "s1\t0\t4\trefA\t2\n"+
		"s1\t4\t8\trefG\t2\n",
		readFile(t, filepath.Join(outDir, "seqs.segments.bed")))
	require.Equal(t, "ID\tStart\tEnd\tLeft\tRight\tLeftHits\tRightHits\tAmbiguous\n"+
		"s1\t4\t4\trefA\trefG\t2\t2\tfalse\n",
		readFile(t, filepath.Join(outDir, "seqs.breakpoints.tsv")))
}

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

package tag

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		counts []int
		tag    Tag
	}{
		{nil, Tag{}},
		{[]int{0, 0, 0}, Tag{}},
		// all hits in the first reference, the second stays index 0
		{[]int{10, 0}, Tag{Assigned: true, Best: 0, Second: 0, BestPct: 100, SecondPct: 0}},
		{[]int{0, 10}, Tag{Assigned: true, Best: 1, Second: 0, BestPct: 100, SecondPct: 0}},
		// ties: the lower index wins
		{[]int{3, 3}, Tag{Assigned: true, Best: 0, Second: 1, BestPct: 50, SecondPct: 50}},
		{[]int{1, 4, 4, 4}, Tag{Assigned: true, Best: 1, Second: 2, BestPct: 30, SecondPct: 30}},
		// truncated percentages
		{[]int{2, 1}, Tag{Assigned: true, Best: 0, Second: 1, BestPct: 66, SecondPct: 33}},
		// best+second == total/2: not a strict majority
		{[]int{2, 1, 1, 1, 1}, Tag{BestPct: 33, SecondPct: 16}},
		// best+second == total/2+1
		{[]int{2, 2, 1, 1}, Tag{Assigned: true, Best: 0, Second: 1, BestPct: 33, SecondPct: 33}},
		// scattered noise
		{[]int{1, 1, 1, 1, 1, 1}, Tag{BestPct: 16, SecondPct: 16}},
	}
	for i, test := range tests {
		require.Equal(t, test.tag, Compute(test.counts), "#%d: %v", i, test.counts)
	}
}

func TestFormatParse(t *testing.T) {
	labels := []string{"A", "B", "chr1,hap1", "chr1"}
	m := map[string]int{}
	for i, l := range labels {
		m[l] = i
	}

	require.Equal(t, "Unclassified:0,0", Compute([]int{0, 0, 0, 0}).Format(labels))
	require.Equal(t, "A,A:100,0", Compute([]int{7, 0, 0, 0}).Format(labels))

	tags := []Tag{
		{},
		{BestPct: 40, SecondPct: 5},
		{Assigned: true, Best: 1, Second: 0, BestPct: 80, SecondPct: 20},
		{Assigned: true, Best: 2, Second: 3, BestPct: 60, SecondPct: 30},
		{Assigned: true, Best: 3, Second: 2, BestPct: 60, SecondPct: 30},
	}
	for _, tg := range tags {
		s := tg.Format(labels)
		tg2, err := Parse(s, m)
		require.NoError(t, err, s)
		require.Equal(t, tg, tg2, s)
	}

	for _, s := range []string{"", "A,B", "A,B:1", "A,B:x,1", "A,C:50,20", "A:50,20", "A,B:90,20"} {
		_, err := Parse(s, m)
		require.ErrorIs(t, err, ErrInvalidTag, s)
	}
}

func TestPairLabel(t *testing.T) {
	require.Equal(t, "chr1_chr2", PairLabel("chr2", "chr1"))
	require.Equal(t, "chr1_chr2", PairLabel("chr1", "chr2"))
	require.Equal(t, "A_A", PairLabel("A", "A"))
}

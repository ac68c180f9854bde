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

// Package tag computes the classification tag of a read from its hit counts.
package tag

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Unclassified is the name of the tag of reads failing the majority rule.
const Unclassified = "Unclassified"

// ErrInvalidTag means the tag string can not be parsed.
var ErrInvalidTag = errors.New("tag: invalid classification tag")

// Tag is the summary of the hits of a read.
// Best and Second are indexes of references, only meaningful if Assigned.
type Tag struct {
	Assigned bool

	Best, Second       int
	BestPct, SecondPct int
}

// Compute derives a Tag from per-reference hit counts.
//
// References are scanned from left to right keeping the best and the second
// best counts. Only a strictly larger count replaces a candidate, so on ties
// the reference with the lowest index wins. When the best count is found in
// the first non-zero reference, Second stays at index 0 with a count of 0.
//
// Percentages are truncated integer divisions of the counts by the total.
// A read is assigned only if best+second > total/2 (integer division).
func Compute(counts []int) Tag {
	var best, bestIdx, second, secondIdx, total int
	for i, c := range counts {
		total += c
		if c > best {
			second, secondIdx = best, bestIdx
			best, bestIdx = c, i
		} else if c > second {
			second, secondIdx = c, i
		}
	}

	if total == 0 {
		return Tag{}
	}

	t := Tag{
		BestPct:   best * 100 / total,
		SecondPct: second * 100 / total,
	}
	if best+second > total/2 {
		t.Assigned = true
		t.Best, t.Second = bestIdx, secondIdx
	}
	return t
}

// Format returns the tag string: "Unclassified:p1,p2" or "refBest,refSecond:p1,p2".
func (t Tag) Format(labels []string) string {
	if !t.Assigned {
		return fmt.Sprintf("%s:%d,%d", Unclassified, t.BestPct, t.SecondPct)
	}
	return fmt.Sprintf("%s,%s:%d,%d", labels[t.Best], labels[t.Second], t.BestPct, t.SecondPct)
}

// Parse parses a tag string. The label index is used to locate the comma
// between the two reference labels, as labels may contain commas.
func Parse(s string, labels map[string]int) (Tag, error) {
	var t Tag

	i := strings.LastIndexByte(s, ':')
	if i < 0 {
		return t, ErrInvalidTag
	}
	names, pcts := s[:i], s[i+1:]

	j := strings.IndexByte(pcts, ',')
	if j < 0 {
		return t, ErrInvalidTag
	}
	var err error
	if t.BestPct, err = strconv.Atoi(pcts[:j]); err != nil {
		return t, ErrInvalidTag
	}
	if t.SecondPct, err = strconv.Atoi(pcts[j+1:]); err != nil {
		return t, ErrInvalidTag
	}
	if t.BestPct < 0 || t.SecondPct < 0 || t.BestPct+t.SecondPct > 100 {
		return t, ErrInvalidTag
	}

	if names == Unclassified {
		return t, nil
	}

	var ok1, ok2 bool
	for j = strings.IndexByte(names, ','); j >= 0; {
		t.Best, ok1 = labels[names[:j]]
		t.Second, ok2 = labels[names[j+1:]]
		if ok1 && ok2 {
			t.Assigned = true
			return t, nil
		}

		k := strings.IndexByte(names[j+1:], ',')
		if k < 0 {
			break
		}
		j += k + 1
	}
	return Tag{}, ErrInvalidTag
}

// PairLabel joins the two labels in lexicographic order with a "_".
func PairLabel(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "_" + b
}

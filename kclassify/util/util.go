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

package util

import (
	"sort"

	"github.com/twotwotwo/sorts"
	"github.com/twotwotwo/sorts/sortutil"
)

// UniqUint64s sorts a uint64 list and removes duplicates.
func UniqUint64s(list *[]uint64) {
	if len(*list) < 2 {
		return
	}

	sortutil.Uint64s(*list)

	var j int
	var v uint64
	for _, v = range (*list)[1:] {
		if v == (*list)[j] {
			continue
		}
		j++
		(*list)[j] = v
	}
	*list = (*list)[:j+1]
}

// SortStrings sorts strings in parallel.
func SortStrings(list []string) {
	sorts.Quicksort(sort.StringSlice(list))
}

// UniqStrings returns sorted unique strings.
func UniqStrings(list []string) []string {
	if len(list) == 0 {
		return list
	}
	tmp := make([]string, len(list))
	copy(tmp, list)
	SortStrings(tmp)

	j := 0
	for _, s := range tmp[1:] {
		if s == tmp[j] {
			continue
		}
		j++
		tmp[j] = s
	}
	return tmp[:j+1]
}

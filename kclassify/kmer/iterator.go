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

package kmer

// iterator slides a window of k bases along a sequence and returns
// canonical codes of windows made of A/C/G/T only.
type iterator struct {
	s []byte
	k int

	mask  uint64
	shift uint // shift of the first base in the reverse complement code

	fwd, rev uint64
	valid    int // length of the current run of valid bases
	i        int // index of the next base to read
}

func newIterator(s []byte, k int) (*iterator, error) {
	if err := CheckK(k); err != nil {
		return nil, err
	}
	if len(s) < k {
		return nil, ErrShortSeq
	}
	iter := &iterator{}
	iter.reset(s, k)
	return iter, nil
}

func (iter *iterator) reset(s []byte, k int) {
	iter.s = s
	iter.k = k
	if k == MaxK {
		iter.mask = ^uint64(0)
	} else {
		iter.mask = 1<<(uint(k)<<1) - 1
	}
	iter.shift = uint(k-1) << 1
	iter.fwd, iter.rev = 0, 0
	iter.valid = 0
	iter.i = 0
}

// next returns the 0-based start position and the canonical code of
// the next valid k-mer. ok is false when the sequence is exhausted.
func (iter *iterator) next() (pos int, code uint64, ok bool) {
	var b uint8
	for iter.i < len(iter.s) {
		b = base2bit[iter.s[iter.i]]
		iter.i++

		if b > 3 {
			iter.valid = 0
			iter.fwd, iter.rev = 0, 0
			continue
		}

		iter.fwd = (iter.fwd<<2 | uint64(b)) & iter.mask
		iter.rev = iter.rev>>2 | uint64(3-b)<<iter.shift
		iter.valid++

		if iter.valid < iter.k {
			continue
		}

		if iter.rev < iter.fwd {
			return iter.i - iter.k, iter.rev, true
		}
		return iter.i - iter.k, iter.fwd, true
	}
	return -1, 0, false
}

// Each calls fn for every valid canonical k-mer of s.
// Sequences shorter than k yield nothing.
func Each(s []byte, k int, fn func(pos int, code uint64)) error {
	iter, err := newIterator(s, k)
	if err == ErrShortSeq {
		return nil
	}
	if err != nil {
		return err
	}
	var pos int
	var code uint64
	var ok bool
	for {
		pos, code, ok = iter.next()
		if !ok {
			return nil
		}
		fn(pos, code)
	}
}

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

package db

import "math/bits"

// Deltas of a k-mer block are stored in pairs: a control byte followed by
// the two values in big-endian order, each taking 1-8 bytes. Bits 3-5 of
// the control byte hold the byte length of the first value minus one, and
// bits 0-2 for the second one.

// maxPairLen is the largest size of an encoded pair, control byte included.
const maxPairLen = 17

// uintLen returns the number of bytes needed for v, at least one.
func uintLen(v uint64) int {
	if v == 0 {
		return 1
	}
	return (bits.Len64(v) + 7) >> 3
}

// pairLens returns the byte lengths of the two values of a control byte.
func pairLens(ctrl byte) (int, int) {
	return int(ctrl>>3&7) + 1, int(ctrl&7) + 1
}

func putUint(buf []byte, v uint64) {
	for i := len(buf) - 1; i >= 0; i-- {
		buf[i] = byte(v)
		v >>= 8
	}
}

func getUint(buf []byte) (v uint64) {
	for _, b := range buf {
		v = v<<8 | uint64(b)
	}
	return v
}

// appendPair appends the control byte and the two values to dst.
func appendPair(dst []byte, v1, v2 uint64) []byte {
	l1, l2 := uintLen(v1), uintLen(v2)
	n := len(dst)
	dst = append(dst, make([]byte, 1+l1+l2)...)
	dst[n] = byte(l1-1)<<3 | byte(l2-1)
	putUint(dst[n+1:n+1+l1], v1)
	putUint(dst[n+1+l1:], v2)
	return dst
}

// readPair decodes a pair from the start of buf, and returns the number of
// bytes consumed, control byte included. n is 0 if buf is too short.
func readPair(buf []byte) (v1, v2 uint64, n int) {
	if len(buf) == 0 {
		return 0, 0, 0
	}
	l1, l2 := pairLens(buf[0])
	if len(buf) < 1+l1+l2 {
		return 0, 0, 0
	}
	return getUint(buf[1 : 1+l1]), getUint(buf[1+l1 : 1+l1+l2]), 1 + l1 + l2
}

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

// Package kmer provides the 2-bit k-mer encoding shared by database building
// and read classification.
//
// Bases are encoded as A=0, C=1, G=2, T/U=3, with the first base in the
// most significant bits, so k <= 32 fits in a uint64.
// The canonical form of a k-mer is the smaller one of its code and the code
// of its reverse complement.
package kmer

import (
	"errors"
)

// MaxK is the largest k-mer size fitting in a uint64.
const MaxK = 32

// ErrKOverflow means k < 1 or k > 32.
var ErrKOverflow = errors.New("kmer: k-mer size [1, 32] overflow")

// ErrIllegalBase means that base beyond IUPAC symbols are detected.
var ErrIllegalBase = errors.New("kmer: illegal base")

// ErrShortSeq means the sequence is shorter than k.
var ErrShortSeq = errors.New("kmer: sequence shorter than k")

// base2bit maps a byte to its 2-bit code, 4 for non-ACGTU bytes.
var base2bit [256]uint8

// bit2base is used for decoding.
var bit2base = [4]byte{'A', 'C', 'G', 'T'}

// normalized maps a byte to the upper-case DNA alphabet, N for anything else.
var normalized [256]byte

func init() {
	for i := range base2bit {
		base2bit[i] = 4
		normalized[i] = 'N'
	}
	for _, b := range []byte("Aa") {
		base2bit[b] = 0
		normalized[b] = 'A'
	}
	for _, b := range []byte("Cc") {
		base2bit[b] = 1
		normalized[b] = 'C'
	}
	for _, b := range []byte("Gg") {
		base2bit[b] = 2
		normalized[b] = 'G'
	}
	for _, b := range []byte("TtUu") {
		base2bit[b] = 3
		normalized[b] = 'T'
	}
}

// CheckK checks if k is in the range of [1, 32].
func CheckK(k int) error {
	if k < 1 || k > MaxK {
		return ErrKOverflow
	}
	return nil
}

// Encode converts a k-mer to its 2-bit code.
func Encode(mer []byte) (code uint64, err error) {
	if len(mer) == 0 || len(mer) > MaxK {
		return 0, ErrKOverflow
	}
	var b uint8
	for _, c := range mer {
		b = base2bit[c]
		if b > 3 {
			return 0, ErrIllegalBase
		}
		code = code<<2 | uint64(b)
	}
	return code, nil
}

// Decode converts a code back to the k-mer.
func Decode(code uint64, k int) []byte {
	mer := make([]byte, k)
	for i := k - 1; i >= 0; i-- {
		mer[i] = bit2base[code&3]
		code >>= 2
	}
	return mer
}

// RevComp returns the code of the reverse complement sequence.
func RevComp(code uint64, k int) (c uint64) {
	for i := 0; i < k; i++ {
		c = c<<2 | (3 - code&3)
		code >>= 2
	}
	return c
}

// Canonical returns the canonical form of a k-mer code.
func Canonical(code uint64, k int) uint64 {
	rc := RevComp(code, k)
	if rc < code {
		return rc
	}
	return code
}

// Normalize converts a sequence to upper case in place, turning U into T
// and every other non-ACGT byte into N.
func Normalize(s []byte) []byte {
	for i, c := range s {
		s[i] = normalized[c]
	}
	return s
}

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

import (
	"bytes"
	"testing"

	"github.com/shenwei356/kmers"
)

func revCompSeq(s []byte) []byte {
	rc := make([]byte, len(s))
	for i, b := range s {
		switch b {
		case 'A':
			rc[len(s)-1-i] = 'T'
		case 'C':
			rc[len(s)-1-i] = 'G'
		case 'G':
			rc[len(s)-1-i] = 'C'
		case 'T':
			rc[len(s)-1-i] = 'A'
		}
	}
	return rc
}

func TestEncodeDecode(t *testing.T) {
	mers := []string{"A", "ACGT", "TTTTT", "ACGTACGTACGTACGTACGTACGTACGTACGT", "GATTACA"}
	for _, mer := range mers {
		code, err := Encode([]byte(mer))
		if err != nil {
			t.Errorf("%s: %s", mer, err)
			return
		}

		code2, err := kmers.Encode([]byte(mer))
		if err != nil {
			t.Errorf("%s: %s", mer, err)
			return
		}
		if code != code2 {
			t.Errorf("%s: unexpected code: %d, expected: %d", mer, code, code2)
		}

		if s := Decode(code, len(mer)); string(s) != mer {
			t.Errorf("unexpected decoded k-mer: %s, expected: %s", s, mer)
		}
		if s := kmers.MustDecode(code, len(mer)); string(s) != mer {
			t.Errorf("unexpected decoded k-mer: %s, expected: %s", s, mer)
		}
	}

	if _, err := Encode([]byte("ACNGT")); err != ErrIllegalBase {
		t.Errorf("illegal base not detected")
	}
	if _, err := Encode(bytes.Repeat([]byte("A"), 33)); err != ErrKOverflow {
		t.Errorf("k overflow not detected")
	}
}

func TestRevCompCanonical(t *testing.T) {
	mers := []string{"ACGTT", "AAAAA", "GATTACA", "CCCCGGGGAATT"}
	for _, mer := range mers {
		k := len(mer)
		code, _ := Encode([]byte(mer))
		rc, _ := kmers.Encode(revCompSeq([]byte(mer)))

		if RevComp(code, k) != rc {
			t.Errorf("%s: unexpected reverse complement: %s", mer, Decode(RevComp(code, k), k))
		}

		c := Canonical(code, k)
		if c != Canonical(rc, k) {
			t.Errorf("%s: canonical forms of both strands differ", mer)
		}
		if c > code || c > rc {
			t.Errorf("%s: canonical form is not the smaller one", mer)
		}
	}
}

func TestIterator(t *testing.T) {
	s := []byte("ACGTNacgtAAGGTTCC")
	k := 3

	type hit struct {
		pos  int
		code uint64
	}
	var expected []hit
	for i := 0; i+k <= len(s); i++ {
		mer := bytes.ToUpper(s[i : i+k])
		code, err := Encode(mer)
		if err != nil {
			continue
		}
		expected = append(expected, hit{i, Canonical(code, k)})
	}

	iter, err := newIterator(s, k)
	if err != nil {
		t.Error(err)
		return
	}
	var got []hit
	for {
		pos, code, ok := iter.next()
		if !ok {
			break
		}
		got = append(got, hit{pos, code})
	}

	if len(got) != len(expected) {
		t.Errorf("unexpected number of k-mers: %d, expected: %d", len(got), len(expected))
		return
	}
	for i := range got {
		if got[i] != expected[i] {
			t.Errorf("#%d: unexpected k-mer: %v, expected: %v", i, got[i], expected[i])
		}
	}

	// strand independence
	rc := revCompSeq([]byte("ACGTTGCAAGG"))
	set := make(map[uint64]struct{})
	Each([]byte("ACGTTGCAAGG"), 5, func(_ int, code uint64) { set[code] = struct{}{} })
	Each(rc, 5, func(_ int, code uint64) {
		if _, ok := set[code]; !ok {
			t.Errorf("k-mer of the reverse complement strand missing: %s", Decode(code, 5))
		}
	})
}

func TestIteratorK32(t *testing.T) {
	s := []byte("ACGTACGTACGTACGTACGTACGTACGTACGTTT")
	var n int
	err := Each(s, 32, func(pos int, code uint64) {
		mer := s[pos : pos+32]
		c, _ := Encode(mer)
		if Canonical(c, 32) != code {
			t.Errorf("unexpected code at %d", pos)
		}
		n++
	})
	if err != nil {
		t.Error(err)
	}
	if n != 3 {
		t.Errorf("unexpected number of k-mers: %d", n)
	}

	if _, err = newIterator([]byte("AC"), 3); err != ErrShortSeq {
		t.Errorf("short sequence not detected")
	}
	if err = Each(s, 33, func(int, uint64) {}); err != ErrKOverflow {
		t.Errorf("k overflow not detected")
	}
}

func TestNormalize(t *testing.T) {
	s := Normalize([]byte("acgtuRYN-x"))
	if string(s) != "ACGTTNNNNN" {
		t.Errorf("unexpected normalized sequence: %s", s)
	}
}

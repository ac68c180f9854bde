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

// Index maps singleton k-mers to the indexes of their owner references.
// It is never modified after creation and is safe for concurrent reading.
type Index struct {
	K      int
	Labels []string

	m map[uint64]uint32
}

// NewIndex builds the reverse mapping of a Database.
// ErrOverlappingKmers is returned if a k-mer belongs to two references.
func NewIndex(db *Database) (*Index, error) {
	m := make(map[uint64]uint32, db.NumKmers())
	var ok bool
	var code uint64
	var owner uint32
	for i, list := range db.Kmers {
		for _, code = range list {
			if owner, ok = m[code]; ok && owner != uint32(i) {
				return nil, ErrOverlappingKmers
			}
			m[code] = uint32(i)
		}
	}
	return &Index{K: int(db.K), Labels: db.Labels, m: m}, nil
}

// Lookup returns the index of the reference owning the k-mer.
func (idx *Index) Lookup(code uint64) (int, bool) {
	i, ok := idx.m[code]
	return int(i), ok
}

// Len returns the number of k-mers.
func (idx *Index) Len() int { return len(idx.m) }

// NumRefs returns the number of references.
func (idx *Index) NumRefs() int { return len(idx.Labels) }

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

// Package db implements the singleton k-mer database, its binary format
// and the in-memory reverse index used by classification.
package db

import (
	"errors"
	"fmt"

	"github.com/kclassify/kclassify/kclassify/kmer"
	"github.com/kclassify/kclassify/kclassify/util"
)

// ErrOverlappingKmers means a k-mer is owned by more than one reference.
var ErrOverlappingKmers = errors.New("singleton k-mer db: k-mer shared by references")

// ErrNoReferences means the database has no references.
var ErrNoReferences = errors.New("singleton k-mer db: no references")

// Database holds singleton k-mers of a set of references.
// Kmers[i] contains the k-mers that only occur in reference i,
// in ascending order.
type Database struct {
	K      uint8
	Labels []string
	Kmers  [][]uint64
}

// NewDatabase creates a Database. The k-mer lists are sorted and
// deduplicated in place.
func NewDatabase(k int, labels []string, kmers [][]uint64) (*Database, error) {
	if err := kmer.CheckK(k); err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return nil, ErrNoReferences
	}
	if len(labels) != len(kmers) {
		return nil, fmt.Errorf("singleton k-mer db: %d labels given for %d k-mer lists", len(labels), len(kmers))
	}
	for i := range kmers {
		util.UniqUint64s(&kmers[i])
	}
	return &Database{K: uint8(k), Labels: labels, Kmers: kmers}, nil
}

// NumRefs returns the number of references.
func (db *Database) NumRefs() int { return len(db.Labels) }

// NumKmers returns the total number of singleton k-mers.
func (db *Database) NumKmers() (n int) {
	for _, list := range db.Kmers {
		n += len(list)
	}
	return n
}

// Counts returns the numbers of singleton k-mers of all references.
func (db *Database) Counts() []int {
	counts := make([]int, len(db.Kmers))
	for i, list := range db.Kmers {
		counts[i] = len(list)
	}
	return counts
}

func (db *Database) String() string {
	return fmt.Sprintf("singleton k-mer db: k=%d, references=%d, k-mers=%d", db.K, db.NumRefs(), db.NumKmers())
}

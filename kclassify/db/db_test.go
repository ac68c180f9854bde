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

import (
	"bytes"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testDatabase(t *testing.T) *Database {
	r := rand.New(rand.NewSource(11))
	k := 21
	max := uint64(1)<<(uint(k)<<1) - 1

	labels := []string{"chr1_hap1", "chr1_hap2", "empty", "chr2,x"}
	kmers := make([][]uint64, len(labels))
	seen := make(map[uint64]struct{})
	for i := range labels {
		if labels[i] == "empty" {
			continue
		}
		n := 1000 + r.Intn(1000)
		for len(kmers[i]) < n {
			v := r.Uint64() & max
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			kmers[i] = append(kmers[i], v)
		}
	}
	kmers[0] = append(kmers[0], 0, max) // boundaries

	db, err := NewDatabase(k, labels, kmers)
	require.NoError(t, err)
	return db
}

func TestSerialization(t *testing.T) {
	db := testDatabase(t)

	for _, compress := range []bool{false, true} {
		buf := &bytes.Buffer{}
		_, err := Write(buf, db, compress)
		require.NoError(t, err)

		db2, err := Read(bytes.NewReader(buf.Bytes()))
		require.NoError(t, err)

		require.Equal(t, db.K, db2.K)
		require.Equal(t, db.Labels, db2.Labels)
		require.Equal(t, len(db.Kmers), len(db2.Kmers))
		for i := range db.Kmers {
			require.Equal(t, len(db.Kmers[i]), len(db2.Kmers[i]), "reference #%d", i)
			for j := range db.Kmers[i] {
				require.Equal(t, db.Kmers[i][j], db2.Kmers[i][j])
			}
		}
	}
}

func TestSaveLoad(t *testing.T) {
	db := testDatabase(t)
	dir := t.TempDir()
	file := filepath.Join(dir, "t.db")

	_, err := Save(file, db, true)
	require.NoError(t, err)

	_, err = os.Stat(file + TmpFileExt)
	require.True(t, os.IsNotExist(err), "temporary file left")

	db2, err := Load(file)
	require.NoError(t, err)
	require.Equal(t, db.Counts(), db2.Counts())

	// failed writing leaves nothing
	bad := &Database{K: 40, Labels: []string{"a"}, Kmers: [][]uint64{{1}}}
	file2 := filepath.Join(dir, "bad.db")
	_, err = Save(file2, bad, false)
	require.ErrorIs(t, err, ErrKOverflow)
	_, err = os.Stat(file2)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(file2 + TmpFileExt)
	require.True(t, os.IsNotExist(err))
}

func TestBrokenFiles(t *testing.T) {
	db := testDatabase(t)
	buf := &bytes.Buffer{}
	_, err := Write(buf, db, false)
	require.NoError(t, err)
	data := buf.Bytes()

	// truncated
	for _, n := range []int{4, 12, 20, len(data) / 2, len(data) - 1} {
		_, err = Read(bytes.NewReader(data[:n]))
		require.ErrorIs(t, err, ErrBrokenFile, "truncated at %d", n)
	}

	// magic number
	bad := append([]byte{}, data...)
	bad[0] = 'x'
	_, err = Read(bytes.NewReader(bad))
	require.ErrorIs(t, err, ErrInvalidFileFormat)

	// version
	bad = append([]byte{}, data...)
	bad[8] = MainVersion + 1
	_, err = Read(bytes.NewReader(bad))
	require.ErrorIs(t, err, ErrVersionMismatch)

	// k
	bad = append([]byte{}, data...)
	bad[10] = 33
	_, err = Read(bytes.NewReader(bad))
	require.ErrorIs(t, err, ErrKOverflow)

	// a flipped byte in the last k-mer block
	bad = append([]byte{}, data...)
	bad[len(bad)-12] ^= 0xff
	_, err = Read(bytes.NewReader(bad))
	require.ErrorIs(t, err, ErrChecksumMismatch)

	// forged counts
	header := append(append([]byte{}, Magic[:]...), MainVersion, MinorVersion, 21, 0, 0, 0, 0, 0)
	forged := func(fields ...uint64) []byte {
		b := append([]byte{}, header...)
		for _, v := range fields {
			b = be.AppendUint64(b, v)
		}
		return b
	}

	// too many references
	_, err = Read(bytes.NewReader(forged(1 << 31)))
	require.ErrorIs(t, err, ErrBrokenFile)
	_, err = Read(bytes.NewReader(forged(1 << 40)))
	require.ErrorIs(t, err, ErrInvalidFileFormat)

	// one reference "a" with a huge k-mer number and block length
	ref := func(n uint64) []byte {
		b := forged(1)
		b = append(b, 0, 1, 'a')
		return be.AppendUint64(b, n)
	}
	_, err = Read(bytes.NewReader(be.AppendUint64(ref(1<<40), 1<<44)))
	require.ErrorIs(t, err, ErrBrokenFile)
	_, err = Read(bytes.NewReader(be.AppendUint64(ref(1<<40), ^uint64(0))))
	require.ErrorIs(t, err, ErrBrokenFile)
	_, err = Read(bytes.NewReader(be.AppendUint64(ref(1<<50), 1<<50)))
	require.ErrorIs(t, err, ErrInvalidFileFormat)
	_, err = Read(bytes.NewReader(be.AppendUint64(ref(^uint64(0)), 1<<60)))
	require.ErrorIs(t, err, ErrInvalidFileFormat)
}

func TestNewDatabase(t *testing.T) {
	db, err := NewDatabase(3, []string{"a", "b"}, [][]uint64{{5, 1, 5, 3}, {}})
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 3, 5}, db.Kmers[0])
	require.Equal(t, 3, db.NumKmers())

	_, err = NewDatabase(0, []string{"a"}, [][]uint64{{}})
	require.Error(t, err)
	_, err = NewDatabase(3, nil, nil)
	require.ErrorIs(t, err, ErrNoReferences)
	_, err = NewDatabase(3, []string{"a"}, [][]uint64{{}, {}})
	require.Error(t, err)
}

func TestIndex(t *testing.T) {
	db := testDatabase(t)
	idx, err := NewIndex(db)
	require.NoError(t, err)
	require.Equal(t, db.NumKmers(), idx.Len())

	for i, list := range db.Kmers {
		for _, code := range list {
			owner, ok := idx.Lookup(code)
			require.True(t, ok)
			require.Equal(t, i, owner)
		}
	}

	db.Kmers[1] = append(db.Kmers[1], db.Kmers[0][3])
	_, err = NewIndex(db)
	require.ErrorIs(t, err, ErrOverlappingKmers)
}

func TestPairCodec(t *testing.T) {
	tests := [][2]uint64{{0, 0}, {1, 255}, {256, 65535}, {1 << 40, 7}, {^uint64(0), 1 << 63}}
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		tests = append(tests, [2]uint64{r.Uint64() >> uint(r.Intn(64)), r.Uint64() >> uint(r.Intn(64))})
	}

	buf := make([]byte, 0, maxPairLen)
	var v1, v2 uint64
	var n int
	for i, test := range tests {
		buf = appendPair(buf[:0], test[0], test[1])
		l1, l2 := pairLens(buf[0])
		if l1 != uintLen(test[0]) || l2 != uintLen(test[1]) || 1+l1+l2 != len(buf) {
			t.Errorf("#%d, wrong byte length", i)
		}

		v1, v2, n = readPair(buf)
		if n != len(buf) {
			t.Errorf("#%d, wrong decoded length: %d, answer: %d", i, n, len(buf))
		}
		if v1 != test[0] || v2 != test[1] {
			t.Errorf("#%d, wrong decoded result: %d, %d, answer: %d, %d", i, v1, v2, test[0], test[1])
		}
	}

	if _, _, n = readPair(buf[:1]); n != 0 {
		t.Errorf("short buffer not detected")
	}
	if _, _, n = readPair(nil); n != 0 {
		t.Errorf("empty buffer not detected")
	}
}

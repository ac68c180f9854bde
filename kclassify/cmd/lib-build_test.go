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

package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/kclassify/kclassify/kclassify/db"
	"github.com/shenwei356/bio/seq"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	file := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(file, []byte(content), 0644))
	return file
}

func readFile(t *testing.T, file string) string {
	t.Helper()
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	return string(data)
}

// two references: poly-A and poly-G, k = 3
func testReferences(t *testing.T, dir string) []string {
	return []string{
		writeFile(t, dir, "refA.fa", ">a\nAAAAAAAAAA\n"),
		writeFile(t, dir, "refG.fasta", ">g\nGGGGGGGGGG\n"),
	}
}

func testIndex(t *testing.T) *db.Index {
	t.Helper()
	seq.ValidateSeq = false

	kdb, _, err := BuildDatabase(testReferences(t, t.TempDir()), &BuildOptions{NumCPUs: 2, K: 3})
	require.NoError(t, err)
	idx, err := db.NewIndex(kdb)
	require.NoError(t, err)
	return idx
}

func TestBuildDatabase(t *testing.T) {
	seq.ValidateSeq = false
	dir := t.TempDir()
	files := testReferences(t, dir)

	kdb, distinct, err := BuildDatabase(files, &BuildOptions{NumCPUs: 2, K: 3})
	require.NoError(t, err)

	require.Equal(t, uint8(3), kdb.K)
	require.Equal(t, []string{"refA", "refG"}, kdb.Labels)

	// AAA/TTT -> 0, GGG/CCC -> 21
	require.Equal(t, [][]uint64{{0}, {21}}, kdb.Kmers)
	require.Equal(t, []uint64{1, 1}, distinct)

	// saved and loaded
	file := filepath.Join(dir, "test.db")
	_, err = db.Save(file, kdb, true)
	require.NoError(t, err)
	kdb2, err := db.Load(file)
	require.NoError(t, err)
	require.Equal(t, kdb, kdb2)
}

func TestBuildDatabaseFailure(t *testing.T) {
	seq.ValidateSeq = false
	dir := t.TempDir()
	files := append(testReferences(t, dir), filepath.Join(dir, "missing.fa"))

	kdb, _, err := BuildDatabase(files, &BuildOptions{NumCPUs: 2, K: 3})
	require.Error(t, err)
	require.Nil(t, kdb)

	_, _, err = BuildDatabase(files[:2], &BuildOptions{NumCPUs: 2, K: 33})
	require.Error(t, err)
}

func TestBuildDatabaseSharedContent(t *testing.T) {
	seq.ValidateSeq = false
	dir := t.TempDir()
	files := []string{
		writeFile(t, dir, "a.fa", ">a\nACGTACGTAC\n"),
		writeFile(t, dir, "b.fa", ">b\nACGTACGTAC\n"),
		writeFile(t, dir, "c.fa", ">c\nTTTTTTTT\n>c2\nNNNN\n"),
	}

	kdb, _, err := BuildDatabase(files, &BuildOptions{NumCPUs: 1, K: 4})
	require.NoError(t, err)
	require.Empty(t, kdb.Kmers[0])
	require.Empty(t, kdb.Kmers[1])
	require.Equal(t, []uint64{0}, kdb.Kmers[2])
}

func TestResolveSingletons(t *testing.T) {
	sets := []*roaring64.Bitmap{
		roaring64.BitmapOf(1, 2, 3, 100),
		roaring64.BitmapOf(3, 4),
		roaring64.BitmapOf(5, 1, 1<<40),
		roaring64.New(),
	}
	singletons := ResolveSingletons(sets)
	require.Len(t, singletons, 4)
	require.Equal(t, []uint64{2, 100}, singletons[0])
	require.Equal(t, []uint64{4}, singletons[1])
	require.Equal(t, []uint64{5, 1 << 40}, singletons[2])
	require.Empty(t, singletons[3])

	// inputs are not modified
	require.Equal(t, uint64(4), sets[0].GetCardinality())
}

func TestResolveSingletonsDisjoint(t *testing.T) {
	sets := make([]*roaring64.Bitmap, 8)
	for i := range sets {
		sets[i] = roaring64.New()
		for v := uint64(i); v < 2000; v += uint64(i + 1) {
			sets[i].Add(v * 7919 % 1500)
		}
	}

	singletons := ResolveSingletons(sets)
	owner := make(map[uint64]int)
	for i, list := range singletons {
		for j, v := range list {
			if j > 0 {
				require.Less(t, list[j-1], v)
			}
			_, ok := owner[v]
			require.False(t, ok, "k-mer %d in more than one set", v)
			owner[v] = i

			for j2, set := range sets {
				require.Equal(t, j2 == i, set.Contains(v))
			}
		}
	}
}

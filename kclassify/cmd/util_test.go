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
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunFileTasks(t *testing.T) {
	files := []string{"a", "b", "c", "d", "e"}
	done := make([]bool, len(files))
	var n int32

	err := runFileTasks(files, &TaskOptions{NumCPUs: 2}, func(i int, file string) error {
		atomic.AddInt32(&n, 1)
		if file == "b" {
			return fmt.Errorf("failed")
		}
		done[i] = true
		return nil
	})
	require.Error(t, err)

	// other tasks still ran
	require.Equal(t, int32(5), n)
	require.Equal(t, []bool{true, false, true, true, true}, done)

	err = runFileTasks(files, &TaskOptions{NumCPUs: 0}, func(i int, file string) error { return nil })
	require.NoError(t, err)
}

func TestFilepathTrimExtension(t *testing.T) {
	for _, c := range [][4]string{
		{"reads.fq.gz", "reads", ".fq", ".gz"},
		{"reads.FASTA.XZ", "reads", ".FASTA", ".xz"},
		{"ref.fa", "ref", ".fa", ""},
		{"ref", "ref", "", ""},
	} {
		name, e1, e2 := filepathTrimExtension(c[0], nil)
		require.Equal(t, [3]string{c[1], c[2], c[3]}, [3]string{name, e1, e2}, c[0])
	}
}

func TestRefName(t *testing.T) {
	require.Equal(t, "GCF_000005845.2", refName(filepath.Join("refs", "GCF_000005845.2.fna.gz"), nil))

	re := regexp.MustCompile(`(?i)^(\w+?)_genomic\.fna(\.gz)?$`)
	require.Equal(t, "chrX", refName("/data/chrX_genomic.fna.gz", re))
	// not matched
	require.Equal(t, "chrX", refName("/data/chrX.fa", re))
}

func TestWrapByteSlice(t *testing.T) {
	var buf *bytes.Buffer
	var s []byte

	s, buf = wrapByteSlice([]byte("ACGTACGTA"), 4, buf)
	require.Equal(t, "ACGT\nACGT\nA", string(s))

	s, buf = wrapByteSlice([]byte("ACGTACGT"), 4, buf)
	require.Equal(t, "ACGT\nACGT", string(s))

	s, _ = wrapByteSlice([]byte("ACGT"), 0, buf)
	require.Equal(t, "ACGT", string(s))
}

func TestReadPairs(t *testing.T) {
	dir := t.TempDir()
	pairs, err := readPairs(writeFile(t, dir, "pairs.tsv", "chr2\tchr1\r\nchr3\tchr4\textra\n"))
	require.NoError(t, err)
	require.Equal(t, map[string]struct{}{"chr1_chr2": {}, "chr3_chr4": {}}, pairs)

	bad := writeFile(t, dir, "bad.tsv", "chr1\n")
	_, err = readPairs(bad)
	require.Error(t, err)

	// the file is closed on errors
	fds, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Skip("open files can not be listed")
	}
	for i := 0; i < 16; i++ {
		_, err = readPairs(bad)
		require.Error(t, err)
	}
	fds2, err := os.ReadDir("/proc/self/fd")
	require.NoError(t, err)
	require.LessOrEqual(t, len(fds2), len(fds))
}

func TestStringSplitNByByte(t *testing.T) {
	items := make([]string, 3)
	stringSplitNByByte("a\tb\tc\td", '\t', 3, &items)
	require.Equal(t, []string{"a", "b", "c\td"}, items)

	items = items[:cap(items)]
	stringSplitNByByte("a", '\t', 3, &items)
	require.Equal(t, []string{"a"}, items)
}

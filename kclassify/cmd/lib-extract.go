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
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kclassify/kclassify/kclassify/db"
	"github.com/kclassify/kclassify/kclassify/kmer"
	"github.com/pkg/errors"
	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/shenwei356/xopen"
)

// ExtractOptions contains the options for extracting labelled reads.
type ExtractOptions struct {
	NumCPUs int
	Verbose bool

	LabelOnly bool // use the pair label as the header, without the read id
	LineWidth int  // 0 for no wrapping

	CompressionLevel int
}

// ExtractStats contains the numbers of extracted reads.
type ExtractStats struct {
	PerFile    []int // records matched in each file
	Written    int   // records written
	Duplicated int   // records skipped as their ids appeared before
}

// ReadFilteredTable reads a filtered table and returns the mapping from
// read ids (the first column) to pair labels (the last column).
func ReadFilteredTable(file string) (map[string]string, error) {
	fh, err := xopen.Ropen(file)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	m := make(map[string]string, 1024)
	scanner := bufio.NewScanner(fh)
	scanner.Buffer(make([]byte, 0, 1<<16), 1<<30)

	var line string
	var i, j, lineNum int
	for scanner.Scan() {
		lineNum++
		line = strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		if lineNum == 1 && strings.HasPrefix(line, "ID\t") { // header
			continue
		}
		i = strings.IndexByte(line, '\t')
		j = strings.LastIndexByte(line, '\t')
		if i <= 0 || j == len(line)-1 {
			return nil, fmt.Errorf("line %d: read id and label expected", lineNum)
		}
		m[line[:i]] = line[j+1:]
	}
	if err = scanner.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// extractFile writes reads present in ids to a temporary file, one record
// in two lines: ">id header" and the normalized sequence.
func extractFile(ids map[string]string, file, tmpFile string, labelOnly bool) (n int, err error) {
	fastxReader, err := fastx.NewReader(nil, file, "")
	if err != nil {
		return 0, fmt.Errorf("failed to read seq file: %s", err)
	}
	defer fastxReader.Close()

	outfh, gw, w, err := outStream(tmpFile, false, -1)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err2 := closeOutStream(outfh, gw, w); err == nil {
			err = err2
		}
	}()

	var record *fastx.Record
	var label string
	var ok bool
	var i int
	for {
		record, err = fastxReader.Read()
		if err != nil {
			if err == io.EOF {
				err = nil
				break
			}
			return n, fmt.Errorf("read seq %d: %s", i, err)
		}
		i++

		if label, ok = ids[string(record.ID)]; !ok {
			continue
		}
		n++

		outfh.Write(_mark_fasta)
		outfh.Write(record.ID)
		outfh.Write(_mark_tab)
		outfh.WriteString(label)
		if !labelOnly {
			outfh.WriteByte('_')
			outfh.Write(record.ID)
		}
		outfh.Write(_mark_newline)
		outfh.Write(kmer.Normalize(record.Seq.Seq))
		outfh.Write(_mark_newline)
	}
	return n, nil
}

// Extract rescans read files in parallel and writes reads whose ids are in
// ids to outFile, relabelled with their pair labels. Records are written in
// the order of input files and reads, and a read id is written only once.
func Extract(ids map[string]string, files []string, outFile string, opt *ExtractOptions) (*ExtractStats, error) {
	var tmpDir string
	var err error
	if isStdin(outFile) {
		if tmpDir, err = os.MkdirTemp("", "kclassify-extract"); err != nil {
			return nil, err
		}
	} else {
		tmpDir = filepath.Clean(outFile) + db.TmpFileExt
		if err = os.RemoveAll(tmpDir); err != nil {
			return nil, err
		}
		if err = os.MkdirAll(tmpDir, 0777); err != nil {
			return nil, err
		}
	}
	defer os.RemoveAll(tmpDir)

	tmpFiles := make([]string, len(files))
	for i := range files {
		tmpFiles[i] = filepath.Join(tmpDir, fmt.Sprintf("%d.fasta", i))
	}

	stats := &ExtractStats{PerFile: make([]int, len(files))}
	err = runFileTasks(files, &TaskOptions{NumCPUs: opt.NumCPUs, Verbose: opt.Verbose},
		func(i int, file string) (err error) {
			stats.PerFile[i], err = extractFile(ids, file, tmpFiles[i], opt.LabelOnly)
			return err
		})
	if err != nil {
		return nil, err
	}

	if err = mergeExtracted(tmpFiles, outFile, tmpDir, opt, len(ids), stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// mergeExtracted concatenates per-file outputs into outFile and skips
// duplicated ids. Unless outFile is stdout, the records are merged in tmpDir
// and moved to outFile at last, so a failed call does not touch outFile.
func mergeExtracted(tmpFiles []string, outFile string, tmpDir string,
	opt *ExtractOptions, nIDs int, stats *ExtractStats) error {

	mergedFile := outFile
	if !isStdin(outFile) {
		mergedFile = filepath.Join(tmpDir, "merged"+filepath.Ext(outFile))
	}
	outfh, gw, w, err := outStream(mergedFile, strings.HasSuffix(outFile, ".gz"), opt.CompressionLevel)
	if err != nil {
		return err
	}

	seen := make(map[string]struct{}, nIDs)
	var buffer *bytes.Buffer
	for _, file := range tmpFiles {
		if err = concatExtracted(file, outfh, seen, opt.LineWidth, &buffer, stats); err != nil {
			closeOutStream(outfh, gw, w)
			if mergedFile != outFile {
				os.Remove(mergedFile)
			}
			return errors.Wrap(err, file)
		}
	}
	if err = closeOutStream(outfh, gw, w); err != nil {
		if mergedFile != outFile {
			os.Remove(mergedFile)
		}
		return err
	}
	if mergedFile == outFile {
		return nil
	}
	if err = os.Rename(mergedFile, outFile); err != nil {
		os.Remove(mergedFile)
		return err
	}
	return nil
}

func concatExtracted(file string, outfh *bufio.Writer, seen map[string]struct{},
	lineWidth int, buffer **bytes.Buffer, stats *ExtractStats) error {

	fh, err := os.Open(file)
	if err != nil {
		return err
	}
	defer fh.Close()

	scanner := bufio.NewScanner(fh)
	scanner.Buffer(make([]byte, 0, 1<<16), 1<<30)

	var line, s []byte
	var id string
	var i int
	var dup bool
	for scanner.Scan() {
		line = scanner.Bytes()
		if len(line) > 0 && line[0] == '>' {
			i = bytes.IndexByte(line, '\t')
			if i < 0 {
				return fmt.Errorf("invalid header: %s", line)
			}
			id = string(line[1:i])
			if _, dup = seen[id]; dup {
				stats.Duplicated++
				continue
			}
			seen[id] = struct{}{}
			stats.Written++

			outfh.Write(_mark_fasta)
			outfh.Write(line[i+1:])
			outfh.Write(_mark_newline)
			continue
		}
		if dup {
			continue
		}
		s, *buffer = wrapByteSlice(line, lineWidth, *buffer)
		outfh.Write(s)
		outfh.Write(_mark_newline)
	}
	return scanner.Err()
}

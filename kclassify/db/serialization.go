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
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/kclassify/kclassify/kclassify/kmer"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/wyhash"
)

var be = binary.BigEndian

// Magic number for checking file format
var Magic = [8]byte{'.', 'k', 'c', 'l', 's', '-', 'd', 'b'}

// MainVersion is use for checking compatibility
var MainVersion uint8 = 1

// MinorVersion is less important
var MinorVersion uint8 = 0

// FlagCompressed marks a zstd-compressed body.
const FlagCompressed uint8 = 1

// TmpFileExt is the extension of the file being written in Save.
const TmpFileExt = ".tmp"

// checksumSeed is the seed of wyhash for checksums of k-mer blocks.
const checksumSeed uint64 = 1

// ErrInvalidFileFormat means invalid file format.
var ErrInvalidFileFormat = errors.New("singleton k-mer db: invalid binary format")

// ErrBrokenFile means the file is not complete.
var ErrBrokenFile = errors.New("singleton k-mer db: broken file")

// ErrKOverflow means K < 1 or K > 32.
var ErrKOverflow = errors.New("singleton k-mer db: k-mer size [1, 32] overflow")

// ErrVersionMismatch means version mismatch between files and program
var ErrVersionMismatch = errors.New("singleton k-mer db: version mismatch")

// ErrChecksumMismatch means a k-mer block is corrupted.
var ErrChecksumMismatch = errors.New("singleton k-mer db: checksum mismatch")

// Write writes a Database to w, and returns the number of bytes
// of the uncompressed data.
//
// Header (16 bytes):
//
//	Magic number, 8 bytes, ".kcls-db".
//	Main and minor versions, 2 bytes.
//	K size, 1 byte.
//	Flag, 1 byte. The lowest bit is set for a zstd-compressed body.
//	Blank, 4 bytes.
//
// Body, compressed as a single zstd stream if the flag is set:
//
//	Number of references, 8 bytes.
//	For each reference:
//		Label length, 2 bytes.
//		Label, sizes vary.
//		Number of k-mers, 8 bytes.
//	For each reference:
//		Block length, 8 bytes.
//		Block, delta values of k-mers in pairs:
//			Control byte for 2 deltas, 1 byte.
//			Deltas of the 2 k-mers, 2-16 bytes.
//		Checksum of the block, 8 bytes, wyhash.
//
// The first delta of a block is the first k-mer itself. A block of an odd
// number of k-mers ends with a pair padded with a zero delta.
func Write(w io.Writer, db *Database, compress bool) (int, error) {
	var N int
	var err error

	if err = kmer.CheckK(int(db.K)); err != nil {
		return N, ErrKOverflow
	}
	if len(db.Labels) != len(db.Kmers) {
		return N, ErrInvalidFileFormat
	}

	var flag uint8
	if compress {
		flag |= FlagCompressed
	}

	// 8-byte magic number
	err = binary.Write(w, be, Magic)
	if err != nil {
		return N, err
	}
	N += 8

	// 8-byte meta info
	err = binary.Write(w, be, [8]uint8{MainVersion, MinorVersion, db.K, flag})
	if err != nil {
		return N, err
	}
	N += 8

	var bw *bufio.Writer
	var zw *zstd.Encoder
	if compress {
		zw, err = zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return N, err
		}
		bw = bufio.NewWriter(zw)
	} else {
		bw = bufio.NewWriter(w)
	}

	n, err := writeBody(bw, db)
	N += n
	if err != nil {
		if zw != nil {
			zw.Close()
		}
		return N, err
	}

	if err = bw.Flush(); err != nil {
		return N, err
	}
	if zw != nil {
		if err = zw.Close(); err != nil {
			return N, err
		}
	}
	return N, nil
}

func writeBody(w *bufio.Writer, db *Database) (int, error) {
	var N int
	var err error
	buf := make([]byte, 36)

	// 8-byte the number of references
	be.PutUint64(buf[:8], uint64(len(db.Labels)))
	if _, err = w.Write(buf[:8]); err != nil {
		return N, err
	}
	N += 8

	for i, label := range db.Labels {
		if len(label) > 1<<16-1 {
			return N, errors.New("singleton k-mer db: label too long: " + label[:64] + "...")
		}
		be.PutUint16(buf[:2], uint16(len(label)))
		if _, err = w.Write(buf[:2]); err != nil {
			return N, err
		}
		if _, err = w.WriteString(label); err != nil {
			return N, err
		}
		be.PutUint64(buf[:8], uint64(len(db.Kmers[i])))
		if _, err = w.Write(buf[:8]); err != nil {
			return N, err
		}
		N += 10 + len(label)
	}

	block := &bytes.Buffer{}
	for _, list := range db.Kmers {
		block.Reset()
		if err = encodeBlock(block, list, buf); err != nil {
			return N, err
		}

		be.PutUint64(buf[:8], uint64(block.Len()))
		if _, err = w.Write(buf[:8]); err != nil {
			return N, err
		}
		if _, err = w.Write(block.Bytes()); err != nil {
			return N, err
		}
		be.PutUint64(buf[:8], wyhash.Hash(block.Bytes(), checksumSeed))
		if _, err = w.Write(buf[:8]); err != nil {
			return N, err
		}
		N += 16 + block.Len()
	}

	return N, nil
}

// encodeBlock saves deltas of an ascending k-mer list in pairs.
func encodeBlock(block *bytes.Buffer, list []uint64, buf []byte) error {
	var pre, d1, d2 uint64
	for i := 0; i < len(list); i += 2 {
		if i > 0 && list[i] <= pre {
			return ErrInvalidFileFormat
		}
		d1 = list[i] - pre
		pre = list[i]
		if i+1 < len(list) {
			if list[i+1] <= pre {
				return ErrInvalidFileFormat
			}
			d2 = list[i+1] - pre
			pre = list[i+1]
		} else {
			d2 = 0
		}

		block.Write(appendPair(buf[:0], d1, d2))
	}
	return nil
}

// Read reads a Database from r.
func Read(r io.Reader) (*Database, error) {
	buf := make([]byte, 16)

	// check the magic number
	_, err := io.ReadFull(r, buf[:8])
	if err != nil {
		return nil, brokenIfUnexpectedEOF(err)
	}
	if !bytes.Equal(buf[:8], Magic[:]) {
		return nil, ErrInvalidFileFormat
	}

	// read version information
	_, err = io.ReadFull(r, buf[:8])
	if err != nil {
		return nil, brokenIfUnexpectedEOF(err)
	}
	// check compatibility
	if MainVersion != buf[0] {
		return nil, ErrVersionMismatch
	}
	k := buf[2] // k-mer size
	if kmer.CheckK(int(k)) != nil {
		return nil, ErrKOverflow
	}
	flag := buf[3]

	var br *bufio.Reader
	if flag&FlagCompressed > 0 {
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		br = bufio.NewReader(zr)
	} else {
		br = bufio.NewReader(r)
	}

	db, err := readBody(br, k)
	if err != nil {
		return nil, brokenIfUnexpectedEOF(err)
	}
	return db, nil
}

// maximum preallocation for counts read from a file
const (
	maxInitRefs  = 1 << 10
	maxInitBlock = 1 << 20
)

// maxKmersPerRef is the upper bound of the k-mer number of a reference,
// so that the block length limit does not overflow.
const maxKmersPerRef = 1 << 56

func readBody(r *bufio.Reader, k uint8) (*Database, error) {
	buf := make([]byte, 8)

	// the number of references
	_, err := io.ReadFull(r, buf)
	if err != nil {
		return nil, err
	}
	nRefs := be.Uint64(buf)
	if nRefs == 0 {
		return nil, ErrNoReferences
	}
	if nRefs > 1<<32 {
		return nil, ErrInvalidFileFormat
	}

	labels := make([]string, 0, min(nRefs, maxInitRefs))
	sizes := make([]uint64, 0, min(nRefs, maxInitRefs))
	var lenLabel int
	for i := uint64(0); i < nRefs; i++ {
		_, err = io.ReadFull(r, buf[:2])
		if err != nil {
			return nil, err
		}
		lenLabel = int(be.Uint16(buf[:2]))
		label := make([]byte, lenLabel)
		_, err = io.ReadFull(r, label)
		if err != nil {
			return nil, err
		}
		labels = append(labels, string(label))

		_, err = io.ReadFull(r, buf)
		if err != nil {
			return nil, err
		}
		sizes = append(sizes, be.Uint64(buf))
	}

	var maxKmer uint64
	if k == kmer.MaxK {
		maxKmer = ^uint64(0)
	} else {
		maxKmer = 1<<(uint(k)<<1) - 1
	}

	kmers := make([][]uint64, len(sizes))
	var lenBlock, nPairs uint64
	block := &bytes.Buffer{}
	for i, n := range sizes {
		// k-mers are distinct
		if n > maxKmersPerRef || (n > 0 && n-1 > maxKmer) {
			return nil, ErrInvalidFileFormat
		}

		_, err = io.ReadFull(r, buf)
		if err != nil {
			return nil, err
		}
		lenBlock = be.Uint64(buf)

		// each pair takes 3-17 bytes
		nPairs = (n + 1) >> 1
		if lenBlock < nPairs*3 || lenBlock > nPairs*maxPairLen {
			return nil, ErrBrokenFile
		}

		block.Reset()
		block.Grow(int(min(lenBlock, maxInitBlock)))
		_, err = io.CopyN(block, r, int64(lenBlock))
		if err != nil {
			return nil, err
		}

		_, err = io.ReadFull(r, buf)
		if err != nil {
			return nil, err
		}
		if be.Uint64(buf) != wyhash.Hash(block.Bytes(), checksumSeed) {
			return nil, ErrChecksumMismatch
		}

		kmers[i], err = decodeBlock(block.Bytes(), n, maxKmer)
		if err != nil {
			return nil, err
		}
	}

	return &Database{K: k, Labels: labels, Kmers: kmers}, nil
}

// decodeBlock restores n k-mers from the deltas in block.
func decodeBlock(block []byte, n uint64, maxKmer uint64) ([]uint64, error) {
	// a pair takes at least 3 bytes
	list := make([]uint64, 0, min(n, uint64(len(block)/3+1)<<1))
	var d1, d2, pre uint64
	var nBytes int
	var offset int
	for uint64(len(list)) < n {
		d1, d2, nBytes = readPair(block[offset:])
		if nBytes == 0 {
			return nil, ErrBrokenFile
		}
		offset += nBytes

		if (len(list) > 0 && d1 == 0) || pre+d1 < pre {
			return nil, ErrInvalidFileFormat
		}
		pre += d1
		list = append(list, pre)

		if uint64(len(list)) == n {
			break
		}
		if d2 == 0 || pre+d2 < pre {
			return nil, ErrInvalidFileFormat
		}
		pre += d2
		list = append(list, pre)
	}
	if offset != len(block) {
		return nil, ErrBrokenFile
	}
	if n > 0 && list[n-1] > maxKmer {
		return nil, ErrInvalidFileFormat
	}
	return list, nil
}

func brokenIfUnexpectedEOF(err error) error {
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		return ErrBrokenFile
	}
	return err
}

// Save writes a Database to a file. The data is written to a temporary file
// first, which is renamed to the destination after it is completely written,
// so a failed call leaves no output file.
func Save(file string, db *Database, compress bool) (int, error) {
	tmpFile := filepath.Clean(file) + TmpFileExt
	fh, err := os.Create(tmpFile)
	if err != nil {
		return 0, err
	}

	N, err := Write(fh, db, compress)
	if err != nil {
		fh.Close()
		os.Remove(tmpFile)
		return N, err
	}
	if err = fh.Close(); err != nil {
		os.Remove(tmpFile)
		return N, err
	}
	if err = os.Rename(tmpFile, file); err != nil {
		os.Remove(tmpFile)
		return N, err
	}
	return N, nil
}

// Load reads a Database from a file.
func Load(file string) (*Database, error) {
	fh, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return Read(bufio.NewReader(fh))
}

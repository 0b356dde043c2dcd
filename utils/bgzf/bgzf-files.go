// bamsplit: a high-performance tool for splitting and merging BAM files.
// Copyright (c) 2026 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/bamsplit/blob/master/LICENSE.txt>.

// Package bgzf locates safe parallel-read boundaries in BGZF files.
//
// A BGZF file is a series of independently compressed gzip members,
// each at most 64 KiB. Any member start is a valid place to begin
// decompressing, so a file can be cut into chunks by finding member
// starts near evenly spaced byte offsets, without a pre-built index.
package bgzf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/biogo/hts/bgzf"
)

// maxBgzfBlockSize defines the maximum block size for BGZF files.
const maxBgzfBlockSize = 65536

// blockHeaderSize is the length of a BGZF member header up to and
// including the BSIZE field.
const blockHeaderSize = 18

var bgzfMagic = []byte{0x1f, 0x8b, 0x08, 0x04}

// VirtualOffset is a BGZF virtual file offset: the file offset of a
// compressed block in the upper 48 bits, and the offset into the
// uncompressed block in the lower 16 bits.
type VirtualOffset int64

// NoOffset marks an open end of a Range.
const NoOffset VirtualOffset = -1

// MakeVirtualOffset combines a block file offset and an offset into
// the uncompressed block.
func MakeVirtualOffset(file int64, block uint16) VirtualOffset {
	return VirtualOffset(file<<16 | int64(block))
}

// FromOffset converts a biogo bgzf.Offset.
func FromOffset(off bgzf.Offset) VirtualOffset {
	return MakeVirtualOffset(off.File, off.Block)
}

// File returns the file offset of the compressed block.
func (v VirtualOffset) File() int64 {
	return int64(v) >> 16
}

// Block returns the offset into the uncompressed block.
func (v VirtualOffset) Block() uint16 {
	return uint16(v & 0xffff)
}

// Offset converts to a biogo bgzf.Offset, suitable for seeking.
func (v VirtualOffset) Offset() bgzf.Offset {
	return bgzf.Offset{File: v.File(), Block: v.Block()}
}

func (v VirtualOffset) String() string {
	if v == NoOffset {
		return "none"
	}
	return fmt.Sprintf("%v:%v", v.File(), v.Block())
}

// Range is a half-open interval [Start, Stop) of virtual offsets. A
// Start of NoOffset means the first record after the header, a Stop of
// NoOffset means the end of the file.
type Range struct {
	Start, Stop VirtualOffset
}

// WholeFile is the range covering all records of a file.
var WholeFile = Range{Start: NoOffset, Stop: NoOffset}

// Before reports whether a record starting at off lies before the end
// of the range.
func (r Range) Before(off VirtualOffset) bool {
	return r.Stop == NoOffset || off < r.Stop
}

// IsBlockStart checks if the given bytes start with a BGZF block
// header: the gzip magic with the FEXTRA flag set, followed by the BC
// extra subfield identifier.
func IsBlockStart(b []byte) bool {
	return len(b) >= blockHeaderSize &&
		bytes.HasPrefix(b, bgzfMagic) &&
		b[12] == 'B' && b[13] == 'C'
}

// blockSize returns the total size of the block whose header starts
// b, from its BSIZE field.
func blockSize(b []byte) int64 {
	return int64(binary.LittleEndian.Uint16(b[16:18])) + 1
}

// scanBlockStarts returns, for each candidate offset, the file offset
// of the first block start within the following window bytes, or -1
// if there is none. Blocks without payload, such as the EOF marker and
// the empty blocks some writers emit before it, are skipped, since no
// record can start in them.
func scanBlockStarts(r io.ReaderAt, candidates []int64, window int64) ([]int64, error) {
	buf := make([]byte, window+blockHeaderSize)
	var isize [4]byte
	result := make([]int64, len(candidates))
	for c, offset := range candidates {
		result[c] = -1
		n, err := r.ReadAt(buf, offset)
		if err != nil && err != io.EOF {
			return nil, err
		}
		data := buf[:n]
		for i := int64(0); i < window && i < int64(len(data)); i++ {
			if !IsBlockStart(data[i:]) {
				continue
			}
			size := blockSize(data[i:])
			if size < blockHeaderSize+8 {
				continue
			}
			if _, err := r.ReadAt(isize[:], offset+i+size-4); err != nil {
				if err == io.EOF {
					continue
				}
				return nil, err
			}
			if binary.LittleEndian.Uint32(isize[:]) == 0 {
				i += size - 1
				continue
			}
			result[c] = offset + i
			break
		}
	}
	return result, nil
}

// LocateBoundaries splits the BGZF file at path into at most chunks
// ranges that each start at a compressed block boundary.
//
// The candidate cut points are chunks-1 evenly spaced byte offsets.
// Each is moved forward to the nearest block start, looking at most
// 64 KiB (or the distance between candidates, if smaller) ahead.
// Candidates without a block start in reach are dropped, and duplicate
// block starts are merged. If several candidates collapse into a single
// block start, the file is too small to split and the result is a
// single range covering the whole file. Block starts at or before
// firstRecord, the file offset of the block that holds the first
// alignment record, are dropped as well, again falling back to the
// whole file when no cut point is left.
//
// The file must consist of blocks that start at record boundaries.
func LocateBoundaries(path string, chunks int, firstRecord int64) (ranges []Range, funcErr error) {
	if chunks <= 1 {
		return []Range{WholeFile}, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := file.Close(); funcErr == nil {
			funcErr = err
		}
	}()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}

	step := info.Size() / int64(chunks)
	candidates := make([]int64, 0, chunks-1)
	for i := 1; i < chunks; i++ {
		candidates = append(candidates, step*int64(i))
	}

	window := int64(maxBgzfBlockSize)
	if len(candidates) > 1 {
		var gap int64
		for i := 1; i < len(candidates); i++ {
			if d := candidates[i] - candidates[i-1]; d > gap {
				gap = d
			}
		}
		if gap < window {
			window = gap
		}
	}
	if window <= 0 {
		return []Range{WholeFile}, nil
	}

	adjusted, err := scanBlockStarts(file, candidates, window)
	if err != nil {
		return nil, fmt.Errorf("%v, while scanning for BGZF blocks in %v", err, path)
	}

	var distinct []int64
	for _, offset := range adjusted {
		if offset < 0 {
			continue
		}
		if n := len(distinct); n > 0 && distinct[n-1] >= offset {
			continue
		}
		distinct = append(distinct, offset)
	}
	if len(candidates) > 1 && len(distinct) <= 1 {
		return []Range{WholeFile}, nil
	}

	var offsets []VirtualOffset
	for _, offset := range distinct {
		if offset > firstRecord {
			offsets = append(offsets, MakeVirtualOffset(offset, 0))
		}
	}

	if len(offsets) == 0 {
		return []Range{WholeFile}, nil
	}

	ranges = make([]Range, 0, len(offsets)+1)
	start := NoOffset
	for _, offset := range offsets {
		ranges = append(ranges, Range{Start: start, Stop: offset})
		start = offset
	}
	ranges = append(ranges, Range{Start: start, Stop: NoOffset})
	return ranges, nil
}

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

package bgzf

import (
	"bytes"
	"encoding/binary"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/biogo/hts/bgzf"
)

// writeBlocks writes each payload as its own BGZF block and returns
// the file offsets of all blocks, including the EOF marker.
func writeBlocks(t *testing.T, path string, payloads [][]byte) []int64 {
	file, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := bgzf.NewWriter(file, 1)
	for _, payload := range payloads {
		if _, err := w.Write(payload); err != nil {
			t.Fatal(err)
		}
		if err := w.Flush(); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := file.Close(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var starts []int64
	for i := 0; i < len(data); {
		if !IsBlockStart(data[i:]) {
			t.Fatalf("no block start at %v", i)
		}
		starts = append(starts, int64(i))
		i += int(binary.LittleEndian.Uint16(data[i+16:i+18])) + 1
	}
	return starts
}

// eofBlock is the BGZF end-of-file marker, an empty block.
var eofBlock = []byte{
	0x1f, 0x8b, 0x08, 0x04, 0x00, 0x00,
	0x00, 0x00, 0x00, 0xff, 0x06, 0x00,
	0x42, 0x43, 0x02, 0x00, 0x1b, 0x00,
	0x03, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
}

// compressBlock returns payload compressed into a single BGZF block.
func compressBlock(t *testing.T, payload []byte) []byte {
	var buf bytes.Buffer
	w := bgzf.NewWriter(&buf, 1)
	if _, err := w.Write(payload); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()
	return data[:blockSize(data)]
}

func randomPayloads(n, size int) [][]byte {
	rnd := rand.New(rand.NewSource(42))
	payloads := make([][]byte, n)
	for i := range payloads {
		payloads[i] = make([]byte, size)
		rnd.Read(payloads[i])
	}
	return payloads
}

func TestVirtualOffset(t *testing.T) {
	v := MakeVirtualOffset(123456, 7)
	if v.File() != 123456 || v.Block() != 7 {
		t.Error("MakeVirtualOffset failed")
	}
	if int64(v) != 123456<<16|7 {
		t.Error("virtual offset layout failed")
	}
	if FromOffset(v.Offset()) != v {
		t.Error("Offset round trip failed")
	}
	if NoOffset.String() != "none" || v.String() != "123456:7" {
		t.Error("String failed")
	}
}

func TestRangeBefore(t *testing.T) {
	r := Range{Start: MakeVirtualOffset(10, 0), Stop: MakeVirtualOffset(20, 0)}
	if !r.Before(MakeVirtualOffset(19, 65535)) {
		t.Error("Before 1 failed")
	}
	if r.Before(MakeVirtualOffset(20, 0)) {
		t.Error("Before 2 failed")
	}
	if !WholeFile.Before(MakeVirtualOffset(1<<40, 0)) {
		t.Error("Before 3 failed")
	}
}

func TestIsBlockStart(t *testing.T) {
	if !IsBlockStart(eofBlock) {
		t.Error("EOF marker not recognized")
	}
	if blockSize(eofBlock) != int64(len(eofBlock)) {
		t.Error("blockSize failed")
	}
	if IsBlockStart(eofBlock[:blockHeaderSize-1]) {
		t.Error("short block header accepted")
	}
	noBC := append([]byte(nil), eofBlock...)
	noBC[12] = 'X'
	if IsBlockStart(noBC) {
		t.Error("block without BC subfield accepted")
	}
}

func TestLocateBoundariesSingleChunk(t *testing.T) {
	ranges, err := LocateBoundaries(filepath.Join(t.TempDir(), "missing.bam"), 1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(ranges) != 1 || ranges[0] != WholeFile {
		t.Error("single chunk is not the whole file")
	}
}

func TestLocateBoundaries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocks.gz")
	starts := writeBlocks(t, path, randomPayloads(200, 1000))
	isStart := make(map[int64]bool)
	for _, s := range starts[:len(starts)-1] {
		isStart[s] = true
	}

	ranges, err := LocateBoundaries(path, 4, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(ranges) != 4 {
		t.Fatalf("expected 4 ranges, got %v", len(ranges))
	}
	if ranges[0].Start != NoOffset || ranges[len(ranges)-1].Stop != NoOffset {
		t.Error("open ends missing")
	}
	for i := 1; i < len(ranges); i++ {
		cut := ranges[i].Start
		if ranges[i-1].Stop != cut {
			t.Errorf("ranges %v and %v are not contiguous", i-1, i)
		}
		if cut.Block() != 0 || !isStart[cut.File()] {
			t.Errorf("cut %v is not a block start", cut)
		}
		if i > 1 && ranges[i-1].Start >= cut {
			t.Errorf("cut %v is not increasing", cut)
		}
	}
}

func TestLocateBoundariesSkipsHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocks.gz")
	starts := writeBlocks(t, path, randomPayloads(200, 1000))

	ranges, err := LocateBoundaries(path, 4, starts[120])
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range ranges {
		if r.Start != NoOffset && r.Start.File() <= starts[120] {
			t.Errorf("range starts at %v, inside the header", r.Start)
		}
	}
	if len(ranges) != 2 {
		t.Errorf("expected 2 ranges, got %v", len(ranges))
	}

	ranges, err = LocateBoundaries(path, 4, starts[len(starts)-2])
	if err != nil {
		t.Fatal(err)
	}
	if len(ranges) != 1 || ranges[0] != WholeFile {
		t.Error("expected fallback to the whole file")
	}
}

func TestLocateBoundariesTinyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiny.gz")
	writeBlocks(t, path, [][]byte{[]byte("BAM\x01")})

	ranges, err := LocateBoundaries(path, 8, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(ranges) != 1 || ranges[0] != WholeFile {
		t.Errorf("expected the whole file, got %v", ranges)
	}
}

func TestLocateBoundariesSkipsEmptyBlocks(t *testing.T) {
	payloads := randomPayloads(2, 30000)
	first := compressBlock(t, payloads[0])
	second := compressBlock(t, payloads[1])
	var data []byte
	data = append(data, first...)
	for i := 0; i < 100; i++ {
		data = append(data, eofBlock...)
	}
	secondStart := int64(len(data))
	data = append(data, second...)
	data = append(data, eofBlock...)
	path := filepath.Join(t.TempDir(), "empty-blocks.gz")
	if err := os.WriteFile(path, data, 0666); err != nil {
		t.Fatal(err)
	}

	ranges, err := LocateBoundaries(path, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	cut := MakeVirtualOffset(secondStart, 0)
	want := []Range{{Start: NoOffset, Stop: cut}, {Start: cut, Stop: NoOffset}}
	if len(ranges) != 2 || ranges[0] != want[0] || ranges[1] != want[1] {
		t.Errorf("expected %v, got %v", want, ranges)
	}
}

func TestLocateBoundariesSingleCutPoint(t *testing.T) {
	payloads := randomPayloads(2, 30000)
	var data []byte
	data = append(data, compressBlock(t, payloads[0])...)
	secondStart := int64(len(data))
	data = append(data, compressBlock(t, payloads[1][:5000])...)
	data = append(data, eofBlock...)
	path := filepath.Join(t.TempDir(), "two-blocks.gz")
	if err := os.WriteFile(path, data, 0666); err != nil {
		t.Fatal(err)
	}

	// One candidate may cut the file.
	ranges, err := LocateBoundaries(path, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(ranges) != 2 || ranges[1].Start != MakeVirtualOffset(secondStart, 0) {
		t.Errorf("expected a cut at %v, got %v", secondStart, ranges)
	}

	// Several candidates that collapse into one block start do not.
	ranges, err = LocateBoundaries(path, 8, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(ranges) != 1 || ranges[0] != WholeFile {
		t.Errorf("expected the whole file, got %v", ranges)
	}
}

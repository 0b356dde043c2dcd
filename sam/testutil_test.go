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

package sam

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/bgzf"
	htssam "github.com/biogo/hts/sam"
)

var cbTag = htssam.NewTag("CB")

func newTestHeader(t *testing.T, names ...string) *htssam.Header {
	t.Helper()
	refs := make([]*htssam.Reference, len(names))
	for i, name := range names {
		ref, err := htssam.NewReference(name, "", "", 1000000, nil, nil)
		if err != nil {
			t.Fatal(err)
		}
		refs[i] = ref
	}
	header, err := htssam.NewHeader(nil, refs)
	if err != nil {
		t.Fatal(err)
	}
	return header
}

func cbAux(t *testing.T, value string) htssam.Aux {
	t.Helper()
	aux, err := htssam.NewAux(cbTag, value)
	if err != nil {
		t.Fatal(err)
	}
	return aux
}

// newTestRecord returns a mapped record on the first reference of
// header, with a CB tag if barcode is not empty.
func newTestRecord(t *testing.T, header *htssam.Header, name string, pos int, barcode string) *htssam.Record {
	t.Helper()
	var aux []htssam.Aux
	if barcode != "" {
		aux = append(aux, cbAux(t, barcode))
	}
	cigar := []htssam.CigarOp{htssam.NewCigarOp(htssam.CigarMatch, 4)}
	rec, err := htssam.NewRecord(name, header.Refs()[0], nil, pos, -1, 0, 60, cigar, []byte("ACGT"), []byte{30, 31, 32, 33}, aux)
	if err != nil {
		t.Fatal(err)
	}
	return rec
}

// encodeBAM returns the uncompressed BAM encoding of a header and
// records.
func encodeBAM(t *testing.T, header *htssam.Header, records ...*htssam.Record) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := bam.NewWriter(&buf, header, 1)
	if err != nil {
		t.Fatal(err)
	}
	for _, rec := range records {
		if err := w.Write(rec); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	r, err := bgzf.NewReader(&buf, 1)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

// writeTestBAM writes a BAM file in which the header and every record
// occupy their own BGZF blocks, as indexed BAM files produced by
// samtools do, and an empty index next to it.
func writeTestBAM(t *testing.T, path string, header *htssam.Header, records []*htssam.Record) {
	t.Helper()
	writeCorruptTestBAM(t, path, header, records, nil)
}

// writeCorruptTestBAM is writeTestBAM, except that the records whose
// indexes are in corrupt get a reference id the header does not
// define. Such a record is framed correctly but cannot be decoded.
func writeCorruptTestBAM(t *testing.T, path string, header *htssam.Header, records []*htssam.Record, corrupt map[int]bool) {
	t.Helper()
	headerRaw := encodeBAM(t, header)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := bgzf.NewWriter(f, 1)
	if _, err := w.Write(headerRaw); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	for i, rec := range records {
		raw := encodeBAM(t, header, rec)[len(headerRaw):]
		if corrupt[i] {
			binary.LittleEndian.PutUint32(raw[4:8], uint32(len(header.Refs())+99))
		}
		if _, err := w.Write(raw); err != nil {
			t.Fatal(err)
		}
		if err := w.Flush(); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path+BaiSuffix, nil, 0666); err != nil {
		t.Fatal(err)
	}
}

func readTestBAM(t *testing.T, path string) (*htssam.Header, []*htssam.Record) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	r, err := bam.NewReader(f, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	var records []*htssam.Record
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		records = append(records, rec)
	}
	return r.Header(), records
}

func readTestNames(t *testing.T, path string) (names []string) {
	t.Helper()
	_, records := readTestBAM(t, path)
	for _, rec := range records {
		names = append(names, rec.Name)
	}
	return names
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func tempDirsLeft(t *testing.T, dir string) bool {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, ".bamsplit-*"))
	if err != nil {
		t.Fatal(err)
	}
	return len(matches) > 0
}

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
	"os"
	"path/filepath"
	"testing"

	htssam "github.com/biogo/hts/sam"
	"github.com/google/go-cmp/cmp"
)

func writeMergeInput(t *testing.T, path string, refs []string, names, barcodes []string) {
	t.Helper()
	header := newTestHeader(t, refs...)
	records := make([]*htssam.Record, len(names))
	for i, name := range names {
		records[i] = newTestRecord(t, header, name, i*10, barcodes[i])
	}
	writeTestBAM(t, path, header, records)
}

func tagValues(t *testing.T, records []*htssam.Record) (values []string) {
	t.Helper()
	for _, rec := range records {
		value, ok := TagValue(rec, cbTag)
		if !ok {
			t.Fatalf("record %v lacks a CB tag", rec.Name)
		}
		values = append(values, string(value))
	}
	return values
}

func TestMerge(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.bam")
	b := filepath.Join(dir, "b.bam")
	writeMergeInput(t, a, []string{"chr1", "chr2"}, []string{"a0", "a1", "a2"}, []string{"AAA", "", "CCC"})
	writeMergeInput(t, b, []string{"chr1", "chr2"}, []string{"b0", "b1"}, []string{"AAA", "GGG"})

	result, err := Merge(MergeParams{
		Inputs:    []string{a, b},
		OutputDir: dir,
		Labels:    []string{"S1_", "S2_"},
		Threads:   4,
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Pass != 4 || result.Fail != 1 || result.Other != 0 {
		t.Errorf("Merge counts failed, got %+v", result)
	}
	if result.PassPath != filepath.Join(dir, MergePassName) || result.FailPath != filepath.Join(dir, MergeFailName) {
		t.Error("Merge output paths failed")
	}

	header, pass := readTestBAM(t, result.PassPath)
	var names []string
	for _, rec := range pass {
		names = append(names, rec.Name)
	}
	if diff := cmp.Diff([]string{"a0", "a2", "b0", "b1"}, names); diff != "" {
		t.Errorf("Merge pass order failed (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"S1_AAA", "S1_CCC", "S2_AAA", "S2_GGG"}, tagValues(t, pass)); diff != "" {
		t.Errorf("Merge relabeling failed (-want +got):\n%s", diff)
	}
	if len(header.Comments) == 0 {
		t.Error("Merge provenance comment failed")
	}
	if diff := cmp.Diff([]string{"a1"}, readTestNames(t, result.FailPath)); diff != "" {
		t.Errorf("Merge fail output failed (-want +got):\n%s", diff)
	}
}

func TestMergeAllowLists(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.bam")
	b := filepath.Join(dir, "b.bam")
	writeMergeInput(t, a, []string{"chr1"}, []string{"a0", "a1", "a2"}, []string{"AAA", "CCC", ""})
	writeMergeInput(t, b, []string{"chr1"}, []string{"b0", "b1"}, []string{"AAA", "GGG"})

	result, err := Merge(MergeParams{
		Inputs:     []string{a, b},
		OutputDir:  dir,
		AllowLists: []ReadNameSet{NewReadNameSet([]string{"a1", "a2"}), nil},
		Labels:     []string{"x-", "y-"},
		Tag:        "CB",
		Threads:    1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a1", "b0", "b1"}, readTestNames(t, result.PassPath)); diff != "" {
		t.Errorf("Merge allow list failed (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a2"}, readTestNames(t, result.FailPath)); diff != "" {
		t.Errorf("Merge allow list fail output failed (-want +got):\n%s", diff)
	}
}

func TestMergeHeaderMismatch(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.bam")
	b := filepath.Join(dir, "b.bam")
	writeMergeInput(t, a, []string{"chr1", "chr2"}, []string{"a0"}, []string{"AAA"})
	writeMergeInput(t, b, []string{"chr1", "chrX"}, []string{"b0"}, []string{"AAA"})

	_, err := Merge(MergeParams{
		Inputs:    []string{a, b},
		OutputDir: dir,
		Labels:    []string{"S1_", "S2_"},
		Threads:   1,
	})
	if kind, ok := KindOf(err); !ok || kind != HeaderMismatch {
		t.Fatalf("Merge header mismatch failed, got %v", err)
	}
	if fileExists(filepath.Join(dir, MergePassName)) || fileExists(filepath.Join(dir, MergeFailName)) {
		t.Error("Merge header mismatch left output files")
	}
}

func TestMergeUnreadableRecords(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.bam")
	header := newTestHeader(t, "chr1")
	records := []*htssam.Record{
		newTestRecord(t, header, "a0", 0, "AAA"),
		newTestRecord(t, header, "a1", 10, "CCC"),
		newTestRecord(t, header, "a2", 20, "GGG"),
	}
	writeCorruptTestBAM(t, a, header, records, map[int]bool{1: true})

	result, err := Merge(MergeParams{
		Inputs:    []string{a},
		OutputDir: dir,
		Labels:    []string{"S1_"},
		Threads:   1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Pass != 2 || result.Fail != 0 || result.Other != 1 {
		t.Errorf("Merge unreadable counts failed, got %+v", result)
	}
	if diff := cmp.Diff([]string{"a0", "a2"}, readTestNames(t, result.PassPath)); diff != "" {
		t.Errorf("Merge unreadable pass output failed (-want +got):\n%s", diff)
	}
}

func TestMergeTruncatedInput(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.bam")
	writeMergeInput(t, a, []string{"chr1"}, []string{"a0", "a1", "a2"}, []string{"AAA", "CCC", "GGG"})
	info, err := os.Stat(a)
	if err != nil {
		t.Fatal(err)
	}
	// Cut the end-of-file blocks and the tail of the last record block.
	if err := os.Truncate(a, info.Size()-70); err != nil {
		t.Fatal(err)
	}

	_, err = Merge(MergeParams{
		Inputs:    []string{a},
		OutputDir: dir,
		Labels:    []string{"S1_"},
		Threads:   1,
	})
	if kind, ok := KindOf(err); !ok || kind != FormatError {
		t.Fatalf("Merge of a truncated input failed, got %v", err)
	}
	if fileExists(filepath.Join(dir, MergePassName)) || fileExists(filepath.Join(dir, MergeFailName)) {
		t.Error("Merge of a truncated input left output files")
	}
}

func TestMergeValidation(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.bam")
	writeMergeInput(t, a, []string{"chr1"}, []string{"a0"}, []string{"AAA"})
	cases := map[string]MergeParams{
		"no inputs":      {OutputDir: dir, Threads: 1},
		"missing input":  {Inputs: []string{filepath.Join(dir, "b.bam")}, OutputDir: dir, Labels: []string{"x"}, Threads: 1},
		"label count":    {Inputs: []string{a}, OutputDir: dir, Threads: 1},
		"allow lists":    {Inputs: []string{a}, OutputDir: dir, Labels: []string{"x"}, AllowLists: []ReadNameSet{nil, nil}, Threads: 1},
		"missing dir":    {Inputs: []string{a}, OutputDir: filepath.Join(dir, "nope"), Labels: []string{"x"}, Threads: 1},
		"bad tag":        {Inputs: []string{a}, OutputDir: dir, Labels: []string{"x"}, Tag: "C", Threads: 1},
		"zero threads":   {Inputs: []string{a}, OutputDir: dir, Labels: []string{"x"}},
		"repeated input": {Inputs: []string{a, a}, OutputDir: dir, Labels: []string{"x", "y"}, Threads: 1},
	}
	noIndex := filepath.Join(dir, "noindex.bam")
	writeMergeInput(t, noIndex, []string{"chr1"}, []string{"n0"}, []string{"AAA"})
	if err := os.Remove(noIndex + BaiSuffix); err != nil {
		t.Fatal(err)
	}
	cases["missing index"] = MergeParams{Inputs: []string{noIndex}, OutputDir: dir, Labels: []string{"x"}, Threads: 1}
	existing := filepath.Join(dir, "existing")
	if err := os.Mkdir(existing, 0777); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(existing, MergePassName), nil, 0666); err != nil {
		t.Fatal(err)
	}
	cases["existing output"] = MergeParams{Inputs: []string{a}, OutputDir: existing, Labels: []string{"x"}, Threads: 1}
	for name, params := range cases {
		if _, err := Merge(params); err == nil {
			t.Errorf("Merge validation %v failed", name)
		} else if kind, _ := KindOf(err); kind != UsageError {
			t.Errorf("Merge validation %v failed, got %v", name, err)
		}
	}
	if info, err := os.Stat(filepath.Join(existing, MergePassName)); err != nil || info.Size() != 0 {
		t.Error("Merge validation overwrote an existing output")
	}
}

func TestRelabel(t *testing.T) {
	header := newTestHeader(t, "chr1")
	rec := newTestRecord(t, header, "r0", 0, "ACGT")
	rec.AuxFields = append(rec.AuxFields, htssam.Aux{'X', 'A', 'A', 'q'})
	ok, err := relabel(rec, cbTag, "S1_")
	if err != nil || !ok {
		t.Fatal("relabel failed")
	}
	if value, _ := TagValue(rec, cbTag); string(value) != "S1_ACGT" {
		t.Errorf("relabel failed, got %q", value)
	}
	if len(rec.AuxFields) != 2 {
		t.Error("relabel duplicated a field")
	}

	ok, err = relabel(rec, htssam.NewTag("XA"), "S2_")
	if err != nil || !ok {
		t.Fatal("relabel of a character field failed")
	}
	if value, _ := TagValue(rec, htssam.NewTag("XA")); string(value) != "S2_q" {
		t.Errorf("relabel of a character field failed, got %q", value)
	}

	if ok, _ := relabel(rec, htssam.NewTag("ZZ"), "S3_"); ok {
		t.Error("relabel of a missing field failed")
	}
}

func TestDefaultCodecThreads(t *testing.T) {
	for threads, want := range map[int]int{1: 1, 2: 1, 3: 1, 4: 1, 8: 3, 16: 7} {
		if got := DefaultCodecThreads(threads); got != want {
			t.Errorf("DefaultCodecThreads(%v) failed, got %v", threads, got)
		}
	}
}

func TestCountDiscrepancies(t *testing.T) {
	if countDiscrepancies([]string{"chr1", "chr2"}, []string{"chr1", "chr2"}) != 0 {
		t.Error("countDiscrepancies of equal lists failed")
	}
	if countDiscrepancies([]string{"chr1", "chr2", "chr3"}, []string{"chr1", "chrX", "chr3"}) == 0 {
		t.Error("countDiscrepancies of different lists failed")
	}
	if countDiscrepancies(nil, nil) != 0 {
		t.Error("countDiscrepancies of empty lists failed")
	}
}

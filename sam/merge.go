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
	"fmt"
	"log"
	"path/filepath"
	"strings"

	htssam "github.com/biogo/hts/sam"
	"github.com/exascience/pargo/pipeline"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/exascience/bamsplit/internal"
	"github.com/exascience/bamsplit/utils/bgzf"
)

const (
	// MergePassName is the merge output for records that carry the tag.
	MergePassName = "out_path.bam"

	// MergeFailName is the merge output for records without the tag.
	MergeFailName = "fail_bam.bam"

	// DefaultMergeTag is the tag that merge relabels by default.
	DefaultMergeTag = "CB"
)

// ReadNameSet is a set of read names. A nil set accepts every name.
type ReadNameSet map[string]struct{}

// NewReadNameSet returns a set of the given names.
func NewReadNameSet(names []string) ReadNameSet {
	set := make(ReadNameSet, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

// Contains tells whether name is in the set.
func (set ReadNameSet) Contains(name string) bool {
	if set == nil {
		return true
	}
	_, ok := set[name]
	return ok
}

// MergeParams are the parameters of Merge.
type MergeParams struct {
	Inputs    []string
	OutputDir string

	// AllowLists is either nil or has one set of read names per input.
	AllowLists []ReadNameSet

	// Labels has one prefix per input for the values of Tag.
	Labels []string
	Tag    string

	Threads int

	// CodecThreads is the number of BGZF compression goroutines of the
	// pass output and the inputs. Zero means DefaultCodecThreads(Threads).
	CodecThreads int
}

// MergeResult summarizes a successful Merge.
type MergeResult struct {
	Pass, Fail, Other  int
	PassPath, FailPath string
}

// DefaultCodecThreads returns the number of threads for BGZF
// compression when a merge is given threads in total.
func DefaultCodecThreads(threads int) int {
	if n := threads/2 - 1; n > 1 {
		return n
	}
	return 1
}

func referenceNames(header *htssam.Header) []string {
	refs := header.Refs()
	names := make([]string, len(refs))
	for i, ref := range refs {
		names[i] = ref.Name()
	}
	return names
}

// countDiscrepancies returns the number of non-equal edit operations
// between two sequences of reference names.
func countDiscrepancies(a, b []string) (count int) {
	for _, op := range difflib.NewMatcher(a, b).GetOpCodes() {
		if op.Tag != 'e' {
			count++
		}
	}
	return count
}

// reconcileHeaders compares the reference names of every pair of
// headers.
func reconcileHeaders(inputs []string, headers []*htssam.Header) error {
	names := make([][]string, len(headers))
	for i, header := range headers {
		names[i] = referenceNames(header)
	}
	var mismatch HeaderMismatchError
	for i := range headers {
		for j := i + 1; j < len(headers); j++ {
			count := countDiscrepancies(names[i], names[j])
			log.Printf("Found %v discrepancies between sequence names in the header of %v and %v.", count, inputs[i], inputs[j])
			mismatch.Discrepancies = append(mismatch.Discrepancies, HeaderDiscrepancy{A: inputs[i], B: inputs[j], Count: count})
		}
	}
	if mismatch.Total() > 0 {
		return &mismatch
	}
	return nil
}

// mergedHeader returns a copy of the first header with a comment that
// names all inputs.
func mergedHeader(first *htssam.Header, inputs []string) *htssam.Header {
	header := first.Clone()
	header.Comments = append(header.Comments,
		"bamsplit merge of "+strings.Join(inputs, ", ")+", header of "+inputs[0])
	return header
}

func readHeader(path string) (header *htssam.Header, funcErr error) {
	in, err := Open(path, 1)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := in.Close(); funcErr == nil {
			funcErr = err
		}
	}()
	return in.Header(), nil
}

// relabel prefixes the value of tag with label. It reports false if
// the record does not carry the tag as text.
func relabel(rec *htssam.Record, tag htssam.Tag, label string) (bool, error) {
	i := findAux(rec, tag)
	if i < 0 {
		return false, nil
	}
	old, ok := auxText(rec.AuxFields[i])
	if !ok {
		return false, nil
	}
	aux, err := htssam.NewAux(tag, label+string(old))
	if err != nil {
		return false, err
	}
	fields := make(htssam.AuxFields, 0, len(rec.AuxFields))
	fields = append(fields, rec.AuxFields[:i]...)
	fields = append(fields, rec.AuxFields[i+1:]...)
	rec.AuxFields = append(fields, aux)
	return true, nil
}

// relabelFile streams one input into the pass and fail outputs.
func relabelFile(input string, threads int, allow ReadNameSet, label string, tag htssam.Tag, pass, fail *OutputFile, result *MergeResult) (funcErr error) {
	in, err := Open(input, threads)
	if err != nil {
		return err
	}
	defer func() {
		if err := in.Close(); funcErr == nil {
			funcErr = err
		}
	}()
	src, err := newRecordSource(in, bgzf.WholeFile, true)
	if err != nil {
		return err
	}
	var p pipeline.Pipeline
	p.Source(src)
	p.SetVariableBatchSize(512, 4096)
	p.Add(pipeline.StrictOrd(pipeline.Receive(func(_ int, data interface{}) interface{} {
		for _, rec := range data.([]*htssam.Record) {
			if !allow.Contains(rec.Name) {
				continue
			}
			ok, err := relabel(rec, tag, label)
			if err != nil {
				p.SetErr(fmt.Errorf("%w, while relabeling %v", err, rec.Name))
				return nil
			}
			out := fail
			if ok {
				out = pass
			}
			if err := out.Write(rec); err != nil {
				p.SetErr(fmt.Errorf("%w, while writing to %v", err, out.Name()))
				return nil
			}
			if ok {
				result.Pass++
			} else {
				result.Fail++
			}
		}
		return nil
	})))
	p.Run()
	result.Other += src.Unreadable()
	if err := p.Err(); err != nil {
		return err
	}
	return src.Err()
}

// Merge concatenates the records of several BAM files with the same
// reference sequences into one pass file, after prefixing their tag
// values with a label per input. Records without the tag go to a fail
// file instead.
func Merge(params MergeParams) (result *MergeResult, funcErr error) {
	if params.Tag == "" {
		params.Tag = DefaultMergeTag
	}
	if err := checkMergeParams(&params); err != nil {
		return nil, err
	}
	tag, _ := ParseTag(params.Tag)

	headers := make([]*htssam.Header, len(params.Inputs))
	for i, input := range params.Inputs {
		header, err := readHeader(input)
		if err != nil {
			return nil, err
		}
		headers[i] = header
	}
	if err := reconcileHeaders(params.Inputs, headers); err != nil {
		return nil, err
	}
	header := mergedHeader(headers[0], params.Inputs)

	passPath := filepath.Join(params.OutputDir, MergePassName)
	failPath := filepath.Join(params.OutputDir, MergeFailName)
	defer func() {
		if funcErr != nil {
			if err := internal.RemoveFiles(passPath, failPath); err != nil {
				log.Printf("Warning: %v, while removing incomplete output files.", err)
			}
			result = nil
		}
	}()
	threads := params.CodecThreads
	if threads == 0 {
		threads = DefaultCodecThreads(params.Threads)
	}
	pass, err := Create(passPath, header, threads)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := pass.Close(); funcErr == nil {
			funcErr = err
		}
	}()
	fail, err := Create(failPath, header, 1)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := fail.Close(); funcErr == nil {
			funcErr = err
		}
	}()

	result = &MergeResult{PassPath: passPath, FailPath: failPath}
	log.Printf("Headers ok, writing %v from %v.", passPath, strings.Join(params.Inputs, " and "))
	for i, input := range params.Inputs {
		var allow ReadNameSet
		if params.AllowLists != nil {
			allow = params.AllowLists[i]
		}
		if err := relabelFile(input, threads, allow, params.Labels[i], tag, pass, fail, result); err != nil {
			return nil, fmt.Errorf("%w, while merging %v", err, input)
		}
	}
	log.Printf("Processed all reads. Found %v reads passing, %v reads failing, %v unreadable reads.", result.Pass, result.Fail, result.Other)
	return result, nil
}

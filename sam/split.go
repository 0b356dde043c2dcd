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
	"io"
	"log"
	"math"
	"os"
	"path/filepath"

	htssam "github.com/biogo/hts/sam"
	"github.com/exascience/pargo/parallel"
	"github.com/google/uuid"

	"github.com/exascience/bamsplit/internal"
	"github.com/exascience/bamsplit/utils/bgzf"
)

// SplitParams are the parameters of Split.
type SplitParams struct {
	// Input is a BAM file with an index next to it.
	Input string

	// Destinations has one list of classifier values per output file.
	Destinations [][]string

	// Outputs are the destination files, in order.
	Outputs []string

	// Field selects what a record is classified by. Tag names the
	// auxiliary field when Field is AuxTag.
	Field ClassifierField
	Tag   string

	// Threads bounds both the number of chunks and the number of
	// concurrent workers.
	Threads int

	// DumpPath optionally receives all records without a destination.
	DumpPath string
}

// SplitResult summarizes a successful Split.
type SplitResult struct {
	Metrics

	// Routed counts the records written per destination.
	Routed []int
}

// batches returns the number of parallel batches for n tasks.
func batches(n, threads int) int {
	if threads > n {
		return n
	}
	return threads
}

// firstRecordOffset returns the file offset of the BGZF block that
// holds the first record of a BAM file, or math.MaxInt64 if there are
// no records.
func firstRecordOffset(path string) (offset int64, funcErr error) {
	in, err := Open(path, 1)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := in.Close(); funcErr == nil {
			funcErr = err
		}
	}()
	if _, err := in.Read(); err != nil {
		if err == io.EOF {
			return math.MaxInt64, nil
		}
		return 0, formatError(path, err)
	}
	return bgzf.FromOffset(in.LastChunk().Begin).File(), nil
}

// transpose turns per-chunk outcomes into per-target lists of
// temporary files in chunk order. The dump files, if any, form the
// last target.
func transpose(outcomes []ChunkOutcome, destinations int, dump bool) [][]string {
	targets := destinations
	if dump {
		targets++
	}
	result := make([][]string, targets)
	for d := range result {
		result[d] = make([]string, len(outcomes))
	}
	for c, outcome := range outcomes {
		for d, path := range outcome.OutPaths {
			result[d][c] = path
		}
		if dump {
			result[destinations][c] = outcome.DumpPath
		}
	}
	return result
}

// finalizeOutput produces target from temporary files that each hold
// the records of one chunk.
func finalizeOutput(target string, header *htssam.Header, sources []string) (funcErr error) {
	if len(sources) == 1 {
		return internal.MoveFile(sources[0], target)
	}
	out, err := Create(target, header, 1)
	if err != nil {
		return err
	}
	defer func() {
		if err := out.Close(); funcErr == nil {
			funcErr = err
		}
	}()
	for _, source := range sources {
		if err := func() (funcErr error) {
			in, err := Open(source, 1)
			if err != nil {
				return err
			}
			defer func() {
				if err := in.Close(); funcErr == nil {
					funcErr = err
				}
			}()
			return copyRecords(in, out)
		}(); err != nil {
			return fmt.Errorf("%w, while finalizing %v", err, target)
		}
	}
	return nil
}

// finalize produces all targets in parallel. When one of them fails,
// all targets are removed.
func finalize(targets []string, header *htssam.Header, sources [][]string, threads int) error {
	errs := make([]error, len(targets))
	parallel.Range(0, len(targets), batches(len(targets), threads), func(low, high int) {
		for i := low; i < high; i++ {
			errs[i] = finalizeOutput(targets[i], header, sources[i])
		}
	})
	for _, err := range errs {
		if err != nil {
			if nerr := internal.RemoveFiles(targets...); nerr != nil {
				log.Printf("Warning: %v, while removing incomplete output files.", nerr)
			}
			return err
		}
	}
	return nil
}

// runChunks runs all tasks on at most threads workers and returns the
// outcomes in chunk order.
func runChunks(tasks []*ChunkTask, threads int) ([]ChunkOutcome, error) {
	outcomes := make([]ChunkOutcome, len(tasks))
	errs := make([]error, len(tasks))
	parallel.Range(0, len(tasks), batches(len(tasks), threads), func(low, high int) {
		for i := low; i < high; i++ {
			outcomes[i], errs[i] = processChunk(tasks[i])
		}
	})
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return outcomes, nil
}

// Split routes each record of a BAM file to the output file whose
// classifier values contain the record's value. Records without a
// destination are written to the dump file if there is one, and
// dropped otherwise.
//
// The input is cut into at most params.Threads chunks at BGZF block
// boundaries. Each output file holds the header of the input followed
// by its records in input order, independent of the number of threads.
func Split(params SplitParams) (result *SplitResult, funcErr error) {
	if err := checkSplitParams(&params); err != nil {
		return nil, err
	}
	var tag htssam.Tag
	if params.Field == AuxTag {
		tag, _ = ParseTag(params.Tag)
	}

	index := BuildIndex(params.Destinations)
	for _, d := range index.Shadowed() {
		log.Printf("Warning: values listed for %v also appear for a later output file, the later one receives those records.", params.Outputs[d])
	}

	header, err := readHeader(params.Input)
	if err != nil {
		return nil, err
	}

	ranges := []bgzf.Range{bgzf.WholeFile}
	if params.Threads > 1 {
		firstRecord, err := firstRecordOffset(params.Input)
		if err != nil {
			return nil, err
		}
		if ranges, err = bgzf.LocateBoundaries(params.Input, params.Threads, firstRecord); err != nil {
			return nil, fmt.Errorf("%w, while locating chunk boundaries in %v", err, params.Input)
		}
	}
	log.Printf("Splitting %v in %v chunks.", params.Input, len(ranges))

	tempDir := filepath.Join(filepath.Dir(params.Outputs[0]), ".bamsplit-"+uuid.NewString())
	if err := os.Mkdir(tempDir, 0700); err != nil {
		return nil, fmt.Errorf("%w, while creating temporary directory %v", err, tempDir)
	}
	defer func() {
		if err := os.RemoveAll(tempDir); funcErr == nil {
			funcErr = err
		}
	}()

	tasks := make([]*ChunkTask, len(ranges))
	for i, rng := range ranges {
		tasks[i] = &ChunkTask{
			Ordinal: i,
			Range:   rng,
			Input:   params.Input,
			TempDir: tempDir,
			Index:   index,
			Field:   params.Field,
			Tag:     tag,
			Dump:    params.DumpPath != "",
		}
	}
	outcomes, err := runChunks(tasks, params.Threads)
	if err != nil {
		return nil, err
	}

	result = &SplitResult{Routed: make([]int, len(params.Outputs))}
	for _, outcome := range outcomes {
		result.Metrics = result.Metrics.Add(outcome.Metrics)
		for d, n := range outcome.Routed {
			result.Routed[d] += n
		}
	}
	log.Printf("Visited %v alignments, dumped %v and kept %v.", result.TotalReads, result.Dumped, result.KeptReads)

	if result.KeptReads == 0 {
		what := "read name"
		if params.Field == AuxTag {
			what = "tag " + params.Tag
		}
		return nil, &Error{
			Kind: ZeroYield,
			Path: params.Input,
			Err:  fmt.Errorf("none of %v alignments were kept, check that the %v holds the listed values", result.TotalReads, what),
		}
	}

	targets := params.Outputs
	if params.DumpPath != "" {
		targets = append(append([]string(nil), targets...), params.DumpPath)
	}
	if err := finalize(targets, header, transpose(outcomes, len(params.Outputs), params.DumpPath != ""), params.Threads); err != nil {
		return nil, err
	}

	for d, n := range result.Routed {
		if n == 0 {
			log.Printf("Warning: no alignments were written to %v.", params.Outputs[d])
		}
	}
	return result, nil
}

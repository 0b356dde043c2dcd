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
	"path/filepath"

	htssam "github.com/biogo/hts/sam"
	"github.com/exascience/pargo/pipeline"

	"github.com/exascience/bamsplit/utils/bgzf"
)

// ChunkTask describes the part of a split handled by one worker.
type ChunkTask struct {
	Ordinal int
	Range   bgzf.Range
	Input   string
	TempDir string
	Index   *Index
	Field   ClassifierField
	Tag     htssam.Tag
	Dump    bool
}

// ChunkOutcome is the result of a ChunkTask.
type ChunkOutcome struct {
	Metrics

	// OutPaths has one temporary file per destination.
	OutPaths []string

	// DumpPath is the temporary dump file, or "" if there is none.
	DumpPath string

	// Routed counts the records written per destination.
	Routed []int
}

func chunkOutPath(dir string, ordinal, destination int) string {
	return filepath.Join(dir, fmt.Sprintf("tmp_chunk%v_out%v.bam", ordinal, destination))
}

func chunkDumpPath(dir string, ordinal int) string {
	return filepath.Join(dir, fmt.Sprintf("tmp_chunk%v_dump.bam", ordinal))
}

// processChunk routes the records of a chunk to temporary per-destination
// files, which all carry the header of the input.
func processChunk(task *ChunkTask) (outcome ChunkOutcome, funcErr error) {
	in, err := Open(task.Input, 1)
	if err != nil {
		return outcome, err
	}
	defer func() {
		if err := in.Close(); funcErr == nil {
			funcErr = err
		}
	}()
	header := in.Header()

	destinations := task.Index.Destinations()
	outcome.OutPaths = make([]string, destinations)
	outcome.Routed = make([]int, destinations)
	outs := make([]*OutputFile, destinations)
	defer func() {
		for _, out := range outs {
			if out == nil {
				continue
			}
			if err := out.Close(); funcErr == nil {
				funcErr = err
			}
		}
	}()
	for d := range outs {
		path := chunkOutPath(task.TempDir, task.Ordinal, d)
		if outs[d], err = Create(path, header, 1); err != nil {
			return outcome, err
		}
		outcome.OutPaths[d] = path
	}

	var dump *OutputFile
	if task.Dump {
		path := chunkDumpPath(task.TempDir, task.Ordinal)
		if dump, err = Create(path, header, 1); err != nil {
			return outcome, err
		}
		defer func() {
			if err := dump.Close(); funcErr == nil {
				funcErr = err
			}
		}()
		outcome.DumpPath = path
	}

	src, err := newRecordSource(in, task.Range, false)
	if err != nil {
		return outcome, err
	}

	var p pipeline.Pipeline
	p.Source(src)
	p.SetVariableBatchSize(512, 4096)
	p.Add(pipeline.StrictOrd(pipeline.Receive(func(_ int, data interface{}) interface{} {
		for _, rec := range data.([]*htssam.Record) {
			outcome.TotalReads++
			if value, ok := ClassifierValue(rec, task.Field, task.Tag); ok {
				if d, ok := task.Index.Lookup(value); ok {
					if err := outs[d].Write(rec); err != nil {
						p.SetErr(fmt.Errorf("%w, while writing to %v", err, outs[d].Name()))
						return nil
					}
					outcome.KeptReads++
					outcome.Routed[d]++
					continue
				}
			}
			if dump != nil {
				if err := dump.Write(rec); err != nil {
					p.SetErr(fmt.Errorf("%w, while writing to %v", err, dump.Name()))
					return nil
				}
				outcome.Dumped++
			}
		}
		return nil
	})))
	p.Run()
	if err := p.Err(); err != nil {
		return outcome, fmt.Errorf("%w, while processing chunk %v of %v", err, task.Ordinal, task.Input)
	}
	if err := src.Err(); err != nil {
		return outcome, fmt.Errorf("%w, while processing chunk %v of %v", err, task.Ordinal, task.Input)
	}
	return outcome, nil
}

// copyRecords appends all records of in to out, in order.
func copyRecords(in *InputFile, out *OutputFile) error {
	src, err := newRecordSource(in, bgzf.WholeFile, false)
	if err != nil {
		return err
	}
	var p pipeline.Pipeline
	p.Source(src)
	p.SetVariableBatchSize(512, 4096)
	p.Add(pipeline.StrictOrd(pipeline.Receive(func(_ int, data interface{}) interface{} {
		for _, rec := range data.([]*htssam.Record) {
			if err := out.Write(rec); err != nil {
				p.SetErr(fmt.Errorf("%w, while writing to %v", err, out.Name()))
				return nil
			}
		}
		return nil
	})))
	p.Run()
	if err := p.Err(); err != nil {
		return err
	}
	return src.Err()
}

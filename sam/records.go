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
	"context"
	"fmt"
	"io"

	htssam "github.com/biogo/hts/sam"

	"github.com/exascience/bamsplit/utils/bgzf"
)

// maxConsecutiveFailures bounds how many undecodable records in a row
// a lenient recordSource skips before giving up on the input.
const maxConsecutiveFailures = 16

// recordSource is a pipeline.Source of the records of a BAM file that
// start within a range of virtual offsets. Its data are batches of
// type []*htssam.Record.
//
// A strict source stops at the first undecodable record with a
// FormatError. A lenient source counts and skips undecodable records,
// but still fails on a truncated stream.
type recordSource struct {
	in         *InputFile
	rng        bgzf.Range
	lenient    bool
	unreadable int
	failures   int
	done       bool
	err        error
	data       interface{}
}

func newRecordSource(in *InputFile, rng bgzf.Range, lenient bool) (*recordSource, error) {
	if rng.Start != bgzf.NoOffset {
		if err := in.Seek(rng.Start.Offset()); err != nil {
			return nil, formatError(in.Name(), fmt.Errorf("%v, while seeking to offset %v", err, rng.Start))
		}
	}
	return &recordSource{in: in, rng: rng, lenient: lenient}, nil
}

// Err implements the method of the pipeline.Source interface.
func (src *recordSource) Err() error {
	return src.err
}

// Prepare implements the method of the pipeline.Source interface.
func (*recordSource) Prepare(_ context.Context) (size int) {
	return -1
}

// Fetch implements the method of the pipeline.Source interface.
func (src *recordSource) Fetch(size int) (fetched int) {
	if src.done {
		src.data = nil
		return 0
	}
	records := make([]*htssam.Record, 0, size)
	for len(records) < size {
		rec, err := src.in.Read()
		if err == io.EOF {
			src.done = true
			break
		}
		if err != nil {
			if src.lenient {
				src.unreadable++
				src.failures++
				if err != io.ErrUnexpectedEOF && src.failures < maxConsecutiveFailures {
					continue
				}
				if err != io.ErrUnexpectedEOF {
					err = fmt.Errorf("%v consecutive undecodable records, last error: %v", src.failures, err)
				}
			}
			src.err = formatError(src.in.Name(), err)
			src.done = true
			break
		}
		src.failures = 0
		if !src.rng.Before(bgzf.FromOffset(src.in.LastChunk().Begin)) {
			src.done = true
			break
		}
		records = append(records, rec)
	}
	src.data = records
	return len(records)
}

// Data implements the method of the pipeline.Source interface.
func (src *recordSource) Data() interface{} {
	return src.data
}

// Unreadable returns the number of records a lenient source skipped.
func (src *recordSource) Unreadable() int {
	return src.unreadable
}

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
	"io"
	"log"

	htssam "github.com/biogo/hts/sam"
)

// Peek returns the classifier values of the first n records of a BAM
// file that have one.
func Peek(path string, n int, field ClassifierField, tagName string) (values []string, funcErr error) {
	var tag htssam.Tag
	if field == AuxTag {
		var err error
		if tag, err = ParseTag(tagName); err != nil {
			return nil, usageErrorf("", "%v", err)
		}
	}
	if err := checkReadable(path); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	in, err := Open(path, 1)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := in.Close(); funcErr == nil {
			funcErr = err
		}
	}()
	var missing int
	for len(values) < n {
		rec, err := in.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return values, formatError(path, err)
		}
		if value, ok := ClassifierValue(rec, field, tag); ok {
			values = append(values, value)
		} else {
			missing++
		}
	}
	if missing > 0 {
		log.Printf("Skipped %v alignments without a %v value.", missing, field)
	}
	return values, nil
}

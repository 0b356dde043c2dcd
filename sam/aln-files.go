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
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/biogo/hts/bam"
	htssam "github.com/biogo/hts/sam"
)

// Alignment file extensions, and the suffixes of their index files.
const (
	BamExt     = ".bam"
	CramExt    = ".cram"
	BaiSuffix  = ".bai"
	CraiSuffix = ".crai"
)

// InputFile is a BAM file opened for reading.
type InputFile struct {
	*bam.Reader
	file *os.File
	name string
}

// Open a BAM file for input, using threads goroutines for
// decompression.
//
// CRAM files pass the pre-flight checks, but their records cannot be
// decoded, so opening one is a FormatError.
func Open(name string, threads int) (*InputFile, error) {
	if filepath.Ext(name) == CramExt {
		return nil, formatError(name, errors.New("decoding CRAM records is not supported, convert the input to BAM first"))
	}
	if threads < 1 {
		threads = 1
	}
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	reader, err := bam.NewReader(file, threads)
	if err != nil {
		_ = file.Close()
		return nil, formatError(name, err)
	}
	return &InputFile{Reader: reader, file: file, name: name}, nil
}

// Name returns the path the file was opened with.
func (f *InputFile) Name() string {
	return f.name
}

// Close closes the BAM input file.
func (f *InputFile) Close() error {
	err := f.Reader.Close()
	if ferr := f.file.Close(); err == nil {
		err = ferr
	}
	return err
}

// OutputFile is a BAM file opened for writing.
type OutputFile struct {
	*bam.Writer
	file *os.File
	name string
}

// Create a BAM file for output with the given header, using threads
// goroutines for compression. The header is written immediately.
func Create(name string, header *htssam.Header, threads int) (*OutputFile, error) {
	if threads < 1 {
		threads = 1
	}
	file, err := os.Create(name)
	if err != nil {
		return nil, err
	}
	writer, err := bam.NewWriter(file, header, threads)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("%v, while writing header to %v", err, name)
	}
	return &OutputFile{Writer: writer, file: file, name: name}, nil
}

// Name returns the path the file was created with.
func (f *OutputFile) Name() string {
	return f.name
}

// Close flushes and closes the BAM output file.
func (f *OutputFile) Close() error {
	err := f.Writer.Close()
	if ferr := f.file.Close(); err == nil {
		err = ferr
	}
	return err
}

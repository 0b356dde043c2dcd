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
	"strings"
)

// ErrorKind classifies the fatal errors of split and merge.
type ErrorKind int

const (
	// UsageError is a problem with the given paths or parameters,
	// detected before any processing.
	UsageError ErrorKind = iota

	// FormatError is a malformed or undecodable header or record.
	FormatError

	// HeaderMismatch means the inputs of a merge do not share the same
	// reference sequences.
	HeaderMismatch

	// ZeroYield means a split ran to completion without routing a
	// single record to any destination.
	ZeroYield
)

func (kind ErrorKind) String() string {
	switch kind {
	case UsageError:
		return "usage error"
	case FormatError:
		return "format error"
	case HeaderMismatch:
		return "header mismatch"
	case ZeroYield:
		return "zero yield"
	default:
		return fmt.Sprintf("error kind %d", int(kind))
	}
}

// Error is a fatal error of split or merge.
type Error struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (err *Error) Error() string {
	if err.Path != "" && err.Kind != UsageError {
		return fmt.Sprintf("%v: %v, while processing %v", err.Kind, err.Err, err.Path)
	}
	return fmt.Sprintf("%v: %v", err.Kind, err.Err)
}

func (err *Error) Unwrap() error {
	return err.Err
}

func usageErrorf(path, format string, v ...interface{}) error {
	return &Error{Kind: UsageError, Path: path, Err: fmt.Errorf(format, v...)}
}

func formatError(path string, err error) error {
	return &Error{Kind: FormatError, Path: path, Err: err}
}

// KindOf returns the kind of a fatal error returned by this package.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	var m *HeaderMismatchError
	if errors.As(err, &m) {
		return HeaderMismatch, true
	}
	return 0, false
}

// HeaderDiscrepancy is the number of differing spans between the
// reference sequence names of two merge inputs.
type HeaderDiscrepancy struct {
	A, B  string
	Count int
}

// HeaderMismatchError lists all input pairs whose headers disagree.
type HeaderMismatchError struct {
	Discrepancies []HeaderDiscrepancy
}

// Total returns the number of discrepancies over all input pairs.
func (err *HeaderMismatchError) Total() (total int) {
	for _, d := range err.Discrepancies {
		total += d.Count
	}
	return
}

func (err *HeaderMismatchError) Error() string {
	var msg strings.Builder
	fmt.Fprintf(&msg, "%v: %v discrepancies between sequence names of the input headers", HeaderMismatch, err.Total())
	for _, d := range err.Discrepancies {
		if d.Count > 0 {
			fmt.Fprintf(&msg, "; %v in %v and %v", d.Count, d.A, d.B)
		}
	}
	return msg.String()
}

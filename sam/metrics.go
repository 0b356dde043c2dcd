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

// Metrics counts what happened to the records of a split.
type Metrics struct {
	// TotalReads is the number of records visited.
	TotalReads int

	// Dumped is the number of records without a destination that were
	// written to the dump file.
	Dumped int

	// KeptReads is the number of records written to a destination.
	KeptReads int
}

// Add combines the metrics of two disjoint sets of records.
func (m Metrics) Add(other Metrics) Metrics {
	return Metrics{
		TotalReads: m.TotalReads + other.TotalReads,
		Dumped:     m.Dumped + other.Dumped,
		KeptReads:  m.KeptReads + other.KeptReads,
	}
}

// Dropped is the number of records that were neither kept nor dumped.
func (m Metrics) Dropped() int {
	return m.TotalReads - m.KeptReads - m.Dumped
}

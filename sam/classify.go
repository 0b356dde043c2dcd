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
	"strings"

	htssam "github.com/biogo/hts/sam"
	"github.com/bits-and-blooms/bitset"
)

// ClassifierField selects where the classifier value of a record
// comes from.
type ClassifierField int

const (
	// ReadName classifies records by their read name (QNAME).
	ReadName ClassifierField = iota

	// AuxTag classifies records by the value of an optional field.
	AuxTag
)

// ParseClassifierField parses "name" or "tag".
func ParseClassifierField(s string) (ClassifierField, error) {
	switch strings.ToLower(s) {
	case "name":
		return ReadName, nil
	case "tag":
		return AuxTag, nil
	default:
		return 0, fmt.Errorf("invalid classifier field %q, expected name or tag", s)
	}
}

func (field ClassifierField) String() string {
	if field == ReadName {
		return "name"
	}
	return "tag"
}

// ParseTag checks that name is a two-character optional field tag.
func ParseTag(name string) (htssam.Tag, error) {
	if len(name) != 2 {
		return htssam.Tag{}, fmt.Errorf("invalid tag %q, tags have exactly two characters", name)
	}
	return htssam.Tag{name[0], name[1]}, nil
}

// findAux returns the index of the optional field with the given tag,
// or -1.
func findAux(rec *htssam.Record, tag htssam.Tag) int {
	for i, aux := range rec.AuxFields {
		if len(aux) >= 3 && aux[0] == tag[0] && aux[1] == tag[1] {
			return i
		}
	}
	return -1
}

// auxText returns the value of an optional field of type Z (string)
// or A (single character). Other types have no text value.
func auxText(aux htssam.Aux) ([]byte, bool) {
	if len(aux) < 3 {
		return nil, false
	}
	switch aux[2] {
	case 'Z':
		value := aux[3:]
		if n := len(value); n > 0 && value[n-1] == 0 {
			value = value[:n-1]
		}
		return value, true
	case 'A':
		if len(aux) < 4 {
			return nil, false
		}
		return aux[3:4], true
	default:
		return nil, false
	}
}

// TagValue returns the text value of the optional field with the given
// tag. Absent fields and fields that are not of type Z or A have no
// value.
func TagValue(rec *htssam.Record, tag htssam.Tag) ([]byte, bool) {
	i := findAux(rec, tag)
	if i < 0 {
		return nil, false
	}
	return auxText(rec.AuxFields[i])
}

// ClassifierValue extracts the value used to route a record.
func ClassifierValue(rec *htssam.Record, field ClassifierField, tag htssam.Tag) (string, bool) {
	if field == ReadName {
		return rec.Name, true
	}
	value, ok := TagValue(rec, tag)
	if !ok {
		return "", false
	}
	return string(value), true
}

// Index maps classifier values to destination ids. It is built once
// and never modified afterwards, so it can be shared by concurrent
// chunk workers.
type Index struct {
	values       map[string]int
	destinations int
	shadowed     *bitset.BitSet
}

// BuildIndex maps every value of destinations[d] to d. A value that is
// listed for more than one destination is routed to the last of them.
func BuildIndex(destinations [][]string) *Index {
	var total int
	for _, values := range destinations {
		total += len(values)
	}
	index := &Index{
		values:       make(map[string]int, total),
		destinations: len(destinations),
		shadowed:     bitset.New(uint(len(destinations))),
	}
	for d, values := range destinations {
		for _, value := range values {
			if previous, ok := index.values[value]; ok && previous != d {
				index.shadowed.Set(uint(previous))
			}
			index.values[value] = d
		}
	}
	return index
}

// Lookup returns the destination of a classifier value.
func (index *Index) Lookup(value string) (destination int, ok bool) {
	destination, ok = index.values[value]
	return
}

// Destinations returns the number of destinations.
func (index *Index) Destinations() int {
	return index.destinations
}

// Shadowed returns the destinations that lost at least one of their
// values to a later destination.
func (index *Index) Shadowed() (result []int) {
	for i, ok := index.shadowed.NextSet(0); ok; i, ok = index.shadowed.NextSet(i + 1) {
		result = append(result, int(i))
	}
	return
}

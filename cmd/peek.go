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

package cmd

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/exascience/bamsplit/sam"
)

// PeekHelp is the help string for this command.
const PeekHelp = "\npeek parameters:\n" +
	"bamsplit peek bam-file\n" +
	"[--n nr]\n" +
	"[--field [tag | name]]\n" +
	"[--tag tag]\n"

// Peek implements the bamsplit peek command.
func Peek() error {
	var (
		field, tag string
		n          int
	)

	var flags flag.FlagSet

	flags.IntVar(&n, "n", 10, "number of values to print")
	flags.StringVar(&field, "field", "tag", "print an optional field (tag) or the read name (name)")
	flags.StringVar(&tag, "tag", "CB", "the optional field to print")

	parseFlags(&flags, 3, PeekHelp)

	input := getFilename(os.Args[2], PeekHelp)

	// sanity checks

	var sanityChecksFailed bool

	if !checkExist("", input) {
		sanityChecksFailed = true
	}
	classifierField, err := sam.ParseClassifierField(field)
	if err != nil {
		log.Println("Error:", err)
		sanityChecksFailed = true
	}
	if n < 0 {
		log.Println("Error: Invalid n: ", n)
		sanityChecksFailed = true
	}

	if sanityChecksFailed {
		fmt.Fprint(os.Stderr, PeekHelp)
		os.Exit(1)
	}

	values, err := sam.Peek(input, n, classifierField, tag)
	if err != nil {
		return err
	}
	for _, value := range values {
		fmt.Println(value)
	}
	return nil
}

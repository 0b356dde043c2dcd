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

// bamsplit is a high-performance tool for splitting a BAM file into
// many BAM files by barcode or read name, and for merging BAM files
// while relabeling their barcodes.
//
// Please see https://github.com/exascience/bamsplit for a
// documentation of the tool, and the sam package for the API
// documentation.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/exascience/bamsplit/cmd"
)

func printHelp() {
	fmt.Fprintln(os.Stderr, "Available commands: split, merge, peek")
	fmt.Fprint(os.Stderr, cmd.SplitHelp)
	fmt.Fprint(os.Stderr, cmd.MergeHelp)
	fmt.Fprint(os.Stderr, cmd.PeekHelp)
}

func main() {
	fmt.Fprintln(os.Stderr, cmd.ProgramMessage)
	if len(os.Args) < 2 {
		log.Println("Incorrect number of parameters.")
		fmt.Fprint(os.Stderr, cmd.HelpMessage)
		printHelp()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "split":
		err = cmd.Split()
	case "merge":
		err = cmd.Merge()
	case "peek":
		err = cmd.Peek()
	case "help", "-help", "--help", "-h", "--h":
		printHelp()
	default:
		log.Printf("Unknown command %v.\n", os.Args[1])
		printHelp()
		os.Exit(1)
	}
	if err != nil {
		log.Fatal(err)
	}
}

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
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"

	"github.com/exascience/bamsplit/internal"
	"github.com/exascience/bamsplit/sam"
)

// SplitHelp is the help string for this command.
const SplitHelp = "\nsplit parameters:\n" +
	"bamsplit split bam-file destinations-file\n" +
	"[--field [tag | name]]\n" +
	"[--tag tag]\n" +
	"[--dump-file bam-file]\n" +
	"[--nr-of-threads nr]\n" +
	"[--metrics-file file]\n" +
	"[--timed]\n" +
	"[--profile file]\n" +
	"[--log-path path]\n" +
	"The destinations file has one line per value: value<TAB>output-bam-file.\n"

// Split implements the bamsplit split command.
func Split() error {
	var (
		field, tag, dumpFile, metricsFile, profile, logPath string
		nrOfThreads                                         int
		timed                                               bool
	)

	var flags flag.FlagSet

	flags.StringVar(&field, "field", "tag", "classify alignments by an optional field (tag) or by read name (name)")
	flags.StringVar(&tag, "tag", "CB", "the optional field to classify alignments by")
	flags.StringVar(&dumpFile, "dump-file", "", "write alignments without a destination to this file")
	flags.IntVar(&nrOfThreads, "nr-of-threads", 0, "number of chunks and worker threads")
	flags.StringVar(&metricsFile, "metrics-file", "", "write a metrics report to the specified file")
	flags.BoolVar(&timed, "timed", false, "measure the runtime")
	flags.StringVar(&profile, "profile", "", "write a runtime profile to the specified file")
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")

	parseFlags(&flags, 4, SplitHelp)

	input := getFilename(os.Args[2], SplitHelp)
	destinationsFile := getFilename(os.Args[3], SplitHelp)

	if err := setLogOutput(logPath); err != nil {
		return err
	}

	// sanity checks

	var sanityChecksFailed bool

	if !checkExist("", input) {
		sanityChecksFailed = true
	}
	if !checkExist("", destinationsFile) {
		sanityChecksFailed = true
	}

	classifierField, err := sam.ParseClassifierField(field)
	if err != nil {
		log.Println("Error:", err)
		sanityChecksFailed = true
	}

	if metricsFile != "" && !checkCreate("--metrics-file", metricsFile) {
		sanityChecksFailed = true
	}
	if profile != "" && !checkCreate("--profile", profile) {
		sanityChecksFailed = true
	}

	if nrOfThreads < 0 {
		sanityChecksFailed = true
		log.Println("Error: Invalid nr-of-threads: ", nrOfThreads)
	}

	if sanityChecksFailed {
		fmt.Fprint(os.Stderr, SplitHelp)
		os.Exit(1)
	}

	destinations, outputs, err := readDestinationsFile(destinationsFile)
	if err != nil {
		return err
	}

	// building output command line

	var command bytes.Buffer
	fmt.Fprint(&command, os.Args[0], " split ", input, " ", destinationsFile)
	fmt.Fprint(&command, " --field ", classifierField)
	if classifierField == sam.AuxTag {
		fmt.Fprint(&command, " --tag ", tag)
	}
	if dumpFile != "" {
		fmt.Fprint(&command, " --dump-file ", dumpFile)
	}
	if nrOfThreads > 0 {
		runtime.GOMAXPROCS(nrOfThreads)
	} else {
		nrOfThreads = runtime.GOMAXPROCS(0)
	}
	fmt.Fprint(&command, " --nr-of-threads ", nrOfThreads)
	if metricsFile != "" {
		fmt.Fprint(&command, " --metrics-file ", metricsFile)
	}
	if timed {
		fmt.Fprint(&command, " --timed")
	}
	if profile != "" {
		fmt.Fprint(&command, " --profile ", profile)
	}
	if logPath != "" {
		fmt.Fprint(&command, " --log-path ", logPath)
	}

	// executing command

	log.Println("Executing command:\n", command.String())

	params := sam.SplitParams{
		Destinations: destinations,
		Field:        classifierField,
		Tag:          tag,
		Threads:      nrOfThreads,
	}
	if params.Input, err = internal.FullPathname(input); err != nil {
		return err
	}
	for _, output := range outputs {
		fullOutput, err := internal.FullPathname(output)
		if err != nil {
			return err
		}
		params.Outputs = append(params.Outputs, fullOutput)
	}
	if dumpFile != "" {
		if params.DumpPath, err = internal.FullPathname(dumpFile); err != nil {
			return err
		}
	}

	var result *sam.SplitResult
	if err := timedRun(timed, profile, "Splitting.", func() (err error) {
		result, err = sam.Split(params)
		return err
	}); err != nil {
		return err
	}

	if metricsFile != "" {
		report, err := sam.SplitReport(params, result)
		if err != nil {
			return err
		}
		return sam.WriteReport(metricsFile, report)
	}
	return nil
}

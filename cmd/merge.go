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
	"strings"

	"github.com/exascience/bamsplit/internal"
	"github.com/exascience/bamsplit/sam"
)

// MergeHelp is the help string for this command.
const MergeHelp = "\nmerge parameters:\n" +
	"bamsplit merge /path/to/output/\n" +
	"--inputs bam-file,bam-file,...\n" +
	"--labels label,label,...\n" +
	"[--read-names file,file,...]\n" +
	"[--tag tag]\n" +
	"[--nr-of-threads n]\n" +
	"[--codec-threads n]\n" +
	"[--metrics-file file]\n" +
	"[--timed]\n" +
	"[--log-path path]\n" +
	"An empty entry in --read-names accepts all reads of the corresponding input.\n"

// Merge implements the bamsplit merge command.
func Merge() error {
	var (
		inputs, labels, readNames, tag, metricsFile, logPath string
		nrOfThreads, codecThreads                            int
		timed                                                bool
	)

	var flags flag.FlagSet

	flags.StringVar(&inputs, "inputs", "", "comma-separated list of bam files to merge")
	flags.StringVar(&labels, "labels", "", "comma-separated list of prefixes for the tag values of each input")
	flags.StringVar(&readNames, "read-names", "", "comma-separated list of files with the read names to keep from each input")
	flags.StringVar(&tag, "tag", sam.DefaultMergeTag, "the optional field to relabel")
	flags.IntVar(&nrOfThreads, "nr-of-threads", 0, "number of worker threads")
	flags.IntVar(&codecThreads, "codec-threads", 0, "number of compression threads (default derived from nr-of-threads)")
	flags.StringVar(&metricsFile, "metrics-file", "", "write a metrics report to the specified file")
	flags.BoolVar(&timed, "timed", false, "measure the runtime")
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")

	parseFlags(&flags, 3, MergeHelp)

	output := getFilename(os.Args[2], MergeHelp)

	if err := setLogOutput(logPath); err != nil {
		return err
	}

	// sanity checks

	var sanityChecksFailed bool

	inputFiles := splitList(inputs)
	labelList := splitList(labels)
	readNameFiles := splitList(readNames)

	if len(inputFiles) == 0 {
		log.Println("Error: No input files given with --inputs.")
		sanityChecksFailed = true
	}
	for _, input := range inputFiles {
		if !checkExist("--inputs", input) {
			sanityChecksFailed = true
		}
	}
	if len(labelList) != len(inputFiles) {
		log.Printf("Error: %v labels given for %v input files.\n", len(labelList), len(inputFiles))
		sanityChecksFailed = true
	}
	if readNameFiles != nil && len(readNameFiles) != len(inputFiles) {
		log.Printf("Error: %v read name files given for %v input files.\n", len(readNameFiles), len(inputFiles))
		sanityChecksFailed = true
	}
	for _, file := range readNameFiles {
		if file != "" && !checkExist("--read-names", file) {
			sanityChecksFailed = true
		}
	}
	if !checkExist("", output) {
		sanityChecksFailed = true
	}
	if metricsFile != "" && !checkCreate("--metrics-file", metricsFile) {
		sanityChecksFailed = true
	}

	if nrOfThreads < 0 {
		sanityChecksFailed = true
		log.Println("Error: Invalid nr-of-threads: ", nrOfThreads)
	}
	if codecThreads < 0 {
		sanityChecksFailed = true
		log.Println("Error: Invalid codec-threads: ", codecThreads)
	}

	if sanityChecksFailed {
		fmt.Fprint(os.Stderr, MergeHelp)
		os.Exit(1)
	}

	// building output command line

	var command bytes.Buffer
	fmt.Fprint(&command, os.Args[0], " merge ", output)
	fmt.Fprint(&command, " --inputs ", strings.Join(inputFiles, ","))
	fmt.Fprint(&command, " --labels ", strings.Join(labelList, ","))
	if readNameFiles != nil {
		fmt.Fprint(&command, " --read-names ", strings.Join(readNameFiles, ","))
	}
	fmt.Fprint(&command, " --tag ", tag)
	if nrOfThreads > 0 {
		runtime.GOMAXPROCS(nrOfThreads)
	} else {
		nrOfThreads = runtime.GOMAXPROCS(0)
	}
	fmt.Fprint(&command, " --nr-of-threads ", nrOfThreads)
	if codecThreads > 0 {
		fmt.Fprint(&command, " --codec-threads ", codecThreads)
	}
	if metricsFile != "" {
		fmt.Fprint(&command, " --metrics-file ", metricsFile)
	}
	if timed {
		fmt.Fprint(&command, " --timed")
	}
	if logPath != "" {
		fmt.Fprint(&command, " --log-path ", logPath)
	}

	// executing command

	log.Println("Executing command:\n", command.String())

	params := sam.MergeParams{
		Labels:       labelList,
		Tag:          tag,
		Threads:      nrOfThreads,
		CodecThreads: codecThreads,
	}
	var err error
	if params.OutputDir, err = internal.FullPathname(output); err != nil {
		return err
	}
	for _, input := range inputFiles {
		fullInput, err := internal.FullPathname(input)
		if err != nil {
			return err
		}
		params.Inputs = append(params.Inputs, fullInput)
	}
	if readNameFiles != nil {
		params.AllowLists = make([]sam.ReadNameSet, len(readNameFiles))
		for i, file := range readNameFiles {
			if file == "" {
				continue
			}
			names, err := readLines(file)
			if err != nil {
				return err
			}
			params.AllowLists[i] = sam.NewReadNameSet(names)
		}
	}

	var result *sam.MergeResult
	if err := timedRun(timed, "", "Merging.", func() (err error) {
		result, err = sam.Merge(params)
		return err
	}); err != nil {
		return err
	}

	if metricsFile != "" {
		report, err := sam.MergeReport(params, result)
		if err != nil {
			return err
		}
		return sam.WriteReport(metricsFile, report)
	}
	return nil
}

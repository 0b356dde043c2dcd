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
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"

	"github.com/exascience/bamsplit/utils"
)

// OutputSummary describes one output file in a Report.
type OutputSummary struct {
	Path    string `yaml:"path"`
	Records int    `yaml:"records"`
	BLAKE3  string `yaml:"blake3"`
}

// SplitCounts are the record counts of a split in a Report.
type SplitCounts struct {
	Total   int `yaml:"total"`
	Kept    int `yaml:"kept"`
	Dumped  int `yaml:"dumped"`
	Dropped int `yaml:"dropped"`
}

// MergeCounts are the record counts of a merge in a Report.
type MergeCounts struct {
	Pass  int `yaml:"pass"`
	Fail  int `yaml:"fail"`
	Other int `yaml:"other"`
}

// Report is the metrics file written after a split or merge.
type Report struct {
	Program string          `yaml:"program"`
	Command string          `yaml:"command"`
	Inputs  []string        `yaml:"inputs"`
	Split   *SplitCounts    `yaml:"split,omitempty"`
	Merge   *MergeCounts    `yaml:"merge,omitempty"`
	Outputs []OutputSummary `yaml:"outputs"`
}

// FileDigest returns the hex encoded BLAKE3 digest of a file.
func FileDigest(path string) (digest string, funcErr error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := f.Close(); funcErr == nil {
			funcErr = err
		}
	}()
	hasher := blake3.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", fmt.Errorf("%w, while hashing %v", err, path)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func summarize(path string, records int) (OutputSummary, error) {
	digest, err := FileDigest(path)
	return OutputSummary{Path: path, Records: records, BLAKE3: digest}, err
}

func programString() string {
	return utils.ProgramName + " " + utils.ProgramVersion
}

// SplitReport describes the outcome of a split.
func SplitReport(params SplitParams, result *SplitResult) (*Report, error) {
	report := &Report{
		Program: programString(),
		Command: "split",
		Inputs:  []string{params.Input},
		Split: &SplitCounts{
			Total:   result.TotalReads,
			Kept:    result.KeptReads,
			Dumped:  result.Dumped,
			Dropped: result.Dropped(),
		},
	}
	for d, output := range params.Outputs {
		summary, err := summarize(output, result.Routed[d])
		if err != nil {
			return nil, err
		}
		report.Outputs = append(report.Outputs, summary)
	}
	if params.DumpPath != "" {
		summary, err := summarize(params.DumpPath, result.Dumped)
		if err != nil {
			return nil, err
		}
		report.Outputs = append(report.Outputs, summary)
	}
	return report, nil
}

// MergeReport describes the outcome of a merge.
func MergeReport(params MergeParams, result *MergeResult) (*Report, error) {
	report := &Report{
		Program: programString(),
		Command: "merge",
		Inputs:  params.Inputs,
		Merge:   &MergeCounts{Pass: result.Pass, Fail: result.Fail, Other: result.Other},
	}
	pass, err := summarize(result.PassPath, result.Pass)
	if err != nil {
		return nil, err
	}
	fail, err := summarize(result.FailPath, result.Fail)
	if err != nil {
		return nil, err
	}
	report.Outputs = []OutputSummary{pass, fail}
	return report, nil
}

// WriteReport writes a report as YAML.
func WriteReport(path string, report *Report) error {
	data, err := yaml.Marshal(report)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0666)
}

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
	"os"
	"path/filepath"
)

// checkInput verifies that an alignment file exists and has an index
// next to it.
func checkInput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return usageErrorf(path, "input file %v does not exist", path)
		}
		return usageErrorf(path, "%v, while accessing input file %v", err, path)
	}
	if info.IsDir() {
		return usageErrorf(path, "input file %v is a directory", path)
	}
	var index string
	switch filepath.Ext(path) {
	case BamExt:
		index = path + BaiSuffix
	case CramExt:
		index = path + CraiSuffix
	default:
		return usageErrorf(path, "input file %v does not end in %v or %v, unable to validate", path, BamExt, CramExt)
	}
	if _, err := os.Stat(index); err != nil {
		return usageErrorf(path, "index file %v for input file %v does not exist", index, path)
	}
	return nil
}

// checkReadable verifies that an input file exists and is not a
// directory.
func checkReadable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return usageErrorf(path, "input file %v does not exist", path)
		}
		return usageErrorf(path, "%v, while accessing input file %v", err, path)
	}
	if info.IsDir() {
		return usageErrorf(path, "input file %v is a directory", path)
	}
	return nil
}

// checkOutput verifies that an output file can be created without
// overwriting anything.
func checkOutput(path string) error {
	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		return usageErrorf(path, "output path %v is a directory", path)
	case err == nil:
		return usageErrorf(path, "output file %v already exists", path)
	case !os.IsNotExist(err):
		return usageErrorf(path, "%v, while accessing output path %v", err, path)
	}
	dir := filepath.Dir(path)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return usageErrorf(path, "output directory %v does not exist", dir)
	}
	return nil
}

// checkDistinct verifies that none of the given files refer to the
// same path.
func checkDistinct(paths ...string) error {
	seen := make(map[string]string, len(paths))
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return usageErrorf(path, "%v, while resolving %v", err, path)
		}
		if other, ok := seen[abs]; ok {
			return usageErrorf(path, "%v and %v refer to the same file", other, path)
		}
		seen[abs] = path
	}
	return nil
}

func checkSplitParams(params *SplitParams) error {
	if err := checkInput(params.Input); err != nil {
		return err
	}
	if len(params.Outputs) == 0 {
		return usageErrorf("", "no output files given")
	}
	if len(params.Destinations) != len(params.Outputs) {
		return usageErrorf("", "%v barcode lists given for %v output files", len(params.Destinations), len(params.Outputs))
	}
	if params.Threads < 1 {
		return usageErrorf("", "number of threads must be at least 1, got %v", params.Threads)
	}
	if params.Field == AuxTag {
		if _, err := ParseTag(params.Tag); err != nil {
			return usageErrorf("", "%v", err)
		}
	}
	outputs := params.Outputs
	if params.DumpPath != "" {
		outputs = append(append([]string(nil), outputs...), params.DumpPath)
	}
	if err := checkDistinct(append([]string{params.Input}, outputs...)...); err != nil {
		return err
	}
	for _, output := range outputs {
		if err := checkOutput(output); err != nil {
			return err
		}
	}
	return nil
}

func checkMergeParams(params *MergeParams) error {
	if len(params.Inputs) == 0 {
		return usageErrorf("", "no input files given")
	}
	for _, input := range params.Inputs {
		if err := checkInput(input); err != nil {
			return err
		}
	}
	if err := checkDistinct(params.Inputs...); err != nil {
		return err
	}
	if len(params.Labels) != len(params.Inputs) {
		return usageErrorf("", "%v labels given for %v input files", len(params.Labels), len(params.Inputs))
	}
	if params.AllowLists != nil && len(params.AllowLists) != len(params.Inputs) {
		return usageErrorf("", "%v read name lists given for %v input files", len(params.AllowLists), len(params.Inputs))
	}
	if params.Threads < 1 {
		return usageErrorf("", "number of threads must be at least 1, got %v", params.Threads)
	}
	if params.CodecThreads < 0 {
		return usageErrorf("", "number of codec threads must not be negative, got %v", params.CodecThreads)
	}
	if _, err := ParseTag(params.Tag); err != nil {
		return usageErrorf("", "%v", err)
	}
	info, err := os.Stat(params.OutputDir)
	if err != nil || !info.IsDir() {
		return usageErrorf(params.OutputDir, "output directory %v does not exist", params.OutputDir)
	}
	for _, output := range []string{
		filepath.Join(params.OutputDir, MergePassName),
		filepath.Join(params.OutputDir, MergeFailName),
	} {
		if err := checkOutput(output); err != nil {
			return err
		}
	}
	return nil
}

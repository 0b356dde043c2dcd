// Package sam splits BAM files into many outputs according to a
// classifier value per alignment, and merges BAM files with compatible
// headers while relabeling an optional field, taking advantage of
// modern multi-core processors.
//
// Split cuts its input at BGZF block boundaries into one chunk per
// thread, routes the alignments of each chunk to temporary files in
// parallel, and then concatenates the temporary files of each output
// in chunk order. The outputs are therefore the same for any number
// of threads.
//
// Reading and writing BAM files is done with the biogo/hts library.
// The records of a file are streamed through pargo pipelines, see
// https://godoc.org/github.com/ExaScience/pargo/pipeline for details
// of pargo pipelines if necessary.
package sam

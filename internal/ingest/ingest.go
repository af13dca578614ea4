// Package ingest discovers source PDFs and turns them into page records.
package ingest

import (
	"errors"
)

// Load failures that end a load task.
var (
	ErrNoPDFFiles = errors.New("No PDF files found in the selected folder.")
	ErrNoPages    = errors.New("No valid pages found in PDF files.")
)

// PageCounter is the part of the PDF library the loader needs.
type PageCounter interface {
	PageCount(path string) (int, error)
}

// DirStats summarizes a directory scan.
type DirStats struct {
	Scanned uint32
	Matched uint32
	Hidden  uint32
	Loaded  uint32
	Failed  uint32
	Pages   uint32
}

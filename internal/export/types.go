// Package export renders page content to HTML and produces PDF exports of
// pages and the plan sheet.
package export

import (
	"errors"
)

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrPDFDependencyMissing indicates no Chrome/Chromium binary is available.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	ErrNothingToExport      = errors.New("nothing to export")
)

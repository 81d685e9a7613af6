// Package pipeline defines the extraction run: discover export files, stream
// their rows through the filter, and collect samples up to a cap.
package pipeline

import (
	"time"

	"github.com/ajitpratap0/doctext/pkg/errors"
	"github.com/ajitpratap0/doctext/pkg/formats/columnar"
)

var (
	// ErrNoColumnarFiles is returned when the export directory holds no files to scan
	ErrNoColumnarFiles = errors.New(errors.ErrorTypeEmptyResult, "no columnar files found")
	// ErrNoSamples is returned when every row was filtered out
	ErrNoSamples = errors.New(errors.ErrorTypeEmptyResult, "no samples collected")
)

// Sample is a document row that survived filtering
type Sample struct {
	ID   int64
	Text string
	// Length is the number of Unicode code points in Text
	Length int
}

// Config contains the extraction parameters
type Config struct {
	ExportDir  string
	MaxSamples int // <= 0 means no cap
	IDColumn   string
	TextColumn string
	BatchSize  int64
	// ProgressInterval is the number of rows between progress callbacks
	ProgressInterval int
}

// DefaultConfig returns the extraction defaults
func DefaultConfig() Config {
	return Config{
		ExportDir:        "export",
		MaxSamples:       100000,
		IDColumn:         columnar.DefaultIDColumn,
		TextColumn:       columnar.DefaultTextColumn,
		BatchSize:        columnar.DefaultBatchSize,
		ProgressInterval: 10000,
	}
}

// FileStats holds the counters of one scanned file
type FileStats struct {
	Name           string
	Rows           int64
	Kept           int64
	SkippedEmpty   int64
	ExcludedSystem int64
	ExcludedCode   int64
	// Err is set when the file could not be opened or failed mid-read
	Err error
}

// RunStats aggregates counters across the whole run
type RunStats struct {
	FilesDiscovered int
	FilesRead       int
	FilesSkipped    int
	TotalRows       int64
	SkippedEmpty    int64
	ExcludedSystem  int64
	ExcludedCode    int64
	Kept            int64
	CapReached      bool
	Duration        time.Duration
	Files           []FileStats
}

// FilesUnvisited returns how many discovered files were never opened
// because the cap was reached first
func (s *RunStats) FilesUnvisited() int {
	return s.FilesDiscovered - s.FilesRead - s.FilesSkipped
}

// Progress is passed to the progress callback
type Progress struct {
	File      string
	TotalRows int64
	Kept      int64
}

// ProgressFunc receives periodic progress updates
type ProgressFunc func(Progress)

// Result is the outcome of a run. Stats is populated even when Run fails.
type Result struct {
	Samples []Sample
	Stats   *RunStats
}

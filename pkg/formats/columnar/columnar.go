// Package columnar reads document rows out of columnar export files.
//
// Only the two columns the extractor needs are decoded. Rows are streamed
// one Arrow record batch at a time, so a file is never fully materialised.
package columnar

import "errors"

// Format represents a columnar storage format
type Format string

const (
	// Parquet is Apache Parquet format
	Parquet Format = "parquet"
)

const (
	// DefaultIDColumn is the identifier column of the document table export
	DefaultIDColumn = "document_id"
	// DefaultTextColumn is the text column of the document table export
	DefaultTextColumn = "doctext"
	// DefaultBatchSize is the number of rows decoded per record batch
	DefaultBatchSize = 1024
)

// ErrMissingColumn is returned when a required column is not in the file schema
var ErrMissingColumn = errors.New("required column not found")

// Row is one decoded row. The Valid flags are false for null values.
type Row struct {
	ID        int64
	IDValid   bool
	Text      string
	TextValid bool
}

// ReaderConfig configures columnar readers
type ReaderConfig struct {
	IDColumn   string
	TextColumn string
	BatchSize  int64
}

// DefaultReaderConfig returns default reader configuration
func DefaultReaderConfig() *ReaderConfig {
	return &ReaderConfig{
		IDColumn:   DefaultIDColumn,
		TextColumn: DefaultTextColumn,
		BatchSize:  DefaultBatchSize,
	}
}

func (c *ReaderConfig) withDefaults() *ReaderConfig {
	out := DefaultReaderConfig()
	if c == nil {
		return out
	}
	if c.IDColumn != "" {
		out.IDColumn = c.IDColumn
	}
	if c.TextColumn != "" {
		out.TextColumn = c.TextColumn
	}
	if c.BatchSize > 0 {
		out.BatchSize = c.BatchSize
	}
	return out
}

// FileExtension returns the conventional file extension of a format
func FileExtension(format Format) string {
	switch format {
	case Parquet:
		return ".parquet"
	default:
		return ""
	}
}

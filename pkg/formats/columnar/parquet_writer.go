package columnar

import (
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// WriterConfig configures the Parquet writer
type WriterConfig struct {
	IDColumn    string
	TextColumn  string
	Compression string
	// RowGroupSize is the number of rows buffered before a row group is
	// written. Small values produce multi-batch files.
	RowGroupSize int
}

// DefaultWriterConfig returns default writer configuration
func DefaultWriterConfig() *WriterConfig {
	return &WriterConfig{
		IDColumn:     DefaultIDColumn,
		TextColumn:   DefaultTextColumn,
		Compression:  "snappy",
		RowGroupSize: 10000,
	}
}

// withDefaults returns a copy of c with a default row group size
func (c *WriterConfig) withDefaults() *WriterConfig {
	if c == nil {
		return DefaultWriterConfig()
	}
	out := *c
	if out.RowGroupSize <= 0 {
		out.RowGroupSize = DefaultWriterConfig().RowGroupSize
	}
	return &out
}

// ParquetWriter writes document rows with the same two-column layout the
// reader expects. It is used to build exports for tests and local runs.
type ParquetWriter struct {
	config        *WriterConfig
	arrowSchema   *arrow.Schema
	fileWriter    *pqarrow.FileWriter
	recordBuilder *array.RecordBuilder
	currentBatch  int
}

// NewParquetWriter creates a writer on w
func NewParquetWriter(w io.Writer, config *WriterConfig) (*ParquetWriter, error) {
	config = config.withDefaults()
	if config.IDColumn == "" || config.TextColumn == "" {
		return nil, fmt.Errorf("both column names are required for Parquet writer")
	}

	codec, err := parquetCompression(config.Compression)
	if err != nil {
		return nil, err
	}

	arrowSchema := arrow.NewSchema([]arrow.Field{
		{Name: config.IDColumn, Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		{Name: config.TextColumn, Type: arrow.BinaryTypes.String, Nullable: true},
	}, nil)

	pool := memory.NewGoAllocator()
	props := parquet.NewWriterProperties(
		parquet.WithCompression(codec),
		parquet.WithAllocator(pool),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithAllocator(pool))

	fw, err := pqarrow.NewFileWriter(arrowSchema, w, props, arrowProps)
	if err != nil {
		return nil, fmt.Errorf("failed to create Parquet writer: %w", err)
	}

	return &ParquetWriter{
		config:        config,
		arrowSchema:   arrowSchema,
		fileWriter:    fw,
		recordBuilder: array.NewRecordBuilder(pool, arrowSchema),
	}, nil
}

// WriteRow appends a row, writing a row group when the buffer is full
func (pw *ParquetWriter) WriteRow(row Row) error {
	ids := pw.recordBuilder.Field(0).(*array.Int64Builder)
	texts := pw.recordBuilder.Field(1).(*array.StringBuilder)

	if row.IDValid {
		ids.Append(row.ID)
	} else {
		ids.AppendNull()
	}
	if row.TextValid {
		texts.Append(row.Text)
	} else {
		texts.AppendNull()
	}

	pw.currentBatch++
	if pw.currentBatch >= pw.config.RowGroupSize {
		return pw.flushBatch()
	}
	return nil
}

// WriteRows appends rows in order
func (pw *ParquetWriter) WriteRows(rows []Row) error {
	for _, row := range rows {
		if err := pw.WriteRow(row); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes buffered rows and writes the footer
func (pw *ParquetWriter) Close() error {
	if err := pw.flushBatch(); err != nil {
		return err
	}
	pw.recordBuilder.Release()

	if err := pw.fileWriter.Close(); err != nil {
		return fmt.Errorf("failed to close Parquet writer: %w", err)
	}
	return nil
}

func (pw *ParquetWriter) flushBatch() error {
	if pw.currentBatch == 0 {
		return nil
	}

	record := pw.recordBuilder.NewRecord()
	defer record.Release()

	if err := pw.fileWriter.Write(record); err != nil {
		return fmt.Errorf("failed to write record batch: %w", err)
	}

	pw.currentBatch = 0
	return nil
}

// WriteFile writes rows to a new Parquet file at path
func WriteFile(path string, rows []Row, config *WriterConfig) error {
	f, err := os.Create(path) //nolint:gosec // G304: caller-chosen output path
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	pw, err := NewParquetWriter(f, config)
	if err != nil {
		_ = f.Close()
		return err
	}
	if err := pw.WriteRows(rows); err != nil {
		_ = f.Close()
		return err
	}
	// pqarrow closes the sink when the writer is closed
	return pw.Close()
}

func parquetCompression(name string) (compress.Compression, error) {
	switch name {
	case "", "snappy":
		return compress.Codecs.Snappy, nil
	case "none", "uncompressed":
		return compress.Codecs.Uncompressed, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	default:
		return compress.Codecs.Uncompressed, fmt.Errorf("unsupported Parquet compression: %s", name)
	}
}

package columnar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// ParquetReader streams the identifier and text columns of one Parquet file.
// It is not safe for concurrent use.
type ParquetReader struct {
	path       string
	config     *ReaderConfig
	fileReader *file.Reader
	records    pqarrow.RecordReader
	numRows    int64

	batch    arrow.Record
	batchIdx int
	idAt     func(i int) (int64, bool)
	textAt   func(i int) (string, bool)

	row      Row
	rowsRead int64
	err      error
}

// OpenParquet opens path and prepares a record reader projected onto the
// configured columns. It returns an error wrapping ErrMissingColumn when
// either column is absent, and a plain error for unreadable files.
func OpenParquet(ctx context.Context, path string, config *ReaderConfig) (*ParquetReader, error) {
	config = config.withDefaults()

	fr, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open Parquet file: %w", err)
	}

	pr := &ParquetReader{
		path:       path,
		config:     config,
		fileReader: fr,
		numRows:    fr.NumRows(),
	}

	if err := pr.init(ctx); err != nil {
		_ = fr.Close()
		return nil, err
	}
	return pr, nil
}

func (pr *ParquetReader) init(ctx context.Context) error {
	schema := pr.fileReader.MetaData().Schema

	idIdx := schema.ColumnIndexByName(pr.config.IDColumn)
	if idIdx < 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumn, pr.config.IDColumn)
	}
	textIdx := schema.ColumnIndexByName(pr.config.TextColumn)
	if textIdx < 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumn, pr.config.TextColumn)
	}

	arrowReader, err := pqarrow.NewFileReader(pr.fileReader, pqarrow.ArrowReadProperties{
		BatchSize: pr.config.BatchSize,
	}, memory.NewGoAllocator())
	if err != nil {
		return fmt.Errorf("failed to create Arrow reader: %w", err)
	}

	rr, err := arrowReader.GetRecordReader(ctx, []int{idIdx, textIdx}, nil)
	if err != nil {
		return fmt.Errorf("failed to create record reader: %w", err)
	}

	// The projected schema is fixed for the whole file, so the accessors'
	// types are checked once here rather than per batch.
	fields := rr.Schema().Fields()
	if err := checkIDType(pr.config.IDColumn, fieldType(fields, pr.config.IDColumn)); err != nil {
		rr.Release()
		return err
	}
	if err := checkTextType(pr.config.TextColumn, fieldType(fields, pr.config.TextColumn)); err != nil {
		rr.Release()
		return err
	}

	pr.records = rr
	return nil
}

// Next advances to the next row. It returns false at the end of the file
// or on error; check Err afterwards.
func (pr *ParquetReader) Next() bool {
	if pr.err != nil {
		return false
	}

	for pr.batch == nil || pr.batchIdx >= int(pr.batch.NumRows()) {
		if !pr.records.Next() {
			pr.batch = nil
			// The record reader reports io.EOF once every row group is consumed
			if err := pr.records.Err(); err != nil && !errors.Is(err, io.EOF) {
				pr.err = fmt.Errorf("failed to read record batch: %w", err)
			}
			return false
		}
		if err := pr.bindBatch(pr.records.Record()); err != nil {
			pr.err = err
			return false
		}
	}

	id, idOK := pr.idAt(pr.batchIdx)
	text, textOK := pr.textAt(pr.batchIdx)
	pr.row = Row{ID: id, IDValid: idOK, Text: text, TextValid: textOK}
	pr.batchIdx++
	pr.rowsRead++
	return true
}

// Row returns the current row
func (pr *ParquetReader) Row() Row {
	return pr.row
}

// Err returns the first error encountered while reading
func (pr *ParquetReader) Err() error {
	return pr.err
}

// NumRows returns the row count recorded in the file footer
func (pr *ParquetReader) NumRows() int64 {
	return pr.numRows
}

// RowsRead returns the number of rows returned by Next so far
func (pr *ParquetReader) RowsRead() int64 {
	return pr.rowsRead
}

// Close releases the record reader and the underlying file
func (pr *ParquetReader) Close() error {
	pr.batch = nil
	if pr.records != nil {
		pr.records.Release()
		pr.records = nil
	}
	return pr.fileReader.Close()
}

func (pr *ParquetReader) bindBatch(rec arrow.Record) error {
	idCol, err := columnByName(rec, pr.config.IDColumn)
	if err != nil {
		return err
	}
	textCol, err := columnByName(rec, pr.config.TextColumn)
	if err != nil {
		return err
	}

	pr.idAt, err = intAccessor(idCol)
	if err != nil {
		return err
	}
	pr.textAt, err = stringAccessor(textCol)
	if err != nil {
		return err
	}

	pr.batch = rec
	pr.batchIdx = 0
	return nil
}

func columnByName(rec arrow.Record, name string) (arrow.Array, error) {
	indices := rec.Schema().FieldIndices(name)
	if len(indices) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
	}
	return rec.Column(indices[0]), nil
}

func fieldType(fields []arrow.Field, name string) arrow.DataType {
	for _, f := range fields {
		if f.Name == name {
			return f.Type
		}
	}
	return nil
}

func checkIDType(name string, dt arrow.DataType) error {
	if dt == nil {
		return fmt.Errorf("%w: %s", ErrMissingColumn, name)
	}
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64,
		arrow.FLOAT32, arrow.FLOAT64:
		return nil
	default:
		return fmt.Errorf("column %s has unsupported identifier type %s", name, dt)
	}
}

func checkTextType(name string, dt arrow.DataType) error {
	if dt == nil {
		return fmt.Errorf("%w: %s", ErrMissingColumn, name)
	}
	switch dt.ID() {
	case arrow.STRING, arrow.LARGE_STRING, arrow.BINARY, arrow.LARGE_BINARY:
		return nil
	default:
		return fmt.Errorf("column %s has unsupported text type %s", name, dt)
	}
}

// intAccessor coerces any integer or floating point column to int64.
// Floats are truncated toward zero.
func intAccessor(col arrow.Array) (func(int) (int64, bool), error) {
	switch c := col.(type) {
	case *array.Int64:
		return func(i int) (int64, bool) { return c.Value(i), c.IsValid(i) }, nil
	case *array.Int32:
		return func(i int) (int64, bool) { return int64(c.Value(i)), c.IsValid(i) }, nil
	case *array.Int16:
		return func(i int) (int64, bool) { return int64(c.Value(i)), c.IsValid(i) }, nil
	case *array.Int8:
		return func(i int) (int64, bool) { return int64(c.Value(i)), c.IsValid(i) }, nil
	case *array.Uint64:
		return func(i int) (int64, bool) { return int64(c.Value(i)), c.IsValid(i) }, nil //nolint:gosec // node ids fit in int64
	case *array.Uint32:
		return func(i int) (int64, bool) { return int64(c.Value(i)), c.IsValid(i) }, nil
	case *array.Uint16:
		return func(i int) (int64, bool) { return int64(c.Value(i)), c.IsValid(i) }, nil
	case *array.Uint8:
		return func(i int) (int64, bool) { return int64(c.Value(i)), c.IsValid(i) }, nil
	case *array.Float64:
		return func(i int) (int64, bool) { return int64(c.Value(i)), c.IsValid(i) }, nil
	case *array.Float32:
		return func(i int) (int64, bool) { return int64(c.Value(i)), c.IsValid(i) }, nil
	default:
		return nil, fmt.Errorf("unsupported identifier array %T", col)
	}
}

// stringAccessor copies values out of the batch buffers; String.Value
// aliases memory that is released with the batch.
func stringAccessor(col arrow.Array) (func(int) (string, bool), error) {
	switch c := col.(type) {
	case *array.String:
		return func(i int) (string, bool) { return strings.Clone(c.Value(i)), c.IsValid(i) }, nil
	case *array.LargeString:
		return func(i int) (string, bool) { return strings.Clone(c.Value(i)), c.IsValid(i) }, nil
	case *array.Binary:
		return func(i int) (string, bool) { return string(c.Value(i)), c.IsValid(i) }, nil
	case *array.LargeBinary:
		return func(i int) (string, bool) { return string(c.Value(i)), c.IsValid(i) }, nil
	default:
		return nil, fmt.Errorf("unsupported text array %T", col)
	}
}

package columnar

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, path string, cfg *ReaderConfig) []Row {
	t.Helper()
	r, err := OpenParquet(context.Background(), path, cfg)
	require.NoError(t, err)
	defer func() { require.NoError(t, r.Close()) }()

	var rows []Row
	for r.Next() {
		rows = append(rows, r.Row())
	}
	require.NoError(t, r.Err())
	assert.Equal(t, int64(len(rows)), r.RowsRead())
	return rows
}

func TestParquetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "part-0.parquet")
	rows := []Row{
		{ID: 1, IDValid: true, Text: "hello", TextValid: true},
		{ID: 2, IDValid: true},
		{Text: "orphan", TextValid: true},
		{ID: 4, IDValid: true, Text: "naïve café ✓", TextValid: true},
	}
	require.NoError(t, WriteFile(path, rows, nil))

	assert.Equal(t, rows, readAll(t, path, nil))
}

func TestParquetStreamsAcrossBatchesAndRowGroups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.parquet")
	rows := make([]Row, 0, 250)
	for i := 0; i < 250; i++ {
		rows = append(rows, Row{ID: int64(i), IDValid: true, Text: fmt.Sprintf("doc %d", i), TextValid: true})
	}
	require.NoError(t, WriteFile(path, rows, &WriterConfig{
		IDColumn:     DefaultIDColumn,
		TextColumn:   DefaultTextColumn,
		RowGroupSize: 100,
	}))

	got := readAll(t, path, &ReaderConfig{BatchSize: 16})
	assert.Equal(t, rows, got)
}

func TestParquetCustomColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.parquet")
	require.NoError(t, WriteFile(path, []Row{{ID: 9, IDValid: true, Text: "x", TextValid: true}},
		&WriterConfig{IDColumn: "node_id", TextColumn: "body", Compression: "zstd"}))

	got := readAll(t, path, &ReaderConfig{IDColumn: "node_id", TextColumn: "body"})
	assert.Equal(t, []Row{{ID: 9, IDValid: true, Text: "x", TextValid: true}}, got)
}

func TestParquetMissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.parquet")
	require.NoError(t, WriteFile(path, []Row{{ID: 1, IDValid: true, Text: "x", TextValid: true}},
		&WriterConfig{IDColumn: "node_id", TextColumn: DefaultTextColumn}))

	_, err := OpenParquet(context.Background(), path, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), DefaultIDColumn)
}

func TestParquetCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.parquet")
	require.NoError(t, os.WriteFile(path, []byte("definitely not parquet"), 0o644))

	_, err := OpenParquet(context.Background(), path, nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMissingColumn)
}

func TestParquetInt32Identifiers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "int32.parquet")

	pool := memory.NewGoAllocator()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: DefaultIDColumn, Type: arrow.PrimitiveTypes.Int32, Nullable: true},
		{Name: DefaultTextColumn, Type: arrow.BinaryTypes.LargeString, Nullable: true},
		{Name: "title", Type: arrow.BinaryTypes.String, Nullable: true},
	}, nil)
	b := array.NewRecordBuilder(pool, schema)
	defer b.Release()
	b.Field(0).(*array.Int32Builder).AppendValues([]int32{7, 8}, nil)
	b.Field(1).(*array.LargeStringBuilder).AppendValues([]string{"seven", "eight"}, nil)
	b.Field(2).(*array.StringBuilder).AppendValues([]string{"t7", "t8"}, nil)
	rec := b.NewRecord()
	defer rec.Release()

	f, err := os.Create(path)
	require.NoError(t, err)
	w, err := pqarrow.NewFileWriter(schema, f, nil, pqarrow.DefaultWriterProps())
	require.NoError(t, err)
	require.NoError(t, w.Write(rec))
	require.NoError(t, w.Close())

	got := readAll(t, path, nil)
	assert.Equal(t, []Row{
		{ID: 7, IDValid: true, Text: "seven", TextValid: true},
		{ID: 8, IDValid: true, Text: "eight", TextValid: true},
	}, got)
}

func TestParquetEndOfFileIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	one := filepath.Join(dir, "one.parquet")
	require.NoError(t, WriteFile(one, []Row{{ID: 1, IDValid: true, Text: "only", TextValid: true}}, nil))
	empty := filepath.Join(dir, "empty.parquet")
	require.NoError(t, WriteFile(empty, nil, nil))

	for _, path := range []string{one, empty} {
		r, err := OpenParquet(context.Background(), path, nil)
		require.NoError(t, err)

		for r.Next() {
		}
		assert.NoError(t, r.Err(), filepath.Base(path))
		assert.False(t, r.Next(), "exhausted reader stays exhausted")
		assert.NoError(t, r.Err(), filepath.Base(path))
		assert.Equal(t, r.NumRows(), r.RowsRead())
		require.NoError(t, r.Close())
	}
}

func TestWriterLeavesConfigUntouched(t *testing.T) {
	cfg := &WriterConfig{IDColumn: "a", TextColumn: "b"}
	w, err := NewParquetWriter(&nopWriter{}, cfg)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, &WriterConfig{IDColumn: "a", TextColumn: "b"}, cfg)
	assert.Equal(t, ".parquet", FileExtension(Parquet))
}

func TestWriterRejectsUnknownCompression(t *testing.T) {
	_, err := NewParquetWriter(&nopWriter{}, &WriterConfig{IDColumn: "a", TextColumn: "b", Compression: "rar"})
	assert.Error(t, err)
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

// Package testutil provides testing helpers shared by the doctext packages
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/doctext/pkg/formats/columnar"
)

// TestLogger creates a logger that writes to the test output
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a test context with a 30-second timeout.
// The caller must call the returned cancel function to avoid leaks.
func TestContext(_ *testing.T) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// Row returns a document row with both columns set
func Row(id int64, text string) columnar.Row {
	return columnar.Row{ID: id, IDValid: true, Text: text, TextValid: true}
}

// WriteParquet writes rows to a Parquet file at path using the default
// document_id and doctext columns
func WriteParquet(t *testing.T, path string, rows ...columnar.Row) {
	t.Helper()
	require.NoError(t, columnar.WriteFile(path, rows, nil))
}

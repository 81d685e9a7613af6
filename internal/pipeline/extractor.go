package pipeline

import (
	"context"
	stderrors "errors"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ajitpratap0/doctext/pkg/errors"
	"github.com/ajitpratap0/doctext/pkg/filter"
	"github.com/ajitpratap0/doctext/pkg/formats/columnar"
	"github.com/ajitpratap0/doctext/pkg/logger"
)

// ctxCheckInterval is how many rows are read between cancellation checks
const ctxCheckInterval = 1024

// Extractor runs a single extraction. It is not safe for concurrent use
// and holds no state between runs.
type Extractor struct {
	config   Config
	excluded filter.Membership
	logger   *zap.Logger
	progress ProgressFunc
}

// Option configures an Extractor
type Option func(*Extractor)

// WithLogger sets the logger used for per-file diagnostics
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) {
		e.logger = l
	}
}

// WithProgress registers fn to be called every ProgressInterval rows
func WithProgress(fn ProgressFunc) Option {
	return func(e *Extractor) {
		e.progress = fn
	}
}

// New creates an extractor. excluded may be nil.
func New(config Config, excluded filter.Membership, opts ...Option) *Extractor {
	e := &Extractor{
		config:   config,
		excluded: excluded,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logger.OrNop(e.logger)
	return e
}

// DiscoverFiles lists the Parquet files directly inside dir in
// lexicographic order. A missing directory yields no files.
func DiscoverFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to list export directory").
			WithDetail("dir", dir)
	}

	ext := columnar.FileExtension(columnar.Parquet)
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ext {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// Run scans the export and returns the collected samples in scan order.
// It fails with ErrNoColumnarFiles when there is nothing to scan and with
// ErrNoSamples when nothing survived filtering.
func (e *Extractor) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	stats := &RunStats{}
	result := &Result{Stats: stats}

	files, err := DiscoverFiles(e.config.ExportDir)
	if err != nil {
		return result, err
	}
	stats.FilesDiscovered = len(files)
	if len(files) == 0 {
		return result, errors.New(ErrNoColumnarFiles.Type, ErrNoColumnarFiles.Message).
			WithDetail("dir", e.config.ExportDir)
	}

	capacity := e.config.MaxSamples
	if capacity <= 0 || capacity > 4096 {
		capacity = 4096
	}
	samples := make([]Sample, 0, capacity)

	for s := range e.Samples(ctx, files, stats) {
		samples = append(samples, s)
		if e.config.MaxSamples > 0 && len(samples) >= e.config.MaxSamples {
			stats.CapReached = true
			break
		}
	}

	stats.Duration = time.Since(start)
	result.Samples = samples

	if err := ctx.Err(); err != nil {
		return result, errors.Wrap(err, errors.ErrorTypeInternal, "extraction interrupted")
	}
	if len(samples) == 0 {
		return result, errors.New(ErrNoSamples.Type, ErrNoSamples.Message).
			WithDetail("rows", stats.TotalRows).
			WithDetail("files_skipped", stats.FilesSkipped)
	}
	return result, nil
}

// Samples returns a finite, single-use sequence of the qualifying rows of
// files, in file then row order. Counters in stats are updated as rows are
// pulled. Stopping the range early stops the scan; unread rows and files
// are never opened.
func (e *Extractor) Samples(ctx context.Context, files []string, stats *RunStats) iter.Seq[Sample] {
	return func(yield func(Sample) bool) {
		for _, path := range files {
			if ctx.Err() != nil {
				return
			}
			if !e.scanFile(ctx, path, stats, yield) {
				return
			}
		}
	}
}

// scanFile streams one file into yield. It returns false when the consumer
// or the context stopped the scan.
func (e *Extractor) scanFile(ctx context.Context, path string, stats *RunStats, yield func(Sample) bool) bool {
	name := filepath.Base(path)
	fstats := FileStats{Name: name}
	defer func() {
		stats.Files = append(stats.Files, fstats)
	}()

	e.logger.Info("reading file", zap.String("file", name))

	r, err := columnar.OpenParquet(ctx, path, &columnar.ReaderConfig{
		IDColumn:   e.config.IDColumn,
		TextColumn: e.config.TextColumn,
		BatchSize:  e.config.BatchSize,
	})
	if err != nil {
		fstats.Err = fileError(err, name)
		stats.FilesSkipped++
		e.logger.Error("skipping file", zap.String("file", name), zap.Error(err))
		return true
	}
	defer func() {
		if err := r.Close(); err != nil {
			e.logger.Warn("failed to close file", zap.String("file", name), zap.Error(err))
		}
	}()

	for r.Next() {
		row := r.Row()
		stats.TotalRows++
		fstats.Rows++

		more := true
		switch filter.Classify(row.ID, row.IDValid, row.Text, row.TextValid, e.excluded) {
		case filter.ReasonEmpty:
			stats.SkippedEmpty++
			fstats.SkippedEmpty++
		case filter.ReasonSystem:
			stats.ExcludedSystem++
			fstats.ExcludedSystem++
		case filter.ReasonCode:
			stats.ExcludedCode++
			fstats.ExcludedCode++
		case filter.ReasonKeep:
			stats.Kept++
			fstats.Kept++
			more = yield(Sample{
				ID:     row.ID,
				Text:   row.Text,
				Length: utf8.RuneCountInString(row.Text),
			})
		}

		if e.progress != nil && e.config.ProgressInterval > 0 && stats.TotalRows%int64(e.config.ProgressInterval) == 0 {
			e.progress(Progress{File: name, TotalRows: stats.TotalRows, Kept: stats.Kept})
		}
		if !more {
			stats.FilesRead++
			return false
		}
		if fstats.Rows%ctxCheckInterval == 0 && ctx.Err() != nil {
			stats.FilesRead++
			return false
		}
	}

	if err := r.Err(); err != nil {
		fstats.Err = fileError(err, name)
		stats.FilesSkipped++
		e.logger.Error("error reading file, skipping remainder",
			zap.String("file", name), zap.Int64("rows_read", fstats.Rows), zap.Error(err))
		return true
	}

	e.logger.Debug("finished file",
		zap.String("file", name),
		zap.Int64("rows", r.RowsRead()),
		zap.Int64("footer_rows", r.NumRows()),
		zap.Int64("kept", fstats.Kept))
	stats.FilesRead++
	return true
}

func fileError(err error, name string) error {
	errType := errors.ErrorTypeFile
	if stderrors.Is(err, columnar.ErrMissingColumn) {
		errType = errors.ErrorTypeData
	}
	return errors.Wrap(err, errType, "failed to read columnar file").WithDetail("file", name)
}

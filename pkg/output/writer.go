// Package output writes the sample artifact consumed by the parser test
// harness: a metadata envelope with length statistics followed by the
// samples in ascending length order.
package output

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ajitpratap0/doctext/internal/pipeline"
	"github.com/ajitpratap0/doctext/pkg/compression"
	"github.com/ajitpratap0/doctext/pkg/errors"
	jsonpool "github.com/ajitpratap0/doctext/pkg/json"
)

// Document is the root of the emitted artifact
type Document struct {
	Metadata Metadata     `json:"metadata"`
	Samples  []SampleJSON `json:"samples"`
}

// Metadata describes the sample set
type Metadata struct {
	GeneratedAt  string      `json:"generated_at"`
	TotalSamples int         `json:"total_samples"`
	LengthStats  LengthStats `json:"length_stats"`
}

// LengthStats summarises sample lengths
type LengthStats struct {
	Min int     `json:"min"`
	Max int     `json:"max"`
	Avg float64 `json:"avg"`
}

// SampleJSON is the external shape of one sample
type SampleJSON struct {
	ID     int64  `json:"id"`
	Text   string `json:"text"`
	Length int    `json:"length"`
}

// WriteResult reports what was written
type WriteResult struct {
	Path    string
	Bytes   int64
	Samples int
	Stats   LengthStats
}

// Writer serialises samples to disk
type Writer struct {
	now         func() time.Time
	indent      string
	compression compression.Algorithm
}

// Option configures a Writer
type Option func(*Writer)

// WithClock overrides the clock used for generated_at
func WithClock(now func() time.Time) Option {
	return func(w *Writer) {
		w.now = now
	}
}

// WithCompression compresses the file with algorithm
func WithCompression(algorithm compression.Algorithm) Option {
	return func(w *Writer) {
		w.compression = algorithm
	}
}

// NewWriter creates a writer producing two-space indented JSON
func NewWriter(opts ...Option) *Writer {
	w := &Writer{
		now:         time.Now,
		indent:      "  ",
		compression: compression.None,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// SortByLength orders samples by ascending length in place. Equal lengths
// keep their scan order.
func SortByLength(samples []pipeline.Sample) {
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Length < samples[j].Length
	})
}

// ComputeStats returns min, max and mean length, the mean rounded to two
// decimal places. samples must not be empty.
func ComputeStats(samples []pipeline.Sample) LengthStats {
	stats := LengthStats{Min: samples[0].Length, Max: samples[0].Length}
	var total int64
	for _, s := range samples {
		if s.Length < stats.Min {
			stats.Min = s.Length
		}
		if s.Length > stats.Max {
			stats.Max = s.Length
		}
		total += int64(s.Length)
	}
	mean := float64(total) / float64(len(samples))
	stats.Avg = math.Round(mean*100) / 100
	return stats
}

// Build sorts samples in place and wraps them in a Document
func (w *Writer) Build(samples []pipeline.Sample) (*Document, error) {
	if len(samples) == 0 {
		return nil, errors.New(pipeline.ErrNoSamples.Type, pipeline.ErrNoSamples.Message)
	}

	SortByLength(samples)

	out := make([]SampleJSON, len(samples))
	for i, s := range samples {
		out[i] = SampleJSON{ID: s.ID, Text: s.Text, Length: s.Length}
	}

	return &Document{
		Metadata: Metadata{
			GeneratedAt:  w.now().UTC().Format(time.RFC3339Nano),
			TotalSamples: len(out),
			LengthStats:  ComputeStats(samples),
		},
		Samples: out,
	}, nil
}

// Path returns where Write puts the artifact for path: path itself, with
// the compression suffix appended when it is missing.
func (w *Writer) Path(path string) string {
	ext := w.compression.Extension()
	if ext == "" || strings.HasSuffix(path, ext) {
		return path
	}
	return path + ext
}

// Write builds the document and writes it to w.Path(path), replacing any
// existing file. The artifact is staged in a temporary file next to the
// target and renamed into place, so a failed write leaves no partial
// output. Nothing is created when samples is empty.
func (w *Writer) Write(samples []pipeline.Sample, path string) (*WriteResult, error) {
	doc, err := w.Build(samples)
	if err != nil {
		return nil, err
	}

	target := w.Path(path)
	if err := w.writeFile(doc, target); err != nil {
		return nil, err
	}

	info, err := os.Stat(target)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to stat output file").WithDetail("path", target)
	}

	return &WriteResult{
		Path:    target,
		Bytes:   info.Size(),
		Samples: doc.Metadata.TotalSamples,
		Stats:   doc.Metadata.LengthStats,
	}, nil
}

func (w *Writer) writeFile(doc *Document, path string) (err error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create output file").WithDetail("path", path)
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	buf := bufio.NewWriterSize(f, 256*1024)
	cw, err := compression.NewWriter(buf, w.compression, compression.Default)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid output compression")
	}

	if err := jsonpool.NewEncoder(cw, w.indent).Encode(doc); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode samples")
	}
	if err := cw.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, fmt.Sprintf("failed to finish %s stream", w.compression))
	}
	if err := buf.Flush(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write output file").WithDetail("path", path)
	}
	if err := f.Chmod(0o644); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to set output file mode").WithDetail("path", path)
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close output file").WithDetail("path", path)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to move output file into place").WithDetail("path", path)
	}
	return nil
}

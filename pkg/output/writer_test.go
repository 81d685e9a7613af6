package output

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/doctext/internal/pipeline"
	"github.com/ajitpratap0/doctext/pkg/compression"
	jsonpool "github.com/ajitpratap0/doctext/pkg/json"
)

var fixedNow = func() time.Time {
	return time.Date(2025, 12, 14, 14, 17, 42, 0, time.FixedZone("EST", -5*3600))
}

func sample(id int64, text string) pipeline.Sample {
	return pipeline.Sample{ID: id, Text: text, Length: len([]rune(text))}
}

func readDoc(t *testing.T, path string, alg compression.Algorithm) Document {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r, err := compression.NewReader(f, alg)
	require.NoError(t, err)
	defer r.Close()

	var doc Document
	require.NoError(t, jsonpool.NewDecoder(r).Decode(&doc))
	return doc
}

func TestWriteSingleSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.json")
	res, err := NewWriter(WithClock(fixedNow)).Write([]pipeline.Sample{sample(7, "world")}, path)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	want := `{
  "metadata": {
    "generated_at": "2025-12-14T19:17:42Z",
    "total_samples": 1,
    "length_stats": {
      "min": 5,
      "max": 5,
      "avg": 5
    }
  },
  "samples": [
    {
      "id": 7,
      "text": "world",
      "length": 5
    }
  ]
}
`
	assert.Equal(t, want, string(raw))
	assert.Equal(t, int64(len(raw)), res.Bytes)
	assert.Equal(t, 1, res.Samples)
}

func TestWriteSortsAndComputesStats(t *testing.T) {
	samples := []pipeline.Sample{
		sample(1, "ccc"),
		sample(2, "a"),
		sample(3, "bbbb"),
		sample(4, "x"),
		sample(5, "zz"),
	}
	path := filepath.Join(t.TempDir(), "samples.json")
	res, err := NewWriter().Write(samples, path)
	require.NoError(t, err)

	doc := readDoc(t, path, compression.None)
	assert.Equal(t, len(doc.Samples), doc.Metadata.TotalSamples)

	var order []int64
	for i, s := range doc.Samples {
		order = append(order, s.ID)
		assert.Equal(t, len([]rune(s.Text)), s.Length)
		assert.GreaterOrEqual(t, s.Length, doc.Metadata.LengthStats.Min)
		assert.LessOrEqual(t, s.Length, doc.Metadata.LengthStats.Max)
		if i > 0 {
			assert.LessOrEqual(t, doc.Samples[i-1].Length, s.Length)
		}
	}
	assert.Equal(t, []int64{2, 4, 5, 1, 3}, order, "ties keep scan order")
	assert.Equal(t, LengthStats{Min: 1, Max: 4, Avg: 2.2}, doc.Metadata.LengthStats)
	assert.Equal(t, doc.Metadata.LengthStats, res.Stats)

	generated, err := time.Parse(time.RFC3339Nano, doc.Metadata.GeneratedAt)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, generated.Location())
}

func TestComputeStatsRoundsMean(t *testing.T) {
	stats := ComputeStats([]pipeline.Sample{{Length: 1}, {Length: 1}, {Length: 2}})
	assert.Equal(t, 1.33, stats.Avg)

	stats = ComputeStats([]pipeline.Sample{{Length: 2}, {Length: 2}, {Length: 3}})
	assert.Equal(t, 2.33, stats.Avg)

	stats = ComputeStats([]pipeline.Sample{{Length: 1}, {Length: 2}, {Length: 2}})
	assert.Equal(t, 1.67, stats.Avg)
}

func TestWritePreservesUnicodeAndMarkup(t *testing.T) {
	text := `<p>Ünïcödé & "quotes" — 日本語</p>`
	path := filepath.Join(t.TempDir(), "samples.json")
	_, err := NewWriter().Write([]pipeline.Sample{sample(1, text)}, path)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), `<p>Ünïcödé & \"quotes\" — 日本語</p>`), string(raw))
	assert.NotContains(t, string(raw), `\u`)
}

func TestWriteEmptyWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.json")
	_, err := NewWriter().Write(nil, path)
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrNoSamples)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestWriteOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.json")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", 10000)), 0o644))

	_, err := NewWriter().Write([]pipeline.Sample{sample(1, "a")}, path)
	require.NoError(t, err)
	doc := readDoc(t, path, compression.None)
	assert.Equal(t, 1, doc.Metadata.TotalSamples)
}

func TestWriteCompressed(t *testing.T) {
	samples := []pipeline.Sample{sample(1, "alpha"), sample(2, "be")}
	for _, alg := range []compression.Algorithm{compression.Gzip, compression.Zstd, compression.LZ4} {
		path := filepath.Join(t.TempDir(), "samples.json"+alg.Extension())
		_, err := NewWriter(WithCompression(alg)).Write(append([]pipeline.Sample(nil), samples...), path)
		require.NoError(t, err, alg)

		doc := readDoc(t, path, alg)
		assert.Equal(t, 2, doc.Metadata.TotalSamples, alg)
		assert.Equal(t, int64(2), doc.Samples[0].ID, alg)
	}
}

func TestWriteBadPath(t *testing.T) {
	_, err := NewWriter().Write([]pipeline.Sample{sample(1, "a")}, filepath.Join(t.TempDir(), "missing", "out.json"))
	assert.Error(t, err)
}

func TestWriteAppendsCompressionSuffix(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "samples.json")

	w := NewWriter(WithCompression(compression.Zstd))
	assert.Equal(t, path+".zst", w.Path(path))
	assert.Equal(t, path+".zst", w.Path(path+".zst"))
	assert.Equal(t, path, NewWriter().Path(path))

	res, err := w.Write([]pipeline.Sample{sample(1, "a")}, path)
	require.NoError(t, err)
	assert.Equal(t, path+".zst", res.Path)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "no plain .json is written for compressed output")
	assert.Equal(t, 1, readDoc(t, res.Path, compression.Zstd).Metadata.TotalSamples)
}

func TestWriteFailureLeavesNoPartialFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "samples.json")
	require.NoError(t, os.WriteFile(path, []byte("previous run"), 0o644))

	_, err := NewWriter(WithCompression(compression.Algorithm("brotli"))).
		Write([]pipeline.Sample{sample(1, "a")}, path)
	require.Error(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "previous run", string(raw), "existing artifact is untouched")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "staging file is removed")
}

func TestWriteFileMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.json")
	_, err := NewWriter().Write([]pipeline.Sample{sample(1, "a")}, path)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

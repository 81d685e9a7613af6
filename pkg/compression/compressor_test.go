package compression

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	payload := []byte(strings.Repeat(`{"id":7,"text":"wörld","length":5}`+"\n", 200))

	for _, alg := range []Algorithm{None, Gzip, LZ4, Zstd} {
		for _, level := range []Level{Fastest, Default, Best} {
			var buf bytes.Buffer
			w, err := NewWriter(&buf, alg, level)
			require.NoError(t, err, alg)
			_, err = w.Write(payload)
			require.NoError(t, err)
			require.NoError(t, w.Close())

			if alg != None {
				assert.Less(t, buf.Len(), len(payload), "%s should shrink repetitive input", alg)
			}

			r, err := NewReader(&buf, alg)
			require.NoError(t, err)
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			require.NoError(t, r.Close())
			assert.Equal(t, payload, got, "%s level %d", alg, level)
		}
	}
}

func TestParseAlgorithm(t *testing.T) {
	tests := map[string]Algorithm{
		"":      None,
		"none":  None,
		"GZIP":  Gzip,
		" zstd": Zstd,
		"lz4":   LZ4,
	}
	for in, want := range tests {
		got, err := ParseAlgorithm(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseAlgorithm("brotli")
	assert.Error(t, err)
}

func TestExtension(t *testing.T) {
	assert.Equal(t, "", None.Extension())
	assert.Equal(t, ".gz", Gzip.Extension())
	assert.Equal(t, ".lz4", LZ4.Extension())
	assert.Equal(t, ".zst", Zstd.Extension())
}

func TestUnknownAlgorithm(t *testing.T) {
	_, err := NewWriter(io.Discard, Algorithm("rar"), Default)
	assert.Error(t, err)
	_, err = NewReader(strings.NewReader(""), Algorithm("rar"))
	assert.Error(t, err)
}

// Package json is the single JSON entry point for doctext, backed by
// goccy/go-json. Output is never HTML-escaped and non-ASCII text is
// written verbatim.
package json

import (
	"io"

	gojson "github.com/goccy/go-json"
)

// NewEncoder returns an encoder on w. A non-empty indent enables
// pretty-printing with that indent per level.
func NewEncoder(w io.Writer, indent string) *gojson.Encoder {
	enc := gojson.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc
}

// NewDecoder returns a decoder on r
func NewDecoder(r io.Reader) *gojson.Decoder {
	return gojson.NewDecoder(r)
}

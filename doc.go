// Package doctext extracts document text samples from a Parquet export of
// the document table for testing the React HTML parser.
//
// A run has four stages:
//
//  1. Load the system node ids declared in the nodepack XML files
//     (pkg/exclusion).
//  2. Stream the export's Parquet files in sorted order (pkg/formats/columnar).
//  3. Drop rows that are empty, belong to a system node or contain legacy
//     [% %] code blocks (pkg/filter), stopping once enough samples are
//     collected (internal/pipeline).
//  4. Write the samples sorted by length with summary statistics as JSON
//     (pkg/output), then log and export run metrics (internal/report).
//
// # Quick Start
//
//	doctext run --export-dir export/everything.document/1 \
//	    --nodepack-dir nodepack -o doctext-samples.json
//
// Settings can also come from DOCTEXT_* environment variables or a YAML file
// passed with --config; `doctext config` prints the resolved values.
package doctext

// Package exclusion builds the set of system node identifiers that must
// never appear in extracted output. The identifiers come from nodepack XML
// files, each of which may carry any number of <node_id>N</node_id> tags.
package exclusion

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"go.uber.org/zap"

	"github.com/ajitpratap0/doctext/pkg/logger"
)

// DefaultExtension is the file extension of nodepack annotation files
const DefaultExtension = ".xml"

var nodeIDPattern = regexp.MustCompile(`<node_id>(\d+)</node_id>`)

// Set is an immutable-after-build set of node identifiers
type Set map[int64]struct{}

// NewSet returns a set holding ids
func NewSet(ids ...int64) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add inserts id into the set
func (s Set) Add(id int64) {
	s[id] = struct{}{}
}

// Contains reports whether id is in the set
func (s Set) Contains(id int64) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of distinct identifiers
func (s Set) Len() int {
	return len(s)
}

// LoadStats describes what a Load call saw
type LoadStats struct {
	FilesScanned int
	FilesFailed  int
	Matches      int
}

// Options tune Load
type Options struct {
	// Extension selects annotation files; defaults to DefaultExtension
	Extension string
	Logger    *zap.Logger
}

// ExtractIDs returns every identifier tagged in content, in document
// order and including duplicates. Digit runs that overflow int64 are
// reported as an error together with the identifiers that did parse.
func ExtractIDs(content []byte) ([]int64, error) {
	matches := nodeIDPattern.FindAllSubmatch(content, -1)
	if len(matches) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(matches))
	var firstErr error
	for _, m := range matches {
		id, err := strconv.ParseInt(string(m[1]), 10, 64)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("invalid node_id %q: %w", m[1], err)
			}
			continue
		}
		ids = append(ids, id)
	}
	return ids, firstErr
}

// Load walks root recursively and collects the identifiers of every
// annotation file below it. Unreadable files and unreadable directories
// are logged and skipped; a missing root yields an empty set. The only
// error Load returns is ctx's.
func Load(ctx context.Context, root string, opts Options) (Set, LoadStats, error) {
	log := logger.OrNop(opts.Logger)
	ext := opts.Extension
	if ext == "" {
		ext = DefaultExtension
	}

	set := NewSet()
	var stats LoadStats

	if _, err := os.Stat(root); err != nil {
		log.Warn("nodepack directory unavailable, no system nodes will be excluded",
			zap.String("dir", root), zap.Error(err))
		return set, stats, nil
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			log.Warn("error walking nodepack", zap.String("path", path), zap.Error(walkErr))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || filepath.Ext(path) != ext {
			return nil
		}

		stats.FilesScanned++
		content, err := os.ReadFile(path) //nolint:gosec // G304: paths come from walking the configured nodepack dir
		if err != nil {
			stats.FilesFailed++
			log.Warn("error reading annotation file", zap.String("file", path), zap.Error(err))
			return nil
		}

		ids, err := ExtractIDs(content)
		if err != nil {
			log.Warn("skipping malformed node_id", zap.String("file", path), zap.Error(err))
		}
		for _, id := range ids {
			set.Add(id)
		}
		stats.Matches += len(ids)
		return nil
	})
	if err != nil {
		return nil, stats, err
	}

	log.Info("loaded system nodes to exclude",
		zap.Int("system_nodes", set.Len()),
		zap.Int("files", stats.FilesScanned),
		zap.Int("failed", stats.FilesFailed))

	return set, stats, nil
}

package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

type FileResult struct {
	Path         string
	Hash         string
	Deduplicated bool
	Err          string
}

type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// HandleFunc processes one document found by WalkDirectory.
type HandleFunc func(ctx context.Context, doc Document) error

// WalkDirectory walks root, skips hidden entries if requested, and hands each allowed
// file to fn. Files whose bytes were already seen in this walk are skipped. One failing
// file never stops the walk.
func WalkDirectory(ctx context.Context, root, sender string, skipHidden bool, fn HandleFunc) ([]FileResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root_path is required")
	}

	var results []FileResult
	var stats DirStats
	seen := map[string]struct{}{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, FileResult{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		doc, err := FromPath(path, sender)
		if err != nil {
			results = append(results, FileResult{Path: path, Err: err.Error()})
			stats.Failed++
			return nil
		}
		if _, dup := seen[doc.Hash]; dup {
			results = append(results, FileResult{Path: path, Hash: doc.Hash, Deduplicated: true})
			stats.Deduplicated++
			return nil
		}
		seen[doc.Hash] = struct{}{}

		if err := fn(ctx, doc); err != nil {
			results = append(results, FileResult{Path: path, Hash: doc.Hash, Err: err.Error()})
			stats.Failed++
			return nil
		}
		results = append(results, FileResult{Path: path, Hash: doc.Hash})
		stats.Succeeded++
		return nil
	})

	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}

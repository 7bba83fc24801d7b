// Package manifest assembles the deployment manifest: the mapping from
// logical site path to content key, plus the per-file records that carry
// content and content type for upload.
package manifest

import (
	"sort"
	"strings"

	"github.com/harborworks/lighter/digest"
	"github.com/harborworks/lighter/types"
)

// FileRecord is one file of the deployment, scoped to a single run.
// Immutable once built.
type FileRecord struct {
	// LogicalPath is the deployment path with a single leading "/".
	LogicalPath string
	// Content is the raw file bytes.
	Content []byte
	// ContentKey is the digest key for (Content, extension).
	ContentKey string
	// ContentType is the MIME type derived from the extension.
	ContentType string
}

// Manifest maps logical path to content key. One manifest fully describes
// the desired state of one deployment. encoding/json marshals map keys in
// sorted order, so identical inputs serialize byte-identically.
type Manifest map[string]string

// ContentKeys returns the distinct content keys referenced by the manifest,
// sorted. Two paths with identical content contribute one key.
func (m Manifest) ContentKeys() []string {
	seen := make(map[string]struct{}, len(m))
	keys := make([]string, 0, len(m))
	for _, key := range m {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// NormalizePath converts a relative slash path into a logical deployment
// path with exactly one leading "/".
func NormalizePath(rel string) string {
	return "/" + strings.TrimLeft(rel, "/")
}

// BuildResult is the output of Build.
type BuildResult struct {
	// Manifest is the path → key mapping.
	Manifest Manifest
	// Records holds one FileRecord per manifest path, in input order.
	// On duplicate logical paths the later record wins.
	Records []FileRecord
	// Duplicates lists logical paths that appeared more than once.
	// A single filesystem walk should never produce these; they are
	// surfaced as warnings, not errors.
	Duplicates []string
	// Stats summarizes the content set.
	Stats types.Stats
}

// Build assembles hashed file records into a manifest.
func Build(records []FileRecord) *BuildResult {
	m := make(Manifest, len(records))
	kept := make([]FileRecord, 0, len(records))
	index := make(map[string]int, len(records))
	var duplicates []string

	for _, rec := range records {
		if i, exists := index[rec.LogicalPath]; exists {
			duplicates = append(duplicates, rec.LogicalPath)
			kept[i] = rec
			m[rec.LogicalPath] = rec.ContentKey
			continue
		}
		index[rec.LogicalPath] = len(kept)
		kept = append(kept, rec)
		m[rec.LogicalPath] = rec.ContentKey
	}

	stats := types.Stats{
		TotalFiles: len(kept),
		FileTypes:  make(map[string]int),
	}
	for _, rec := range kept {
		stats.TotalBytes += int64(len(rec.Content))
		stats.FileTypes[digest.Ext(rec.LogicalPath)]++
	}

	return &BuildResult{
		Manifest:   m,
		Records:    kept,
		Duplicates: duplicates,
		Stats:      stats,
	}
}

// RecordsByKey indexes records by content key. Paths sharing content
// collapse to a single entry; any one record can serve as the upload
// source for its key.
func RecordsByKey(records []FileRecord) map[string]FileRecord {
	byKey := make(map[string]FileRecord, len(records))
	for _, rec := range records {
		if _, exists := byKey[rec.ContentKey]; !exists {
			byKey[rec.ContentKey] = rec
		}
	}
	return byKey
}

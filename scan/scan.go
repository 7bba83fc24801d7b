// Package scan enumerates the files of a site directory.
//
// The scanner walks the root, applies the ignore list, and yields relative
// slash-separated file paths in walk order. Walk order is lexical, so the
// same tree always produces the same sequence and therefore the same
// manifest.
package scan

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Sentinel errors for root validation.
// Use errors.Is(err, ErrXxx) for typed assertions.
var (
	// ErrNotFound indicates the root path does not exist.
	ErrNotFound = errors.New("root path not found")

	// ErrNotDirectory indicates the root path exists but is not a directory.
	ErrNotDirectory = errors.New("root path is not a directory")
)

// DefaultIgnores is the fixed ignore list applied to every scan.
// Entries match by exact substring against the relative slash path, so
// ".git" also prunes ".gitignore" and ".github" — deliberate: none of
// those belong in a deployed site.
var DefaultIgnores = []string{
	".git",
	".hg",
	".svn",
	"node_modules",
	".DS_Store",
	"Thumbs.db",
	"desktop.ini",
	".idea",
	".vscode",
}

// Result holds the outcome of one scan.
type Result struct {
	// Files is the ordered list of relative slash paths of regular files.
	Files []string
	// Ignored is the number of entries pruned by the ignore list.
	// A pruned directory counts once; its subtree is never visited.
	Ignored int64
}

// Dir walks root and returns the relative paths of all files that survive
// the ignore list. extra entries are appended to DefaultIgnores with the
// same substring semantics.
func Dir(root string, extra []string) (*Result, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, root)
		}
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, root)
	}

	ignores := make([]string, 0, len(DefaultIgnores)+len(extra))
	ignores = append(ignores, DefaultIgnores...)
	ignores = append(ignores, extra...)

	result := &Result{}

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == root {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if ignored(rel, ignores) {
			result.Ignored++
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.Type().IsRegular() {
			result.Files = append(result.Files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	return result, nil
}

// ignored reports whether rel matches any ignore entry by substring.
func ignored(rel string, ignores []string) bool {
	for _, entry := range ignores {
		if entry == "" {
			continue
		}
		if strings.Contains(rel, entry) {
			return true
		}
	}
	return false
}

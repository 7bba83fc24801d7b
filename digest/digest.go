// Package digest computes content keys for deployment files.
//
// A content key is a pure function of the file's bytes and its extension:
// byte-identical files at different paths share a key, while the same bytes
// under a different extension get a different key. Downstream consumers
// depend on the extension being part of the key, so it stays part of the
// input even though it weakens dedup slightly.
package digest

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/zeebo/blake3"
)

// KeyLength is the length of a content key in hex characters.
// 32 hex chars (128 bits) keeps manifests compact while making accidental
// collisions negligible for realistic site sizes.
const KeyLength = 32

// DefaultMaxFileSize is the per-file size guard applied when no limit is
// configured (25 MiB).
const DefaultMaxFileSize = 25 << 20

// ErrFileTooLarge indicates a file exceeded the configured size guard.
var ErrFileTooLarge = errors.New("file exceeds maximum size")

// keySeparator keeps (content, ext) pairs unambiguous: without it,
// ("ab","c") and ("a","bc") would hash the same input.
var keySeparator = []byte{0x00}

// Key returns the content key for one file's bytes and extension.
// Deterministic, fixed-width, no I/O.
func Key(content []byte, ext string) string {
	h := blake3.New()
	h.Write(content)
	h.Write(keySeparator)
	h.Write([]byte(ext))
	return hex.EncodeToString(h.Sum(nil))[:KeyLength]
}

// Ext returns the extension of a slash path without the leading dot,
// lowercased. Files without an extension return "".
func Ext(p string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
}

// ReadFile reads the whole file into memory, rejecting files larger than
// maxSize with ErrFileTooLarge. maxSize <= 0 applies DefaultMaxFileSize.
func ReadFile(filePath string, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", filePath, err)
	}
	if info.Size() > maxSize {
		return nil, fmt.Errorf("%w: %s is %d bytes (limit %d)", ErrFileTooLarge, filePath, info.Size(), maxSize)
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filePath, err)
	}
	return content, nil
}

// Package fileid derives deterministic document IDs for watched PDF files.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const prefix = "pdf:"

// DocID returns a stable document ID for the given path. The same path always
// yields the same ID, so re-ingesting a changed file replaces its chunks
// instead of duplicating them.
func DocID(path string) string {
	normalized := filepath.Clean(path)
	hash := sha256.Sum256([]byte(normalized))
	return prefix + hex.EncodeToString(hash[:])
}

// Package files stores raw uploaded PDF bytes on disk.
package files

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Store saves uploaded files under a base directory.
type Store struct {
	dir string
}

// NewStore creates the base directory if needed and returns a Store.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Save writes content under a timestamped, sanitized name derived from the
// original filename and returns the stored path. Repeated uploads of the same
// filename get distinct paths.
func (s *Store) Save(originalFilename string, content []byte) (string, error) {
	name := fmt.Sprintf("%d_%s", time.Now().UnixNano(), Sanitize(originalFilename))
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	return path, nil
}

// Dir returns the base directory.
func (s *Store) Dir() string {
	return s.dir
}

// Sanitize reduces a client-supplied filename to a safe basename: path
// separators and control characters are stripped, spaces become underscores.
func Sanitize(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 || b.String() == "." || b.String() == ".." {
		return "upload.pdf"
	}
	return b.String()
}

// DiskUsageBytes returns the total size in bytes of the given paths.
// Each path may be a file or a directory (recursively summed).
// Missing or inaccessible paths are skipped (contribute 0); errors during walk are returned.
func DiskUsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, err
		}
		if info.IsDir() {
			n, err := dirSize(p)
			if err != nil {
				return 0, err
			}
			total += n
		} else {
			total += info.Size()
		}
	}
	return total, nil
}

func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info != nil && !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}

package files

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"lecture 3.pdf", "lecture_3.pdf"},
		{"../../etc/passwd", "passwd"},
		{"..\\..\\evil.pdf", "evil.pdf"},
		{"notes.pdf", "notes.pdf"},
		{"日本語.pdf", ".pdf"},
		{"", "upload.pdf"},
		{"..", "upload.pdf"},
	}
	for _, tt := range tests {
		if got := Sanitize(tt.in); got != tt.want {
			t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStore_Save(t *testing.T) {
	s, err := NewStore(filepath.Join(t.TempDir(), "uploads"))
	if err != nil {
		t.Fatal(err)
	}
	path, err := s.Save("my doc.pdf", []byte("content"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(path, "_my_doc.pdf") {
		t.Errorf("path = %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "content" {
		t.Errorf("read back: %q, %v", data, err)
	}

	// Same name again must not collide.
	path2, err := s.Save("my doc.pdf", []byte("other"))
	if err != nil {
		t.Fatal(err)
	}
	if path2 == path {
		t.Error("repeated upload should get a distinct path")
	}
}

func TestDiskUsageBytes(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a"), make([]byte, 100), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b"), make([]byte, 50), 0644); err != nil {
		t.Fatal(err)
	}
	n, err := DiskUsageBytes(dir, filepath.Join(dir, "missing"))
	if err != nil {
		t.Fatal(err)
	}
	if n != 150 {
		t.Errorf("DiskUsageBytes = %d, want 150", n)
	}
}

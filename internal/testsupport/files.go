package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates path, and any missing parents, holding size filler
// bytes. Media stubs never read the content, so only the size matters for
// keys derived from file metadata. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int) string {
	t.Helper()

	size = max(size, 1)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x42}, size), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
